package credit

import (
	"context"

	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/shared"
)

// BalanceRepository defines the persistence contract for credit balances
type BalanceRepository interface {
	// FindByUnit returns the unit's balance, or ErrNotFound if the unit
	// never accumulated credit.
	FindByUnit(ctx context.Context, clientID, unitID uuid.UUID) (*CreditBalance, error)
	Save(ctx context.Context, balance *CreditBalance) error
	// SaveWithLock persists the balance only if the stored row still
	// holds the previous version.
	SaveWithLock(ctx context.Context, balance *CreditBalance) error
}

// TransactionRepository defines the persistence contract for the
// append-only credit history
type TransactionRepository interface {
	Create(ctx context.Context, txn *CreditTransaction) error
	ListByUnit(ctx context.Context, clientID, unitID uuid.UUID, filter shared.Filter) (*shared.Paginated[*CreditTransaction], error)
}
