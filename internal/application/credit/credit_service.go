// Package credit contains the application service for querying unit
// credit balances and their history.
package credit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/credit"
	"github.com/propman/backend/internal/domain/shared"
	"github.com/propman/backend/internal/domain/shared/valueobject"
)

// CreditQueryService serves read-only credit information.
type CreditQueryService struct {
	balances     credit.BalanceRepository
	transactions credit.TransactionRepository
}

// NewCreditQueryService creates a new CreditQueryService
func NewCreditQueryService(
	balances credit.BalanceRepository,
	transactions credit.TransactionRepository,
) *CreditQueryService {
	return &CreditQueryService{
		balances:     balances,
		transactions: transactions,
	}
}

// GetBalance returns the unit's current credit balance. A unit that never
// accumulated credit has a zero balance, not an error.
func (s *CreditQueryService) GetBalance(ctx context.Context, clientID, unitID uuid.UUID) (valueobject.Money, error) {
	balance, err := s.balances.FindByUnit(ctx, clientID, unitID)
	if err != nil {
		if shared.IsCode(err, "NOT_FOUND") {
			return valueobject.Zero, nil
		}
		return valueobject.Zero, fmt.Errorf("failed to load credit balance: %w", err)
	}
	return balance.Balance, nil
}

// ListHistory returns the unit's credit transactions, newest first.
func (s *CreditQueryService) ListHistory(ctx context.Context, clientID, unitID uuid.UUID, filter shared.Filter) (*shared.Paginated[*credit.CreditTransaction], error) {
	return s.transactions.ListByUnit(ctx, clientID, unitID, filter)
}
