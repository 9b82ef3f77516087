package credit

import (
	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/shared"
	"github.com/propman/backend/internal/domain/shared/valueobject"
)

// TransactionType classifies a credit history entry.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "DEPOSIT"
	TransactionTypeDraw       TransactionType = "DRAW"
	TransactionTypeAdjustment TransactionType = "ADJUSTMENT"
)

// IsValid returns true if the transaction type is known.
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeDraw, TransactionTypeAdjustment:
		return true
	}
	return false
}

// CreditTransaction is one append-only entry in a unit's credit history.
// Amount is signed: deposits positive, draws negative. BalanceAfter is
// always BalanceBefore plus Amount, so the history replays to the
// current balance.
type CreditTransaction struct {
	shared.BaseEntity
	ClientID            uuid.UUID         `json:"client_id"`
	UnitID              uuid.UUID         `json:"unit_id"`
	Type                TransactionType   `json:"type"`
	Amount              valueobject.Money `json:"amount"`
	BalanceBefore       valueobject.Money `json:"balance_before"`
	BalanceAfter        valueobject.Money `json:"balance_after"`
	SourceTransactionID string            `json:"source_transaction_id"`
}

func newCreditTransaction(
	balance *CreditBalance,
	txType TransactionType,
	amount valueobject.Money,
	before valueobject.Money,
	sourceTransactionID string,
) *CreditTransaction {
	return &CreditTransaction{
		BaseEntity:          shared.NewBaseEntity(),
		ClientID:            balance.ClientID,
		UnitID:              balance.UnitID,
		Type:                txType,
		Amount:              amount,
		BalanceBefore:       before,
		BalanceAfter:        before.Add(amount),
		SourceTransactionID: sourceTransactionID,
	}
}
