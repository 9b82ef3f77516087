// Package credit holds the per-unit credit balance built up from
// overpayments and drawn down by the payment cascade, together with its
// append-only transaction history.
package credit

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/shared"
	"github.com/propman/backend/internal/domain/shared/valueobject"
)

// CreditBalance is the aggregate holding a unit's current credit. The
// balance never goes negative: a draw exceeding the balance is rejected,
// not clamped.
type CreditBalance struct {
	shared.ClientAggregateRoot
	UnitID  uuid.UUID         `json:"unit_id"`
	Balance valueobject.Money `json:"balance"`
}

// NewCreditBalance creates an empty credit balance for a unit
func NewCreditBalance(clientID, unitID uuid.UUID) (*CreditBalance, error) {
	if clientID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CLIENT", "Client ID cannot be empty")
	}
	if unitID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_UNIT", "Unit ID cannot be empty")
	}
	return &CreditBalance{
		ClientAggregateRoot: shared.NewClientAggregateRoot(clientID),
		UnitID:              unitID,
	}, nil
}

// Deposit adds an overpayment surplus to the balance and returns the
// history entry recording it.
func (c *CreditBalance) Deposit(amount valueobject.Money, sourceTransactionID string) (*CreditTransaction, error) {
	if !amount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Deposit amount must be positive")
	}

	before := c.Balance
	c.Balance = c.Balance.Add(amount)
	c.IncrementVersion()

	txn := newCreditTransaction(c, TransactionTypeDeposit, amount, before, sourceTransactionID)
	c.AddDomainEvent(NewCreditDepositedEvent(c, txn))
	return txn, nil
}

// Draw removes credit to cover a bill shortfall and returns the history
// entry recording it. The entry's amount is negative.
func (c *CreditBalance) Draw(amount valueobject.Money, sourceTransactionID string) (*CreditTransaction, error) {
	if !amount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Draw amount must be positive")
	}
	if amount.Int64() > c.Balance.Int64() {
		return nil, shared.NewDomainError("INSUFFICIENT_CREDIT",
			fmt.Sprintf("Draw of %s exceeds credit balance %s for unit %s", amount, c.Balance, c.UnitID))
	}

	before := c.Balance
	c.Balance = c.Balance.Sub(amount)
	c.IncrementVersion()

	txn := newCreditTransaction(c, TransactionTypeDraw, amount.Neg(), before, sourceTransactionID)
	c.AddDomainEvent(NewCreditDrawnEvent(c, txn))
	return txn, nil
}

// Adjust applies an operator adjustment of either sign and returns the
// history entry recording it. The resulting balance may not be negative.
func (c *CreditBalance) Adjust(amount valueobject.Money, sourceTransactionID string) (*CreditTransaction, error) {
	if amount.IsZero() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Adjustment amount cannot be zero")
	}
	after := c.Balance.Add(amount)
	if after.IsNegative() {
		return nil, shared.NewDomainError("INSUFFICIENT_CREDIT",
			fmt.Sprintf("Adjustment of %s would leave unit %s with negative credit", amount, c.UnitID))
	}

	before := c.Balance
	c.Balance = after
	c.IncrementVersion()

	txn := newCreditTransaction(c, TransactionTypeAdjustment, amount, before, sourceTransactionID)
	c.AddDomainEvent(NewCreditAdjustedEvent(c, txn))
	return txn, nil
}
