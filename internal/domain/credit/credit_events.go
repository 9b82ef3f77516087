package credit

import (
	"github.com/propman/backend/internal/domain/shared"
)

// CreditDepositedEvent is raised when overpayment surplus lands on a balance
type CreditDepositedEvent struct {
	shared.BaseDomainEvent
	Balance     *CreditBalance
	Transaction *CreditTransaction
}

// NewCreditDepositedEvent creates a new credit deposited event
func NewCreditDepositedEvent(balance *CreditBalance, txn *CreditTransaction) *CreditDepositedEvent {
	return &CreditDepositedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("credit.deposited", "CreditBalance", balance.ID, balance.ClientID),
		Balance:         balance,
		Transaction:     txn,
	}
}

// CreditDrawnEvent is raised when credit covers a bill shortfall
type CreditDrawnEvent struct {
	shared.BaseDomainEvent
	Balance     *CreditBalance
	Transaction *CreditTransaction
}

// NewCreditDrawnEvent creates a new credit drawn event
func NewCreditDrawnEvent(balance *CreditBalance, txn *CreditTransaction) *CreditDrawnEvent {
	return &CreditDrawnEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("credit.drawn", "CreditBalance", balance.ID, balance.ClientID),
		Balance:         balance,
		Transaction:     txn,
	}
}

// CreditAdjustedEvent is raised on an operator adjustment
type CreditAdjustedEvent struct {
	shared.BaseDomainEvent
	Balance     *CreditBalance
	Transaction *CreditTransaction
}

// NewCreditAdjustedEvent creates a new credit adjusted event
func NewCreditAdjustedEvent(balance *CreditBalance, txn *CreditTransaction) *CreditAdjustedEvent {
	return &CreditAdjustedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("credit.adjusted", "CreditBalance", balance.ID, balance.ClientID),
		Balance:         balance,
		Transaction:     txn,
	}
}
