package billing

import (
	"github.com/propman/backend/internal/domain/shared"
	"github.com/propman/backend/internal/domain/shared/valueobject"
)

// BillGeneratedEvent is raised when a bill is created from a meter reading
type BillGeneratedEvent struct {
	shared.BaseDomainEvent
	Bill *Bill
}

// NewBillGeneratedEvent creates a new bill generated event
func NewBillGeneratedEvent(bill *Bill) *BillGeneratedEvent {
	return &BillGeneratedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("bill.generated", "Bill", bill.ID, bill.ClientID),
		Bill:            bill,
	}
}

// BillRecomputedEvent is raised when an unpaid bill's charge is replaced
// from a fresh reading
type BillRecomputedEvent struct {
	shared.BaseDomainEvent
	Bill *Bill
}

// NewBillRecomputedEvent creates a new bill recomputed event
func NewBillRecomputedEvent(bill *Bill) *BillRecomputedEvent {
	return &BillRecomputedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("bill.recomputed", "Bill", bill.ID, bill.ClientID),
		Bill:            bill,
	}
}

// PenaltyAppliedEvent is raised when a late penalty accrues on a bill
type PenaltyAppliedEvent struct {
	shared.BaseDomainEvent
	Bill    *Bill
	Accrued valueobject.Money
}

// NewPenaltyAppliedEvent creates a new penalty applied event
func NewPenaltyAppliedEvent(bill *Bill, accrued valueobject.Money) *PenaltyAppliedEvent {
	return &PenaltyAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("bill.penalty_applied", "Bill", bill.ID, bill.ClientID),
		Bill:            bill,
		Accrued:         accrued,
	}
}

// BillPaymentAppliedEvent is raised when a payment covers part of a bill
type BillPaymentAppliedEvent struct {
	shared.BaseDomainEvent
	Bill   *Bill
	Record PaymentRecord
}

// NewBillPaymentAppliedEvent creates a new bill payment applied event
func NewBillPaymentAppliedEvent(bill *Bill, record PaymentRecord) *BillPaymentAppliedEvent {
	return &BillPaymentAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("bill.payment_applied", "Bill", bill.ID, bill.ClientID),
		Bill:            bill,
		Record:          record,
	}
}

// BillPaidEvent is raised when a bill becomes fully settled
type BillPaidEvent struct {
	shared.BaseDomainEvent
	Bill *Bill
}

// NewBillPaidEvent creates a new bill paid event
func NewBillPaidEvent(bill *Bill) *BillPaidEvent {
	return &BillPaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("bill.paid", "Bill", bill.ID, bill.ClientID),
		Bill:            bill,
	}
}

// BillCorrectedEvent is raised when an operator amends a bill's charges
type BillCorrectedEvent struct {
	shared.BaseDomainEvent
	Bill       *Bill
	Correction CorrectionRecord
}

// NewBillCorrectedEvent creates a new bill corrected event
func NewBillCorrectedEvent(bill *Bill, correction CorrectionRecord) *BillCorrectedEvent {
	return &BillCorrectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("bill.corrected", "Bill", bill.ID, bill.ClientID),
		Bill:            bill,
		Correction:      correction,
	}
}
