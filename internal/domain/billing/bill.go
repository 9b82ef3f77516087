package billing

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/shared"
	"github.com/propman/backend/internal/domain/shared/valueobject"
)

// BillStatus represents the settlement state of a bill
type BillStatus string

const (
	BillStatusUnpaid  BillStatus = "UNPAID"  // No coverage recorded yet
	BillStatusPartial BillStatus = "PARTIAL" // Some base or penalty coverage, not settled
	BillStatusPaid    BillStatus = "PAID"    // Base and penalty fully covered
)

// IsValid checks if the status is a valid BillStatus
func (s BillStatus) IsValid() bool {
	switch s {
	case BillStatusUnpaid, BillStatusPartial, BillStatusPaid:
		return true
	}
	return false
}

// String returns the string representation of BillStatus
func (s BillStatus) String() string {
	return string(s)
}

// IsSettled returns true once no further payment can be applied
func (s BillStatus) IsSettled() bool {
	return s == BillStatusPaid
}

// PaymentRecord captures one payment transaction's contribution to a
// bill. Amount is cash only; BaseChargePaid is the base coverage
// attributed to the transaction including any credit drawn, so the
// credit-funded portion is BaseChargePaid + PenaltyPaid - Amount.
type PaymentRecord struct {
	ID             uuid.UUID         `json:"id"`
	TransactionID  string            `json:"transaction_id"`
	Amount         valueobject.Money `json:"amount"`
	BaseChargePaid valueobject.Money `json:"base_charge_paid"`
	PenaltyPaid    valueobject.Money `json:"penalty_paid"`
	AppliedAt      time.Time         `json:"applied_at"`
}

// CreditDrawn returns the credit-funded portion of this record.
func (p PaymentRecord) CreditDrawn() valueobject.Money {
	return p.BaseChargePaid.Add(p.PenaltyPaid).Sub(p.Amount)
}

// PaymentRecords is stored as a JSONB column on the bill row.
type PaymentRecords []PaymentRecord

// Value implements driver.Valuer for JSONB storage
func (p PaymentRecords) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner for JSONB retrieval
func (p *PaymentRecords) Scan(value interface{}) error {
	if value == nil {
		*p = PaymentRecords{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan PaymentRecords: unsupported type")
	}

	if len(bytes) == 0 {
		*p = PaymentRecords{}
		return nil
	}

	return json.Unmarshal(bytes, p)
}

// CorrectionRecord is the audit trail of the administrative correction
// path. Corrections never flow through PaymentRecords.
type CorrectionRecord struct {
	ID            uuid.UUID         `json:"id"`
	OperatorID    uuid.UUID         `json:"operator_id"`
	Reason        string            `json:"reason"`
	BaseBefore    valueobject.Money `json:"base_before"`
	BaseAfter     valueobject.Money `json:"base_after"`
	PenaltyBefore valueobject.Money `json:"penalty_before"`
	PenaltyAfter  valueobject.Money `json:"penalty_after"`
	CorrectedAt   time.Time         `json:"corrected_at"`
}

// CorrectionRecords is stored as a JSONB column on the bill row.
type CorrectionRecords []CorrectionRecord

// Value implements driver.Valuer for JSONB storage
func (c CorrectionRecords) Value() (driver.Value, error) {
	if c == nil {
		return "[]", nil
	}
	return json.Marshal(c)
}

// Scan implements sql.Scanner for JSONB retrieval
func (c *CorrectionRecords) Scan(value interface{}) error {
	if value == nil {
		*c = CorrectionRecords{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan CorrectionRecords: unsupported type")
	}

	if len(bytes) == 0 {
		*c = CorrectionRecords{}
		return nil
	}

	return json.Unmarshal(bytes, c)
}

// Bill is the ledger entry of one unit for one fiscal period. It is the
// aggregate root the payment cascade settles against.
//
// PaidAmount accumulates cash only; BasePaid and PenaltyPaid accumulate
// coverage including credit draws. Status is always derived from
// BasePaid/PenaltyPaid, never from PaidAmount, because credit-funded
// coverage counts toward settlement but is not cash.
type Bill struct {
	shared.ClientAggregateRoot
	UnitID         uuid.UUID         `json:"unit_id"`
	Period         FiscalPeriod      `json:"period"`
	Consumption    string            `json:"consumption"` // decimal string, exact
	RatePerUnit    valueobject.Money `json:"rate_per_unit"`
	BaseCharge     valueobject.Money `json:"base_charge"`
	PenaltyAmount  valueobject.Money `json:"penalty_amount"`
	PaidAmount     valueobject.Money `json:"paid_amount"`
	BasePaid       valueobject.Money `json:"base_paid"`
	PenaltyPaid    valueobject.Money `json:"penalty_paid"`
	Status         BillStatus        `json:"status"`
	PenaltyApplied bool              `json:"penalty_applied"`
	DueDate        time.Time         `json:"due_date"`
	Payments       PaymentRecords    `json:"payments"`
	Corrections    CorrectionRecords `json:"corrections"`
	PaidAt         *time.Time        `json:"paid_at"`
}

// NewBill generates the bill for a unit and period from its meter
// reading. The base charge is the consumption priced at the policy rate,
// rounded half away from zero to whole minor units, so regenerating from
// the same reading always yields the same charge.
func NewBill(
	clientID uuid.UUID,
	unitID uuid.UUID,
	period FiscalPeriod,
	reading *MeterReading,
	policy Policy,
) (*Bill, error) {
	if reading == nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Meter reading is required to generate a bill")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if reading.UnitID != unitID || reading.ClientID != clientID {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Meter reading does not belong to the unit")
	}
	if !reading.Period.Equal(period) {
		return nil, shared.NewDomainError("VALIDATION_ERROR",
			fmt.Sprintf("Meter reading is for period %s, not %s", reading.Period, period))
	}
	consumption := reading.Consumption()
	if consumption.IsNegative() {
		return nil, shared.NewDomainError("NEGATIVE_CONSUMPTION",
			fmt.Sprintf("Consumption for period %s is negative", period))
	}

	b := &Bill{
		ClientAggregateRoot: shared.NewClientAggregateRoot(clientID),
		UnitID:              unitID,
		Period:              period,
		Consumption:         consumption.String(),
		RatePerUnit:         policy.RatePerUnit,
		BaseCharge:          valueobject.RoundDecimal(consumption.Mul(policy.RatePerUnit.Decimal())),
		Status:              BillStatusUnpaid,
		DueDate:             period.DueDate(policy.FiscalStartMonth, policy.DueDayOffset),
		Payments:            PaymentRecords{},
		Corrections:         CorrectionRecords{},
	}
	// A zero-consumption bill has nothing to cover and is settled at birth.
	b.Status = b.deriveStatus()

	b.AddDomainEvent(NewBillGeneratedEvent(b))

	return b, nil
}

// Recompute replaces the charge of an unpaid, payment-free bill from a
// fresh reading. Bills with any recorded payment are immutable.
func (b *Bill) Recompute(reading *MeterReading, policy Policy) error {
	if b.HasPayments() {
		return shared.NewDomainError("IMMUTABLE_BILL",
			fmt.Sprintf("Bill %s for unit %s has recorded payments and cannot be recomputed", b.Period, b.UnitID))
	}
	if reading == nil {
		return shared.NewDomainError("VALIDATION_ERROR", "Meter reading is required to recompute a bill")
	}
	if err := policy.Validate(); err != nil {
		return err
	}
	consumption := reading.Consumption()
	if consumption.IsNegative() {
		return shared.NewDomainError("NEGATIVE_CONSUMPTION",
			fmt.Sprintf("Consumption for period %s is negative", b.Period))
	}

	b.Consumption = consumption.String()
	b.RatePerUnit = policy.RatePerUnit
	b.BaseCharge = valueobject.RoundDecimal(consumption.Mul(policy.RatePerUnit.Decimal()))
	b.DueDate = b.Period.DueDate(policy.FiscalStartMonth, policy.DueDayOffset)
	b.Status = b.deriveStatus()
	b.UpdatedAt = time.Now()
	b.IncrementVersion()

	b.AddDomainEvent(NewBillRecomputedEvent(b))

	return nil
}

// HasPayments returns true if any payment has been recorded
func (b *Bill) HasPayments() bool {
	return len(b.Payments) > 0 || b.PaidAmount.IsPositive() ||
		b.BasePaid.IsPositive() || b.PenaltyPaid.IsPositive()
}

// OutstandingBase returns the uncovered part of the base charge
func (b *Bill) OutstandingBase() valueobject.Money {
	return b.BaseCharge.Sub(b.BasePaid)
}

// OutstandingPenalty returns the uncovered part of the penalty
func (b *Bill) OutstandingPenalty() valueobject.Money {
	return b.PenaltyAmount.Sub(b.PenaltyPaid)
}

// ApplyPenalty accrues the late penalty once the due date has passed.
// It is idempotent per period: the accrual happens at most once, however
// often the penalty run executes.
func (b *Bill) ApplyPenalty(policy Policy, asOf time.Time) (bool, error) {
	if err := policy.Validate(); err != nil {
		return false, err
	}
	if b.Status.IsSettled() || b.PenaltyApplied {
		return false, nil
	}
	if asOf.Before(b.DueDate) {
		return false, nil
	}

	basis := b.OutstandingBase()
	if policy.PenaltyAccrual == AccrualCompound {
		basis = basis.Add(b.OutstandingPenalty())
	}
	if !basis.IsPositive() {
		return false, nil
	}

	accrued := valueobject.RoundDecimal(basis.Decimal().Mul(policy.PenaltyRate))
	if !accrued.IsPositive() {
		return false, nil
	}

	b.PenaltyAmount = b.PenaltyAmount.Add(accrued)
	b.PenaltyApplied = true
	b.Status = b.deriveStatus()
	b.UpdatedAt = time.Now()
	b.IncrementVersion()

	b.AddDomainEvent(NewPenaltyAppliedEvent(b, accrued))

	return true, nil
}

// ApplyPayment records one transaction's contribution to this bill:
// penaltyCash toward the outstanding penalty, baseCash toward the
// outstanding base, and creditDrawn toward the base from the unit's
// credit balance. The portions are computed by the payment cascade; the
// bill only enforces its own invariants.
func (b *Bill) ApplyPayment(
	transactionID string,
	penaltyCash valueobject.Money,
	baseCash valueobject.Money,
	creditDrawn valueobject.Money,
	appliedAt time.Time,
) error {
	if transactionID == "" {
		return shared.NewDomainError("VALIDATION_ERROR", "Transaction ID cannot be empty")
	}
	if penaltyCash.IsNegative() || baseCash.IsNegative() || creditDrawn.IsNegative() {
		return shared.NewDomainError("INVALID_AMOUNT", "Payment portions cannot be negative")
	}
	total := penaltyCash.Add(baseCash).Add(creditDrawn)
	if !total.IsPositive() {
		return shared.NewDomainError("INVALID_AMOUNT", "Payment must cover a positive amount")
	}
	if b.Status.IsSettled() {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Bill %s for unit %s is already paid", b.Period, b.UnitID))
	}
	if penaltyCash.Int64() > b.OutstandingPenalty().Int64() {
		return shared.NewDomainError("INVALID_AMOUNT",
			fmt.Sprintf("Penalty portion %s exceeds outstanding penalty %s", penaltyCash, b.OutstandingPenalty()))
	}
	baseCoverage := baseCash.Add(creditDrawn)
	if baseCoverage.Int64() > b.OutstandingBase().Int64() {
		return shared.NewDomainError("INVALID_AMOUNT",
			fmt.Sprintf("Base portion %s exceeds outstanding base %s", baseCoverage, b.OutstandingBase()))
	}

	record := PaymentRecord{
		ID:             uuid.New(),
		TransactionID:  transactionID,
		Amount:         penaltyCash.Add(baseCash),
		BaseChargePaid: baseCoverage,
		PenaltyPaid:    penaltyCash,
		AppliedAt:      appliedAt,
	}
	b.Payments = append(b.Payments, record)

	b.PaidAmount = b.PaidAmount.Add(record.Amount)
	b.BasePaid = b.BasePaid.Add(baseCoverage)
	b.PenaltyPaid = b.PenaltyPaid.Add(penaltyCash)

	b.Status = b.deriveStatus()
	if b.Status.IsSettled() && b.PaidAt == nil {
		now := appliedAt
		b.PaidAt = &now
		b.AddDomainEvent(NewBillPaidEvent(b))
	} else {
		b.AddDomainEvent(NewBillPaymentAppliedEvent(b, record))
	}

	b.UpdatedAt = time.Now()
	b.IncrementVersion()

	return nil
}

// Correct amends the bill's charge outside the normal payment flow. The
// amendment is recorded in the correction audit trail; charges can never
// be corrected below their already-covered amounts.
func (b *Bill) Correct(
	operatorID uuid.UUID,
	reason string,
	newBaseCharge valueobject.Money,
	newPenaltyAmount valueobject.Money,
) error {
	if operatorID == uuid.Nil {
		return shared.NewDomainError("VALIDATION_ERROR", "Operator ID is required for corrections")
	}
	if reason == "" {
		return shared.NewDomainError("VALIDATION_ERROR", "Correction reason is required")
	}
	if newBaseCharge.IsNegative() || newPenaltyAmount.IsNegative() {
		return shared.NewDomainError("INVALID_AMOUNT", "Corrected charges cannot be negative")
	}
	if newBaseCharge.Int64() < b.BasePaid.Int64() {
		return shared.NewDomainError("INVALID_AMOUNT",
			fmt.Sprintf("Corrected base charge %s is below covered amount %s", newBaseCharge, b.BasePaid))
	}
	if newPenaltyAmount.Int64() < b.PenaltyPaid.Int64() {
		return shared.NewDomainError("INVALID_AMOUNT",
			fmt.Sprintf("Corrected penalty %s is below covered amount %s", newPenaltyAmount, b.PenaltyPaid))
	}

	record := CorrectionRecord{
		ID:            uuid.New(),
		OperatorID:    operatorID,
		Reason:        reason,
		BaseBefore:    b.BaseCharge,
		BaseAfter:     newBaseCharge,
		PenaltyBefore: b.PenaltyAmount,
		PenaltyAfter:  newPenaltyAmount,
		CorrectedAt:   time.Now(),
	}
	b.Corrections = append(b.Corrections, record)

	b.BaseCharge = newBaseCharge
	b.PenaltyAmount = newPenaltyAmount
	b.Status = b.deriveStatus()
	b.UpdatedAt = time.Now()
	b.IncrementVersion()

	b.AddDomainEvent(NewBillCorrectedEvent(b, record))

	return nil
}

// deriveStatus computes the status from coverage accumulators. Cash-only
// totals must never be used here: a bill whose shortfall was covered by
// credit is paid even though PaidAmount is below BaseCharge.
func (b *Bill) deriveStatus() BillStatus {
	if b.BasePaid.Int64() >= b.BaseCharge.Int64() && b.PenaltyPaid.Int64() >= b.PenaltyAmount.Int64() {
		return BillStatusPaid
	}
	if b.BasePaid.IsPositive() || b.PenaltyPaid.IsPositive() {
		return BillStatusPartial
	}
	return BillStatusUnpaid
}

// TotalCharge returns base plus penalty, the full amount of the ledger
// charge line for statements.
func (b *Bill) TotalCharge() valueobject.Money {
	return b.BaseCharge.Add(b.PenaltyAmount)
}
