package billing

import (
	"fmt"
	"time"

	"github.com/propman/backend/internal/domain/shared"
	"github.com/propman/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// PenaltyAccrual selects how late penalties accrue on a bill.
type PenaltyAccrual string

const (
	// AccrualSimple accrues the penalty on the outstanding base charge only.
	AccrualSimple PenaltyAccrual = "SIMPLE"
	// AccrualCompound accrues the penalty on outstanding base plus any
	// previously accrued unpaid penalty.
	AccrualCompound PenaltyAccrual = "COMPOUND"
)

// IsValid returns true if the accrual mode is known.
func (a PenaltyAccrual) IsValid() bool {
	return a == AccrualSimple || a == AccrualCompound
}

// Policy holds the billing configuration of one client: how its fiscal
// year is laid out and how charges and penalties are computed.
type Policy struct {
	FiscalStartMonth time.Month        // first calendar month of the fiscal year (1..12)
	RatePerUnit      valueobject.Money // minor units charged per consumption unit
	PenaltyRate      decimal.Decimal   // fraction of outstanding base, e.g. 0.05
	DueDayOffset     int               // days after period start until the bill is due
	PenaltyAccrual   PenaltyAccrual
}

// Validate checks the policy for usable values.
func (p Policy) Validate() error {
	if p.FiscalStartMonth < time.January || p.FiscalStartMonth > time.December {
		return shared.NewDomainError("INVALID_POLICY",
			fmt.Sprintf("Fiscal start month must be in 1..12, got %d", p.FiscalStartMonth))
	}
	if p.RatePerUnit.IsNegative() {
		return shared.NewDomainError("INVALID_POLICY", "Rate per unit cannot be negative")
	}
	if p.PenaltyRate.IsNegative() {
		return shared.NewDomainError("INVALID_POLICY", "Penalty rate cannot be negative")
	}
	if p.DueDayOffset < 0 {
		return shared.NewDomainError("INVALID_POLICY", "Due day offset cannot be negative")
	}
	if !p.PenaltyAccrual.IsValid() {
		return shared.NewDomainError("INVALID_POLICY",
			fmt.Sprintf("Unknown penalty accrual mode %q", p.PenaltyAccrual))
	}
	return nil
}
