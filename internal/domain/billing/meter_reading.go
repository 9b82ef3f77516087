package billing

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// MeterReading records the metered consumption of one unit for one
// fiscal period. Readings are append-only per period and become immutable
// once a bill has been generated from them.
type MeterReading struct {
	shared.BaseEntity
	ClientID       uuid.UUID
	UnitID         uuid.UUID
	Period         FiscalPeriod
	CurrentReading decimal.Decimal
	PriorReading   decimal.Decimal
	Billed         bool
}

// NewMeterReading creates a meter reading. A current reading below the
// prior one indicates meter rollover or a data-entry error and is
// rejected rather than clamped.
func NewMeterReading(
	clientID uuid.UUID,
	unitID uuid.UUID,
	period FiscalPeriod,
	currentReading decimal.Decimal,
	priorReading decimal.Decimal,
) (*MeterReading, error) {
	if clientID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CLIENT", "Client ID cannot be empty")
	}
	if unitID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_UNIT", "Unit ID cannot be empty")
	}
	if currentReading.IsNegative() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Current reading cannot be negative")
	}
	if priorReading.IsNegative() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Prior reading cannot be negative")
	}
	if currentReading.LessThan(priorReading) {
		return nil, shared.NewDomainError("NEGATIVE_CONSUMPTION",
			fmt.Sprintf("Current reading %s is below prior reading %s for period %s",
				currentReading, priorReading, period))
	}

	return &MeterReading{
		BaseEntity:     shared.NewBaseEntity(),
		ClientID:       clientID,
		UnitID:         unitID,
		Period:         period,
		CurrentReading: currentReading,
		PriorReading:   priorReading,
	}, nil
}

// Consumption returns the metered consumption for the period.
func (r *MeterReading) Consumption() decimal.Decimal {
	return r.CurrentReading.Sub(r.PriorReading)
}

// MarkBilled flags the reading as consumed by bill generation, after
// which it may no longer be replaced.
func (r *MeterReading) MarkBilled() {
	r.Billed = true
}
