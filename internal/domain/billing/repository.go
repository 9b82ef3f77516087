package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BillRepository defines the persistence contract for bills. All lookups
// are client-scoped.
type BillRepository interface {
	FindByID(ctx context.Context, clientID, id uuid.UUID) (*Bill, error)
	FindByUnitAndPeriod(ctx context.Context, clientID, unitID uuid.UUID, period FiscalPeriod) (*Bill, error)
	// FindOutstandingByUnit returns the unit's unsettled bills ordered
	// oldest first (fiscal year, then fiscal month ascending). The
	// payment cascade depends on this ordering.
	FindOutstandingByUnit(ctx context.Context, clientID, unitID uuid.UUID) ([]*Bill, error)
	FindByClientAndYear(ctx context.Context, clientID uuid.UUID, fiscalYear int) ([]*Bill, error)
	FindByUnitAndYear(ctx context.Context, clientID, unitID uuid.UUID, fiscalYear int) ([]*Bill, error)
	// FindDueUnpaid returns unsettled bills whose due date is at or
	// before asOf and that have not yet accrued a penalty.
	FindDueUnpaid(ctx context.Context, clientID uuid.UUID, asOf time.Time) ([]*Bill, error)
	ExistsForUnit(ctx context.Context, clientID, unitID uuid.UUID) (bool, error)
	Save(ctx context.Context, bill *Bill) error
	// SaveWithLock persists the bill only if the stored row still holds
	// the previous version, returning a concurrency conflict otherwise.
	SaveWithLock(ctx context.Context, bill *Bill) error
}

// MeterReadingRepository defines the persistence contract for meter readings
type MeterReadingRepository interface {
	FindByUnitAndPeriod(ctx context.Context, clientID, unitID uuid.UUID, period FiscalPeriod) (*MeterReading, error)
	// FindLatestByUnit returns the unit's chronologically latest reading,
	// used to chain the prior reading of a new period.
	FindLatestByUnit(ctx context.Context, clientID, unitID uuid.UUID) (*MeterReading, error)
	FindByClientAndYear(ctx context.Context, clientID uuid.UUID, fiscalYear int) ([]*MeterReading, error)
	Save(ctx context.Context, reading *MeterReading) error
}

// YearMarker records when any bill of a client's fiscal year last
// changed. The aggregated year view compares its cached timestamp against
// this marker to detect staleness.
type YearMarker struct {
	ClientID    uuid.UUID
	FiscalYear  int
	LastUpdated time.Time
}

// YearMarkerRepository defines the persistence contract for year markers
type YearMarkerRepository interface {
	// GetLastUpdated returns the marker timestamp, or the zero time if no
	// bill of that year was ever touched.
	GetLastUpdated(ctx context.Context, clientID uuid.UUID, fiscalYear int) (time.Time, error)
	// Touch bumps the marker to now, creating it if absent. It is called
	// inside the same transaction as the bill mutation it marks.
	Touch(ctx context.Context, clientID uuid.UUID, fiscalYear int) error
}
