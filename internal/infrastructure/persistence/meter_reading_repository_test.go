package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/billing"
	"github.com/propman/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saveReading(t *testing.T, repo *GormMeterReadingRepository, clientID, unitID uuid.UUID, period billing.FiscalPeriod, current, prior int64) *billing.MeterReading {
	t.Helper()
	reading, err := billing.NewMeterReading(clientID, unitID, period,
		decimal.NewFromInt(current), decimal.NewFromInt(prior))
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), reading))
	return reading
}

func TestGormMeterReadingRepository_FindByUnitAndPeriod(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormMeterReadingRepository(db)
	ctx := context.Background()

	clientID := uuid.New()
	unitID := uuid.New()
	period := billing.FiscalPeriod{Year: 2026, Month: 2}
	reading := saveReading(t, repo, clientID, unitID, period, 150, 100)

	found, err := repo.FindByUnitAndPeriod(ctx, clientID, unitID, period)
	require.NoError(t, err)
	assert.Equal(t, reading.ID, found.ID)
	assert.True(t, found.CurrentReading.Equal(decimal.NewFromInt(150)))
	assert.True(t, found.PriorReading.Equal(decimal.NewFromInt(100)))
	assert.False(t, found.Billed)

	_, err = repo.FindByUnitAndPeriod(ctx, clientID, unitID, billing.FiscalPeriod{Year: 2026, Month: 3})
	assert.Equal(t, "NOT_FOUND", shared.ErrorCode(err))
}

func TestGormMeterReadingRepository_FindLatestByUnit(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormMeterReadingRepository(db)
	ctx := context.Background()

	clientID := uuid.New()
	unitID := uuid.New()

	// Latest is by fiscal order, not insertion order.
	saveReading(t, repo, clientID, unitID, billing.FiscalPeriod{Year: 2026, Month: 1}, 120, 100)
	saveReading(t, repo, clientID, unitID, billing.FiscalPeriod{Year: 2025, Month: 11}, 100, 80)
	saveReading(t, repo, clientID, unitID, billing.FiscalPeriod{Year: 2026, Month: 0}, 110, 100)

	latest, err := repo.FindLatestByUnit(ctx, clientID, unitID)
	require.NoError(t, err)
	assert.Equal(t, billing.FiscalPeriod{Year: 2026, Month: 1}, latest.Period)

	_, err = repo.FindLatestByUnit(ctx, clientID, uuid.New())
	assert.Equal(t, "NOT_FOUND", shared.ErrorCode(err))
}

func TestGormMeterReadingRepository_SaveReplacesByID(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormMeterReadingRepository(db)
	ctx := context.Background()

	clientID := uuid.New()
	unitID := uuid.New()
	period := billing.FiscalPeriod{Year: 2026, Month: 4}
	original := saveReading(t, repo, clientID, unitID, period, 150, 100)

	// Resubmission reuses the stored row's ID, as the ingestion service does.
	corrected, err := billing.NewMeterReading(clientID, unitID, period,
		decimal.NewFromInt(160), decimal.NewFromInt(100))
	require.NoError(t, err)
	corrected.ID = original.ID
	require.NoError(t, repo.Save(ctx, corrected))

	found, err := repo.FindByUnitAndPeriod(ctx, clientID, unitID, period)
	require.NoError(t, err)
	assert.Equal(t, original.ID, found.ID)
	assert.True(t, found.CurrentReading.Equal(decimal.NewFromInt(160)))

	var count int64
	require.NoError(t, db.Table("meter_readings").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGormMeterReadingRepository_FindByClientAndYear(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormMeterReadingRepository(db)
	ctx := context.Background()

	clientID := uuid.New()
	unitID := uuid.New()

	saveReading(t, repo, clientID, unitID, billing.FiscalPeriod{Year: 2026, Month: 0}, 110, 100)
	saveReading(t, repo, clientID, unitID, billing.FiscalPeriod{Year: 2026, Month: 1}, 120, 110)
	saveReading(t, repo, clientID, unitID, billing.FiscalPeriod{Year: 2025, Month: 0}, 90, 80)

	readings, err := repo.FindByClientAndYear(ctx, clientID, 2026)
	require.NoError(t, err)
	assert.Len(t, readings, 2)
}
