package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/billing"
	"github.com/propman/backend/internal/domain/shared"
	"github.com/propman/backend/internal/domain/shared/valueobject"
	"github.com/propman/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupBillingTestDB creates an in-memory SQLite database with the billing schema
func setupBillingTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.BillModel{},
		&models.MeterReadingModel{},
		&models.YearMarkerModel{},
		&models.CreditBalanceModel{},
		&models.CreditTransactionModel{},
	)
	require.NoError(t, err)
	return db
}

func sqlitePolicy() billing.Policy {
	return billing.Policy{
		FiscalStartMonth: time.July,
		RatePerUnit:      valueobject.NewMoney(5000),
		PenaltyRate:      decimal.NewFromFloat(0.05),
		DueDayOffset:     14,
		PenaltyAccrual:   billing.AccrualSimple,
	}
}

// makeBill builds a domain bill for the given period with units * 5000 base charge
func makeBill(t *testing.T, clientID, unitID uuid.UUID, period billing.FiscalPeriod, units int64) *billing.Bill {
	t.Helper()
	reading, err := billing.NewMeterReading(clientID, unitID, period,
		decimal.NewFromInt(units), decimal.Zero)
	require.NoError(t, err)

	bill, err := billing.NewBill(clientID, unitID, period, reading, sqlitePolicy())
	require.NoError(t, err)
	return bill
}

func TestGormBillRepository_SaveAndFindByID(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormBillRepository(db)
	ctx := context.Background()

	clientID := uuid.New()
	unitID := uuid.New()
	period := billing.FiscalPeriod{Year: 2026, Month: 3}
	bill := makeBill(t, clientID, unitID, period, 20)

	require.NoError(t, repo.Save(ctx, bill))

	found, err := repo.FindByID(ctx, clientID, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, bill.ID, found.ID)
	assert.Equal(t, period, found.Period)
	assert.Equal(t, valueobject.NewMoney(100000), found.BaseCharge)
	assert.Equal(t, billing.BillStatusUnpaid, found.Status)
	assert.Equal(t, "20", found.Consumption)

	t.Run("scoped to client", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New(), bill.ID)
		assert.Equal(t, "NOT_FOUND", shared.ErrorCode(err))
	})
}

func TestGormBillRepository_PaymentRecordsRoundTrip(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormBillRepository(db)
	ctx := context.Background()

	clientID := uuid.New()
	unitID := uuid.New()
	bill := makeBill(t, clientID, unitID, billing.FiscalPeriod{Year: 2026, Month: 0}, 10)
	require.NoError(t, repo.Save(ctx, bill))

	require.NoError(t, bill.ApplyPayment("TXN-001",
		valueobject.Zero, valueobject.NewMoney(30000), valueobject.Zero, time.Now()))
	require.NoError(t, repo.SaveWithLock(ctx, bill))

	found, err := repo.FindByID(ctx, clientID, bill.ID)
	require.NoError(t, err)
	require.Len(t, found.Payments, 1)
	assert.Equal(t, "TXN-001", found.Payments[0].TransactionID)
	assert.Equal(t, valueobject.NewMoney(30000), found.Payments[0].Amount)
	assert.Equal(t, valueobject.NewMoney(30000), found.PaidAmount)
	assert.Equal(t, billing.BillStatusPartial, found.Status)
	assert.Equal(t, bill.Version, found.Version)
}

func TestGormBillRepository_FindByUnitAndPeriod(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormBillRepository(db)
	ctx := context.Background()

	clientID := uuid.New()
	unitID := uuid.New()
	period := billing.FiscalPeriod{Year: 2026, Month: 5}
	bill := makeBill(t, clientID, unitID, period, 12)
	require.NoError(t, repo.Save(ctx, bill))

	found, err := repo.FindByUnitAndPeriod(ctx, clientID, unitID, period)
	require.NoError(t, err)
	assert.Equal(t, bill.ID, found.ID)

	_, err = repo.FindByUnitAndPeriod(ctx, clientID, unitID, billing.FiscalPeriod{Year: 2026, Month: 6})
	assert.Equal(t, "NOT_FOUND", shared.ErrorCode(err))
}

func TestGormBillRepository_FindOutstandingByUnit(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormBillRepository(db)
	ctx := context.Background()

	clientID := uuid.New()
	unitID := uuid.New()

	// Insert out of order, expect fiscal order back.
	months := []int{3, 0, 2}
	for _, m := range months {
		bill := makeBill(t, clientID, unitID, billing.FiscalPeriod{Year: 2026, Month: m}, 10)
		require.NoError(t, repo.Save(ctx, bill))
	}

	settled := makeBill(t, clientID, unitID, billing.FiscalPeriod{Year: 2026, Month: 1}, 10)
	require.NoError(t, settled.ApplyPayment("TXN-FULL",
		valueobject.Zero, settled.BaseCharge, valueobject.Zero, time.Now()))
	require.NoError(t, repo.Save(ctx, settled))

	outstanding, err := repo.FindOutstandingByUnit(ctx, clientID, unitID)
	require.NoError(t, err)
	require.Len(t, outstanding, 3)
	assert.Equal(t, 0, outstanding[0].Period.Month)
	assert.Equal(t, 2, outstanding[1].Period.Month)
	assert.Equal(t, 3, outstanding[2].Period.Month)
}

func TestGormBillRepository_FindDueUnpaid(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormBillRepository(db)
	ctx := context.Background()

	clientID := uuid.New()
	unitID := uuid.New()

	// FY2026-M00 is July 2025, due mid-July; M06 is January 2026.
	early := makeBill(t, clientID, unitID, billing.FiscalPeriod{Year: 2026, Month: 0}, 10)
	late := makeBill(t, clientID, unitID, billing.FiscalPeriod{Year: 2026, Month: 6}, 10)
	require.NoError(t, repo.Save(ctx, early))
	require.NoError(t, repo.Save(ctx, late))

	asOf := time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC)
	due, err := repo.FindDueUnpaid(ctx, clientID, asOf)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, early.ID, due[0].ID)

	t.Run("excludes bills that already accrued", func(t *testing.T) {
		_, err := early.ApplyPenalty(sqlitePolicy(), asOf)
		require.NoError(t, err)
		require.NoError(t, repo.SaveWithLock(ctx, early))

		due, err := repo.FindDueUnpaid(ctx, clientID, asOf)
		require.NoError(t, err)
		assert.Empty(t, due)
	})
}

func TestGormBillRepository_ExistsForUnit(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormBillRepository(db)
	ctx := context.Background()

	clientID := uuid.New()
	unitID := uuid.New()

	exists, err := repo.ExistsForUnit(ctx, clientID, unitID)
	require.NoError(t, err)
	assert.False(t, exists)

	bill := makeBill(t, clientID, unitID, billing.FiscalPeriod{Year: 2026, Month: 0}, 10)
	require.NoError(t, repo.Save(ctx, bill))

	exists, err = repo.ExistsForUnit(ctx, clientID, unitID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestGormBillRepository_SaveWithLock_Conflict(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormBillRepository(db)
	ctx := context.Background()

	clientID := uuid.New()
	unitID := uuid.New()
	bill := makeBill(t, clientID, unitID, billing.FiscalPeriod{Year: 2026, Month: 0}, 10)
	require.NoError(t, repo.Save(ctx, bill))

	// Two readers pick up version 1.
	first, err := repo.FindByID(ctx, clientID, bill.ID)
	require.NoError(t, err)
	second, err := repo.FindByID(ctx, clientID, bill.ID)
	require.NoError(t, err)

	require.NoError(t, first.ApplyPayment("TXN-A",
		valueobject.Zero, valueobject.NewMoney(10000), valueobject.Zero, time.Now()))
	require.NoError(t, repo.SaveWithLock(ctx, first))

	require.NoError(t, second.ApplyPayment("TXN-B",
		valueobject.Zero, valueobject.NewMoney(10000), valueobject.Zero, time.Now()))
	err = repo.SaveWithLock(ctx, second)
	assert.Equal(t, "OPTIMISTIC_LOCK_ERROR", shared.ErrorCode(err))

	// The stored row keeps the first writer's state.
	found, err := repo.FindByID(ctx, clientID, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.NewMoney(10000), found.PaidAmount)
	require.Len(t, found.Payments, 1)
	assert.Equal(t, "TXN-A", found.Payments[0].TransactionID)
}

func TestGormBillRepository_SaveWithLock_PersistsZeroedPenalty(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormBillRepository(db)
	ctx := context.Background()

	clientID := uuid.New()
	unitID := uuid.New()
	operatorID := uuid.New()
	bill := makeBill(t, clientID, unitID, billing.FiscalPeriod{Year: 2026, Month: 0}, 10)

	applied, err := bill.ApplyPenalty(sqlitePolicy(), bill.DueDate.Add(24*time.Hour))
	require.NoError(t, err)
	require.True(t, applied)
	require.NoError(t, repo.Save(ctx, bill))

	// A correction that waives the penalty writes zero-valued columns;
	// the update must not drop them.
	require.NoError(t, bill.Correct(operatorID, "penalty waived", bill.BaseCharge, valueobject.Zero))
	require.NoError(t, repo.SaveWithLock(ctx, bill))

	found, err := repo.FindByID(ctx, clientID, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.Zero, found.PenaltyAmount)
	assert.Equal(t, bill.Version, found.Version)
	require.Len(t, found.Corrections, 1)
	assert.Equal(t, valueobject.NewMoney(2500), found.Corrections[0].PenaltyBefore)
	assert.Equal(t, valueobject.Zero, found.Corrections[0].PenaltyAfter)
}

func TestGormBillRepository_FindByUnitAndYear(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormBillRepository(db)
	ctx := context.Background()

	clientID := uuid.New()
	unitID := uuid.New()
	otherUnit := uuid.New()

	for _, m := range []int{4, 1} {
		require.NoError(t, repo.Save(ctx, makeBill(t, clientID, unitID, billing.FiscalPeriod{Year: 2026, Month: m}, 10)))
	}
	require.NoError(t, repo.Save(ctx, makeBill(t, clientID, unitID, billing.FiscalPeriod{Year: 2025, Month: 1}, 10)))
	require.NoError(t, repo.Save(ctx, makeBill(t, clientID, otherUnit, billing.FiscalPeriod{Year: 2026, Month: 1}, 10)))

	bills, err := repo.FindByUnitAndYear(ctx, clientID, unitID, 2026)
	require.NoError(t, err)
	require.Len(t, bills, 2)
	assert.Equal(t, 1, bills[0].Period.Month)
	assert.Equal(t, 4, bills[1].Period.Month)

	all, err := repo.FindByClientAndYear(ctx, clientID, 2026)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
