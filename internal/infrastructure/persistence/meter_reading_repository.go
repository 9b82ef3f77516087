package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/billing"
	"github.com/propman/backend/internal/domain/shared"
	"github.com/propman/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormMeterReadingRepository implements billing.MeterReadingRepository using GORM
type GormMeterReadingRepository struct {
	db *gorm.DB
}

// NewGormMeterReadingRepository creates a new GormMeterReadingRepository
func NewGormMeterReadingRepository(db *gorm.DB) *GormMeterReadingRepository {
	return &GormMeterReadingRepository{db: db}
}

// FindByUnitAndPeriod finds the reading of a unit for one fiscal period
func (r *GormMeterReadingRepository) FindByUnitAndPeriod(ctx context.Context, clientID, unitID uuid.UUID, period billing.FiscalPeriod) (*billing.MeterReading, error) {
	var model models.MeterReadingModel
	if err := r.db.WithContext(ctx).
		Where("client_id = ? AND unit_id = ? AND fiscal_year = ? AND fiscal_month = ?",
			clientID, unitID, period.Year, period.Month).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindLatestByUnit returns the unit's latest reading in fiscal order,
// used to chain the prior reading of the next period
func (r *GormMeterReadingRepository) FindLatestByUnit(ctx context.Context, clientID, unitID uuid.UUID) (*billing.MeterReading, error) {
	var model models.MeterReadingModel
	if err := r.db.WithContext(ctx).
		Where("client_id = ? AND unit_id = ?", clientID, unitID).
		Order("fiscal_year DESC, fiscal_month DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByClientAndYear returns all readings of a client's fiscal year
func (r *GormMeterReadingRepository) FindByClientAndYear(ctx context.Context, clientID uuid.UUID, fiscalYear int) ([]*billing.MeterReading, error) {
	var readingModels []models.MeterReadingModel
	if err := r.db.WithContext(ctx).
		Where("client_id = ? AND fiscal_year = ?", clientID, fiscalYear).
		Order("unit_id ASC, fiscal_month ASC").
		Find(&readingModels).Error; err != nil {
		return nil, err
	}
	readings := make([]*billing.MeterReading, len(readingModels))
	for i := range readingModels {
		readings[i] = readingModels[i].ToDomain()
	}
	return readings, nil
}

// Save creates or updates a meter reading. Resubmitting an unbilled
// period reuses the existing row's ID, so this upserts by primary key.
func (r *GormMeterReadingRepository) Save(ctx context.Context, reading *billing.MeterReading) error {
	model := models.MeterReadingModelFromDomain(reading)
	return r.db.WithContext(ctx).Save(model).Error
}
