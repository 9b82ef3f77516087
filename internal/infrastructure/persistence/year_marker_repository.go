package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/propman/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormYearMarkerRepository implements billing.YearMarkerRepository using GORM
type GormYearMarkerRepository struct {
	db *gorm.DB
}

// NewGormYearMarkerRepository creates a new GormYearMarkerRepository
func NewGormYearMarkerRepository(db *gorm.DB) *GormYearMarkerRepository {
	return &GormYearMarkerRepository{db: db}
}

// GetLastUpdated returns the marker timestamp for a client's fiscal year,
// or the zero time if no bill of that year was ever touched
func (r *GormYearMarkerRepository) GetLastUpdated(ctx context.Context, clientID uuid.UUID, fiscalYear int) (time.Time, error) {
	var model models.YearMarkerModel
	if err := r.db.WithContext(ctx).
		Where("client_id = ? AND fiscal_year = ?", clientID, fiscalYear).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return model.LastUpdated, nil
}

// Touch bumps the marker to now, creating the row if absent. ON CONFLICT
// handles concurrent first touches of the same year.
func (r *GormYearMarkerRepository) Touch(ctx context.Context, clientID uuid.UUID, fiscalYear int) error {
	marker := models.YearMarkerModel{
		ClientID:    clientID,
		FiscalYear:  fiscalYear,
		LastUpdated: time.Now(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "client_id"}, {Name: "fiscal_year"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"last_updated": marker.LastUpdated}),
		}).
		Create(&marker).Error
}
