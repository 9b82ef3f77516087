package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/billing"
	"github.com/propman/backend/internal/domain/shared"
	"github.com/propman/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormBillRepository implements billing.BillRepository using GORM
type GormBillRepository struct {
	db *gorm.DB
}

// NewGormBillRepository creates a new GormBillRepository
func NewGormBillRepository(db *gorm.DB) *GormBillRepository {
	return &GormBillRepository{db: db}
}

var outstandingStatuses = []billing.BillStatus{billing.BillStatusUnpaid, billing.BillStatusPartial}

// FindByID finds a bill by its ID within a client scope
func (r *GormBillRepository) FindByID(ctx context.Context, clientID, id uuid.UUID) (*billing.Bill, error) {
	var model models.BillModel
	if err := r.db.WithContext(ctx).
		Where("client_id = ? AND id = ?", clientID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByUnitAndPeriod finds the bill of a unit for one fiscal period
func (r *GormBillRepository) FindByUnitAndPeriod(ctx context.Context, clientID, unitID uuid.UUID, period billing.FiscalPeriod) (*billing.Bill, error) {
	var model models.BillModel
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

// FindOutstandingByUnit returns the unit's unsettled bills oldest first.
// The cascade allocator walks this order, so it is part of the contract.
func (r *GormBillRepository) FindOutstandingByUnit(ctx context.Context, clientID, unitID uuid.UUID) ([]*billing.Bill, error) {
	var billModels []models.BillModel
	if err := r.db.WithContext(ctx).
		Where("client_id = ? AND unit_id = ? AND status IN ?", clientID, unitID, outstandingStatuses).
		Order("fiscal_year ASC, fiscal_month ASC").
		Find(&billModels).Error; err != nil {
		return nil, err
	}
	return toDomainBills(billModels), nil
}

// FindByClientAndYear returns all bills of a client's fiscal year
func (r *GormBillRepository) FindByClientAndYear(ctx context.Context, clientID uuid.UUID, fiscalYear int) ([]*billing.Bill, error) {
	var billModels []models.BillModel
	if err := r.db.WithContext(ctx).
		Where("client_id = ? AND fiscal_year = ?", clientID, fiscalYear).
		Order("unit_id ASC, fiscal_month ASC").
		Find(&billModels).Error; err != nil {
		return nil, err
	}
	return toDomainBills(billModels), nil
}

// FindByUnitAndYear returns a unit's bills of one fiscal year ordered by month
func (r *GormBillRepository) FindByUnitAndYear(ctx context.Context, clientID, unitID uuid.UUID, fiscalYear int) ([]*billing.Bill, error) {
	var billModels []models.BillModel
	if err := r.db.WithContext(ctx).
		Where("client_id = ? AND unit_id = ? AND fiscal_year = ?", clientID, unitID, fiscalYear).
		Order("fiscal_month ASC").
		Find(&billModels).Error; err != nil {
		return nil, err
	}
	return toDomainBills(billModels), nil
}

// FindDueUnpaid returns unsettled bills past due as of asOf that have not
// yet accrued a penalty
func (r *GormBillRepository) FindDueUnpaid(ctx context.Context, clientID uuid.UUID, asOf time.Time) ([]*billing.Bill, error) {
	var billModels []models.BillModel
	if err := r.db.WithContext(ctx).
		Where("client_id = ? AND status IN ? AND penalty_applied = ? AND due_date <= ?",
			clientID, outstandingStatuses, false, asOf).
		Order("fiscal_year ASC, fiscal_month ASC").
		Find(&billModels).Error; err != nil {
		return nil, err
	}
	return toDomainBills(billModels), nil
}

// ExistsForUnit reports whether the unit has any bill at all
func (r *GormBillRepository) ExistsForUnit(ctx context.Context, clientID, unitID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.BillModel{}).
		Where("client_id = ? AND unit_id = ?", clientID, unitID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save creates or updates a bill
func (r *GormBillRepository) Save(ctx context.Context, bill *billing.Bill) error {
	model := models.BillModelFromDomain(bill)
	return r.db.WithContext(ctx).Save(model).Error
}

// billMutableColumns are the columns SaveWithLock writes. The list is
// explicit because a struct-form Updates would skip zero-valued fields,
// silently dropping corrections that zero a charge or penalty.
var billMutableColumns = []string{
	"version", "consumption", "rate_per_unit", "base_charge",
	"penalty_amount", "paid_amount", "base_paid", "penalty_paid",
	"status", "penalty_applied", "due_date", "payments", "corrections",
	"paid_at", "updated_at",
}

// SaveWithLock saves with optimistic locking
func (r *GormBillRepository) SaveWithLock(ctx context.Context, bill *billing.Bill) error {
	model := models.BillModelFromDomain(bill)
	result := r.db.WithContext(ctx).
		Model(model).
		Where("id = ? AND version = ?", bill.ID, bill.Version-1).
		Select(billMutableColumns).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("OPTIMISTIC_LOCK_ERROR", "The bill has been modified by another transaction")
	}
	return nil
}

func toDomainBills(billModels []models.BillModel) []*billing.Bill {
	bills := make([]*billing.Bill, len(billModels))
	for i := range billModels {
		bills[i] = billModels[i].ToDomain()
	}
	return bills
}
