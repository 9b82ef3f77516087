package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/credit"
	"github.com/propman/backend/internal/domain/shared"
	"github.com/propman/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormCreditBalanceRepository implements credit.BalanceRepository using GORM
type GormCreditBalanceRepository struct {
	db *gorm.DB
}

// NewGormCreditBalanceRepository creates a new GormCreditBalanceRepository
func NewGormCreditBalanceRepository(db *gorm.DB) *GormCreditBalanceRepository {
	return &GormCreditBalanceRepository{db: db}
}

// FindByUnit returns the unit's balance, or ErrNotFound if the unit never
// accumulated credit
func (r *GormCreditBalanceRepository) FindByUnit(ctx context.Context, clientID, unitID uuid.UUID) (*credit.CreditBalance, error) {
	var model models.CreditBalanceModel
	if err := r.db.WithContext(ctx).
		Where("client_id = ? AND unit_id = ?", clientID, unitID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates a credit balance
func (r *GormCreditBalanceRepository) Save(ctx context.Context, balance *credit.CreditBalance) error {
	model := models.CreditBalanceModelFromDomain(balance)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves with optimistic locking. Columns are selected
// explicitly so a balance drawn down to zero is still persisted, which a
// struct-form Updates would skip as a zero field.
func (r *GormCreditBalanceRepository) SaveWithLock(ctx context.Context, balance *credit.CreditBalance) error {
	model := models.CreditBalanceModelFromDomain(balance)
	result := r.db.WithContext(ctx).
		Model(model).
		Where("id = ? AND version = ?", balance.ID, balance.Version-1).
		Select("version", "balance", "updated_at").
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("OPTIMISTIC_LOCK_ERROR", "The credit balance has been modified by another transaction")
	}
	return nil
}

// GormCreditTransactionRepository implements credit.TransactionRepository using GORM
type GormCreditTransactionRepository struct {
	db *gorm.DB
}

// NewGormCreditTransactionRepository creates a new GormCreditTransactionRepository
func NewGormCreditTransactionRepository(db *gorm.DB) *GormCreditTransactionRepository {
	return &GormCreditTransactionRepository{db: db}
}

// Create appends a credit transaction to the history
func (r *GormCreditTransactionRepository) Create(ctx context.Context, txn *credit.CreditTransaction) error {
	model := models.CreditTransactionModelFromDomain(txn)
	return r.db.WithContext(ctx).Create(model).Error
}

// ListByUnit returns a page of the unit's credit history, newest first by
// default
func (r *GormCreditTransactionRepository) ListByUnit(ctx context.Context, clientID, unitID uuid.UUID, filter shared.Filter) (*shared.Paginated[*credit.CreditTransaction], error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = shared.DefaultFilter().PageSize
	}

	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.CreditTransactionModel{}).
		Where("client_id = ? AND unit_id = ?", clientID, unitID).
		Count(&total).Error; err != nil {
		return nil, err
	}

	var txnModels []models.CreditTransactionModel
	if err := r.db.WithContext(ctx).
		Where("client_id = ? AND unit_id = ?", clientID, unitID).
		Order(creditHistoryOrder(filter)).
		Offset((filter.Page - 1) * filter.PageSize).
		Limit(filter.PageSize).
		Find(&txnModels).Error; err != nil {
		return nil, err
	}

	txns := make([]*credit.CreditTransaction, len(txnModels))
	for i := range txnModels {
		txns[i] = txnModels[i].ToDomain()
	}
	page := shared.NewPaginated(txns, total, filter.Page, filter.PageSize)
	return &page, nil
}

// creditHistoryOrder whitelists sortable columns so filter input cannot
// inject SQL
func creditHistoryOrder(filter shared.Filter) string {
	column := "created_at"
	switch filter.OrderBy {
	case "created_at", "amount", "type":
		column = filter.OrderBy
	}
	direction := "DESC"
	if strings.EqualFold(filter.OrderDir, "asc") {
		direction = "ASC"
	}
	return fmt.Sprintf("%s %s", column, direction)
}
