package persistence

import (
	"context"

	appbilling "github.com/propman/backend/internal/application/billing"
	"github.com/propman/backend/internal/domain/billing"
	"github.com/propman/backend/internal/domain/credit"
	"gorm.io/gorm"
)

// GormUnitOfWork implements the application's UnitOfWork contract on top
// of a GORM transaction. Every repository handed to the callback is bound
// to the same transaction, so a failed cascade rolls back bills, credit
// and year markers together.
type GormUnitOfWork struct {
	db *gorm.DB
}

// NewGormUnitOfWork creates a new GormUnitOfWork
func NewGormUnitOfWork(db *gorm.DB) *GormUnitOfWork {
	return &GormUnitOfWork{db: db}
}

// Execute runs fn inside a database transaction
func (u *GormUnitOfWork) Execute(ctx context.Context, fn func(repos appbilling.RepositoryBundle) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newGormRepositoryBundle(tx))
	})
}

// gormRepositoryBundle serves transaction-bound repositories.
type gormRepositoryBundle struct {
	bills    *GormBillRepository
	readings *GormMeterReadingRepository
	balances *GormCreditBalanceRepository
	txns     *GormCreditTransactionRepository
	markers  *GormYearMarkerRepository
}

func newGormRepositoryBundle(tx *gorm.DB) *gormRepositoryBundle {
	return &gormRepositoryBundle{
		bills:    NewGormBillRepository(tx),
		readings: NewGormMeterReadingRepository(tx),
		balances: NewGormCreditBalanceRepository(tx),
		txns:     NewGormCreditTransactionRepository(tx),
		markers:  NewGormYearMarkerRepository(tx),
	}
}

func (b *gormRepositoryBundle) Bills() billing.BillRepository { return b.bills }

func (b *gormRepositoryBundle) Readings() billing.MeterReadingRepository { return b.readings }

func (b *gormRepositoryBundle) CreditBalances() credit.BalanceRepository { return b.balances }

func (b *gormRepositoryBundle) CreditTransactions() credit.TransactionRepository { return b.txns }

func (b *gormRepositoryBundle) YearMarkers() billing.YearMarkerRepository { return b.markers }
