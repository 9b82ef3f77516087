package models

import (
	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/credit"
	"github.com/propman/backend/internal/domain/shared/valueobject"
)

// CreditBalanceModel is the persistence model for the CreditBalance
// aggregate root. One row per unit.
type CreditBalanceModel struct {
	ClientAggregateModel
	UnitID  uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex"`
	Balance valueobject.Money `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (CreditBalanceModel) TableName() string {
	return "credit_balances"
}

// ToDomain converts the persistence model to a domain CreditBalance entity.
func (m *CreditBalanceModel) ToDomain() *credit.CreditBalance {
	return &credit.CreditBalance{
		ClientAggregateRoot: m.toDomainClientAggregateRoot(),
		UnitID:              m.UnitID,
		Balance:             m.Balance,
	}
}

// FromDomain populates the persistence model from a domain CreditBalance entity.
func (m *CreditBalanceModel) FromDomain(b *credit.CreditBalance) {
	m.FromDomainClientAggregateRoot(b.ClientAggregateRoot)
	m.UnitID = b.UnitID
	m.Balance = b.Balance
}

// CreditBalanceModelFromDomain creates a new persistence model from a domain CreditBalance.
func CreditBalanceModelFromDomain(b *credit.CreditBalance) *CreditBalanceModel {
	m := &CreditBalanceModel{}
	m.FromDomain(b)
	return m
}

// CreditTransactionModel is the persistence model for the append-only
// credit history.
type CreditTransactionModel struct {
	BaseModel
	ClientID            uuid.UUID              `gorm:"type:uuid;not null;index"`
	UnitID              uuid.UUID              `gorm:"type:uuid;not null;index"`
	Type                credit.TransactionType `gorm:"type:varchar(12);not null"`
	Amount              valueobject.Money      `gorm:"not null"`
	BalanceBefore       valueobject.Money      `gorm:"not null"`
	BalanceAfter        valueobject.Money      `gorm:"not null"`
	SourceTransactionID string                 `gorm:"type:varchar(100);index"`
}

// TableName returns the table name for GORM
func (CreditTransactionModel) TableName() string {
	return "credit_transactions"
}

// ToDomain converts the persistence model to a domain CreditTransaction entity.
func (m *CreditTransactionModel) ToDomain() *credit.CreditTransaction {
	return &credit.CreditTransaction{
		BaseEntity:          m.BaseModel.ToDomain(),
		ClientID:            m.ClientID,
		UnitID:              m.UnitID,
		Type:                m.Type,
		Amount:              m.Amount,
		BalanceBefore:       m.BalanceBefore,
		BalanceAfter:        m.BalanceAfter,
		SourceTransactionID: m.SourceTransactionID,
	}
}

// FromDomain populates the persistence model from a domain CreditTransaction entity.
func (m *CreditTransactionModel) FromDomain(t *credit.CreditTransaction) {
	m.FromDomainBaseEntity(t.BaseEntity)
	m.ClientID = t.ClientID
	m.UnitID = t.UnitID
	m.Type = t.Type
	m.Amount = t.Amount
	m.BalanceBefore = t.BalanceBefore
	m.BalanceAfter = t.BalanceAfter
	m.SourceTransactionID = t.SourceTransactionID
}

// CreditTransactionModelFromDomain creates a new persistence model from a domain CreditTransaction.
func CreditTransactionModelFromDomain(t *credit.CreditTransaction) *CreditTransactionModel {
	m := &CreditTransactionModel{}
	m.FromDomain(t)
	return m
}
