package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/billing"
	"github.com/propman/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// BillModel is the persistence model for the Bill aggregate root.
// Monetary columns hold whole minor units; the consumption is kept as a
// decimal string so regeneration stays exact.
type BillModel struct {
	ClientAggregateModel
	UnitID         uuid.UUID                 `gorm:"type:uuid;not null;index;uniqueIndex:idx_bills_unit_period,priority:1"`
	FiscalYear     int                       `gorm:"not null;index;uniqueIndex:idx_bills_unit_period,priority:2"`
	FiscalMonth    int                       `gorm:"not null;uniqueIndex:idx_bills_unit_period,priority:3"`
	Consumption    string                    `gorm:"type:varchar(40);not null"`
	RatePerUnit    valueobject.Money         `gorm:"not null"`
	BaseCharge     valueobject.Money         `gorm:"not null"`
	PenaltyAmount  valueobject.Money         `gorm:"not null;default:0"`
	PaidAmount     valueobject.Money         `gorm:"not null;default:0"`
	BasePaid       valueobject.Money         `gorm:"not null;default:0"`
	PenaltyPaid    valueobject.Money         `gorm:"not null;default:0"`
	Status         billing.BillStatus        `gorm:"type:varchar(10);not null;default:'UNPAID';index"`
	PenaltyApplied bool                      `gorm:"not null;default:false"`
	DueDate        time.Time                 `gorm:"not null;index"`
	Payments       billing.PaymentRecords    `gorm:"type:jsonb;default:'[]'"`
	Corrections    billing.CorrectionRecords `gorm:"type:jsonb;default:'[]'"`
	PaidAt         *time.Time
}

// TableName returns the table name for GORM
func (BillModel) TableName() string {
	return "bills"
}

// ToDomain converts the persistence model to a domain Bill entity.
func (m *BillModel) ToDomain() *billing.Bill {
	return &billing.Bill{
		ClientAggregateRoot: m.toDomainClientAggregateRoot(),
		UnitID:              m.UnitID,
		Period:              billing.FiscalPeriod{Year: m.FiscalYear, Month: m.FiscalMonth},
		Consumption:         m.Consumption,
		RatePerUnit:         m.RatePerUnit,
		BaseCharge:          m.BaseCharge,
		PenaltyAmount:       m.PenaltyAmount,
		PaidAmount:          m.PaidAmount,
		BasePaid:            m.BasePaid,
		PenaltyPaid:         m.PenaltyPaid,
		Status:              m.Status,
		PenaltyApplied:      m.PenaltyApplied,
		DueDate:             m.DueDate,
		Payments:            m.Payments,
		Corrections:         m.Corrections,
		PaidAt:              m.PaidAt,
	}
}

// FromDomain populates the persistence model from a domain Bill entity.
func (m *BillModel) FromDomain(b *billing.Bill) {
	m.FromDomainClientAggregateRoot(b.ClientAggregateRoot)
	m.UnitID = b.UnitID
	m.FiscalYear = b.Period.Year
	m.FiscalMonth = b.Period.Month
	m.Consumption = b.Consumption
	m.RatePerUnit = b.RatePerUnit
	m.BaseCharge = b.BaseCharge
	m.PenaltyAmount = b.PenaltyAmount
	m.PaidAmount = b.PaidAmount
	m.BasePaid = b.BasePaid
	m.PenaltyPaid = b.PenaltyPaid
	m.Status = b.Status
	m.PenaltyApplied = b.PenaltyApplied
	m.DueDate = b.DueDate
	m.Payments = b.Payments
	m.Corrections = b.Corrections
	m.PaidAt = b.PaidAt
}

// BillModelFromDomain creates a new persistence model from a domain Bill.
func BillModelFromDomain(b *billing.Bill) *BillModel {
	m := &BillModel{}
	m.FromDomain(b)
	return m
}

// MeterReadingModel is the persistence model for meter readings.
type MeterReadingModel struct {
	BaseModel
	ClientID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	UnitID         uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:idx_readings_unit_period,priority:1"`
	FiscalYear     int             `gorm:"not null;index;uniqueIndex:idx_readings_unit_period,priority:2"`
	FiscalMonth    int             `gorm:"not null;uniqueIndex:idx_readings_unit_period,priority:3"`
	CurrentReading decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	PriorReading   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Billed         bool            `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (MeterReadingModel) TableName() string {
	return "meter_readings"
}

// ToDomain converts the persistence model to a domain MeterReading entity.
func (m *MeterReadingModel) ToDomain() *billing.MeterReading {
	return &billing.MeterReading{
		BaseEntity:     m.BaseModel.ToDomain(),
		ClientID:       m.ClientID,
		UnitID:         m.UnitID,
		Period:         billing.FiscalPeriod{Year: m.FiscalYear, Month: m.FiscalMonth},
		CurrentReading: m.CurrentReading,
		PriorReading:   m.PriorReading,
		Billed:         m.Billed,
	}
}

// FromDomain populates the persistence model from a domain MeterReading entity.
func (m *MeterReadingModel) FromDomain(r *billing.MeterReading) {
	m.FromDomainBaseEntity(r.BaseEntity)
	m.ClientID = r.ClientID
	m.UnitID = r.UnitID
	m.FiscalYear = r.Period.Year
	m.FiscalMonth = r.Period.Month
	m.CurrentReading = r.CurrentReading
	m.PriorReading = r.PriorReading
	m.Billed = r.Billed
}

// MeterReadingModelFromDomain creates a new persistence model from a domain MeterReading.
func MeterReadingModelFromDomain(r *billing.MeterReading) *MeterReadingModel {
	m := &MeterReadingModel{}
	m.FromDomain(r)
	return m
}

// YearMarkerModel records the last mutation time of a client's fiscal
// year. One row per client and year, bumped in the same transaction as
// the bill change it marks.
type YearMarkerModel struct {
	ClientID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	FiscalYear  int       `gorm:"primaryKey"`
	LastUpdated time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (YearMarkerModel) TableName() string {
	return "year_markers"
}

// ToDomain converts the persistence model to a domain YearMarker.
func (m *YearMarkerModel) ToDomain() *billing.YearMarker {
	return &billing.YearMarker{
		ClientID:    m.ClientID,
		FiscalYear:  m.FiscalYear,
		LastUpdated: m.LastUpdated,
	}
}
