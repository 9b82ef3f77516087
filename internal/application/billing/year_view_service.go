package billing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/billing"
	"github.com/propman/backend/internal/domain/shared/valueobject"
	"github.com/propman/backend/internal/infrastructure/telemetry"
)

// MonthSummary is one fiscal month's cell in the aggregated year view.
// A month without a bill carries zero amounts and an empty status; a
// month with a recorded but unbilled reading still carries the reading
// columns.
type MonthSummary struct {
	Month         int                `json:"month"`
	BillID        *uuid.UUID         `json:"bill_id,omitempty"`
	Consumption   string             `json:"consumption,omitempty"`
	MeterReading  string             `json:"meter_reading,omitempty"`
	BaseCharge    valueobject.Money  `json:"base_charge"`
	PenaltyAmount valueobject.Money  `json:"penalty_amount"`
	PaidAmount    valueobject.Money  `json:"paid_amount"`
	BasePaid      valueobject.Money  `json:"base_paid"`
	PenaltyPaid   valueobject.Money  `json:"penalty_paid"`
	Outstanding   valueobject.Money  `json:"outstanding"`
	Status        billing.BillStatus `json:"status,omitempty"`
	DueDate       *time.Time         `json:"due_date,omitempty"`
}

// YearTotals aggregates the year view's columns.
type YearTotals struct {
	Charged     valueobject.Money `json:"charged"`
	Penalties   valueobject.Money `json:"penalties"`
	CashPaid    valueobject.Money `json:"cash_paid"`
	Outstanding valueobject.Money `json:"outstanding"`
}

// YearView is the aggregated view of one unit's fiscal year: twelve month
// cells plus totals. LastUpdated carries the year marker timestamp the
// view was built against.
type YearView struct {
	ClientID    uuid.UUID      `json:"client_id"`
	UnitID      uuid.UUID      `json:"unit_id"`
	FiscalYear  int            `json:"fiscal_year"`
	Months      []MonthSummary `json:"months"`
	Totals      YearTotals     `json:"totals"`
	LastUpdated time.Time      `json:"last_updated"`
}

// UnitYearSummary is one unit's block inside the client-wide year view.
type UnitYearSummary struct {
	UnitID uuid.UUID      `json:"unit_id"`
	Months []MonthSummary `json:"months"`
	Totals YearTotals     `json:"totals"`
}

// ClientYearView spans every unit of the client for one fiscal year,
// with per-unit month grids and client-wide totals. LastUpdated carries
// the year marker timestamp the view was built against.
type ClientYearView struct {
	ClientID    uuid.UUID         `json:"client_id"`
	FiscalYear  int               `json:"fiscal_year"`
	Units       []UnitYearSummary `json:"units"`
	Totals      YearTotals        `json:"totals"`
	LastUpdated time.Time         `json:"last_updated"`
}

// YearViewService serves aggregated year views from cache, rebuilding
// them when the year marker says the cached copy is stale.
type YearViewService struct {
	bills    billing.BillRepository
	readings billing.MeterReadingRepository
	markers  billing.YearMarkerRepository
	cache    YearViewCache
}

// NewYearViewService creates a new YearViewService
func NewYearViewService(
	bills billing.BillRepository,
	readings billing.MeterReadingRepository,
	markers billing.YearMarkerRepository,
	cache YearViewCache,
) *YearViewService {
	return &YearViewService{
		bills:    bills,
		readings: readings,
		markers:  markers,
		cache:    cache,
	}
}

// GetLastUpdated returns the timestamp of the last mutation touching any
// bill of the client's fiscal year, or the zero time if none was ever
// touched.
func (s *YearViewService) GetLastUpdated(ctx context.Context, clientID uuid.UUID, fiscalYear int) (time.Time, error) {
	return s.markers.GetLastUpdated(ctx, clientID, fiscalYear)
}

// GetYearView returns the aggregated year view for a unit, from cache
// when the cached copy is at least as new as the year marker, rebuilt
// from the bill ledger otherwise. Cache failures degrade to a rebuild,
// never to an error.
func (s *YearViewService) GetYearView(ctx context.Context, clientID, unitID uuid.UUID, fiscalYear int) (*YearView, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "year_view", "get")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrClientID, clientID.String(),
		telemetry.SpanAttrUnitID, unitID.String(),
		telemetry.SpanAttrFiscalYear, fiscalYear,
	)

	marker, err := s.markers.GetLastUpdated(ctx, clientID, fiscalYear)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to read year marker: %w", err)
	}

	if cached, err := s.cache.Get(ctx, clientID, unitID, fiscalYear); err == nil && cached != nil {
		if !cached.BuiltAt.Before(marker) {
			telemetry.AddEvent(span, "cache_hit")
			return cached.View, nil
		}
		telemetry.AddEvent(span, "cache_stale",
			"built_at", cached.BuiltAt.String(),
			"marker", marker.String(),
		)
	}

	view, err := s.buildYearView(ctx, clientID, unitID, fiscalYear, marker)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	// A failed cache write only costs the next request a rebuild.
	_ = s.cache.Set(ctx, clientID, unitID, fiscalYear, &CachedYearView{
		View:    view,
		BuiltAt: marker,
	})

	return view, nil
}

// GetClientYearView returns the aggregated view spanning every unit of
// the client's fiscal year, from cache when the cached copy is at least
// as new as the year marker, rebuilt from the ledger otherwise.
func (s *YearViewService) GetClientYearView(ctx context.Context, clientID uuid.UUID, fiscalYear int) (*ClientYearView, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "year_view", "get_client")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrClientID, clientID.String(),
		telemetry.SpanAttrFiscalYear, fiscalYear,
	)

	marker, err := s.markers.GetLastUpdated(ctx, clientID, fiscalYear)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to read year marker: %w", err)
	}

	if cached, err := s.cache.Get(ctx, clientID, uuid.Nil, fiscalYear); err == nil &&
		cached != nil && cached.ClientView != nil {
		if !cached.BuiltAt.Before(marker) {
			telemetry.AddEvent(span, "cache_hit")
			return cached.ClientView, nil
		}
		telemetry.AddEvent(span, "cache_stale",
			"built_at", cached.BuiltAt.String(),
			"marker", marker.String(),
		)
	}

	view, err := s.buildClientYearView(ctx, clientID, fiscalYear, marker)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	_ = s.cache.Set(ctx, clientID, uuid.Nil, fiscalYear, &CachedYearView{
		ClientView: view,
		BuiltAt:    marker,
	})

	return view, nil
}

// InvalidateYearView drops the cached view for a unit's fiscal year. The
// client-wide view embeds every unit, so it is dropped alongside.
func (s *YearViewService) InvalidateYearView(ctx context.Context, clientID, unitID uuid.UUID, fiscalYear int) error {
	if err := s.cache.Invalidate(ctx, clientID, unitID, fiscalYear); err != nil {
		return err
	}
	return s.cache.Invalidate(ctx, clientID, uuid.Nil, fiscalYear)
}

func (s *YearViewService) buildYearView(ctx context.Context, clientID, unitID uuid.UUID, fiscalYear int, marker time.Time) (*YearView, error) {
	bills, err := s.bills.FindByUnitAndYear(ctx, clientID, unitID, fiscalYear)
	if err != nil {
		return nil, fmt.Errorf("failed to load bills for year view: %w", err)
	}

	view := &YearView{
		ClientID:    clientID,
		UnitID:      unitID,
		FiscalYear:  fiscalYear,
		Months:      make([]MonthSummary, billing.MonthsPerYear),
		LastUpdated: marker,
	}
	for m := range view.Months {
		view.Months[m] = MonthSummary{Month: m}
	}

	for _, bill := range bills {
		if bill.Period.Month < 0 || bill.Period.Month >= billing.MonthsPerYear {
			continue
		}
		id := bill.ID
		due := bill.DueDate
		outstanding := bill.OutstandingBase().Add(bill.OutstandingPenalty())

		view.Months[bill.Period.Month] = MonthSummary{
			Month:         bill.Period.Month,
			BillID:        &id,
			Consumption:   bill.Consumption,
			BaseCharge:    bill.BaseCharge,
			PenaltyAmount: bill.PenaltyAmount,
			PaidAmount:    bill.PaidAmount,
			BasePaid:      bill.BasePaid,
			PenaltyPaid:   bill.PenaltyPaid,
			Outstanding:   outstanding,
			Status:        bill.Status,
			DueDate:       &due,
		}

		view.Totals.Charged = view.Totals.Charged.Add(bill.BaseCharge)
		view.Totals.Penalties = view.Totals.Penalties.Add(bill.PenaltyAmount)
		view.Totals.CashPaid = view.Totals.CashPaid.Add(bill.PaidAmount)
		view.Totals.Outstanding = view.Totals.Outstanding.Add(outstanding)
	}

	return view, nil
}

func (s *YearViewService) buildClientYearView(ctx context.Context, clientID uuid.UUID, fiscalYear int, marker time.Time) (*ClientYearView, error) {
	bills, err := s.bills.FindByClientAndYear(ctx, clientID, fiscalYear)
	if err != nil {
		return nil, fmt.Errorf("failed to load bills for client year view: %w", err)
	}
	readings, err := s.readings.FindByClientAndYear(ctx, clientID, fiscalYear)
	if err != nil {
		return nil, fmt.Errorf("failed to load readings for client year view: %w", err)
	}

	view := &ClientYearView{
		ClientID:    clientID,
		FiscalYear:  fiscalYear,
		Units:       []UnitYearSummary{},
		LastUpdated: marker,
	}

	index := make(map[uuid.UUID]int)
	unitFor := func(unitID uuid.UUID) *UnitYearSummary {
		if i, ok := index[unitID]; ok {
			return &view.Units[i]
		}
		unit := UnitYearSummary{
			UnitID: unitID,
			Months: make([]MonthSummary, billing.MonthsPerYear),
		}
		for m := range unit.Months {
			unit.Months[m] = MonthSummary{Month: m}
		}
		index[unitID] = len(view.Units)
		view.Units = append(view.Units, unit)
		return &view.Units[len(view.Units)-1]
	}

	for _, bill := range bills {
		if bill.Period.Month < 0 || bill.Period.Month >= billing.MonthsPerYear {
			continue
		}
		unit := unitFor(bill.UnitID)
		id := bill.ID
		due := bill.DueDate
		outstanding := bill.OutstandingBase().Add(bill.OutstandingPenalty())

		unit.Months[bill.Period.Month] = MonthSummary{
			Month:         bill.Period.Month,
			BillID:        &id,
			Consumption:   bill.Consumption,
			BaseCharge:    bill.BaseCharge,
			PenaltyAmount: bill.PenaltyAmount,
			PaidAmount:    bill.PaidAmount,
			BasePaid:      bill.BasePaid,
			PenaltyPaid:   bill.PenaltyPaid,
			Outstanding:   outstanding,
			Status:        bill.Status,
			DueDate:       &due,
		}

		unit.Totals.Charged = unit.Totals.Charged.Add(bill.BaseCharge)
		unit.Totals.Penalties = unit.Totals.Penalties.Add(bill.PenaltyAmount)
		unit.Totals.CashPaid = unit.Totals.CashPaid.Add(bill.PaidAmount)
		unit.Totals.Outstanding = unit.Totals.Outstanding.Add(outstanding)

		view.Totals.Charged = view.Totals.Charged.Add(bill.BaseCharge)
		view.Totals.Penalties = view.Totals.Penalties.Add(bill.PenaltyAmount)
		view.Totals.CashPaid = view.Totals.CashPaid.Add(bill.PaidAmount)
		view.Totals.Outstanding = view.Totals.Outstanding.Add(outstanding)
	}

	// Readings fill the meter columns, including months recorded but not
	// yet billed.
	for _, reading := range readings {
		if reading.Period.Month < 0 || reading.Period.Month >= billing.MonthsPerYear {
			continue
		}
		cell := &unitFor(reading.UnitID).Months[reading.Period.Month]
		cell.MeterReading = reading.CurrentReading.String()
		cell.Consumption = reading.Consumption().String()
	}

	// Units in stable order regardless of map iteration upstream.
	sort.Slice(view.Units, func(i, j int) bool {
		return view.Units[i].UnitID.String() < view.Units[j].UnitID.String()
	})

	return view, nil
}
