package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/billing"
	"github.com/propman/backend/internal/domain/shared"
	"github.com/propman/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
)

// BillingService handles reading ingestion, bill generation and the
// penalty accrual run.
type BillingService struct {
	eventSink
	uow      UnitOfWork
	policies PolicyProvider
}

// NewBillingService creates a new BillingService
func NewBillingService(uow UnitOfWork, policies PolicyProvider, opts ...Option) *BillingService {
	s := &BillingService{
		uow:      uow,
		policies: policies,
	}
	s.apply(opts)
	return s
}

// RecordReadingRequest represents a request to ingest a meter reading
type RecordReadingRequest struct {
	ClientID       uuid.UUID
	UnitID         uuid.UUID
	Period         billing.FiscalPeriod
	CurrentReading decimal.Decimal
	// PriorReading seeds the chain for a unit's first reading. When nil
	// the prior is taken from the unit's latest stored reading.
	PriorReading *decimal.Decimal
}

// RecordReading ingests a meter reading for a unit and period. The prior
// reading is chained from the unit's latest reading unless supplied
// explicitly. Re-ingesting a period replaces the stored reading as long
// as no bill has been generated from it.
func (s *BillingService) RecordReading(ctx context.Context, req RecordReadingRequest) (*billing.MeterReading, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "billing", "record_reading")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrClientID, req.ClientID.String(),
		telemetry.SpanAttrUnitID, req.UnitID.String(),
		telemetry.SpanAttrFiscalYear, req.Period.Year,
		telemetry.SpanAttrFiscalMonth, req.Period.Month,
	)

	if _, err := billing.NewFiscalPeriod(req.Period.Year, req.Period.Month); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var reading *billing.MeterReading
	err := s.uow.Execute(ctx, func(repos RepositoryBundle) error {
		existing, err := repos.Readings().FindByUnitAndPeriod(ctx, req.ClientID, req.UnitID, req.Period)
		if err != nil && !shared.IsCode(err, "NOT_FOUND") {
			return fmt.Errorf("failed to look up existing reading: %w", err)
		}
		if existing != nil && existing.Billed {
			return shared.NewDomainError("INVALID_STATE",
				fmt.Sprintf("Reading for period %s is already billed; correct the bill instead", req.Period))
		}

		prior := decimal.Zero
		switch {
		case req.PriorReading != nil:
			prior = *req.PriorReading
		default:
			latest, err := repos.Readings().FindLatestByUnit(ctx, req.ClientID, req.UnitID)
			if err != nil && !shared.IsCode(err, "NOT_FOUND") {
				return fmt.Errorf("failed to look up latest reading: %w", err)
			}
			if latest != nil {
				prior = latest.CurrentReading
			}
		}

		reading, err = billing.NewMeterReading(req.ClientID, req.UnitID, req.Period, req.CurrentReading, prior)
		if err != nil {
			return err
		}
		if existing != nil {
			// Replace the unbilled reading in place.
			reading.ID = existing.ID
			reading.CreatedAt = existing.CreatedAt
		}
		return repos.Readings().Save(ctx, reading)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return reading, nil
}

// GenerateBillRequest represents a request to generate a bill
type GenerateBillRequest struct {
	ClientID uuid.UUID
	UnitID   uuid.UUID
	Period   billing.FiscalPeriod
	// Recompute replaces the charge of an existing unpaid bill instead of
	// rejecting the duplicate period.
	Recompute bool
}

// GenerateBill creates the bill for a unit and period from its stored
// meter reading. A second generation for the same period is rejected as a
// duplicate unless recompute is requested; a bill with recorded payments
// can never be regenerated.
func (s *BillingService) GenerateBill(ctx context.Context, req GenerateBillRequest) (*billing.Bill, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "billing", "generate_bill")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrClientID, req.ClientID.String(),
		telemetry.SpanAttrUnitID, req.UnitID.String(),
		telemetry.SpanAttrFiscalYear, req.Period.Year,
		telemetry.SpanAttrFiscalMonth, req.Period.Month,
	)

	policy, err := s.policies.PolicyFor(ctx, req.ClientID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var bill *billing.Bill
	var operationErr error
	telemetry.WithProfilingLabels(ctx, telemetry.BillingOperationLabels(telemetry.OperationGenerateBill, "billing_service"), func(c context.Context) {
		operationErr = s.uow.Execute(c, func(repos RepositoryBundle) error {
			reading, err := repos.Readings().FindByUnitAndPeriod(c, req.ClientID, req.UnitID, req.Period)
			if err != nil {
				if shared.IsCode(err, "NOT_FOUND") {
					return shared.NewDomainError("NOT_FOUND",
						fmt.Sprintf("No meter reading recorded for unit %s in period %s", req.UnitID, req.Period))
				}
				return fmt.Errorf("failed to load reading: %w", err)
			}

			existing, err := repos.Bills().FindByUnitAndPeriod(c, req.ClientID, req.UnitID, req.Period)
			if err != nil && !shared.IsCode(err, "NOT_FOUND") {
				return fmt.Errorf("failed to look up existing bill: %w", err)
			}

			if existing != nil {
				if !req.Recompute {
					return shared.NewDomainError("DUPLICATE_PERIOD",
						fmt.Sprintf("A bill already exists for unit %s in period %s", req.UnitID, req.Period))
				}
				if err := existing.Recompute(reading, policy); err != nil {
					return err
				}
				if err := repos.Bills().SaveWithLock(c, existing); err != nil {
					return err
				}
				bill = existing
			} else {
				created, err := billing.NewBill(req.ClientID, req.UnitID, req.Period, reading, policy)
				if err != nil {
					return err
				}
				if err := repos.Bills().Save(c, created); err != nil {
					return fmt.Errorf("failed to save bill: %w", err)
				}
				reading.MarkBilled()
				if err := repos.Readings().Save(c, reading); err != nil {
					return fmt.Errorf("failed to mark reading billed: %w", err)
				}
				bill = created
			}

			return repos.YearMarkers().Touch(c, req.ClientID, req.Period.Year)
		})
	})
	if operationErr != nil {
		telemetry.RecordError(span, operationErr)
		return nil, operationErr
	}
	s.publish(ctx, bill)
	return bill, nil
}

// PenaltyRunResult summarizes one penalty accrual run
type PenaltyRunResult struct {
	BillsExamined int `json:"bills_examined"`
	BillsAccrued  int `json:"bills_accrued"`
}

// ApplyPenalties runs penalty accrual over every unsettled bill of the
// client whose due date has passed. The accrual is idempotent per bill,
// so overlapping runs cannot double-charge.
func (s *BillingService) ApplyPenalties(ctx context.Context, clientID uuid.UUID, asOf time.Time) (*PenaltyRunResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "billing", "apply_penalties")
	defer span.End()

	telemetry.SetAttributes(span, telemetry.SpanAttrClientID, clientID.String())

	policy, err := s.policies.PolicyFor(ctx, clientID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result := &PenaltyRunResult{}
	var accrued []shared.AggregateRoot
	var operationErr error
	telemetry.WithProfilingLabels(ctx, telemetry.BillingOperationLabels(telemetry.OperationApplyPenalties, "billing_service"), func(c context.Context) {
		operationErr = s.uow.Execute(c, func(repos RepositoryBundle) error {
			due, err := repos.Bills().FindDueUnpaid(c, clientID, asOf)
			if err != nil {
				return fmt.Errorf("failed to load due bills: %w", err)
			}
			result.BillsExamined = len(due)
			accrued = accrued[:0]

			touchedYears := make(map[int]bool)
			for _, bill := range due {
				if err := c.Err(); err != nil {
					return err
				}
				applied, err := bill.ApplyPenalty(policy, asOf)
				if err != nil {
					return err
				}
				if !applied {
					continue
				}
				if err := repos.Bills().SaveWithLock(c, bill); err != nil {
					return err
				}
				result.BillsAccrued++
				accrued = append(accrued, bill)
				touchedYears[bill.Period.Year] = true
			}

			for year := range touchedYears {
				if err := repos.YearMarkers().Touch(c, clientID, year); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if operationErr != nil {
		telemetry.RecordError(span, operationErr)
		return nil, operationErr
	}
	s.publish(ctx, accrued...)

	telemetry.AddEvent(span, "penalties_accrued", "count", result.BillsAccrued)
	return result, nil
}

// GetBill returns one bill by ID within the client scope.
func (s *BillingService) GetBill(ctx context.Context, clientID, billID uuid.UUID) (*billing.Bill, error) {
	var bill *billing.Bill
	err := s.uow.Execute(ctx, func(repos RepositoryBundle) error {
		found, err := repos.Bills().FindByID(ctx, clientID, billID)
		if err != nil {
			return err
		}
		bill = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bill, nil
}
