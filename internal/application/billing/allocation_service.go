package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/billing"
	"github.com/propman/backend/internal/domain/credit"
	"github.com/propman/backend/internal/domain/shared"
	"github.com/propman/backend/internal/domain/shared/valueobject"
	"github.com/propman/backend/internal/infrastructure/telemetry"
)

const (
	// allocationMaxAttempts bounds the optimistic-concurrency retry loop.
	allocationMaxAttempts = 4
	// allocationRetryBackoff is the base delay between attempts; attempt n
	// waits n times this.
	allocationRetryBackoff = 25 * time.Millisecond
)

// AllocationService distributes an incoming payment across a unit's
// outstanding bills: oldest bill first, penalty before base within each
// bill, the unit's credit covering the shortfall of the bill the cash ran
// out on, and any surplus deposited as credit.
type AllocationService struct {
	eventSink
	uow UnitOfWork
}

// NewAllocationService creates a new AllocationService
func NewAllocationService(uow UnitOfWork, opts ...Option) *AllocationService {
	s := &AllocationService{uow: uow}
	s.apply(opts)
	return s
}

// ProcessPaymentRequest represents an incoming payment to allocate
type ProcessPaymentRequest struct {
	ClientID      uuid.UUID
	UnitID        uuid.UUID
	TransactionID string
	Amount        valueobject.Money
	PaidAt        time.Time
}

// BillAllocation describes how much of one payment landed on one bill
type BillAllocation struct {
	BillID      uuid.UUID            `json:"bill_id"`
	Period      billing.FiscalPeriod `json:"period"`
	PenaltyPaid valueobject.Money    `json:"penalty_paid"`
	BasePaid    valueobject.Money    `json:"base_paid"`
	CreditDrawn valueobject.Money    `json:"credit_drawn"`
	Status      billing.BillStatus   `json:"status"`
}

// AllocationResult summarizes the outcome of one payment allocation
type AllocationResult struct {
	TransactionID    string            `json:"transaction_id"`
	Allocations      []BillAllocation  `json:"allocations"`
	TotalCashApplied valueobject.Money `json:"total_cash_applied"`
	TotalCreditDrawn valueobject.Money `json:"total_credit_drawn"`
	SurplusDeposited valueobject.Money `json:"surplus_deposited"`
	CreditBalance    valueobject.Money `json:"credit_balance"`
}

// ProcessPayment allocates a payment across the unit's outstanding bills
// inside a single transaction. Concurrent allocations against the same
// unit are detected through optimistic locking and retried a bounded
// number of times before failing with an allocation conflict.
func (s *AllocationService) ProcessPayment(ctx context.Context, req ProcessPaymentRequest) (*AllocationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "process_payment")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrClientID, req.ClientID.String(),
		telemetry.SpanAttrUnitID, req.UnitID.String(),
		telemetry.SpanAttrTransactionID, req.TransactionID,
		telemetry.SpanAttrAmount, req.Amount.Int64(),
	)

	if req.TransactionID == "" {
		err := shared.NewDomainError("VALIDATION_ERROR", "Transaction ID cannot be empty")
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !req.Amount.IsPositive() {
		err := shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
		telemetry.RecordError(span, err)
		return nil, err
	}
	if req.PaidAt.IsZero() {
		req.PaidAt = time.Now()
	}

	var result *AllocationResult
	var operationErr error
	telemetry.WithProfilingLabels(ctx, telemetry.BillingOperationLabels(telemetry.OperationProcessPayment, "allocation_service"), func(c context.Context) {
		result, operationErr = s.processWithRetry(c, req)
	})
	if operationErr != nil {
		telemetry.RecordError(span, operationErr)
		return nil, operationErr
	}

	telemetry.AddEvent(span, "payment_allocated",
		"bills_touched", len(result.Allocations),
		"surplus_deposited", result.SurplusDeposited.Int64(),
	)
	return result, nil
}

func (s *AllocationService) processWithRetry(ctx context.Context, req ProcessPaymentRequest) (*AllocationResult, error) {
	var lastErr error
	for attempt := 1; attempt <= allocationMaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := s.allocateOnce(ctx, req)
		if err == nil {
			return result, nil
		}
		if !isConcurrencyConflict(err) {
			return nil, err
		}
		lastErr = err

		if attempt < allocationMaxAttempts {
			select {
			case <-time.After(time.Duration(attempt) * allocationRetryBackoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, shared.NewDomainError("ALLOCATION_CONFLICT",
		fmt.Sprintf("Allocation for unit %s kept conflicting with concurrent payments: %v", req.UnitID, lastErr))
}

// allocateOnce runs one transactional attempt of the cascade.
func (s *AllocationService) allocateOnce(ctx context.Context, req ProcessPaymentRequest) (*AllocationResult, error) {
	result := &AllocationResult{
		TransactionID: req.TransactionID,
	}

	var touched []shared.AggregateRoot
	err := s.uow.Execute(ctx, func(repos RepositoryBundle) error {
		touched = touched[:0]
		exists, err := repos.Bills().ExistsForUnit(ctx, req.ClientID, req.UnitID)
		if err != nil {
			return fmt.Errorf("failed to check unit: %w", err)
		}
		if !exists {
			return shared.NewDomainError("UNIT_NOT_FOUND",
				fmt.Sprintf("Unit %s has no bills on record", req.UnitID))
		}

		outstanding, err := repos.Bills().FindOutstandingByUnit(ctx, req.ClientID, req.UnitID)
		if err != nil {
			return fmt.Errorf("failed to load outstanding bills: %w", err)
		}

		balance, balanceIsNew, err := loadOrCreateBalance(ctx, repos, req.ClientID, req.UnitID)
		if err != nil {
			return err
		}

		result.Allocations = result.Allocations[:0]
		result.TotalCashApplied = valueobject.Zero
		result.TotalCreditDrawn = valueobject.Zero
		result.SurplusDeposited = valueobject.Zero

		cash := req.Amount
		balanceDirty := false
		touchedYears := make(map[int]bool)

		for _, bill := range outstanding {
			if err := ctx.Err(); err != nil {
				return err
			}
			if cash.IsZero() {
				break
			}

			penaltyPortion := valueobject.Min(cash, bill.OutstandingPenalty())
			cash = cash.Sub(penaltyPortion)
			basePortion := valueobject.Min(cash, bill.OutstandingBase())
			cash = cash.Sub(basePortion)

			// When the cash runs out on this bill, the unit's credit
			// covers as much of the remaining base as it can. Credit is
			// never cascaded onto later bills.
			creditDraw := valueobject.Zero
			if cash.IsZero() {
				remaining := bill.OutstandingBase().Sub(basePortion)
				creditDraw = valueobject.Min(balance.Balance, remaining)
			}

			applied := penaltyPortion.Add(basePortion).Add(creditDraw)
			if !applied.IsPositive() {
				break
			}

			if err := bill.ApplyPayment(req.TransactionID, penaltyPortion, basePortion, creditDraw, req.PaidAt); err != nil {
				return err
			}
			if creditDraw.IsPositive() {
				txn, err := balance.Draw(creditDraw, req.TransactionID)
				if err != nil {
					return err
				}
				if err := repos.CreditTransactions().Create(ctx, txn); err != nil {
					return fmt.Errorf("failed to record credit draw: %w", err)
				}
				balanceDirty = true
				result.TotalCreditDrawn = result.TotalCreditDrawn.Add(creditDraw)
			}

			if err := repos.Bills().SaveWithLock(ctx, bill); err != nil {
				return err
			}
			touched = append(touched, bill)
			touchedYears[bill.Period.Year] = true

			result.Allocations = append(result.Allocations, BillAllocation{
				BillID:      bill.ID,
				Period:      bill.Period,
				PenaltyPaid: penaltyPortion,
				BasePaid:    basePortion.Add(creditDraw),
				CreditDrawn: creditDraw,
				Status:      bill.Status,
			})
			result.TotalCashApplied = result.TotalCashApplied.Add(penaltyPortion).Add(basePortion)
		}

		// Whatever cash survived the cascade becomes credit for future
		// periods. A payment against a unit with no outstanding bills
		// lands here in full.
		if cash.IsPositive() {
			txn, err := balance.Deposit(cash, req.TransactionID)
			if err != nil {
				return err
			}
			if err := repos.CreditTransactions().Create(ctx, txn); err != nil {
				return fmt.Errorf("failed to record credit deposit: %w", err)
			}
			balanceDirty = true
			result.SurplusDeposited = cash
		}

		if balanceDirty {
			if balanceIsNew {
				if err := repos.CreditBalances().Save(ctx, balance); err != nil {
					return fmt.Errorf("failed to save credit balance: %w", err)
				}
			} else if err := repos.CreditBalances().SaveWithLock(ctx, balance); err != nil {
				return err
			}
			touched = append(touched, balance)
		}
		result.CreditBalance = balance.Balance

		for year := range touchedYears {
			if err := repos.YearMarkers().Touch(ctx, req.ClientID, year); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, touched...)
	return result, nil
}

func loadOrCreateBalance(ctx context.Context, repos RepositoryBundle, clientID, unitID uuid.UUID) (*credit.CreditBalance, bool, error) {
	balance, err := repos.CreditBalances().FindByUnit(ctx, clientID, unitID)
	if err != nil {
		if !shared.IsCode(err, "NOT_FOUND") {
			return nil, false, fmt.Errorf("failed to load credit balance: %w", err)
		}
		created, err := credit.NewCreditBalance(clientID, unitID)
		if err != nil {
			return nil, false, err
		}
		return created, true, nil
	}
	return balance, false, nil
}

// isConcurrencyConflict reports whether err is a version-check failure
// worth retrying.
func isConcurrencyConflict(err error) bool {
	switch shared.ErrorCode(err) {
	case "OPTIMISTIC_LOCK_ERROR", "CONCURRENCY_CONFLICT":
		return true
	}
	return false
}
