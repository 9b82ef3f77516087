package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/billing"
	"github.com/propman/backend/internal/domain/credit"
	"github.com/propman/backend/internal/domain/shared"
	"github.com/propman/backend/internal/domain/shared/valueobject"
	"github.com/propman/backend/internal/infrastructure/telemetry"
)

// AdminService handles the audited administrative paths: bill corrections
// and operator credit adjustments.
type AdminService struct {
	eventSink
	uow UnitOfWork
}

// NewAdminService creates a new AdminService
func NewAdminService(uow UnitOfWork, opts ...Option) *AdminService {
	s := &AdminService{uow: uow}
	s.apply(opts)
	return s
}

// CorrectBillRequest represents an operator correction of a bill's charges
type CorrectBillRequest struct {
	ClientID      uuid.UUID
	BillID        uuid.UUID
	OperatorID    uuid.UUID
	Reason        string
	BaseCharge    valueobject.Money
	PenaltyAmount valueobject.Money
}

// CorrectBill amends a bill's base charge and penalty outside the payment
// flow, recording who changed what and why in the bill's correction
// trail.
func (s *AdminService) CorrectBill(ctx context.Context, req CorrectBillRequest) (*billing.Bill, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "admin", "correct_bill")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrClientID, req.ClientID.String(),
		telemetry.SpanAttrBillID, req.BillID.String(),
	)

	var bill *billing.Bill
	err := s.uow.Execute(ctx, func(repos RepositoryBundle) error {
		found, err := repos.Bills().FindByID(ctx, req.ClientID, req.BillID)
		if err != nil {
			return err
		}
		if err := found.Correct(req.OperatorID, req.Reason, req.BaseCharge, req.PenaltyAmount); err != nil {
			return err
		}
		if err := repos.Bills().SaveWithLock(ctx, found); err != nil {
			return err
		}
		bill = found
		return repos.YearMarkers().Touch(ctx, req.ClientID, found.Period.Year)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.publish(ctx, bill)
	return bill, nil
}

// AdjustCreditRequest represents an operator credit adjustment
type AdjustCreditRequest struct {
	ClientID   uuid.UUID
	UnitID     uuid.UUID
	OperatorID uuid.UUID
	Amount     valueobject.Money
	Reference  string
}

// AdjustCredit applies a signed operator adjustment to a unit's credit
// balance, recording it in the credit history. The balance may not go
// negative.
func (s *AdminService) AdjustCredit(ctx context.Context, req AdjustCreditRequest) (*credit.CreditBalance, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "admin", "adjust_credit")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrClientID, req.ClientID.String(),
		telemetry.SpanAttrUnitID, req.UnitID.String(),
		telemetry.SpanAttrAmount, req.Amount.Int64(),
	)

	if req.OperatorID == uuid.Nil {
		err := shared.NewDomainError("VALIDATION_ERROR", "Operator ID is required for credit adjustments")
		telemetry.RecordError(span, err)
		return nil, err
	}

	reference := req.Reference
	if reference == "" {
		reference = fmt.Sprintf("adjustment:%s", req.OperatorID)
	}

	var balance *credit.CreditBalance
	err := s.uow.Execute(ctx, func(repos RepositoryBundle) error {
		loaded, isNew, err := loadOrCreateBalance(ctx, repos, req.ClientID, req.UnitID)
		if err != nil {
			return err
		}
		txn, err := loaded.Adjust(req.Amount, reference)
		if err != nil {
			return err
		}
		if err := repos.CreditTransactions().Create(ctx, txn); err != nil {
			return fmt.Errorf("failed to record credit adjustment: %w", err)
		}
		if isNew {
			if err := repos.CreditBalances().Save(ctx, loaded); err != nil {
				return err
			}
		} else if err := repos.CreditBalances().SaveWithLock(ctx, loaded); err != nil {
			return err
		}
		balance = loaded
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.publish(ctx, balance)
	return balance, nil
}
