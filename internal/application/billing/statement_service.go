package billing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/billing"
	"github.com/propman/backend/internal/domain/credit"
	"github.com/propman/backend/internal/domain/shared"
	"github.com/propman/backend/internal/domain/shared/valueobject"
	"github.com/propman/backend/internal/infrastructure/telemetry"
)

// StatementLineType classifies a statement line.
type StatementLineType string

const (
	LineTypeCharge  StatementLineType = "CHARGE"
	LineTypePayment StatementLineType = "PAYMENT"
)

// StatementLine is one chronological entry on a unit's statement.
// Charges carry positive amounts, payments negative ones; Balance is the
// running balance after the line. CreditDrawn on a payment line is
// informational only: the cash/charge running balance excludes credit.
type StatementLine struct {
	Date          time.Time            `json:"date"`
	Type          StatementLineType    `json:"type"`
	Period        billing.FiscalPeriod `json:"period"`
	Description   string               `json:"description"`
	Amount        valueobject.Money    `json:"amount"`
	Balance       valueobject.Money    `json:"balance"`
	CreditDrawn   valueobject.Money    `json:"credit_drawn,omitempty"`
	TransactionID string               `json:"transaction_id,omitempty"`
}

// Statement is the rendered account statement of one unit for one fiscal
// year. Each bill contributes a single charge line of base plus penalty;
// each payment transaction contributes a cash-only payment line. Credit
// draws never enter the running balance: they are reported per line as
// CreditDrawn and in total as CreditApplied, so the closing balance is
// charges minus cash received.
type Statement struct {
	ClientID       uuid.UUID         `json:"client_id"`
	UnitID         uuid.UUID         `json:"unit_id"`
	FiscalYear     int               `json:"fiscal_year"`
	Lines          []StatementLine   `json:"lines"`
	TotalCharged   valueobject.Money `json:"total_charged"`
	TotalPenalties valueobject.Money `json:"total_penalties"`
	TotalCashPaid  valueobject.Money `json:"total_cash_paid"`
	CreditApplied  valueobject.Money `json:"credit_applied"`
	ClosingBalance valueobject.Money `json:"closing_balance"`
	CreditBalance  valueobject.Money `json:"credit_balance"`
	GeneratedAt    time.Time         `json:"generated_at"`
}

// StatementService renders account statements from the bill ledger.
type StatementService struct {
	bills    billing.BillRepository
	balances credit.BalanceRepository
}

// NewStatementService creates a new StatementService
func NewStatementService(bills billing.BillRepository, balances credit.BalanceRepository) *StatementService {
	return &StatementService{
		bills:    bills,
		balances: balances,
	}
}

// GenerateStatement builds the chronological statement for a unit's
// fiscal year. The running balance starts at zero, rises with each
// charge line and falls with each cash payment, closing at total charges
// minus total cash for the year.
func (s *StatementService) GenerateStatement(ctx context.Context, clientID, unitID uuid.UUID, fiscalYear int) (*Statement, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "statement", "generate")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrClientID, clientID.String(),
		telemetry.SpanAttrUnitID, unitID.String(),
		telemetry.SpanAttrFiscalYear, fiscalYear,
	)

	bills, err := s.bills.FindByUnitAndYear(ctx, clientID, unitID, fiscalYear)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load bills for statement: %w", err)
	}

	stmt := &Statement{
		ClientID:    clientID,
		UnitID:      unitID,
		FiscalYear:  fiscalYear,
		Lines:       make([]StatementLine, 0, len(bills)*2),
		GeneratedAt: time.Now(),
	}

	for _, bill := range bills {
		desc := fmt.Sprintf("Consumption charge %s (%s units)", bill.Period, bill.Consumption)
		if bill.PenaltyAmount.IsPositive() {
			desc = fmt.Sprintf("%s incl. penalty %s", desc, bill.PenaltyAmount)
		}
		stmt.Lines = append(stmt.Lines, StatementLine{
			Date:        bill.CreatedAt,
			Type:        LineTypeCharge,
			Period:      bill.Period,
			Description: desc,
			Amount:      bill.TotalCharge(),
		})
		for _, rec := range bill.Payments {
			if rec.Amount.IsPositive() || rec.CreditDrawn().IsPositive() {
				stmt.Lines = append(stmt.Lines, StatementLine{
					Date:          rec.AppliedAt,
					Type:          LineTypePayment,
					Period:        bill.Period,
					Description:   fmt.Sprintf("Payment %s", rec.TransactionID),
					Amount:        rec.Amount.Neg(),
					CreditDrawn:   rec.CreditDrawn(),
					TransactionID: rec.TransactionID,
				})
			}
			stmt.CreditApplied = stmt.CreditApplied.Add(rec.CreditDrawn())
		}

		stmt.TotalCharged = stmt.TotalCharged.Add(bill.BaseCharge)
		stmt.TotalPenalties = stmt.TotalPenalties.Add(bill.PenaltyAmount)
		stmt.TotalCashPaid = stmt.TotalCashPaid.Add(bill.PaidAmount)
	}

	// Chronological order; charges come before payments landing at the
	// same instant so the running balance never dips below a line it is
	// about to pay.
	sort.SliceStable(stmt.Lines, func(i, j int) bool {
		if !stmt.Lines[i].Date.Equal(stmt.Lines[j].Date) {
			return stmt.Lines[i].Date.Before(stmt.Lines[j].Date)
		}
		return lineRank(stmt.Lines[i].Type) < lineRank(stmt.Lines[j].Type)
	})

	var running valueobject.Money
	for i := range stmt.Lines {
		running = running.Add(stmt.Lines[i].Amount)
		stmt.Lines[i].Balance = running
	}
	stmt.ClosingBalance = running

	balance, err := s.balances.FindByUnit(ctx, clientID, unitID)
	if err != nil {
		if !shared.IsCode(err, "NOT_FOUND") {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("failed to load credit balance: %w", err)
		}
	} else {
		stmt.CreditBalance = balance.Balance
	}

	return stmt, nil
}

func lineRank(t StatementLineType) int {
	if t == LineTypeCharge {
		return 0
	}
	return 1
}
