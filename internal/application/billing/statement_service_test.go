package billing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/billing"
	"github.com/propman/backend/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatementService_ChronologyAndRunningBalance(t *testing.T) {
	store := newMemStore()
	clientID := uuid.New()
	unitID := uuid.New()

	// Two bills; the first accrues a penalty and is then paid with cash
	// plus credit, the second stays open.
	first := seedBill(t, store, clientID, unitID, billing.FiscalPeriod{Year: 2026, Month: 0}, 20) // 100000
	first.CreatedAt = first.DueDate.AddDate(0, 0, -14)
	_, err := first.ApplyPenalty(testPolicy(), first.DueDate) // 5000
	require.NoError(t, err)
	paidAt := first.DueDate.AddDate(0, 0, 3)
	require.NoError(t, first.ApplyPayment("txn-1",
		valueobject.NewMoney(5000), valueobject.NewMoney(75000), valueobject.NewMoney(25000), paidAt))
	require.Equal(t, billing.BillStatusPaid, first.Status)

	second := seedBill(t, store, clientID, unitID, billing.FiscalPeriod{Year: 2026, Month: 1}, 10) // 50000
	second.CreatedAt = second.DueDate.AddDate(0, 0, -14)

	svc := NewStatementService(store.Bills(), store.CreditBalances())
	stmt, err := svc.GenerateStatement(context.Background(), clientID, unitID, 2026)
	require.NoError(t, err)

	// One charge line per bill, one payment line per transaction.
	require.Len(t, stmt.Lines, 3)

	assert.Equal(t, valueobject.NewMoney(150000), stmt.TotalCharged)
	assert.Equal(t, valueobject.NewMoney(5000), stmt.TotalPenalties)
	assert.Equal(t, valueobject.NewMoney(80000), stmt.TotalCashPaid)
	assert.Equal(t, valueobject.NewMoney(25000), stmt.CreditApplied)

	// The charge line folds the penalty into a single amount.
	assert.Equal(t, LineTypeCharge, stmt.Lines[0].Type)
	assert.Equal(t, valueobject.NewMoney(105000), stmt.Lines[0].Amount)

	// The payment line carries cash only; the credit draw rides along as
	// information and never moves the running balance.
	assert.Equal(t, LineTypePayment, stmt.Lines[1].Type)
	assert.Equal(t, valueobject.NewMoney(-80000), stmt.Lines[1].Amount)
	assert.Equal(t, valueobject.NewMoney(25000), stmt.Lines[1].CreditDrawn)
	assert.Equal(t, "txn-1", stmt.Lines[1].TransactionID)
	assert.Equal(t, valueobject.NewMoney(25000), stmt.Lines[1].Balance)

	assert.Equal(t, LineTypeCharge, stmt.Lines[2].Type)
	assert.Equal(t, valueobject.NewMoney(50000), stmt.Lines[2].Amount)

	// Closing balance is charges minus cash: 155000 - 80000 = 75000,
	// with the 25000 credit draw excluded.
	assert.Equal(t, valueobject.NewMoney(75000), stmt.ClosingBalance)

	// Lines are chronological and the running balance never skips.
	var running valueobject.Money
	for i, line := range stmt.Lines {
		if i > 0 {
			assert.False(t, line.Date.Before(stmt.Lines[i-1].Date),
				"line %d out of order", i)
		}
		running = running.Add(line.Amount)
		assert.Equal(t, running, line.Balance)
	}
}

func TestStatementService_EmptyYear(t *testing.T) {
	store := newMemStore()
	svc := NewStatementService(store.Bills(), store.CreditBalances())

	stmt, err := svc.GenerateStatement(context.Background(), uuid.New(), uuid.New(), 2026)
	require.NoError(t, err)
	assert.Empty(t, stmt.Lines)
	assert.True(t, stmt.ClosingBalance.IsZero())
	assert.True(t, stmt.CreditBalance.IsZero())
}

func TestStatementService_ReportsCreditBalance(t *testing.T) {
	store := newMemStore()
	clientID := uuid.New()
	unitID := uuid.New()

	bill := seedBill(t, store, clientID, unitID, billing.FiscalPeriod{Year: 2026, Month: 0}, 10)
	require.NoError(t, bill.ApplyPayment("txn-1", valueobject.Zero, valueobject.NewMoney(50000), valueobject.Zero, time.Now()))
	seedCredit(t, store, clientID, unitID, 30000)

	svc := NewStatementService(store.Bills(), store.CreditBalances())
	stmt, err := svc.GenerateStatement(context.Background(), clientID, unitID, 2026)
	require.NoError(t, err)

	assert.Equal(t, valueobject.NewMoney(30000), stmt.CreditBalance)
	assert.True(t, stmt.ClosingBalance.IsZero())
}
