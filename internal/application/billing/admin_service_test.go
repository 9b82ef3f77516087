package billing

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/billing"
	"github.com/propman/backend/internal/domain/credit"
	"github.com/propman/backend/internal/domain/shared"
	"github.com/propman/backend/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminService_CorrectBill(t *testing.T) {
	store := newMemStore()
	clientID := uuid.New()
	unitID := uuid.New()
	period := billing.FiscalPeriod{Year: 2026, Month: 2}

	bill := seedBill(t, store, clientID, unitID, period, 20) // 100000

	svc := NewAdminService(store)
	corrected, err := svc.CorrectBill(context.Background(), CorrectBillRequest{
		ClientID:      clientID,
		BillID:        bill.ID,
		OperatorID:    uuid.New(),
		Reason:        "meter misread, verified on site",
		BaseCharge:    valueobject.NewMoney(90000),
		PenaltyAmount: valueobject.Zero,
	})
	require.NoError(t, err)

	assert.Equal(t, valueobject.NewMoney(90000), corrected.BaseCharge)
	require.Len(t, corrected.Corrections, 1)
	assert.Equal(t, "meter misread, verified on site", corrected.Corrections[0].Reason)

	marker, err := store.YearMarkers().GetLastUpdated(context.Background(), clientID, period.Year)
	require.NoError(t, err)
	assert.False(t, marker.IsZero())
}

func TestAdminService_CorrectBill_Validation(t *testing.T) {
	store := newMemStore()
	svc := NewAdminService(store)

	_, err := svc.CorrectBill(context.Background(), CorrectBillRequest{
		ClientID:   uuid.New(),
		BillID:     uuid.New(),
		OperatorID: uuid.New(),
		Reason:     "no such bill",
		BaseCharge: valueobject.NewMoney(1),
	})
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", shared.ErrorCode(err))
}

func TestAdminService_AdjustCredit(t *testing.T) {
	store := newMemStore()
	clientID := uuid.New()
	unitID := uuid.New()
	svc := NewAdminService(store)

	balance, err := svc.AdjustCredit(context.Background(), AdjustCreditRequest{
		ClientID:   clientID,
		UnitID:     unitID,
		OperatorID: uuid.New(),
		Amount:     valueobject.NewMoney(10000),
		Reference:  "goodwill",
	})
	require.NoError(t, err)
	assert.Equal(t, valueobject.NewMoney(10000), balance.Balance)

	require.Len(t, store.creditTxns, 1)
	assert.Equal(t, credit.TransactionTypeAdjustment, store.creditTxns[0].Type)

	// Downward past zero is rejected and the history gains no entry.
	_, err = svc.AdjustCredit(context.Background(), AdjustCreditRequest{
		ClientID:   clientID,
		UnitID:     unitID,
		OperatorID: uuid.New(),
		Amount:     valueobject.NewMoney(-20000),
	})
	require.Error(t, err)
	assert.Equal(t, "INSUFFICIENT_CREDIT", shared.ErrorCode(err))
	assert.Len(t, store.creditTxns, 1)

	_, err = svc.AdjustCredit(context.Background(), AdjustCreditRequest{
		ClientID: clientID,
		UnitID:   unitID,
		Amount:   valueobject.NewMoney(1),
	})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", shared.ErrorCode(err))
}
