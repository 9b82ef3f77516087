package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/credit"
	"github.com/propman/backend/internal/domain/shared"
	"github.com/propman/backend/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormCreditBalanceRepository_SaveAndFind(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormCreditBalanceRepository(db)
	ctx := context.Background()

	clientID := uuid.New()
	unitID := uuid.New()

	balance, err := credit.NewCreditBalance(clientID, unitID)
	require.NoError(t, err)
	_, err = balance.Deposit(valueobject.NewMoney(50000), "TXN-001")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, balance))

	found, err := repo.FindByUnit(ctx, clientID, unitID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.NewMoney(50000), found.Balance)
	assert.Equal(t, balance.Version, found.Version)

	t.Run("unknown unit returns not found", func(t *testing.T) {
		_, err := repo.FindByUnit(ctx, clientID, uuid.New())
		assert.Equal(t, "NOT_FOUND", shared.ErrorCode(err))
	})
}

func TestGormCreditBalanceRepository_SaveWithLock_Conflict(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormCreditBalanceRepository(db)
	ctx := context.Background()

	clientID := uuid.New()
	unitID := uuid.New()

	balance, err := credit.NewCreditBalance(clientID, unitID)
	require.NoError(t, err)
	_, err = balance.Deposit(valueobject.NewMoney(50000), "TXN-001")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, balance))

	first, err := repo.FindByUnit(ctx, clientID, unitID)
	require.NoError(t, err)
	second, err := repo.FindByUnit(ctx, clientID, unitID)
	require.NoError(t, err)

	_, err = first.Draw(valueobject.NewMoney(20000), "TXN-002")
	require.NoError(t, err)
	require.NoError(t, repo.SaveWithLock(ctx, first))

	_, err = second.Draw(valueobject.NewMoney(20000), "TXN-003")
	require.NoError(t, err)
	err = repo.SaveWithLock(ctx, second)
	assert.Equal(t, "OPTIMISTIC_LOCK_ERROR", shared.ErrorCode(err))

	found, err := repo.FindByUnit(ctx, clientID, unitID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.NewMoney(30000), found.Balance)
}

func TestGormCreditBalanceRepository_SaveWithLock_PersistsZeroBalance(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormCreditBalanceRepository(db)
	ctx := context.Background()

	clientID := uuid.New()
	unitID := uuid.New()

	balance, err := credit.NewCreditBalance(clientID, unitID)
	require.NoError(t, err)
	_, err = balance.Deposit(valueobject.NewMoney(30000), "TXN-001")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, balance))

	// Drawing the whole balance writes a zero column; the update must
	// not drop it.
	_, err = balance.Draw(valueobject.NewMoney(30000), "TXN-002")
	require.NoError(t, err)
	require.NoError(t, repo.SaveWithLock(ctx, balance))

	found, err := repo.FindByUnit(ctx, clientID, unitID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.Zero, found.Balance)
	assert.Equal(t, balance.Version, found.Version)
}

func TestGormCreditTransactionRepository_ListByUnit(t *testing.T) {
	db := setupBillingTestDB(t)
	balanceRepo := NewGormCreditBalanceRepository(db)
	txnRepo := NewGormCreditTransactionRepository(db)
	ctx := context.Background()

	clientID := uuid.New()
	unitID := uuid.New()

	balance, err := credit.NewCreditBalance(clientID, unitID)
	require.NoError(t, err)

	// Three history entries with distinct timestamps.
	amounts := []int64{50000, -20000, 10000}
	refs := []string{"TXN-001", "TXN-002", "TXN-003"}
	base := time.Now().Add(-time.Hour)
	for i := range amounts {
		var txn *credit.CreditTransaction
		if amounts[i] < 0 {
			txn, err = balance.Draw(valueobject.NewMoney(-amounts[i]), refs[i])
		} else {
			txn, err = balance.Deposit(valueobject.NewMoney(amounts[i]), refs[i])
		}
		require.NoError(t, err)
		txn.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, txnRepo.Create(ctx, txn))
	}
	require.NoError(t, balanceRepo.Save(ctx, balance))

	t.Run("newest first with pagination", func(t *testing.T) {
		filter := shared.DefaultFilter()
		filter.PageSize = 2

		page, err := txnRepo.ListByUnit(ctx, clientID, unitID, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(3), page.Total)
		assert.Equal(t, 2, page.TotalPages)
		require.Len(t, page.Items, 2)
		assert.Equal(t, "TXN-003", page.Items[0].SourceTransactionID)
		assert.Equal(t, "TXN-002", page.Items[1].SourceTransactionID)

		filter.Page = 2
		page, err = txnRepo.ListByUnit(ctx, clientID, unitID, filter)
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "TXN-001", page.Items[0].SourceTransactionID)
	})

	t.Run("running balances replay to the stored balance", func(t *testing.T) {
		page, err := txnRepo.ListByUnit(ctx, clientID, unitID, shared.DefaultFilter())
		require.NoError(t, err)

		oldest := page.Items[len(page.Items)-1]
		assert.Equal(t, valueobject.Zero, oldest.BalanceBefore)
		assert.Equal(t, valueobject.NewMoney(40000), page.Items[0].BalanceAfter)
		assert.Equal(t, valueobject.NewMoney(40000), balance.Balance)
	})

	t.Run("scoped to unit", func(t *testing.T) {
		page, err := txnRepo.ListByUnit(ctx, clientID, uuid.New(), shared.DefaultFilter())
		require.NoError(t, err)
		assert.Empty(t, page.Items)
		assert.Equal(t, int64(0), page.Total)
	})
}
