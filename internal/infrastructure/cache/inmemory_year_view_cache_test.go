package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	appbilling "github.com/propman/backend/internal/application/billing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cachedView(clientID, unitID uuid.UUID, fiscalYear int, builtAt time.Time) *appbilling.CachedYearView {
	return &appbilling.CachedYearView{
		View: &appbilling.YearView{
			ClientID:   clientID,
			UnitID:     unitID,
			FiscalYear: fiscalYear,
		},
		BuiltAt: builtAt,
	}
}

func TestInMemoryYearViewCache_SetGetInvalidate(t *testing.T) {
	c := NewInMemoryYearViewCache(0)
	ctx := context.Background()

	clientID := uuid.New()
	unitID := uuid.New()
	builtAt := time.Now()

	got, err := c.Get(ctx, clientID, unitID, 2026)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.Set(ctx, clientID, unitID, 2026, cachedView(clientID, unitID, 2026, builtAt)))

	got, err = c.Get(ctx, clientID, unitID, 2026)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2026, got.View.FiscalYear)
	assert.True(t, got.BuiltAt.Equal(builtAt))

	t.Run("keys are scoped per unit and year", func(t *testing.T) {
		got, err := c.Get(ctx, clientID, uuid.New(), 2026)
		require.NoError(t, err)
		assert.Nil(t, got)

		got, err = c.Get(ctx, clientID, unitID, 2027)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	require.NoError(t, c.Invalidate(ctx, clientID, unitID, 2026))
	got, err = c.Get(ctx, clientID, unitID, 2026)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInMemoryYearViewCache_TTL(t *testing.T) {
	c := NewInMemoryYearViewCache(10 * time.Millisecond)
	ctx := context.Background()

	clientID := uuid.New()
	unitID := uuid.New()

	require.NoError(t, c.Set(ctx, clientID, unitID, 2026, cachedView(clientID, unitID, 2026, time.Now())))

	got, err := c.Get(ctx, clientID, unitID, 2026)
	require.NoError(t, err)
	assert.NotNil(t, got)

	time.Sleep(15 * time.Millisecond)

	got, err = c.Get(ctx, clientID, unitID, 2026)
	require.NoError(t, err)
	assert.Nil(t, got)
}
