package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cflow/backend/internal/domain/shared/valueobject"
)

func TestInMemoryCirculationCache(t *testing.T) {
	ctx := context.Background()
	month := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("set then get round-trips", func(t *testing.T) {
		c := NewInMemoryCirculationCache(0)
		buildingID := uuid.New()
		cost := valueobject.NewMoneyEURFromFloat(29.07)

		require.NoError(t, c.Set(ctx, buildingID, month, cost))

		got, ok, err := c.Get(ctx, buildingID, month)
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, got.Equals(cost))
	})

	t.Run("miss on unknown building", func(t *testing.T) {
		c := NewInMemoryCirculationCache(0)

		_, ok, err := c.Get(ctx, uuid.New(), month)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("entries expire after the TTL", func(t *testing.T) {
		c := NewInMemoryCirculationCache(10 * time.Millisecond)
		buildingID := uuid.New()
		require.NoError(t, c.Set(ctx, buildingID, month, valueobject.NewMoneyEURFromFloat(10)))

		time.Sleep(20 * time.Millisecond)

		_, ok, err := c.Get(ctx, buildingID, month)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("clearing one building keeps the rest", func(t *testing.T) {
		c := NewInMemoryCirculationCache(0)
		a, b := uuid.New(), uuid.New()
		require.NoError(t, c.Set(ctx, a, month, valueobject.NewMoneyEURFromFloat(10)))
		require.NoError(t, c.Set(ctx, a, month.AddDate(0, 1, 0), valueobject.NewMoneyEURFromFloat(11)))
		require.NoError(t, c.Set(ctx, b, month, valueobject.NewMoneyEURFromFloat(20)))

		require.NoError(t, c.ClearBuilding(ctx, a))

		_, ok, _ := c.Get(ctx, a, month)
		assert.False(t, ok)
		_, ok, _ = c.Get(ctx, a, month.AddDate(0, 1, 0))
		assert.False(t, ok)
		_, ok, _ = c.Get(ctx, b, month)
		assert.True(t, ok)
	})

	t.Run("clear empties everything", func(t *testing.T) {
		c := NewInMemoryCirculationCache(0)
		a := uuid.New()
		require.NoError(t, c.Set(ctx, a, month, valueobject.NewMoneyEURFromFloat(10)))

		require.NoError(t, c.Clear(ctx))

		_, ok, _ := c.Get(ctx, a, month)
		assert.False(t, ok)
	})
}
