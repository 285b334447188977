package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/w1r2p1/moonshot/internal/domain"
)

func TestPositionStore_UpsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPositionStore(pool)

	pos := &domain.HeldPosition{
		InstrumentID: "FI1", Account: "U1", OrderRef: "mavg-us", Quantity: 100,
	}
	require.NoError(t, store.UpsertPosition(ctx, pos))

	// Replace with a new quantity.
	pos.Quantity = 250
	require.NoError(t, store.UpsertPosition(ctx, pos))

	held, err := store.GetPositions(ctx, "mavg-us", []string{"U1"}, []string{"FI1"})
	require.NoError(t, err)

	require.Len(t, held, 1)
	assert.Equal(t, int64(250), held[0].Quantity)
}

func TestPositionStore_FiltersByOrderRef(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPositionStore(pool)

	require.NoError(t, store.UpsertPosition(ctx, &domain.HeldPosition{
		InstrumentID: "FI1", Account: "U1", OrderRef: "mavg-us", Quantity: 100,
	}))
	require.NoError(t, store.UpsertPosition(ctx, &domain.HeldPosition{
		InstrumentID: "FI1", Account: "U1", OrderRef: "other", Quantity: 50,
	}))

	held, err := store.GetPositions(ctx, "mavg-us", []string{"U1"}, []string{"FI1"})
	require.NoError(t, err)

	require.Len(t, held, 1)
	assert.Equal(t, int64(100), held[0].Quantity)
}

func TestPositionStore_ZeroQuantityRemoves(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPositionStore(pool)

	pos := &domain.HeldPosition{
		InstrumentID: "FI1", Account: "U1", OrderRef: "mavg-us", Quantity: 100,
	}
	require.NoError(t, store.UpsertPosition(ctx, pos))

	pos.Quantity = 0
	require.NoError(t, store.UpsertPosition(ctx, pos))

	held, err := store.GetPositions(ctx, "mavg-us", []string{"U1"}, []string{"FI1"})
	require.NoError(t, err)
	assert.Empty(t, held)
}
