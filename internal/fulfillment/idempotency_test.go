package fulfillment

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/idempotency"
	"github.com/ariefcatur/go-marketplace-orders/internal/redisx"
	"github.com/ariefcatur/go-marketplace-orders/internal/wallet"
)

func withRedis(t *testing.T, c *Coordinator) *idempotency.Store {
	mr := miniredis.RunT(t)
	store := idempotency.NewStore(redisx.New(mr.Addr()), time.Hour)
	c.Idem = store
	return store
}

func TestCreateOrderOnce_ReplaysCompletedKey(t *testing.T) {
	w := newWorld(1000, product("A", 200, 5))
	c := w.coordinator()
	withRedis(t, c)
	ctx := context.Background()

	first, err := c.CreateOrderOnce(ctx, "key-1", "u-1", items("A", 1))
	require.NoError(t, err)
	second, err := c.CreateOrderOnce(ctx, "key-1", "u-1", items("A", 1))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.EqualValues(t, 1, w.charges.Load())
	assert.Equal(t, 4, w.inv.Stock("A"))
	assert.EqualValues(t, 1, w.metrics.Snapshot().Replayed)
}

func TestCreateOrderOnce_KeyInFlight(t *testing.T) {
	w := newWorld(1000, product("A", 200, 5))
	c := w.coordinator()
	store := withRedis(t, c)
	ctx := context.Background()

	_, err := store.Claim(ctx, "key-1")
	require.NoError(t, err)

	_, err = c.CreateOrderOnce(ctx, "key-1", "u-1", items("A", 1))
	assert.ErrorIs(t, err, apperr.ErrRequestInProgress)
	assert.Zero(t, w.profiles.Load())
}

func TestCreateOrderOnce_FailureFreesKey(t *testing.T) {
	w := newWorld(100, product("A", 200, 5))
	c := w.coordinator()
	withRedis(t, c)
	ctx := context.Background()

	_, err := c.CreateOrderOnce(ctx, "key-1", "u-1", items("A", 1))
	require.ErrorIs(t, err, apperr.ErrInsufficientBalance)

	w.wallets.Put(wallet.Profile{ID: "prof-1", UserID: "u-1", BalanceCents: 1000})
	o, err := c.CreateOrderOnce(ctx, "key-1", "u-1", items("A", 1))
	require.NoError(t, err)
	assert.EqualValues(t, 200, o.TotalCents)
}

func TestCreateOrderOnce_DatabaseKeyWithoutRedis(t *testing.T) {
	w := newWorld(1000, product("A", 200, 5))
	c := w.coordinator()
	ctx := context.Background()

	first, err := c.CreateOrderOnce(ctx, "key-1", "u-1", items("A", 2))
	require.NoError(t, err)
	assert.Equal(t, "key-1", first.IdempotencyKey)

	again, err := c.CreateOrderOnce(ctx, "key-1", "u-1", items("A", 2))
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.EqualValues(t, 1, w.charges.Load())
}

func TestCreateOrderOnce_RedisDownFallsBackToDatabase(t *testing.T) {
	w := newWorld(1000, product("A", 200, 5))
	c := w.coordinator()
	mr := miniredis.RunT(t)
	c.Idem = idempotency.NewStore(redisx.New(mr.Addr()), time.Hour)
	mr.Close()

	o, err := c.CreateOrderOnce(context.Background(), "key-1", "u-1", items("A", 1))
	require.NoError(t, err)
	assert.Equal(t, "key-1", o.IdempotencyKey)
}

func TestCreateOrderOnce_ValidatesBeforeLookup(t *testing.T) {
	w := newWorld(1000)
	_, err := w.coordinator().CreateOrderOnce(context.Background(), "key-1", "u-1", nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
}
