package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-marketplace-orders/internal/logging"
	"github.com/ariefcatur/go-marketplace-orders/internal/redisx"
)

func placedMessage(t *testing.T, orderID string) (kafkago.Message, Envelope) {
	t.Helper()
	env, err := NewEnvelope(EventOrderPlaced, "api", orderID, "", OrderPlacedPayload{
		OrderID:    orderID,
		UserID:     "u-1",
		TotalCents: 600,
		Lines:      []Line{{ProductID: "p-1", Quantity: 3, UnitPriceCents: 200}},
		CreatedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	require.NoError(t, err)
	b, err := json.Marshal(env)
	require.NoError(t, err)
	return kafkago.Message{Key: PartitionKey(orderID), Value: b}, env
}

func newProjector(t *testing.T) (*Projector, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redisx.New(mr.Addr())
	t.Cleanup(func() { _ = rdb.Close() })
	return &Projector{Cache: NewCache(rdb), Redis: rdb, Name: "projector", Log: logging.Discard()}, mr
}

func TestProjector_CachesPlacedOrder(t *testing.T) {
	p, mr := newProjector(t)
	ctx := context.Background()
	m, env := placedMessage(t, "o-1")

	require.NoError(t, p.Handle(ctx, m))

	o, ok, err := p.Cache.Get(ctx, "o-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "u-1", o.UserID)
	assert.EqualValues(t, 600, o.TotalCents)
	assert.Len(t, o.Lines, 1)
	assert.True(t, mr.Exists(fmt.Sprintf(redisx.KeyDedup, "projector", env.EventID)))
}

func TestProjector_AppliesEventOnce(t *testing.T) {
	p, mr := newProjector(t)
	ctx := context.Background()
	m, _ := placedMessage(t, "o-1")

	require.NoError(t, p.Handle(ctx, m))
	mr.Del(fmt.Sprintf(redisx.KeyOrderSummary, "o-1"))

	require.NoError(t, p.Handle(ctx, m))
	_, ok, err := p.Cache.Get(ctx, "o-1")
	require.NoError(t, err)
	assert.False(t, ok, "redelivered event must be skipped")
}

func TestProjector_IgnoresOtherEventsAndGarbage(t *testing.T) {
	p, mr := newProjector(t)
	ctx := context.Background()

	env, err := NewEnvelope(EventOrderAborted, "api", "o-2", "", OrderAbortedPayload{OrderID: "o-2", Code: "insufficient_stock"})
	require.NoError(t, err)
	b, _ := json.Marshal(env)

	require.NoError(t, p.Handle(ctx, kafkago.Message{Value: b}))
	require.NoError(t, p.Handle(ctx, kafkago.Message{Value: []byte("{not json")}))
	assert.Empty(t, mr.Keys())
}

func TestProjector_RedisDownKeepsOffset(t *testing.T) {
	p, mr := newProjector(t)
	m, _ := placedMessage(t, "o-1")
	mr.Close()

	assert.Error(t, p.Handle(context.Background(), m))
}
