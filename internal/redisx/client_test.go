package redisx

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONRoundTripAndTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := New(mr.Addr())
	ctx := context.Background()
	key := fmt.Sprintf(KeyOrderSummary, "o-1")

	type summary struct {
		ID    string `json:"id"`
		Total int64  `json:"total"`
	}
	var out summary
	ok, err := GetJSON(ctx, rdb, key, &out)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, SetJSON(ctx, rdb, key, summary{ID: "o-1", Total: 600}, TTLOrderCache))
	ok, err = GetJSON(ctx, rdb, key, &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, summary{ID: "o-1", Total: 600}, out)

	mr.FastForward(TTLOrderCache + time.Second)
	exists, err := Exists(ctx, rdb, key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFirstSeen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := New(mr.Addr())
	key := fmt.Sprintf(KeyDedup, "projector", "evt-1")

	first, err := FirstSeen(context.Background(), rdb, key, TTLDedup)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := FirstSeen(context.Background(), rdb, key, TTLDedup)
	require.NoError(t, err)
	assert.False(t, again)
}
