package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-marketplace-orders/internal/redisx"
)

// Cache is the Redis read model behind GET /orders/{id}. Orders never change
// after Save, so an entry can only be missing, never stale.
type Cache struct {
	Redis redis.Cmdable
	TTL   time.Duration
}

func NewCache(rdb redis.Cmdable) *Cache {
	return &Cache{Redis: rdb, TTL: redisx.TTLOrderCache}
}

func (c *Cache) Get(ctx context.Context, id string) (Order, bool, error) {
	var o Order
	ok, err := redisx.GetJSON(ctx, c.Redis, fmt.Sprintf(redisx.KeyOrderSummary, id), &o)
	return o, ok, err
}

func (c *Cache) Put(ctx context.Context, o Order) error {
	return redisx.SetJSON(ctx, c.Redis, fmt.Sprintf(redisx.KeyOrderSummary, o.ID), o, c.TTL)
}
