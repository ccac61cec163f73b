// Package idempotency tracks client-supplied idempotency keys for order
// creation in Redis.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-marketplace-orders/internal/redisx"
)

const pending = "pending"

type State int

const (
	// Acquired: the caller owns the key and must Complete or Release it.
	Acquired State = iota
	// InProgress: another request holds the key right now.
	InProgress
	// Done: a previous request finished; OrderID names its order.
	Done
)

type Claim struct {
	State   State
	OrderID string
}

type Store struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewStore(rdb redis.Cmdable, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = redisx.TTLIdempotency
	}
	return &Store{rdb: rdb, ttl: ttl}
}

func key(k string) string { return fmt.Sprintf(redisx.KeyIdemOrderCreate, k) }

func (s *Store) Claim(ctx context.Context, k string) (Claim, error) {
	ok, err := s.rdb.SetNX(ctx, key(k), pending, s.ttl).Result()
	if err != nil {
		return Claim{}, err
	}
	if ok {
		return Claim{State: Acquired}, nil
	}
	return s.Lookup(ctx, k)
}

// Lookup reports the current state of k without claiming it. An unknown key
// comes back as Acquired with nothing stored.
func (s *Store) Lookup(ctx context.Context, k string) (Claim, error) {
	v, err := s.rdb.Get(ctx, key(k)).Result()
	if errors.Is(err, redis.Nil) {
		return Claim{State: Acquired}, nil
	}
	if err != nil {
		return Claim{}, err
	}
	if v == pending {
		return Claim{State: InProgress}, nil
	}
	return Claim{State: Done, OrderID: v}, nil
}

func (s *Store) Complete(ctx context.Context, k, orderID string) error {
	return s.rdb.Set(ctx, key(k), orderID, s.ttl).Err()
}

// releasePending deletes the key only while it is still a pending claim, so
// a late Release never drops a completed result.
var releasePending = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

func (s *Store) Release(ctx context.Context, k string) error {
	return releasePending.Run(ctx, s.rdb, []string{key(k)}, pending).Err()
}
