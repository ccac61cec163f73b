package orders

import (
	"context"
	"sync"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
)

type MemoryStore struct {
	mu    sync.Mutex
	byID  map[string]Order
	byKey map[string]string
	order []string
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: map[string]Order{}, byKey: map[string]string{}}
}

func (s *MemoryStore) Save(_ context.Context, o Order) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.IdempotencyKey != "" {
		if _, dup := s.byKey[o.IdempotencyKey]; dup {
			return Order{}, apperr.New(apperr.ErrRequestInProgress, "idempotency key already used")
		}
		s.byKey[o.IdempotencyKey] = o.ID
	}
	o.CreatedAt = time.Now().UTC()
	o.Lines = append([]Line(nil), o.Lines...)
	s.byID[o.ID] = o
	s.order = append(s.order, o.ID)
	return o, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.byID[id]
	if !ok {
		return Order{}, apperr.New(apperr.ErrOrderNotFound, "order not found")
	}
	return o, nil
}

func (s *MemoryStore) FindByIdempotencyKey(_ context.Context, key string) (Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byKey[key]
	if !ok {
		return Order{}, false, nil
	}
	return s.byID[id], true, nil
}

// All returns saved orders in insertion order.
func (s *MemoryStore) All() []Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Order, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}
