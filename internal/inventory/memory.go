package inventory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
)

// MemoryStore is an in-process Store guarded by one mutex.
type MemoryStore struct {
	mu       sync.Mutex
	products map[string]*Product
	now      func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(products ...Product) *MemoryStore {
	s := &MemoryStore{products: make(map[string]*Product), now: time.Now}
	for _, p := range products {
		s.Put(p)
	}
	return s
}

func (s *MemoryStore) Put(p Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.SKU == "" {
		p.SKU = p.ID
	}
	s.products[p.ID] = &p
}

// SetPrice changes the catalog price in place.
func (s *MemoryStore) SetPrice(productID string, priceCents int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[productID]; ok {
		p.PriceCents = priceCents
	}
}

func (s *MemoryStore) Stock(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[productID]; ok {
		return p.Stock
	}
	return 0
}

func (s *MemoryStore) Reserve(_ context.Context, productID string, qty int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return 0, apperr.New(apperr.ErrProductNotFound, "product not found: "+productID)
	}
	if p.Stock < qty {
		return p.Stock, apperr.New(apperr.ErrInsufficientStock,
			fmt.Sprintf("insufficient stock for %s: required %d, available %d", productID, qty, p.Stock))
	}
	p.Stock -= qty
	p.UpdatedAt = s.now().UTC()
	return p.Stock, nil
}

func (s *MemoryStore) Release(_ context.Context, productID string, qty int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return 0, apperr.New(apperr.ErrProductNotFound, "product not found: "+productID)
	}
	p.Stock += qty
	p.UpdatedAt = s.now().UTC()
	return p.Stock, nil
}

func (s *MemoryStore) Product(_ context.Context, productID string) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return Product{}, apperr.New(apperr.ErrProductNotFound, "product not found: "+productID)
	}
	return *p, nil
}

func (s *MemoryStore) List(_ context.Context) ([]Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}
