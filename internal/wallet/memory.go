package wallet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
)

type MemoryStore struct {
	mu       sync.Mutex
	profiles map[string]*Profile // by profile id
	byUser   map[string]string   // user id -> profile id
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(profiles ...Profile) *MemoryStore {
	s := &MemoryStore{profiles: map[string]*Profile{}, byUser: map[string]string{}}
	for _, p := range profiles {
		s.Put(p)
	}
	return s
}

func (s *MemoryStore) Put(p Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.UpdatedAt = time.Now().UTC()
	s.profiles[p.ID] = &p
	s.byUser[p.UserID] = p.ID
}

func (s *MemoryStore) Balance(profileID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[profileID]; ok {
		return p.BalanceCents
	}
	return 0
}

func (s *MemoryStore) Debit(_ context.Context, profileID string, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[profileID]
	if !ok {
		return 0, apperr.New(apperr.ErrUserNotFound, "profile not found: "+profileID)
	}
	if p.BalanceCents < amount {
		return p.BalanceCents, apperr.New(apperr.ErrInsufficientBalance,
			fmt.Sprintf("insufficient balance on %s: required %d, available %d", profileID, amount, p.BalanceCents))
	}
	p.BalanceCents -= amount
	p.UpdatedAt = time.Now().UTC()
	return p.BalanceCents, nil
}

func (s *MemoryStore) Credit(_ context.Context, profileID string, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[profileID]
	if !ok {
		return 0, apperr.New(apperr.ErrUserNotFound, "profile not found: "+profileID)
	}
	p.BalanceCents += amount
	p.UpdatedAt = time.Now().UTC()
	return p.BalanceCents, nil
}

func (s *MemoryStore) ProfileByUser(_ context.Context, userID string) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byUser[userID]
	if !ok {
		return Profile{}, apperr.New(apperr.ErrUserNotFound, "no profile for user "+userID)
	}
	return *s.profiles[id], nil
}
