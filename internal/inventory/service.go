package inventory

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
)

// Service is what the inventory HTTP handlers call. It validates input and
// logs every stock movement; atomicity is the Store's job.
type Service struct {
	Store Store
	Log   *slog.Logger
}

func (s *Service) Product(ctx context.Context, productID string) (Product, error) {
	if strings.TrimSpace(productID) == "" {
		return Product{}, apperr.New(apperr.ErrInvalidRequest, "missing product id")
	}
	return s.Store.Product(ctx, productID)
}

func (s *Service) List(ctx context.Context) ([]Product, error) {
	return s.Store.List(ctx)
}

func (s *Service) Reserve(ctx context.Context, productID string, qty int) (int, error) {
	if err := validate(productID, qty); err != nil {
		return 0, err
	}
	remaining, err := s.Store.Reserve(ctx, productID, qty)
	if err != nil {
		s.Log.WarnContext(ctx, "reserve rejected", "product_id", productID, "qty", qty, "err", err)
		return 0, err
	}
	s.Log.InfoContext(ctx, "stock reserved", "product_id", productID, "qty", qty, "remaining", remaining)
	return remaining, nil
}

func (s *Service) Release(ctx context.Context, productID string, qty int) (int, error) {
	if err := validate(productID, qty); err != nil {
		return 0, err
	}
	remaining, err := s.Store.Release(ctx, productID, qty)
	if err != nil {
		s.Log.WarnContext(ctx, "release rejected", "product_id", productID, "qty", qty, "err", err)
		return 0, err
	}
	s.Log.InfoContext(ctx, "stock released", "product_id", productID, "qty", qty, "remaining", remaining)
	return remaining, nil
}

func validate(productID string, qty int) error {
	if strings.TrimSpace(productID) == "" {
		return apperr.New(apperr.ErrInvalidRequest, "missing product id")
	}
	if qty <= 0 {
		return apperr.New(apperr.ErrInvalidRequest, "quantity must be positive")
	}
	return nil
}
