package inventory

import (
	"context"
	"time"
)

type Product struct {
	ID         string    `json:"id"`
	SKU        string    `json:"sku"`
	Name       string    `json:"name"`
	Stock      int       `json:"stock"`
	PriceCents int64     `json:"price_cents"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// StockMove is the body of a reserve or release request.
type StockMove struct {
	Quantity int `json:"quantity" validate:"gte=1"`
}

// StockLevel answers a reserve or release.
type StockLevel struct {
	ProductID string `json:"product_id"`
	Remaining int    `json:"remaining"`
}

// Ledger owns the stock >= 0 invariant for every product.
type Ledger interface {
	// Reserve atomically takes qty units. Fails with apperr.ErrProductNotFound
	// or apperr.ErrInsufficientStock; on failure stock is untouched.
	Reserve(ctx context.Context, productID string, qty int) (remaining int, err error)
	// Release adds qty units back. It does not check that they were reserved.
	Release(ctx context.Context, productID string, qty int) (remaining int, err error)
}

// Catalog is the read side: current price and stock.
type Catalog interface {
	Product(ctx context.Context, productID string) (Product, error)
	List(ctx context.Context) ([]Product, error)
}

type Store interface {
	Ledger
	Catalog
}

const Schema = `
CREATE TABLE IF NOT EXISTS products (
	id          TEXT PRIMARY KEY,
	sku         TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	stock       INTEGER NOT NULL CHECK (stock >= 0),
	price_cents BIGINT NOT NULL CHECK (price_cents >= 0),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`
