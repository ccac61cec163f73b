package orders

import (
	"context"
	"math"
	"math/bits"
	"time"
)

// Item is one requested (product, quantity) pair, in caller order.
type Item struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
}

// Line is an order line with the unit price captured while pricing.
type Line struct {
	ProductID      string `json:"product_id"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// Subtotal is quantity times unit price. ok is false when either is negative
// or the product does not fit in int64.
func (l Line) Subtotal() (cents int64, ok bool) {
	if l.Quantity < 0 || l.UnitPriceCents < 0 {
		return 0, false
	}
	hi, lo := bits.Mul64(uint64(l.Quantity), uint64(l.UnitPriceCents))
	if hi != 0 || lo > math.MaxInt64 {
		return 0, false
	}
	return int64(lo), true
}

// Order is written once, after a successful fulfillment, and never changes.
type Order struct {
	ID             string    `json:"order_id"`
	UserID         string    `json:"user_id"`
	TotalCents     int64     `json:"total_cents"`
	IdempotencyKey string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	Lines          []Line    `json:"lines"`
}

// Total sums the line subtotals. ok is false as soon as a subtotal or the
// running sum leaves int64.
func Total(lines []Line) (cents int64, ok bool) {
	var t int64
	for _, l := range lines {
		sub, ok := l.Subtotal()
		if !ok || t > math.MaxInt64-sub {
			return 0, false
		}
		t += sub
	}
	return t, true
}

// Store persists finalized orders. Save fails with apperr.ErrRequestInProgress
// when another order already holds the idempotency key.
type Store interface {
	Save(ctx context.Context, o Order) (Order, error)
	Get(ctx context.Context, id string) (Order, error)
	FindByIdempotencyKey(ctx context.Context, key string) (Order, bool, error)
}

const Schema = `
CREATE TABLE IF NOT EXISTS orders (
	id              TEXT PRIMARY KEY,
	idempotency_key TEXT UNIQUE,
	user_id         TEXT NOT NULL,
	total_cents     BIGINT NOT NULL CHECK (total_cents >= 0),
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS order_lines (
	order_id         TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
	line_no          INT NOT NULL,
	product_id       TEXT NOT NULL,
	quantity         INT NOT NULL CHECK (quantity >= 1),
	unit_price_cents BIGINT NOT NULL CHECK (unit_price_cents >= 0),
	PRIMARY KEY (order_id, line_no)
)`
