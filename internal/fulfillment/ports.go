package fulfillment

import (
	"context"

	"github.com/ariefcatur/go-marketplace-orders/internal/idempotency"
	"github.com/ariefcatur/go-marketplace-orders/internal/inventory"
	"github.com/ariefcatur/go-marketplace-orders/internal/payment"
	"github.com/ariefcatur/go-marketplace-orders/internal/wallet"
)

// Users resolves the wallet-bearing profile of a user.
type Users interface {
	Profile(ctx context.Context, userID string) (wallet.Profile, error)
}

// Catalog is the price lookup.
type Catalog interface {
	Product(ctx context.Context, productID string) (inventory.Product, error)
}

// Stock is the reservation side of the product owner.
type Stock interface {
	Reserve(ctx context.Context, productID string, qty int) (int, error)
	Release(ctx context.Context, productID string, qty int) (int, error)
}

type Payments interface {
	Charge(ctx context.Context, c payment.Charge) (payment.Record, error)
	Refund(ctx context.Context, r payment.Refund) (payment.Record, error)
}

type Idempotency interface {
	Claim(ctx context.Context, key string) (idempotency.Claim, error)
	Complete(ctx context.Context, key, orderID string) error
	Release(ctx context.Context, key string) error
}

// Events receives encoded envelopes. Delivery is best effort.
type Events interface {
	Publish(ctx context.Context, topic string, key, value []byte)
}

var _ Idempotency = (*idempotency.Store)(nil)
