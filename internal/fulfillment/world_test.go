package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ariefcatur/go-marketplace-orders/internal/inventory"
	"github.com/ariefcatur/go-marketplace-orders/internal/logging"
	"github.com/ariefcatur/go-marketplace-orders/internal/metrics"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders/internal/payment"
	"github.com/ariefcatur/go-marketplace-orders/internal/wallet"
)

// world wires the coordinator to in-memory owners and counts every call that
// would cross the network.
type world struct {
	inv     *inventory.MemoryStore
	wallets *wallet.MemoryStore
	journal *payment.MemoryBook
	pay     *payment.Service
	orders  *orders.MemoryStore
	events  *recorder
	metrics *metrics.Saga

	profiles, products, charges, refunds, reserves, releases atomic.Int32

	// Fault injection; nil means pass through.
	reserveErr func(productID string) error
	releaseErr func(productID string) error
	chargeErr  error
	refundErr  error
	saveErr    error
	afterPrice func(productID string)
}

func newWorld(balance int64, products ...inventory.Product) *world {
	w := &world{
		inv:     inventory.NewMemoryStore(products...),
		wallets: wallet.NewMemoryStore(wallet.Profile{ID: "prof-1", UserID: "u-1", BalanceCents: balance}),
		orders:  orders.NewMemoryStore(),
		events:  &recorder{},
		metrics: metrics.NewSaga(),
	}
	w.journal = payment.NewMemoryBook(w.wallets)
	w.pay = &payment.Service{Wallet: w.wallets, Book: w.journal, Log: logging.Discard()}
	return w
}

func (w *world) coordinator() *Coordinator {
	return &Coordinator{
		Users:    w,
		Catalog:  w,
		Stock:    w,
		Payments: w,
		Orders:   w,
		Events:   w.events,
		Metrics:  w.metrics,
		Log:      logging.Discard(),
		Producer: "order-api-test",
	}
}

func (w *world) Profile(ctx context.Context, userID string) (wallet.Profile, error) {
	w.profiles.Add(1)
	return w.pay.Profile(ctx, userID)
}

func (w *world) Product(ctx context.Context, productID string) (inventory.Product, error) {
	w.products.Add(1)
	p, err := w.inv.Product(ctx, productID)
	if err == nil && w.afterPrice != nil {
		w.afterPrice(productID)
	}
	return p, err
}

func (w *world) Reserve(ctx context.Context, productID string, qty int) (int, error) {
	w.reserves.Add(1)
	if w.reserveErr != nil {
		if err := w.reserveErr(productID); err != nil {
			return 0, err
		}
	}
	return w.inv.Reserve(ctx, productID, qty)
}

func (w *world) Release(ctx context.Context, productID string, qty int) (int, error) {
	w.releases.Add(1)
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if w.releaseErr != nil {
		if err := w.releaseErr(productID); err != nil {
			return 0, err
		}
	}
	return w.inv.Release(ctx, productID, qty)
}

func (w *world) Charge(ctx context.Context, c payment.Charge) (payment.Record, error) {
	w.charges.Add(1)
	if w.chargeErr != nil {
		return payment.Record{}, w.chargeErr
	}
	rec, _, err := w.pay.Charge(ctx, c)
	return rec, err
}

func (w *world) Refund(ctx context.Context, r payment.Refund) (payment.Record, error) {
	w.refunds.Add(1)
	if err := ctx.Err(); err != nil {
		return payment.Record{}, err
	}
	if w.refundErr != nil {
		return payment.Record{}, w.refundErr
	}
	rec, _, err := w.pay.Refund(ctx, r)
	return rec, err
}

func (w *world) Save(ctx context.Context, o orders.Order) (orders.Order, error) {
	if w.saveErr != nil {
		return orders.Order{}, w.saveErr
	}
	return w.orders.Save(ctx, o)
}

func (w *world) Get(ctx context.Context, id string) (orders.Order, error) {
	return w.orders.Get(ctx, id)
}

func (w *world) FindByIdempotencyKey(ctx context.Context, key string) (orders.Order, bool, error) {
	return w.orders.FindByIdempotencyKey(ctx, key)
}

func (w *world) records(status payment.Status) []payment.Record {
	var out []payment.Record
	for _, r := range w.journal.All() {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

type published struct {
	Topic string
	Key   string
	Value []byte
}

type recorder struct {
	mu  sync.Mutex
	got []published
}

func (r *recorder) Publish(_ context.Context, topic string, key, value []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, published{Topic: topic, Key: string(key), Value: value})
}

func (r *recorder) topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, p := range r.got {
		out = append(out, p.Topic)
	}
	return out
}

func (r *recorder) last() published {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.got[len(r.got)-1]
}

func product(id string, price int64, stock int) inventory.Product {
	return inventory.Product{ID: id, SKU: "SKU-" + id, Name: fmt.Sprintf("product %s", id), PriceCents: price, Stock: stock}
}

var errNetwork = errors.New("connection reset by peer")
