package remote

import (
	"context"
	"net/http"
	"net/url"

	"github.com/ariefcatur/go-marketplace-orders/internal/inventory"
)

// Inventory talks to the inventory service. It serves the coordinator as both
// price lookup and stock ledger.
type Inventory struct{ c *client }

func NewInventory(baseURL string, o Options) *Inventory {
	return &Inventory{c: newClient(baseURL, o)}
}

func (i *Inventory) Product(ctx context.Context, productID string) (inventory.Product, error) {
	var p inventory.Product
	err := i.c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(productID), nil, &p)
	return p, err
}

func (i *Inventory) Reserve(ctx context.Context, productID string, qty int) (int, error) {
	return i.move(ctx, productID, "reserve", qty)
}

func (i *Inventory) Release(ctx context.Context, productID string, qty int) (int, error) {
	return i.move(ctx, productID, "release", qty)
}

func (i *Inventory) move(ctx context.Context, productID, action string, qty int) (int, error) {
	var lvl inventory.StockLevel
	err := i.c.do(ctx, http.MethodPost, "/products/"+url.PathEscape(productID)+"/"+action,
		inventory.StockMove{Quantity: qty}, &lvl)
	return lvl.Remaining, err
}
