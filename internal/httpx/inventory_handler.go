package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-marketplace-orders/internal/inventory"
)

// InventoryHandler serves the product owner: price lookup, stock moves and
// the product list.
type InventoryHandler struct {
	Svc *inventory.Service
}

func (h *InventoryHandler) Register(r chi.Router) {
	r.Get("/products", h.list)
	r.Get("/products/{id}", h.product)
	r.Post("/products/{id}/reserve", h.move(h.Svc.Reserve))
	r.Post("/products/{id}/release", h.move(h.Svc.Release))
}

func (h *InventoryHandler) list(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Svc.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if ps == nil {
		ps = []inventory.Product{}
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *InventoryHandler) product(w http.ResponseWriter, r *http.Request) {
	p, err := h.Svc.Product(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type stockOp func(ctx context.Context, productID string, qty int) (int, error)

func (h *InventoryHandler) move(op stockOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var mv inventory.StockMove
		if err := decode(r, &mv); err != nil {
			writeError(w, err)
			return
		}
		id := chi.URLParam(r, "id")
		remaining, err := op(r.Context(), id, mv.Quantity)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, inventory.StockLevel{ProductID: id, Remaining: remaining})
	}
}
