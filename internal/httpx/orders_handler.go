package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/metrics"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
)

const HeaderIdempotencyKey = "Idempotency-Key"

// OrderPlacer runs the fulfillment saga. An empty key means no idempotency.
type OrderPlacer interface {
	CreateOrderOnce(ctx context.Context, key, userID string, items []orders.Item) (orders.Order, error)
}

type OrdersHandler struct {
	Placer  OrderPlacer
	Store   orders.Store
	Cache   *orders.Cache // optional
	Metrics *metrics.Saga
	Log     *slog.Logger
}

type CreateOrderReq struct {
	UserID string        `json:"user_id" validate:"required"`
	Items  []orders.Item `json:"items" validate:"required,min=1,dive"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/metrics/saga", h.sagaStats)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	o, err := h.Placer.CreateOrderOnce(r.Context(), r.Header.Get(HeaderIdempotencyKey), req.UserID, req.Items)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cache(r.Context(), o)
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) cache
	if h.Cache != nil {
		o, ok, err := h.Cache.Get(ctx, id)
		if err != nil {
			h.Log.WarnContext(ctx, "order cache read", "order_id", id, "err", err)
		} else if ok {
			w.Header().Set("X-Cache", "hit")
			writeJSON(w, http.StatusOK, o)
			return
		}
	}

	// 2) database
	o, err := h.Store.Get(ctx, id)
	if err != nil {
		if apperr.KindOf(err) != apperr.KindNotFound {
			h.Log.ErrorContext(ctx, "load order", "order_id", id, "err", err)
		}
		writeError(w, err)
		return
	}
	h.cache(ctx, o)
	w.Header().Set("X-Cache", "miss")
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) sagaStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Metrics.Snapshot())
}

func (h *OrdersHandler) cache(ctx context.Context, o orders.Order) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Put(ctx, o); err != nil {
		h.Log.WarnContext(ctx, "order cache write", "order_id", o.ID, "err", err)
	}
}
