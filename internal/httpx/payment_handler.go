package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/payment"
)

type PaymentHandler struct {
	Svc *payment.Service
}

func (h *PaymentHandler) Register(r chi.Router) {
	r.Get("/users/{id}/profile", h.profile)
	r.Post("/payments/charge", h.charge)
	r.Post("/payments/refund", h.refund)
	r.Get("/payments", h.history)
}

func (h *PaymentHandler) profile(w http.ResponseWriter, r *http.Request) {
	p, err := h.Svc.Profile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PaymentHandler) charge(w http.ResponseWriter, r *http.Request) {
	var req payment.Charge
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	rec, balance, err := h.Svc.Charge(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payment.ChargeResult{Payment: rec, BalanceCents: balance})
}

func (h *PaymentHandler) refund(w http.ResponseWriter, r *http.Request) {
	var req payment.Refund
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	rec, balance, err := h.Svc.Refund(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payment.ChargeResult{Payment: rec, BalanceCents: balance})
}

func (h *PaymentHandler) history(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("order_id")
	if orderID == "" {
		writeError(w, apperr.New(apperr.ErrInvalidRequest, "missing order_id"))
		return
	}
	recs, err := h.Svc.History(r.Context(), orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	if recs == nil {
		recs = []payment.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}
