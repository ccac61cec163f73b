package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/logging"
)

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(logging.Discard()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestUnknownRouteUsesErrorBody(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(logging.Discard()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var b apperr.Body
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&b))
	assert.Equal(t, "route_not_found", b.Error.Code)
}

func TestDecode(t *testing.T) {
	cases := []struct {
		name string
		body string
		ok   bool
		msg  string
	}{
		{"valid", `{"user_id":"u-1","items":[{"product_id":"p-1","quantity":2}]}`, true, ""},
		{"broken json", `{"user_id":`, false, "invalid json body"},
		{"unknown field", `{"user_id":"u-1","items":[{"product_id":"p-1","quantity":1}],"coupon":"x"}`, false, "invalid json body"},
		{"no items", `{"user_id":"u-1","items":[]}`, false, "CreateOrderReq.Items must satisfy min=1"},
		{"zero quantity", `{"user_id":"u-1","items":[{"product_id":"p-1","quantity":0}]}`, false, "CreateOrderReq.Items[0].Quantity must satisfy gte=1"},
		{"missing user", `{"items":[{"product_id":"p-1","quantity":1}]}`, false, "CreateOrderReq.UserID is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(tc.body))
			var req CreateOrderReq
			err := decode(r, &req)
			if tc.ok {
				require.NoError(t, err)
				assert.Equal(t, "u-1", req.UserID)
				return
			}
			require.ErrorIs(t, err, apperr.ErrInvalidRequest)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestWriteErrorHidesInternalCause(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, apperr.Wrap(apperr.ErrInternal, assert.AnError, "save order"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}

func TestServeStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, "127.0.0.1:0", NewRouter(logging.Discard()), logging.Discard()) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServeReportsListenError(t *testing.T) {
	err := Serve(context.Background(), "256.0.0.1:bad", NewRouter(logging.Discard()), logging.Discard())
	assert.Error(t, err)
}
