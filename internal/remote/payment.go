package remote

import (
	"context"
	"net/http"
	"net/url"

	"github.com/ariefcatur/go-marketplace-orders/internal/payment"
	"github.com/ariefcatur/go-marketplace-orders/internal/wallet"
)

// Payment talks to the payment service: profile resolution, charges and
// refunds.
type Payment struct{ c *client }

func NewPayment(baseURL string, o Options) *Payment {
	return &Payment{c: newClient(baseURL, o)}
}

func (p *Payment) Profile(ctx context.Context, userID string) (wallet.Profile, error) {
	var prof wallet.Profile
	err := p.c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID)+"/profile", nil, &prof)
	return prof, err
}

func (p *Payment) Charge(ctx context.Context, c payment.Charge) (payment.Record, error) {
	var res payment.ChargeResult
	err := p.c.do(ctx, http.MethodPost, "/payments/charge", c, &res)
	return res.Payment, err
}

func (p *Payment) Refund(ctx context.Context, r payment.Refund) (payment.Record, error) {
	var res payment.ChargeResult
	err := p.c.do(ctx, http.MethodPost, "/payments/refund", r, &res)
	return res.Payment, err
}

func (p *Payment) History(ctx context.Context, orderID string) ([]payment.Record, error) {
	var recs []payment.Record
	err := p.c.do(ctx, http.MethodGet, "/payments?order_id="+url.QueryEscape(orderID), nil, &recs)
	return recs, err
}
