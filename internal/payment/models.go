package payment

import (
	"context"
	"errors"
	"time"
)

type Status string

const (
	StatusPaid     Status = "PAID"
	StatusRefunded Status = "REFUNDED"
	StatusFailed   Status = "FAILED"
)

// Record is one row of the append-only payment journal. AmountCents is signed:
// a charge is positive, a refund negative. Failed attempts keep the attempted
// amount but never count toward the net.
type Record struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"order_id"`
	UserID      string    `json:"user_id"`
	ProfileID   string    `json:"profile_id"`
	AmountCents int64     `json:"amount_cents"`
	Status      Status    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Journal only appends. Records are never updated or deleted.
type Journal interface {
	Append(ctx context.Context, rec Record) (Record, error)
	ListByOrder(ctx context.Context, orderID string) ([]Record, error)
}

// Book moves money and journals the move as one unit: the balance change and
// its record either both land or neither does. Charge debits and records PAID;
// Refund credits and records REFUNDED. Both return the new balance, and
// errRecorded when the order already has a row of that status.
type Book interface {
	Journal
	Charge(ctx context.Context, rec Record) (Record, int64, error)
	Refund(ctx context.Context, rec Record) (Record, int64, error)
}

var errRecorded = errors.New("payment already recorded")

// Net is the amount currently held for an order: paid minus refunded.
func Net(recs []Record) int64 {
	var n int64
	for _, r := range recs {
		if r.Status != StatusFailed {
			n += r.AmountCents
		}
	}
	return n
}

const Schema = `
CREATE TABLE IF NOT EXISTS payments (
	id           TEXT PRIMARY KEY,
	order_id     TEXT NOT NULL,
	user_id      TEXT NOT NULL,
	profile_id   TEXT NOT NULL,
	amount_cents BIGINT NOT NULL,
	status       TEXT NOT NULL CHECK (status IN ('PAID','REFUNDED','FAILED')),
	reason       TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS payments_order_idx ON payments(order_id, created_at);
CREATE UNIQUE INDEX IF NOT EXISTS payments_one_paid ON payments(order_id) WHERE status = 'PAID';
CREATE UNIQUE INDEX IF NOT EXISTS payments_one_refund ON payments(order_id) WHERE status = 'REFUNDED'`
