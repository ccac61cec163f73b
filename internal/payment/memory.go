package payment

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-marketplace-orders/internal/wallet"
)

type MemoryJournal struct {
	mu   sync.Mutex
	recs []Record
}

var _ Journal = (*MemoryJournal)(nil)

func (j *MemoryJournal) Append(_ context.Context, rec Record) (Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CreatedAt = time.Now().UTC()
	j.recs = append(j.recs, rec)
	return rec, nil
}

func (j *MemoryJournal) ListByOrder(_ context.Context, orderID string) ([]Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []Record
	for _, r := range j.recs {
		if r.OrderID == orderID {
			out = append(out, r)
		}
	}
	return out, nil
}

// All returns every record in append order.
func (j *MemoryJournal) All() []Record {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Record(nil), j.recs...)
}

// MemoryBook is the in-process Book. One mutex stands in for the row lock and
// the unique indexes; a move whose ctx ends before it is recorded is undone,
// as a rolled back transaction would be.
type MemoryBook struct {
	MemoryJournal
	Wallet wallet.Ledger

	txMu sync.Mutex
	// beforeCommit runs after the balance moved and before the record lands.
	beforeCommit func()
}

var _ Book = (*MemoryBook)(nil)

func NewMemoryBook(w wallet.Ledger) *MemoryBook { return &MemoryBook{Wallet: w} }

func (b *MemoryBook) Charge(ctx context.Context, rec Record) (Record, int64, error) {
	return b.move(ctx, rec, b.Wallet.Debit, b.Wallet.Credit, rec.AmountCents)
}

func (b *MemoryBook) Refund(ctx context.Context, rec Record) (Record, int64, error) {
	return b.move(ctx, rec, b.Wallet.Credit, b.Wallet.Debit, -rec.AmountCents)
}

type ledgerOp func(ctx context.Context, profileID string, amount int64) (int64, error)

func (b *MemoryBook) move(ctx context.Context, rec Record, do, undo ledgerOp, amount int64) (Record, int64, error) {
	b.txMu.Lock()
	defer b.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return Record{}, 0, err
	}
	prior, _ := b.ListByOrder(ctx, rec.OrderID)
	for _, p := range prior {
		if p.Status == rec.Status {
			return Record{}, 0, errRecorded
		}
	}
	balance, err := do(ctx, rec.ProfileID, amount)
	if err != nil {
		return Record{}, 0, err
	}
	if b.beforeCommit != nil {
		b.beforeCommit()
	}
	if err := ctx.Err(); err != nil {
		if _, uerr := undo(context.WithoutCancel(ctx), rec.ProfileID, amount); uerr != nil {
			return Record{}, 0, errors.Join(err, uerr)
		}
		return Record{}, 0, err
	}
	out, err := b.Append(ctx, rec)
	return out, balance, err
}
