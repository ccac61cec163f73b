package payment

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-marketplace-orders/internal/wallet"
)

const uniqueViolation = "23505"

// Repo keeps the journal in the payments table. Charge and Refund share a
// transaction with the profiles row they move, so a cancelled request rolls
// back both.
type Repo struct{ DB *pgxpool.Pool }

var _ Book = (*Repo)(nil)

func (r *Repo) Append(ctx context.Context, rec Record) (Record, error) {
	return insert(ctx, r.DB, rec)
}

func (r *Repo) Charge(ctx context.Context, rec Record) (Record, int64, error) {
	return r.move(ctx, rec, wallet.DebitIn, rec.AmountCents)
}

func (r *Repo) Refund(ctx context.Context, rec Record) (Record, int64, error) {
	return r.move(ctx, rec, wallet.CreditIn, -rec.AmountCents)
}

type balanceMove func(ctx context.Context, q wallet.Querier, profileID string, amount int64) (int64, error)

func (r *Repo) move(ctx context.Context, rec Record, op balanceMove, amount int64) (Record, int64, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Record{}, 0, err
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	balance, err := op(ctx, tx, rec.ProfileID, amount)
	if err != nil {
		return Record{}, 0, err
	}
	out, err := insert(ctx, tx, rec)
	if err != nil {
		if isUnique(err, "payments_one_paid") || isUnique(err, "payments_one_refund") {
			return Record{}, 0, errRecorded
		}
		return Record{}, 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Record{}, 0, err
	}
	return out, balance, nil
}

func insert(ctx context.Context, q wallet.Querier, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	err := q.QueryRow(ctx, `
		INSERT INTO payments (id, order_id, user_id, profile_id, amount_cents, status, reason)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at`,
		rec.ID, rec.OrderID, rec.UserID, rec.ProfileID, rec.AmountCents, string(rec.Status), rec.Reason,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func isUnique(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraint
}

func (r *Repo) ListByOrder(ctx context.Context, orderID string) ([]Record, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, user_id, profile_id, amount_cents, status, reason, created_at
		FROM payments WHERE order_id=$1
		ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec    Record
			status string
		)
		if err := rows.Scan(&rec.ID, &rec.OrderID, &rec.UserID, &rec.ProfileID,
			&rec.AmountCents, &status, &rec.Reason, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Status = Status(status)
		out = append(out, rec)
	}
	return out, rows.Err()
}
