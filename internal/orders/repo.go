package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
)

type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

const uniqueViolation = "23505"

// Save writes the order and its lines in one transaction.
func (r *Repo) Save(ctx context.Context, o Order) (Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var key *string
	if o.IdempotencyKey != "" {
		key = &o.IdempotencyKey
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (id, idempotency_key, user_id, total_cents)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at`, o.ID, key, o.UserID, o.TotalCents).Scan(&o.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "orders_idempotency_key_key" {
			return Order{}, apperr.Wrap(apperr.ErrRequestInProgress, err, "idempotency key already used")
		}
		return Order{}, err
	}

	b := &pgx.Batch{}
	for i, l := range o.Lines {
		b.Queue(`
			INSERT INTO order_lines (order_id, line_no, product_id, quantity, unit_price_cents)
			VALUES ($1,$2,$3,$4,$5)`, o.ID, i+1, l.ProductID, l.Quantity, l.UnitPriceCents)
	}
	if err := tx.SendBatch(ctx, b).Close(); err != nil {
		return Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (r *Repo) Get(ctx context.Context, id string) (Order, error) {
	return r.load(ctx, `WHERE id=$1`, id)
}

func (r *Repo) FindByIdempotencyKey(ctx context.Context, key string) (Order, bool, error) {
	o, err := r.load(ctx, `WHERE idempotency_key=$1`, key)
	if errors.Is(err, apperr.ErrOrderNotFound) {
		return Order{}, false, nil
	}
	if err != nil {
		return Order{}, false, err
	}
	return o, true, nil
}

func (r *Repo) load(ctx context.Context, where string, arg string) (Order, error) {
	var (
		o   Order
		key *string
	)
	err := r.DB.QueryRow(ctx, `
		SELECT id, idempotency_key, user_id, total_cents, created_at
		FROM orders `+where, arg).Scan(&o.ID, &key, &o.UserID, &o.TotalCents, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, apperr.New(apperr.ErrOrderNotFound, "order not found")
	}
	if err != nil {
		return Order{}, err
	}
	if key != nil {
		o.IdempotencyKey = *key
	}

	rows, err := r.DB.Query(ctx, `
		SELECT product_id, quantity, unit_price_cents
		FROM order_lines WHERE order_id=$1
		ORDER BY line_no`, o.ID)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ProductID, &l.Quantity, &l.UnitPriceCents); err != nil {
			return Order{}, err
		}
		o.Lines = append(o.Lines, l)
	}
	return o, rows.Err()
}
