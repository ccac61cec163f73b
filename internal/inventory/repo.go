package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
)

// Repo is the Postgres-backed product store.
type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

// Reserve locks the product row (FOR UPDATE), checks, then decrements, all in
// one transaction. Two concurrent reservations of the last unit serialise on
// the row lock and the second sees the decremented stock.
func (r *Repo) Reserve(ctx context.Context, productID string, qty int) (int, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var stock int
	err = tx.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1 FOR UPDATE`, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperr.New(apperr.ErrProductNotFound, "product not found: "+productID)
	}
	if err != nil {
		return 0, err
	}
	if stock < qty {
		return stock, apperr.New(apperr.ErrInsufficientStock,
			fmt.Sprintf("insufficient stock for %s: required %d, available %d", productID, qty, stock))
	}

	var remaining int
	err = tx.QueryRow(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id=$1
		RETURNING stock`, productID, qty).Scan(&remaining)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return remaining, nil
}

func (r *Repo) Release(ctx context.Context, productID string, qty int) (int, error) {
	var remaining int
	err := r.DB.QueryRow(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id=$1
		RETURNING stock`, productID, qty).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperr.New(apperr.ErrProductNotFound, "product not found: "+productID)
	}
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

func (r *Repo) Product(ctx context.Context, productID string) (Product, error) {
	var p Product
	err := r.DB.QueryRow(ctx, `
		SELECT id, sku, name, stock, price_cents, created_at, updated_at
		FROM products WHERE id=$1`, productID).
		Scan(&p.ID, &p.SKU, &p.Name, &p.Stock, &p.PriceCents, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, apperr.New(apperr.ErrProductNotFound, "product not found: "+productID)
	}
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

func (r *Repo) List(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, sku, name, stock, price_cents, created_at, updated_at
	                              FROM products ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Stock, &p.PriceCents, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Put upserts a product. Catalog management proper lives elsewhere; this is
// for seeding and tests.
func (r *Repo) Put(ctx context.Context, p Product) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO products (id, sku, name, stock, price_cents)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET sku=$2, name=$3, stock=$4, price_cents=$5, updated_at=now()`,
		p.ID, p.SKU, p.Name, p.Stock, p.PriceCents)
	return err
}
