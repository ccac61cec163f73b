package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
)

type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

// Querier runs a single-row statement. Both *pgxpool.Pool and pgx.Tx satisfy
// it, so balance moves can join a caller's transaction.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *Repo) Debit(ctx context.Context, profileID string, amount int64) (int64, error) {
	return DebitIn(ctx, r.DB, profileID, amount)
}

func (r *Repo) Credit(ctx context.Context, profileID string, amount int64) (int64, error) {
	return CreditIn(ctx, r.DB, profileID, amount)
}

// DebitIn is a single guarded UPDATE: the balance check and the decrement
// happen in one statement, so concurrent debits cannot both pass the check.
func DebitIn(ctx context.Context, q Querier, profileID string, amount int64) (int64, error) {
	var balance int64
	err := q.QueryRow(ctx, `
		UPDATE profiles SET balance_cents = balance_cents - $2, updated_at = now()
		WHERE id=$1 AND balance_cents >= $2
		RETURNING balance_cents`, profileID, amount).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	// Nothing updated: either the profile is missing or the guard failed.
	err = q.QueryRow(ctx, `SELECT balance_cents FROM profiles WHERE id=$1`, profileID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperr.New(apperr.ErrUserNotFound, "profile not found: "+profileID)
	}
	if err != nil {
		return 0, err
	}
	return balance, apperr.New(apperr.ErrInsufficientBalance,
		fmt.Sprintf("insufficient balance on %s: required %d, available %d", profileID, amount, balance))
}

func CreditIn(ctx context.Context, q Querier, profileID string, amount int64) (int64, error) {
	var balance int64
	err := q.QueryRow(ctx, `
		UPDATE profiles SET balance_cents = balance_cents + $2, updated_at = now()
		WHERE id=$1
		RETURNING balance_cents`, profileID, amount).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperr.New(apperr.ErrUserNotFound, "profile not found: "+profileID)
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (r *Repo) ProfileByUser(ctx context.Context, userID string) (Profile, error) {
	var p Profile
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, balance_cents, updated_at
		FROM profiles WHERE user_id=$1`, userID).
		Scan(&p.ID, &p.UserID, &p.BalanceCents, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, apperr.New(apperr.ErrUserNotFound, "no profile for user "+userID)
	}
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Put upserts a profile; used for seeding and tests.
func (r *Repo) Put(ctx context.Context, p Profile) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO profiles (id, user_id, balance_cents)
		VALUES ($1,$2,$3)
		ON CONFLICT (id) DO UPDATE SET user_id=$2, balance_cents=$3, updated_at=now()`,
		p.ID, p.UserID, p.BalanceCents)
	return err
}
