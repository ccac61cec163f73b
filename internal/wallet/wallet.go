package wallet

import (
	"context"
	"time"
)

// Profile is the wallet-bearing user profile. Balance is in minor currency units.
type Profile struct {
	ID           string    `json:"profile_id"`
	UserID       string    `json:"user_id"`
	BalanceCents int64     `json:"balance_cents"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Ledger owns the balance >= 0 invariant. Debit fails with
// apperr.ErrInsufficientBalance rather than go negative.
type Ledger interface {
	Debit(ctx context.Context, profileID string, amountCents int64) (balance int64, err error)
	Credit(ctx context.Context, profileID string, amountCents int64) (balance int64, err error)
}

// Directory resolves a user id to its wallet profile.
type Directory interface {
	ProfileByUser(ctx context.Context, userID string) (Profile, error)
}

type Store interface {
	Ledger
	Directory
}

const Schema = `
CREATE TABLE IF NOT EXISTS profiles (
	id            TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL UNIQUE,
	balance_cents BIGINT NOT NULL DEFAULT 0 CHECK (balance_cents >= 0),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`
