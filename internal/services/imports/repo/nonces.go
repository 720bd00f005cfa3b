package repo

import (
	"context"
	"time"

	perr "laneledger/internal/platform/errors"
	"laneledger/internal/platform/store"
)

// NonceExists reports whether the nonce was already consumed
func (r *queries) NonceExists(ctx context.Context, nonce string) (bool, error) {
	ok, err := store.Scalar[bool](ctx, r.q,
		`SELECT EXISTS (SELECT 1 FROM import_callback_nonces WHERE nonce = $1)`, nonce)
	if err != nil {
		return false, perr.FromPostgres(err, "lookup callback nonce")
	}
	return ok, nil
}

// InsertNonce records the nonce; a concurrent replay hits the primary key
func (r *queries) InsertNonce(ctx context.Context, nonce string, createdAt, expiresAt time.Time) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO import_callback_nonces (nonce, created_at, expires_at) VALUES ($1, $2, $3)`,
		nonce, createdAt, expiresAt)
	if err != nil {
		return perr.FromPostgres(err, "insert callback nonce")
	}
	return nil
}
