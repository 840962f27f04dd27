package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PG is a PostgreSQL-backed limiter implementation with sliding window and lockout.
// Used when the durable store itself lives in PostgreSQL.
type PG struct {
	pool pgxQuerier
	p    Policy
}

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPG constructs a PostgreSQL-backed limiter.
func NewPG(q pgxQuerier, p Policy) *PG {
	return &PG{pool: q, p: p}
}

// Allow reports whether login is currently allowed and a retry-after duration.
func (l *PG) Allow(ctx context.Context, userID string) (bool, time.Duration, error) {
	const q = `SELECT blocked_until FROM login_attempts WHERE user_id=$1`
	var blockedUntil time.Time
	err := l.pool.QueryRow(ctx, q, normalize(userID)).Scan(&blockedUntil)
	switch {
	case err == nil:
		if blockedUntil.After(time.Now()) {
			return false, time.Until(blockedUntil), nil
		}
		return true, 0, nil
	case errors.Is(err, pgx.ErrNoRows):
		return true, 0, nil
	default:
		return false, 0, err
	}
}

// Success resets counters for userID.
func (l *PG) Success(ctx context.Context, userID string) error {
	const q = `DELETE FROM login_attempts WHERE user_id=$1`
	_, err := l.pool.Exec(ctx, q, normalize(userID))
	return err
}

// Failure records a failed attempt; may set a block until a future time.
func (l *PG) Failure(ctx context.Context, userID string) (bool, time.Duration, error) {
	const q = `
INSERT INTO login_attempts (user_id, fail_count, blocked_until, updated_at)
VALUES ($1, 1, 'epoch', now())
ON CONFLICT (user_id) DO UPDATE
SET
  fail_count = CASE WHEN now() - login_attempts.updated_at > $2::interval THEN 1 ELSE login_attempts.fail_count + 1 END,
  updated_at = now()
RETURNING fail_count`
	key := normalize(userID)
	var fails int
	if err := l.pool.QueryRow(ctx, q, key, l.p.Window).Scan(&fails); err != nil {
		return false, 0, err
	}
	if fails < l.p.MaxFails {
		return false, 0, nil
	}
	const upd = `UPDATE login_attempts SET blocked_until=$2 WHERE user_id=$1`
	if _, err := l.pool.Exec(ctx, upd, key, time.Now().Add(l.p.BlockFor)); err != nil {
		return false, 0, err
	}
	return true, l.p.BlockFor, nil
}
