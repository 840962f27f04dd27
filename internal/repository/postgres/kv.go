package postgres

import (
	"context"
	"errors"
	"maps"
	"slices"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/logistics-keeper/internal/errs"
	"github.com/and161185/logistics-keeper/internal/store"
)

// KV implements store.Backend on the kv table.
type KV struct{ db *DB }

var _ store.Backend = (*KV)(nil)

// NewKV constructs a key-value backend.
func NewKV(db *DB) *KV { return &KV{db: db} }

// Load selects the value stored under key.
func (r *KV) Load(ctx context.Context, key string) ([]byte, error) {
	const q = `SELECT value FROM kv WHERE key=$1`
	var raw []byte
	if err := r.db.Pool.QueryRow(ctx, q, key).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return raw, nil
}

// Save upserts a single value.
func (r *KV) Save(ctx context.Context, key string, raw []byte) error {
	_, err := r.db.Pool.Exec(ctx, upsertKV, key, raw)
	return err
}

// Delete removes key if present.
func (r *KV) Delete(ctx context.Context, key string) error {
	_, err := r.db.Pool.Exec(ctx, deleteKV, key)
	return err
}

// SaveMany applies upserts (in key order) and deletes in one transaction.
func (r *KV) SaveMany(ctx context.Context, values map[string][]byte, deletes []string) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	for _, k := range slices.Sorted(maps.Keys(values)) {
		if _, err = tx.Exec(ctx, upsertKV, k, values[k]); err != nil {
			return err
		}
	}
	for _, k := range deletes {
		if _, err = tx.Exec(ctx, deleteKV, k); err != nil {
			return err
		}
	}
	return nil
}

const (
	upsertKV = `
INSERT INTO kv (key, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=now()`
	deleteKV = `DELETE FROM kv WHERE key=$1`
)
