// Package store implements the durable local key-value store: typed JSON values
// over a raw byte backend, with default-value fallback on absence or corruption.
package store

import (
	"context"
	"errors"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/and161185/logistics-keeper/internal/errs"
)

// Persistence keys. Each logical field is stored independently.
const (
	KeyOrders            = "orders"
	KeyUsers             = "appUsers"
	KeySuppliers         = "suppliers"
	KeyAuthenticatedUser = "authenticatedUser"
	KeySyncCredentials   = "syncCredentials"
	KeyLoginAttempts     = "loginAttempts"
	KeyCredentialSalt    = "credentialSalt"
)

// Backend is the raw persistence contract implemented by concrete storages.
type Backend interface {
	// Load returns the stored bytes or errs.ErrNotFound.
	Load(ctx context.Context, key string) ([]byte, error)
	// Save writes the value; it is visible to the next Load.
	Save(ctx context.Context, key string, raw []byte) error
	// Delete removes the key; deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// SaveMany writes all values and removes all deletes atomically.
	SaveMany(ctx context.Context, values map[string][]byte, deletes []string) error
}

// Store is the typed facade over a Backend.
type Store struct {
	b   Backend
	log *zap.Logger
}

// New wraps a backend. A nil logger disables logging.
func New(b Backend, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{b: b, log: log}
}

// Backend exposes the underlying raw storage.
func (s *Store) Backend() Backend { return s.b }

// Get returns the value under key, or def when the key is absent or cannot be parsed.
// It never fails: corrupted values are logged and replaced by the default.
func Get[T any](ctx context.Context, s *Store, key string, def T) T {
	raw, err := s.b.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			s.log.Warn("store load failed, using default", zap.String("key", key), zap.Error(err))
		}
		return def
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		s.log.Debug("store value unreadable, using default", zap.String("key", key), zap.Error(err))
		return def
	}
	return v
}

// Set serializes v and writes it under key.
func Set[T any](ctx context.Context, s *Store, key string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.b.Save(ctx, key, raw)
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.b.Delete(ctx, key)
}

// Replace serializes every value and writes them together with deletes in one atomic step.
// Nothing is written if any value fails to serialize.
func (s *Store) Replace(ctx context.Context, values map[string]any, deletes ...string) error {
	raws := make(map[string][]byte, len(values))
	for k, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		raws[k] = raw
	}
	return s.b.SaveMany(ctx, raws, deletes)
}
