package limiter

import (
	"context"
	"sync"
	"time"

	"github.com/and161185/logistics-keeper/internal/store"
)

type attempt struct {
	Fails        int       `json:"fails"`
	UpdatedAt    time.Time `json:"updatedAt"`
	BlockedUntil time.Time `json:"blockedUntil"`
}

// Local keeps counters in the durable store under store.KeyLoginAttempts, so lockouts
// survive between CLI invocations.
type Local struct {
	st  *store.Store
	p   Policy
	now func() time.Time
	mu  sync.Mutex
}

// NewLocal constructs a store-backed limiter.
func NewLocal(st *store.Store, p Policy) *Local {
	return &Local{st: st, p: p, now: time.Now}
}

func (l *Local) load(ctx context.Context) map[string]attempt {
	m := store.Get[map[string]attempt](ctx, l.st, store.KeyLoginAttempts, nil)
	if m == nil {
		m = map[string]attempt{}
	}
	return m
}

// Allow reports whether login is currently allowed and a retry-after duration.
func (l *Local) Allow(ctx context.Context, userID string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.load(ctx)[normalize(userID)]
	if !ok {
		return true, 0, nil
	}
	if now := l.now(); a.BlockedUntil.After(now) {
		return false, a.BlockedUntil.Sub(now), nil
	}
	return true, 0, nil
}

// Success resets counters for userID.
func (l *Local) Success(ctx context.Context, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	m := l.load(ctx)
	key := normalize(userID)
	if _, ok := m[key]; !ok {
		return nil
	}
	delete(m, key)
	return store.Set(ctx, l.st, store.KeyLoginAttempts, m)
}

// Failure records a failed attempt; may set a block until a future time.
func (l *Local) Failure(ctx context.Context, userID string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	m := l.load(ctx)
	key := normalize(userID)

	a := m[key]
	if now.Sub(a.UpdatedAt) > l.p.Window {
		a.Fails = 0
	}
	a.Fails++
	a.UpdatedAt = now

	blocked := a.Fails >= l.p.MaxFails
	if blocked {
		a.BlockedUntil = now.Add(l.p.BlockFor)
	}
	m[key] = a
	if err := store.Set(ctx, l.st, store.KeyLoginAttempts, m); err != nil {
		return false, 0, err
	}
	if blocked {
		return true, l.p.BlockFor, nil
	}
	return false, 0, nil
}
