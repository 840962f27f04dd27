// Package state owns the in-memory AppState, keeps it persisted through the store and
// publishes every committed change to subscribers.
package state

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/logistics-keeper/internal/crypto"
	"github.com/and161185/logistics-keeper/internal/errs"
	"github.com/and161185/logistics-keeper/internal/model"
	"github.com/and161185/logistics-keeper/internal/store"
)

// DefaultSuppliers seed the registry when none is stored.
var DefaultSuppliers = []string{"Viettel Post", "GHTK", "GHN", "Proship"}

// Options configure Open.
type Options struct {
	// BootstrapPassword is the initial ADMIN password used when no users are stored.
	// Empty leaves the seeded ADMIN without a password, so it cannot log in.
	BootstrapPassword string
	Suppliers         []string
	Logger            *zap.Logger
	Now               func() time.Time
}

// App is the single owner of application state.
type App struct {
	st  *store.Store
	log *zap.Logger
	now func() time.Time

	// wmu serializes commits so subscribers see changes in commit order.
	wmu sync.Mutex
	mu  sync.RWMutex
	cur model.AppState

	subMu sync.Mutex
	subs  map[uint64]func(model.AppState)
	next  uint64
}

// Open loads orders, users and suppliers, falling back to seeds for absent values.
func Open(ctx context.Context, st *store.Store, opts Options) (*App, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Suppliers == nil {
		opts.Suppliers = DefaultSuppliers
	}
	a := &App{
		st:   st,
		log:  opts.Logger.Named("state"),
		now:  opts.Now,
		subs: map[uint64]func(model.AppState){},
	}

	users := store.Get[[]model.User](ctx, st, store.KeyUsers, nil)
	if users == nil {
		admin, err := seedAdmin(opts.BootstrapPassword, opts.Now())
		if err != nil {
			return nil, err
		}
		users = []model.User{admin}
	}
	a.cur = model.AppState{
		Orders:    store.Get(ctx, st, store.KeyOrders, []model.Order{}),
		Users:     users,
		Suppliers: store.Get(ctx, st, store.KeySuppliers, append([]string(nil), opts.Suppliers...)),
	}.Clone()

	a.log.Debug("state loaded",
		zap.Int("orders", len(a.cur.Orders)),
		zap.Int("users", len(a.cur.Users)),
		zap.Int("suppliers", len(a.cur.Suppliers)))
	return a, nil
}

func seedAdmin(password string, now time.Time) (model.User, error) {
	u := model.User{
		ID:        model.ReservedUserID,
		Name:      "Administrator",
		Email:     "admin@logistics.local",
		Role:      model.RoleAdmin,
		CreatedAt: now.UTC(),
	}
	if password == "" {
		return u, nil
	}
	h, err := crypto.HashPassword(password)
	if err != nil {
		return model.User{}, fmt.Errorf("hash bootstrap password: %w", err)
	}
	u.Password = h
	return u, nil
}

// Snapshot returns a deep copy of the current state.
func (a *App) Snapshot() model.AppState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cur.Clone()
}

// Now is the clock used for timestamps.
func (a *App) Now() time.Time { return a.now() }

// Subscribe registers fn, calls it with the current snapshot and then with every
// committed change. fn must not call Update or ReplaceAll.
func (a *App) Subscribe(fn func(model.AppState)) (cancel func()) {
	a.wmu.Lock()
	defer a.wmu.Unlock()

	a.subMu.Lock()
	id := a.next
	a.next++
	a.subs[id] = fn
	a.subMu.Unlock()

	fn(a.Snapshot())
	return func() {
		a.subMu.Lock()
		delete(a.subs, id)
		a.subMu.Unlock()
	}
}

// Update applies fn to a copy of the state. If fn fails nothing changes; otherwise the
// changed collections are persisted and the new state is published.
func (a *App) Update(ctx context.Context, fn func(*model.AppState) error) error {
	a.wmu.Lock()
	defer a.wmu.Unlock()

	prev := a.Snapshot()
	next := prev.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	next = next.Clone()

	values := map[string]any{}
	if !reflect.DeepEqual(prev.Orders, next.Orders) {
		values[store.KeyOrders] = next.Orders
	}
	if !reflect.DeepEqual(prev.Users, next.Users) {
		values[store.KeyUsers] = next.Users
	}
	if !reflect.DeepEqual(prev.Suppliers, next.Suppliers) {
		values[store.KeySuppliers] = next.Suppliers
	}
	if len(values) == 0 {
		return nil
	}
	if err := a.st.Replace(ctx, values); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}
	a.commit(next)
	return nil
}

// ReplaceAll overwrites orders, users and suppliers and clears the stored session in
// one atomic write, then publishes. Used to commit a restore.
func (a *App) ReplaceAll(ctx context.Context, st model.AppState) error {
	a.wmu.Lock()
	defer a.wmu.Unlock()

	next := st.Clone()
	values := map[string]any{
		store.KeyOrders:    next.Orders,
		store.KeyUsers:     next.Users,
		store.KeySuppliers: next.Suppliers,
	}
	if err := a.st.Replace(ctx, values, store.KeyAuthenticatedUser); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	a.log.Info("state replaced, session cleared",
		zap.Int("orders", len(next.Orders)),
		zap.Int("users", len(next.Users)))
	a.commit(next)
	return nil
}

func (a *App) commit(next model.AppState) {
	a.mu.Lock()
	a.cur = next
	a.mu.Unlock()

	a.subMu.Lock()
	fns := make([]func(model.AppState), 0, len(a.subs))
	for _, fn := range a.subs {
		fns = append(fns, fn)
	}
	a.subMu.Unlock()
	for _, fn := range fns {
		fn(next.Clone())
	}
}

// Session returns the persisted authenticated session.
func (a *App) Session(ctx context.Context) (model.Session, error) {
	s := store.Get[*model.Session](ctx, a.st, store.KeyAuthenticatedUser, nil)
	if s == nil || s.User.ID == "" {
		return model.Session{}, errs.ErrNotAuthenticated
	}
	return *s, nil
}

// SetSession persists s. The password is never stored with the session.
func (a *App) SetSession(ctx context.Context, s model.Session) error {
	s.User.Password = ""
	return store.Set(ctx, a.st, store.KeyAuthenticatedUser, s)
}

// ClearSession forgets the authenticated session.
func (a *App) ClearSession(ctx context.Context) error {
	return a.st.Delete(ctx, store.KeyAuthenticatedUser)
}
