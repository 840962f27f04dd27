package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/logistics-keeper/internal/model"
	"github.com/and161185/logistics-keeper/internal/state"
	"github.com/and161185/logistics-keeper/internal/store"
)

var t0 = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

var (
	admin    = model.User{ID: "ADMIN", Name: "Admin Supreme", Email: "admin@logistics.com", Role: model.RoleAdmin, Password: "adminpw"}
	manager  = model.User{ID: "manager01", Name: "Manager User", Email: "manager@logistics.com", Role: model.RoleManager, Password: "password123"}
	alice    = model.User{ID: "alice01", Name: "Alice (Requester)", Email: "alice@company.com", Role: model.RoleRequester, Password: "password123"}
	bob      = model.User{ID: "bob01", Name: "Bob (Requester)", Email: "bob@company.com", Role: model.RoleRequester, Password: "password123"}
	fixtures = []model.User{admin, manager, alice, bob}
)

// newApp opens state over a memory store preloaded with users and orders.
// Legacy plaintext passwords keep the fixtures cheap to verify.
func newApp(t *testing.T, now *time.Time, users []model.User, orders []model.Order) *state.App {
	t.Helper()
	ctx := context.Background()
	st := store.New(store.NewMemory(), nil)
	require.NoError(t, store.Set(ctx, st, store.KeyUsers, users))
	if orders != nil {
		require.NoError(t, store.Set(ctx, st, store.KeyOrders, orders))
	}
	if now == nil {
		n := t0
		now = &n
	}
	app, err := state.Open(ctx, st, state.Options{Now: func() time.Time { return *now }})
	require.NoError(t, err)
	return app
}
