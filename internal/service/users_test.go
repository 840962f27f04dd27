package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/logistics-keeper/internal/crypto"
	"github.com/and161185/logistics-keeper/internal/errs"
	"github.com/and161185/logistics-keeper/internal/model"
)

func strp(s string) *string { return &s }

func TestUsers_CreateRules(t *testing.T) {
	ctx := context.Background()
	app := newApp(t, nil, fixtures, nil)
	s := NewUserService(app)
	draft := UserDraft{ID: "carol01", Name: "Carol", Role: model.RoleRequester, Password: "pw"}

	_, err := s.Create(ctx, alice, draft)
	require.ErrorIs(t, err, errs.ErrInsufficientRole)

	_, err = s.Create(ctx, manager, UserDraft{ID: "x", Role: model.RoleAdmin, Password: "pw"})
	require.ErrorIs(t, err, errs.ErrInsufficientRole)

	_, err = s.Create(ctx, manager, UserDraft{ID: "x", Role: "Boss", Password: "pw"})
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = s.Create(ctx, manager, UserDraft{ID: "ALICE01", Role: model.RoleRequester, Password: "pw"})
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	_, err = s.Create(ctx, manager, UserDraft{ID: "admin", Role: model.RoleRequester, Password: "pw"})
	require.ErrorIs(t, err, errs.ErrAlreadyExists, "duplicate check runs before the reserved id check")

	u, err := s.Create(ctx, manager, draft)
	require.NoError(t, err)
	require.Equal(t, t0, u.CreatedAt)
	require.Empty(t, u.Password)

	snap := app.Snapshot()
	stored := snap.Users[snap.FindUser("carol01")]
	require.True(t, crypto.IsHashed(stored.Password))
	require.True(t, crypto.VerifyPassword("pw", stored.Password))
}

func TestUsers_CreateReservedWithoutAdminPresent(t *testing.T) {
	s := NewUserService(newApp(t, nil, []model.User{manager}, nil))
	_, err := s.Create(context.Background(), manager, UserDraft{ID: "Admin", Role: model.RoleRequester, Password: "pw"})
	require.ErrorIs(t, err, errs.ErrReservedID)
}

func TestUsers_Update(t *testing.T) {
	ctx := context.Background()
	app := newApp(t, nil, fixtures, nil)
	s := NewUserService(app)

	_, err := s.Update(ctx, alice, "bob01", UserUpdate{Name: strp("Robert")})
	require.ErrorIs(t, err, errs.ErrInsufficientRole)

	_, err = s.Update(ctx, alice, "alice01", UserUpdate{Email: strp("BOB@company.com")})
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	u, err := s.Update(ctx, alice, "alice01", UserUpdate{Email: strp("ALICE@company.com"), Address: strp("Da Nang")})
	require.NoError(t, err, "own email in another case is not a conflict")
	require.Equal(t, "ALICE@company.com", u.Email)
	require.Equal(t, "Da Nang", u.Address)
	require.Equal(t, "Alice (Requester)", u.Name)

	_, err = s.Update(ctx, manager, "ghost", UserUpdate{Name: strp("x")})
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUsers_DeleteGuardOrder(t *testing.T) {
	ctx := context.Background()
	manager2 := model.User{ID: "manager02", Role: model.RoleManager}

	cases := []struct {
		name   string
		users  []model.User
		orders []model.Order
		actor  model.User
		target string
		want   error
	}{
		{"self before admin", fixtures, nil, admin, "admin", errs.ErrDeleteSelf},
		{"admin target", fixtures, nil, manager, "ADMIN", errs.ErrDeleteAdmin},
		{"requester actor", fixtures, nil, alice, "bob01", errs.ErrInsufficientRole},
		{"manager deletes manager", append(fixtures, manager2), nil, manager, "manager02", errs.ErrInsufficientRole},
		{
			"sole manager with orders",
			fixtures,
			[]model.Order{{ID: "ORD-1", Requester: "manager01", Quantity: 1}},
			admin, "manager01", errs.ErrLastManager,
		},
		{
			"user with orders",
			fixtures,
			[]model.Order{{ID: "ORD-1", Requester: "bob01", Quantity: 1}},
			manager, "BOB01", errs.ErrUserHasOrders,
		},
		{"missing", fixtures, nil, admin, "ghost", errs.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newApp(t, nil, tc.users, tc.orders)
			before := app.Snapshot()
			err := NewUserService(app).Delete(ctx, tc.actor, tc.target)
			require.ErrorIs(t, err, tc.want)
			require.Equal(t, before, app.Snapshot(), "rejected delete must not change state")
		})
	}
}

func TestUsers_DeleteOK(t *testing.T) {
	ctx := context.Background()
	manager2 := model.User{ID: "manager02", Role: model.RoleManager}
	app := newApp(t, nil, append(fixtures, manager2), nil)
	s := NewUserService(app)

	require.NoError(t, s.Delete(ctx, manager, "bob01"))
	require.NoError(t, s.Delete(ctx, admin, "manager02"))
	require.ErrorIs(t, s.Delete(ctx, admin, "manager01"), errs.ErrLastManager)

	snap := app.Snapshot()
	require.Equal(t, -1, snap.FindUser("bob01"))
	require.Len(t, snap.Users, 3)
}

func TestUsers_List(t *testing.T) {
	s := NewUserService(newApp(t, nil, fixtures, nil))

	all, err := s.List(manager)
	require.NoError(t, err)
	require.Len(t, all, 4)
	for _, u := range all {
		require.Empty(t, u.Password)
	}

	own, err := s.List(alice)
	require.NoError(t, err)
	require.Len(t, own, 1)
	require.Equal(t, "alice01", own[0].ID)
}
