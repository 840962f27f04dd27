package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/and161185/logistics-keeper/internal/crypto"
	"github.com/and161185/logistics-keeper/internal/errs"
	"github.com/and161185/logistics-keeper/internal/model"
	"github.com/and161185/logistics-keeper/internal/state"
)

// UserDraft is the input for a new account.
type UserDraft struct {
	ID       string
	Name     string
	Email    string
	Role     model.Role
	Password string
	Address  string
}

// UserUpdate carries editable profile fields. Nil fields are left untouched.
type UserUpdate struct {
	Name    *string
	Email   *string
	Address *string
}

// UserService defines account management.
type UserService interface {
	Create(ctx context.Context, actor model.User, d UserDraft) (model.User, error)
	Update(ctx context.Context, actor model.User, id string, upd UserUpdate) (model.User, error)
	Delete(ctx context.Context, actor model.User, id string) error
	List(actor model.User) ([]model.User, error)
}

type UserServiceImpl struct {
	app *state.App
}

// NewUserService constructs UserService.
func NewUserService(app *state.App) *UserServiceImpl {
	return &UserServiceImpl{app: app}
}

// Create registers a user. Duplicate ids are checked before the reserved ADMIN id,
// both case-insensitively. The password is stored hashed.
func (s *UserServiceImpl) Create(ctx context.Context, actor model.User, d UserDraft) (model.User, error) {
	if !actor.Role.Privileged() {
		return model.User{}, errs.ErrInsufficientRole
	}
	d.ID = strings.TrimSpace(d.ID)
	switch {
	case d.ID == "" || d.Password == "":
		return model.User{}, fmt.Errorf("%w: id and password are required", errs.ErrValidation)
	case !d.Role.Valid():
		return model.User{}, fmt.Errorf("%w: unknown role %q", errs.ErrValidation, d.Role)
	case d.Role == model.RoleAdmin && actor.Role != model.RoleAdmin:
		return model.User{}, errs.ErrInsufficientRole
	}

	hash, err := crypto.HashPassword(d.Password)
	if err != nil {
		return model.User{}, err
	}
	var out model.User
	err = s.app.Update(ctx, func(st *model.AppState) error {
		if st.FindUser(d.ID) >= 0 {
			return errs.ErrAlreadyExists
		}
		if model.SameID(d.ID, model.ReservedUserID) {
			return errs.ErrReservedID
		}
		out = model.User{
			ID:        d.ID,
			Name:      d.Name,
			Email:     d.Email,
			Role:      d.Role,
			Password:  hash,
			CreatedAt: s.app.Now().UTC(),
			Address:   d.Address,
		}
		st.Users = append(st.Users, out)
		return nil
	})
	out.Password = ""
	return out, err
}

// Update edits name, email and address. Emails are unique case-insensitively.
// Users may edit themselves; privileged users may edit anyone.
func (s *UserServiceImpl) Update(ctx context.Context, actor model.User, id string, upd UserUpdate) (model.User, error) {
	if !actor.Role.Privileged() && !model.SameID(actor.ID, id) {
		return model.User{}, errs.ErrInsufficientRole
	}
	var out model.User
	err := s.app.Update(ctx, func(st *model.AppState) error {
		i := st.FindUser(id)
		if i < 0 {
			return errs.ErrNotFound
		}
		if upd.Email != nil && *upd.Email != "" {
			for j, u := range st.Users {
				if j != i && strings.EqualFold(u.Email, *upd.Email) {
					return errs.ErrAlreadyExists
				}
			}
		}
		u := &st.Users[i]
		if upd.Name != nil {
			u.Name = *upd.Name
		}
		if upd.Email != nil {
			u.Email = *upd.Email
		}
		if upd.Address != nil {
			u.Address = *upd.Address
		}
		out = *u
		return nil
	})
	out.Password = ""
	return out, err
}

// Delete removes a user. Guards run in a fixed order and the first failure wins:
// self, Admin target, actor role, last Manager, existing orders.
func (s *UserServiceImpl) Delete(ctx context.Context, actor model.User, id string) error {
	return s.app.Update(ctx, func(st *model.AppState) error {
		i := st.FindUser(id)
		if i < 0 {
			return errs.ErrNotFound
		}
		target := st.Users[i]
		if model.SameID(target.ID, actor.ID) {
			return errs.ErrDeleteSelf
		}
		if target.Role == model.RoleAdmin {
			return errs.ErrDeleteAdmin
		}
		if !actor.Role.Privileged() || (actor.Role == model.RoleManager && target.Role == model.RoleManager) {
			return errs.ErrInsufficientRole
		}
		if target.Role == model.RoleManager && countRole(st.Users, model.RoleManager) <= 1 {
			return errs.ErrLastManager
		}
		for _, o := range st.Orders {
			if model.SameID(o.Requester, target.ID) {
				return errs.ErrUserHasOrders
			}
		}
		st.Users = append(st.Users[:i], st.Users[i+1:]...)
		return nil
	})
}

func countRole(users []model.User, r model.Role) int {
	n := 0
	for _, u := range users {
		if u.Role == r {
			n++
		}
	}
	return n
}

// List returns all users without passwords. Requesters see only themselves.
func (s *UserServiceImpl) List(actor model.User) ([]model.User, error) {
	snap := s.app.Snapshot()
	out := make([]model.User, 0, len(snap.Users))
	for _, u := range snap.Users {
		if !actor.Role.Privileged() && !model.SameID(u.ID, actor.ID) {
			continue
		}
		u.Password = ""
		out = append(out, u)
	}
	return out, nil
}
