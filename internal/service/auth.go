// Package service contains application services for authentication, orders and users.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/and161185/logistics-keeper/internal/crypto"
	"github.com/and161185/logistics-keeper/internal/errs"
	"github.com/and161185/logistics-keeper/internal/limiter"
	"github.com/and161185/logistics-keeper/internal/model"
	"github.com/and161185/logistics-keeper/internal/state"
)

// AuthService defines login and session operations.
type AuthService interface {
	// Login checks credentials with rate limiting and stores the session.
	Login(ctx context.Context, id, password string) (model.Session, error)
	// Logout forgets the stored session.
	Logout(ctx context.Context) error
	// Current returns the stored session if its token is still valid.
	Current(ctx context.Context) (model.Session, error)
}

type AuthServiceImpl struct {
	app     *state.App
	signKey []byte
	ttl     time.Duration
	lim     limiter.Limiter
	log     *zap.Logger
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(app *state.App, signKey []byte, ttl time.Duration, lim limiter.Limiter, log *zap.Logger) *AuthServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthServiceImpl{app: app, signKey: signKey, ttl: ttl, lim: lim, log: log.Named("auth")}
}

// Login matches the id case-insensitively and the password exactly, records lastLogin
// and persists the session projection.
func (s *AuthServiceImpl) Login(ctx context.Context, id, password string) (model.Session, error) {
	allowed, _, err := s.lim.Allow(ctx, id)
	if err != nil {
		return model.Session{}, err
	}
	if !allowed {
		return model.Session{}, errs.ErrRateLimited
	}

	var user model.User
	err = s.app.Update(ctx, func(st *model.AppState) error {
		i := st.FindUser(id)
		if i < 0 || !crypto.VerifyPassword(password, st.Users[i].Password) {
			return errs.ErrUnauthorized
		}
		now := s.app.Now().UTC()
		st.Users[i].LastLogin = &now
		user = st.Users[i]
		return nil
	})
	if errors.Is(err, errs.ErrUnauthorized) {
		if blocked, _, ferr := s.lim.Failure(ctx, id); ferr == nil && blocked {
			return model.Session{}, errs.ErrRateLimited
		}
		s.log.Info("login failed")
		return model.Session{}, errs.ErrUnauthorized
	}
	if err != nil {
		return model.Session{}, err
	}

	// Success: reset counters (best-effort).
	_ = s.lim.Success(ctx, id)

	token, exp, err := s.issueToken(user.ID)
	if err != nil {
		return model.Session{}, err
	}
	user.Password = ""
	sess := model.Session{User: user, Token: token, ExpiresAt: exp}
	if err := s.app.SetSession(ctx, sess); err != nil {
		return model.Session{}, fmt.Errorf("store session: %w", err)
	}
	return sess, nil
}

// issueToken creates a signed HS256 JWT for the given subject.
func (s *AuthServiceImpl) issueToken(userID string) (string, time.Time, error) {
	jti, err := uuid.NewV4()
	if err != nil {
		return "", time.Time{}, err
	}
	now := s.app.Now()
	exp := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		ID:        jti.String(),
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}

// Logout forgets the stored session.
func (s *AuthServiceImpl) Logout(ctx context.Context) error {
	return s.app.ClearSession(ctx)
}

// Current validates the stored session token and refreshes the user from state.
// Expired, tampered or orphaned sessions are cleared.
func (s *AuthServiceImpl) Current(ctx context.Context) (model.Session, error) {
	sess, err := s.app.Session(ctx)
	if err != nil {
		return model.Session{}, err
	}

	var claims jwt.RegisteredClaims
	_, err = jwt.ParseWithClaims(sess.Token, &claims, func(*jwt.Token) (any, error) { return s.signKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.app.Now),
	)
	if err != nil || !model.SameID(claims.Subject, sess.User.ID) {
		s.log.Debug("session rejected", zap.Error(err))
		_ = s.app.ClearSession(ctx)
		return model.Session{}, errs.ErrNotAuthenticated
	}

	snap := s.app.Snapshot()
	i := snap.FindUser(sess.User.ID)
	if i < 0 {
		_ = s.app.ClearSession(ctx)
		return model.Session{}, errs.ErrNotAuthenticated
	}
	sess.User = snap.Users[i]
	sess.User.Password = ""
	return sess, nil
}
