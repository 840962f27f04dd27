// Package errs contains sentinel and typed errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across store/service layers.
var (
	// ErrNotFound indicates the requested entity or key does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to repeated failures.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a uniqueness violation (user id, email).
	ErrAlreadyExists = errors.New("already exists")

	// ErrValidation indicates malformed input to a mutator.
	ErrValidation = errors.New("validation")

	// ErrNotAuthenticated indicates an operation that needs a logged-in actor.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrNoPendingRestore indicates Confirm was called with nothing staged.
	ErrNoPendingRestore = errors.New("no pending restore")
)

// User management guards. Checked in declaration order by UserService.Delete.
var (
	ErrReservedID       = errors.New("reserved user id")
	ErrDeleteSelf       = errors.New("cannot delete own account")
	ErrDeleteAdmin      = errors.New("cannot delete admin account")
	ErrInsufficientRole = errors.New("insufficient role")
	ErrLastManager      = errors.New("cannot delete last manager")
	ErrUserHasOrders    = errors.New("user has orders")
)
