// Package limiter defines interfaces and implementations for login rate limiting.
package limiter

import (
	"context"
	"strings"
	"time"
)

// Limiter controls login attempts and temporary lockouts per user id.
type Limiter interface {
	// Allow reports whether login is currently allowed and optional retry-after.
	Allow(ctx context.Context, userID string) (bool, time.Duration, error)
	// Success resets counters after a successful login.
	Success(ctx context.Context, userID string) error
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, userID string) (bool, time.Duration, error)
}

// Policy is the sliding window and lockout configuration shared by implementations.
type Policy struct {
	Window   time.Duration // failures older than this are forgotten
	MaxFails int           // failures within Window that trigger a block
	BlockFor time.Duration
}

// DefaultPolicy allows five failures per quarter hour.
var DefaultPolicy = Policy{Window: 15 * time.Minute, MaxFails: 5, BlockFor: 15 * time.Minute}

// normalize applies the case-insensitive user id collation.
func normalize(userID string) string { return strings.ToLower(strings.TrimSpace(userID)) }
