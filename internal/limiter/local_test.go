package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/logistics-keeper/internal/store"
)

func newLocal(t *testing.T) (*Local, *time.Time) {
	t.Helper()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewLocal(store.New(store.NewMemory(), nil), Policy{Window: time.Minute, MaxFails: 3, BlockFor: 5 * time.Minute})
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLocal_BlocksAfterMaxFails(t *testing.T) {
	ctx := context.Background()
	l, _ := newLocal(t)

	for i := 0; i < 2; i++ {
		blocked, _, err := l.Failure(ctx, "Alice01")
		require.NoError(t, err)
		require.False(t, blocked)
	}
	blocked, dur, err := l.Failure(ctx, "alice01")
	require.NoError(t, err)
	require.True(t, blocked)
	require.Equal(t, 5*time.Minute, dur)

	ok, retry, err := l.Allow(ctx, "ALICE01")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 5*time.Minute, retry)

	ok, _, err = l.Allow(ctx, "bob01")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLocal_WindowExpiresAndBlockLifts(t *testing.T) {
	ctx := context.Background()
	l, now := newLocal(t)

	_, _, _ = l.Failure(ctx, "u")
	_, _, _ = l.Failure(ctx, "u")
	*now = now.Add(2 * time.Minute)
	blocked, _, err := l.Failure(ctx, "u")
	require.NoError(t, err)
	require.False(t, blocked, "old failures fall out of the window")

	_, _, _ = l.Failure(ctx, "u")
	blocked, _, _ = l.Failure(ctx, "u")
	require.True(t, blocked)

	*now = now.Add(6 * time.Minute)
	ok, _, err := l.Allow(ctx, "u")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLocal_SuccessResets(t *testing.T) {
	ctx := context.Background()
	l, _ := newLocal(t)

	require.NoError(t, l.Success(ctx, "u"))
	_, _, _ = l.Failure(ctx, "u")
	_, _, _ = l.Failure(ctx, "u")
	require.NoError(t, l.Success(ctx, "U"))

	blocked, _, err := l.Failure(ctx, "u")
	require.NoError(t, err)
	require.False(t, blocked)
}
