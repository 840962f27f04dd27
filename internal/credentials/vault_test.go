package credentials

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/logistics-keeper/internal/model"
	"github.com/and161185/logistics-keeper/internal/store"
)

func TestVault_PlainRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := store.New(store.NewMemory(), nil)
	v, err := NewVault(ctx, st, "", nil)
	require.NoError(t, err)

	require.True(t, v.Load(ctx).Empty())
	want := model.SyncCredentials{Token: "tok", DocumentID: "doc"}
	require.NoError(t, v.Save(ctx, want))
	require.Equal(t, want, v.Load(ctx))

	require.NoError(t, v.Clear(ctx))
	require.True(t, v.Load(ctx).Empty())
}

func TestVault_SealedAtRest(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	st := store.New(mem, nil)
	v, err := NewVault(ctx, st, "local-secret", nil)
	require.NoError(t, err)

	want := model.SyncCredentials{Token: "ghp_abc", DocumentID: "doc1"}
	require.NoError(t, v.Save(ctx, want))

	raw, err := mem.Load(ctx, store.KeySyncCredentials)
	require.NoError(t, err)
	require.False(t, strings.Contains(string(raw), "ghp_abc"))
	require.Equal(t, want, v.Load(ctx))

	// Same passphrase, new process: salt is reused from the store.
	v2, err := NewVault(ctx, st, "local-secret", nil)
	require.NoError(t, err)
	require.Equal(t, want, v2.Load(ctx))
}

func TestVault_SealedWithoutOrWrongPassphraseIsAbsent(t *testing.T) {
	ctx := context.Background()
	st := store.New(store.NewMemory(), nil)
	v, err := NewVault(ctx, st, "right", nil)
	require.NoError(t, err)
	require.NoError(t, v.Save(ctx, model.SyncCredentials{Token: "t", DocumentID: "d"}))

	noKey, err := NewVault(ctx, st, "", nil)
	require.NoError(t, err)
	require.True(t, noKey.Load(ctx).Empty())

	wrong, err := NewVault(ctx, st, "wrong", nil)
	require.NoError(t, err)
	require.True(t, wrong.Load(ctx).Empty())
}
