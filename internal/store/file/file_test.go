package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/logistics-keeper/internal/errs"
	"github.com/and161185/logistics-keeper/internal/store"
)

func TestBackend_SaveLoadSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b, err := Open(dir, nil)
	require.NoError(t, err)
	_, err = b.Load(ctx, store.KeyOrders)
	require.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, b.Save(ctx, store.KeySuppliers, []byte(`["GHN","GHTK"]`)))
	got, err := b.Load(ctx, store.KeySuppliers)
	require.NoError(t, err)
	require.JSONEq(t, `["GHN","GHTK"]`, string(got))

	b2, err := Open(dir, nil)
	require.NoError(t, err)
	got, err = b2.Load(ctx, store.KeySuppliers)
	require.NoError(t, err)
	require.JSONEq(t, `["GHN","GHTK"]`, string(got))

	info, err := os.Stat(b2.Path())
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestBackend_SaveManyAtomicWithDeletes(t *testing.T) {
	ctx := context.Background()
	b, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, b.Save(ctx, store.KeyAuthenticatedUser, []byte(`{"token":"x"}`)))

	err = b.SaveMany(ctx, map[string][]byte{
		store.KeyOrders: []byte(`[]`),
		store.KeyUsers:  []byte(`[{"id":"ADMIN"}]`),
	}, []string{store.KeyAuthenticatedUser})
	require.NoError(t, err)

	_, err = b.Load(ctx, store.KeyAuthenticatedUser)
	require.ErrorIs(t, err, errs.ErrNotFound)
	got, err := b.Load(ctx, store.KeyUsers)
	require.NoError(t, err)
	require.JSONEq(t, `[{"id":"ADMIN"}]`, string(got))
}

func TestBackend_InvalidValueRejectedWithoutPartialWrite(t *testing.T) {
	ctx := context.Background()
	b, err := Open(t.TempDir(), nil)
	require.NoError(t, err)

	err = b.SaveMany(ctx, map[string][]byte{
		store.KeyOrders:    []byte(`[]`),
		store.KeySuppliers: []byte(`{broken`),
	}, nil)
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = b.Load(ctx, store.KeyOrders)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestOpen_CorruptDocumentMovedAside(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("garbage"), 0o600))

	b, err := Open(dir, nil)
	require.NoError(t, err)
	_, err = b.Load(context.Background(), store.KeyOrders)
	require.ErrorIs(t, err, errs.ErrNotFound)

	_, err = os.Stat(filepath.Join(dir, FileName+".corrupt"))
	require.NoError(t, err)
}

func TestBackend_WorksThroughTypedStore(t *testing.T) {
	ctx := context.Background()
	b, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	s := store.New(b, nil)

	require.NoError(t, store.Set(ctx, s, store.KeySuppliers, []string{"Proship"}))
	require.Equal(t, []string{"Proship"}, store.Get[[]string](ctx, s, store.KeySuppliers, nil))
}

func TestBackend_ConcurrentOpenersKeepEachOthersKeys(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	shell, err := Open(dir, nil)
	require.NoError(t, err)
	oneShot, err := Open(dir, nil)
	require.NoError(t, err)

	require.NoError(t, oneShot.Save(ctx, store.KeySyncCredentials, []byte(`{"token":"tok","documentId":"doc1"}`)))
	require.NoError(t, shell.Save(ctx, store.KeyOrders, []byte(`[]`)))

	b, err := Open(dir, nil)
	require.NoError(t, err)
	got, err := b.Load(ctx, store.KeySyncCredentials)
	require.NoError(t, err)
	require.JSONEq(t, `{"token":"tok","documentId":"doc1"}`, string(got))
	_, err = b.Load(ctx, store.KeyOrders)
	require.NoError(t, err)

	got, err = shell.Load(ctx, store.KeySyncCredentials)
	require.NoError(t, err, "a write picks up keys other processes wrote")
	require.NotEmpty(t, got)

	require.NoError(t, oneShot.Delete(ctx, store.KeySyncCredentials))
	_, err = shell.Load(ctx, store.KeyOrders)
	require.NoError(t, err)
	b, err = Open(dir, nil)
	require.NoError(t, err)
	_, err = b.Load(ctx, store.KeyOrders)
	require.NoError(t, err, "delete by one process keeps the other's keys")
	_, err = b.Load(ctx, store.KeySyncCredentials)
	require.ErrorIs(t, err, errs.ErrNotFound)
}
