package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStoreLifecycle(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	data := []byte("checkpoint bytes")
	require.NoError(t, store.Put(ctx, "run-a/00000001.mkem", data))
	require.NoError(t, store.Put(ctx, "run-a/00000002.mkem", []byte("second")))
	require.NoError(t, store.Put(ctx, "run-b/00000001.mkem", []byte("other run")))

	got, err := store.Get(ctx, "run-a/00000001.mkem")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	names, err := store.List(ctx, "run-a/")
	require.NoError(t, err)
	assert.Equal(t, []string{"run-a/00000001.mkem", "run-a/00000002.mkem"}, names)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, store.Put(ctx, "run-a/00000001.mkem", []byte("replaced")))
	got, err = store.Get(ctx, "run-a/00000001.mkem")
	require.NoError(t, err)
	assert.Equal(t, []byte("replaced"), got)

	require.NoError(t, store.Delete(ctx, "run-a/00000001.mkem"))
	require.NoError(t, store.Delete(ctx, "run-a/00000001.mkem"))

	_, err = store.Get(ctx, "run-a/00000001.mkem")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_Lifecycle(t *testing.T) {
	testStoreLifecycle(t, NewLocalStore(t.TempDir()))
}

func TestMemoryStore_Lifecycle(t *testing.T) {
	testStoreLifecycle(t, NewMemoryStore())
}

func TestLocalStore_PutLeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	store := NewLocalStore(root)
	require.NoError(t, store.Put(context.Background(), "a/b.mkem", []byte("x")))

	entries, err := os.ReadDir(filepath.Join(root, "a"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b.mkem", entries[0].Name())
}

func TestLocalStore_ListMissingRoot(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "missing"))
	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLocalStore_EmptyBlob(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "empty", nil))

	got, err := store.Get(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryStore_CopiesData(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	data := []byte("abc")
	require.NoError(t, store.Put(ctx, "k", data))
	data[0] = 'z'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}
