package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hupe1980/embeddb/blobstore"
	"github.com/hupe1980/embeddb/blobstore/blobstoretest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "blobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore(t *testing.T) {
	blobstoretest.Run(t, func(t *testing.T) blobstore.BlobStore {
		return newTestStore(t)
	})
}

func TestStore_ListEscapesWildcards(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Put(ctx, "a_b/1", []byte("x")))
	require.NoError(t, store.Put(ctx, "axb/1", []byte("x")))
	require.NoError(t, store.Put(ctx, "100%/1", []byte("x")))

	names, err := store.List(ctx, "a_b/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a_b/1"}, names)

	names, err = store.List(ctx, "100%")
	require.NoError(t, err)
	assert.Equal(t, []string{"100%/1"}, names)
}

func TestStore_ListIsCaseSensitive(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Put(ctx, "Snap/1", []byte("x")))
	require.NoError(t, store.Put(ctx, "snap/1", []byte("x")))

	names, err := store.List(ctx, "snap/")
	require.NoError(t, err)
	assert.Equal(t, []string{"snap/1"}, names)
}
