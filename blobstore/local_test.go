package blobstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/embeddb/blobstore"
	"github.com/hupe1980/embeddb/blobstore/blobstoretest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore(t *testing.T) {
	blobstoretest.Run(t, func(t *testing.T) blobstore.BlobStore {
		return blobstore.NewLocalStore(t.TempDir())
	})
}

func TestLocalStore_Layout(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "db")
	store := blobstore.NewLocalStore(root)

	// Listing a root that does not exist yet is empty, not an error.
	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, store.Put(ctx, "snapshots/1.snap", []byte("payload")))

	_, err = os.Stat(filepath.Join(root, "snapshots", "1.snap"))
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(root, "snapshots"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not survive a Put")

	blob, err := store.Open(ctx, "snapshots/1.snap")
	require.NoError(t, err)

	m, ok := blob.(blobstore.Mappable)
	require.True(t, ok)
	data, err := m.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	require.NoError(t, blob.Close())
}

func TestLocalStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := blobstore.NewLocalStore(t.TempDir())
	assert.ErrorIs(t, store.Put(ctx, "x", []byte("x")), context.Canceled)
	_, err := store.Open(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}
