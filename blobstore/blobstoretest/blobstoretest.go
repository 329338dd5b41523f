// Package blobstoretest provides a conformance suite for blobstore.BlobStore
// implementations.
package blobstoretest

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/hupe1980/embeddb/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) blobstore.BlobStore

// Run exercises the BlobStore contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	ctx := context.Background()

	t.Run("Lifecycle", func(t *testing.T) {
		store := newStore(t)
		data := []byte("hello world, this is a test blob for embeddb")

		require.NoError(t, store.Put(ctx, "data-001.bin", data))

		blob, err := store.Open(ctx, "data-001.bin")
		require.NoError(t, err)
		require.Equal(t, int64(len(data)), blob.Size())

		buf := make([]byte, 5)
		n, err := blob.ReadAt(ctx, buf, 6)
		require.NoError(t, err)
		require.Equal(t, 5, n)
		require.Equal(t, "world", string(buf))
		require.NoError(t, blob.Close())

		got, err := blobstore.ReadAll(ctx, store, "data-001.bin")
		require.NoError(t, err)
		require.Equal(t, data, got)

		require.NoError(t, store.Put(ctx, "data-002.bin", []byte("x")))

		names, err := store.List(ctx, "")
		require.NoError(t, err)
		require.Equal(t, []string{"data-001.bin", "data-002.bin"}, names)

		require.NoError(t, store.Delete(ctx, "data-001.bin"))

		names, err = store.List(ctx, "")
		require.NoError(t, err)
		require.Equal(t, []string{"data-002.bin"}, names)

		_, err = store.Open(ctx, "data-001.bin")
		require.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("PutReplaces", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Put(ctx, "k", []byte("first version")))
		require.NoError(t, store.Put(ctx, "k", []byte("second")))

		got, err := blobstore.ReadAll(ctx, store, "k")
		require.NoError(t, err)
		assert.Equal(t, "second", string(got))
	})

	t.Run("PutCopiesInput", func(t *testing.T) {
		store := newStore(t)
		data := []byte("abc")
		require.NoError(t, store.Put(ctx, "k", data))
		data[0] = 'z'

		got, err := blobstore.ReadAll(ctx, store, "k")
		require.NoError(t, err)
		assert.Equal(t, "abc", string(got))
	})

	t.Run("EmptyBlob", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Put(ctx, "empty", nil))

		got, err := blobstore.ReadAll(ctx, store, "empty")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("ReadPastEnd", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Put(ctx, "b", []byte("0123456789")))

		blob, err := store.Open(ctx, "b")
		require.NoError(t, err)
		defer blob.Close()

		buf := make([]byte, 5)
		n, err := blob.ReadAt(ctx, buf, 8)
		assert.Equal(t, 2, n)
		assert.ErrorIs(t, err, io.EOF)
		assert.Equal(t, "89", string(buf[:n]))

		_, err = blob.ReadAt(ctx, buf, 20)
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("ListPrefix", func(t *testing.T) {
		store := newStore(t)
		for _, name := range []string{"snapshots/2.snap", "snapshots/1.snap", "CURRENT", "other/x"} {
			require.NoError(t, store.Put(ctx, name, []byte(name)))
		}

		names, err := store.List(ctx, "snapshots/")
		require.NoError(t, err)
		assert.Equal(t, []string{"snapshots/1.snap", "snapshots/2.snap"}, names)

		names, err = store.List(ctx, "missing/")
		require.NoError(t, err)
		assert.Empty(t, names)
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		store := newStore(t)
		assert.NoError(t, store.Delete(ctx, "nope"))
	})

	t.Run("OpenMissing", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Open(ctx, "nope")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("ConcurrentPuts", func(t *testing.T) {
		store := newStore(t)

		var wg sync.WaitGroup
		for i := range 8 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				name := fmt.Sprintf("c/%02d", i)
				assert.NoError(t, store.Put(ctx, name, []byte(name)))
			}(i)
		}
		wg.Wait()

		names, err := store.List(ctx, "c/")
		require.NoError(t, err)
		assert.Len(t, names, 8)
	})
}
