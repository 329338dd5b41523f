package snapshot

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hupe1980/embeddb/blobstore"
	"github.com/hupe1980/embeddb/blobstore/badger"
	"github.com/hupe1980/embeddb/blobstore/sqlite"
	"github.com/hupe1980/embeddb/codec"
	"github.com/hupe1980/embeddb/internal/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]blobstore.BlobStore {
	t.Helper()

	bdg, err := badger.New(func(o *badger.Options) { o.InMemory = true })
	require.NoError(t, err)
	t.Cleanup(func() { _ = bdg.Close() })

	sql, err := sqlite.New(filepath.Join(t.TempDir(), "snap.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sql.Close() })

	return map[string]blobstore.BlobStore{
		"memory": blobstore.NewMemoryStore(),
		"local":  blobstore.NewLocalStore(t.TempDir()),
		"badger": bdg,
		"sqlite": sql,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, blobs := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := NewStore(blobs, func(o *Options) { o.Compression = CompressionZSTD })

			_, err := store.Load(ctx)
			require.ErrorIs(t, err, ErrNoSnapshot)

			version, err := store.Save(ctx, fixture())
			require.NoError(t, err)
			assert.Equal(t, uint64(1), version)

			// A fresh store over the same blobs sees the saved snapshot.
			reopened := NewStore(blobs)
			snap, err := reopened.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, uint64(1), reopened.Version())

			docs := snap.Collection("docs")
			require.NotNil(t, docs)
			assert.Equal(t, 3, docs.Dimension)
			assert.Equal(t, "alpha", docs.Records[0].Document)
			assert.Nil(t, snap.Collection("missing"))
		})
	}
}

func TestStoreRetention(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	store := NewStore(blobs, func(o *Options) { o.Retention = 2 })

	for i := 1; i <= 5; i++ {
		v, err := store.Save(ctx, fixture())
		require.NoError(t, err)
		assert.Equal(t, uint64(i), v)
	}

	versions, err := store.Versions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{4, 5}, versions)

	current, err := blobstore.ReadAll(ctx, blobs, CurrentName)
	require.NoError(t, err)
	assert.Equal(t, "snapshots/00000000000000000005.snap", string(current))
}

func TestStoreContinuesVersions(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()

	_, err := NewStore(blobs).Save(ctx, fixture())
	require.NoError(t, err)

	// Save without Load must not overwrite version 1.
	v, err := NewStore(blobs).Save(ctx, fixture())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v)
}

func TestStoreDetectsCorruption(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	store := NewStore(blobs, func(o *Options) { o.Codec = codec.JSON{} })

	_, err := store.Save(ctx, fixture())
	require.NoError(t, err)

	name := "snapshots/00000000000000000001.snap"
	data, err := blobstore.ReadAll(ctx, blobs, name)
	require.NoError(t, err)
	data[len(data)-2] ^= 0x01
	require.NoError(t, blobs.Put(ctx, name, data))

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestStoreInvalidCurrent(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	require.NoError(t, blobs.Put(ctx, CurrentName, []byte("../etc/passwd")))

	_, err := NewStore(blobs).Load(ctx)
	assert.Error(t, err)
}

func TestStoreHonoursIOLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	limits := resource.Limits{IOBytesPerSec: 16}
	store := NewStore(blobstore.NewMemoryStore(), func(o *Options) {
		o.Resources = resource.NewController(limits)
	})

	_, err := store.Save(ctx, fixture())
	assert.ErrorIs(t, err, context.Canceled)
}
