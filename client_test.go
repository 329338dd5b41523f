package embeddb_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/embeddb"
	"github.com/hupe1980/embeddb/blobstore"
	"github.com/hupe1980/embeddb/distance"
	"github.com/hupe1980/embeddb/embedding"
	"github.com/hupe1980/embeddb/index"
	"github.com/hupe1980/embeddb/index/hnsw"
	"github.com/hupe1980/embeddb/metadata"
	"github.com/hupe1980/embeddb/snapshot"
	"github.com/hupe1980/embeddb/testutil"
)

func TestClient_Registry(t *testing.T) {
	ctx := context.Background()
	client := newClient(t)

	docs, err := client.CreateCollection(ctx, "docs", embeddb.WithDimension(4))
	require.NoError(t, err)
	assert.Equal(t, "docs", docs.Name())
	assert.Equal(t, distance.MetricCosine, docs.Metric())
	assert.Equal(t, index.KindFlat, docs.IndexKind())

	t.Run("AlreadyExists", func(t *testing.T) {
		_, err := client.CreateCollection(ctx, "docs")
		var ae *embeddb.AlreadyExistsError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, "docs", ae.Name)
		assert.ErrorIs(t, err, embeddb.ErrAlreadyExists)
	})

	t.Run("GetOrCreateIsIdempotent", func(t *testing.T) {
		got, err := client.GetOrCreateCollection(ctx, "docs", embeddb.WithDimension(8), embeddb.WithMetric(distance.MetricDot))
		require.NoError(t, err)
		assert.Same(t, docs, got)
		assert.Equal(t, 4, got.Dimension())

		created, err := client.GetOrCreateCollection(ctx, "notes", embeddb.WithIndex(index.KindHNSW))
		require.NoError(t, err)
		again, err := client.GetOrCreateCollection(ctx, "notes")
		require.NoError(t, err)
		assert.Same(t, created, again)
		assert.Equal(t, index.KindHNSW, again.IndexKind())
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := client.GetCollection(ctx, "missing")
		var nf *embeddb.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "collection", nf.Kind)
		assert.ErrorIs(t, err, embeddb.ErrNotFound)
	})

	t.Run("InvalidOptions", func(t *testing.T) {
		_, err := client.CreateCollection(ctx, "")
		assert.ErrorIs(t, err, embeddb.ErrEmptyName)

		_, err = client.CreateCollection(ctx, "neg", embeddb.WithDimension(-1))
		assert.Error(t, err)

		_, err = client.CreateCollection(ctx, "badmetric", embeddb.WithMetric(distance.Metric(9)))
		assert.Error(t, err)

		_, err = client.CreateCollection(ctx, "badm", embeddb.WithDimension(2),
			embeddb.WithHNSWOptions(func(o *hnsw.Options) { o.M = 1 }))
		assert.Error(t, err)
	})

	assert.Equal(t, []string{"docs", "notes"}, client.ListCollections())

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, docs.Add(ctx, embeddb.Record{ID: "a", Vector: []float32{1, 0, 0, 0}}))
		require.NoError(t, client.DeleteCollection(ctx, "docs"))

		_, err := docs.Get(ctx, "a")
		assert.ErrorIs(t, err, embeddb.ErrNotFound)
		_, err = docs.Query(ctx, []float32{1, 0, 0, 0}, 1, nil)
		assert.ErrorIs(t, err, embeddb.ErrNotFound)
		assert.ErrorIs(t, docs.Add(ctx, embeddb.Record{ID: "b", Vector: []float32{1, 0, 0, 0}}), embeddb.ErrNotFound)

		assert.ErrorIs(t, client.DeleteCollection(ctx, "docs"), embeddb.ErrNotFound)
		assert.Equal(t, []string{"notes"}, client.ListCollections())

		// The name is free again.
		fresh, err := client.CreateCollection(ctx, "docs")
		require.NoError(t, err)
		assert.Equal(t, 0, fresh.Count())
	})
}

func TestClient_Closed(t *testing.T) {
	ctx := context.Background()
	client, err := embeddb.NewClient(ctx)
	require.NoError(t, err)

	col, err := client.CreateCollection(ctx, "c", embeddb.WithDimension(2))
	require.NoError(t, err)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	_, err = client.CreateCollection(ctx, "d")
	assert.ErrorIs(t, err, embeddb.ErrClosed)
	_, err = client.GetCollection(ctx, "c")
	assert.ErrorIs(t, err, embeddb.ErrClosed)
	assert.ErrorIs(t, client.Flush(ctx), embeddb.ErrClosed)
	assert.ErrorIs(t, col.Add(ctx, embeddb.Record{ID: "x", Vector: []float32{1, 0}}), embeddb.ErrClosed)
}

func populate(t *testing.T, col *embeddb.Collection, n, dim int) []embeddb.Record {
	t.Helper()
	rng := testutil.NewRNG(5)
	records := make([]embeddb.Record, n)
	for i, v := range rng.UniformVectors(n, dim) {
		records[i] = embeddb.Record{
			ID:       fmt.Sprintf("doc-%03d", i),
			Vector:   v,
			Document: fmt.Sprintf("document %d", i),
			Metadata: metadata.Document{"n": metadata.Int(int64(i)), "odd": metadata.Bool(i%2 == 1)},
		}
	}
	require.NoError(t, col.Add(context.Background(), records...))
	return records
}

func TestClient_Persistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	client, err := embeddb.Open(ctx, dir, embeddb.WithCompactionInterval(0))
	require.NoError(t, err)

	flat, err := client.CreateCollection(ctx, "flat", embeddb.WithDimension(6), embeddb.WithMetric(distance.MetricEuclidean))
	require.NoError(t, err)
	records := populate(t, flat, 120, 6)
	_, err = flat.Delete(ctx, "doc-000", "doc-001")
	require.NoError(t, err)

	graph, err := client.CreateCollection(ctx, "graph", embeddb.WithDimension(6),
		embeddb.WithCompactionThreshold(0.05),
		embeddb.WithHNSWOptions(func(o *hnsw.Options) {
			o.M = 8
			o.EfSearch = 32
		}))
	require.NoError(t, err)
	populate(t, graph, 80, 6)

	_, err = client.CreateCollection(ctx, "lazy", embeddb.WithCompactionThreshold(-1))
	require.NoError(t, err)

	query := records[50].Vector
	filter := metadata.Eq("odd", true)
	before, err := flat.Query(ctx, query, 10, filter)
	require.NoError(t, err)

	require.NoError(t, client.Close())

	reopened, err := embeddb.Open(ctx, dir, embeddb.WithCompactionInterval(0))
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, []string{"flat", "graph", "lazy"}, reopened.ListCollections())

	flat2, err := reopened.GetCollection(ctx, "flat")
	require.NoError(t, err)
	assert.Equal(t, 118, flat2.Count())
	assert.Equal(t, 6, flat2.Dimension())
	assert.Equal(t, distance.MetricEuclidean, flat2.Metric())
	assert.Equal(t, embeddb.DefaultCompactionThreshold, flat2.CompactionThreshold())

	got, err := flat2.Get(ctx, "doc-050", "doc-000")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, records[50], got[0])

	after, err := flat2.Query(ctx, query, 10, filter)
	require.NoError(t, err)
	assert.Equal(t, ids(before), ids(after))

	graph2, err := reopened.GetCollection(ctx, "graph")
	require.NoError(t, err)
	assert.Equal(t, index.KindHNSW, graph2.IndexKind())
	assert.Equal(t, "8", graph2.Stats().Parameters["M"])
	assert.Equal(t, 80, graph2.Count())
	assert.Equal(t, 0.05, graph2.CompactionThreshold())

	lazy, err := reopened.GetCollection(ctx, "lazy")
	require.NoError(t, err)
	assert.Equal(t, 0, lazy.Dimension())
	assert.Equal(t, -1.0, lazy.CompactionThreshold())
}

func TestClient_FlushVersions(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()

	client := newClient(t, embeddb.WithBlobStore(blobs, func(o *snapshot.Options) {
		o.Compression = snapshot.CompressionZSTD
		o.Retention = 3
	}))
	col, err := client.CreateCollection(ctx, "c", embeddb.WithDimension(3))
	require.NoError(t, err)

	for i := range 5 {
		require.NoError(t, col.Add(ctx, embeddb.Record{ID: fmt.Sprintf("r%d", i), Vector: []float32{1, float32(i), 0}}))
		require.NoError(t, client.Flush(ctx))
	}

	store := snapshot.NewStore(blobs)
	versions, err := store.Versions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 4, 5}, versions)

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap.Collection("c"))
	assert.Len(t, snap.Collection("c").Records, 5)
	assert.Equal(t, "cosine", snap.Collection("c").Metric)
}

func TestClient_EmbeddingReattached(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	embed := embedding.NewHash(32)

	client, err := embeddb.NewClient(ctx, embeddb.WithBlobStore(blobs), embeddb.WithCompactionInterval(0))
	require.NoError(t, err)
	col, err := client.CreateCollection(ctx, "docs", embeddb.WithEmbeddingFunction(embed))
	require.NoError(t, err)
	require.NoError(t, col.Add(ctx,
		embeddb.Record{ID: "1", Document: "vector search"},
		embeddb.Record{ID: "2", Document: "metadata filters"},
	))
	require.NoError(t, client.Close())

	reopened, err := embeddb.NewClient(ctx, embeddb.WithBlobStore(blobs), embeddb.WithCompactionInterval(0))
	require.NoError(t, err)
	defer reopened.Close()

	col, err = reopened.GetCollection(ctx, "docs")
	require.NoError(t, err)
	_, err = col.QueryText(ctx, "vector search", 1, nil)
	assert.ErrorIs(t, err, embeddb.ErrNoEmbeddingFunction)

	col, err = reopened.GetOrCreateCollection(ctx, "docs", embeddb.WithEmbeddingFunction(embed))
	require.NoError(t, err)
	results, err := col.QueryText(ctx, "vector search", 1, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids(results))
}

func TestClient_MemoryLimit(t *testing.T) {
	ctx := context.Background()
	client := newClient(t,
		embeddb.WithBlobStore(blobstore.NewMemoryStore()),
		embeddb.WithResourceLimits(embeddb.ResourceLimits{MemoryBytes: 64}))

	col, err := client.CreateCollection(ctx, "c", embeddb.WithDimension(32))
	require.NoError(t, err)
	populate(t, col, 10, 32)

	err = client.Flush(ctx)
	assert.ErrorIs(t, err, embeddb.ErrMemoryLimitExceeded)
}

func TestClient_BackgroundCompaction(t *testing.T) {
	ctx := context.Background()
	metrics := &embeddb.BasicMetricsCollector{}
	client, err := embeddb.NewClient(ctx,
		embeddb.WithCompactionInterval(10*time.Millisecond),
		embeddb.WithMetricsCollector(metrics))
	require.NoError(t, err)
	defer client.Close()

	col, err := client.CreateCollection(ctx, "c", embeddb.WithDimension(4), embeddb.WithCompactionThreshold(0.3))
	require.NoError(t, err)
	records := populate(t, col, 100, 4)

	// Below the threshold nothing happens.
	_, err = col.Delete(ctx, records[0].ID, records[1].ID)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, col.Stats().Tombstones)

	var del []string
	for _, r := range records[2:50] {
		del = append(del, r.ID)
	}
	_, err = col.Delete(ctx, del...)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return col.Stats().Tombstones == 0
	}, 2*time.Second, 10*time.Millisecond)

	assert.GreaterOrEqual(t, metrics.GetStats().ReclaimedRows, int64(50))
	assert.Equal(t, 50, col.Count())
}
