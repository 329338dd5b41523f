package embeddb

import (
	"log/slog"
	"time"

	"github.com/hupe1980/embeddb/blobstore"
	"github.com/hupe1980/embeddb/distance"
	"github.com/hupe1980/embeddb/embedding"
	"github.com/hupe1980/embeddb/index"
	"github.com/hupe1980/embeddb/index/hnsw"
	"github.com/hupe1980/embeddb/internal/resource"
	"github.com/hupe1980/embeddb/snapshot"
)

const (
	// DefaultCompactionInterval is how often the background compactor checks collections.
	DefaultCompactionInterval = time.Minute

	// DefaultCompactionThreshold is the tombstone ratio above which a collection is compacted.
	DefaultCompactionThreshold = 0.2
)

// ResourceLimits bounds the background work of a client.
// Zero values mean unlimited, except MaxBackgroundWorkers which defaults to 1.
type ResourceLimits = resource.Limits

type options struct {
	metricsCollector   MetricsCollector
	logger             *Logger
	snapshots          *snapshot.Store
	blobs              blobstore.BlobStore
	snapshotOptions    []func(*snapshot.Options)
	compactionInterval time.Duration
	limits             ResourceLimits
}

// Option configures a Client.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &embeddb.BasicMetricsCollector{}
//	client, _ := embeddb.NewClient(ctx, embeddb.WithMetricsCollector(metrics))
//	// ... use client ...
//	stats := metrics.GetStats()
//	fmt.Printf("Queries: %d, Avg latency: %dns\n", stats.QueryCount, stats.QueryAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithSnapshotStore persists the client through store: it is loaded by
// NewClient and written by Flush and Close.
func WithSnapshotStore(store *snapshot.Store) Option {
	return func(o *options) {
		o.snapshots = store
	}
}

// WithBlobStore persists the client in a snapshot store built on blobs.
// Unlike WithSnapshotStore, snapshot IO is then throttled by the client's
// resource limits.
//
// Example:
//
//	blobs, _ := blobstore.NewLocalStore("./data")
//	client, _ := embeddb.NewClient(ctx, embeddb.WithBlobStore(blobs, func(o *snapshot.Options) {
//	    o.Compression = snapshot.CompressionZSTD
//	}))
func WithBlobStore(blobs blobstore.BlobStore, optFns ...func(*snapshot.Options)) Option {
	return func(o *options) {
		o.blobs = blobs
		o.snapshotOptions = optFns
	}
}

// WithCompactionInterval sets how often the background compactor runs.
// A non-positive interval disables background compaction.
func WithCompactionInterval(d time.Duration) Option {
	return func(o *options) {
		o.compactionInterval = d
	}
}

// WithResourceLimits bounds concurrent background work and snapshot IO.
func WithResourceLimits(limits ResourceLimits) Option {
	return func(o *options) {
		o.limits = limits
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector:   NoopMetricsCollector{},
		logger:             NoopLogger(),
		compactionInterval: DefaultCompactionInterval,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}

// CollectionOptions configures a collection.
type CollectionOptions struct {
	// Dimension is the vector length. Zero lets the first embedded or added
	// vector decide it.
	Dimension int

	// Metric ranks results. Default: cosine.
	Metric distance.Metric

	// Index selects the index implementation. Default: flat.
	Index index.Kind

	// HNSW configures hnsw indexes. Dimension and Metric are taken from the collection.
	HNSW hnsw.Options

	// EmbeddingFunction computes vectors for records and queries given as text.
	EmbeddingFunction embedding.Func

	// CompactionThreshold is the tombstone ratio that triggers background
	// compaction. Zero uses DefaultCompactionThreshold; negative disables it.
	CompactionThreshold float64
}

// DefaultCollectionOptions returns the default collection options.
func DefaultCollectionOptions() CollectionOptions {
	return CollectionOptions{
		Metric:              distance.MetricCosine,
		Index:               index.KindFlat,
		HNSW:                hnsw.DefaultOptions,
		CompactionThreshold: DefaultCompactionThreshold,
	}
}

// CollectionOption configures a collection.
type CollectionOption func(*CollectionOptions)

// WithDimension fixes the vector dimension of a collection.
func WithDimension(dim int) CollectionOption {
	return func(o *CollectionOptions) {
		o.Dimension = dim
	}
}

// WithMetric sets the distance metric of a collection.
func WithMetric(m distance.Metric) CollectionOption {
	return func(o *CollectionOptions) {
		o.Metric = m
	}
}

// WithIndex selects the index implementation of a collection.
func WithIndex(kind index.Kind) CollectionOption {
	return func(o *CollectionOptions) {
		o.Index = kind
	}
}

// WithHNSWOptions selects the hnsw index and adjusts its parameters.
//
// Example:
//
//	col, _ := client.CreateCollection(ctx, "docs", embeddb.WithDimension(384),
//	    embeddb.WithHNSWOptions(func(o *hnsw.Options) {
//	        o.M = 32
//	        o.EfSearch = 128
//	    }))
func WithHNSWOptions(optFns ...func(o *hnsw.Options)) CollectionOption {
	return func(o *CollectionOptions) {
		o.Index = index.KindHNSW
		for _, fn := range optFns {
			fn(&o.HNSW)
		}
	}
}

// WithEmbeddingFunction injects the function used to embed documents and query texts.
func WithEmbeddingFunction(f embedding.Func) CollectionOption {
	return func(o *CollectionOptions) {
		o.EmbeddingFunction = f
	}
}

// WithCompactionThreshold sets the tombstone ratio that triggers background compaction.
func WithCompactionThreshold(ratio float64) CollectionOption {
	return func(o *CollectionOptions) {
		o.CompactionThreshold = ratio
	}
}

func applyCollectionOptions(optFns []CollectionOption) CollectionOptions {
	o := DefaultCollectionOptions()
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.CompactionThreshold == 0 {
		o.CompactionThreshold = DefaultCompactionThreshold
	}
	return o
}
