package embeddb

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/embeddb/blobstore"
	"github.com/hupe1980/embeddb/internal/resource"
	"github.com/hupe1980/embeddb/snapshot"
)

// Client is the registry of named collections.
//
// A client bound to a snapshot store loads it when created, writes it on
// Flush and flushes once more on Close. It is safe for concurrent use.
type Client struct {
	opts      options
	logger    *Logger
	metrics   MetricsCollector
	resources *resource.Controller
	snapshots *snapshot.Store

	mu          sync.RWMutex
	collections map[string]*Collection
	closed      bool

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// NewClient creates a client. If a snapshot or blob store is configured,
// the latest snapshot is loaded before NewClient returns.
//
// Example:
//
//	client, _ := embeddb.NewClient(ctx)
//	defer client.Close()
//
//	docs, _ := client.CreateCollection(ctx, "docs",
//	    embeddb.WithEmbeddingFunction(embedding.NewHash(256)))
//	_ = docs.Add(ctx, embeddb.Record{ID: "1", Document: "vector databases"})
//	results, _ := docs.QueryText(ctx, "what is a vector database?", 3, nil)
func NewClient(ctx context.Context, optFns ...Option) (*Client, error) {
	opts := applyOptions(optFns)

	cl := &Client{
		opts:        opts,
		logger:      opts.logger,
		metrics:     opts.metricsCollector,
		resources:   resource.NewController(opts.limits),
		snapshots:   opts.snapshots,
		collections: make(map[string]*Collection),
	}

	if cl.snapshots == nil && opts.blobs != nil {
		snapOpts := append(slices.Clone(opts.snapshotOptions), func(o *snapshot.Options) {
			if o.Resources == nil {
				o.Resources = cl.resources
			}
		})
		cl.snapshots = snapshot.NewStore(opts.blobs, snapOpts...)
	}

	if err := cl.load(ctx); err != nil {
		return nil, err
	}

	if opts.compactionInterval > 0 {
		cl.startCompactor(opts.compactionInterval)
	}

	return cl, nil
}

// Open creates a client persisted in the local directory dir.
func Open(ctx context.Context, dir string, optFns ...Option) (*Client, error) {
	blobs := blobstore.NewLocalStore(dir)

	return NewClient(ctx, append([]Option{WithBlobStore(blobs)}, optFns...)...)
}

func (cl *Client) load(ctx context.Context) error {
	if cl.snapshots == nil {
		return nil
	}

	snap, err := cl.snapshots.Load(ctx)
	if errors.Is(err, snapshot.ErrNoSnapshot) {
		return nil
	}
	if err == nil {
		for _, sc := range snap.Collections {
			var c *Collection
			c, err = restoreCollection(sc, cl.logger, cl.metrics)
			if err != nil {
				break
			}
			cl.collections[c.name] = c
		}
	}

	version := cl.snapshots.Version()
	if err != nil {
		cl.logger.LogLoad(ctx, version, 0, err)
		return err
	}
	cl.logger.LogLoad(ctx, version, len(cl.collections), nil)

	return nil
}

// CreateCollection creates a collection. It fails with *AlreadyExistsError
// if the name is taken.
func (cl *Client) CreateCollection(ctx context.Context, name string, optFns ...CollectionOption) (*Collection, error) {
	c, err := newCollection(name, applyCollectionOptions(optFns), cl.logger, cl.metrics)
	if err != nil {
		return nil, err
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.closed {
		return nil, ErrClosed
	}
	if _, ok := cl.collections[name]; ok {
		return nil, &AlreadyExistsError{Name: name}
	}

	cl.collections[name] = c
	cl.logger.InfoContext(ctx, "collection created", "collection", name,
		"metric", c.opts.Metric.String(), "index", c.opts.Index.String(), "dimension", c.opts.Dimension)

	return c, nil
}

// GetOrCreateCollection returns the named collection, creating it if it does
// not exist. The options of an existing collection are kept, except that a
// given embedding function is attached to it.
func (cl *Client) GetOrCreateCollection(ctx context.Context, name string, optFns ...CollectionOption) (*Collection, error) {
	if c, err := cl.GetCollection(ctx, name, optFns...); err == nil || !errors.Is(err, ErrNotFound) {
		return c, err
	}

	c, err := cl.CreateCollection(ctx, name, optFns...)
	if errors.Is(err, ErrAlreadyExists) {
		// Lost a race with another creator.
		return cl.GetCollection(ctx, name, optFns...)
	}
	return c, err
}

// GetCollection returns the named collection or a *NotFoundError. Only the
// embedding function of optFns is applied; persisted collections need it
// re-attached after a restart.
func (cl *Client) GetCollection(ctx context.Context, name string, optFns ...CollectionOption) (*Collection, error) {
	cl.mu.RLock()
	c, ok := cl.collections[name]
	closed := cl.closed
	cl.mu.RUnlock()

	if closed {
		return nil, ErrClosed
	}
	if !ok {
		return nil, &NotFoundError{Kind: "collection", Name: name}
	}

	if f := applyCollectionOptions(optFns).EmbeddingFunction; f != nil {
		c.setEmbedder(f)
	}

	return c, nil
}

// DeleteCollection drops the named collection and releases its records and
// index. Later calls on the dropped *Collection fail with *NotFoundError.
func (cl *Client) DeleteCollection(ctx context.Context, name string) error {
	cl.mu.Lock()
	if cl.closed {
		cl.mu.Unlock()
		return ErrClosed
	}
	c, ok := cl.collections[name]
	if !ok {
		cl.mu.Unlock()
		return &NotFoundError{Kind: "collection", Name: name}
	}
	delete(cl.collections, name)
	cl.mu.Unlock()

	c.shutdown(&NotFoundError{Kind: "collection", Name: name})
	cl.logger.InfoContext(ctx, "collection deleted", "collection", name)

	return nil
}

// ListCollections returns the collection names in ascending order.
func (cl *Client) ListCollections() []string {
	cl.mu.RLock()
	defer cl.mu.RUnlock()

	names := make([]string, 0, len(cl.collections))
	for name := range cl.collections {
		names = append(names, name)
	}
	slices.Sort(names)

	return names
}

// list returns the collections ordered by name.
func (cl *Client) list() []*Collection {
	cl.mu.RLock()
	defer cl.mu.RUnlock()

	out := make([]*Collection, 0, len(cl.collections))
	for _, c := range cl.collections {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b *Collection) int {
		switch {
		case a.name < b.name:
			return -1
		case a.name > b.name:
			return 1
		default:
			return 0
		}
	})

	return out
}

// Flush writes a snapshot of every collection. It is a no-op for clients
// without a snapshot store. A flush occupies a background slot and waits
// for one while ResourceLimits.MaxBackgroundWorkers compactions run.
func (cl *Client) Flush(ctx context.Context) error {
	cl.mu.RLock()
	closed := cl.closed
	cl.mu.RUnlock()

	if closed {
		return ErrClosed
	}

	return cl.flush(ctx)
}

func (cl *Client) flush(ctx context.Context) error {
	if cl.snapshots == nil {
		return nil
	}

	return cl.resources.RunBackground(ctx, cl.save)
}

// save exports every collection and writes one snapshot version.
func (cl *Client) save(ctx context.Context) error {
	cols := cl.list()
	exported := make([]*snapshot.Collection, len(cols))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range cols {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sc, ok := c.export()
			if ok {
				exported[i] = &sc
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		cl.logger.LogFlush(ctx, 0, 0, err)
		return err
	}

	snap := &snapshot.Snapshot{CreatedAt: time.Now().UTC()}
	var footprint int64
	for _, sc := range exported {
		if sc == nil {
			continue
		}
		snap.Collections = append(snap.Collections, *sc)
		footprint += estimateSize(sc)
	}

	if err := cl.resources.AcquireMemory(footprint); err != nil {
		err = fmt.Errorf("flush %d bytes with %d reserved: %w", footprint, cl.resources.MemoryUsage(), err)
		cl.logger.LogFlush(ctx, 0, 0, err)
		return err
	}
	defer cl.resources.ReleaseMemory(footprint)

	version, err := cl.snapshots.Save(ctx, snap)
	cl.logger.LogFlush(ctx, version, snap.Records(), err)

	return err
}

// Close stops background compaction, writes a final snapshot and releases
// every collection. Calls after the first return the first result.
func (cl *Client) Close() error {
	cl.closeOnce.Do(func() {
		cl.mu.Lock()
		cl.closed = true
		cl.mu.Unlock()

		if cl.cancel != nil {
			cl.cancel()
		}
		cl.wg.Wait()

		err := cl.flush(context.Background())

		for _, c := range cl.list() {
			c.shutdown(ErrClosed)
		}

		cl.closeErr = err
	})

	return cl.closeErr
}
