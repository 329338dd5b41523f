package embeddb

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/hupe1980/embeddb/distance"
	"github.com/hupe1980/embeddb/embedding"
	"github.com/hupe1980/embeddb/index"
	"github.com/hupe1980/embeddb/index/flat"
	"github.com/hupe1980/embeddb/index/hnsw"
	"github.com/hupe1980/embeddb/metadata"
)

// selectivitySample is the number of records a filtered query inspects to
// estimate how many candidates it needs.
const selectivitySample = 256

// Result is a query hit.
type Result struct {
	ID       string
	Document string
	Metadata metadata.Document
	Distance float32
}

// Update replaces the provided fields of the record with the given ID.
// Nil fields are left unchanged.
type Update struct {
	ID       string
	Document *string
	Vector   []float32
	Metadata metadata.Document
}

// Collection is a named set of records with a vector index.
//
// Reads share the collection lock; mutations take it exclusively for both
// the record store and the index, so readers never observe one without the
// other. It is safe for concurrent use.
type Collection struct {
	name    string
	opts    CollectionOptions
	logger  *Logger
	metrics MetricsCollector

	mu        sync.RWMutex
	dimension int
	idx       index.Index // nil until the dimension is known
	store     *recordStore
	err       error // set once the collection is dropped or its client closed
}

func newCollection(name string, opts CollectionOptions, logger *Logger, metrics MetricsCollector) (*Collection, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if opts.Dimension < 0 {
		return nil, fmt.Errorf("collection %q: dimension must not be negative, got %d", name, opts.Dimension)
	}
	if !opts.Metric.Valid() {
		return nil, fmt.Errorf("collection %q: unknown metric %s", name, opts.Metric)
	}
	if opts.Index != index.KindFlat && opts.Index != index.KindHNSW {
		return nil, fmt.Errorf("collection %q: unknown index %s", name, opts.Index)
	}

	c := &Collection{
		name:    name,
		opts:    opts,
		logger:  logger.WithCollection(name),
		metrics: metrics,
		store:   newRecordStore(),
	}

	if opts.Dimension > 0 {
		if err := c.initIndex(opts.Dimension); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (c *Collection) initIndex(dim int) error {
	var (
		idx index.Index
		err error
	)

	switch c.opts.Index {
	case index.KindHNSW:
		params := c.opts.HNSW
		idx, err = hnsw.New(func(o *hnsw.Options) {
			*o = params
			o.Dimension = dim
			o.Metric = c.opts.Metric
		})
	default:
		idx, err = flat.New(func(o *flat.Options) {
			o.Dimension = dim
			o.Metric = c.opts.Metric
		})
	}
	if err != nil {
		return fmt.Errorf("collection %q: %w", c.name, err)
	}

	c.idx = idx
	c.dimension = dim
	return nil
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Metric returns the distance metric.
func (c *Collection) Metric() distance.Metric { return c.opts.Metric }

// IndexKind returns the index implementation.
func (c *Collection) IndexKind() index.Kind { return c.opts.Index }

// CompactionThreshold returns the tombstone ratio above which the background
// compactor runs. Negative means never.
func (c *Collection) CompactionThreshold() float64 { return c.opts.CompactionThreshold }

// Dimension returns the vector dimension, or 0 while it is not yet known.
func (c *Collection) Dimension() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dimension
}

// Count returns the number of records.
func (c *Collection) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.len()
}

// Stats returns statistics about the collection's index.
func (c *Collection) Stats() index.Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.idx == nil {
		return index.Stats{Kind: c.opts.Index}
	}
	return c.idx.Stats()
}

func (c *Collection) embedder() embedding.Func {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.opts.EmbeddingFunction
}

func (c *Collection) setEmbedder(f embedding.Func) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.EmbeddingFunction = f
}

// Add inserts records. It fails with *DuplicateIDError if an id is already
// present or repeated in the batch, and with *DimensionMismatchError if a
// vector has the wrong length. Records without a vector are embedded from
// their document. Either every record is added or none is.
func (c *Collection) Add(ctx context.Context, records ...Record) error {
	start := time.Now()

	err := c.write(ctx, records, false)
	err = translateError(err)

	c.metrics.RecordAdd(len(records), time.Since(start), err)
	c.logger.LogAdd(ctx, "add", len(records), err)

	return err
}

// Upsert inserts new records and replaces existing ones. Either every
// record is written or none is.
func (c *Collection) Upsert(ctx context.Context, records ...Record) error {
	start := time.Now()

	err := c.write(ctx, records, true)
	err = translateError(err)

	c.metrics.RecordAdd(len(records), time.Since(start), err)
	c.logger.LogAdd(ctx, "upsert", len(records), err)

	return err
}

func (c *Collection) write(ctx context.Context, records []Record, upsert bool) error {
	if len(records) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r.ID == "" {
			return ErrEmptyID
		}
		if _, dup := seen[r.ID]; dup {
			return &DuplicateIDError{ID: r.ID}
		}
		seen[r.ID] = struct{}{}

		if err := r.Metadata.Validate(); err != nil {
			return fmt.Errorf("record %q: %w", r.ID, err)
		}
	}

	// Embedding may call out to a remote service, so it runs unlocked.
	vectors, err := c.vectorsFor(ctx, records)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return c.err
	}

	if !upsert {
		for _, r := range records {
			if c.store.has(r.ID) {
				return &DuplicateIDError{ID: r.ID}
			}
		}
	}

	dim := c.dimension
	if dim == 0 {
		dim = len(vectors[0])
	}
	for i, v := range vectors {
		if err := c.validateVector(dim, records[i].ID, v); err != nil {
			return err
		}
	}

	if c.idx == nil {
		if err := c.initIndex(dim); err != nil {
			return err
		}
	}

	return c.insertLocked(records, vectors)
}

// vectorsFor returns the vector of every record, embedding the documents
// of records that have none.
func (c *Collection) vectorsFor(ctx context.Context, records []Record) ([][]float32, error) {
	vectors := make([][]float32, len(records))

	var (
		texts []string
		at    []int
	)
	for i, r := range records {
		if r.Vector != nil {
			vectors[i] = r.Vector
			continue
		}
		if r.Document == "" {
			return nil, fmt.Errorf("%w: %q", ErrMissingVector, r.ID)
		}
		texts = append(texts, r.Document)
		at = append(at, i)
	}

	if len(texts) == 0 {
		return vectors, nil
	}

	embedded, err := c.embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	for j, i := range at {
		vectors[i] = embedded[j]
	}

	return vectors, nil
}

func (c *Collection) embed(ctx context.Context, texts []string) ([][]float32, error) {
	f := c.embedder()
	if f == nil {
		return nil, ErrNoEmbeddingFunction
	}
	vecs, err := embedding.Embed(ctx, f, texts)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	return vecs, nil
}

// validateVector checks a vector against the collection dimension and,
// under cosine, rejects zero vectors.
func (c *Collection) validateVector(dim int, id string, v []float32) error {
	if len(v) != dim {
		return &DimensionMismatchError{Expected: dim, Actual: len(v), ID: id}
	}
	for _, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return fmt.Errorf("vector %q contains a non-finite value", id)
		}
	}
	if c.opts.Metric == distance.MetricCosine && distance.Norm(v) == 0 {
		return &distance.ZeroVectorError{Operand: id}
	}
	return nil
}

// insertLocked indexes vectors under fresh rows, then stores the records.
// Replaced records have their old rows tombstoned. If indexing fails the
// rows inserted so far are tombstoned and the store is left untouched.
func (c *Collection) insertLocked(records []Record, vectors [][]float32) error {
	rows := make([]uint32, 0, len(records))
	for i := range records {
		row, err := c.store.reserve()
		if err == nil {
			err = c.idx.Insert(row, vectors[i])
		}
		if err != nil {
			for _, r := range rows {
				_ = c.idx.Delete(r)
			}
			return err
		}
		rows = append(rows, row)
	}

	for i, r := range records {
		if _, old, ok := c.store.lookup(r.ID); ok {
			if err := c.idx.Delete(old); err != nil {
				return err
			}
		}
		c.store.put(rows[i], &Record{
			ID:       r.ID,
			Vector:   index.CopyVector(vectors[i]),
			Document: r.Document,
			Metadata: r.Metadata.Clone(),
		})
	}

	return nil
}

// Get returns the records with the given ids in request order. Unknown ids
// are omitted. Without ids every record is returned in insertion order.
func (c *Collection) Get(ctx context.Context, ids ...string) ([]Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.err != nil {
		return nil, c.err
	}

	if len(ids) == 0 {
		out := make([]Record, 0, c.store.len())
		c.store.each(func(_ uint32, rec *Record) bool {
			out = append(out, rec.clone())
			return true
		})
		return out, nil
	}

	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		if rec, _, ok := c.store.lookup(id); ok {
			out = append(out, rec.clone())
		}
	}
	return out, nil
}

// GetWhere returns the records whose metadata matches filter, in insertion order.
func (c *Collection) GetWhere(ctx context.Context, filter *metadata.Filter) ([]Record, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.err != nil {
		return nil, c.err
	}

	var out []Record
	c.store.each(func(_ uint32, rec *Record) bool {
		if filter.Matches(rec.Metadata) {
			out = append(out, rec.clone())
		}
		return true
	})
	return out, nil
}

// Update replaces fields of existing records. It fails with *NotFoundError
// if any id is absent; no update is applied unless all are valid. Updating
// the document of a collection with an embedding function and no new
// vector re-embeds the document.
func (c *Collection) Update(ctx context.Context, updates ...Update) error {
	start := time.Now()

	err := c.update(ctx, updates)
	err = translateError(err)

	c.metrics.RecordUpdate(len(updates), time.Since(start), err)
	c.logger.LogUpdate(ctx, len(updates), err)

	return err
}

func (c *Collection) update(ctx context.Context, updates []Update) error {
	if len(updates) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(updates))
	var (
		texts []string
		at    []int
	)
	for i, u := range updates {
		if u.ID == "" {
			return ErrEmptyID
		}
		if _, dup := seen[u.ID]; dup {
			return &DuplicateIDError{ID: u.ID}
		}
		seen[u.ID] = struct{}{}

		if err := u.Metadata.Validate(); err != nil {
			return fmt.Errorf("record %q: %w", u.ID, err)
		}
		if u.Vector == nil && u.Document != nil && *u.Document != "" {
			texts = append(texts, *u.Document)
			at = append(at, i)
		}
	}

	vectors := make([][]float32, len(updates))
	for i, u := range updates {
		vectors[i] = u.Vector
	}
	if len(texts) > 0 && c.embedder() != nil {
		embedded, err := c.embed(ctx, texts)
		if err != nil {
			return err
		}
		for j, i := range at {
			vectors[i] = embedded[j]
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return c.err
	}

	existing := make([]*Record, len(updates))
	for i, u := range updates {
		rec, _, ok := c.store.lookup(u.ID)
		if !ok {
			return &NotFoundError{Kind: "record", Name: u.ID}
		}
		existing[i] = rec
		if vectors[i] != nil {
			if err := c.validateVector(c.dimension, u.ID, vectors[i]); err != nil {
				return err
			}
		}
	}

	type replacement struct {
		row uint32
		rec *Record
	}
	var (
		moved    []Record
		movedTo  [][]float32
		replaced []replacement
	)
	for i, u := range updates {
		next := *existing[i]
		if u.Document != nil {
			next.Document = *u.Document
		}
		if u.Metadata != nil {
			next.Metadata = u.Metadata.Clone()
		}
		if vectors[i] != nil {
			moved = append(moved, next)
			movedTo = append(movedTo, vectors[i])
			continue
		}
		_, row, _ := c.store.lookup(u.ID)
		replaced = append(replaced, replacement{row: row, rec: &next})
	}

	// A changed vector moves the record to a new row: the index entry is
	// replaced, never mutated.
	if len(moved) > 0 {
		if err := c.insertLocked(moved, movedTo); err != nil {
			return err
		}
	}
	for _, r := range replaced {
		c.store.replace(r.row, r.rec)
	}

	return nil
}

// Delete removes the records with the given ids and returns how many were
// removed. Unknown ids are ignored, so deleting twice is not an error.
func (c *Collection) Delete(ctx context.Context, ids ...string) (int, error) {
	start := time.Now()

	deleted, err := c.delete(ids)
	err = translateError(err)

	c.metrics.RecordDelete(deleted, time.Since(start), err)
	c.logger.LogDelete(ctx, len(ids), deleted, err)

	return deleted, err
}

// DeleteWhere removes the records whose metadata matches filter. A nil
// filter is rejected rather than treated as match-all.
func (c *Collection) DeleteWhere(ctx context.Context, filter *metadata.Filter) (int, error) {
	start := time.Now()

	deleted, err := c.deleteWhere(filter)
	err = translateError(err)

	c.metrics.RecordDelete(deleted, time.Since(start), err)
	c.logger.LogDelete(ctx, deleted, deleted, err)

	return deleted, err
}

func (c *Collection) deleteWhere(filter *metadata.Filter) (int, error) {
	if filter == nil {
		return 0, &metadata.InvalidFilterError{Reason: "delete requires a filter"}
	}
	if err := filter.Validate(); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return 0, c.err
	}

	var ids []string
	c.store.each(func(_ uint32, rec *Record) bool {
		if filter.Matches(rec.Metadata) {
			ids = append(ids, rec.ID)
		}
		return true
	})

	return c.deleteLocked(ids)
}

func (c *Collection) delete(ids []string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return 0, c.err
	}

	return c.deleteLocked(ids)
}

func (c *Collection) deleteLocked(ids []string) (int, error) {
	deleted := 0
	for _, id := range ids {
		_, row, ok := c.store.lookup(id)
		if !ok {
			continue
		}
		if err := c.idx.Delete(row); err != nil {
			return deleted, err
		}
		c.store.remove(id)
		deleted++
	}
	return deleted, nil
}

// Query returns the k records closest to vector among those matching
// filter, ordered by ascending distance. Fewer than k results are returned
// only when fewer than k records match.
func (c *Collection) Query(ctx context.Context, vector []float32, k int, filter *metadata.Filter) ([]Result, error) {
	start := time.Now()

	results, pool, err := c.query(ctx, vector, k, filter)
	err = translateError(err)

	c.metrics.RecordQuery(k, time.Since(start), err)
	c.logger.LogQuery(ctx, k, len(results), pool, err)

	return results, err
}

// QueryText embeds text with the collection's embedding function and queries with the result.
func (c *Collection) QueryText(ctx context.Context, text string, k int, filter *metadata.Filter) ([]Result, error) {
	vecs, err := c.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return c.Query(ctx, vecs[0], k, filter)
}

func (c *Collection) query(ctx context.Context, q []float32, k int, filter *metadata.Filter) ([]Result, int, error) {
	if k <= 0 {
		return nil, 0, ErrInvalidK
	}
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.err != nil {
		return nil, 0, c.err
	}
	if c.idx == nil {
		return []Result{}, 0, nil
	}
	if err := c.validateVector(c.dimension, "query", q); err != nil {
		return nil, 0, err
	}
	if c.store.len() == 0 {
		return []Result{}, 0, nil
	}

	candidates, pool, err := c.search(ctx, q, k, filter)
	if err != nil {
		return nil, pool, err
	}

	results := make([]Result, 0, len(candidates))
	for _, cand := range candidates {
		rec, ok := c.store.at(cand.Row)
		if !ok {
			continue
		}
		results = append(results, Result{
			ID:       rec.ID,
			Document: rec.Document,
			Metadata: rec.Metadata.Clone(),
			Distance: cand.Distance,
		})
	}

	return results, pool, nil
}

// search ranks candidates and post-filters them. The candidate pool starts
// at k divided by the filter selectivity estimated on a sample and doubles
// while fewer than k candidates survive. Once the pool covers the
// collection without finding k matches, the filter moves into an exact
// scan. It returns the final pool size.
func (c *Collection) search(ctx context.Context, q []float32, k int, filter *metadata.Filter) ([]index.Candidate, int, error) {
	if filter == nil {
		candidates, err := c.idx.Search(ctx, q, k, nil)
		return candidates, k, err
	}

	live := c.store.len()
	accept := func(row uint32) bool {
		rec, ok := c.store.at(row)
		return ok && filter.Matches(rec.Metadata)
	}

	sampled, matched := 0, 0
	c.store.sample(selectivitySample, func(rec *Record) {
		sampled++
		if filter.Matches(rec.Metadata) {
			matched++
		}
	})

	pool := live
	if matched > 0 {
		pool = int(math.Ceil(float64(k) * float64(sampled) / float64(matched)))
	}
	pool = min(max(pool, k), live)

	for {
		candidates, err := c.idx.Search(ctx, q, pool, nil)
		if err != nil {
			return nil, pool, err
		}

		kept := make([]index.Candidate, 0, min(k, len(candidates)))
		for _, cand := range candidates {
			if accept(cand.Row) {
				kept = append(kept, cand)
				if len(kept) == k {
					return kept, pool, nil
				}
			}
		}

		if pool >= live {
			if len(candidates) >= live {
				// Every live record was ranked.
				return kept, pool, nil
			}
			break
		}
		pool = min(pool*2, live)
	}

	candidates, err := c.idx.BruteSearch(ctx, q, k, accept)
	return candidates, pool, err
}

// Compact reclaims the index space of deleted and replaced records.
// Queries and mutations proceed while it runs; a cancelled compaction
// leaves the index at its previous state.
func (c *Collection) Compact(ctx context.Context) error {
	start := time.Now()

	reclaimed, err := c.compact(ctx)
	err = translateError(err)

	c.metrics.RecordCompaction(reclaimed, time.Since(start), err)
	c.logger.LogCompaction(ctx, reclaimed, time.Since(start), err)

	return err
}

func (c *Collection) compact(ctx context.Context) (int, error) {
	c.mu.RLock()
	idx, err := c.idx, c.err
	c.mu.RUnlock()

	if err != nil {
		return 0, err
	}
	if idx == nil {
		return 0, nil
	}

	reclaimed := idx.Tombstones()
	if reclaimed == 0 {
		return 0, nil
	}
	if err := idx.Compact(ctx); err != nil {
		return 0, err
	}
	return reclaimed, nil
}

// needsCompaction reports whether the tombstone ratio exceeds the threshold.
func (c *Collection) needsCompaction() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.err != nil || c.idx == nil || c.opts.CompactionThreshold < 0 {
		return false
	}
	stats := index.Stats{Live: c.idx.Len(), Tombstones: c.idx.Tombstones()}
	return stats.Tombstones > 0 && stats.TombstoneRatio() > c.opts.CompactionThreshold
}

// shutdown releases the records and index; later calls fail with err.
func (c *Collection) shutdown(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.err = err
	c.idx = nil
	c.store = newRecordStore()
}
