package embeddb

import (
	"fmt"

	"github.com/hupe1980/embeddb/distance"
	"github.com/hupe1980/embeddb/index"
	"github.com/hupe1980/embeddb/snapshot"
)

// export returns the persisted form of c. Vectors and metadata are shared
// with the store; stored records are replaced on mutation, never modified.
// ok is false for a dropped or closed collection.
func (c *Collection) export() (snapshot.Collection, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.err != nil {
		return snapshot.Collection{}, false
	}

	sc := snapshot.Collection{
		Name:      c.name,
		Dimension: c.dimension,
		Metric:    c.opts.Metric.String(),
		Index:     c.opts.Index.String(),

		CompactionThreshold: c.opts.CompactionThreshold,

		Records: make([]snapshot.Record, 0, c.store.len()),
	}

	if c.opts.Index == index.KindHNSW {
		h := c.opts.HNSW
		sc.HNSW = &snapshot.HNSWParams{
			M:              h.M,
			EfConstruction: h.EfConstruction,
			EfSearch:       h.EfSearch,
			Heuristic:      h.Heuristic,
			Seed:           h.Seed,
		}
	}

	c.store.each(func(_ uint32, rec *Record) bool {
		sc.Records = append(sc.Records, snapshot.Record{
			ID:       rec.ID,
			Vector:   rec.Vector,
			Document: rec.Document,
			Metadata: rec.Metadata,
		})
		return true
	})

	return sc, true
}

// restoreCollection rebuilds a collection and its index from a snapshot.
// Records are inserted in snapshot order, which is insertion order.
func restoreCollection(sc snapshot.Collection, logger *Logger, metrics MetricsCollector) (*Collection, error) {
	opts := DefaultCollectionOptions()

	metric, err := distance.ParseMetric(sc.Metric)
	if err != nil {
		return nil, fmt.Errorf("restore %q: %w", sc.Name, err)
	}
	kind, err := index.ParseKind(sc.Index)
	if err != nil {
		return nil, fmt.Errorf("restore %q: %w", sc.Name, err)
	}

	opts.Dimension = sc.Dimension
	opts.Metric = metric
	opts.Index = kind
	if sc.CompactionThreshold != 0 {
		opts.CompactionThreshold = sc.CompactionThreshold
	}
	if p := sc.HNSW; p != nil {
		opts.HNSW.M = p.M
		opts.HNSW.EfConstruction = p.EfConstruction
		opts.HNSW.EfSearch = p.EfSearch
		opts.HNSW.Heuristic = p.Heuristic
		opts.HNSW.Seed = p.Seed
	}

	c, err := newCollection(sc.Name, opts, logger, metrics)
	if err != nil {
		return nil, fmt.Errorf("restore %q: %w", sc.Name, err)
	}

	if len(sc.Records) == 0 {
		return c, nil
	}

	records := make([]Record, len(sc.Records))
	vectors := make([][]float32, len(sc.Records))
	seen := make(map[string]struct{}, len(sc.Records))
	for i, r := range sc.Records {
		if _, dup := seen[r.ID]; dup || r.ID == "" {
			return nil, fmt.Errorf("restore %q: %w", sc.Name, &DuplicateIDError{ID: r.ID})
		}
		seen[r.ID] = struct{}{}
		records[i] = Record{ID: r.ID, Document: r.Document, Metadata: r.Metadata}
		vectors[i] = r.Vector
	}

	if c.idx == nil {
		if err := c.initIndex(len(vectors[0])); err != nil {
			return nil, err
		}
	}
	for i, v := range vectors {
		if err := c.validateVector(c.dimension, records[i].ID, v); err != nil {
			return nil, fmt.Errorf("restore %q: %w", sc.Name, err)
		}
	}

	if err := c.insertLocked(records, vectors); err != nil {
		return nil, fmt.Errorf("restore %q: %w", sc.Name, translateError(err))
	}

	return c, nil
}

// estimateSize approximates the encoded size of sc in bytes.
func estimateSize(sc *snapshot.Collection) int64 {
	var n int64
	for _, r := range sc.Records {
		n += int64(len(r.ID)+len(r.Document)) + 4*int64(len(r.Vector))
		for k, v := range r.Metadata {
			n += int64(len(k)+len(v.S)) + 8
		}
	}
	return n
}
