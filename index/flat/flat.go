// Package flat provides an exact brute-force index.
package flat

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/embeddb/distance"
	"github.com/hupe1980/embeddb/index"
	"github.com/hupe1980/embeddb/internal/bitmap"
	"github.com/hupe1980/embeddb/internal/queue"
)

// Compile-time check to ensure Flat satisfies the index interface.
var _ index.Index = (*Flat)(nil)

// ctxCheckInterval is the number of rows scanned between context checks.
const ctxCheckInterval = 1024

// Options contains configuration options for the flat index.
type Options struct {
	// Dimension is the fixed vector dimensionality for this index.
	Dimension int

	// Metric is the distance used for ranking.
	Metric distance.Metric
}

// DefaultOptions contains the default configuration options for the flat index.
var DefaultOptions = Options{
	Metric: distance.MetricCosine,
}

// table is the dense row storage. Slots are in insertion order.
type table struct {
	rows    []uint32
	vectors [][]float32
	slots   map[uint32]int
}

func newTable(capacity int) *table {
	return &table{
		rows:    make([]uint32, 0, capacity),
		vectors: make([][]float32, 0, capacity),
		slots:   make(map[uint32]int, capacity),
	}
}

func (t *table) append(row uint32, v []float32) {
	t.slots[row] = len(t.rows)
	t.rows = append(t.rows, row)
	t.vectors = append(t.vectors, v)
}

// Flat represents a flat index for vector storage and search.
type Flat struct {
	mu         sync.RWMutex
	opts       Options
	dist       distance.Func
	data       *table
	tombstones *bitmap.Bitmap

	// journal is non-nil while a compaction is building.
	journal *index.Journal
}

// New creates a new instance of the flat index.
func New(optFns ...func(o *Options)) (*Flat, error) {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if err := index.ValidateOptions(opts.Dimension, opts.Metric); err != nil {
		return nil, err
	}

	dist, err := distance.Provider(opts.Metric)
	if err != nil {
		return nil, err
	}

	return &Flat{
		opts:       opts,
		dist:       dist,
		data:       newTable(64),
		tombstones: bitmap.New(),
	}, nil
}

// Kind returns index.KindFlat.
func (f *Flat) Kind() index.Kind { return index.KindFlat }

// Insert adds a vector under row.
func (f *Flat) Insert(row uint32, v []float32) error {
	if err := index.ValidateVector(f.opts.Dimension, v); err != nil {
		return err
	}

	vec := index.CopyVector(v)

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.data.slots[row]; ok {
		return fmt.Errorf("%w: %d", index.ErrRowExists, row)
	}

	f.data.append(row, vec)
	f.journal.Insert(row, vec)

	return nil
}

// Delete tombstones row.
func (f *Flat) Delete(row uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.data.slots[row]; !ok || f.tombstones.Contains(row) {
		return fmt.Errorf("%w: %d", index.ErrRowNotFound, row)
	}

	f.tombstones.Add(row)
	f.journal.Delete(row)

	return nil
}

// Search is exact for the flat index and equals BruteSearch.
func (f *Flat) Search(ctx context.Context, q []float32, k int, accept index.AcceptFunc) ([]index.Candidate, error) {
	return f.BruteSearch(ctx, q, k, accept)
}

// BruteSearch scans every live row and keeps the best k in a bounded max heap.
func (f *Flat) BruteSearch(ctx context.Context, q []float32, k int, accept index.AcceptFunc) ([]index.Candidate, error) {
	if err := index.ValidateSearch(f.opts.Dimension, q, k); err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	live := len(f.data.rows) - f.tombstones.Cardinality()
	topCandidates := queue.NewMax(min(k, live))

	for slot, row := range f.data.rows {
		if slot%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		if f.tombstones.Contains(row) {
			continue
		}

		if accept != nil && !accept(row) {
			continue
		}

		topCandidates.PushItemBounded(queue.PriorityQueueItem{
			Node:     row,
			Distance: f.dist(q, f.data.vectors[slot]),
		}, k)
	}

	return toCandidates(topCandidates.Sorted()), nil
}

// Len returns the number of live rows.
func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return len(f.data.rows) - f.tombstones.Cardinality()
}

// Tombstones returns the number of rows awaiting compaction.
func (f *Flat) Tombstones() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.tombstones.Cardinality()
}

// Stats returns statistics about the index.
func (f *Flat) Stats() index.Stats {
	f.mu.RLock()
	defer f.mu.RUnlock()

	tombstones := f.tombstones.Cardinality()

	return index.Stats{
		Kind:       index.KindFlat,
		Dimension:  f.opts.Dimension,
		Live:       len(f.data.rows) - tombstones,
		Tombstones: tombstones,
		Parameters: map[string]string{
			"Metric": f.opts.Metric.String(),
		},
	}
}

// String returns a string representation of the flat index.
func (f *Flat) String() string {
	stats := f.Stats()
	return fmt.Sprintf("Flat(Dimension=%d, Metric=%s, Live=%d, Tombstones=%d)",
		stats.Dimension, f.opts.Metric, stats.Live, stats.Tombstones)
}

func toCandidates(items []queue.PriorityQueueItem) []index.Candidate {
	out := make([]index.Candidate, len(items))
	for i, item := range items {
		out[i] = index.Candidate{Row: item.Node, Distance: item.Distance}
	}
	return out
}
