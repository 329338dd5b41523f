// Package hnsw implements a Hierarchical Navigable Small World graph index.
package hnsw

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"slices"
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/hupe1980/embeddb/distance"
	"github.com/hupe1980/embeddb/index"
	"github.com/hupe1980/embeddb/internal/bitmap"
	"github.com/hupe1980/embeddb/internal/queue"
)

// Compile-time check to ensure HNSW satisfies the index interface.
var _ index.Index = (*HNSW)(nil)

// maxLevelCap bounds the level of a single node.
const maxLevelCap = 16

// Options represents the options for configuring HNSW.
type Options struct {
	// Dimension is the fixed vector dimensionality for this index.
	Dimension int

	// Metric is the distance used for ranking and graph construction.
	Metric distance.Metric

	// M specifies the number of established connections for every new element during construction.
	// The range M=12-48 is ok for most use cases. Layer 0 allows 2*M connections.
	M int

	// EfConstruction specifies the size of the dynamic candidate list while inserting.
	EfConstruction int

	// EfSearch specifies the size of the dynamic candidate list while searching.
	// Searches use max(EfSearch, k). Larger values improve recall at the cost of latency.
	EfSearch int

	// Heuristic indicates whether to use the neighbour selection heuristic (true) or
	// keep the M closest candidates (false).
	Heuristic bool

	// Seed seeds the level generator so graphs are reproducible.
	Seed int64
}

// DefaultOptions contains the default configuration options for HNSW.
var DefaultOptions = Options{
	Metric:         distance.MetricCosine,
	M:              16,
	EfConstruction: 200,
	EfSearch:       64,
	Heuristic:      true,
	Seed:           42,
}

// node represents a node in the HNSW graph.
// row, vector and level never change after insertion.
type node struct {
	row         uint32
	vector      []float32
	level       int
	connections [][]uint32 // per level, ids of neighbour nodes
}

// graph is one generation of the index. Compaction builds a new one.
type graph struct {
	nodes    []*node
	ids      map[uint32]uint32 // row -> node id
	ep       uint32
	maxLevel int
}

func newGraph(capacity int) *graph {
	return &graph{
		nodes: make([]*node, 0, capacity),
		ids:   make(map[uint32]uint32, capacity),
	}
}

// HNSW represents the Hierarchical Navigable Small World graph.
type HNSW struct {
	mu    sync.RWMutex
	opts  Options
	dist  distance.Func
	mmax  int     // Max number of connections per element/per layer
	mmax0 int     // Max for the 0 layer
	ml    float64 // Normalization factor for level generation
	rng   *rand.Rand

	g          *graph
	tombstones *bitmap.Bitmap // rows

	// journal is non-nil while a compaction is building.
	journal *index.Journal
}

// New creates a new HNSW index.
func New(optFns ...func(o *Options)) (*HNSW, error) {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if err := index.ValidateOptions(opts.Dimension, opts.Metric); err != nil {
		return nil, err
	}

	if opts.M < 2 {
		// M == 1 would result in division by zero: 1 / log(1)
		return nil, fmt.Errorf("hnsw: M must be at least 2, got %d", opts.M)
	}

	if opts.EfConstruction < opts.M {
		opts.EfConstruction = opts.M
	}

	if opts.EfSearch <= 0 {
		opts.EfSearch = DefaultOptions.EfSearch
	}

	dist, err := distance.Provider(opts.Metric)
	if err != nil {
		return nil, err
	}

	return &HNSW{
		opts:       opts,
		dist:       dist,
		mmax:       opts.M,
		mmax0:      2 * opts.M,
		ml:         1 / math.Log(float64(opts.M)),
		rng:        rand.New(rand.NewSource(opts.Seed)), // nolint gosec
		g:          newGraph(64),
		tombstones: bitmap.New(),
	}, nil
}

// Kind returns index.KindHNSW.
func (h *HNSW) Kind() index.Kind { return index.KindHNSW }

// Options returns the effective options.
func (h *HNSW) Options() Options { return h.opts }

// Insert inserts a new element into the HNSW graph.
func (h *HNSW) Insert(row uint32, v []float32) error {
	if err := index.ValidateVector(h.opts.Dimension, v); err != nil {
		return err
	}

	// Make a copy of the vector to ensure changes outside this function don't affect the node
	vec := index.CopyVector(v)

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.g.ids[row]; ok {
		return fmt.Errorf("%w: %d", index.ErrRowExists, row)
	}

	h.insert(h.g, row, vec, h.randomLevel())
	h.journal.Insert(row, vec)

	return nil
}

// Delete tombstones row. The node stays in the graph as a routing bridge
// until the next compaction.
func (h *HNSW) Delete(row uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.g.ids[row]; !ok || h.tombstones.Contains(row) {
		return fmt.Errorf("%w: %d", index.ErrRowNotFound, row)
	}

	h.tombstones.Add(row)
	h.journal.Delete(row)

	return nil
}

// Search performs an approximate k-nearest neighbour search.
//
// The candidate list starts at max(EfSearch, k) and doubles while fewer than
// k live accepted rows were found. Once it covers the whole graph the search
// falls back to an exact scan.
func (h *HNSW) Search(ctx context.Context, q []float32, k int, accept index.AcceptFunc) ([]index.Candidate, error) {
	if err := index.ValidateSearch(h.opts.Dimension, q, k); err != nil {
		return nil, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	g := h.g
	if len(g.nodes) == 0 {
		return []index.Candidate{}, nil
	}

	for ef := max(h.opts.EfSearch, k); ef < len(g.nodes); ef *= 2 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ep := h.findEp(g, q)
		found := h.searchLayer(g, q, ep, ef, 0)

		out := make([]index.Candidate, 0, len(found))
		for _, item := range found {
			row := g.nodes[item.Node].row
			if h.tombstones.Contains(row) || (accept != nil && !accept(row)) {
				continue
			}
			out = append(out, index.Candidate{Row: row, Distance: item.Distance})
		}

		if len(out) >= k {
			sortCandidates(out)
			return out[:k], nil
		}
	}

	return h.bruteSearch(ctx, g, q, k, accept)
}

// BruteSearch performs an exact scan over every live node.
func (h *HNSW) BruteSearch(ctx context.Context, q []float32, k int, accept index.AcceptFunc) ([]index.Candidate, error) {
	if err := index.ValidateSearch(h.opts.Dimension, q, k); err != nil {
		return nil, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.bruteSearch(ctx, h.g, q, k, accept)
}

func (h *HNSW) bruteSearch(ctx context.Context, g *graph, q []float32, k int, accept index.AcceptFunc) ([]index.Candidate, error) {
	topCandidates := queue.NewMax(min(k, len(g.nodes)))

	for i, n := range g.nodes {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		if h.tombstones.Contains(n.row) || (accept != nil && !accept(n.row)) {
			continue
		}

		topCandidates.PushItemBounded(queue.PriorityQueueItem{
			Node:     n.row,
			Distance: h.dist(q, n.vector),
		}, k)
	}

	items := topCandidates.Sorted()
	out := make([]index.Candidate, len(items))
	for i, item := range items {
		out[i] = index.Candidate{Row: item.Node, Distance: item.Distance}
	}

	return out, nil
}

// Len returns the number of live rows.
func (h *HNSW) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.g.nodes) - h.tombstones.Cardinality()
}

// Tombstones returns the number of rows awaiting compaction.
func (h *HNSW) Tombstones() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.tombstones.Cardinality()
}

func (h *HNSW) randomLevel() int {
	level := int(math.Floor(-math.Log(1-h.rng.Float64()) * h.ml))
	return min(level, maxLevelCap)
}

// insert links a node into g. Callers either hold the write lock on the
// live graph or own g exclusively.
func (h *HNSW) insert(g *graph, row uint32, vec []float32, level int) {
	id := uint32(len(g.nodes))

	n := &node{
		row:         row,
		vector:      vec,
		level:       level,
		connections: make([][]uint32, level+1),
	}

	g.nodes = append(g.nodes, n)
	g.ids[row] = id

	if id == 0 {
		g.ep = id
		g.maxLevel = level
		return
	}

	// Find single shortest path from top layers above our current node, which will be our new starting-point
	ep := queue.PriorityQueueItem{Node: g.ep, Distance: h.dist(vec, g.nodes[g.ep].vector)}
	for level := g.maxLevel; level > n.level; level-- {
		ep = h.greedy(g, vec, ep, level)
	}

	// For all levels equal and below our current node, find the top (closest) candidates and create a link
	for level := min(n.level, g.maxLevel); level >= 0; level-- {
		candidates := h.searchLayer(g, vec, ep, h.opts.EfConstruction, level)

		n.connections[level] = h.selectNeighbours(g, candidates, h.opts.M)

		// Next link the neighbour nodes to our new node, making it visible
		for _, neighbour := range n.connections[level] {
			h.link(g, neighbour, id, level)
		}

		ep = candidates[0]
	}

	if n.level > g.maxLevel {
		g.ep = id
		g.maxLevel = n.level
	}
}

// findEp descends the upper layers greedily and returns the layer 0 entry point.
func (h *HNSW) findEp(g *graph, q []float32) queue.PriorityQueueItem {
	ep := queue.PriorityQueueItem{Node: g.ep, Distance: h.dist(q, g.nodes[g.ep].vector)}
	for level := g.maxLevel; level > 0; level-- {
		ep = h.greedy(g, q, ep, level)
	}
	return ep
}

func (h *HNSW) greedy(g *graph, q []float32, ep queue.PriorityQueueItem, level int) queue.PriorityQueueItem {
	for changed := true; changed; {
		changed = false

		for _, id := range g.nodes[ep.Node].connections[level] {
			if d := h.dist(q, g.nodes[id].vector); d < ep.Distance {
				ep = queue.PriorityQueueItem{Node: id, Distance: d}
				changed = true
			}
		}
	}

	return ep
}

// searchLayer performs a beam search of width ef in one layer and returns
// the closest nodes best first.
func (h *HNSW) searchLayer(g *graph, q []float32, ep queue.PriorityQueueItem, ef int, level int) []queue.PriorityQueueItem {
	visited := bitset.New(uint(len(g.nodes)))
	visited.Set(uint(ep.Node))

	candidates := queue.NewMin(ef)
	candidates.PushItem(ep)

	topCandidates := queue.NewMax(ef)
	topCandidates.PushItem(ep)

	for candidates.Len() > 0 {
		candidate, _ := candidates.PopItem()

		if worst, _ := topCandidates.TopItem(); topCandidates.Len() >= ef && candidate.Distance > worst.Distance {
			break
		}

		conns := g.nodes[candidate.Node].connections
		if level >= len(conns) {
			continue
		}

		for _, id := range conns[level] {
			if visited.Test(uint(id)) {
				continue
			}
			visited.Set(uint(id))

			item := queue.PriorityQueueItem{Node: id, Distance: h.dist(q, g.nodes[id].vector)}
			if topCandidates.PushItemBounded(item, ef) {
				candidates.PushItem(item)
			}
		}
	}

	return topCandidates.Sorted()
}

// selectNeighbours picks up to m neighbours from candidates (best first).
// The heuristic skips a candidate that is closer to an already selected
// neighbour than to the base element, then backfills with skipped ones.
func (h *HNSW) selectNeighbours(g *graph, candidates []queue.PriorityQueueItem, m int) []uint32 {
	if !h.opts.Heuristic || len(candidates) <= m {
		selected := make([]uint32, 0, min(m, len(candidates)))
		for _, c := range candidates[:min(m, len(candidates))] {
			selected = append(selected, c.Node)
		}
		return selected
	}

	selected := make([]uint32, 0, m)
	var pruned []uint32

	for _, c := range candidates {
		if len(selected) >= m {
			break
		}

		keep := true
		for _, s := range selected {
			if h.dist(g.nodes[s].vector, g.nodes[c.Node].vector) < c.Distance {
				keep = false
				break
			}
		}

		if keep {
			selected = append(selected, c.Node)
		} else {
			pruned = append(pruned, c.Node)
		}
	}

	for i := 0; len(selected) < m && i < len(pruned); i++ {
		selected = append(selected, pruned[i])
	}

	return selected
}

// link adds a connection from first to second and shrinks the neighbour
// list of first when it exceeds the layer maximum.
func (h *HNSW) link(g *graph, first uint32, second uint32, level int) {
	maxConnections := h.mmax
	// HNSW allows double the connections for the bottom level (0)
	if level == 0 {
		maxConnections = h.mmax0
	}

	n := g.nodes[first]
	n.connections[level] = append(n.connections[level], second)

	if len(n.connections[level]) <= maxConnections {
		return
	}

	candidates := make([]queue.PriorityQueueItem, len(n.connections[level]))
	for i, id := range n.connections[level] {
		candidates[i] = queue.PriorityQueueItem{Node: id, Distance: h.dist(n.vector, g.nodes[id].vector)}
	}
	slices.SortFunc(candidates, compareItems)

	n.connections[level] = h.selectNeighbours(g, candidates, maxConnections)
}

func compareItems(a, b queue.PriorityQueueItem) int {
	switch {
	case queue.Better(a, b):
		return -1
	case queue.Better(b, a):
		return 1
	default:
		return 0
	}
}

func sortCandidates(c []index.Candidate) {
	slices.SortFunc(c, func(a, b index.Candidate) int {
		return compareItems(
			queue.PriorityQueueItem{Node: a.Row, Distance: a.Distance},
			queue.PriorityQueueItem{Node: b.Row, Distance: b.Distance},
		)
	})
}
