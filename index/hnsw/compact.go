package hnsw

import (
	"context"

	"github.com/hupe1980/embeddb/index"
	"github.com/hupe1980/embeddb/internal/bitmap"
)

// compactCheckInterval is the number of nodes re-inserted between context checks.
const compactCheckInterval = 64

// Compact rebuilds the graph without tombstoned nodes.
//
// Live nodes are re-inserted into a fresh graph in their original order and
// at their original level, so the rebuilt graph does not depend on the level
// generator. Inserts and deletes that arrive meanwhile are applied to the
// current graph and journalled, then replayed onto the new graph before the
// swap. A cancelled compaction discards the new graph.
func (h *HNSW) Compact(ctx context.Context) error {
	// --- Phase 1: Snapshot State ---
	h.mu.Lock()
	if h.journal != nil {
		h.mu.Unlock()
		return index.ErrCompactionInProgress
	}
	if h.tombstones.IsEmpty() {
		h.mu.Unlock()
		return nil
	}

	n := len(h.g.nodes)
	nodes := h.g.nodes[:n:n]
	dead := h.tombstones.Clone()
	h.journal = &index.Journal{}
	h.mu.Unlock()

	// --- Phase 2: Rebuild (No Lock) ---
	next := newGraph(n - dead.Cardinality())
	for i, nd := range nodes {
		if i%compactCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				h.abortCompaction()
				return err
			}
		}
		if dead.Contains(nd.row) {
			continue
		}
		h.insert(next, nd.row, nd.vector, nd.level)
	}

	// --- Phase 3: Commit (Lock) ---
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := ctx.Err(); err != nil {
		h.journal = nil
		return err
	}

	tombstones := bitmap.New()
	for _, op := range h.journal.Ops() {
		switch op.Kind {
		case index.OpInsert:
			level := h.g.nodes[h.g.ids[op.Row]].level
			h.insert(next, op.Row, op.Vector, level)
		case index.OpDelete:
			if _, ok := next.ids[op.Row]; ok {
				tombstones.Add(op.Row)
			}
		}
	}

	h.g = next
	h.tombstones = tombstones
	h.journal = nil

	return nil
}

func (h *HNSW) abortCompaction() {
	h.mu.Lock()
	h.journal = nil
	h.mu.Unlock()
}
