package flat

import (
	"context"

	"github.com/hupe1980/embeddb/index"
	"github.com/hupe1980/embeddb/internal/bitmap"
)

// Compact rewrites the row table without tombstoned rows.
//
// Mutations arriving while the new table is built are applied to the
// current table as usual and journalled; the journal is replayed onto the
// new table before it is swapped in. If ctx is cancelled before the swap,
// the new table is discarded.
func (f *Flat) Compact(ctx context.Context) error {
	// --- Phase 1: Snapshot State ---
	f.mu.Lock()
	if f.journal != nil {
		f.mu.Unlock()
		return index.ErrCompactionInProgress
	}
	if f.tombstones.IsEmpty() {
		f.mu.Unlock()
		return nil
	}

	n := len(f.data.rows)
	rows := f.data.rows[:n:n]
	vectors := f.data.vectors[:n:n]
	dead := f.tombstones.Clone()
	f.journal = &index.Journal{}
	f.mu.Unlock()

	// --- Phase 2: Rebuild (No Lock) ---
	next := newTable(n - dead.Cardinality())
	for slot, row := range rows {
		if slot%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				f.abortCompaction()
				return err
			}
		}
		if dead.Contains(row) {
			continue
		}
		next.append(row, vectors[slot])
	}

	// --- Phase 3: Commit (Lock) ---
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		f.journal = nil
		return err
	}

	tombstones := bitmap.New()
	for _, op := range f.journal.Ops() {
		switch op.Kind {
		case index.OpInsert:
			next.append(op.Row, op.Vector)
		case index.OpDelete:
			if _, ok := next.slots[op.Row]; ok {
				tombstones.Add(op.Row)
			}
		}
	}

	f.data = next
	f.tombstones = tombstones
	f.journal = nil

	return nil
}

func (f *Flat) abortCompaction() {
	f.mu.Lock()
	f.journal = nil
	f.mu.Unlock()
}
