package index

// OpKind is the kind of a journalled mutation.
type OpKind uint8

const (
	// OpInsert records an Insert.
	OpInsert OpKind = iota + 1
	// OpDelete records a Delete.
	OpDelete
)

// Op is a mutation recorded while a compaction builds its replacement structure.
type Op struct {
	Kind   OpKind
	Row    uint32
	Vector []float32
}

// Journal records mutations applied to the live structure during a compaction
// so they can be replayed onto the rebuilt one at commit.
// A nil Journal records nothing. Callers serialize access.
type Journal struct {
	ops []Op
}

// Insert records an insert of v under row.
func (j *Journal) Insert(row uint32, v []float32) {
	if j == nil {
		return
	}
	j.ops = append(j.ops, Op{Kind: OpInsert, Row: row, Vector: v})
}

// Delete records a delete of row.
func (j *Journal) Delete(row uint32) {
	if j == nil {
		return
	}
	j.ops = append(j.ops, Op{Kind: OpDelete, Row: row})
}

// Ops returns the recorded mutations in order.
func (j *Journal) Ops() []Op {
	if j == nil {
		return nil
	}
	return j.ops
}

// Len returns the number of recorded mutations.
func (j *Journal) Len() int {
	if j == nil {
		return 0
	}
	return len(j.ops)
}
