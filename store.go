package embeddb

import (
	"errors"
	"math"

	"github.com/hupe1980/embeddb/metadata"
)

// errRowsExhausted is returned once every uint32 row has been handed out.
var errRowsExhausted = errors.New("row space exhausted")

// Record is a stored vector with its document and metadata.
type Record struct {
	ID       string
	Vector   []float32
	Document string
	Metadata metadata.Document
}

func (r Record) clone() Record {
	out := Record{
		ID:       r.ID,
		Document: r.Document,
		Metadata: r.Metadata.Clone(),
	}
	if r.Vector != nil {
		out.Vector = make([]float32, len(r.Vector))
		copy(out.Vector, r.Vector)
	}
	return out
}

// recordStore is the authoritative copy of a collection's records.
//
// Every record lives under a row handed to the index. Rows increase
// monotonically and are never reused, so ascending row order is insertion
// order. A record whose vector changes moves to a new row.
// Callers hold the collection lock.
type recordStore struct {
	ids   map[string]uint32
	byRow map[uint32]*Record
	order []uint32 // ascending rows, may contain removed rows
	next  uint32
}

func newRecordStore() *recordStore {
	return &recordStore{
		ids:   make(map[string]uint32),
		byRow: make(map[uint32]*Record),
	}
}

func (s *recordStore) len() int {
	return len(s.ids)
}

func (s *recordStore) has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// lookup returns the record and row stored under id.
func (s *recordStore) lookup(id string) (*Record, uint32, bool) {
	row, ok := s.ids[id]
	if !ok {
		return nil, 0, false
	}
	return s.byRow[row], row, true
}

// at returns the record stored under row.
func (s *recordStore) at(row uint32) (*Record, bool) {
	rec, ok := s.byRow[row]
	return rec, ok
}

// reserve hands out the next row.
func (s *recordStore) reserve() (uint32, error) {
	if s.next == math.MaxUint32 {
		return 0, errRowsExhausted
	}
	row := s.next
	s.next++
	return row, nil
}

// put stores rec under row. Any previous row of the same id is released.
func (s *recordStore) put(row uint32, rec *Record) {
	old, replaced := s.ids[rec.ID]
	if replaced {
		delete(s.byRow, old)
	}
	s.ids[rec.ID] = row
	s.byRow[row] = rec
	s.order = append(s.order, row)
	if replaced {
		s.maybeShrink()
	}
}

// replace swaps the record stored under row, keeping its position.
func (s *recordStore) replace(row uint32, rec *Record) {
	s.byRow[row] = rec
}

// remove drops id and returns the row it occupied.
func (s *recordStore) remove(id string) (uint32, bool) {
	row, ok := s.ids[id]
	if !ok {
		return 0, false
	}
	delete(s.ids, id)
	delete(s.byRow, row)
	s.maybeShrink()
	return row, true
}

// each calls fn for every record in insertion order until fn returns false.
func (s *recordStore) each(fn func(row uint32, rec *Record) bool) {
	for _, row := range s.order {
		rec, ok := s.byRow[row]
		if !ok {
			continue
		}
		if !fn(row, rec) {
			return
		}
	}
}

// sample calls fn for up to n records spread evenly over insertion order.
func (s *recordStore) sample(n int, fn func(rec *Record)) {
	live := len(s.byRow)
	if live == 0 || n <= 0 {
		return
	}
	stride := max(1, live/n)
	i, taken := 0, 0
	s.each(func(_ uint32, rec *Record) bool {
		if i%stride == 0 {
			fn(rec)
			taken++
		}
		i++
		return taken < n
	})
}

// maybeShrink drops removed rows from order once they outnumber live ones.
func (s *recordStore) maybeShrink() {
	if len(s.order) < 64 || len(s.order) < 2*len(s.byRow) {
		return
	}
	kept := make([]uint32, 0, len(s.byRow))
	for _, row := range s.order {
		if _, ok := s.byRow[row]; ok {
			kept = append(kept, row)
		}
	}
	s.order = kept
}
