package snapshot

import (
	"time"

	"github.com/hupe1980/embeddb/metadata"
)

// Snapshot is the logical content of a persisted client.
type Snapshot struct {
	CreatedAt   time.Time    `json:"created_at" msgpack:"created_at"`
	Collections []Collection `json:"collections" msgpack:"collections"`
}

// Collection is the persisted form of one collection.
//
// Indexes are not serialized; they are rebuilt from Records on load, in
// record order, so row assignment and tie-breaks survive a round trip.
type Collection struct {
	Name      string      `json:"name" msgpack:"name"`
	Dimension int         `json:"dimension" msgpack:"dimension"`
	Metric    string      `json:"metric" msgpack:"metric"`
	Index     string      `json:"index" msgpack:"index"`
	HNSW      *HNSWParams `json:"hnsw,omitempty" msgpack:"hnsw,omitempty"`
	Records   []Record    `json:"records" msgpack:"records"`

	// CompactionThreshold is the tombstone ratio that triggers background
	// compaction. Zero means the default, negative disables it.
	CompactionThreshold float64 `json:"compaction_threshold,omitempty" msgpack:"compaction_threshold,omitempty"`
}

// HNSWParams are the graph parameters of an hnsw collection.
type HNSWParams struct {
	M              int   `json:"m" msgpack:"m"`
	EfConstruction int   `json:"ef_construction" msgpack:"ef_construction"`
	EfSearch       int   `json:"ef_search" msgpack:"ef_search"`
	Heuristic      bool  `json:"heuristic" msgpack:"heuristic"`
	Seed           int64 `json:"seed" msgpack:"seed"`
}

// Record is a persisted record.
type Record struct {
	ID       string            `json:"id" msgpack:"id"`
	Vector   []float32         `json:"vector" msgpack:"vector"`
	Document string            `json:"document,omitempty" msgpack:"document,omitempty"`
	Metadata metadata.Document `json:"metadata,omitempty" msgpack:"metadata,omitempty"`
}

// Collection returns the named collection, or nil.
func (s *Snapshot) Collection(name string) *Collection {
	for i := range s.Collections {
		if s.Collections[i].Name == name {
			return &s.Collections[i]
		}
	}
	return nil
}

// Records returns the total number of records across all collections.
func (s *Snapshot) Records() int {
	n := 0
	for _, c := range s.Collections {
		n += len(c.Records)
	}
	return n
}
