// Package index provides the contract shared by the vector search indexes.
package index

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidK is returned when a search asks for k <= 0 results.
	ErrInvalidK = errors.New("index: k must be positive")

	// ErrRowExists is returned when a row is inserted twice.
	ErrRowExists = errors.New("index: row already exists")

	// ErrRowNotFound is returned when deleting a row that is absent or already tombstoned.
	ErrRowNotFound = errors.New("index: row not found")

	// ErrCompactionInProgress is returned when Compact is called while another compaction runs.
	ErrCompactionInProgress = errors.New("index: compaction in progress")
)

// Kind identifies an index implementation.
type Kind int

const (
	// KindFlat is the exact brute-force index.
	KindFlat Kind = iota
	// KindHNSW is the approximate graph index.
	KindHNSW
)

// String returns a string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindFlat:
		return "flat"
	case KindHNSW:
		return "hnsw"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ParseKind parses "flat" or "hnsw" (case-insensitive).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "flat", "bruteforce", "brute_force":
		return KindFlat, nil
	case "hnsw":
		return KindHNSW, nil
	default:
		return 0, fmt.Errorf("index: unknown kind %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if k != KindFlat && k != KindHNSW {
		return nil, fmt.Errorf("index: unknown kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Candidate is a search hit.
type Candidate struct {
	// Row is the store row the vector was inserted under.
	Row uint32

	// Distance is the distance between the query vector and the row's vector.
	Distance float32
}

// AcceptFunc reports whether a row may appear in the results.
// A nil AcceptFunc accepts every live row.
type AcceptFunc func(row uint32) bool

// Index represents an index for vector search.
//
// Rows are assigned by the caller and never reused. Results are ordered by
// ascending distance with ties broken by the lower row.
type Index interface {
	// Insert adds a vector under row.
	Insert(row uint32, v []float32) error

	// Delete tombstones row. Tombstoned rows are never returned.
	Delete(row uint32) error

	// Search returns at most k live rows accepted by accept.
	// Approximate indexes may return fewer than k hits when accept is selective.
	Search(ctx context.Context, q []float32, k int, accept AcceptFunc) ([]Candidate, error)

	// BruteSearch scans every live row and returns the exact top k.
	BruteSearch(ctx context.Context, q []float32, k int, accept AcceptFunc) ([]Candidate, error)

	// Len returns the number of live rows.
	Len() int

	// Tombstones returns the number of rows awaiting compaction.
	Tombstones() int

	// Compact reclaims tombstoned rows. A cancelled compaction leaves the
	// index at its last committed state.
	Compact(ctx context.Context) error

	// Kind returns the index implementation.
	Kind() Kind

	// Stats returns statistics about the index.
	Stats() Stats
}
