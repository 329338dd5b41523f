package embeddb

import (
	"errors"
	"fmt"

	"github.com/hupe1980/embeddb/distance"
	"github.com/hupe1980/embeddb/index"
	"github.com/hupe1980/embeddb/internal/resource"
)

var (
	// ErrNotFound is matched by *NotFoundError.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is matched by *AlreadyExistsError.
	ErrAlreadyExists = errors.New("already exists")

	// ErrDuplicateID is matched by *DuplicateIDError.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrDimensionMismatch is matched by *DimensionMismatchError.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrEmptyID is returned when a record has no id.
	ErrEmptyID = errors.New("empty id")

	// ErrEmptyName is returned when a collection name is empty.
	ErrEmptyName = errors.New("empty collection name")

	// ErrClosed is returned by operations on a closed client.
	ErrClosed = errors.New("client closed")

	// ErrNoEmbeddingFunction is returned when a record or query has no
	// vector and the collection has no embedding function to compute one.
	ErrNoEmbeddingFunction = errors.New("no embedding function")

	// ErrMemoryLimitExceeded is returned by Flush when the snapshot would
	// exceed ResourceLimits.MemoryBytes.
	ErrMemoryLimitExceeded = resource.ErrMemoryLimitExceeded

	// ErrMissingVector is returned when a record has neither vector nor document.
	ErrMissingVector = errors.New("record has neither vector nor document")
)

// DimensionMismatchError indicates a vector whose length differs from the
// collection dimension. ID is empty for query vectors.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type DimensionMismatchError struct {
	Expected int
	Actual   int
	ID       string
	cause    error
}

func (e *DimensionMismatchError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
	}
	return fmt.Sprintf("dimension mismatch for id %q: expected %d, got %d", e.ID, e.Expected, e.Actual)
}

func (e *DimensionMismatchError) Unwrap() error { return e.cause }

// Is reports whether target is ErrDimensionMismatch.
func (e *DimensionMismatchError) Is(target error) bool { return target == ErrDimensionMismatch }

// DuplicateIDError indicates an id that is already present in the collection
// or repeated inside one batch.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate id %q", e.ID)
}

// Is reports whether target is ErrDuplicateID.
func (e *DuplicateIDError) Is(target error) bool { return target == ErrDuplicateID }

// NotFoundError indicates a missing record or collection.
type NotFoundError struct {
	// Kind is "record" or "collection".
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// AlreadyExistsError indicates a collection name collision.
type AlreadyExistsError struct {
	Name string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("collection %q already exists", e.Name)
}

// Is reports whether target is ErrAlreadyExists.
func (e *AlreadyExistsError) Is(target error) bool { return target == ErrAlreadyExists }

// translateError maps errors raised by the index and distance packages onto
// the public error types. Unknown errors pass through unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var dm *distance.DimensionMismatchError
	if errors.As(err, &dm) {
		return &DimensionMismatchError{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}
	if errors.Is(err, index.ErrInvalidK) {
		return fmt.Errorf("%w: %w", ErrInvalidK, err)
	}
	if errors.Is(err, index.ErrRowNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	return err
}
