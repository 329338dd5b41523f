package metadata

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFilter is matched by *InvalidFilterError via errors.Is.
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrInvalidValue is matched by *InvalidValueError via errors.Is.
	ErrInvalidValue = errors.New("invalid metadata value")
)

// InvalidFilterError describes a malformed predicate.
type InvalidFilterError struct {
	// Path locates the offending node, e.g. "$and[1].year".
	Path   string
	Reason string
}

func (e *InvalidFilterError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid filter: %s", e.Reason)
	}
	return fmt.Sprintf("invalid filter at %s: %s", e.Path, e.Reason)
}

// Is reports whether target is ErrInvalidFilter.
func (e *InvalidFilterError) Is(target error) bool { return target == ErrInvalidFilter }

// InvalidValueError describes a metadata entry that cannot be stored.
type InvalidValueError struct {
	Key    string
	Reason string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid metadata value for key %q: %s", e.Key, e.Reason)
}

// Is reports whether target is ErrInvalidValue.
func (e *InvalidValueError) Is(target error) bool { return target == ErrInvalidValue }
