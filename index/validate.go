package index

import (
	"fmt"

	"github.com/hupe1980/embeddb/distance"
)

// ValidateOptions checks the settings every index requires.
func ValidateOptions(dimension int, metric distance.Metric) error {
	if dimension <= 0 {
		return fmt.Errorf("index: dimension must be positive, got %d", dimension)
	}
	if !metric.Valid() {
		return fmt.Errorf("index: unknown metric %s", metric)
	}
	return nil
}

// ValidateVector checks that v matches the index dimension.
func ValidateVector(dimension int, v []float32) error {
	if len(v) != dimension {
		return &distance.DimensionMismatchError{Expected: dimension, Actual: len(v)}
	}
	return nil
}

// ValidateSearch checks the arguments of Search and BruteSearch.
func ValidateSearch(dimension int, q []float32, k int) error {
	if k <= 0 {
		return ErrInvalidK
	}
	return ValidateVector(dimension, q)
}

// CopyVector returns a private copy of v.
func CopyVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
