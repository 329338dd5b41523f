package distance

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

// ErrZeroVector is matched by *ZeroVectorError via errors.Is.
var ErrZeroVector = errors.New("zero vector")

// ErrDimensionMismatch is matched by *DimensionMismatchError via errors.Is.
var ErrDimensionMismatch = errors.New("dimension mismatch")

// ZeroVectorError is returned by the cosine metric when an operand has zero norm.
type ZeroVectorError struct {
	// Operand names the vector: "a" or "b" here, a record id or "query"
	// when raised by a collection.
	Operand string
}

func (e *ZeroVectorError) Error() string {
	return fmt.Sprintf("cosine distance undefined: vector %s has zero norm", e.Operand)
}

// Is reports whether target is ErrZeroVector.
func (e *ZeroVectorError) Is(target error) bool { return target == ErrZeroVector }

// DimensionMismatchError is returned when two vectors differ in length.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Is reports whether target is ErrDimensionMismatch.
func (e *DimensionMismatchError) Is(target error) bool { return target == ErrDimensionMismatch }

// Metric represents the distance metric used for vector comparison.
//
// Every metric is oriented so that smaller values mean more similar vectors.
type Metric int

const (
	// MetricCosine is 1 - cosine similarity, in [0, 2].
	MetricCosine Metric = iota
	// MetricEuclidean is the L2 distance.
	MetricEuclidean
	// MetricDot is the negated inner product.
	MetricDot
)

func (m Metric) String() string {
	switch m {
	case MetricCosine:
		return "cosine"
	case MetricEuclidean:
		return "euclidean"
	case MetricDot:
		return "dot"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// Valid reports whether m is a known metric.
func (m Metric) Valid() bool {
	return m >= MetricCosine && m <= MetricDot
}

// ParseMetric parses a metric name. It accepts the names returned by
// Metric.String plus the common aliases "l2", "ip" and "inner_product".
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cosine", "cos":
		return MetricCosine, nil
	case "euclidean", "l2":
		return MetricEuclidean, nil
	case "dot", "ip", "inner_product":
		return MetricDot, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Metric) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid metric %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Metric) UnmarshalText(text []byte) error {
	parsed, err := ParseMetric(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float32 {
	return float32(math.Sqrt(float64(Dot(v, v))))
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	n := Norm(v)
	if n == 0 {
		return false
	}
	inv := 1 / n
	for i := range v {
		v[i] *= inv
	}
	return true
}

// NormalizeL2Copy returns a normalized copy of src.
// Returns false if src has zero L2 norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	if !NormalizeL2InPlace(dst) {
		return nil, false
	}
	return dst, true
}

// Distance computes the distance between a and b under m.
//
// Smaller is more similar for every metric. Cosine fails with
// *ZeroVectorError when either vector has zero norm.
func Distance(a, b []float32, m Metric) (float32, error) {
	if len(a) != len(b) {
		return 0, &DimensionMismatchError{Expected: len(a), Actual: len(b)}
	}
	switch m {
	case MetricEuclidean:
		return float32(math.Sqrt(float64(SquaredL2(a, b)))), nil
	case MetricDot:
		return -Dot(a, b), nil
	case MetricCosine:
		na, nb := Norm(a), Norm(b)
		if na == 0 {
			return 0, &ZeroVectorError{Operand: "a"}
		}
		if nb == 0 {
			return 0, &ZeroVectorError{Operand: "b"}
		}
		return cosine(Dot(a, b), na, nb), nil
	default:
		return 0, fmt.Errorf("unsupported metric: %v", m)
	}
}

// Func is a distance kernel without validation, used on index hot paths.
type Func func(a, b []float32) float32

// Provider returns the unchecked kernel for m.
//
// The cosine kernel returns 1 for zero-norm operands; collections reject
// zero vectors under cosine before they reach an index.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricEuclidean:
		return func(a, b []float32) float32 {
			return float32(math.Sqrt(float64(SquaredL2(a, b))))
		}, nil
	case MetricDot:
		return func(a, b []float32) float32 { return -Dot(a, b) }, nil
	case MetricCosine:
		return func(a, b []float32) float32 {
			na, nb := Norm(a), Norm(b)
			if na == 0 || nb == 0 {
				return 1
			}
			return cosine(Dot(a, b), na, nb)
		}, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}

func cosine(dot, na, nb float32) float32 {
	sim := dot / (na * nb)
	// Clamp rounding noise so identical vectors report 0.
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return 1 - sim
}
