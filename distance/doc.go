// Package distance provides vector distance calculations.
//
// # Supported Metrics
//
//   - MetricCosine: 1 - cosine similarity
//   - MetricEuclidean: L2 distance
//   - MetricDot: negated dot product
//
// All metrics are oriented so that a smaller value means a closer match,
// which keeps top-k selection in the indexes metric-agnostic.
//
// # Usage
//
//	d, err := distance.Distance(a, b, distance.MetricCosine)
//	sim := distance.Dot(a, b)
//	unit, ok := distance.NormalizeL2Copy(vec)
package distance
