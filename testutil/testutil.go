package testutil

import (
	"cmp"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/hupe1980/embeddb/distance"
)

// SearchResult is a ranked row used for recall computations.
type SearchResult struct {
	ID       uint32
	Distance float32
}

// RNG is a seeded, goroutine-safe source of test data. Two RNGs with the
// same seed produce the same sequence.
type RNG struct {
	mu   sync.Mutex
	rand *rand.Rand
}

// NewRNG returns an RNG seeded with seed.
func NewRNG(seed int64) *RNG {
	return &RNG{rand: rand.New(rand.NewPCG(uint64(seed), 0x9e3779b97f4a7c15))}
}

// Intn returns a number in [0, n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.IntN(n)
}

// vectors fills num vectors of dim components from one backing array.
func (r *RNG) vectors(num, dim int, component func(*rand.Rand) float32) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dim)
	out := make([][]float32, num)
	for i := range out {
		vec := data[i*dim : (i+1)*dim : (i+1)*dim]
		for j := range vec {
			vec[j] = component(r.rand)
		}
		out[i] = vec
	}
	return out
}

// UniformVectors returns vectors with components in [0, 1).
func (r *RNG) UniformVectors(num, dim int) [][]float32 {
	return r.vectors(num, dim, (*rand.Rand).Float32)
}

// UniformRangeVectors returns vectors with components in [-1, 1).
func (r *RNG) UniformRangeVectors(num, dim int) [][]float32 {
	return r.vectors(num, dim, func(rr *rand.Rand) float32 { return rr.Float32()*2 - 1 })
}

// UnitVectors returns L2-normalized vectors spread over the hypersphere.
func (r *RNG) UnitVectors(num, dim int) [][]float32 {
	out := r.vectors(num, dim, func(rr *rand.Rand) float32 { return float32(rr.NormFloat64()) })
	for _, vec := range out {
		if !distance.NormalizeL2InPlace(vec) {
			vec[0] = 1
		}
	}
	return out
}

// UnitVector returns a single unit vector.
func (r *RNG) UnitVector(dim int) []float32 {
	return r.UnitVectors(1, dim)[0]
}

// ClusteredVectors returns vectors scattered with the given spread around
// clusters random unit centroids, assigned round robin.
func (r *RNG) ClusteredVectors(num, dim, clusters int, spread float32) [][]float32 {
	centroids := r.UnitVectors(clusters, dim)
	out := r.vectors(num, dim, func(rr *rand.Rand) float32 { return float32(rr.NormFloat64()) * spread })
	for i, vec := range out {
		for j, c := range centroids[i%clusters] {
			vec[j] += c
		}
	}
	return out
}

// ComputeRecall returns the share of the first min(len) ground truth ids
// present in approximate.
func ComputeRecall(groundTruth, approximate []SearchResult) float64 {
	if len(groundTruth) == 0 || len(approximate) == 0 {
		if len(groundTruth) == len(approximate) {
			return 1
		}
		return 0
	}

	k := min(len(approximate), len(groundTruth))
	truth := make(map[uint32]struct{}, k)
	for _, r := range groundTruth[:k] {
		truth[r.ID] = struct{}{}
	}

	hits := 0
	for _, r := range approximate {
		if _, ok := truth[r.ID]; ok {
			hits++
		}
	}
	return float64(hits) / float64(k)
}

// BruteForceSearch ranks vectors against query exactly. Result ids are
// positions in vectors; ties keep the lower position first.
func BruteForceSearch(vectors [][]float32, query []float32, k int, metric distance.Metric) []SearchResult {
	results := make([]SearchResult, 0, len(vectors))
	for i, v := range vectors {
		d, err := distance.Distance(query, v, metric)
		if err != nil {
			continue
		}
		results = append(results, SearchResult{ID: uint32(i), Distance: d})
	}

	slices.SortStableFunc(results, func(a, b SearchResult) int {
		return cmp.Compare(a.Distance, b.Distance)
	})

	return results[:min(k, len(results))]
}
