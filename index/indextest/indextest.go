// Package indextest provides a conformance suite for index.Index implementations.
package indextest

import (
	"context"
	"math"
	"testing"

	"github.com/hupe1980/embeddb/distance"
	"github.com/hupe1980/embeddb/index"
	"github.com/hupe1980/embeddb/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory creates an empty index with the given dimension and metric.
type Factory func(t *testing.T, dimension int, metric distance.Metric) index.Index

// Run runs the conformance suite against indexes created by newIndex.
func Run(t *testing.T, newIndex Factory) {
	ctx := context.Background()

	t.Run("ScenarioEuclidean", func(t *testing.T) {
		idx := newIndex(t, 2, distance.MetricEuclidean)
		require.NoError(t, idx.Insert(0, []float32{1, 0}))
		require.NoError(t, idx.Insert(1, []float32{0, 1}))
		require.NoError(t, idx.Insert(2, []float32{1, 1}))

		got, err := idx.Search(ctx, []float32{1, 0}, 2, nil)
		require.NoError(t, err)
		assert.Equal(t, []uint32{0, 2}, Rows(got))
		assert.InDelta(t, 0, got[0].Distance, 1e-6)
		assert.InDelta(t, 1, got[1].Distance, 1e-6)
	})

	t.Run("TiesPreferLowerRow", func(t *testing.T) {
		idx := newIndex(t, 2, distance.MetricEuclidean)
		require.NoError(t, idx.Insert(7, []float32{0, 1}))
		require.NoError(t, idx.Insert(3, []float32{1, 0}))
		require.NoError(t, idx.Insert(5, []float32{-1, 0}))

		got, err := idx.Search(ctx, []float32{0, 0}, 3, nil)
		require.NoError(t, err)
		assert.Equal(t, []uint32{3, 5, 7}, Rows(got))
	})

	t.Run("Errors", func(t *testing.T) {
		idx := newIndex(t, 3, distance.MetricCosine)
		require.NoError(t, idx.Insert(1, []float32{1, 0, 0}))

		err := idx.Insert(1, []float32{0, 1, 0})
		assert.ErrorIs(t, err, index.ErrRowExists)

		err = idx.Insert(2, []float32{1, 0})
		assert.ErrorIs(t, err, distance.ErrDimensionMismatch)

		_, err = idx.Search(ctx, []float32{1, 0, 0}, 0, nil)
		assert.ErrorIs(t, err, index.ErrInvalidK)

		_, err = idx.Search(ctx, []float32{1, 0}, 1, nil)
		assert.ErrorIs(t, err, distance.ErrDimensionMismatch)

		assert.ErrorIs(t, idx.Delete(9), index.ErrRowNotFound)
		require.NoError(t, idx.Delete(1))
		assert.ErrorIs(t, idx.Delete(1), index.ErrRowNotFound)
	})

	t.Run("EmptyIndex", func(t *testing.T) {
		idx := newIndex(t, 2, distance.MetricDot)
		got, err := idx.Search(ctx, []float32{1, 0}, 5, nil)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.Equal(t, 0, idx.Len())
	})

	t.Run("TombstonesNeverReturned", func(t *testing.T) {
		const n = 300
		rng := testutil.NewRNG(7)
		idx := newIndex(t, 8, distance.MetricEuclidean)
		for i, v := range rng.UniformVectors(n, 8) {
			require.NoError(t, idx.Insert(uint32(i), v))
		}

		for row := uint32(0); row < n; row += 3 {
			require.NoError(t, idx.Delete(row))
		}
		assert.Equal(t, n-100, idx.Len())
		assert.Equal(t, 100, idx.Tombstones())

		q := rng.UniformVectors(1, 8)[0]
		for _, search := range []func(context.Context, []float32, int, index.AcceptFunc) ([]index.Candidate, error){idx.Search, idx.BruteSearch} {
			got, err := search(ctx, q, n, nil)
			require.NoError(t, err)
			assert.Len(t, got, n-100)
			assertSorted(t, got)
			for _, c := range got {
				assert.NotZero(t, c.Row%3, "tombstoned row %d returned", c.Row)
			}
		}
	})

	t.Run("Accept", func(t *testing.T) {
		rng := testutil.NewRNG(11)
		idx := newIndex(t, 4, distance.MetricCosine)
		for i, v := range rng.UnitVectors(200, 4) {
			require.NoError(t, idx.Insert(uint32(i), v))
		}

		even := func(row uint32) bool { return row%2 == 0 }
		got, err := idx.BruteSearch(ctx, rng.UnitVector(4), 10, even)
		require.NoError(t, err)
		assert.Len(t, got, 10)
		for _, c := range got {
			assert.True(t, even(c.Row))
		}
	})

	t.Run("MatchesDistanceEngine", func(t *testing.T) {
		rng := testutil.NewRNG(3)
		for _, metric := range []distance.Metric{distance.MetricCosine, distance.MetricEuclidean, distance.MetricDot} {
			idx := newIndex(t, 6, metric)
			data := rng.UniformRangeVectors(50, 6)
			for i, v := range data {
				require.NoError(t, idx.Insert(uint32(i), v))
			}

			q := rng.UniformRangeVectors(1, 6)[0]
			got, err := idx.BruteSearch(ctx, q, 5, nil)
			require.NoError(t, err)

			for _, c := range got {
				want, err := distance.Distance(q, data[c.Row], metric)
				require.NoError(t, err)
				assert.InDelta(t, want, c.Distance, 1e-5, metric.String())
			}
		}
	})

	t.Run("CompactPreservesResults", func(t *testing.T) {
		rng := testutil.NewRNG(21)
		idx := newIndex(t, 8, distance.MetricEuclidean)
		for i, v := range rng.UniformVectors(400, 8) {
			require.NoError(t, idx.Insert(uint32(i), v))
		}
		for row := uint32(0); row < 400; row += 2 {
			require.NoError(t, idx.Delete(row))
		}

		q := rng.UniformVectors(1, 8)[0]
		before, err := idx.BruteSearch(ctx, q, 10, nil)
		require.NoError(t, err)

		require.NoError(t, idx.Compact(ctx))
		assert.Equal(t, 0, idx.Tombstones())
		assert.Equal(t, 200, idx.Len())

		after, err := idx.BruteSearch(ctx, q, 10, nil)
		require.NoError(t, err)
		assert.Equal(t, Rows(before), Rows(after))

		// Nothing to reclaim.
		require.NoError(t, idx.Compact(ctx))
	})

	t.Run("CancelledCompactRollsBack", func(t *testing.T) {
		rng := testutil.NewRNG(5)
		idx := newIndex(t, 8, distance.MetricEuclidean)
		for i, v := range rng.UniformVectors(300, 8) {
			require.NoError(t, idx.Insert(uint32(i), v))
		}
		for row := uint32(0); row < 300; row += 4 {
			require.NoError(t, idx.Delete(row))
		}

		q := rng.UniformVectors(1, 8)[0]
		before, err := idx.Search(ctx, q, 10, nil)
		require.NoError(t, err)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		assert.ErrorIs(t, idx.Compact(cancelled), context.Canceled)

		assert.Equal(t, 75, idx.Tombstones())
		after, err := idx.Search(ctx, q, 10, nil)
		require.NoError(t, err)
		assert.Equal(t, Rows(before), Rows(after))

		// A later compaction starts from the committed state.
		require.NoError(t, idx.Compact(ctx))
		assert.Equal(t, 0, idx.Tombstones())
		assert.Equal(t, 225, idx.Len())
	})

	t.Run("SearchHonoursContext", func(t *testing.T) {
		idx := newIndex(t, 2, distance.MetricEuclidean)
		require.NoError(t, idx.Insert(0, []float32{1, 0}))

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := idx.BruteSearch(cancelled, []float32{1, 0}, 1, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

// Rows returns the rows of candidates in order.
func Rows(candidates []index.Candidate) []uint32 {
	out := make([]uint32, len(candidates))
	for i, c := range candidates {
		out[i] = c.Row
	}
	return out
}

func assertSorted(t *testing.T, got []index.Candidate) {
	t.Helper()
	prev := float32(math.Inf(-1))
	for _, c := range got {
		assert.GreaterOrEqual(t, c.Distance, prev)
		prev = c.Distance
	}
}
