package distance

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDot(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Simple", []float32{1, 2, 3}, []float32{4, 5, 6}, 32},
		{"Zero", []float32{0, 0, 0}, []float32{0, 0, 0}, 0},
		{"Mixed", []float32{1, -1, 2}, []float32{1, 1, -2}, -4},
		{"Empty", []float32{}, []float32{}, 0},
		{"Single", []float32{2}, []float32{3}, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Dot(tt.a, tt.b), 1e-5)
		})
	}
}

func TestSquaredL2(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Simple", []float32{1, 2, 3}, []float32{4, 5, 6}, 27},
		{"Identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"Mixed", []float32{1, -1}, []float32{-1, 1}, 8},
		{"Empty", []float32{}, []float32{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, SquaredL2(tt.a, tt.b), 1e-5)
		})
	}
}

func TestDistance(t *testing.T) {
	t.Run("Euclidean", func(t *testing.T) {
		d, err := Distance([]float32{1, 0}, []float32{0, 1}, MetricEuclidean)
		require.NoError(t, err)
		assert.InDelta(t, math.Sqrt2, d, 1e-6)

		d, err = Distance([]float32{1, 2, 3}, []float32{1, 2, 3}, MetricEuclidean)
		require.NoError(t, err)
		assert.Equal(t, float32(0), d)
	})

	t.Run("Cosine", func(t *testing.T) {
		d, err := Distance([]float32{1, 0}, []float32{2, 0}, MetricCosine)
		require.NoError(t, err)
		assert.InDelta(t, 0, d, 1e-6)

		d, err = Distance([]float32{1, 0}, []float32{0, 1}, MetricCosine)
		require.NoError(t, err)
		assert.InDelta(t, 1, d, 1e-6)

		d, err = Distance([]float32{1, 0}, []float32{-1, 0}, MetricCosine)
		require.NoError(t, err)
		assert.InDelta(t, 2, d, 1e-6)
	})

	t.Run("CosineZeroVector", func(t *testing.T) {
		_, err := Distance([]float32{0, 0}, []float32{1, 0}, MetricCosine)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrZeroVector))

		var zv *ZeroVectorError
		require.ErrorAs(t, err, &zv)
		assert.Equal(t, "a", zv.Operand)

		_, err = Distance([]float32{1, 0}, []float32{0, 0}, MetricCosine)
		require.ErrorAs(t, err, &zv)
		assert.Equal(t, "b", zv.Operand)
	})

	t.Run("Dot", func(t *testing.T) {
		d, err := Distance([]float32{1, 2}, []float32{3, 4}, MetricDot)
		require.NoError(t, err)
		assert.Equal(t, float32(-11), d)
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		_, err := Distance([]float32{1, 2}, []float32{1}, MetricEuclidean)
		var dm *DimensionMismatchError
		require.ErrorAs(t, err, &dm)
		assert.Equal(t, 2, dm.Expected)
		assert.Equal(t, 1, dm.Actual)
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("UnknownMetric", func(t *testing.T) {
		_, err := Distance([]float32{1}, []float32{1}, Metric(42))
		assert.Error(t, err)
	})
}

func TestProviderMatchesDistance(t *testing.T) {
	a := []float32{0.3, -1.2, 4.5, 0.01}
	b := []float32{1.1, 0.2, -0.5, 2.0}

	for _, m := range []Metric{MetricCosine, MetricEuclidean, MetricDot} {
		t.Run(m.String(), func(t *testing.T) {
			fn, err := Provider(m)
			require.NoError(t, err)

			want, err := Distance(a, b, m)
			require.NoError(t, err)
			assert.InDelta(t, want, fn(a, b), 1e-6)
		})
	}

	fn, err := Provider(MetricCosine)
	require.NoError(t, err)
	assert.Equal(t, float32(1), fn([]float32{0, 0}, []float32{1, 1}))
}

func TestNormalizeL2(t *testing.T) {
	t.Run("InPlace", func(t *testing.T) {
		v := []float32{3, 4}
		assert.True(t, NormalizeL2InPlace(v))
		assert.InDelta(t, float32(0.6), v[0], 1e-5)
		assert.InDelta(t, float32(0.8), v[1], 1e-5)

		assert.False(t, NormalizeL2InPlace([]float32{0, 0}))
		assert.False(t, NormalizeL2InPlace([]float32{}))
	})

	t.Run("Copy", func(t *testing.T) {
		v := []float32{1, 0}
		dst, ok := NormalizeL2Copy(v)
		assert.True(t, ok)
		assert.Equal(t, float32(1), dst[0])
		assert.NotSame(t, &v[0], &dst[0])

		dst, ok = NormalizeL2Copy([]float32{0, 0})
		assert.False(t, ok)
		assert.Nil(t, dst)
	})
}

func TestMetric(t *testing.T) {
	t.Run("String", func(t *testing.T) {
		assert.Equal(t, "cosine", MetricCosine.String())
		assert.Equal(t, "euclidean", MetricEuclidean.String())
		assert.Equal(t, "dot", MetricDot.String())
		assert.Equal(t, "unknown(9)", Metric(9).String())
	})

	t.Run("Parse", func(t *testing.T) {
		for in, want := range map[string]Metric{
			"cosine": MetricCosine,
			"L2":     MetricEuclidean,
			" dot ":  MetricDot,
			"ip":     MetricDot,
		} {
			got, err := ParseMetric(in)
			require.NoError(t, err, in)
			assert.Equal(t, want, got, in)
		}

		_, err := ParseMetric("manhattan")
		assert.Error(t, err)
	})

	t.Run("Text", func(t *testing.T) {
		b, err := MetricDot.MarshalText()
		require.NoError(t, err)

		var m Metric
		require.NoError(t, m.UnmarshalText(b))
		assert.Equal(t, MetricDot, m)

		_, err = Metric(7).MarshalText()
		assert.Error(t, err)
	})
}
