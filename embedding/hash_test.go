package embedding

import (
	"context"
	"testing"

	"github.com/hupe1980/embeddb/distance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash(t *testing.T) {
	ctx := context.Background()
	embed := NewHash(64)

	t.Run("DeterministicUnitVectors", func(t *testing.T) {
		a, err := embed(ctx, []string{"Vector databases store embeddings", "!!!"})
		require.NoError(t, err)
		b, err := embed(ctx, []string{"vector databases store embeddings"})
		require.NoError(t, err)

		assert.Equal(t, a[0], b[0], "case must not matter")
		assert.InDelta(t, 1.0, distance.Norm(a[0]), 1e-5)
		assert.InDelta(t, 1.0, distance.Norm(a[1]), 1e-5)
	})

	t.Run("SharedWordsAreCloser", func(t *testing.T) {
		vecs, err := embed(ctx, []string{
			"how do vector databases work",
			"vector databases explained",
			"baking sourdough bread at home",
		})
		require.NoError(t, err)

		near, err := distance.Distance(vecs[0], vecs[1], distance.MetricCosine)
		require.NoError(t, err)
		far, err := distance.Distance(vecs[0], vecs[2], distance.MetricCosine)
		require.NoError(t, err)
		assert.Less(t, near, far)
	})

	t.Run("EmptyInput", func(t *testing.T) {
		_, err := embed(ctx, nil)
		assert.ErrorIs(t, err, ErrEmptyInput)
		_, err = embed(ctx, []string{""})
		assert.ErrorIs(t, err, ErrEmptyInput)
	})

	t.Run("Cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := embed(cctx, []string{"x"})
		assert.ErrorIs(t, err, context.Canceled)
	})

	assert.Panics(t, func() { NewHash(0) })
}

func TestEmbed(t *testing.T) {
	ctx := context.Background()

	_, err := Embed(ctx, NewHash(8), []string{"a", ""})
	assert.ErrorIs(t, err, ErrEmptyInput)

	short := func(context.Context, []string) ([][]float32, error) {
		return [][]float32{{1}}, nil
	}
	_, err = Embed(ctx, short, []string{"a", "b"})
	assert.Error(t, err)

	vecs, err := Embed(ctx, NewHash(8), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
}
