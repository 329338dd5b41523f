package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWhere(t *testing.T) {
	doc := fixtureDoc()

	t.Run("Empty", func(t *testing.T) {
		f, err := ParseWhere(nil)
		require.NoError(t, err)
		assert.Nil(t, f)
	})

	t.Run("ImplicitEq", func(t *testing.T) {
		f, err := ParseWhere(map[string]any{"category": "beginner"})
		require.NoError(t, err)
		assert.Equal(t, OpEqual, f.Operator)
		assert.True(t, f.Matches(doc))
	})

	t.Run("Operators", func(t *testing.T) {
		f, err := ParseWhere(map[string]any{"year": map[string]any{"$gte": 2020, "$lt": 2030}})
		require.NoError(t, err)
		assert.Equal(t, OpAnd, f.Operator)
		assert.Len(t, f.Filters, 2)
		assert.True(t, f.Matches(doc))
	})

	t.Run("Logical", func(t *testing.T) {
		f, err := ParseWhere(map[string]any{
			"$or": []any{
				map[string]any{"category": map[string]any{"$in": []any{"advanced", "expert"}}},
				map[string]any{"$and": []any{
					map[string]any{"draft": false},
					map[string]any{"title": map[string]any{"$contains": "embeddings"}},
				}},
			},
		})
		require.NoError(t, err)
		assert.True(t, f.Matches(doc))

		equivalent := Or(
			In("category", "advanced", "expert"),
			And(Eq("draft", false), Contains("title", "embeddings")),
		)
		assert.Equal(t, equivalent.String(), f.String())
	})

	t.Run("MultipleKeysAreAnded", func(t *testing.T) {
		f, err := ParseWhere(map[string]any{"category": "beginner", "year": 1999})
		require.NoError(t, err)
		assert.Equal(t, OpAnd, f.Operator)
		assert.False(t, f.Matches(doc))
	})

	t.Run("Errors", func(t *testing.T) {
		bad := []map[string]any{
			{"$not": []any{}},
			{"$and": "x"},
			{"$and": []any{"x"}},
			{"$and": []any{}},
			{"year": map[string]any{"$between": 1}},
			{"year": map[string]any{"gte": 1}},
			{"year": map[string]any{}},
			{"tag": map[string]any{"$in": "a"}},
			{"tag": nil},
			{"flag": map[string]any{"$gt": true}},
		}
		for _, where := range bad {
			_, err := ParseWhere(where)
			assert.ErrorIs(t, err, ErrInvalidFilter, "%v", where)
		}
	})
}

func TestParseWhereJSON(t *testing.T) {
	f, err := ParseWhereJSON([]byte(`{"year": {"$in": [2023, 2024]}, "score": {"$gt": 4.25}}`))
	require.NoError(t, err)
	assert.True(t, f.Matches(fixtureDoc()))

	in := f.Filters[1]
	require.Equal(t, OpIn, in.Operator)
	assert.Equal(t, KindInt, in.Values[0].Kind)

	f, err = ParseWhereJSON([]byte("  "))
	require.NoError(t, err)
	assert.Nil(t, f)

	_, err = ParseWhereJSON([]byte(`{"year":`))
	assert.ErrorIs(t, err, ErrInvalidFilter)
}
