package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/hupe1980/embeddb/distance"
)

// NewHash returns a feature-hashing embedder producing dim-dimensional,
// unit-length vectors. Lower-cased word unigrams and bigrams are hashed
// into buckets with a hash-derived sign. The same text always yields the
// same vector, and texts sharing words are close under cosine distance.
func NewHash(dim int) Func {
	if dim <= 0 {
		panic("embedding: NewHash dimension must be positive")
	}

	return func(ctx context.Context, texts []string) ([][]float32, error) {
		if len(texts) == 0 {
			return nil, ErrEmptyInput
		}

		out := make([][]float32, len(texts))
		for i, text := range texts {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if text == "" {
				return nil, ErrEmptyInput
			}
			out[i] = hashText(text, dim)
		}
		return out, nil
	}
}

func hashText(text string, dim int) []float32 {
	vec := make([]float32, dim)

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if len(words) == 0 {
		// Punctuation only; hash the raw text so the vector is non-zero.
		words = []string{text}
	}

	for i, w := range words {
		addFeature(vec, w, 1)
		if i > 0 {
			addFeature(vec, words[i-1]+" "+w, 0.5)
		}
	}

	if !distance.NormalizeL2InPlace(vec) {
		// All features cancelled out.
		vec[0] = 1
	}
	return vec
}

func addFeature(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	bucket := int(sum % uint64(len(vec)))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[bucket] += weight
}
