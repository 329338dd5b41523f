// Package embedding defines the embedding function capability injected into
// collections, plus a deterministic offline embedder.
package embedding

import (
	"context"
	"errors"
	"fmt"
)

// Func converts texts into vectors, one per text, in order.
type Func func(ctx context.Context, texts []string) ([][]float32, error)

// ErrEmptyInput is returned when there is nothing to embed.
var ErrEmptyInput = errors.New("embedding: empty input")

// Embed calls f and checks that it returned one vector per text.
func Embed(ctx context.Context, f Func, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	for i, text := range texts {
		if text == "" {
			return nil, fmt.Errorf("%w: text %d", ErrEmptyInput, i)
		}
	}

	vecs, err := f(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedding: got %d vectors for %d texts", len(vecs), len(texts))
	}
	return vecs, nil
}
