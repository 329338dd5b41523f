// Package openai adapts the OpenAI embeddings API to embedding.Func.
//
// It works with any OpenAI-compatible provider by setting BaseURL.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/hupe1980/embeddb/embedding"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI embedding models.
const (
	// ModelTextEmbedding3Small is the small embedding model (1536 dims, customizable).
	ModelTextEmbedding3Small = "text-embedding-3-small"

	// ModelTextEmbedding3Large is the large embedding model (3072 dims, customizable).
	ModelTextEmbedding3Large = "text-embedding-3-large"
)

const maxBatch = 2048 // OpenAI supports up to 2048 inputs per request

// Options configures the embedder.
type Options struct {
	// APIKey defaults to the OPENAI_API_KEY environment variable.
	APIKey string

	// BaseURL overrides the API endpoint.
	BaseURL string

	// Model is the embedding model. Default: text-embedding-3-small.
	Model string

	// Dimensions requests shortened embeddings. Zero uses the model default.
	Dimensions int

	// HTTPClient is used for requests. Default: http.DefaultClient.
	HTTPClient *http.Client
}

// Embedder calls the OpenAI embeddings endpoint.
type Embedder struct {
	client openai.Client
	opts   Options
}

// New creates an OpenAI embedder.
func New(optFns ...func(o *Options)) *Embedder {
	opts := Options{
		APIKey:     os.Getenv("OPENAI_API_KEY"),
		Model:      ModelTextEmbedding3Small,
		HTTPClient: http.DefaultClient,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithHTTPClient(opts.HTTPClient),
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	return &Embedder{
		client: openai.NewClient(clientOpts...),
		opts:   opts,
	}
}

// Func returns e as an embedding.Func.
func (e *Embedder) Func() embedding.Func {
	return e.Embed
}

// Model returns the model identifier.
func (e *Embedder) Model() string {
	return e.opts.Model
}

// Embed returns one embedding per text.
// Batches larger than 2048 are split into multiple API calls.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, embedding.ErrEmptyInput
	}

	result := make([][]float32, len(texts))
	for i := 0; i < len(texts); i += maxBatch {
		end := min(i+maxBatch, len(texts))

		vecs, err := e.call(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("openai: embed batch [%d:%d]: %w", i, end, err)
		}
		copy(result[i:], vecs)
	}
	return result, nil
}

func (e *Embedder) call(ctx context.Context, texts []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Model:          e.opts.Model,
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	if e.opts.Dimensions > 0 {
		params.Dimensions = openai.Int(int64(e.opts.Dimensions))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, err
	}

	vecs := make([][]float32, len(texts))
	for _, item := range resp.Data {
		idx := item.Index
		if idx < 0 || idx >= int64(len(texts)) {
			return nil, fmt.Errorf("unexpected embedding index %d for batch size %d", idx, len(texts))
		}
		vec := make([]float32, len(item.Embedding))
		for j, v := range item.Embedding {
			vec[j] = float32(v)
		}
		vecs[idx] = vec
	}

	for i, v := range vecs {
		if v == nil {
			return nil, fmt.Errorf("missing embedding for index %d", i)
		}
	}
	return vecs, nil
}
