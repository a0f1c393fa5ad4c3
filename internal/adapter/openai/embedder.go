package openai

import (
	"context"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"

	"ragbench/internal/domain"
)

// Embedder implements domain.Embedder using OpenAI embedding models.
type Embedder struct {
	client    *goopenai.Client
	model     string
	dimension int
}

var _ domain.Embedder = (*Embedder)(nil)

// ModelDimension returns the native dimension of known embedding models, or 0.
func ModelDimension(model string) int {
	switch model {
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	case "text-embedding-3-large":
		return 3072
	default:
		return 0
	}
}

// NewEmbedder creates an embedder. A zero dimension falls back to the model's
// native size.
func NewEmbedder(cfg Config, model string, dimension int) (*Embedder, error) {
	if model == "" {
		model = "text-embedding-3-small"
	}
	if dimension <= 0 {
		dimension = ModelDimension(model)
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: embedding dimension unknown for model %q", domain.ErrConfiguration, model)
	}
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Embedder{client: client, model: model, dimension: dimension}, nil
}

// EmbedQuery embeds a single text.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one request. Results are placed by their response index.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	req := goopenai.EmbeddingRequest{
		Input: texts,
		Model: goopenai.EmbeddingModel(e.model),
	}
	// text-embedding-3 models can be shortened server side.
	if native := ModelDimension(e.model); native > 0 && e.dimension != native {
		req.Dimensions = e.dimension
	}
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: create embeddings: %w", domain.ErrEmbedding, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", domain.ErrEmbedding, len(texts), len(resp.Data))
	}

	results := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", domain.ErrEmbedding, data.Index)
		}
		if len(data.Embedding) != e.dimension {
			return nil, fmt.Errorf("%w: %w: got %d dims, want %d", domain.ErrEmbedding, domain.ErrDimensionMismatch, len(data.Embedding), e.dimension)
		}
		results[data.Index] = data.Embedding
	}
	return results, nil
}

// Dimension returns the vector size.
func (e *Embedder) Dimension() int { return e.dimension }

// Name returns "openai:<model>".
func (e *Embedder) Name() string { return "openai:" + e.model }
