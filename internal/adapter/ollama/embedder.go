// Package ollama talks to a local Ollama server for embeddings and chat completions.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"ragbench/internal/domain"
	"ragbench/internal/infra/httpclient"
)

var tracer = otel.Tracer("ragbench/adapter/ollama")

// Embedder calls Ollama's /api/embed endpoint.
type Embedder struct {
	baseURL   string
	model     string
	dimension int
	client    *http.Client
	logger    *slog.Logger
}

var _ domain.Embedder = (*Embedder)(nil)

// NewEmbedder creates an embedder. dimension is the vector size the model produces;
// every returned vector is checked against it.
func NewEmbedder(baseURL, model string, dimension int, timeout time.Duration, logger *slog.Logger) *Embedder {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{
		baseURL:   strings.TrimRight(baseURL, "/"),
		model:     model,
		dimension: dimension,
		client:    httpclient.NewPooledClient(timeout),
		logger:    logger,
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// EmbedQuery embeds one text.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one request.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, span := tracer.Start(ctx, "ollama.embed")
	defer span.End()
	span.SetAttributes(attribute.String("ollama.model", e.model), attribute.Int("ollama.input_count", len(texts)))

	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	start := time.Now()

	jsonData, err := json.Marshal(embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %w", domain.ErrEmbedding, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", domain.ErrEmbedding, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.ErrorContext(ctx, "ollama_embed_failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)))
		return nil, fmt.Errorf("%w: call ollama: %w", domain.ErrEmbedding, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: ollama returned %d: %s", domain.ErrEmbedding, resp.StatusCode, body)
	}

	var respBody embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", domain.ErrEmbedding, err)
	}
	if len(respBody.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", domain.ErrEmbedding, len(texts), len(respBody.Embeddings))
	}
	for _, v := range respBody.Embeddings {
		if e.dimension > 0 && len(v) != e.dimension {
			return nil, fmt.Errorf("%w: %w: got %d dims, want %d", domain.ErrEmbedding, domain.ErrDimensionMismatch, len(v), e.dimension)
		}
	}

	e.logger.DebugContext(ctx, "ollama_embed_completed",
		slog.Int("embedding_count", len(respBody.Embeddings)),
		slog.Duration("elapsed", time.Since(start)))
	return respBody.Embeddings, nil
}

// Dimension returns the configured vector size.
func (e *Embedder) Dimension() int { return e.dimension }

// Name returns "ollama:<model>".
func (e *Embedder) Name() string { return "ollama:" + e.model }
