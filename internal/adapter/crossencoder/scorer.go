// Package crossencoder scores (query, passage) pairs against an HTTP cross-encoder service.
package crossencoder

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

	"ragbench/internal/domain"
	"ragbench/internal/infra/httpclient"
)

// RerankRequest is the request payload for the rerank endpoint.
type RerankRequest struct {
	Query      string   `json:"query"`
	Candidates []string `json:"candidates"`
	Model      string   `json:"model,omitempty"`
}

// RerankResponseResult is a single result in the rerank response.
type RerankResponseResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// RerankResponse is the response from the rerank endpoint. Results may come back in
// any order; they are mapped to inputs by Index.
type RerankResponse struct {
	Results          []RerankResponseResult `json:"results"`
	Model            string                 `json:"model"`
	ProcessingTimeMs *float64               `json:"processing_time_ms,omitempty"`
}

// Scorer implements domain.PairScorer over POST {baseURL}/v1/rerank.
type Scorer struct {
	baseURL string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

var _ domain.PairScorer = (*Scorer)(nil)

// NewScorer constructs a scorer. model is the cross-encoder name, e.g.
// "BAAI/bge-reranker-v2-m3". If client is nil a pooled client with timeout is used.
func NewScorer(baseURL, model string, timeout time.Duration, logger *slog.Logger, client *http.Client) *Scorer {
	if client == nil {
		client = httpclient.NewPooledClient(timeout)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  client,
		logger:  logger,
	}
}

// ScorePairs returns one score per text in input order.
func (s *Scorer) ScorePairs(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return []float64{}, nil
	}
	startTime := time.Now()

	payload, err := json.Marshal(RerankRequest{Query: query, Candidates: texts, Model: s.model})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/rerank", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call rerank endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return nil, fmt.Errorf("rerank endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var rerankResp RerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&rerankResp); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	if len(rerankResp.Results) != len(texts) {
		return nil, fmt.Errorf("rerank endpoint scored %d of %d candidates", len(rerankResp.Results), len(texts))
	}

	scores := make([]float64, len(texts))
	seen := make([]bool, len(texts))
	for _, r := range rerankResp.Results {
		if r.Index < 0 || r.Index >= len(texts) {
			return nil, fmt.Errorf("invalid result index %d for %d candidates", r.Index, len(texts))
		}
		if seen[r.Index] {
			return nil, fmt.Errorf("duplicate result index %d", r.Index)
		}
		seen[r.Index] = true
		scores[r.Index] = r.Score
	}

	s.logger.DebugContext(ctx, "pair_scoring_completed",
		slog.Int("candidate_count", len(texts)),
		slog.String("model", rerankResp.Model),
		slog.Int64("elapsed_ms", time.Since(startTime).Milliseconds()))
	return scores, nil
}

// ModelName returns the model identifier.
func (s *Scorer) ModelName() string {
	return s.model
}
