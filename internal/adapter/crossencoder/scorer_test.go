package crossencoder

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serve(t *testing.T, h http.HandlerFunc) *Scorer {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return NewScorer(server.URL, "bge-reranker-v2-m3", 5*time.Second, testLogger(), nil)
}

func TestScorer_ScoresInInputOrder(t *testing.T) {
	s := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/rerank", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req RerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test query", req.Query)
		assert.Len(t, req.Candidates, 3)
		assert.Equal(t, "bge-reranker-v2-m3", req.Model)

		// Server returns results sorted by score, not by input.
		_ = json.NewEncoder(w).Encode(RerankResponse{
			Results: []RerankResponseResult{
				{Index: 1, Score: 0.95},
				{Index: 0, Score: 0.85},
				{Index: 2, Score: 0.75},
			},
			Model: "bge-reranker-v2-m3",
		})
	})

	scores, err := s.ScorePairs(context.Background(), "test query", []string{"AI", "machine learning", "data science"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.85, 0.95, 0.75}, scores)
}

func TestScorer_EmptyTextsSkipsCall(t *testing.T) {
	s := NewScorer("http://127.0.0.1:1", "m", time.Second, testLogger(), nil)

	scores, err := s.ScorePairs(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestScorer_ServerError(t *testing.T) {
	s := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal server error"))
	})

	scores, err := s.ScorePairs(context.Background(), "q", []string{"a"})
	require.Error(t, err)
	assert.Nil(t, scores)
	assert.Contains(t, err.Error(), "500")
}

func TestScorer_Timeout(t *testing.T) {
	s := serve(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := s.ScorePairs(ctx, "q", []string{"a"})
	assert.Error(t, err)
}

func TestScorer_MalformedResults(t *testing.T) {
	tests := []struct {
		name    string
		results []RerankResponseResult
		want    string
	}{
		{name: "invalid index", results: []RerankResponseResult{{Index: 99, Score: 0.9}}, want: "invalid result index"},
		{name: "missing result", results: nil, want: "scored 0 of 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := serve(t, func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(RerankResponse{Results: tt.results})
			})
			_, err := s.ScorePairs(context.Background(), "q", []string{"a"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("duplicate index", func(t *testing.T) {
		s := serve(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(RerankResponse{Results: []RerankResponseResult{{Index: 0}, {Index: 0}}})
		})
		_, err := s.ScorePairs(context.Background(), "q", []string{"a", "b"})
		assert.ErrorContains(t, err, "duplicate result index")
	})
}

func TestScorer_ModelName(t *testing.T) {
	s := NewScorer("http://localhost:8001", "bge-reranker-v2-m3", time.Second, testLogger(), nil)
	assert.Equal(t, "bge-reranker-v2-m3", s.ModelName())
}
