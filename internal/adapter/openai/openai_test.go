package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragbench/internal/domain"
)

func testConfig(url string) Config {
	return Config{APIKey: "test-key", BaseURL: url + "/v1"}
}

func TestChatModel_Complete(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o-2024-08-06",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"faithful\":true}"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 90, "completion_tokens": 10, "total_tokens": 100}
		}`)
	}))
	defer server.Close()

	c, err := NewChatModel(testConfig(server.URL))
	require.NoError(t, err)

	resp, err := c.Complete(context.Background(), domain.ChatRequest{
		Model:     "gpt-4o",
		Messages:  []domain.Message{{Role: domain.RoleSystem, Content: "judge"}, {Role: domain.RoleUser, Content: "{}"}},
		MaxTokens: 200,
		JSONMode:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"faithful":true}`, resp.Text)
	assert.Equal(t, "gpt-4o-2024-08-06", resp.Model)
	assert.Equal(t, 100, resp.Usage.TotalTokens)

	assert.Equal(t, "gpt-4o", body["model"])
	assert.EqualValues(t, 200, body["max_tokens"])
	assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])
	assert.Contains(t, body, "temperature")
}

func TestChatModel_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = fmt.Fprint(w, `{"error":{"message":"model not found","type":"invalid_request_error"}}`)
	}))
	defer server.Close()

	c, err := NewChatModel(testConfig(server.URL))
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), domain.ChatRequest{Model: "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
}

func TestBuildRequest_CompletionTokensForReasoningModels(t *testing.T) {
	req := buildRequest(domain.ChatRequest{Model: "gpt-5.1", MaxTokens: 300})
	assert.Equal(t, 300, req.MaxCompletionTokens)
	assert.Zero(t, req.MaxTokens)

	req = buildRequest(domain.ChatRequest{Model: "gpt-4.1-mini", MaxTokens: 300, Temperature: 0.5})
	assert.Equal(t, 300, req.MaxTokens)
	assert.InDelta(t, 0.5, req.Temperature, 1e-6)
	assert.Nil(t, req.ResponseFormat)
}

func TestNewChatModel_RequiresKey(t *testing.T) {
	_, err := NewChatModel(Config{})
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func embeddingsServer(t *testing.T, dims int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// Answer in reverse order to exercise index placement.
		var data []string
		for i := len(req.Input) - 1; i >= 0; i-- {
			vec := make([]string, dims)
			for j := range vec {
				vec[j] = fmt.Sprintf("%d", i)
			}
			data = append(data, fmt.Sprintf(`{"object":"embedding","index":%d,"embedding":[%s]}`, i, strings.Join(vec, ",")))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"object":"list","model":"text-embedding-3-small","data":[%s],"usage":{"prompt_tokens":2,"total_tokens":2}}`, strings.Join(data, ","))
	}))
}

func TestEmbedder_EmbedBatch(t *testing.T) {
	server := embeddingsServer(t, 4)
	defer server.Close()

	e, err := NewEmbedder(testConfig(server.URL), "text-embedding-3-small", 4)
	require.NoError(t, err)

	vecs, err := e.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, float32(0), vecs[0][0])
	assert.Equal(t, float32(1), vecs[1][0])
	assert.Equal(t, "openai:text-embedding-3-small", e.Name())
	assert.Equal(t, 4, e.Dimension())
}

func TestEmbedder_DimensionMismatch(t *testing.T) {
	server := embeddingsServer(t, 3)
	defer server.Close()

	e, err := NewEmbedder(testConfig(server.URL), "text-embedding-3-small", 4)
	require.NoError(t, err)

	_, err = e.EmbedQuery(context.Background(), "q")
	assert.True(t, errors.Is(err, domain.ErrDimensionMismatch))
	assert.True(t, errors.Is(err, domain.ErrEmbedding))
}

func TestNewEmbedder_Dimension(t *testing.T) {
	e, err := NewEmbedder(Config{APIKey: "k"}, "text-embedding-3-large", 0)
	require.NoError(t, err)
	assert.Equal(t, 3072, e.Dimension())

	_, err = NewEmbedder(Config{APIKey: "k"}, "custom-model", 0)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}
