package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"ragbench/internal/domain"
	"ragbench/internal/infra/httpclient"
)

const keepAlive = "10m"

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string         `json:"model"`
	Messages  []chatMessage  `json:"messages"`
	Stream    bool           `json:"stream"`
	KeepAlive string         `json:"keep_alive,omitempty"`
	Format    string         `json:"format,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done            bool `json:"done"`
	PromptEvalCount int  `json:"prompt_eval_count"`
	EvalCount       int  `json:"eval_count"`
}

// ChatModel sends non-streaming requests to Ollama's /api/chat endpoint.
type ChatModel struct {
	baseURL string
	client  *http.Client
}

var _ domain.ChatModel = (*ChatModel)(nil)

// NewChatModel creates a chat client. The model is chosen per request.
func NewChatModel(baseURL string, timeout time.Duration) *ChatModel {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &ChatModel{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpclient.NewPooledClient(timeout),
	}
}

func buildOptions(req domain.ChatRequest) map[string]any {
	opts := map[string]any{"temperature": req.Temperature}
	if req.MaxTokens > 0 {
		opts["num_predict"] = req.MaxTokens
	}
	return opts
}

// Complete sends the messages and returns the assistant reply with token counts.
func (c *ChatModel) Complete(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	ctx, span := tracer.Start(ctx, "ollama.chat")
	defer span.End()
	span.SetAttributes(attribute.String("ollama.model", req.Model))

	body := chatRequest{
		Model:     req.Model,
		Stream:    false,
		KeepAlive: keepAlive,
		Options:   buildOptions(req),
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	if req.JSONMode {
		body.Format = "json"
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call ollama chat: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ollama chat returned %d: %s", resp.StatusCode, b)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}

	model := out.Model
	if model == "" {
		model = req.Model
	}
	return &domain.ChatResponse{
		Text:  strings.TrimSpace(out.Message.Content),
		Model: model,
		Usage: domain.TokenUsage{
			PromptTokens:     out.PromptEvalCount,
			CompletionTokens: out.EvalCount,
			TotalTokens:      out.PromptEvalCount + out.EvalCount,
		},
	}, nil
}

// Provider returns "ollama".
func (c *ChatModel) Provider() string { return "ollama" }
