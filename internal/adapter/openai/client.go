// Package openai adapts the OpenAI API (and compatible servers) to the embedding
// and chat gateways.
package openai

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"ragbench/internal/domain"
	"ragbench/internal/infra/httpclient"
)

// Config contains configuration for the OpenAI client.
type Config struct {
	APIKey  string
	BaseURL string // Optional, for OpenAI-compatible servers
	Timeout time.Duration
}

func newClient(cfg Config) (*goopenai.Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required", domain.ErrConfiguration)
	}
	config := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	config.HTTPClient = httpclient.NewPooledClient(timeout)
	return goopenai.NewClientWithConfig(config), nil
}

// ChatModel implements domain.ChatModel with the chat completions endpoint.
type ChatModel struct {
	client *goopenai.Client
}

var _ domain.ChatModel = (*ChatModel)(nil)

// NewChatModel creates a chat client.
func NewChatModel(cfg Config) (*ChatModel, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return &ChatModel{client: client}, nil
}

// usesCompletionTokens reports whether model rejects max_tokens in favour of
// max_completion_tokens.
func usesCompletionTokens(model string) bool {
	m := strings.ToLower(model)
	return strings.HasPrefix(m, "gpt-5") || strings.HasPrefix(m, "o1") || strings.HasPrefix(m, "o3") || strings.HasPrefix(m, "o4")
}

func buildRequest(req domain.ChatRequest) goopenai.ChatCompletionRequest {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	out := goopenai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: msgs,
	}
	// temperature is omitempty; the smallest float keeps an explicit zero on the wire.
	if req.Temperature == 0 {
		out.Temperature = math.SmallestNonzeroFloat32
	} else {
		out.Temperature = float32(req.Temperature)
	}
	if req.MaxTokens > 0 {
		if usesCompletionTokens(req.Model) {
			out.MaxCompletionTokens = req.MaxTokens
		} else {
			out.MaxTokens = req.MaxTokens
		}
	}
	if req.JSONMode {
		out.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return out
}

// Complete sends one non-streaming chat completion.
func (c *ChatModel) Complete(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	resp, err := c.client.CreateChatCompletion(ctx, buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}
	return &domain.ChatResponse{
		Text:  resp.Choices[0].Message.Content,
		Model: resp.Model,
		Usage: domain.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// Provider returns "openai".
func (c *ChatModel) Provider() string { return "openai" }
