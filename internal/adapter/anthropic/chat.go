// Package anthropic adapts the Anthropic Messages API to the chat gateway.
package anthropic

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"ragbench/internal/domain"
	"ragbench/internal/infra/httpclient"
)

const defaultMaxTokens = 1024

// jsonInstruction is appended to the system prompt in JSON mode; the Messages API
// has no response_format switch.
const jsonInstruction = "Respond with a single JSON object and nothing else."

// Config contains configuration for the Anthropic client.
type Config struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// ChatModel implements domain.ChatModel with non-streaming Messages calls.
type ChatModel struct {
	client sdk.Client
}

var _ domain.ChatModel = (*ChatModel)(nil)

// NewChatModel creates a chat client.
func NewChatModel(cfg Config) (*ChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: Anthropic API key is required", domain.ErrConfiguration)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpclient.NewPooledClient(timeout)),
		option.WithMaxRetries(max(cfg.MaxRetries, 0)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &ChatModel{client: sdk.NewClient(opts...)}, nil
}

func buildParams(req domain.ChatRequest) sdk.MessageNewParams {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	params := sdk.MessageNewParams{
		Model:       sdk.Model(req.Model),
		MaxTokens:   int64(maxTokens),
		Temperature: sdk.Float(req.Temperature),
	}

	var system []string
	for _, m := range req.Messages {
		switch m.Role {
		case domain.RoleSystem:
			system = append(system, m.Content)
		case domain.RoleAssistant:
			params.Messages = append(params.Messages, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		}
	}
	if req.JSONMode {
		system = append(system, jsonInstruction)
	}
	if len(system) > 0 {
		params.System = []sdk.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}
	return params
}

// Complete sends the messages and concatenates the text blocks of the reply.
func (c *ChatModel) Complete(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	msg, err := c.client.Messages.New(ctx, buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("anthropic: create message: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	in, out := int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens)
	return &domain.ChatResponse{
		Text:  b.String(),
		Model: string(msg.Model),
		Usage: domain.TokenUsage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out},
	}, nil
}

// Provider returns "anthropic".
func (c *ChatModel) Provider() string { return "anthropic" }
