package generation

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ragbench/internal/domain"
	"ragbench/internal/infra/metrics"
)

// ChatGenerator implements domain.Generator on top of a chat model.
type ChatGenerator struct {
	chat      domain.ChatModel
	prompts   *PromptBuilder
	model     string
	maxTokens int
	logger    *slog.Logger
	tracer    trace.Tracer
}

var _ domain.Generator = (*ChatGenerator)(nil)

// NewChatGenerator creates a generator for model. maxTokens <= 0 leaves the provider default.
func NewChatGenerator(chat domain.ChatModel, model string, maxTokens int, logger *slog.Logger) *ChatGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatGenerator{
		chat:      chat,
		prompts:   NewPromptBuilder(),
		model:     model,
		maxTokens: maxTokens,
		logger:    logger,
		tracer:    otel.Tracer("ragbench/generation"),
	}
}

// Generate answers question from passages at temperature 0.
func (g *ChatGenerator) Generate(ctx context.Context, question string, passages []string) (*domain.Answer, error) {
	ctx, span := g.tracer.Start(ctx, "ragbench.generate", trace.WithAttributes(
		attribute.String("ragbench.model", g.model),
		attribute.String("ragbench.provider", g.chat.Provider()),
		attribute.Int("ragbench.passages", len(passages))))
	defer span.End()

	msgs, err := g.prompts.Generation(question, passages)
	if err != nil {
		return nil, domain.WrapKind(domain.ErrGeneration, "build prompt", err)
	}

	start := time.Now()
	resp, err := g.chat.Complete(ctx, domain.ChatRequest{
		Model:       g.model,
		Messages:    msgs,
		MaxTokens:   g.maxTokens,
		Temperature: 0,
	})
	elapsed := time.Since(start)
	if err != nil {
		err = domain.WrapKind(domain.ErrGeneration, g.chat.Provider(), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.WarnContext(ctx, "generation_failed",
			slog.String("model", g.model),
			slog.String("error", err.Error()),
			slog.Int64("duration_ms", elapsed.Milliseconds()))
		return nil, err
	}

	metrics.RecordStage(metrics.StageGenerate, elapsed)
	metrics.RecordTokens("generation", resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	g.logger.DebugContext(ctx, "generation_completed",
		slog.String("model", g.model),
		slog.Int("prompt_tokens", resp.Usage.PromptTokens),
		slog.Int("completion_tokens", resp.Usage.CompletionTokens),
		slog.Int64("duration_ms", elapsed.Milliseconds()))

	model := resp.Model
	if model == "" {
		model = g.model
	}
	return &domain.Answer{
		Text:  strings.TrimSpace(resp.Text),
		Usage: resp.Usage,
		Model: model,
	}, nil
}

// Model returns the configured generator model.
func (g *ChatGenerator) Model() string {
	return g.model
}
