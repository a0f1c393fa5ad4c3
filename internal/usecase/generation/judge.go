package generation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ragbench/internal/domain"
	"ragbench/internal/infra/metrics"
)

// LLMJudge implements domain.Judge with a JSON-mode chat call.
type LLMJudge struct {
	chat      domain.ChatModel
	prompts   *PromptBuilder
	model     string
	maxTokens int
	logger    *slog.Logger
	tracer    trace.Tracer
}

var _ domain.Judge = (*LLMJudge)(nil)

// NewLLMJudge creates a judge backed by model.
func NewLLMJudge(chat domain.ChatModel, model string, maxTokens int, logger *slog.Logger) *LLMJudge {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMJudge{
		chat:      chat,
		prompts:   NewPromptBuilder(),
		model:     model,
		maxTokens: maxTokens,
		logger:    logger,
		tracer:    otel.Tracer("ragbench/generation"),
	}
}

// Judge returns the faithfulness verdict. Usage is reported even when the verdict
// fails to parse, since the tokens were spent.
func (j *LLMJudge) Judge(ctx context.Context, question, answer string, passages []string) (*domain.Verdict, domain.TokenUsage, error) {
	ctx, span := j.tracer.Start(ctx, "ragbench.judge", trace.WithAttributes(
		attribute.String("ragbench.model", j.model),
		attribute.String("ragbench.provider", j.chat.Provider())))
	defer span.End()

	msgs, err := j.prompts.Judge(question, answer, passages)
	if err != nil {
		return nil, domain.TokenUsage{}, domain.WrapKind(domain.ErrJudge, "build prompt", err)
	}

	start := time.Now()
	resp, err := j.chat.Complete(ctx, domain.ChatRequest{
		Model:       j.model,
		Messages:    msgs,
		MaxTokens:   j.maxTokens,
		Temperature: 0,
		JSONMode:    true,
	})
	elapsed := time.Since(start)
	if err != nil {
		err = domain.WrapKind(domain.ErrJudge, j.chat.Provider(), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		j.logger.WarnContext(ctx, "judge_failed",
			slog.String("model", j.model),
			slog.String("error", err.Error()))
		return nil, domain.TokenUsage{}, err
	}
	metrics.RecordStage(metrics.StageJudge, elapsed)
	metrics.RecordTokens("judge", resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	verdict, err := ParseVerdict(resp.Text)
	if err != nil {
		err = domain.WrapKind(domain.ErrJudge, "parse verdict", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "verdict unparsable")
		j.logger.WarnContext(ctx, "judge_verdict_unparsable",
			slog.String("model", j.model),
			slog.String("raw", truncate(resp.Text, 200)))
		return nil, resp.Usage, err
	}

	span.SetAttributes(attribute.Bool("ragbench.faithful", verdict.Faithful))
	return verdict, resp.Usage, nil
}

// Model returns the configured judge model.
func (j *LLMJudge) Model() string {
	return j.model
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
