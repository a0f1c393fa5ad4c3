package usecase

import (
	"context"
	"log/slog"
	"time"

	"ragbench/internal/domain"
	"ragbench/internal/infra/logger"
	"ragbench/internal/infra/metrics"
	"ragbench/internal/usecase/decision"
	"ragbench/internal/usecase/summary"
)

// Retriever is the retrieval stage consumed by the evaluator.
type Retriever interface {
	Retrieve(ctx context.Context, question string, params domain.RetrievalParams) (*domain.RetrievalResult, error)
}

// Evaluator runs the per-item pipeline: retrieve, gate, generate, detect refusal,
// judge and classify. It is safe for concurrent use as long as its gateways are.
type Evaluator struct {
	retriever Retriever
	generator domain.Generator
	judge     domain.Judge
	pricing   *summary.Pricing
	params    domain.RetrievalParams
	logger    *slog.Logger
}

// NewEvaluator wires an evaluator. pricing may be nil, in which case costs are 0.
func NewEvaluator(
	retriever Retriever,
	generator domain.Generator,
	judge domain.Judge,
	pricing *summary.Pricing,
	params domain.RetrievalParams,
	log *slog.Logger,
) *Evaluator {
	if pricing == nil {
		pricing = summary.NewPricing(nil)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Evaluator{
		retriever: retriever,
		generator: generator,
		judge:     judge,
		pricing:   pricing,
		params:    params,
		logger:    log,
	}
}

// WithGenerator returns a copy of e that generates with g.
func (e *Evaluator) WithGenerator(g domain.Generator) *Evaluator {
	cp := *e
	cp.generator = g
	return &cp
}

// Params returns the retrieval parameters used for every item.
func (e *Evaluator) Params() domain.RetrievalParams {
	return e.params
}

// Evaluate runs one item through the pipeline. Gateway failures are recorded on the
// result with their error kind and no outcome; they never abort other items.
func (e *Evaluator) Evaluate(ctx context.Context, item domain.BenchItem, th domain.Thresholds) domain.ItemResult {
	ctx = logger.WithItemID(ctx, item.ID)
	res := domain.ItemResult{
		ItemID:       item.ID,
		Question:     item.Question,
		GoldAnswer:   item.GoldAnswer,
		IsAnswerable: item.IsAnswerable(),
		Decision:     domain.GateDecision{Thresholds: th},
	}

	retrieval, err := e.retriever.Retrieve(logger.WithStage(ctx, "retrieve"), item.Question, e.params)
	if err != nil {
		return e.fail(ctx, res, err)
	}
	res.Retrieval = retrieval
	res.Decision = decision.Decide(*retrieval, th)

	if !res.Decision.ShouldAnswer {
		// Abstained: nothing is generated or judged.
		res.Answer = decision.RefusalAnswer
		res.Refused = true
		return e.classify(ctx, res)
	}

	passages := retrieval.ContextPassages()
	start := time.Now()
	answer, err := e.generator.Generate(logger.WithStage(ctx, "generate"), item.Question, passages)
	res.GenerationTime = time.Since(start)
	if err != nil {
		return e.fail(ctx, res, err)
	}
	res.Answer = answer.Text
	res.GenerationUsage = answer.Usage
	res.GenerationModel = answer.Model
	res.Refused = decision.IsRefusal(answer.Text)

	if !res.Refused {
		start = time.Now()
		verdict, usage, err := e.judge.Judge(logger.WithStage(ctx, "judge"), item.Question, answer.Text, passages)
		res.JudgeTime = time.Since(start)
		res.JudgeUsage = usage
		if err != nil {
			res.EstimatedCostUSD, res.CostUnknown = e.cost(res)
			return e.fail(ctx, res, err)
		}
		res.Verdict = verdict
	}

	res.EstimatedCostUSD, res.CostUnknown = e.cost(res)
	return e.classify(ctx, res)
}

func (e *Evaluator) classify(ctx context.Context, res domain.ItemResult) domain.ItemResult {
	res.Outcome = decision.ClassifyVerdict(res.IsAnswerable, res.Refused, res.Verdict)
	metrics.RecordOutcome(string(res.Outcome))

	attrs := []any{
		slog.String("outcome", string(res.Outcome)),
		slog.Bool("should_answer", res.Decision.ShouldAnswer),
		slog.Bool("refused", res.Refused),
	}
	if res.Retrieval != nil {
		attrs = append(attrs, slog.Float64("top_dense_score", res.Retrieval.TopDenseScore))
	}
	e.logger.DebugContext(ctx, "item_classified", attrs...)
	return res
}

func (e *Evaluator) fail(ctx context.Context, res domain.ItemResult, err error) domain.ItemResult {
	res.ErrorKind = domain.KindOf(err)
	res.ErrorMessage = err.Error()
	res.Outcome = ""
	metrics.RecordItemError(string(res.ErrorKind))
	e.logger.WarnContext(ctx, "item_failed",
		slog.String("error_kind", string(res.ErrorKind)),
		slog.String("error", err.Error()))
	return res
}

// cost sums generation and judge cost. unknown is set when a model that was
// called has no price.
func (e *Evaluator) cost(res domain.ItemResult) (total float64, unknown bool) {
	if res.GenerationModel != "" {
		c, known := e.pricing.EstimateCost(res.GenerationModel, res.GenerationUsage.PromptTokens, res.GenerationUsage.CompletionTokens)
		total += c
		unknown = unknown || !known
	}
	if res.JudgeUsage.TotalTokens > 0 && e.judge != nil {
		c, known := e.pricing.EstimateCost(e.judge.Model(), res.JudgeUsage.PromptTokens, res.JudgeUsage.CompletionTokens)
		total += c
		unknown = unknown || !known
	}
	return total, unknown
}
