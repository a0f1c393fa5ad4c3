// Package metrics provides Prometheus metrics for ragbench.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage names used as the stage label.
const (
	StageEmbedQuery = "embed_query"
	StageSearch     = "search"
	StageRerank     = "rerank"
	StageGenerate   = "generate"
	StageJudge      = "judge"
	StageIndexBatch = "index_batch"
)

var (
	// ItemsTotal counts classified items by outcome label.
	ItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragbench",
			Name:      "items_total",
			Help:      "Total number of classified benchmark items",
		},
		[]string{"outcome"},
	)

	// ItemErrorsTotal counts failed items by error kind.
	ItemErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragbench",
			Name:      "item_errors_total",
			Help:      "Total number of items that failed with an error",
		},
		[]string{"kind"},
	)

	// StageDuration measures pipeline stage duration.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragbench",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)

	// TokensTotal counts LLM tokens by role (generation, judge) and type (prompt, completion).
	TokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragbench",
			Name:      "tokens_total",
			Help:      "Total number of LLM tokens consumed",
		},
		[]string{"role", "type"},
	)

	// IndexedPointsTotal counts points written by the index command.
	IndexedPointsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ragbench",
			Name:      "indexed_points_total",
			Help:      "Total number of points upserted into the vector index",
		},
	)
)

// RecordStage records one stage duration.
func RecordStage(stage string, d time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordOutcome records a classified item.
func RecordOutcome(outcome string) {
	ItemsTotal.WithLabelValues(outcome).Inc()
}

// RecordItemError records a failed item.
func RecordItemError(kind string) {
	ItemErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordTokens records prompt and completion tokens for a role.
func RecordTokens(role string, prompt, completion int) {
	TokensTotal.WithLabelValues(role, "prompt").Add(float64(prompt))
	TokensTotal.WithLabelValues(role, "completion").Add(float64(completion))
}

// RecordIndexed records upserted points.
func RecordIndexed(n int) {
	IndexedPointsTotal.Add(float64(n))
}
