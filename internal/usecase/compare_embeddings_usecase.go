package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ragbench/internal/domain"
	"ragbench/internal/worker"
)

// DefaultRecallKs are the cutoffs reported by the embedding comparison.
var DefaultRecallKs = []int{1, 3, 5, 10}

// EmbeddingTarget is one embedding model paired with the collection it was indexed into.
type EmbeddingTarget struct {
	Label      string
	Collection string
	Retriever  Retriever
}

// RecallRow reports recall@k for one target over answerable items with must_contain.
type RecallRow struct {
	Label       string          `json:"embedding"`
	Collection  string          `json:"collection"`
	Items       int             `json:"items"`
	Failed      int             `json:"failed"`
	DenseRecall map[int]float64 `json:"dense_recall"`
	FinalRecall map[int]float64 `json:"final_recall"`
	// Means are in milliseconds.
	MeanRetrievalMs float64 `json:"avg_retrieval_ms"`
	MeanRerankMs    float64 `json:"avg_rerank_ms"`
}

// CompareEmbeddingsUsecase measures retrieval recall per embedding target.
type CompareEmbeddingsUsecase struct {
	targets []EmbeddingTarget
	params  domain.RetrievalParams
	ks      []int
	pool    *worker.Pool
	logger  *slog.Logger
}

// NewCompareEmbeddingsUsecase creates the comparison. Empty ks falls back to DefaultRecallKs.
func NewCompareEmbeddingsUsecase(targets []EmbeddingTarget, params domain.RetrievalParams, ks []int, pool *worker.Pool, logger *slog.Logger) *CompareEmbeddingsUsecase {
	if len(ks) == 0 {
		ks = DefaultRecallKs
	}
	if pool == nil {
		pool = worker.NewPool(worker.DefaultPoolConfig())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CompareEmbeddingsUsecase{targets: targets, params: params, ks: ks, pool: pool, logger: logger}
}

type recallSample struct {
	dense, final []string
	retrievalMs  float64
	rerankMs     float64
	err          error
}

// Execute returns one row per target in configured order.
func (u *CompareEmbeddingsUsecase) Execute(ctx context.Context, items []domain.BenchItem) ([]RecallRow, error) {
	if len(u.targets) == 0 {
		return nil, fmt.Errorf("%w: no embedding targets configured", domain.ErrConfiguration)
	}
	if u.params.DenseTopK <= 0 {
		return nil, fmt.Errorf("%w: dense_top_k must be positive, got %d", domain.ErrConfiguration, u.params.DenseTopK)
	}

	var eligible []domain.BenchItem
	for _, it := range items {
		if it.IsAnswerable() && len(it.MustContain) > 0 {
			eligible = append(eligible, it)
		}
	}

	rows := make([]RecallRow, 0, len(u.targets))
	for _, target := range u.targets {
		row := RecallRow{
			Label:       target.Label,
			Collection:  target.Collection,
			DenseRecall: make(map[int]float64, len(u.ks)),
			FinalRecall: make(map[int]float64, len(u.ks)),
		}
		denseHits := make(map[int]int, len(u.ks))
		finalHits := make(map[int]int, len(u.ks))
		var retrievalMs, rerankMs float64

		err := worker.Run(ctx, u.pool, len(eligible),
			func(ctx context.Context, i int) recallSample {
				res, err := target.Retriever.Retrieve(ctx, eligible[i].Question, u.params)
				if err != nil {
					return recallSample{err: err}
				}
				return recallSample{
					dense:       passages(res.DenseResults),
					final:       res.ContextPassages(),
					retrievalMs: domain.Millis(res.Timings.Total),
					rerankMs:    domain.Millis(res.Timings.Rerank),
				}
			},
			func(i int, s recallSample) {
				if s.err != nil {
					row.Failed++
					u.logger.WarnContext(ctx, "recall_item_failed",
						slog.String("target", target.Label),
						slog.String("item_id", eligible[i].ID),
						slog.String("error", s.err.Error()))
					return
				}
				row.Items++
				retrievalMs += s.retrievalMs
				rerankMs += s.rerankMs
				for _, k := range u.ks {
					if RecallAtK(s.dense, eligible[i].MustContain, k) {
						denseHits[k]++
					}
					if RecallAtK(s.final, eligible[i].MustContain, k) {
						finalHits[k]++
					}
				}
			})

		if row.Items > 0 {
			for _, k := range u.ks {
				row.DenseRecall[k] = float64(denseHits[k]) / float64(row.Items)
				row.FinalRecall[k] = float64(finalHits[k]) / float64(row.Items)
			}
			row.MeanRetrievalMs = retrievalMs / float64(row.Items)
			row.MeanRerankMs = rerankMs / float64(row.Items)
		}
		rows = append(rows, row)
		if err != nil {
			return rows, err
		}
	}
	return rows, nil
}

// RecallAtK reports whether any of the first k passages contains any mustContain
// substring, case-insensitively.
func RecallAtK(passages, mustContain []string, k int) bool {
	if k > len(passages) {
		k = len(passages)
	}
	for _, p := range passages[:k] {
		lp := strings.ToLower(p)
		for _, sub := range mustContain {
			if sub != "" && strings.Contains(lp, strings.ToLower(sub)) {
				return true
			}
		}
	}
	return false
}

func passages(cs []domain.Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Text
	}
	return out
}
