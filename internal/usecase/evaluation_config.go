package usecase

import (
	"fmt"

	"ragbench/internal/domain"
	"ragbench/internal/usecase/decision"
)

// EvaluationConfig holds the per-run pipeline knobs.
type EvaluationConfig struct {
	// Retrieval is passed to every Retrieve call.
	Retrieval domain.RetrievalParams
	// Thresholds is the gate pair for plain runs. Sweeps override it per cell.
	Thresholds domain.Thresholds
}

// DefaultEvaluationConfig returns the benchmark defaults: 10 dense candidates
// reranked down to 3.
func DefaultEvaluationConfig() EvaluationConfig {
	return EvaluationConfig{
		Retrieval: domain.RetrievalParams{
			DenseTopK:     10,
			RerankEnabled: true,
			RerankTopN:    3,
		},
		Thresholds: domain.Thresholds{Dense: 0.3, Rerank: 0.2},
	}
}

// Validate checks the configuration before any item is processed.
func (c EvaluationConfig) Validate() error {
	if c.Retrieval.DenseTopK <= 0 {
		return fmt.Errorf("%w: dense_top_k must be positive, got %d", domain.ErrConfiguration, c.Retrieval.DenseTopK)
	}
	if c.Retrieval.RerankTopN < 0 {
		return fmt.Errorf("%w: rerank_top_n must be >= 0, got %d", domain.ErrConfiguration, c.Retrieval.RerankTopN)
	}
	return decision.ValidateThresholds(c.Thresholds)
}

// SweepGrid is the threshold grid evaluated by a sweep.
type SweepGrid struct {
	Dense  []float64 `json:"tau_dense" mapstructure:"dense"`
	Rerank []float64 `json:"tau_rerank" mapstructure:"rerank"`
}

// DefaultSweepGrid returns the 3x3 grid used by the benchmark scripts.
func DefaultSweepGrid() SweepGrid {
	return SweepGrid{
		Dense:  []float64{0.2, 0.3, 0.4},
		Rerank: []float64{0.1, 0.2, 0.3},
	}
}

// Cells expands the grid in dense-major order.
func (g SweepGrid) Cells() []domain.Thresholds {
	cells := make([]domain.Thresholds, 0, len(g.Dense)*len(g.Rerank))
	for _, d := range g.Dense {
		for _, r := range g.Rerank {
			cells = append(cells, domain.Thresholds{Dense: d, Rerank: r})
		}
	}
	return cells
}

// Validate rejects empty grids and out-of-range thresholds.
func (g SweepGrid) Validate() error {
	if len(g.Dense) == 0 || len(g.Rerank) == 0 {
		return fmt.Errorf("%w: sweep grid must have at least one dense and one rerank threshold", domain.ErrConfiguration)
	}
	for _, th := range g.Cells() {
		if err := decision.ValidateThresholds(th); err != nil {
			return err
		}
	}
	return nil
}

// CellKey renders a threshold pair as the key used in stored runs and logs.
func CellKey(th domain.Thresholds) string {
	return fmt.Sprintf("%.2f/%.2f", th.Dense, th.Rerank)
}
