// Package decision holds the pure per-item decision logic: the confidence gate,
// refusal detection and the outcome classifier.
package decision

import (
	"fmt"

	"ragbench/internal/domain"
)

// ValidateThresholds rejects threshold pairs outside [0, 1].
func ValidateThresholds(th domain.Thresholds) error {
	if th.Dense < 0 || th.Dense > 1 {
		return fmt.Errorf("%w: tau_dense must be in [0, 1], got %v", domain.ErrConfiguration, th.Dense)
	}
	if th.Rerank < 0 || th.Rerank > 1 {
		return fmt.Errorf("%w: tau_rerank must be in [0, 1], got %v", domain.ErrConfiguration, th.Rerank)
	}
	return nil
}

// ShouldAnswer is the confidence gate. Both conditions are necessary; an absent
// rerank score never blocks answering on its own.
func ShouldAnswer(topDense float64, topRerank *float64, th domain.Thresholds) bool {
	if topDense < th.Dense {
		return false
	}
	return topRerank == nil || *topRerank >= th.Rerank
}

// Decide applies the gate to a retrieval result.
func Decide(res domain.RetrievalResult, th domain.Thresholds) domain.GateDecision {
	return domain.GateDecision{
		ShouldAnswer: ShouldAnswer(res.TopDenseScore, res.TopRerankScore, th),
		Thresholds:   th,
	}
}
