// Package summary folds per-item results into MetricsSummary snapshots.
package summary

import (
	"math"
	"slices"

	"ragbench/internal/domain"
)

// Accumulator folds item results into counts and latency series. It is not safe for
// concurrent use; workers hand results to a single goroutine that owns it.
type Accumulator struct {
	counts       domain.OutcomeCounts
	judged       int
	faithful     int
	retrievalMs  []float64
	generationMs []float64
	judgeMs      []float64
	genTokens    int
	costUSD      float64
	unpriced     int
	classified   int
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Add folds one item result. Failed items are counted but contribute to no rate.
func (a *Accumulator) Add(r domain.ItemResult) {
	if r.Failed() {
		a.counts.Failed++
		return
	}
	a.classified++
	if r.IsAnswerable {
		a.counts.Answerable++
	} else {
		a.counts.Unanswerable++
	}
	switch r.Outcome {
	case domain.OutcomeAnswerSuccess:
		a.counts.AnswerSuccess++
	case domain.OutcomeFalseRefusal:
		a.counts.FalseRefusal++
	case domain.OutcomeUnfaithfulAnswer:
		a.counts.UnfaithfulAnswer++
	case domain.OutcomeHallucination:
		a.counts.Hallucination++
	case domain.OutcomeCorrectRefusal:
		a.counts.CorrectRefusal++
	}

	if r.Verdict != nil {
		a.judged++
		if r.Verdict.Faithful {
			a.faithful++
		}
		a.judgeMs = append(a.judgeMs, domain.Millis(r.JudgeTime))
	}
	if r.Retrieval != nil {
		a.retrievalMs = append(a.retrievalMs, domain.Millis(r.Retrieval.Timings.Total))
	}
	if r.Decision.ShouldAnswer {
		a.generationMs = append(a.generationMs, domain.Millis(r.GenerationTime))
	}
	a.genTokens += r.GenerationUsage.TotalTokens
	a.costUSD += r.EstimatedCostUSD
	if r.CostUnknown {
		a.unpriced++
	}
}

// Snapshot builds an immutable summary of everything added so far.
func (a *Accumulator) Snapshot() domain.MetricsSummary {
	c := a.counts
	s := domain.MetricsSummary{
		Counts:               c,
		AnswerSuccessRate:    rate(c.AnswerSuccess, c.Answerable),
		FalseRefusalRate:     rate(c.FalseRefusal, c.Answerable),
		UnfaithfulAnswerRate: rate(c.UnfaithfulAnswer, c.Answerable),
		HallucinationRate:    rate(c.Hallucination, c.Unanswerable),
		CorrectRefusalRate:   rate(c.CorrectRefusal, c.Unanswerable),
		FaithfulnessRate:     rate(a.faithful, a.judged),
		JudgedCount:          a.judged,
		RetrievalLatency:     Latency(a.retrievalMs),
		GenerationLatency:    Latency(a.generationMs),
		JudgeLatency:         Latency(a.judgeMs),
		TotalCostUSD:         a.costUSD,
		UnpricedCount:        a.unpriced,
	}
	if a.classified > 0 {
		s.MeanTokens = float64(a.genTokens) / float64(a.classified)
		s.MeanCostUSD = a.costUSD / float64(a.classified)
	}
	return s
}

// Summarize builds a summary over results in one pass.
func Summarize(results []domain.ItemResult) domain.MetricsSummary {
	acc := NewAccumulator()
	for _, r := range results {
		acc.Add(r)
	}
	return acc.Snapshot()
}

func rate(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

// Latency aggregates a series of millisecond samples.
func Latency(samples []float64) domain.LatencyStats {
	if len(samples) == 0 {
		return domain.LatencyStats{}
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)
	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return domain.LatencyStats{
		Count:  len(sorted),
		MeanMs: sum / float64(len(sorted)),
		P50Ms:  Percentile(sorted, 50),
		P95Ms:  Percentile(sorted, 95),
		MaxMs:  sorted[len(sorted)-1],
	}
}

// Percentile returns the p-th percentile of sorted using linear interpolation
// between closest ranks.
func Percentile(sorted []float64, p float64) float64 {
	switch len(sorted) {
	case 0:
		return 0
	case 1:
		return sorted[0]
	}
	pos := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}
