package summary

import (
	"testing"
	"time"

	"ragbench/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(answerable bool, label domain.OutcomeLabel) domain.ItemResult {
	return domain.ItemResult{IsAnswerable: answerable, Outcome: label}
}

func TestSummarize_EligibleDenominators(t *testing.T) {
	results := []domain.ItemResult{
		item(true, domain.OutcomeAnswerSuccess),
		item(true, domain.OutcomeAnswerSuccess),
		item(true, domain.OutcomeAnswerSuccess),
		item(true, domain.OutcomeFalseRefusal),
		item(false, domain.OutcomeHallucination),
	}
	s := Summarize(results)

	assert.Equal(t, 4, s.Counts.Answerable)
	assert.Equal(t, 1, s.Counts.Unanswerable)
	assert.InDelta(t, 0.75, s.AnswerSuccessRate, 1e-9)
	assert.InDelta(t, 0.25, s.FalseRefusalRate, 1e-9)
	assert.InDelta(t, 1.0, s.HallucinationRate, 1e-9)
	assert.Zero(t, s.CorrectRefusalRate)
}

func TestSummarize_EmptyPopulations(t *testing.T) {
	s := Summarize(nil)
	for _, l := range domain.AllOutcomes {
		assert.Zero(t, s.Rate(l))
	}
	assert.Zero(t, s.FaithfulnessRate)
	assert.Zero(t, s.MeanCostUSD)

	onlyUnanswerable := Summarize([]domain.ItemResult{item(false, domain.OutcomeCorrectRefusal)})
	assert.Zero(t, onlyUnanswerable.AnswerSuccessRate)
	assert.Equal(t, 1.0, onlyUnanswerable.CorrectRefusalRate)
}

func TestSummarize_RatesWellFormed(t *testing.T) {
	labels := []struct {
		answerable bool
		label      domain.OutcomeLabel
	}{
		{true, domain.OutcomeAnswerSuccess},
		{true, domain.OutcomeUnfaithfulAnswer},
		{true, domain.OutcomeFalseRefusal},
		{false, domain.OutcomeHallucination},
		{false, domain.OutcomeCorrectRefusal},
	}
	var results []domain.ItemResult
	for i := 0; i < 97; i++ {
		l := labels[(i*7)%len(labels)]
		results = append(results, item(l.answerable, l.label))
		s := Summarize(results)
		for _, label := range domain.AllOutcomes {
			r := s.Rate(label)
			assert.GreaterOrEqual(t, r, 0.0)
			assert.LessOrEqual(t, r, 1.0)
		}
		answerableSum := s.AnswerSuccessRate + s.FalseRefusalRate + s.UnfaithfulAnswerRate
		if s.Counts.Answerable > 0 {
			assert.InDelta(t, 1.0, answerableSum, 1e-9)
		}
	}
}

func TestSummarize_FailedItemsExcluded(t *testing.T) {
	results := []domain.ItemResult{
		item(true, domain.OutcomeAnswerSuccess),
		{IsAnswerable: true, ErrorKind: domain.ErrorKindJudge, ErrorMessage: "judge error: verdict unparsable"},
		{IsAnswerable: false, ErrorKind: domain.ErrorKindRetrieval},
	}
	s := Summarize(results)
	assert.Equal(t, 2, s.Counts.Failed)
	assert.Equal(t, 1, s.Counts.Answerable)
	assert.Zero(t, s.Counts.Unanswerable)
	assert.Equal(t, 1.0, s.AnswerSuccessRate)
}

func TestSummarize_FaithfulnessAndLatency(t *testing.T) {
	results := []domain.ItemResult{
		{
			IsAnswerable:     true,
			Outcome:          domain.OutcomeAnswerSuccess,
			Decision:         domain.GateDecision{ShouldAnswer: true},
			Verdict:          &domain.Verdict{Faithful: true, Confidence: 0.9},
			Retrieval:        &domain.RetrievalResult{Timings: domain.NewStageTimings(10*time.Millisecond, 20*time.Millisecond, 0)},
			GenerationTime:   200 * time.Millisecond,
			JudgeTime:        100 * time.Millisecond,
			GenerationUsage:  domain.TokenUsage{PromptTokens: 900, CompletionTokens: 100, TotalTokens: 1000},
			EstimatedCostUSD: 0.0002,
		},
		{
			IsAnswerable:    true,
			Outcome:         domain.OutcomeUnfaithfulAnswer,
			Decision:        domain.GateDecision{ShouldAnswer: true},
			Verdict:         &domain.Verdict{Faithful: false, Confidence: 0.7},
			Retrieval:       &domain.RetrievalResult{Timings: domain.NewStageTimings(10*time.Millisecond, 40*time.Millisecond, 0)},
			GenerationTime:  400 * time.Millisecond,
			JudgeTime:       100 * time.Millisecond,
			GenerationUsage: domain.TokenUsage{TotalTokens: 500},
			CostUnknown:     true,
		},
		{
			IsAnswerable: false,
			Outcome:      domain.OutcomeCorrectRefusal,
			Retrieval:    &domain.RetrievalResult{Timings: domain.NewStageTimings(10*time.Millisecond, 10*time.Millisecond, 0)},
		},
	}
	s := Summarize(results)

	assert.Equal(t, 2, s.JudgedCount)
	assert.InDelta(t, 0.5, s.FaithfulnessRate, 1e-9)
	assert.Equal(t, 3, s.RetrievalLatency.Count)
	assert.InDelta(t, 30.0, s.RetrievalLatency.P50Ms, 1e-9)
	assert.Equal(t, 2, s.GenerationLatency.Count)
	assert.InDelta(t, 300.0, s.GenerationLatency.MeanMs, 1e-9)
	assert.InDelta(t, 500.0, s.MeanTokens, 1e-9)
	assert.InDelta(t, 0.0002, s.TotalCostUSD, 1e-12)
	assert.Equal(t, 1, s.UnpricedCount)
}

func TestAccumulator_SnapshotIsIndependent(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(item(true, domain.OutcomeAnswerSuccess))
	first := acc.Snapshot()

	acc.Add(item(true, domain.OutcomeFalseRefusal))
	second := acc.Snapshot()

	assert.Equal(t, 1.0, first.AnswerSuccessRate)
	assert.Equal(t, 0.5, second.AnswerSuccessRate)
}

func TestPercentile(t *testing.T) {
	sorted := []float64{10, 20, 30, 40, 50}
	assert.Equal(t, 30.0, Percentile(sorted, 50))
	assert.InDelta(t, 48.0, Percentile(sorted, 95), 1e-9)
	assert.Equal(t, 10.0, Percentile(sorted, 0))
	assert.Equal(t, 50.0, Percentile(sorted, 100))
	assert.Equal(t, 7.0, Percentile([]float64{7}, 95))
	assert.Zero(t, Percentile(nil, 50))
}

func TestLatency(t *testing.T) {
	st := Latency([]float64{30, 10, 20})
	require.Equal(t, 3, st.Count)
	assert.InDelta(t, 20.0, st.MeanMs, 1e-9)
	assert.Equal(t, 30.0, st.MaxMs)
	assert.Equal(t, 20.0, st.P50Ms)
}
