package output

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragbench/internal/domain"
	"ragbench/internal/usecase"
)

func newTestPrinter(quiet bool) (*Printer, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	p := NewPrinter(PrinterOptions{ColorMode: ColorNever, Quiet: quiet, Out: &out, Err: &errOut})
	return p, &out, &errOut
}

func TestParseColorMode(t *testing.T) {
	tests := []struct {
		in      string
		want    ColorMode
		wantErr bool
	}{
		{"auto", ColorAuto, false},
		{"", ColorAuto, false},
		{"always", ColorAlways, false},
		{"never", ColorNever, false},
		{"sometimes", ColorAuto, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColorMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveColors(t *testing.T) {
	assert.True(t, ResolveColors(ColorAlways, false))
	assert.False(t, ResolveColors(ColorNever, true))

	t.Setenv("NO_COLOR", "1")
	assert.False(t, ResolveColors(ColorAuto, true))
}

func TestMessages(t *testing.T) {
	p, out, errOut := newTestPrinter(false)

	p.Success("wrote %d records", 3)
	p.Warning("slow backend")
	p.Error("boom")

	assert.Contains(t, out.String(), "[OK] wrote 3 records")
	assert.Contains(t, errOut.String(), "[WARN] slow backend")
	assert.Contains(t, errOut.String(), "[ERROR] boom")
}

func TestQuietSuppressesAllButErrors(t *testing.T) {
	p, out, errOut := newTestPrinter(true)

	p.Info("hello")
	p.Header("Title")
	require.NoError(t, p.NewTable("a").Render())
	p.Error("still shown")

	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "still shown")
}

func TestSummary(t *testing.T) {
	p, out, errOut := newTestPrinter(false)

	s := domain.MetricsSummary{
		Counts: domain.OutcomeCounts{
			Answerable: 4, Unanswerable: 2,
			AnswerSuccess: 3, FalseRefusal: 1,
			CorrectRefusal: 2, Failed: 1,
		},
		AnswerSuccessRate:  0.75,
		FalseRefusalRate:   0.25,
		CorrectRefusalRate: 1,
		RetrievalLatency:   domain.LatencyStats{Count: 6, MeanMs: 120, P50Ms: 110, P95Ms: 200, MaxMs: 210},
		MeanCostUSD:        0.0001,
	}
	require.NoError(t, p.Summary("Benchmark", s))

	got := out.String()
	assert.Contains(t, got, "Benchmark")
	assert.Contains(t, got, "answer_success")
	assert.Contains(t, got, "75.0%")
	assert.Contains(t, got, "100.0%")
	assert.Contains(t, got, "retrieval")
	assert.Contains(t, got, "$0.00010")
	assert.Contains(t, errOut.String(), "1 item(s) failed")
}

func TestSweepCells(t *testing.T) {
	p, out, _ := newTestPrinter(false)

	cells := []domain.SweepCell{
		{Thresholds: domain.Thresholds{Dense: 0.2, Rerank: 0.1}, Summary: domain.MetricsSummary{AnswerSuccessRate: 0.5}},
		{Thresholds: domain.Thresholds{Dense: 0.4, Rerank: 0.3}, Summary: domain.MetricsSummary{HallucinationRate: 0.25}},
	}
	require.NoError(t, p.SweepCells(cells))

	got := out.String()
	assert.Contains(t, got, "0.20")
	assert.Contains(t, got, "0.30")
	assert.Contains(t, got, "50.0%")
	assert.Contains(t, got, "25.0%")
}

func TestModelComparisonAndRecall(t *testing.T) {
	p, out, errOut := newTestPrinter(false)

	require.NoError(t, p.ModelComparison([]usecase.ModelComparisonRow{
		{Model: "gpt-4o", FaithfulnessRate: 0.9, MeanTokens: 42, MeanCostUSD: 0.002},
	}))
	require.NoError(t, p.Recall([]usecase.RecallRow{{
		Label:       "small",
		Collection:  "docs_small",
		Items:       10,
		Failed:      1,
		DenseRecall: map[int]float64{1: 0.4, 5: 0.8},
		FinalRecall: map[int]float64{1: 0.6, 5: 0.9},
	}}, []int{1, 5}))

	got := out.String()
	assert.Contains(t, got, "gpt-4o")
	assert.Contains(t, got, "90.0%")
	assert.Contains(t, got, "dense@5")
	assert.Contains(t, got, "final@1")
	assert.Contains(t, got, "docs_small")
	assert.Contains(t, got, "60.0%")
	assert.Contains(t, errOut.String(), "small: 1 item(s) failed")
}

func TestRunsAndItems(t *testing.T) {
	p, out, _ := newTestPrinter(false)

	require.NoError(t, p.Runs(nil))
	assert.Contains(t, out.String(), "no runs stored")

	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	end := start.Add(1500 * time.Millisecond)
	require.NoError(t, p.Runs([]domain.RunRecord{{
		ID: "run-1", Kind: domain.RunKindSweep, Status: domain.RunStatusCompleted,
		BenchPath: "bench.jsonl", CreatedAt: start, StartedAt: &start, FinishedAt: &end,
	}}))
	assert.Contains(t, out.String(), "run-1")
	assert.Contains(t, out.String(), "1.5s")

	rerank := 0.812
	require.NoError(t, p.Items([]domain.ItemResult{
		{ItemID: "q1", IsAnswerable: true, Outcome: domain.OutcomeAnswerSuccess, Retrieval: &domain.RetrievalResult{TopDenseScore: 0.5, TopRerankScore: &rerank}},
		{ItemID: "q2", ErrorKind: domain.ErrorKindRetrieval},
	}))
	got := out.String()
	assert.Contains(t, got, "0.812")
	assert.Contains(t, got, "retrieval_error")
}
