package output

import (
	"fmt"
	"strconv"
	"time"

	"ragbench/internal/domain"
	"ragbench/internal/usecase"
)

func pct(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

func ms(v float64) string {
	return strconv.FormatFloat(v, 'f', 0, 64)
}

func usd(v float64) string {
	return fmt.Sprintf("$%.5f", v)
}

// Summary prints the outcome rates, latencies and costs of one run.
func (p *Printer) Summary(title string, s domain.MetricsSummary) error {
	p.Header(title)
	c := s.Counts

	rates := p.NewTable("metric", "rate", "count", "population")
	rates.AddRow(p.OutcomeBadge(string(domain.OutcomeAnswerSuccess)), pct(s.AnswerSuccessRate), strconv.Itoa(c.AnswerSuccess), strconv.Itoa(c.Answerable))
	rates.AddRow(p.OutcomeBadge(string(domain.OutcomeFalseRefusal)), pct(s.FalseRefusalRate), strconv.Itoa(c.FalseRefusal), strconv.Itoa(c.Answerable))
	rates.AddRow(p.OutcomeBadge(string(domain.OutcomeUnfaithfulAnswer)), pct(s.UnfaithfulAnswerRate), strconv.Itoa(c.UnfaithfulAnswer), strconv.Itoa(c.Answerable))
	rates.AddRow(p.OutcomeBadge(string(domain.OutcomeHallucination)), pct(s.HallucinationRate), strconv.Itoa(c.Hallucination), strconv.Itoa(c.Unanswerable))
	rates.AddRow(p.OutcomeBadge(string(domain.OutcomeCorrectRefusal)), pct(s.CorrectRefusalRate), strconv.Itoa(c.CorrectRefusal), strconv.Itoa(c.Unanswerable))
	rates.AddRow("faithfulness", pct(s.FaithfulnessRate), "", strconv.Itoa(s.JudgedCount))
	if err := rates.Render(); err != nil {
		return err
	}

	lat := p.NewTable("stage", "n", "mean_ms", "p50_ms", "p95_ms", "max_ms")
	for _, row := range []struct {
		name string
		st   domain.LatencyStats
	}{
		{"retrieval", s.RetrievalLatency},
		{"generation", s.GenerationLatency},
		{"judge", s.JudgeLatency},
	} {
		lat.AddRow(row.name, strconv.Itoa(row.st.Count), ms(row.st.MeanMs), ms(row.st.P50Ms), ms(row.st.P95Ms), ms(row.st.MaxMs))
	}
	if err := lat.Render(); err != nil {
		return err
	}

	p.Info("mean tokens %.1f, mean cost %s, total cost %s", s.MeanTokens, usd(s.MeanCostUSD), usd(s.TotalCostUSD))
	if s.UnpricedCount > 0 {
		p.Warning("%d item(s) used a model missing from the pricing table; their cost counts as 0", s.UnpricedCount)
	}
	if c.Failed > 0 {
		p.Warning("%d item(s) failed and are excluded from the rates", c.Failed)
	}
	return nil
}

// SweepCells prints one row per threshold cell.
func (p *Printer) SweepCells(cells []domain.SweepCell) error {
	p.Header("Threshold sweep")
	t := p.NewTable("tau_dense", "tau_rerank", "answer_success", "false_refusal", "unfaithful", "hallucination", "correct_refusal", "failed")
	for _, cell := range cells {
		s := cell.Summary
		t.AddRow(
			fmt.Sprintf("%.2f", cell.Thresholds.Dense),
			fmt.Sprintf("%.2f", cell.Thresholds.Rerank),
			pct(s.AnswerSuccessRate),
			pct(s.FalseRefusalRate),
			pct(s.UnfaithfulAnswerRate),
			pct(s.HallucinationRate),
			pct(s.CorrectRefusalRate),
			strconv.Itoa(s.Counts.Failed),
		)
	}
	return t.Render()
}

// ModelComparison prints faithfulness, cost and tokens per generator model.
func (p *Printer) ModelComparison(rows []usecase.ModelComparisonRow) error {
	p.Header("Model comparison")
	t := p.NewTable("model", "faithfulness", "answer_success", "avg_tokens", "avg_cost_usd", "avg_retrieval_ms")
	for _, r := range rows {
		t.AddRow(r.Model, pct(r.FaithfulnessRate), pct(r.Summary.AnswerSuccessRate), fmt.Sprintf("%.1f", r.MeanTokens), usd(r.MeanCostUSD), ms(r.MeanRetrievalMs))
	}
	return t.Render()
}

// Recall prints dense and final recall@k per embedding target.
func (p *Printer) Recall(rows []usecase.RecallRow, ks []int) error {
	p.Header("Embedding recall")
	headers := []string{"embedding", "collection", "items"}
	for _, k := range ks {
		headers = append(headers, fmt.Sprintf("dense@%d", k))
	}
	for _, k := range ks {
		headers = append(headers, fmt.Sprintf("final@%d", k))
	}
	headers = append(headers, "avg_retrieval_ms", "avg_rerank_ms")

	t := p.NewTable(headers...)
	for _, r := range rows {
		row := []string{r.Label, r.Collection, strconv.Itoa(r.Items)}
		for _, k := range ks {
			row = append(row, pct(r.DenseRecall[k]))
		}
		for _, k := range ks {
			row = append(row, pct(r.FinalRecall[k]))
		}
		row = append(row, ms(r.MeanRetrievalMs), ms(r.MeanRerankMs))
		t.AddRow(row...)
		if r.Failed > 0 {
			p.Warning("%s: %d item(s) failed retrieval", r.Label, r.Failed)
		}
	}
	return t.Render()
}

// IndexStats prints what an indexing pass did.
func (p *Printer) IndexStats(collection string, st usecase.IndexStats, elapsed time.Duration) {
	p.Success("indexed %s in %s", collection, elapsed.Round(time.Millisecond))
	p.Info("records %d (skipped %d), chunks %d, embedded %d, cache hits %d, upserted %d",
		st.Records, st.Skipped, st.Chunks, st.Embedded, st.CacheHits, st.Upserted)
}

// Runs lists stored runs.
func (p *Printer) Runs(runs []domain.RunRecord) error {
	if len(runs) == 0 {
		p.Info("no runs stored")
		return nil
	}
	t := p.NewTable("id", "kind", "status", "bench", "created", "duration")
	for _, r := range runs {
		dur := ""
		if r.StartedAt != nil && r.FinishedAt != nil {
			dur = r.FinishedAt.Sub(*r.StartedAt).Round(time.Millisecond).String()
		}
		t.AddRow(r.ID, string(r.Kind), p.OutcomeBadge(string(r.Status)), r.BenchPath, r.CreatedAt.Local().Format(time.DateTime), dur)
	}
	return t.Render()
}

// Items prints stored per-item records.
func (p *Printer) Items(items []domain.ItemResult) error {
	t := p.NewTable("item", "answerable", "answer", "outcome", "dense", "rerank", "error")
	for _, it := range items {
		dense, rerank := "-", "-"
		if it.Retrieval != nil {
			dense = score(&it.Retrieval.TopDenseScore)
			rerank = score(it.Retrieval.TopRerankScore)
		}
		t.AddRow(
			it.ItemID,
			strconv.FormatBool(it.IsAnswerable),
			strconv.FormatBool(it.Decision.ShouldAnswer),
			p.OutcomeBadge(string(it.Outcome)),
			dense,
			rerank,
			string(it.ErrorKind),
		)
	}
	return t.Render()
}

func score(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f", *v)
}
