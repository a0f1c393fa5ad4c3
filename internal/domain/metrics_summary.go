package domain

// LatencyStats aggregates one latency series in milliseconds.
type LatencyStats struct {
	Count  int     `json:"count"`
	MeanMs float64 `json:"mean_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P95Ms  float64 `json:"p95_ms"`
	MaxMs  float64 `json:"max_ms"`
}

// OutcomeCounts holds raw label counts and population sizes.
type OutcomeCounts struct {
	Answerable       int `json:"answerable"`
	Unanswerable     int `json:"unanswerable"`
	AnswerSuccess    int `json:"answer_success"`
	FalseRefusal     int `json:"false_refusal"`
	UnfaithfulAnswer int `json:"unfaithful_answer"`
	Hallucination    int `json:"hallucination"`
	CorrectRefusal   int `json:"correct_refusal"`
	Failed           int `json:"failed"`
}

// MetricsSummary is an immutable snapshot of outcome rates over a set of items.
// Answerable items feed the success/false-refusal/unfaithful rates; unanswerable items
// feed the hallucination/correct-refusal rates. An empty population yields rate 0.
type MetricsSummary struct {
	Counts               OutcomeCounts `json:"counts"`
	AnswerSuccessRate    float64       `json:"answer_success_rate"`
	FalseRefusalRate     float64       `json:"false_refusal_rate"`
	UnfaithfulAnswerRate float64       `json:"unfaithful_answer_rate"`
	HallucinationRate    float64       `json:"hallucination_rate"`
	CorrectRefusalRate   float64       `json:"correct_refusal_rate"`
	// FaithfulnessRate is computed over items the judge actually evaluated.
	FaithfulnessRate  float64      `json:"faithfulness_rate"`
	JudgedCount       int          `json:"judged_count"`
	RetrievalLatency  LatencyStats `json:"retrieval_latency"`
	GenerationLatency LatencyStats `json:"generation_latency"`
	JudgeLatency      LatencyStats `json:"judge_latency"`
	MeanTokens        float64      `json:"mean_generation_tokens"`
	MeanCostUSD       float64      `json:"mean_cost_usd"`
	TotalCostUSD      float64      `json:"total_cost_usd"`
	UnpricedCount     int          `json:"unpriced_count"`
}

// Rate returns the rate of the given label.
func (m MetricsSummary) Rate(label OutcomeLabel) float64 {
	switch label {
	case OutcomeAnswerSuccess:
		return m.AnswerSuccessRate
	case OutcomeFalseRefusal:
		return m.FalseRefusalRate
	case OutcomeUnfaithfulAnswer:
		return m.UnfaithfulAnswerRate
	case OutcomeHallucination:
		return m.HallucinationRate
	case OutcomeCorrectRefusal:
		return m.CorrectRefusalRate
	}
	return 0
}

// SweepCell is the summary for one threshold pair of a sweep.
type SweepCell struct {
	Thresholds Thresholds     `json:"thresholds"`
	Summary    MetricsSummary `json:"summary"`
}
