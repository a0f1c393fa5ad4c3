package domain

// Verdict is the judge's faithfulness decision.
type Verdict struct {
	Faithful   bool    `json:"faithful"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// Thresholds is the (tau_dense, tau_rerank) pair applied by the confidence gate.
type Thresholds struct {
	Dense  float64 `json:"tau_dense" mapstructure:"dense"`
	Rerank float64 `json:"tau_rerank" mapstructure:"rerank"`
}

// GateDecision records whether to answer and the thresholds that produced it.
type GateDecision struct {
	ShouldAnswer bool       `json:"should_answer"`
	Thresholds   Thresholds `json:"thresholds"`
}
