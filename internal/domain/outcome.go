package domain

import "time"

// OutcomeLabel is the per-item classification.
type OutcomeLabel string

const (
	OutcomeAnswerSuccess  OutcomeLabel = "answer_success"
	OutcomeFalseRefusal   OutcomeLabel = "false_refusal"
	OutcomeHallucination  OutcomeLabel = "hallucination"
	OutcomeCorrectRefusal OutcomeLabel = "correct_refusal"
	// OutcomeUnfaithfulAnswer covers an answerable item that was answered but judged
	// unfaithful. It is tracked separately from the four primary labels.
	OutcomeUnfaithfulAnswer OutcomeLabel = "unfaithful_answer"
)

// AllOutcomes lists every label in reporting order.
var AllOutcomes = []OutcomeLabel{
	OutcomeAnswerSuccess,
	OutcomeFalseRefusal,
	OutcomeUnfaithfulAnswer,
	OutcomeHallucination,
	OutcomeCorrectRefusal,
}

// AppliesToAnswerable reports whether the label belongs to the answerable population.
func (l OutcomeLabel) AppliesToAnswerable() bool {
	switch l {
	case OutcomeAnswerSuccess, OutcomeFalseRefusal, OutcomeUnfaithfulAnswer:
		return true
	}
	return false
}

// ItemResult is the per-item record exposed to reporting and persisted per run.
type ItemResult struct {
	ItemID       string           `json:"id"`
	Question     string           `json:"question"`
	GoldAnswer   *string          `json:"gold_answer,omitempty"`
	IsAnswerable bool             `json:"is_answerable"`
	Retrieval    *RetrievalResult `json:"retrieval,omitempty"`
	Decision     GateDecision     `json:"decision"`
	Answer       string           `json:"answer"`
	Refused      bool             `json:"refused"`
	// Verdict is nil when the judge was not invoked.
	Verdict          *Verdict      `json:"verdict,omitempty"`
	GenerationUsage  TokenUsage    `json:"generation_usage"`
	JudgeUsage       TokenUsage    `json:"judge_usage"`
	GenerationModel  string        `json:"generation_model,omitempty"`
	GenerationTime   time.Duration `json:"generation_ns"`
	JudgeTime        time.Duration `json:"judge_ns"`
	Outcome          OutcomeLabel  `json:"outcome,omitempty"`
	ErrorKind        ErrorKind     `json:"error_kind,omitempty"`
	ErrorMessage     string        `json:"error,omitempty"`
	EstimatedCostUSD float64       `json:"estimated_cost_usd"`
	// CostUnknown is set when a called model is missing from the pricing table.
	CostUnknown bool `json:"cost_unknown,omitempty"`
}

// Failed reports whether the item aborted with an error and carries no outcome.
func (r ItemResult) Failed() bool {
	return r.ErrorKind != ErrorKindNone
}
