package domain

// BenchItem is one evaluation question loaded from a benchmark file.
type BenchItem struct {
	ID       string `json:"id" yaml:"id"`
	Question string `json:"question" yaml:"question"`
	// GoldAnswer is nil for unanswerable questions.
	GoldAnswer *string `json:"gold_answer,omitempty" yaml:"gold_answer,omitempty"`
	// MustContain lists substrings used for recall scoring of retrieved passages.
	MustContain []string `json:"must_contain,omitempty" yaml:"must_contain,omitempty"`
}

// IsAnswerable reports whether the item carries a gold answer.
func (b BenchItem) IsAnswerable() bool {
	return b.GoldAnswer != nil
}
