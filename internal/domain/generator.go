package domain

import "context"

// Answer is the generation gateway output.
type Answer struct {
	Text  string     `json:"text"`
	Usage TokenUsage `json:"usage"`
	Model string     `json:"model"`
}

// Generator produces a context-grounded answer or the canonical refusal phrase.
type Generator interface {
	Generate(ctx context.Context, question string, passages []string) (*Answer, error)
	Model() string
}

// Judge produces a faithfulness verdict for a (question, answer, context) triple.
type Judge interface {
	Judge(ctx context.Context, question, answer string, passages []string) (*Verdict, TokenUsage, error)
	Model() string
}
