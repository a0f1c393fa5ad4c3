// Package generation builds prompts for the answer generator and the faithfulness
// judge and runs them against a domain.ChatModel.
package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"ragbench/internal/domain"
	"ragbench/internal/usecase/decision"
)

// MaxRationaleWords bounds the judge rationale.
const MaxRationaleWords = 25

var generationInstructions = []string{
	"You are a careful assistant that answers ONLY using the provided CONTEXT.",
	"If the answer is not supported by the CONTEXT, respond exactly: " + decision.RefusalAnswer,
	"Do not use prior knowledge.",
	"Be concise.",
	"Cite sources as [chunk_i].",
}

var judgeInstructions = []string{
	"You are a strict RAG faithfulness judge.",
	"Decide whether every claim in ANSWER is supported by CONTEXT.",
	"If unclear, faithful=false.",
	"Return ONLY valid JSON with keys:",
	"faithful (boolean), confidence (0-1), rationale (string, <= 25 words).",
}

// PromptBuilder renders chat messages for generation and judging.
type PromptBuilder struct {
	additionalInstructions []string
}

// NewPromptBuilder creates a builder with optional extra system instructions.
func NewPromptBuilder(additionalInstructions ...string) *PromptBuilder {
	return &PromptBuilder{additionalInstructions: additionalInstructions}
}

// FormatContext renders passages as "[chunk_i] text" blocks separated by blank lines.
func FormatContext(passages []string) string {
	parts := make([]string, len(passages))
	for i, p := range passages {
		parts[i] = fmt.Sprintf("[chunk_%d] %s", i+1, strings.TrimSpace(p))
	}
	return strings.Join(parts, "\n\n")
}

// Generation builds the answer-generation messages.
func (b *PromptBuilder) Generation(question string, passages []string) ([]domain.Message, error) {
	user, err := json.Marshal(struct {
		Question string `json:"question"`
		Context  string `json:"context"`
	}{Question: question, Context: FormatContext(passages)})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generation input: %w", err)
	}
	return []domain.Message{
		{Role: domain.RoleSystem, Content: joinLines(generationInstructions, b.additionalInstructions)},
		{Role: domain.RoleUser, Content: string(user)},
	}, nil
}

// Judge builds the faithfulness-judge messages.
func (b *PromptBuilder) Judge(question, answer string, passages []string) ([]domain.Message, error) {
	user, err := json.Marshal(struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
		Context  string `json:"context"`
	}{Question: question, Answer: answer, Context: FormatContext(passages)})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal judge input: %w", err)
	}
	return []domain.Message{
		{Role: domain.RoleSystem, Content: joinLines(judgeInstructions, nil)},
		{Role: domain.RoleUser, Content: string(user)},
	}, nil
}

func joinLines(base, extra []string) string {
	var sb strings.Builder
	for _, line := range append(append([]string{}, base...), extra...) {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
