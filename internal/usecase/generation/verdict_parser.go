package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"ragbench/internal/domain"
)

// rawVerdict uses pointers so missing keys can be told apart from zero values.
type rawVerdict struct {
	Faithful   *bool    `json:"faithful"`
	Confidence *float64 `json:"confidence"`
	Rationale  string   `json:"rationale"`
}

// ParseVerdict parses the judge output. Anything other than a well-formed verdict is
// an ErrVerdictUnparsable; it never defaults to faithful.
func ParseVerdict(raw string) (*domain.Verdict, error) {
	trimmed := stripCodeFence(strings.TrimSpace(raw))
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty judge response", domain.ErrVerdictUnparsable)
	}

	var rv rawVerdict
	if err := json.Unmarshal([]byte(trimmed), &rv); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrVerdictUnparsable, err)
	}
	if rv.Faithful == nil {
		return nil, fmt.Errorf("%w: missing faithful", domain.ErrVerdictUnparsable)
	}
	confidence := 0.0
	if rv.Confidence != nil {
		confidence = *rv.Confidence
	}
	if confidence < 0 || confidence > 1 {
		return nil, fmt.Errorf("%w: confidence %v outside [0, 1]", domain.ErrVerdictUnparsable, confidence)
	}

	return &domain.Verdict{
		Faithful:   *rv.Faithful,
		Confidence: confidence,
		Rationale:  truncateWords(strings.TrimSpace(rv.Rationale), MaxRationaleWords),
	}, nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncateWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return s
	}
	return strings.Join(words[:n], " ")
}
