package decision

import "strings"

// RefusalAnswer is the exact phrase the generator is instructed to emit, and the
// answer recorded when the gate abstains.
const RefusalAnswer = "I don't know based on the provided context."

// refusalPhrases are matched as lowercase substrings. This is lexical only: an answer
// quoting one of these phrases as an aside is counted as a refusal.
var refusalPhrases = []string{
	"i don't know based on the provided context",
	"i do not know based on the provided context",
	"can't answer based on the provided context",
	"cannot answer based on the provided context",
	"insufficient context",
}

// IsRefusal reports whether answer contains a canonical refusal phrase.
func IsRefusal(answer string) bool {
	a := strings.ToLower(strings.TrimSpace(answer))
	if a == "" {
		return false
	}
	// Normalize curly apostrophes some models emit.
	a = strings.ReplaceAll(a, "’", "'")
	for _, p := range refusalPhrases {
		if strings.Contains(a, p) {
			return true
		}
	}
	return false
}
