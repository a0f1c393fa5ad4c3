package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRefusal(t *testing.T) {
	tests := map[string]struct {
		answer string
		want   bool
	}{
		"canonical":            {answer: RefusalAnswer, want: true},
		"upper case padded":    {answer: "   I DON'T KNOW BASED ON THE PROVIDED CONTEXT.  ", want: true},
		"do not variant":       {answer: "I do not know based on the provided context.", want: true},
		"cannot variant":       {answer: "Sorry, I cannot answer based on the provided context.", want: true},
		"insufficient":         {answer: "Insufficient context to answer.", want: true},
		"curly apostrophe":     {answer: "I don’t know based on the provided context.", want: true},
		"plain answer":         {answer: "RAG combines retrieval with generation [chunk_1].", want: false},
		"empty":                {answer: "", want: false},
		"quoted aside matches": {answer: `The doc says "insufficient context" triggers a retry.`, want: true},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRefusal(tt.answer))
		})
	}
}
