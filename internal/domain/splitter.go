package domain

import (
	"strings"
	"unicode/utf8"
)

// splitLongParagraphs packs the sentences of paragraphs longer than maxLen into
// passages of at most maxLen runes. A single sentence longer than maxLen is kept whole.
func splitLongParagraphs(paragraphs []string, maxLen int) []string {
	var result []string
	for _, para := range paragraphs {
		if maxLen <= 0 || utf8.RuneCountInString(para) <= maxLen {
			result = append(result, para)
			continue
		}

		var sb strings.Builder
		size := 0
		for _, sentence := range splitSentences(para) {
			n := utf8.RuneCountInString(sentence)
			if size > 0 && size+1+n > maxLen {
				result = append(result, sb.String())
				sb.Reset()
				size = 0
			}
			if size > 0 {
				sb.WriteByte(' ')
				size++
			}
			sb.WriteString(sentence)
			size += n
		}
		if size > 0 {
			result = append(result, sb.String())
		}
	}
	return result
}

// splitSentences cuts at . ! ? followed by whitespace or end of text.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && runes[i+1] != ' ' && runes[i+1] != '\n' {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			sentences = append(sentences, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
