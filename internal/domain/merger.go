package domain

import "unicode/utf8"

// mergeShortParagraphs folds paragraphs shorter than minLen into the following
// paragraph, or into the previous one at the end of the text. A text made only of
// short paragraphs collapses into a single passage.
func mergeShortParagraphs(paragraphs []string, minLen int) []string {
	if len(paragraphs) <= 1 || minLen <= 0 {
		return paragraphs
	}

	var merged []string
	var pending string
	for _, para := range paragraphs {
		if pending != "" {
			para = pending + "\n\n" + para
			pending = ""
		}
		if utf8.RuneCountInString(para) < minLen {
			pending = para
			continue
		}
		merged = append(merged, para)
	}

	if pending != "" {
		if len(merged) > 0 {
			merged[len(merged)-1] += "\n\n" + pending
		} else {
			merged = append(merged, pending)
		}
	}
	return merged
}
