package extraction

import "strings"

// sentenceTerminators are the characters a sentence ends on: half-width and
// full-width sentence-final punctuation plus newlines.
const sentenceTerminators = ".!?。！？\n"

// splitSentences splits text into trimmed, non-empty sentences on
// sentence-final punctuation and newlines. The terminators themselves are
// not included in the returned sentences.
func splitSentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return strings.ContainsRune(sentenceTerminators, r)
	})

	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// truncateRunes returns s cut to at most n runes.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// firstNonEmptyLine returns the first line of text that contains more than
// whitespace, trimmed. Returns "" if there is none.
func firstNonEmptyLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			return s
		}
	}
	return ""
}
