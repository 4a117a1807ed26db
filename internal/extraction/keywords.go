package extraction

import (
	"sort"
	"strings"
	"unicode"
)

// stopwords are excluded from keyword extraction. The list is intentionally
// small; it only needs to keep glue words out of the tag set.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "from": {}, "has": {}, "have": {},
	"he": {}, "her": {}, "his": {}, "in": {}, "is": {}, "it": {}, "its": {},
	"of": {}, "on": {}, "or": {}, "she": {}, "that": {}, "the": {},
	"their": {}, "they": {}, "this": {}, "to": {}, "was": {}, "we": {},
	"were": {}, "will": {}, "with": {}, "you": {}, "your": {}, "not": {},
	"also": {},
}

// extractKeywords derives up to max keyword tags from text using word
// frequency. Tokens are lowercased runs of letters and digits; stopwords and
// single-rune tokens are skipped. Ties are broken by first occurrence, so
// the output is deterministic for a given input.
func extractKeywords(text string, max int) []string {
	if max <= 0 {
		return nil
	}

	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	type wordCount struct {
		word  string
		count int
		first int
	}

	counts := make(map[string]*wordCount)
	order := make([]*wordCount, 0)
	for i, tok := range tokens {
		if len([]rune(tok)) < 2 {
			continue
		}
		if _, skip := stopwords[tok]; skip {
			continue
		}
		if wc, ok := counts[tok]; ok {
			wc.count++
			continue
		}
		wc := &wordCount{word: tok, count: 1, first: i}
		counts[tok] = wc
		order = append(order, wc)
	}

	sort.SliceStable(order, func(a, b int) bool {
		if order[a].count != order[b].count {
			return order[a].count > order[b].count
		}
		return order[a].first < order[b].first
	})

	if len(order) > max {
		order = order[:max]
	}

	keywords := make([]string, 0, len(order))
	for _, wc := range order {
		keywords = append(keywords, wc.word)
	}
	return keywords
}
