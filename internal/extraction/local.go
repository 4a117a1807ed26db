package extraction

import (
	"context"
	"strings"

	"github.com/inkwelldev/inkwell-api/internal/domain"
)

// Local strategy limits
const (
	localTitleMinLen    = 5
	localTitleMaxLen    = 120
	localTitleTruncLen  = 30
	localDescriptionLen = 120
	localSummaryLen     = 300
	localMaxTags        = 6
)

// LocalExtractor derives metadata from text deterministically, with no
// external calls. It is the fallback strategy and never fails: the same
// input always yields the same result.
type LocalExtractor struct{}

// NewLocalExtractor creates a new LocalExtractor.
func NewLocalExtractor() *LocalExtractor {
	return &LocalExtractor{}
}

// Ensure LocalExtractor implements the Extractor interface
var _ Extractor = (*LocalExtractor)(nil)

// Extract implements Extractor. The returned error is always nil.
func (e *LocalExtractor) Extract(_ context.Context, text string) (*Result, error) {
	trimmed := strings.TrimSpace(text)

	title := firstNonEmptyLine(trimmed)
	if n := len([]rune(title)); n < localTitleMinLen || n > localTitleMaxLen {
		title = truncateRunes(trimmed, localTitleTruncLen)
	}

	sentences := splitSentences(trimmed)

	var description, summary string
	if len(sentences) > 0 {
		description = truncateRunes(sentences[0], localDescriptionLen)
		summary = strings.Join(sentences[:min(2, len(sentences))], " ")
	} else {
		description = truncateRunes(trimmed, localDescriptionLen)
		summary = truncateRunes(trimmed, localSummaryLen)
	}

	return &Result{
		Title:       title,
		Tags:        extractKeywords(trimmed, localMaxTags),
		Description: description,
		Summary:     summary,
		Source:      domain.ItemSourceLocal,
	}, nil
}
