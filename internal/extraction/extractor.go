package extraction

import (
	"context"

	"github.com/inkwelldev/inkwell-api/internal/domain"
)

// Result holds the structured metadata derived from a single extraction
// attempt. It is a transient value object: produced once per attempt,
// applied to an item through the store, then discarded.
type Result struct {
	Title          string
	Tags           []string
	Description    string
	Summary        string
	RawModelOutput string
	Confidence     string
	Source         domain.ItemSource
}

// Extractor defines the boundary between the enrichment pipeline and a
// metadata derivation strategy. Implementations may fail; the Strategy
// composition below is the one that never does.
type Extractor interface {
	// Extract derives structured metadata from the given raw text.
	Extract(ctx context.Context, text string) (*Result, error)
}
