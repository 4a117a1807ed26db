package extraction

import (
	"context"
	"log/slog"
	"strings"
)

// Strategy composes a remote extractor with the deterministic local
// fallback. Its Extract never fails: any remote failure (network error,
// timeout, unparsable response) degrades to the local strategy instead of
// propagating.
type Strategy struct {
	remote Extractor
	local  *LocalExtractor
	logger *slog.Logger
}

// NewStrategy creates a Strategy. remote may be nil, in which case every
// extraction uses the local strategy. If logger is nil, a default is used.
func NewStrategy(remote Extractor, logger *slog.Logger) *Strategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Strategy{
		remote: remote,
		local:  NewLocalExtractor(),
		logger: logger.With("component", "extraction_strategy"),
	}
}

// Extract derives metadata for the given text. The remote strategy is tried
// first when configured and the text is non-empty; on any remote failure the
// local strategy result is returned instead.
func (s *Strategy) Extract(ctx context.Context, text string) *Result {
	if s.remote == nil || strings.TrimSpace(text) == "" {
		result, _ := s.local.Extract(ctx, text)
		return result
	}

	result, err := s.remote.Extract(ctx, text)
	if err != nil {
		s.logger.Warn("remote extraction failed, falling back to local strategy",
			"error", err,
			"text_length", len(text))
		result, _ = s.local.Extract(ctx, text)
		return result
	}

	return result
}
