// Package extraction derives structured metadata (title, tags, description,
// summary) from free text. It defines the Extractor boundary the pipeline
// depends on, the deterministic local strategy, and the Strategy composition
// that tries a remote model first and falls back to the local strategy on
// any failure, so extraction as a whole never fails.
package extraction
