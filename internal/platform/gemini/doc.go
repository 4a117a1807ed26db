// Package gemini implements the remote extraction strategy against Google's
// Gemini API. It sends the item text with a structured-output system
// instruction and deterministic sampling, then parses the completion into an
// extraction.Result, repairing common JSON damage (surrounding prose,
// single-quoted objects) and normalizing loosely-typed fields before they
// reach the pipeline.
package gemini
