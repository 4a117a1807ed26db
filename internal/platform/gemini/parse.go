package gemini

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/inkwelldev/inkwell-api/internal/domain"
	"github.com/inkwelldev/inkwell-api/internal/extraction"
)

// braceSpanRe locates the first {...} span in a completion that has prose or
// markdown fences around the JSON. Greedy across newlines so nested objects
// keep their closing brace.
var braceSpanRe = regexp.MustCompile(`(?s)\{.*\}`)

// tagDelimRe splits delimiter-separated tag strings: ASCII comma/semicolon,
// common CJK punctuation and whitespace.
var tagDelimRe = regexp.MustCompile(`[,;，；、\s]+`)

// modelPayload is the tolerant decoding target for the model's JSON object.
// Tags and confidence are kept raw because models return them in several
// shapes (array vs. delimited string, number vs. string).
type modelPayload struct {
	Title       string          `json:"title"`
	Tags        json.RawMessage `json:"tags"`
	Description string          `json:"description"`
	Summary     string          `json:"summary"`
	Confidence  json.RawMessage `json:"confidence"`
}

// decodePayload parses a model completion into a modelPayload, repairing
// common damage: leading/trailing prose around the JSON object, and single
// quotes substituted for double quotes. A completion that decodes but
// carries no usable fields (`null`, `{}`) is an invalid response, so the
// caller falls back to local extraction instead of storing empty metadata.
func decodePayload(raw string) (*modelPayload, error) {
	var payload modelPayload
	if err := json.Unmarshal([]byte(raw), &payload); err == nil {
		return checkPayload(&payload)
	}

	span := braceSpanRe.FindString(raw)
	if span == "" {
		return nil, fmt.Errorf("%w: no JSON object in completion", extraction.ErrInvalidResponse)
	}

	if err := json.Unmarshal([]byte(span), &payload); err == nil {
		return checkPayload(&payload)
	}

	// Naive quote repair for models that emit Python-style dicts.
	requoted := strings.ReplaceAll(span, "'", `"`)
	if err := json.Unmarshal([]byte(requoted), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", extraction.ErrInvalidResponse, err)
	}

	return checkPayload(&payload)
}

// checkPayload rejects payloads whose text fields are all blank.
func checkPayload(p *modelPayload) (*modelPayload, error) {
	if strings.TrimSpace(p.Title) == "" &&
		strings.TrimSpace(p.Description) == "" &&
		strings.TrimSpace(p.Summary) == "" {
		return nil, fmt.Errorf("%w: completion has no usable fields", extraction.ErrInvalidResponse)
	}
	return p, nil
}

// toResult normalizes the decoded payload into an extraction.Result,
// trimming text fields and carrying the verbatim completion as the raw
// model output.
func (p *modelPayload) toResult(raw string) *extraction.Result {
	return &extraction.Result{
		Title:          strings.TrimSpace(p.Title),
		Tags:           normalizeTags(p.Tags),
		Description:    strings.TrimSpace(p.Description),
		Summary:        strings.TrimSpace(p.Summary),
		RawModelOutput: raw,
		Confidence:     normalizeConfidence(p.Confidence),
		Source:         domain.ItemSourceLLM,
	}
}

// normalizeTags converts the raw tags value into a list of non-empty
// trimmed strings. Accepted shapes: JSON string array, a single
// delimiter-separated string, or a mixed array.
func normalizeTags(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return cleanTags(list)
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return cleanTags(tagDelimRe.Split(single, -1))
	}

	var mixed []any
	if err := json.Unmarshal(raw, &mixed); err == nil {
		out := make([]string, 0, len(mixed))
		for _, v := range mixed {
			out = append(out, fmt.Sprint(v))
		}
		return cleanTags(out)
	}

	return nil
}

// cleanTags trims every tag and drops empty ones.
func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if t := strings.TrimSpace(tag); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// normalizeConfidence renders the raw confidence value (number or string)
// as a string, or "" when absent.
func normalizeConfidence(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	return strings.TrimSpace(string(raw))
}
