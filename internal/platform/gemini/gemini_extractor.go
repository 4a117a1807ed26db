package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/inkwelldev/inkwell-api/internal/config"
	"github.com/inkwelldev/inkwell-api/internal/extraction"
)

// systemInstruction constrains the model to the structured output the
// pipeline can apply to an item.
const systemInstruction = `You are a metadata extraction assistant. ` +
	`Respond with a single JSON object with exactly the keys "title", "tags", ` +
	`"description" and "summary", plus an optional "confidence" between 0 and 1. ` +
	`"title" is a short title for the text. "tags" is an array of up to 6 short ` +
	`keyword strings. "description" is at most 120 characters. "summary" is a ` +
	`concise summary in two or three sentences. ` +
	`Do not wrap the JSON in markdown fences and do not add any other text.`

// GeminiExtractor implements the extraction.Extractor interface using
// Google's Gemini API as the remote strategy.
type GeminiExtractor struct {
	logger          *slog.Logger
	client          *genai.Client
	model           string
	timeout         time.Duration
	maxOutputTokens int32
}

// NewGeminiExtractor creates a new GeminiExtractor from the LLM
// configuration. It fails if the API key or model name is missing; callers
// that want local-only extraction simply never construct one.
func NewGeminiExtractor(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.LLMConfig,
) (*GeminiExtractor, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key cannot be empty", extraction.ErrInvalidConfig)
	}

	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", extraction.ErrInvalidConfig)
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("%w: timeout must be positive", extraction.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			extraction.ErrInvalidConfig, err)
	}

	return &GeminiExtractor{
		logger:          logger.With("component", "gemini_extractor"),
		client:          client,
		model:           cfg.ModelName,
		timeout:         cfg.Timeout,
		maxOutputTokens: int32(cfg.MaxOutputTokens),
	}, nil
}

// Ensure GeminiExtractor implements the extraction.Extractor interface
var _ extraction.Extractor = (*GeminiExtractor)(nil)

// Extract implements extraction.Extractor. It calls the model with
// deterministic sampling (temperature 0), bounded output length and the
// configured timeout, then parses the completion into a Result. Any call or
// parse failure is returned as an error for the caller to fall back on.
func (e *GeminiExtractor) Extract(ctx context.Context, text string) (*extraction.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0),
		MaxOutputTokens: e.maxOutputTokens,
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		},
	}

	resp, err := e.client.Models.GenerateContent(ctx, e.model, genai.Text(text), cfg)
	if err != nil {
		e.logger.WarnContext(ctx, "Gemini API call failed",
			"error", err,
			"model", e.model)
		return nil, fmt.Errorf("%w: %v", extraction.ErrRemoteUnavailable, err)
	}

	raw, err := responseText(resp)
	if err != nil {
		return nil, err
	}

	payload, err := decodePayload(raw)
	if err != nil {
		e.logger.WarnContext(ctx, "Gemini response could not be parsed",
			"error", err,
			"response_length", len(raw))
		return nil, err
	}

	result := payload.toResult(raw)

	e.logger.DebugContext(ctx, "Gemini extraction succeeded",
		"title_length", len(result.Title),
		"tag_count", len(result.Tags))

	return result, nil
}

// responseText extracts the completion text from a Gemini response,
// rejecting empty, blocked or malformed responses.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates in response", extraction.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: content blocked by safety filters", extraction.ErrInvalidResponse)
	}
	if candidate.Content == nil {
		return "", fmt.Errorf("%w: empty content in response", extraction.ErrInvalidResponse)
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}

	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty completion text", extraction.ErrInvalidResponse)
	}

	return text, nil
}
