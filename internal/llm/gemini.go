package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GeminiModel implements Model on the Google Gemini API.
type GeminiModel struct {
	client *genai.Client
	model  string
}

// NewGeminiModel creates a Gemini-backed model client.
func NewGeminiModel(ctx context.Context, apiKey, model string) (*GeminiModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrBadRequest)
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiModel{client: client, model: model}, nil
}

const geminiPromptTemplate = `You summarize a tracked activity session into a short celebratory record.
Session intent: %s
Energy type: %s
Duration seconds: %d
Emotion: %s
Reflection: %s

Respond with a single JSON object:
{"title": "<short evocative title>", "badge": "<single emoji>", "insights": [{"kind": "<pattern|suggestion|milestone>", "text": "<one sentence>"}]}`

// Generate asks Gemini for an enrichment, forcing a JSON response and
// mapping provider failures onto the package error taxonomy.
func (g *GeminiModel) Generate(ctx context.Context, req Request) (*Response, error) {
	m := g.client.GenerativeModel(g.model)
	m.SetTemperature(0.4)
	m.ResponseMIMEType = "application/json"

	prompt := fmt.Sprintf(geminiPromptTemplate,
		req.Intent, req.EnergyType, req.DurationSeconds, req.Emotion, req.Reflection)

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, classifyGeminiError(err)
	}

	text, err := extractText(resp)
	if err != nil {
		return nil, err
	}

	var out Response
	if err := json.Unmarshal([]byte(cleanJSONBlock(text)), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if out.Title == "" || out.Badge == "" {
		return nil, fmt.Errorf("%w: missing title or badge", ErrMalformed)
	}
	if resp.UsageMetadata != nil {
		out.CostUnits = int64(resp.UsageMetadata.TotalTokenCount)
	}
	return &out, nil
}

// Name identifies the provider and model for logging.
func (g *GeminiModel) Name() string { return "gemini/" + g.model }

// Close releases the underlying client.
func (g *GeminiModel) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func classifyGeminiError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429:
			return fmt.Errorf("%w: %v", ErrThrottled, err)
		case apiErr.Code >= 500:
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		case apiErr.Code >= 400:
			return fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	// Transport-level failures without a status are treated as transient.
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// extractText flattens the first candidate's text parts.
func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates in response", ErrMalformed)
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("%w: no content in response", ErrMalformed)
	}
	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: no text parts in response", ErrMalformed)
	}
	return strings.Join(parts, ""), nil
}

// cleanJSONBlock strips markdown code fences some models wrap around JSON.
func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
