package llm

import (
	"context"
	"fmt"

	"github.com/pulsekeep/pulsekeep/internal/config"
)

// NewModel constructs the configured model provider.
func NewModel(ctx context.Context, cfg *config.Config) (Model, error) {
	switch cfg.ModelProvider {
	case "gemini":
		return NewGeminiModel(ctx, cfg.GeminiAPIKey, cfg.ModelName)
	case "http":
		return NewHTTPModel(cfg.ModelBaseURL, cfg.ModelName), nil
	default:
		return nil, fmt.Errorf("unsupported model provider: %s", cfg.ModelProvider)
	}
}
