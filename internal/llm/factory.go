package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"symptom-guide/internal/config"
	"symptom-guide/internal/core"
)

// NewGenerator returns the generation backend selected by
// cfg.Generation.Provider. The openai provider reuses oa.
func NewGenerator(ctx context.Context, cfg config.Config, oa *OpenAIClient, httpClient *http.Client) (core.Generator, error) {
	switch cfg.Generation.Provider {
	case "watsonx":
		if cfg.Generation.APIKey == "" || cfg.Generation.ProjectID == "" {
			return nil, errors.New("watsonx provider needs WATSONX_API_KEY and WATSONX_PROJECT_ID")
		}
		return NewWatsonxClient(cfg.Generation, httpClient), nil
	case "openai":
		if oa == nil || cfg.OpenAI.APIKey == "" {
			return nil, errors.New("openai provider needs OPENAI_API_KEY")
		}
		return oa, nil
	case "gemini":
		return NewGeminiClient(ctx, cfg.Gemini.APIKey, foreignModel(cfg.Generation.Model))
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Generation.Provider)
	}
}

// foreignModel drops watsonx model ids so other providers fall back to
// their own default.
func foreignModel(model string) string {
	if strings.HasPrefix(model, "ibm/") {
		return ""
	}
	return model
}
