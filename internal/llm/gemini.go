package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"symptom-guide/internal/core"
)

// GeminiClient generates guidance with Google's Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

var _ core.Generator = (*GeminiClient)(nil)

// NewGeminiClient creates a Gemini client. The default model is
// gemini-2.0-flash.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

// Generate runs a single-turn generation.
func (g *GeminiClient) Generate(ctx context.Context, prompt string, d core.Decoding) (string, error) {
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(d.MaxNewTokens),
	}
	if d.Method == "" || d.Method == "greedy" {
		cfg.Temperature = genai.Ptr[float32](0)
		cfg.TopK = genai.Ptr[float32](1)
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}
	return result.Text(), nil
}
