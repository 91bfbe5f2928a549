package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/voicemap/server/domain/repositories"
)

// DefaultGeminiModel is used when the requested model is not a Gemini model
const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiLLM implements the LargeLanguageModel interface using Google's Gemini API
type GeminiLLM struct {
	client   *genai.Client
	logger   *zap.Logger
	attempts int
}

var _ repositories.LargeLanguageModel = (*GeminiLLM)(nil)

// NewGeminiLLM creates a new Gemini LLM instance
func NewGeminiLLM(ctx context.Context, apiKey string, logger *zap.Logger) (*GeminiLLM, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiLLM{
		client:   client,
		logger:   logger,
		attempts: 3,
	}, nil
}

// Complete implements repositories.LargeLanguageModel. Model names that are
// not Gemini models (e.g. Ollama tags kept in user settings) fall back to
// DefaultGeminiModel.
func (g *GeminiLLM) Complete(ctx context.Context, model, prompt string) (string, error) {
	if !strings.HasPrefix(model, "gemini") {
		model = DefaultGeminiModel
	}
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	text, err := withRetry(ctx, g.logger, g.attempts, func(ctx context.Context) (string, error) {
		response, err := g.client.Models.GenerateContent(ctx, model, contents, nil)
		if err != nil {
			return "", err
		}
		if len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
			return "", errors.New("no content generated")
		}

		var b strings.Builder
		for _, part := range response.Candidates[0].Content.Parts {
			if part.Text != "" {
				b.WriteString(part.Text)
			}
		}
		if b.Len() == 0 {
			return "", errors.New("empty response")
		}
		return b.String(), nil
	})
	if err != nil {
		return "", fmt.Errorf("gemini %s: %w: %w", model, repositories.ErrLLMUnavailable, err)
	}
	return text, nil
}
