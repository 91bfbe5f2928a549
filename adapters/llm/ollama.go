package llm

import (
	"context"
	"errors"
	"fmt"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	"go.uber.org/zap"

	"github.com/satriahrh/voicemap/server/domain/repositories"
)

// OllamaLLM implements the LargeLanguageModel interface against a local
// Ollama runtime through any-llm-go
type OllamaLLM struct {
	backend  anyllmlib.Provider
	logger   *zap.Logger
	attempts int
}

var _ repositories.LargeLanguageModel = (*OllamaLLM)(nil)

// NewOllamaLLM creates a client for the Ollama server at baseURL
func NewOllamaLLM(baseURL string, logger *zap.Logger) (*OllamaLLM, error) {
	var opts []anyllmlib.Option
	if baseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(baseURL))
	}
	backend, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama backend: %w", err)
	}
	return &OllamaLLM{
		backend:  backend,
		logger:   logger,
		attempts: 2,
	}, nil
}

// Complete implements repositories.LargeLanguageModel
func (o *OllamaLLM) Complete(ctx context.Context, model, prompt string) (string, error) {
	if model == "" {
		return "", errors.New("ollama: model must not be empty")
	}
	params := anyllmlib.CompletionParams{
		Model: model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleUser, Content: prompt},
		},
	}

	text, err := withRetry(ctx, o.logger, o.attempts, func(ctx context.Context) (string, error) {
		resp, err := o.backend.Completion(ctx, params)
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("empty choices in response")
		}
		return resp.Choices[0].Message.ContentString(), nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama %s: %w: %w", model, repositories.ErrLLMUnavailable, err)
	}

	o.logger.Debug("Ollama completion finished",
		zap.String("model", model),
		zap.Int("promptLength", len(prompt)),
		zap.Int("responseLength", len(text)))
	return text, nil
}
