package repositories

import "context"

// LargeLanguageModel abstracts any completion provider
type LargeLanguageModel interface {
	// Complete sends a single-turn prompt to model and returns the reply text
	Complete(ctx context.Context, model, prompt string) (string, error)
}
