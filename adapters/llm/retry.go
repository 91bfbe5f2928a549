package llm

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// withRetry calls fn up to attempts times, backing off one second more after
// each failure. It stops early when ctx is done.
func withRetry(ctx context.Context, logger *zap.Logger, attempts int, fn func(ctx context.Context) (string, error)) (string, error) {
	var (
		out string
		err error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		out, err = fn(ctx)
		if err == nil {
			return out, nil
		}

		logger.Warn("Failed to generate content, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if attempt < attempts-1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt+1) * time.Second):
			}
		}
	}
	return "", err
}
