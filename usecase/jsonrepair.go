package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/voicemap/server/domain/repositories"
	"github.com/satriahrh/voicemap/server/internal/metrics"
)

// DefaultMaxRepairAttempts bounds the number of correction requests
const DefaultMaxRepairAttempts = 3

const jsonCorrectionPrompt = `The following JSON has parsing errors. Please fix the JSON syntax and return ONLY the corrected JSON without any additional text or explanations.

ERROR DETAILS:
%s

INVALID JSON:
%s

Please return ONLY the corrected JSON:`

var errNotObject = errors.New("top-level JSON value is not an object")

// JSONRepairer parses structured LLM output, asking the model to fix its own
// syntax errors a bounded number of times.
type JSONRepairer struct {
	llm         repositories.LargeLanguageModel
	maxAttempts int
	timeout     time.Duration
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewJSONRepairer creates a repairer. maxAttempts <= 0 selects the default.
func NewJSONRepairer(llm repositories.LargeLanguageModel, maxAttempts int, timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *JSONRepairer {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxRepairAttempts
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &JSONRepairer{
		llm:         llm,
		maxAttempts: maxAttempts,
		timeout:     timeout,
		metrics:     m,
		logger:      logger,
	}
}

// CleanJSON drops any prose before the first '{' or '[' and trims whitespace
func CleanJSON(s string) string {
	if i := strings.IndexAny(s, "{["); i > 0 {
		s = s[i:]
	}
	return strings.TrimSpace(s)
}

func decodeObject(s string) (map[string]any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	return obj, nil
}

// hasGraph reports whether obj carries both a nodes and an edges array
func hasGraph(obj map[string]any) bool {
	_, nodes := obj["nodes"].([]any)
	_, edges := obj["edges"].([]any)
	return nodes && edges
}

// ParseOrRepair returns the parsed mind-map object and the number of
// correction requests sent. ok is false when no valid object with both nodes
// and edges could be obtained; callers treat that as "no mind map this cycle".
func (r *JSONRepairer) ParseOrRepair(ctx context.Context, model, raw string) (obj map[string]any, attempts int, ok bool) {
	candidate := CleanJSON(raw)

	obj, err := decodeObject(candidate)
	if err == nil {
		return r.validate(obj, 0)
	}

	errDetails := err.Error()
	r.logger.Info("Structured output failed to parse, requesting correction",
		zap.Error(err),
		zap.Int("maxAttempts", r.maxAttempts))

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		r.metrics.RepairAttempted()

		reply, callErr := r.complete(ctx, model, fmt.Sprintf(jsonCorrectionPrompt, errDetails, candidate))
		if callErr != nil {
			r.logger.Warn("JSON correction request failed",
				zap.Int("attempt", attempt),
				zap.Error(callErr))
			if ctx.Err() != nil {
				return nil, attempt, false
			}
			continue
		}

		corrected := CleanJSON(reply)
		obj, err := decodeObject(corrected)
		if err == nil {
			r.logger.Info("JSON correction succeeded", zap.Int("attempt", attempt))
			return r.validate(obj, attempt)
		}

		r.logger.Warn("JSON correction attempt failed",
			zap.Int("attempt", attempt),
			zap.Error(err))
		errDetails = "Previous correction failed: " + err.Error()
		if corrected != "" {
			candidate = corrected
		}
	}

	r.logger.Error("All JSON correction attempts failed", zap.Int("attempts", r.maxAttempts))
	return nil, r.maxAttempts, false
}

func (r *JSONRepairer) validate(obj map[string]any, attempts int) (map[string]any, int, bool) {
	if !hasGraph(obj) {
		r.logger.Error("Invalid mind map structure: missing nodes or edges")
		return nil, attempts, false
	}
	return obj, attempts, true
}

func (r *JSONRepairer) complete(ctx context.Context, model, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.llm.Complete(ctx, model, prompt)
}
