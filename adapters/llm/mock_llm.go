package llm

import (
	"context"
	"strings"
	"sync"
)

const mockMindMap = `Here is the mind map:
{
  "nodes": [
    {"id": "budget", "label": "Budget", "type": "topic"},
    {"id": "launch", "label": "Launch timeline", "type": "concept"}
  ],
  "edges": [
    {"id": "e1", "source": "budget", "target": "launch", "label": "constrains", "type": "relationship"}
  ]
}`

// MockLLM is a placeholder LargeLanguageModel. It answers mind-map prompts
// with a fixed graph and everything else with a fixed summary.
type MockLLM struct {
	mu    sync.Mutex
	calls int
}

// NewMockLLM creates a new mock LLM
func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

// Complete implements repositories.LargeLanguageModel
func (m *MockLLM) Complete(ctx context.Context, model, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if strings.Contains(prompt, `"nodes"`) {
		return mockMindMap, nil
	}
	return "- Summary: the speakers discussed the budget and the launch timeline.", nil
}

// Calls returns how many completions were requested
func (m *MockLLM) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
