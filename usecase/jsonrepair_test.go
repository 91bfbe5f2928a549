package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

const validGraph = `{"nodes":[{"id":"n1","label":"Budget","type":"topic"}],"edges":[]}`

func newTestRepairer(llm *scriptedLLM) *JSONRepairer {
	return NewJSONRepairer(llm, 3, time.Second, nil, zap.NewNop())
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "already clean", in: `{"a":1}`, want: `{"a":1}`},
		{name: "leading prose", in: "Here is your mind map:\n{\"a\":1}", want: `{"a":1}`},
		{name: "array", in: "Sure! [1,2]", want: "[1,2]"},
		{name: "surrounding whitespace", in: "  \n{\"a\":1}\n ", want: `{"a":1}`},
		{name: "no json", in: "  nothing here ", want: "nothing here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanJSON(tt.in); got != tt.want {
				t.Errorf("CleanJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseOrRepairValidFirstTime(t *testing.T) {
	llm := &scriptedLLM{}
	r := newTestRepairer(llm)

	obj, attempts, ok := r.ParseOrRepair(context.Background(), "m", "The graph:\n"+validGraph)
	if !ok {
		t.Fatal("ParseOrRepair() ok = false")
	}
	if attempts != 0 {
		t.Errorf("attempts = %d, want 0", attempts)
	}
	if len(llm.Calls()) != 0 {
		t.Errorf("LLM called %d times, want 0", len(llm.Calls()))
	}
	if _, ok := obj["nodes"]; !ok {
		t.Errorf("parsed object lacks nodes")
	}
}

func TestParseOrRepairOneCorrection(t *testing.T) {
	llm := &scriptedLLM{replies: []llmReply{{text: "Fixed:\n" + validGraph}}}
	r := newTestRepairer(llm)

	broken := strings.TrimSuffix(validGraph, "}")
	_, attempts, ok := r.ParseOrRepair(context.Background(), "m", broken)
	if !ok {
		t.Fatal("ParseOrRepair() ok = false")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}

	calls := llm.Calls()
	if len(calls) != 1 {
		t.Fatalf("LLM called %d times, want 1", len(calls))
	}
	if !strings.Contains(calls[0].prompt, broken) {
		t.Errorf("correction prompt does not carry the invalid JSON")
	}
	if calls[0].model != "m" {
		t.Errorf("correction used model %q", calls[0].model)
	}
}

func TestParseOrRepairGivesUp(t *testing.T) {
	llm := &scriptedLLM{replies: []llmReply{{text: `{"nodes": [`}}}
	r := newTestRepairer(llm)

	obj, attempts, ok := r.ParseOrRepair(context.Background(), "m", `{"nodes": oops`)
	if ok || obj != nil {
		t.Fatalf("ParseOrRepair() = %v, %v; want nil, false", obj, ok)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}

	calls := llm.Calls()
	if len(calls) != 3 {
		t.Fatalf("LLM called %d times, want 3", len(calls))
	}
	if !strings.Contains(calls[1].prompt, "Previous correction failed") {
		t.Errorf("retry prompt lacks the previous error")
	}
	if !strings.Contains(calls[1].prompt, `{"nodes": [`) {
		t.Errorf("retry prompt does not feed the previous attempt's output")
	}
}

func TestParseOrRepairRejectsMissingGraphKeys(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "missing edges", raw: `{"nodes": []}`},
		{name: "missing nodes", raw: `{"edges": []}`},
		{name: "array", raw: `[1, 2]`},
		{name: "null collections", raw: `{"nodes": null, "edges": null}`},
		{name: "string nodes", raw: `{"nodes": "x", "edges": []}`},
		{name: "object edges", raw: `{"nodes": [], "edges": {}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &scriptedLLM{replies: []llmReply{{text: tt.raw}}}
			r := newTestRepairer(llm)

			if _, _, ok := r.ParseOrRepair(context.Background(), "m", tt.raw); ok {
				t.Errorf("ParseOrRepair() ok = true for %s", tt.raw)
			}
		})
	}
}

func TestParseOrRepairLLMErrors(t *testing.T) {
	llm := &scriptedLLM{replies: []llmReply{{err: errors.New("connection refused")}}}
	r := newTestRepairer(llm)

	_, attempts, ok := r.ParseOrRepair(context.Background(), "m", "{broken")
	if ok {
		t.Fatal("ParseOrRepair() ok = true")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestParseOrRepairStopsOnCancelledContext(t *testing.T) {
	llm := &scriptedLLM{replies: []llmReply{{err: context.Canceled}}}
	r := newTestRepairer(llm)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, attempts, ok := r.ParseOrRepair(ctx, "m", "{broken")
	if ok {
		t.Fatal("ParseOrRepair() ok = true")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}
