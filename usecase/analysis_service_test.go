package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/voicemap/server/domain"
	"github.com/satriahrh/voicemap/server/domain/entities"
	"github.com/satriahrh/voicemap/server/internal/tasks"
)

type recordingNotifier struct {
	mu        sync.Mutex
	summaries []domain.SessionAnalysisPayload
	mindMaps  []domain.MindMapResultPayload
}

func (n *recordingNotifier) NotifySessionAnalysis(sessionID string, p domain.SessionAnalysisPayload) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.summaries = append(n.summaries, p)
}

func (n *recordingNotifier) NotifyMindMap(sessionID string, p domain.MindMapResultPayload) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.mindMaps = append(n.mindMaps, p)
}

type pipelineFixture struct {
	store    *memoryStore
	llm      *routedLLM
	executor *tasks.Executor
	notifier *recordingNotifier
	svc      *AnalysisService
}

func newPipelineFixture(t *testing.T, replies map[string]llmReply) *pipelineFixture {
	t.Helper()
	f := &pipelineFixture{
		store:    &memoryStore{},
		llm:      &routedLLM{byModel: replies},
		executor: tasks.NewExecutor(2, 5*time.Second, nil, zap.NewNop()),
		notifier: &recordingNotifier{},
	}
	repairer := NewJSONRepairer(f.llm, 3, time.Second, nil, zap.NewNop())
	f.svc = NewAnalysisService(f.store, f.llm, repairer, testSettings(), f.executor, time.Second, nil, zap.NewNop())
	f.svc.SetNotifier(f.notifier)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = f.executor.Shutdown(ctx)
	})
	return f
}

func (f *pipelineFixture) wait(t *testing.T, id tasks.TaskID) tasks.TaskInstance {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	inst, err := f.executor.Wait(ctx, id)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	return inst
}

func TestOnTranscriptCommitted(t *testing.T) {
	f := newPipelineFixture(t, map[string]llmReply{
		"summary-model": {text: "- budget was discussed"},
		"mindmap-model": {text: "Here you go: " + validGraph},
	})
	first := f.store.addTranscript("s1", "we need a budget")
	f.store.addTranscript("s1", "and a timeline")
	f.store.addTranscript("other", "unrelated")

	result, taskID, err := f.svc.OnTranscriptCommitted(context.Background(), "s1")
	if err != nil {
		t.Fatalf("OnTranscriptCommitted() error = %v", err)
	}
	if result.TranscriptID != first.ID {
		t.Errorf("summary anchored to %d, want first transcript %d", result.TranscriptID, first.ID)
	}
	if !strings.Contains(result.Prompt, "SESSION ID: s1\nCOMPLETE SESSION TRANSCRIPT:\n[Transcript 1]: we need a budget\n\n[Transcript 2]: and a timeline") {
		t.Errorf("summary prompt lacks the combined transcript:\n%s", result.Prompt)
	}
	if strings.Contains(result.Prompt, "unrelated") {
		t.Errorf("summary prompt leaked another session")
	}

	if inst := f.wait(t, taskID); inst.State != tasks.TaskStateCompleted {
		t.Fatalf("mind map task state = %s (%s)", inst.State, inst.Error)
	}

	results, mindMaps := f.store.counts()
	if results != 1 || mindMaps != 1 {
		t.Errorf("stored %d results and %d mind maps, want 1 and 1", results, mindMaps)
	}

	pending, _ := f.store.UnprocessedTranscripts(context.Background(), "s1")
	if len(pending) != 0 {
		t.Errorf("%d transcripts left unprocessed", len(pending))
	}

	f.notifier.mu.Lock()
	defer f.notifier.mu.Unlock()
	if len(f.notifier.summaries) != 1 || f.notifier.summaries[0].LLMResultID != result.ID {
		t.Errorf("session_analysis not delivered: %+v", f.notifier.summaries)
	}
	if len(f.notifier.mindMaps) != 1 || len(f.notifier.mindMaps[0].Nodes) != 1 {
		t.Errorf("mind_map_result not delivered: %+v", f.notifier.mindMaps)
	}
}

func TestSummaryFailureStillSchedulesMindMap(t *testing.T) {
	f := newPipelineFixture(t, map[string]llmReply{
		"summary-model": {err: errors.New("model not loaded")},
		"mindmap-model": {text: validGraph},
	})
	f.store.addTranscript("s1", "hello")

	result, taskID, err := f.svc.OnTranscriptCommitted(context.Background(), "s1")
	if err == nil {
		t.Fatal("OnTranscriptCommitted() error = nil, want summary failure")
	}
	if result != nil {
		t.Errorf("result = %+v, want nil", result)
	}
	if taskID == "" {
		t.Fatal("mind map was not scheduled")
	}

	if inst := f.wait(t, taskID); inst.State != tasks.TaskStateCompleted {
		t.Errorf("mind map task state = %s", inst.State)
	}
	results, mindMaps := f.store.counts()
	if results != 0 || mindMaps != 1 {
		t.Errorf("stored %d results and %d mind maps, want 0 and 1", results, mindMaps)
	}

	pending, _ := f.store.UnprocessedTranscripts(context.Background(), "s1")
	if len(pending) != 1 {
		t.Errorf("transcript should stay unprocessed for backfill, pending = %d", len(pending))
	}
}

func TestMindMapFailureLeavesSummary(t *testing.T) {
	f := newPipelineFixture(t, map[string]llmReply{
		"summary-model": {text: "summary"},
		"mindmap-model": {text: "I cannot produce JSON today"},
	})
	f.store.addTranscript("s1", "hello")

	_, taskID, err := f.svc.OnTranscriptCommitted(context.Background(), "s1")
	if err != nil {
		t.Fatalf("OnTranscriptCommitted() error = %v", err)
	}

	inst := f.wait(t, taskID)
	if inst.State != tasks.TaskStateFailed {
		t.Errorf("mind map task state = %s, want failed", inst.State)
	}
	results, mindMaps := f.store.counts()
	if results != 1 || mindMaps != 0 {
		t.Errorf("stored %d results and %d mind maps, want 1 and 0", results, mindMaps)
	}
}

func TestGenerateMindMapRandomSeed(t *testing.T) {
	f := newPipelineFixture(t, map[string]llmReply{
		"mindmap-model": {text: validGraph},
	})
	f.store.addTranscript("s1", "hello")

	mm, err := f.svc.GenerateMindMap(context.Background(), "s1", true)
	if err != nil {
		t.Fatalf("GenerateMindMap() error = %v", err)
	}
	if !strings.HasSuffix(mm.Prompt, randomSeedInstruction) {
		t.Errorf("prompt lacks the variation instruction")
	}
	if mm.Model != "mindmap-model" {
		t.Errorf("Model = %q, want mindmap-model", mm.Model)
	}
}

func TestGenerateMindMapNoTranscripts(t *testing.T) {
	f := newPipelineFixture(t, nil)

	if _, err := f.svc.GenerateMindMap(context.Background(), "empty", false); !errors.Is(err, ErrNoTranscripts) {
		t.Errorf("GenerateMindMap() error = %v, want ErrNoTranscripts", err)
	}
	if len(f.llm.calls) != 0 {
		t.Errorf("LLM called without transcripts")
	}
}

func TestSummarizeStorageFailure(t *testing.T) {
	f := newPipelineFixture(t, map[string]llmReply{
		"summary-model": {text: "summary"},
	})
	f.store.failLLMSave = true
	f.store.addTranscript("s1", "hello")

	if _, err := f.svc.Summarize(context.Background(), "s1"); err == nil {
		t.Fatal("Summarize() error = nil, want storage failure")
	}
	pending, _ := f.store.UnprocessedTranscripts(context.Background(), "s1")
	if len(pending) != 1 {
		t.Errorf("transcript marked processed without a stored summary")
	}
	if len(f.notifier.summaries) != 0 {
		t.Errorf("notified about an unsaved summary")
	}
}

func TestBackfillRunOnce(t *testing.T) {
	f := newPipelineFixture(t, map[string]llmReply{
		"summary-model": {text: "summary"},
	})
	f.store.addTranscript("a", "one")
	f.store.addTranscript("b", "two")
	f.store.addTranscript("a", "three")

	backfill := NewBackfillService(f.store, f.svc, time.Minute, zap.NewNop())

	report := backfill.RunOnce(context.Background(), "")
	if report.TranscriptsFound != 3 || report.SessionsFound != 2 || report.Processed != 3 {
		t.Errorf("report = %+v", report)
	}
	if len(report.Errors) != 0 {
		t.Errorf("unexpected errors: %v", report.Errors)
	}

	again := backfill.RunOnce(context.Background(), "")
	if again.TranscriptsFound != 0 {
		t.Errorf("second pass found %d transcripts", again.TranscriptsFound)
	}
}

func TestBackfillStartStop(t *testing.T) {
	f := newPipelineFixture(t, nil)
	backfill := NewBackfillService(f.store, f.svc, 10*time.Millisecond, zap.NewNop())

	backfill.Start()
	time.Sleep(30 * time.Millisecond)
	backfill.Stop()
	backfill.Stop()
}

// commitDuringLLM stores another transcript while the summary is generated
type commitDuringLLM struct {
	store *memoryStore
	once  sync.Once
	late  *entities.Transcript
}

func (l *commitDuringLLM) Complete(ctx context.Context, model, prompt string) (string, error) {
	l.once.Do(func() {
		l.late = l.store.addTranscript("s1", "said while the model was busy")
	})
	return "- summary", nil
}

func TestSummarizeMarksOnlySummarizedTranscripts(t *testing.T) {
	store := &memoryStore{}
	early := store.addTranscript("s1", "first words")
	model := &commitDuringLLM{store: store}
	executor := tasks.NewExecutor(1, time.Second, nil, zap.NewNop())
	t.Cleanup(func() { _ = executor.Shutdown(context.Background()) })
	repairer := NewJSONRepairer(model, 1, time.Second, nil, zap.NewNop())
	svc := NewAnalysisService(store, model, repairer, testSettings(), executor, time.Second, nil, zap.NewNop())

	result, err := svc.Summarize(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if strings.Contains(result.Prompt, "busy") {
		t.Fatal("late transcript leaked into the prompt")
	}

	pending, _ := store.UnprocessedTranscripts(context.Background(), "s1")
	if len(pending) != 1 || pending[0].ID != model.late.ID {
		t.Errorf("pending = %+v, want only the late transcript %d", pending, model.late.ID)
	}
	for _, p := range pending {
		if p.ID == early.ID {
			t.Errorf("summarized transcript %d still pending", early.ID)
		}
	}
}

func TestGenerateMindMapRejectsNonArrayGraph(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{name: "null collections", reply: `{"nodes": null, "edges": null}`},
		{name: "string nodes", reply: `{"nodes": "x", "edges": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPipelineFixture(t, map[string]llmReply{"mindmap-model": {text: tt.reply}})
			f.store.addTranscript("s1", "hello")

			_, err := f.svc.GenerateMindMap(context.Background(), "s1", false)
			if !errors.Is(err, ErrNoMindMap) {
				t.Errorf("GenerateMindMap() error = %v, want ErrNoMindMap", err)
			}
			if _, mindMaps := f.store.counts(); mindMaps != 0 {
				t.Errorf("stored %d mind maps, want 0", mindMaps)
			}
		})
	}
}
