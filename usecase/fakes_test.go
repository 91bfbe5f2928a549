package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/satriahrh/voicemap/server/domain/entities"
	"github.com/satriahrh/voicemap/server/domain/repositories"
)

type llmCall struct {
	model  string
	prompt string
}

type llmReply struct {
	text string
	err  error
}

// scriptedLLM returns replies in order; once exhausted it repeats the last one
type scriptedLLM struct {
	mu      sync.Mutex
	replies []llmReply
	calls   []llmCall
}

func (l *scriptedLLM) Complete(ctx context.Context, model, prompt string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, llmCall{model: model, prompt: prompt})
	if len(l.replies) == 0 {
		return "", errors.New("no scripted reply")
	}
	r := l.replies[0]
	if len(l.replies) > 1 {
		l.replies = l.replies[1:]
	}
	return r.text, r.err
}

func (l *scriptedLLM) Calls() []llmCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]llmCall(nil), l.calls...)
}

// routedLLM answers by model name, for pipelines that call several stages
type routedLLM struct {
	mu      sync.Mutex
	byModel map[string]llmReply
	calls   []llmCall
}

func (l *routedLLM) Complete(ctx context.Context, model, prompt string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, llmCall{model: model, prompt: prompt})
	r, ok := l.byModel[model]
	if !ok {
		return "", repositories.ErrLLMUnavailable
	}
	return r.text, r.err
}

type staticSettings struct {
	settings entities.UserSettings
}

func (s staticSettings) Current(ctx context.Context) entities.UserSettings {
	return s.settings
}

func testSettings() staticSettings {
	s := entities.DefaultUserSettings(entities.DefaultUserID)
	s.OllamaModel = "base-model"
	s.OllamaSummaryModel = "summary-model"
	s.OllamaMindMapModel = "mindmap-model"
	return staticSettings{settings: *s}
}

type memoryStore struct {
	mu          sync.Mutex
	nextID      int64
	transcripts []*entities.Transcript
	results     []*entities.LLMResult
	mindMaps    []*entities.MindMap
	failLLMSave bool
}

func (m *memoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memoryStore) addTranscript(sessionID, text string) *entities.Transcript {
	t := &entities.Transcript{SessionID: sessionID, Text: text, CreatedAt: time.Now().UTC()}
	_ = m.CreateTranscript(context.Background(), t)
	return t
}

func (m *memoryStore) CreateTranscript(ctx context.Context, t *entities.Transcript) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = m.id()
	cp := *t
	m.transcripts = append(m.transcripts, &cp)
	return nil
}

func (m *memoryStore) ListTranscripts(ctx context.Context, sessionID string, limit, offset int) ([]*entities.Transcript, error) {
	all, _ := m.AllTranscripts(ctx, sessionID)
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return all, nil
}

func (m *memoryStore) AllTranscripts(ctx context.Context, sessionID string) ([]*entities.Transcript, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*entities.Transcript{}
	for _, t := range m.transcripts {
		if t.SessionID == sessionID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memoryStore) UnprocessedTranscripts(ctx context.Context, sessionID string) ([]*entities.Transcript, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*entities.Transcript{}
	for _, t := range m.transcripts {
		if t.ProcessedAt == nil && (sessionID == "" || t.SessionID == sessionID) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memoryStore) MarkProcessed(ctx context.Context, ids []int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.transcripts {
		for _, id := range ids {
			if t.ID == id {
				ts := at
				t.ProcessedAt = &ts
			}
		}
	}
	return nil
}

func (m *memoryStore) CreateLLMResult(ctx context.Context, r *entities.LLMResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLLMSave {
		return repositories.ErrStorage
	}
	r.ID = m.id()
	cp := *r
	m.results = append(m.results, &cp)
	return nil
}

func (m *memoryStore) TranscriptLLMResults(ctx context.Context, transcriptID int64) ([]*entities.LLMResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*entities.LLMResult{}
	for _, r := range m.results {
		if r.TranscriptID == transcriptID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryStore) SessionLLMResults(ctx context.Context, sessionID string, limit, offset int) ([]*entities.LLMResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*entities.LLMResult{}
	for _, r := range m.results {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryStore) CreateMindMap(ctx context.Context, mm *entities.MindMap) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mm.ID = m.id()
	cp := *mm
	m.mindMaps = append(m.mindMaps, &cp)
	return nil
}

func (m *memoryStore) GetMindMap(ctx context.Context, id int64) (*entities.MindMap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mm := range m.mindMaps {
		if mm.ID == id {
			return mm, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memoryStore) SessionMindMaps(ctx context.Context, sessionID string, limit, offset int) ([]*entities.MindMap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*entities.MindMap{}
	for _, mm := range m.mindMaps {
		if mm.SessionID == sessionID {
			out = append(out, mm)
		}
	}
	return out, nil
}

func (m *memoryStore) DeleteMindMap(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, mm := range m.mindMaps {
		if mm.ID == id {
			m.mindMaps = append(m.mindMaps[:i], m.mindMaps[i+1:]...)
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (m *memoryStore) counts() (results, mindMaps int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.results), len(m.mindMaps)
}
