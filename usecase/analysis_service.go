package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/voicemap/server/domain"
	"github.com/satriahrh/voicemap/server/domain/entities"
	"github.com/satriahrh/voicemap/server/domain/repositories"
	"github.com/satriahrh/voicemap/server/internal/metrics"
	"github.com/satriahrh/voicemap/server/internal/tasks"
)

const randomSeedInstruction = "\n\nIMPORTANT: Please add some randomness and creativity to your mind map generation. " +
	"Consider alternative interpretations, unexpected connections, or creative groupings of concepts. " +
	"This should result in a different mind map structure than a standard analysis."

// TaskNameMindMap names mind-map jobs on the executor
const TaskNameMindMap = "mind_map"

// LLM stages, used for metrics and logs
const (
	StageSummary = "summary"
	StageMindMap = "mind_map"
)

var (
	// ErrNoTranscripts is returned when a session has nothing to analyze
	ErrNoTranscripts = errors.New("session has no transcripts")
	// ErrNoMindMap is returned when the model produced no usable graph
	ErrNoMindMap = errors.New("no mind map produced")
)

// AnalysisStore is the storage the analysis pipeline reads and writes
type AnalysisStore interface {
	repositories.TranscriptRepository
	repositories.LLMResultRepository
	repositories.MindMapRepository
}

// Notifier delivers analysis results to whoever is connected for a session.
// Delivery is best effort; results for a session with no live connection are dropped.
type Notifier interface {
	NotifySessionAnalysis(sessionID string, payload domain.SessionAnalysisPayload)
	NotifyMindMap(sessionID string, payload domain.MindMapResultPayload)
}

// AnalysisService runs the per-session summary and mind-map stages
type AnalysisService struct {
	store    AnalysisStore
	llm      repositories.LargeLanguageModel
	repairer *JSONRepairer
	settings SettingsProvider
	executor *tasks.Executor
	notifier Notifier
	timeout  time.Duration
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewAnalysisService creates a new analysis service. notifier may be nil.
func NewAnalysisService(
	store AnalysisStore,
	llm repositories.LargeLanguageModel,
	repairer *JSONRepairer,
	settings SettingsProvider,
	executor *tasks.Executor,
	timeout time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) *AnalysisService {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &AnalysisService{
		store:    store,
		llm:      llm,
		repairer: repairer,
		settings: settings,
		executor: executor,
		timeout:  timeout,
		metrics:  m,
		logger:   logger,
	}
}

// SetNotifier sets the result sink. The hub and the pipeline reference each
// other, so the notifier is attached after both exist.
func (s *AnalysisService) SetNotifier(n Notifier) {
	s.notifier = n
}

// OnTranscriptCommitted runs the summary stage synchronously and then
// schedules the mind-map stage on the executor. The mind map is scheduled
// even when the summary fails. The returned error is for logging only.
func (s *AnalysisService) OnTranscriptCommitted(ctx context.Context, sessionID string) (*entities.LLMResult, tasks.TaskID, error) {
	result, summaryErr := s.Summarize(ctx, sessionID)
	if summaryErr != nil {
		s.logger.Error("Session summary failed",
			zap.String("sessionID", sessionID),
			zap.Error(summaryErr))
	}

	taskID, err := s.ScheduleMindMap(sessionID, false)
	if err != nil {
		s.logger.Error("Failed to schedule mind map",
			zap.String("sessionID", sessionID),
			zap.Error(err))
		return result, "", errors.Join(summaryErr, err)
	}
	return result, taskID, summaryErr
}

// Summarize produces and persists a running summary over every transcript of
// the session. The transcripts it read are marked processed once the summary
// is stored.
func (s *AnalysisService) Summarize(ctx context.Context, sessionID string) (*entities.LLMResult, error) {
	transcripts, err := s.store.AllTranscripts(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transcripts: %w", err)
	}
	if len(transcripts) == 0 {
		return nil, ErrNoTranscripts
	}

	current := s.settings.Current(ctx)
	model := current.SummaryModel()
	prompt := strings.ReplaceAll(current.OllamaTaskPrompt, "{transcript}", sessionContext(sessionID, transcripts))

	s.logger.Info("Generating session summary",
		zap.String("sessionID", sessionID),
		zap.Int("transcripts", len(transcripts)),
		zap.String("model", model))

	start := time.Now()
	reply, err := s.complete(ctx, StageSummary, model, prompt)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	result := &entities.LLMResult{
		TranscriptID:   transcripts[0].ID,
		SessionID:      sessionID,
		Prompt:         prompt,
		Response:       reply,
		Model:          model,
		ProcessingTime: elapsed.Seconds(),
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.CreateLLMResult(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to save summary: %w", err)
	}

	if err := s.markProcessed(ctx, transcripts); err != nil {
		s.logger.Warn("Failed to mark transcripts processed",
			zap.String("sessionID", sessionID),
			zap.Error(err))
	}

	s.logger.Info("Session summary stored",
		zap.String("sessionID", sessionID),
		zap.Int64("llmResultID", result.ID),
		zap.Duration("elapsed", elapsed))

	if s.notifier != nil {
		s.notifier.NotifySessionAnalysis(sessionID, domain.SessionAnalysisPayload{
			SessionID:      sessionID,
			LLMResultID:    result.ID,
			ProcessingTime: result.ProcessingTime,
			Analysis:       result.Response,
		})
	}
	return result, nil
}

// markProcessed marks the transcripts that fed a stored summary. Transcripts
// committed while the model was running stay pending for the next pass.
func (s *AnalysisService) markProcessed(ctx context.Context, summarized []*entities.Transcript) error {
	ids := make([]int64, 0, len(summarized))
	for _, t := range summarized {
		if !t.IsProcessed() {
			ids = append(ids, t.ID)
		}
	}
	return s.store.MarkProcessed(ctx, ids, time.Now().UTC())
}

// ScheduleMindMap submits a detached mind-map job. The job owns its context,
// so it survives the connection that scheduled it.
func (s *AnalysisService) ScheduleMindMap(sessionID string, randomSeed bool) (tasks.TaskID, error) {
	return s.executor.Submit(tasks.Task{
		Name:      TaskNameMindMap,
		SessionID: sessionID,
		Run: func(ctx context.Context) error {
			_, err := s.GenerateMindMap(ctx, sessionID, randomSeed)
			return err
		},
	})
}

// GenerateMindMap extracts, repairs and persists a mind map for the session.
// ErrNoMindMap means the model output could not be turned into a graph.
func (s *AnalysisService) GenerateMindMap(ctx context.Context, sessionID string, randomSeed bool) (*entities.MindMap, error) {
	transcripts, err := s.store.AllTranscripts(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transcripts: %w", err)
	}
	if len(transcripts) == 0 {
		return nil, ErrNoTranscripts
	}

	current := s.settings.Current(ctx)
	model := current.MindMapModel()
	prompt := strings.ReplaceAll(current.OllamaMindMapPrompt, "{transcript}", sessionContext(sessionID, transcripts))
	if randomSeed {
		prompt += randomSeedInstruction
	}

	start := time.Now()
	reply, err := s.complete(ctx, StageMindMap, model, prompt)
	if err != nil {
		return nil, err
	}

	graph, attempts, ok := s.repairer.ParseOrRepair(ctx, model, reply)
	if !ok {
		s.logger.Warn("No mind map this cycle",
			zap.String("sessionID", sessionID),
			zap.Int("repairAttempts", attempts))
		return nil, ErrNoMindMap
	}
	nodes, edges, err := entities.GraphFromMap(graph)
	if err != nil {
		s.logger.Warn("Mind map graph has an unexpected shape",
			zap.String("sessionID", sessionID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrNoMindMap, err)
	}

	mindMap := &entities.MindMap{
		SessionID:      sessionID,
		Nodes:          nodes,
		Edges:          edges,
		Prompt:         prompt,
		Model:          model,
		ProcessingTime: time.Since(start).Seconds(),
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.CreateMindMap(ctx, mindMap); err != nil {
		return nil, fmt.Errorf("failed to save mind map: %w", err)
	}
	s.metrics.MindMapCreated()

	s.logger.Info("Mind map stored",
		zap.String("sessionID", sessionID),
		zap.Int64("mindMapID", mindMap.ID),
		zap.Int("nodes", len(nodes)),
		zap.Int("edges", len(edges)),
		zap.Int("repairAttempts", attempts))

	if s.notifier != nil {
		s.notifier.NotifyMindMap(sessionID, domain.MindMapResultPayload{
			Nodes:     nodes,
			Edges:     edges,
			SessionID: sessionID,
			Timestamp: mindMap.CreatedAt.Format(time.RFC3339Nano),
		})
	}
	return mindMap, nil
}

func (s *AnalysisService) complete(ctx context.Context, stage, model, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	reply, err := s.llm.Complete(ctx, model, prompt)
	s.metrics.LLMCall(stage, err == nil, time.Since(start))
	if err != nil {
		return "", fmt.Errorf("%s call failed: %w", stage, err)
	}
	return reply, nil
}

// sessionContext joins transcripts in chronological order, tagging each with its id
func sessionContext(sessionID string, transcripts []*entities.Transcript) string {
	parts := make([]string, 0, len(transcripts))
	for _, t := range transcripts {
		parts = append(parts, fmt.Sprintf("[Transcript %d]: %s", t.ID, t.Text))
	}
	return fmt.Sprintf("SESSION ID: %s\nCOMPLETE SESSION TRANSCRIPT:\n%s", sessionID, strings.Join(parts, "\n\n"))
}
