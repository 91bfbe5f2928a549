package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/voicemap/server/domain/repositories"
)

// BackfillReport describes one backfill pass
type BackfillReport struct {
	TranscriptsFound int      `json:"total_found"`
	SessionsFound    int      `json:"sessions_found"`
	Processed        int      `json:"processed_count"`
	Errors           []string `json:"errors"`
}

// BackfillService periodically summarizes sessions whose transcripts were
// stored but never consumed by a summary, e.g. after an LLM outage.
type BackfillService struct {
	transcripts repositories.TranscriptRepository
	analysis    *AnalysisService
	interval    time.Duration
	logger      *zap.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewBackfillService creates a new backfill service
func NewBackfillService(transcripts repositories.TranscriptRepository, analysis *AnalysisService, interval time.Duration, logger *zap.Logger) *BackfillService {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &BackfillService{
		transcripts: transcripts,
		analysis:    analysis,
		interval:    interval,
		logger:      logger,
		stopChan:    make(chan struct{}),
	}
}

// Start begins the background backfill loop
func (s *BackfillService) Start() {
	s.wg.Add(1)
	go s.loop()
	s.logger.Info("Transcript backfill started", zap.Duration("interval", s.interval))
}

// Stop stops the loop and waits for a pass in progress to finish
func (s *BackfillService) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	s.logger.Info("Transcript backfill stopped")
}

func (s *BackfillService) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			report := s.RunOnce(ctx, "")
			cancel()
			if report.Processed > 0 || len(report.Errors) > 0 {
				s.logger.Info("Backfill pass finished",
					zap.Int("sessions", report.SessionsFound),
					zap.Int("processed", report.Processed),
					zap.Int("errors", len(report.Errors)))
			}
		}
	}
}

// RunOnce summarizes every session with unprocessed transcripts. An empty
// sessionID covers all sessions.
func (s *BackfillService) RunOnce(ctx context.Context, sessionID string) BackfillReport {
	report := BackfillReport{Errors: []string{}}

	pending, err := s.transcripts.UnprocessedTranscripts(ctx, sessionID)
	if err != nil {
		s.logger.Error("Failed to list unprocessed transcripts", zap.Error(err))
		report.Errors = append(report.Errors, err.Error())
		return report
	}
	report.TranscriptsFound = len(pending)

	// Oldest first, so sessions are visited in the order their backlog began
	seen := make(map[string]int)
	order := []string{}
	for _, t := range pending {
		if _, ok := seen[t.SessionID]; !ok {
			order = append(order, t.SessionID)
		}
		seen[t.SessionID]++
	}
	report.SessionsFound = len(order)

	for _, id := range order {
		if ctx.Err() != nil {
			report.Errors = append(report.Errors, ctx.Err().Error())
			break
		}
		if _, err := s.analysis.Summarize(ctx, id); err != nil {
			s.logger.Warn("Backfill summary failed",
				zap.String("sessionID", id),
				zap.Error(err))
			report.Errors = append(report.Errors, id+": "+err.Error())
			continue
		}
		report.Processed += seen[id]
	}
	return report
}
