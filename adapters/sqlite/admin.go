package sqlite

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/voicemap/server/domain/entities"
)

// Stats returns store-wide counters
func (s *Store) Stats(ctx context.Context) (*entities.DatabaseStats, error) {
	var stats entities.DatabaseStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM sessions),
			(SELECT COUNT(*) FROM sessions WHERE is_active = 1),
			(SELECT COUNT(*) FROM transcripts),
			(SELECT COUNT(*) FROM llm_results),
			(SELECT COUNT(*) FROM mind_maps),
			(SELECT COUNT(*) FROM transcripts WHERE processed_at IS NULL)
	`).Scan(&stats.TotalSessions, &stats.ActiveSessions, &stats.TotalTranscripts,
		&stats.TotalLLMResults, &stats.TotalMindMaps, &stats.UnprocessedTranscripts)
	if err != nil {
		return nil, storageErr("database stats", err)
	}
	return &stats, nil
}

// SessionSummary returns counters for one session
func (s *Store) SessionSummary(ctx context.Context, sessionID string) (*entities.SessionSummary, error) {
	var (
		sum                     entities.SessionSummary
		createdAt, lastActivity int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT s.id, s.name, s.is_active, s.created_at, s.last_activity,
			(SELECT COUNT(*) FROM transcripts WHERE session_id = s.id),
			(SELECT COUNT(*) FROM llm_results WHERE session_id = s.id),
			(SELECT COUNT(*) FROM mind_maps WHERE session_id = s.id)
		FROM sessions s WHERE s.id = ?
	`, sessionID).Scan(&sum.SessionID, &sum.Name, &sum.IsActive, &createdAt, &lastActivity,
		&sum.TranscriptCount, &sum.LLMResultCount, &sum.MindMapCount)
	if isNoRows(err) {
		return nil, notFound("session", sessionID)
	}
	if err != nil {
		return nil, storageErr("session summary", err)
	}
	sum.CreatedAt = fromMicros(createdAt)
	sum.LastActivity = fromMicros(lastActivity)
	sum.EstimatedSeconds = float64(sum.TranscriptCount) * entities.SecondsPerTranscript
	return &sum, nil
}

// EraseSessionContent deletes a session's LLM results, transcripts and mind
// maps in one transaction and bumps its last activity
func (s *Store) EraseSessionContent(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin erase", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE sessions SET last_activity = ? WHERE id = ?`, toMicros(time.Now()), sessionID)
	if err != nil {
		return storageErr("touch session", err)
	}
	if err := checkAffected(res, "session", sessionID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM llm_results
		WHERE session_id = ? OR transcript_id IN (SELECT id FROM transcripts WHERE session_id = ?)
	`, sessionID, sessionID); err != nil {
		return storageErr("erase llm results", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM transcripts WHERE session_id = ?`, sessionID); err != nil {
		return storageErr("erase transcripts", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM mind_maps WHERE session_id = ?`, sessionID); err != nil {
		return storageErr("erase mind maps", err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit erase", err)
	}
	s.logger.Info("Session content erased", zap.String("sessionID", sessionID))
	return nil
}
