package sqlite

import (
	"context"
	"time"

	"github.com/satriahrh/voicemap/server/domain/entities"
)

const llmResultColumns = `id, transcript_id, session_id, prompt, response, model, processing_time, created_at`

func scanLLMResult(row rowScanner) (*entities.LLMResult, error) {
	var (
		r         entities.LLMResult
		createdAt int64
	)
	if err := row.Scan(&r.ID, &r.TranscriptID, &r.SessionID, &r.Prompt, &r.Response,
		&r.Model, &r.ProcessingTime, &createdAt); err != nil {
		return nil, err
	}
	r.CreatedAt = fromMicros(createdAt)
	return &r, nil
}

func (s *Store) queryLLMResults(ctx context.Context, op, query string, args ...any) ([]*entities.LLMResult, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	results := []*entities.LLMResult{}
	for rows.Next() {
		r, err := scanLLMResult(rows)
		if err != nil {
			return nil, storageErr("scan llm result", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return results, nil
}

// CreateLLMResult inserts an LLM result and sets its id
func (s *Store) CreateLLMResult(ctx context.Context, r *entities.LLMResult) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO llm_results (transcript_id, session_id, prompt, response, model, processing_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.TranscriptID, r.SessionID, r.Prompt, r.Response, r.Model, r.ProcessingTime, toMicros(r.CreatedAt))
	if err != nil {
		return storageErr("create llm result", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return storageErr("llm result id", err)
	}
	r.ID = id
	return nil
}

// TranscriptLLMResults returns the results anchored to a transcript, newest first
func (s *Store) TranscriptLLMResults(ctx context.Context, transcriptID int64) ([]*entities.LLMResult, error) {
	return s.queryLLMResults(ctx, "transcript llm results", `
		SELECT `+llmResultColumns+` FROM llm_results
		WHERE transcript_id = ?
		ORDER BY created_at DESC, id DESC
	`, transcriptID)
}

// SessionLLMResults returns one page of a session's results, newest first
func (s *Store) SessionLLMResults(ctx context.Context, sessionID string, limit, offset int) ([]*entities.LLMResult, error) {
	return s.queryLLMResults(ctx, "session llm results", `
		SELECT `+llmResultColumns+` FROM llm_results
		WHERE session_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, sessionID, limit, offset)
}
