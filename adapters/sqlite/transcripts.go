package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/satriahrh/voicemap/server/domain/entities"
)

const transcriptColumns = `id, session_id, text, language, model, confidence, processing_time, processed_at, created_at`

func scanTranscript(row rowScanner) (*entities.Transcript, error) {
	var (
		t              entities.Transcript
		confidence     sql.NullFloat64
		processingTime sql.NullFloat64
		processedAt    sql.NullInt64
		createdAt      int64
	)
	if err := row.Scan(&t.ID, &t.SessionID, &t.Text, &t.Language, &t.Model,
		&confidence, &processingTime, &processedAt, &createdAt); err != nil {
		return nil, err
	}
	if confidence.Valid {
		t.Confidence = &confidence.Float64
	}
	if processingTime.Valid {
		t.ProcessingTime = &processingTime.Float64
	}
	if processedAt.Valid {
		at := fromMicros(processedAt.Int64)
		t.ProcessedAt = &at
	}
	t.CreatedAt = fromMicros(createdAt)
	return &t, nil
}

func (s *Store) queryTranscripts(ctx context.Context, op, query string, args ...any) ([]*entities.Transcript, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	transcripts := []*entities.Transcript{}
	for rows.Next() {
		t, err := scanTranscript(rows)
		if err != nil {
			return nil, storageErr("scan transcript", err)
		}
		transcripts = append(transcripts, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return transcripts, nil
}

// CreateTranscript inserts a transcript and sets its id
func (s *Store) CreateTranscript(ctx context.Context, t *entities.Transcript) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	var processedAt *int64
	if t.ProcessedAt != nil {
		v := toMicros(*t.ProcessedAt)
		processedAt = &v
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO transcripts (session_id, text, language, model, confidence, processing_time, processed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, t.SessionID, t.Text, t.Language, t.Model, t.Confidence, t.ProcessingTime, processedAt, toMicros(t.CreatedAt))
	if err != nil {
		return storageErr("create transcript", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return storageErr("transcript id", err)
	}
	t.ID = id
	return nil
}

// ListTranscripts returns one page of a session's transcripts, newest first
func (s *Store) ListTranscripts(ctx context.Context, sessionID string, limit, offset int) ([]*entities.Transcript, error) {
	return s.queryTranscripts(ctx, "list transcripts", `
		SELECT `+transcriptColumns+` FROM transcripts
		WHERE session_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, sessionID, limit, offset)
}

// AllTranscripts returns every transcript of a session in chronological order
func (s *Store) AllTranscripts(ctx context.Context, sessionID string) ([]*entities.Transcript, error) {
	return s.queryTranscripts(ctx, "all transcripts", `
		SELECT `+transcriptColumns+` FROM transcripts
		WHERE session_id = ?
		ORDER BY created_at ASC, id ASC
	`, sessionID)
}

// UnprocessedTranscripts returns transcripts never consumed by a summary, oldest first
func (s *Store) UnprocessedTranscripts(ctx context.Context, sessionID string) ([]*entities.Transcript, error) {
	query := `SELECT ` + transcriptColumns + ` FROM transcripts WHERE processed_at IS NULL`
	args := []any{}
	if sessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY created_at ASC, id ASC`
	return s.queryTranscripts(ctx, "unprocessed transcripts", query, args...)
}

// MarkProcessed sets processed_at on the given transcripts
func (s *Store) MarkProcessed(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, toMicros(at))
	for _, id := range ids {
		args = append(args, id)
	}

	_, err := s.db.ExecContext(ctx, `UPDATE transcripts SET processed_at = ? WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return storageErr("mark transcripts processed", err)
	}
	return nil
}
