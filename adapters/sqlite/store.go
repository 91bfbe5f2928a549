package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/satriahrh/voicemap/server/domain/repositories"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	is_active INTEGER NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL,
	last_activity INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS transcripts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	text TEXT NOT NULL,
	language TEXT NOT NULL DEFAULT '',
	model TEXT NOT NULL DEFAULT '',
	confidence REAL,
	processing_time REAL,
	processed_at INTEGER,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transcripts_session ON transcripts(session_id, id);
CREATE INDEX IF NOT EXISTS idx_transcripts_unprocessed ON transcripts(processed_at) WHERE processed_at IS NULL;

CREATE TABLE IF NOT EXISTS llm_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	transcript_id INTEGER NOT NULL REFERENCES transcripts(id) ON DELETE CASCADE,
	session_id TEXT NOT NULL DEFAULT '',
	prompt TEXT NOT NULL,
	response TEXT NOT NULL,
	model TEXT NOT NULL,
	processing_time REAL NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_llm_results_session ON llm_results(session_id, id);

CREATE TABLE IF NOT EXISTS mind_maps (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	nodes TEXT NOT NULL,
	edges TEXT NOT NULL,
	prompt TEXT NOT NULL DEFAULT '',
	model TEXT NOT NULL DEFAULT '',
	processing_time REAL NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_mind_maps_session ON mind_maps(session_id, id);

CREATE TABLE IF NOT EXISTS user_settings (
	user_id TEXT PRIMARY KEY,
	whisper_language TEXT NOT NULL,
	whisper_model TEXT NOT NULL,
	ollama_model TEXT NOT NULL,
	ollama_summary_model TEXT NOT NULL DEFAULT '',
	ollama_mind_map_model TEXT NOT NULL DEFAULT '',
	ollama_task_prompt TEXT NOT NULL,
	ollama_mind_map_prompt TEXT NOT NULL,
	voice_chunk_length INTEGER NOT NULL,
	voice_chunks_number INTEGER NOT NULL,
	active_session_id TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// Store implements repositories.Storage on SQLite
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ repositories.Storage = (*Store)(nil)

// Open opens (creating if needed) the database at dsn and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite serializes writers; a single connection also keeps ":memory:" databases alive
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	logger.Info("SQLite store ready", zap.String("dsn", dsn))
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, repositories.ErrStorage, err)
}

func notFound(what string, id any) error {
	return fmt.Errorf("%s %v: %w", what, id, repositories.ErrNotFound)
}

func toMicros(t time.Time) int64 {
	return t.UTC().UnixMicro()
}

func fromMicros(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}

func checkAffected(res sql.Result, what string, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("rows affected", err)
	}
	if n == 0 {
		return notFound(what, id)
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
