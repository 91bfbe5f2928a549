package repositories

import (
	"context"
	"time"

	"github.com/satriahrh/voicemap/server/domain/entities"
)

// SessionRepository defines data access methods for sessions
type SessionRepository interface {
	Create(ctx context.Context, session *entities.Session) error
	Get(ctx context.Context, id string) (*entities.Session, error)
	// List returns sessions ordered by last activity, newest first
	List(ctx context.Context, activeOnly bool, limit, offset int) ([]*entities.Session, error)
	// Update persists name and description
	Update(ctx context.Context, session *entities.Session) error
	Touch(ctx context.Context, id string) error
	SetActive(ctx context.Context, id string, active bool) error
}

// TranscriptRepository defines data access methods for transcripts
type TranscriptRepository interface {
	CreateTranscript(ctx context.Context, transcript *entities.Transcript) error
	// ListTranscripts returns one page of a session's transcripts, newest first
	ListTranscripts(ctx context.Context, sessionID string, limit, offset int) ([]*entities.Transcript, error)
	// AllTranscripts returns every transcript of a session in chronological order
	AllTranscripts(ctx context.Context, sessionID string) ([]*entities.Transcript, error)
	// UnprocessedTranscripts returns transcripts without a processed-at time,
	// oldest first. An empty sessionID matches every session.
	UnprocessedTranscripts(ctx context.Context, sessionID string) ([]*entities.Transcript, error)
	MarkProcessed(ctx context.Context, ids []int64, at time.Time) error
}

// LLMResultRepository defines data access methods for LLM results
type LLMResultRepository interface {
	CreateLLMResult(ctx context.Context, result *entities.LLMResult) error
	TranscriptLLMResults(ctx context.Context, transcriptID int64) ([]*entities.LLMResult, error)
	SessionLLMResults(ctx context.Context, sessionID string, limit, offset int) ([]*entities.LLMResult, error)
}

// MindMapRepository defines data access methods for mind maps
type MindMapRepository interface {
	CreateMindMap(ctx context.Context, mindMap *entities.MindMap) error
	GetMindMap(ctx context.Context, id int64) (*entities.MindMap, error)
	SessionMindMaps(ctx context.Context, sessionID string, limit, offset int) ([]*entities.MindMap, error)
	DeleteMindMap(ctx context.Context, id int64) error
}

// SettingsRepository persists user settings
type SettingsRepository interface {
	GetSettings(ctx context.Context, userID string) (*entities.UserSettings, error)
	SaveSettings(ctx context.Context, settings *entities.UserSettings) error
}

// AdminRepository holds store-wide maintenance operations
type AdminRepository interface {
	Stats(ctx context.Context) (*entities.DatabaseStats, error)
	SessionSummary(ctx context.Context, sessionID string) (*entities.SessionSummary, error)
	// EraseSessionContent deletes a session's LLM results, transcripts and
	// mind maps and bumps its last activity. The session itself survives.
	EraseSessionContent(ctx context.Context, sessionID string) error
}

// Storage is everything the server needs from a backing store
type Storage interface {
	SessionRepository
	TranscriptRepository
	LLMResultRepository
	MindMapRepository
	SettingsRepository
	AdminRepository
	Close() error
}
