package api

import (
	"time"

	"github.com/satriahrh/voicemap/server/domain/entities"
	"github.com/satriahrh/voicemap/server/internal/websocket"
	"github.com/satriahrh/voicemap/server/usecase"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// MessageResponse acknowledges an operation without a body
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CreateSessionRequest represents the payload for creating a session
type CreateSessionRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// UpdateSessionRequest represents a partial session update
type UpdateSessionRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

// RenameSessionRequest represents the payload for renaming a session
type RenameSessionRequest struct {
	Name string `json:"name"`
}

// SessionResponse wraps one session
type SessionResponse struct {
	Success bool              `json:"success"`
	Session *entities.Session `json:"session"`
	Message string            `json:"message"`
}

// SessionListResponse wraps one page of sessions
type SessionListResponse struct {
	Success  bool                `json:"success"`
	Sessions []*entities.Session `json:"sessions"`
	Total    int                 `json:"total"`
	Message  string              `json:"message"`
}

// SessionSummaryResponse wraps the per-session counters
type SessionSummaryResponse struct {
	Success bool                     `json:"success"`
	Summary *entities.SessionSummary `json:"summary"`
	Message string                   `json:"message"`
}

// TranscriptListResponse wraps one page of transcripts
type TranscriptListResponse struct {
	Success     bool                   `json:"success"`
	Transcripts []*entities.Transcript `json:"transcripts"`
	Total       int                    `json:"total"`
	Message     string                 `json:"message"`
}

// LLMResultListResponse wraps one page of LLM results
type LLMResultListResponse struct {
	Success    bool                  `json:"success"`
	LLMResults []*entities.LLMResult `json:"llm_results"`
	Total      int                   `json:"total"`
	Message    string                `json:"message"`
}

// MindMapData is a mind map as served to clients
type MindMapData struct {
	ID        int64           `json:"id"`
	Nodes     []entities.Node `json:"nodes"`
	Edges     []entities.Edge `json:"edges"`
	SessionID string          `json:"session_id"`
	Timestamp time.Time       `json:"timestamp"`
}

func newMindMapData(m *entities.MindMap) MindMapData {
	return MindMapData{
		ID:        m.ID,
		Nodes:     m.Nodes,
		Edges:     m.Edges,
		SessionID: m.SessionID,
		Timestamp: m.CreatedAt,
	}
}

// MindMapResponse wraps one generated mind map
type MindMapResponse struct {
	Success bool        `json:"success"`
	MindMap MindMapData `json:"mind_map"`
}

// MindMapListResponse wraps a session's mind maps
type MindMapListResponse struct {
	Success  bool          `json:"success"`
	MindMaps []MindMapData `json:"mind_maps"`
}

// SettingsResponse wraps the effective settings
type SettingsResponse struct {
	Success  bool                  `json:"success"`
	Settings entities.UserSettings `json:"settings"`
	Message  string                `json:"message"`
}

// TemporarySettingsResponse reports the active temporary override
type TemporarySettingsResponse struct {
	Success           bool     `json:"success"`
	Message           string   `json:"message,omitempty"`
	AppliedSettings   []string `json:"applied_settings"`
	TemporarySettings any      `json:"temporary_settings"`
}

// WhisperLanguage is a selectable transcription language
type WhisperLanguage struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// WhisperModel is a selectable transcription model
type WhisperModel struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// StatsResponse wraps store-wide counters
type StatsResponse struct {
	Success bool                    `json:"success"`
	Stats   *entities.DatabaseStats `json:"stats"`
}

// BackfillResponse reports a manual backfill pass
type BackfillResponse struct {
	Success bool `json:"success"`
	usecase.BackfillReport
}

// ActiveSessionsResponse lists live websocket connections
type ActiveSessionsResponse struct {
	Success       bool                                `json:"success"`
	Sessions      map[string]websocket.ConnectionInfo `json:"sessions"`
	TotalSessions int                                 `json:"total_sessions"`
}

// CleanupResponse reports a manual reaper pass
type CleanupResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Closed  int    `json:"closed"`
}
