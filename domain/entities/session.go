package entities

import (
	"errors"
	"time"
)

// Session is one logical voice-interaction conversation. A session may span
// many websocket connections over time.
type Session struct {
	ID           string    `json:"id" bson:"_id"`
	Name         string    `json:"name,omitempty" bson:"name,omitempty"`
	Description  string    `json:"description,omitempty" bson:"description,omitempty"`
	IsActive     bool      `json:"is_active" bson:"is_active"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	LastActivity time.Time `json:"last_activity" bson:"last_activity"`
}

// NewSession creates an active session with the given id
func NewSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:           id,
		IsActive:     true,
		CreatedAt:    now,
		LastActivity: now,
	}
}

// Touch moves the last activity timestamp to now
func (s *Session) Touch() {
	s.LastActivity = time.Now().UTC()
}

// Deactivate marks the session inactive
func (s *Session) Deactivate() {
	s.IsActive = false
	s.Touch()
}

// Activate marks the session active again
func (s *Session) Activate() {
	s.IsActive = true
	s.Touch()
}

// IdleFor reports how long the session has been without activity
func (s *Session) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.LastActivity)
}

// Validate validates the session data
func (s *Session) Validate() error {
	if s.ID == "" {
		return errors.New("session id is required")
	}
	if len(s.Name) > 200 {
		return errors.New("session name must be at most 200 characters")
	}
	if len(s.Description) > 2000 {
		return errors.New("session description must be at most 2000 characters")
	}
	return nil
}

// SessionSummary aggregates counters for one session
type SessionSummary struct {
	SessionID        string    `json:"session_id"`
	Name             string    `json:"name,omitempty"`
	IsActive         bool      `json:"is_active"`
	TranscriptCount  int       `json:"transcript_count"`
	LLMResultCount   int       `json:"llm_result_count"`
	MindMapCount     int       `json:"mind_map_count"`
	EstimatedSeconds float64   `json:"estimated_duration_seconds"`
	CreatedAt        time.Time `json:"created_at"`
	LastActivity     time.Time `json:"last_activity"`
}

// SecondsPerTranscript is the rough audio length attributed to a transcript
// when estimating session duration.
const SecondsPerTranscript = 10.0

// DatabaseStats holds store-wide counters
type DatabaseStats struct {
	TotalSessions          int `json:"total_sessions"`
	ActiveSessions         int `json:"active_sessions"`
	TotalTranscripts       int `json:"total_transcripts"`
	TotalLLMResults        int `json:"total_llm_results"`
	TotalMindMaps          int `json:"total_mind_maps"`
	UnprocessedTranscripts int `json:"unprocessed_transcripts"`
}
