package entities

import (
	"errors"
	"strings"
	"time"
)

// Transcript is the decoded text of one flushed batch of audio.
// Text is immutable once stored; ProcessedAt is set when the summary stage
// has consumed it.
type Transcript struct {
	ID             int64      `json:"id" bson:"_id"`
	SessionID      string     `json:"session_id" bson:"session_id"`
	Text           string     `json:"text" bson:"text"`
	Language       string     `json:"language,omitempty" bson:"language,omitempty"`
	Model          string     `json:"model,omitempty" bson:"model,omitempty"`
	Confidence     *float64   `json:"confidence,omitempty" bson:"confidence,omitempty"`
	ProcessingTime *float64   `json:"processing_time,omitempty" bson:"processing_time,omitempty"`
	ProcessedAt    *time.Time `json:"processed_at,omitempty" bson:"processed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at" bson:"created_at"`
}

// Validate validates the transcript before it is stored
func (t *Transcript) Validate() error {
	if t.SessionID == "" {
		return errors.New("session_id is required")
	}
	if strings.TrimSpace(t.Text) == "" {
		return errors.New("text is required")
	}
	return nil
}

// IsProcessed reports whether downstream analysis has consumed the transcript
func (t *Transcript) IsProcessed() bool {
	return t.ProcessedAt != nil
}

// LLMResult is an immutable record of one LLM call. Session-level analyses
// are anchored to the first transcript of the batch.
type LLMResult struct {
	ID             int64     `json:"id" bson:"_id"`
	TranscriptID   int64     `json:"transcript_id" bson:"transcript_id"`
	SessionID      string    `json:"session_id,omitempty" bson:"session_id"`
	Prompt         string    `json:"prompt" bson:"prompt"`
	Response       string    `json:"response" bson:"response"`
	Model          string    `json:"model" bson:"model"`
	ProcessingTime float64   `json:"processing_time" bson:"processing_time"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
}

// Segment is a timed piece of a transcription
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscriptionResult is the outcome of one transcription attempt.
// Failures are carried in Success and Error instead of being returned as Go errors.
type TranscriptionResult struct {
	Success  bool          `json:"success"`
	Text     string        `json:"text"`
	Language string        `json:"language"`
	Segments []Segment     `json:"segments"`
	Model    string        `json:"model"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"-"`
}
