package domain

import (
	"encoding/json"
	"time"

	"github.com/satriahrh/voicemap/server/domain/entities"
)

// Envelope is the tagged-union frame exchanged over the audio websocket
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp"`
	SessionID string          `json:"sessionId"`
}

// OutboundEnvelope is an Envelope whose data has not been encoded yet
type OutboundEnvelope struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
	SessionID string `json:"sessionId"`
}

// NewOutbound stamps an outbound message with the current time
func NewOutbound(msgType, sessionID string, data any) OutboundEnvelope {
	return OutboundEnvelope{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		SessionID: sessionID,
	}
}

// AudioChunkData is the payload of an inbound audio_chunk message.
// Data is base64 text; a JSON array of byte values is accepted as raw bytes.
type AudioChunkData struct {
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// StatusData is the payload of an inbound status message
type StatusData struct {
	Action string `json:"action"`
}

// StatusPayload is the payload of an outbound status message
type StatusPayload struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	Status    string `json:"status"`
}

// ErrorPayload is the payload of an outbound error message
type ErrorPayload struct {
	Error string `json:"error"`
}

// AudioLevelPayload reports the loudness of the last accepted chunk (0..100)
type AudioLevelPayload struct {
	AudioLevel int    `json:"audioLevel"`
	SessionID  string `json:"sessionId"`
}

// ProcessingProgressPayload reports buffering progress towards the next flush
type ProcessingProgressPayload struct {
	ChunksCollected int     `json:"chunks_collected"`
	ChunksNeeded    int     `json:"chunks_needed"`
	AudioDuration   float64 `json:"audio_duration"`
	TargetDuration  float64 `json:"target_duration"`
	Status          string  `json:"status"`
}

// ProcessingStatusPayload announces that a flush is being transcribed
type ProcessingStatusPayload struct {
	Status          string  `json:"status"`
	ChunksProcessed int     `json:"chunks_processed"`
	AudioDuration   float64 `json:"audio_duration"`
	Model           string  `json:"model"`
	Language        string  `json:"language"`
}

// TranscriptionResultPayload mirrors entities.TranscriptionResult on the wire
type TranscriptionResultPayload struct {
	Success  bool               `json:"success"`
	Text     string             `json:"text"`
	Language string             `json:"language"`
	Segments []entities.Segment `json:"segments"`
	Model    string             `json:"model"`
	Error    *string            `json:"error"`
}

// SessionAnalysisPayload carries a persisted session summary
type SessionAnalysisPayload struct {
	SessionID      string  `json:"session_id"`
	LLMResultID    int64   `json:"llm_result_id"`
	ProcessingTime float64 `json:"processing_time"`
	Analysis       string  `json:"analysis"`
}

// MindMapResultPayload carries a persisted mind map
type MindMapResultPayload struct {
	Nodes     []entities.Node `json:"nodes"`
	Edges     []entities.Edge `json:"edges"`
	SessionID string          `json:"session_id"`
	Timestamp string          `json:"timestamp"`
}
