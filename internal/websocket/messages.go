package websocket

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/satriahrh/voicemap/server/domain"
)

// Message types on the audio websocket
const (
	MessageTypeAudioChunk          = "audio_chunk"
	MessageTypeStatus              = "status"
	MessageTypeError               = "error"
	MessageTypeAudioLevel          = "audio_level"
	MessageTypeProcessingProgress  = "processing_progress"
	MessageTypeProcessingStatus    = "processing_status"
	MessageTypeTranscriptionResult = "transcription_result"
	MessageTypeSessionAnalysis     = "session_analysis"
	MessageTypeMindMapResult       = "mind_map_result"
)

// Status actions sent by the client
const (
	ActionStartStream = "start_stream"
	ActionStopStream  = "stop_stream"
)

var (
	ErrMissingType  = errors.New("message missing type field")
	ErrNoAudioData  = errors.New("no audio data in chunk")
	ErrMissingField = errors.New("missing action field")
)

// ParseEnvelope decodes one inbound text frame
func ParseEnvelope(message []byte) (*domain.Envelope, error) {
	var env domain.Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}
	if env.Type == "" {
		return nil, ErrMissingType
	}
	return &env, nil
}

// DecodeAudioChunk extracts the audio bytes of an audio_chunk payload. The
// bytes arrive either as base64 text, padded here when the client trimmed it,
// or as a JSON array of byte values.
func DecodeAudioChunk(raw json.RawMessage) ([]byte, error) {
	if isEmptyJSON(raw) {
		return nil, ErrNoAudioData
	}
	var chunk domain.AudioChunkData
	if err := json.Unmarshal(raw, &chunk); err != nil {
		return nil, fmt.Errorf("invalid audio chunk: %w", err)
	}
	data := bytes.TrimSpace(chunk.Data)
	if isEmptyJSON(data) {
		return nil, ErrNoAudioData
	}

	switch data[0] {
	case '"':
		var encoded string
		if err := json.Unmarshal(data, &encoded); err != nil {
			return nil, fmt.Errorf("invalid audio chunk: %w", err)
		}
		return decodeBase64(encoded)
	case '[':
		var values []int
		if err := json.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("invalid audio chunk: %w", err)
		}
		out := make([]byte, len(values))
		for i, v := range values {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("invalid audio chunk: byte %d out of range: %d", i, v)
			}
			out[i] = byte(v)
		}
		if len(out) == 0 {
			return nil, ErrNoAudioData
		}
		return out, nil
	default:
		return nil, errors.New("invalid audio chunk: data must be base64 text or a byte array")
	}
}

func decodeBase64(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, ErrNoAudioData
	}
	if i := strings.Index(encoded, ";base64,"); i >= 0 {
		encoded = encoded[i+len(";base64,"):]
	}
	if pad := len(encoded) % 4; pad != 0 {
		encoded += strings.Repeat("=", 4-pad)
	}
	out, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 audio data: %w", err)
	}
	return out, nil
}

// DecodeStatus extracts the action of a status payload
func DecodeStatus(raw json.RawMessage) (string, error) {
	if isEmptyJSON(raw) {
		return "", ErrMissingField
	}
	var status domain.StatusData
	if err := json.Unmarshal(raw, &status); err != nil {
		return "", fmt.Errorf("invalid status message: %w", err)
	}
	if status.Action == "" {
		return "", ErrMissingField
	}
	return status.Action, nil
}

func isEmptyJSON(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
