package repositories

import (
	"context"

	"github.com/satriahrh/voicemap/server/domain/entities"
)

// SpeechToText abstracts speech recognition services
type SpeechToText interface {
	// TranscribeAudio converts a complete audio file to text
	TranscribeAudio(ctx context.Context, audioData []byte, config AudioConfig) (*Transcription, error)
}

// AudioConfig represents audio configuration for speech recognition
type AudioConfig struct {
	// Format is the container of audioData, e.g. "wav", "webm", "raw"
	Format     string `json:"format"`
	SampleRate int    `json:"sample_rate"`
	// Language is a whisper language code; "auto" or empty lets the model detect it
	Language string `json:"language"`
	Model    string `json:"model"`
}

// Transcription is a raw speech recognition output
type Transcription struct {
	Text     string
	Language string
	Segments []entities.Segment
	Model    string
}

// AudioTranscoder converts a container into canonical 16 kHz mono 16-bit WAV.
// Temporary files must be created inside workDir.
type AudioTranscoder interface {
	TranscodeToWAV(ctx context.Context, workDir string, audioData []byte, format string) ([]byte, error)
}
