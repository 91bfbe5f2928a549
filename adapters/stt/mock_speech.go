package stt

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/voicemap/server/domain/entities"
	"github.com/satriahrh/voicemap/server/domain/repositories"
)

// MockSpeechToText is a placeholder implementation for speech recognition.
// It answers with canned text chosen by audio size.
type MockSpeechToText struct {
	logger *zap.Logger
}

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger) *MockSpeechToText {
	return &MockSpeechToText{logger: logger}
}

// TranscribeAudio implements repositories.SpeechToText
func (s *MockSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (*repositories.Transcription, error) {
	s.logger.Info("Processing speech-to-text",
		zap.Int("audioSize", len(audioData)),
		zap.String("format", config.Format),
		zap.String("language", config.Language))

	if len(audioData) == 0 {
		return nil, fmt.Errorf("mock: %w: no audio data", repositories.ErrInvalidAudio)
	}

	var text string
	switch {
	case len(audioData) > 100000:
		text = "Let's go over the quarterly budget and agree on the launch timeline."
	case len(audioData) > 10000:
		text = "We should review the budget before the launch."
	case len(audioData) > 1000:
		text = "Hello, this is a test."
	default:
		text = "Hi"
	}

	language := config.Language
	if language == "" || language == "auto" {
		language = "en"
	}
	return &repositories.Transcription{
		Text:     text,
		Language: language,
		Segments: []entities.Segment{{ID: 0, Start: 0, End: float64(len(audioData)) / 32000, Text: text}},
		Model:    config.Model,
	}, nil
}
