package stt

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/satriahrh/voicemap/server/domain/entities"
	"github.com/satriahrh/voicemap/server/domain/repositories"
)

// GoogleSpeechToText implements SpeechToText for Google Cloud using the
// synchronous Recognize call, which accepts up to one minute of audio
type GoogleSpeechToText struct {
	client *speech.Client
	logger *zap.Logger
}

var _ repositories.SpeechToText = (*GoogleSpeechToText)(nil)

// NewGoogleSpeechToText creates a Google Cloud Speech client using application default credentials
func NewGoogleSpeechToText(ctx context.Context, logger *zap.Logger) (*GoogleSpeechToText, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	return &GoogleSpeechToText{client: client, logger: logger}, nil
}

// Close releases the underlying client
func (g *GoogleSpeechToText) Close() error {
	return g.client.Close()
}

// TranscribeAudio implements repositories.SpeechToText
func (g *GoogleSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (*repositories.Transcription, error) {
	if len(audioData) == 0 {
		return nil, fmt.Errorf("google: %w: no audio data", repositories.ErrInvalidAudio)
	}

	encoding, err := getAudioEncoding(config.Format)
	if err != nil {
		return nil, fmt.Errorf("google: %w: %w", repositories.ErrInvalidAudio, err)
	}
	languageCode := languageCodeFor(config.Language)

	recognitionConfig := &speechpb.RecognitionConfig{
		Encoding:                   encoding,
		LanguageCode:               languageCode,
		EnableAutomaticPunctuation: true,
		EnableWordTimeOffsets:      true,
	}
	// WAV and Opus containers carry their own sample rate
	if encoding == speechpb.RecognitionConfig_LINEAR16 && config.Format != "wav" {
		recognitionConfig.SampleRateHertz = int32(config.SampleRate)
	}

	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: recognitionConfig,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audioData},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("google: %w: %w", repositories.ErrTranscription, err)
	}

	var (
		texts    []string
		segments []entities.Segment
	)
	for i, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		best := result.Alternatives[0]
		text := strings.TrimSpace(best.Transcript)
		if text == "" {
			continue
		}
		texts = append(texts, text)

		segment := entities.Segment{ID: i, Text: text}
		if words := best.Words; len(words) > 0 {
			segment.Start = words[0].StartTime.AsDuration().Seconds()
			segment.End = words[len(words)-1].EndTime.AsDuration().Seconds()
		}
		segments = append(segments, segment)
	}

	g.logger.Debug("Google transcription finished",
		zap.Int("audioSize", len(audioData)),
		zap.Int("results", len(resp.Results)))

	return &repositories.Transcription{
		Text:     strings.Join(texts, " "),
		Language: config.Language,
		Segments: segments,
		Model:    "google",
	}, nil
}

// getAudioEncoding converts a sniffed container name to the Google Speech API enum
func getAudioEncoding(format string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch format {
	case "wav", "raw", "":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "webm":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	case "ogg":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "flac":
		return speechpb.RecognitionConfig_FLAC, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported format: %s", format)
	}
}

var googleLanguageCodes = map[string]string{
	"en": "en-US",
	"pl": "pl-PL",
	"es": "es-ES",
	"fr": "fr-FR",
	"de": "de-DE",
	"it": "it-IT",
	"pt": "pt-PT",
	"ru": "ru-RU",
	"ja": "ja-JP",
	"ko": "ko-KR",
	"zh": "zh",
}

// languageCodeFor maps a whisper language code to BCP-47; auto detection is
// not available for Recognize, so it falls back to English
func languageCodeFor(language string) string {
	if code, ok := googleLanguageCodes[language]; ok {
		return code
	}
	if strings.Contains(language, "-") {
		return language
	}
	return "en-US"
}
