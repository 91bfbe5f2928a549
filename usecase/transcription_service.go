package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/voicemap/server/domain/entities"
	"github.com/satriahrh/voicemap/server/domain/repositories"
	"github.com/satriahrh/voicemap/server/internal/audio"
	"github.com/satriahrh/voicemap/server/internal/metrics"
)

// Transcription strategies, tried in order
const (
	StrategyTranscode = "transcode"
	StrategyOriginal  = "original"
	StrategyRawWAV    = "raw_wav"
)

// TranscriptionService turns buffered audio bytes into text. It never returns
// an error: every failure is folded into the result.
type TranscriptionService struct {
	stt        repositories.SpeechToText
	transcoder repositories.AudioTranscoder
	settings   SettingsProvider
	timeout    time.Duration
	tempDir    string
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// TranscriptionOption configures a TranscriptionService
type TranscriptionOption func(*TranscriptionService)

// WithTranscoder enables the container transcode strategy
func WithTranscoder(t repositories.AudioTranscoder) TranscriptionOption {
	return func(s *TranscriptionService) { s.transcoder = t }
}

// WithTranscriptionTimeout bounds each speech-to-text call
func WithTranscriptionTimeout(d time.Duration) TranscriptionOption {
	return func(s *TranscriptionService) { s.timeout = d }
}

// WithTempDir sets the parent directory for per-call scratch directories
func WithTempDir(dir string) TranscriptionOption {
	return func(s *TranscriptionService) { s.tempDir = dir }
}

// WithTranscriptionMetrics records strategy outcomes
func WithTranscriptionMetrics(m *metrics.Metrics) TranscriptionOption {
	return func(s *TranscriptionService) { s.metrics = m }
}

// NewTranscriptionService creates a new transcription service
func NewTranscriptionService(stt repositories.SpeechToText, settings SettingsProvider, logger *zap.Logger, opts ...TranscriptionOption) *TranscriptionService {
	s := &TranscriptionService{
		stt:      stt,
		settings: settings,
		timeout:  2 * time.Minute,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type strategy struct {
	name string
	run  func(ctx context.Context) ([]byte, string, error)
}

// Transcribe decodes data. Empty language or model fall back to the current
// user settings. Scratch files created on the way are removed before return.
func (s *TranscriptionService) Transcribe(ctx context.Context, data []byte, language, model string) (result entities.TranscriptionResult) {
	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)
		s.metrics.TranscriptionFinished(result.Success, result.Duration)
	}()

	if language == "" || model == "" {
		current := s.settings.Current(ctx)
		if language == "" {
			language = current.WhisperLanguage
		}
		if model == "" {
			model = current.WhisperModel
		}
	}

	failed := entities.TranscriptionResult{
		Success:  false,
		Language: "unknown",
		Segments: []entities.Segment{},
		Model:    model,
	}

	if len(data) == 0 {
		failed.Error = repositories.ErrInvalidAudio.Error() + ": no audio data"
		return failed
	}

	format := audio.SniffFormat(data)
	s.logger.Info("Transcribing audio",
		zap.Int("bytes", len(data)),
		zap.String("format", string(format)),
		zap.String("language", language),
		zap.String("model", model))

	var strategies []strategy
	if s.transcoder != nil {
		strategies = append(strategies, strategy{StrategyTranscode, func(ctx context.Context) ([]byte, string, error) {
			workDir, err := os.MkdirTemp(s.tempDir, "voicemap-transcribe-*")
			if err != nil {
				return nil, "", fmt.Errorf("failed to create scratch directory: %w", err)
			}
			defer func() {
				if err := os.RemoveAll(workDir); err != nil {
					s.logger.Warn("Failed to remove scratch directory", zap.String("dir", workDir), zap.Error(err))
				}
			}()

			wav, err := s.transcoder.TranscodeToWAV(ctx, workDir, data, string(format))
			if err != nil {
				return nil, "", err
			}
			return wav, string(audio.FormatWAV), nil
		}})
	}
	strategies = append(strategies, strategy{StrategyOriginal, func(context.Context) ([]byte, string, error) {
		return data, string(format), nil
	}})
	if format != audio.FormatWAV {
		strategies = append(strategies, strategy{StrategyRawWAV, func(context.Context) ([]byte, string, error) {
			return audio.EncodeWAV(data, audio.SampleRate, audio.Channels), string(audio.FormatWAV), nil
		}})
	}

	var lastErr error
	for _, st := range strategies {
		out, err := s.attempt(ctx, st, language, model)
		s.metrics.StrategyTried(st.name, err == nil)
		if err == nil {
			return *out
		}
		lastErr = err
		s.logger.Warn("Transcription strategy failed",
			zap.String("strategy", st.name),
			zap.String("format", string(format)),
			zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}

	failed.Error = fmt.Sprintf("all audio processing methods failed, last error: %v", lastErr)
	return failed
}

func (s *TranscriptionService) attempt(ctx context.Context, st strategy, language, model string) (*entities.TranscriptionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	payload, format, err := st.run(ctx)
	if err != nil {
		return nil, err
	}

	out, err := s.stt.TranscribeAudio(ctx, payload, repositories.AudioConfig{
		Format:     format,
		SampleRate: audio.SampleRate,
		Language:   language,
		Model:      model,
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New("speech to text returned no result")
	}

	detected := out.Language
	if detected == "" {
		detected = language
	}
	usedModel := out.Model
	if usedModel == "" {
		usedModel = model
	}
	segments := out.Segments
	if segments == nil {
		segments = []entities.Segment{}
	}

	return &entities.TranscriptionResult{
		Success:  true,
		Text:     strings.TrimSpace(out.Text),
		Language: detected,
		Segments: segments,
		Model:    usedModel,
	}, nil
}
