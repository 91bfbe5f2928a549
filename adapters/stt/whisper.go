package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/voicemap/server/domain/entities"
	"github.com/satriahrh/voicemap/server/domain/repositories"
)

// WhisperSpeechToText transcribes complete audio files against a
// whisper.cpp server (POST /inference, multipart/form-data)
type WhisperSpeechToText struct {
	serverURL  string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ repositories.SpeechToText = (*WhisperSpeechToText)(nil)

// NewWhisperSpeechToText creates a client for the whisper server at serverURL
func NewWhisperSpeechToText(serverURL string, timeout time.Duration, logger *zap.Logger) *WhisperSpeechToText {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &WhisperSpeechToText{
		serverURL:  strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type whisperSegment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type whisperResponse struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Segments []whisperSegment `json:"segments"`
	Error    string           `json:"error"`
}

// TranscribeAudio implements repositories.SpeechToText
func (w *WhisperSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (*repositories.Transcription, error) {
	if len(audioData) == 0 {
		return nil, fmt.Errorf("whisper: %w: no audio data", repositories.ErrInvalidAudio)
	}

	format := config.Format
	if format == "" || format == "raw" {
		format = "bin"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio."+format)
	if err != nil {
		return nil, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(audioData); err != nil {
		return nil, fmt.Errorf("whisper: write audio: %w", err)
	}
	fields := map[string]string{
		"response_format": "verbose_json",
		"temperature":     "0.0",
	}
	if config.Language != "" && config.Language != "auto" {
		fields["language"] = config.Language
	}
	if config.Model != "" {
		fields["model"] = config.Model
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("whisper: write %s field: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.serverURL+"/inference", &body)
	if err != nil {
		return nil, fmt.Errorf("whisper: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper: %w: %w", repositories.ErrTranscription, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("whisper: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper: %w: server returned HTTP %d: %s",
			repositories.ErrTranscription, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out whisperResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("whisper: decode response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("whisper: %w: %s", repositories.ErrTranscription, out.Error)
	}

	segments := make([]entities.Segment, 0, len(out.Segments))
	for _, s := range out.Segments {
		segments = append(segments, entities.Segment{ID: s.ID, Start: s.Start, End: s.End, Text: strings.TrimSpace(s.Text)})
	}

	w.logger.Debug("Whisper transcription finished",
		zap.Int("audioSize", len(audioData)),
		zap.String("format", config.Format),
		zap.Int("segments", len(segments)))

	return &repositories.Transcription{
		Text:     strings.TrimSpace(out.Text),
		Language: out.Language,
		Segments: segments,
		Model:    config.Model,
	}, nil
}
