package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/satriahrh/voicemap/server/domain/repositories"
)

// Transcoder shells out to ffmpeg to normalize browser recordings into
// 16 kHz mono 16-bit PCM WAV
type Transcoder struct {
	binary     string
	sampleRate int
	logger     *zap.Logger
}

var _ repositories.AudioTranscoder = (*Transcoder)(nil)

// NewTranscoder creates a transcoder. An empty binary means "ffmpeg" from PATH.
func NewTranscoder(binary string, logger *zap.Logger) *Transcoder {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Transcoder{
		binary:     binary,
		sampleRate: 16000,
		logger:     logger,
	}
}

// Available reports whether the ffmpeg binary can be found
func (t *Transcoder) Available() bool {
	_, err := exec.LookPath(t.binary)
	return err == nil
}

// TranscodeToWAV implements repositories.AudioTranscoder
func (t *Transcoder) TranscodeToWAV(ctx context.Context, workDir string, audioData []byte, format string) ([]byte, error) {
	const op = "transcode"
	if len(audioData) == 0 {
		return nil, fmt.Errorf("%s: %w: no audio data", op, repositories.ErrInvalidAudio)
	}

	ext := format
	if ext == "" || ext == "unknown" {
		ext = "bin"
	}
	in := filepath.Join(workDir, "input."+ext)
	out := filepath.Join(workDir, "output.wav")

	if err := os.WriteFile(in, audioData, 0o600); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, repositories.ErrTranscode, err)
	}

	rate := strconv.Itoa(t.sampleRate)
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	if format == "raw" {
		// headerless input has to be described up front
		args = append(args, "-f", "s16le", "-ar", rate, "-ac", "1")
	}
	args = append(args,
		"-i", in,
		"-ar", rate,
		"-ac", "1",
		"-c:a", "pcm_s16le",
		out,
	)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.binary, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		t.logger.Debug("ffmpeg failed",
			zap.String("format", format),
			zap.String("stderr", stderr.String()),
			zap.Error(err))
		return nil, fmt.Errorf("%s %s: %w: %w", op, format, repositories.ErrTranscode, err)
	}

	wav, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, repositories.ErrTranscode, err)
	}
	if len(wav) <= 44 {
		return nil, fmt.Errorf("%s %s: %w: empty output", op, format, repositories.ErrTranscode)
	}
	return wav, nil
}
