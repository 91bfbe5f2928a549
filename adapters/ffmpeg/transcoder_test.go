package ffmpeg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/satriahrh/voicemap/server/domain/repositories"
)

func TestTranscodeToWAVRejectsEmptyInput(t *testing.T) {
	tr := NewTranscoder("", zap.NewNop())
	_, err := tr.TranscodeToWAV(context.Background(), t.TempDir(), nil, "webm")
	if !errors.Is(err, repositories.ErrInvalidAudio) {
		t.Errorf("TranscodeToWAV() error = %v, want ErrInvalidAudio", err)
	}
}

func TestTranscodeToWAVMissingBinary(t *testing.T) {
	dir := t.TempDir()
	tr := NewTranscoder(filepath.Join(dir, "no-such-ffmpeg"), zap.NewNop())
	if tr.Available() {
		t.Fatal("Available() = true for a missing binary")
	}

	_, err := tr.TranscodeToWAV(context.Background(), dir, []byte("not really webm"), "webm")
	if !errors.Is(err, repositories.ErrTranscode) {
		t.Errorf("TranscodeToWAV() error = %v, want ErrTranscode", err)
	}

	// input is written into the work dir, output is never produced
	if _, err := os.Stat(filepath.Join(dir, "input.webm")); err != nil {
		t.Errorf("input file not written to work dir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "output.wav")); !os.IsNotExist(err) {
		t.Errorf("output.wav exists after a failed run")
	}
}

func TestNewTranscoderDefaultsBinary(t *testing.T) {
	tr := NewTranscoder("", zap.NewNop())
	if tr.binary != "ffmpeg" {
		t.Errorf("binary = %q, want ffmpeg", tr.binary)
	}
	if tr.sampleRate != 16000 {
		t.Errorf("sampleRate = %d, want 16000", tr.sampleRate)
	}
}
