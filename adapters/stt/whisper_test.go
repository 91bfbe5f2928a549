package stt

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/voicemap/server/domain/repositories"
)

func TestWhisperTranscribeAudio(t *testing.T) {
	var gotLanguage, gotFormat, gotFile string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inference" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotLanguage = r.FormValue("language")
		gotFormat = r.FormValue("response_format")
		f, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		gotFile = header.Filename + ":" + string(data)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":" hello there ","language":"en","segments":[{"id":0,"start":0,"end":1.2,"text":" hello there"}]}`))
	}))
	defer server.Close()

	client := NewWhisperSpeechToText(server.URL+"/", time.Second, zap.NewNop())
	out, err := client.TranscribeAudio(context.Background(), []byte("RIFFdata"), repositories.AudioConfig{
		Format:   "wav",
		Language: "en",
		Model:    "base",
	})
	if err != nil {
		t.Fatalf("TranscribeAudio() error = %v", err)
	}
	if out.Text != "hello there" || out.Language != "en" || out.Model != "base" {
		t.Errorf("transcription = %+v", out)
	}
	if len(out.Segments) != 1 || out.Segments[0].End != 1.2 {
		t.Errorf("segments = %+v", out.Segments)
	}
	if gotLanguage != "en" || gotFormat != "verbose_json" {
		t.Errorf("form fields language=%q response_format=%q", gotLanguage, gotFormat)
	}
	if gotFile != "audio.wav:RIFFdata" {
		t.Errorf("uploaded file = %q", gotFile)
	}
}

func TestWhisperAutoLanguageIsOmitted(t *testing.T) {
	var hasLanguage bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseMultipartForm(1 << 20)
		_, hasLanguage = r.MultipartForm.Value["language"]
		w.Write([]byte(`{"text":"hi"}`))
	}))
	defer server.Close()

	client := NewWhisperSpeechToText(server.URL, time.Second, zap.NewNop())
	if _, err := client.TranscribeAudio(context.Background(), []byte{1, 2, 3}, repositories.AudioConfig{Language: "auto"}); err != nil {
		t.Fatalf("TranscribeAudio() error = %v", err)
	}
	if hasLanguage {
		t.Errorf("language field sent for auto detection")
	}
}

func TestWhisperErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "http error", status: http.StatusInternalServerError, body: "boom", wantErr: repositories.ErrTranscription},
		{name: "error payload", status: http.StatusOK, body: `{"error":"failed to read audio"}`, wantErr: repositories.ErrTranscription},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewWhisperSpeechToText(server.URL, time.Second, zap.NewNop())
			_, err := client.TranscribeAudio(context.Background(), []byte{1}, repositories.AudioConfig{Format: "wav"})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("TranscribeAudio() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	client := NewWhisperSpeechToText("http://127.0.0.1:1", time.Second, zap.NewNop())
	if _, err := client.TranscribeAudio(context.Background(), nil, repositories.AudioConfig{}); !errors.Is(err, repositories.ErrInvalidAudio) {
		t.Errorf("empty audio error = %v, want ErrInvalidAudio", err)
	}
}
