package websocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/voicemap/server/adapters/llm"
	"github.com/satriahrh/voicemap/server/adapters/sqlite"
	"github.com/satriahrh/voicemap/server/adapters/stt"
	"github.com/satriahrh/voicemap/server/domain"
	"github.com/satriahrh/voicemap/server/domain/entities"
	"github.com/satriahrh/voicemap/server/internal/audio"
	"github.com/satriahrh/voicemap/server/internal/tasks"
	"github.com/satriahrh/voicemap/server/usecase"
)

type staticSettings struct {
	settings entities.UserSettings
}

func (s staticSettings) Current(context.Context) entities.UserSettings {
	return s.settings
}

type testServer struct {
	hub      *Hub
	store    *sqlite.Store
	executor *tasks.Executor
	server   *httptest.Server
}

func setupTestServer(t *testing.T, threshold int) *testServer {
	t.Helper()
	return setupTestServerWith(t, threshold, nil, DefaultConfig())
}

// setupTestServerWith lets a test replace the transcriber and the connection
// config. A nil transcriber uses the mock speech pipeline.
func setupTestServerWith(t *testing.T, threshold int, transcriber Transcriber, config Config) *testServer {
	t.Helper()
	logger := zap.NewNop()
	ctx := context.Background()

	store, err := sqlite.Open(ctx, ":memory:", logger)
	if err != nil {
		t.Fatalf("sqlite.Open() error = %v", err)
	}

	current := *entities.DefaultUserSettings(entities.DefaultUserID)
	current.VoiceChunksNumber = threshold
	settings := staticSettings{settings: current}

	model := llm.NewMockLLM()
	executor := tasks.NewExecutor(2, time.Minute, nil, logger)
	repairer := usecase.NewJSONRepairer(model, 3, 5*time.Second, nil, logger)
	analysis := usecase.NewAnalysisService(store, model, repairer, settings, executor, 5*time.Second, nil, logger)
	if transcriber == nil {
		transcriber = usecase.NewTranscriptionService(stt.NewMockSpeechToText(logger), settings, logger,
			usecase.WithTempDir(t.TempDir()))
	}

	hub := NewHub(store, transcriber, analysis, settings, config, nil, logger)
	analysis.SetNotifier(hub)

	e := echo.New()
	e.GET("/ws/audio", hub.HandleWebSocket)
	server := httptest.NewServer(e)

	t.Cleanup(func() {
		hub.CloseAll()
		server.Close()
		executor.Shutdown(context.Background())
		store.Close()
	})

	return &testServer{hub: hub, store: store, executor: executor, server: server}
}

func (s *testServer) dial(t *testing.T, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws/audio"
	if sessionID != "" {
		url += "?session_id=" + sessionID
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

type inbound struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	SessionID string          `json:"sessionId"`
}

// readUntil reads frames until one of type msgType arrives and returns it
// together with the types seen on the way
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) (inbound, []string) {
	t.Helper()
	var seen []string
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	for {
		var msg inbound
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s, saw %v: %v", msgType, seen, err)
		}
		seen = append(seen, msg.Type)
		if msg.Type == msgType {
			return msg, seen
		}
	}
}

func sendJSON(t *testing.T, conn *websocket.Conn, msgType string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}
	env := domain.Envelope{Type: msgType, Data: raw, Timestamp: time.Now().UTC().Format(time.RFC3339)}
	if err := conn.WriteJSON(env); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
}

func speechChunk() []byte {
	pcm := make([]byte, 4000)
	for i := 0; i+1 < len(pcm); i += 2 {
		// square wave, loud enough to register a level
		if (i/40)%2 == 0 {
			pcm[i], pcm[i+1] = 0x00, 0x20
		} else {
			pcm[i], pcm[i+1] = 0x00, 0xE0
		}
	}
	return audio.EncodeWAV(pcm, audio.SampleRate, audio.Channels)
}

func sendChunk(t *testing.T, conn *websocket.Conn, chunk []byte) {
	t.Helper()
	sendJSON(t, conn, MessageTypeAudioChunk, map[string]string{
		"data": base64.StdEncoding.EncodeToString(chunk),
	})
}

func TestHub_ConnectCreatesSession(t *testing.T) {
	s := setupTestServer(t, 3)
	conn := s.dial(t, "session-connect")

	msg, _ := readUntil(t, conn, MessageTypeStatus)
	var status domain.StatusPayload
	if err := json.Unmarshal(msg.Data, &status); err != nil {
		t.Fatal(err)
	}
	if status.Status != "connected" || status.SessionID != "session-connect" {
		t.Errorf("status = %+v, want connected for session-connect", status)
	}

	session, err := s.store.Get(context.Background(), "session-connect")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !session.IsActive {
		t.Error("session should be active while connected")
	}

	active := s.hub.ActiveSessions()
	info, ok := active["session-connect"]
	if !ok {
		t.Fatalf("ActiveSessions() = %v, missing session-connect", active)
	}
	if info.State != StateConnected.String() {
		t.Errorf("State = %q, want %q", info.State, StateConnected.String())
	}
}

func TestHub_GeneratesSessionID(t *testing.T) {
	s := setupTestServer(t, 3)
	conn := s.dial(t, "")

	msg, _ := readUntil(t, conn, MessageTypeStatus)
	if msg.SessionID == "" {
		t.Fatal("connection was not given a session id")
	}
	if _, err := s.store.Get(context.Background(), msg.SessionID); err != nil {
		t.Errorf("generated session not stored: %v", err)
	}
}

func TestHub_EndToEnd(t *testing.T) {
	const threshold = 3
	s := setupTestServer(t, threshold)
	ctx := context.Background()
	conn := s.dial(t, "session-e2e")
	readUntil(t, conn, MessageTypeStatus)

	sendJSON(t, conn, MessageTypeStatus, map[string]string{"action": ActionStartStream})
	readUntil(t, conn, MessageTypeStatus)

	for i := 0; i < threshold-1; i++ {
		sendChunk(t, conn, speechChunk())
		msg, _ := readUntil(t, conn, MessageTypeProcessingProgress)
		var progress domain.ProcessingProgressPayload
		if err := json.Unmarshal(msg.Data, &progress); err != nil {
			t.Fatal(err)
		}
		if progress.ChunksCollected != i+1 || progress.ChunksNeeded != threshold {
			t.Errorf("progress = %+v after %d chunks", progress, i+1)
		}
		readUntil(t, conn, MessageTypeAudioLevel)
	}

	sendChunk(t, conn, speechChunk())
	msg, seen := readUntil(t, conn, MessageTypeTranscriptionResult)
	var result domain.TranscriptionResultPayload
	if err := json.Unmarshal(msg.Data, &result); err != nil {
		t.Fatal(err)
	}
	if !result.Success || result.Text == "" {
		t.Fatalf("transcription_result = %+v", result)
	}
	if result.Error != nil {
		t.Errorf("Error = %q, want nil", *result.Error)
	}
	if seen[0] != MessageTypeProcessingStatus {
		t.Errorf("first message after the flush = %q, want processing_status", seen[0])
	}
	readUntil(t, conn, MessageTypeAudioLevel)

	drainCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.executor.Drain(drainCtx); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	readUntil(t, conn, MessageTypeMindMapResult)

	transcripts, err := s.store.AllTranscripts(ctx, "session-e2e")
	if err != nil || len(transcripts) != 1 {
		t.Fatalf("transcripts = %d, %v; want 1", len(transcripts), err)
	}
	if transcripts[0].ProcessedAt == nil {
		t.Error("transcript should be marked processed after the summary")
	}
	results, err := s.store.SessionLLMResults(ctx, "session-e2e", 50, 0)
	if err != nil || len(results) != 1 {
		t.Fatalf("llm results = %d, %v; want 1", len(results), err)
	}
	maps, err := s.store.SessionMindMaps(ctx, "session-e2e", 50, 0)
	if err != nil || len(maps) != 1 {
		t.Fatalf("mind maps = %d, %v; want 1", len(maps), err)
	}
	if len(maps[0].Nodes) == 0 || len(maps[0].Edges) == 0 {
		t.Errorf("mind map = %+v, want nodes and edges", maps[0])
	}
}

func TestHub_StopStreamFlushesRemainder(t *testing.T) {
	s := setupTestServer(t, 10)
	conn := s.dial(t, "session-stop")
	readUntil(t, conn, MessageTypeStatus)

	sendJSON(t, conn, MessageTypeStatus, map[string]string{"action": ActionStartStream})
	readUntil(t, conn, MessageTypeStatus)

	sendChunk(t, conn, speechChunk())
	readUntil(t, conn, MessageTypeAudioLevel)

	sendJSON(t, conn, MessageTypeStatus, map[string]string{"action": ActionStopStream})
	readUntil(t, conn, MessageTypeTranscriptionResult)
	msg, _ := readUntil(t, conn, MessageTypeStatus)

	var status domain.StatusPayload
	if err := json.Unmarshal(msg.Data, &status); err != nil {
		t.Fatal(err)
	}
	if status.Status != "stopped" {
		t.Errorf("status = %q, want stopped", status.Status)
	}
	if info := s.hub.ActiveSessions()["session-stop"]; info.ChunkCount != 0 || info.State != StateIdle.String() {
		t.Errorf("after stop: %+v", info)
	}

	transcripts, _ := s.store.AllTranscripts(context.Background(), "session-stop")
	if len(transcripts) != 1 {
		t.Errorf("transcripts = %d, want 1", len(transcripts))
	}
}

func TestHub_InvalidInputKeepsConnection(t *testing.T) {
	s := setupTestServer(t, 3)
	conn := s.dial(t, "session-invalid")
	readUntil(t, conn, MessageTypeStatus)

	tests := []struct {
		name string
		send func(t *testing.T)
		want string
	}{
		{
			name: "unknown type",
			send: func(t *testing.T) { sendJSON(t, conn, "telemetry", map[string]string{}) },
			want: "Unknown message type: telemetry",
		},
		{
			name: "not json",
			send: func(t *testing.T) { conn.WriteMessage(websocket.TextMessage, []byte("{oops")) },
			want: "Invalid message",
		},
		{
			name: "undersized chunk",
			send: func(t *testing.T) { sendChunk(t, conn, []byte("tiny")) },
			want: "Failed to process audio chunk",
		},
		{
			name: "unknown action",
			send: func(t *testing.T) { sendJSON(t, conn, MessageTypeStatus, map[string]string{"action": "rewind"}) },
			want: "Unknown status action: rewind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.send(t)
			msg, _ := readUntil(t, conn, MessageTypeError)
			var payload domain.ErrorPayload
			if err := json.Unmarshal(msg.Data, &payload); err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(payload.Error, tt.want) {
				t.Errorf("error = %q, want it to contain %q", payload.Error, tt.want)
			}
		})
	}

	if info := s.hub.ActiveSessions()["session-invalid"]; info.State != StateConnected.String() || info.ChunkCount != 0 {
		t.Errorf("connection changed after bad input: %+v", info)
	}
}

func TestHub_DisconnectDeactivatesSession(t *testing.T) {
	s := setupTestServer(t, 3)
	conn := s.dial(t, "session-gone")
	readUntil(t, conn, MessageTypeStatus)

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	waitFor(t, func() bool {
		_, ok := s.hub.ActiveSessions()["session-gone"]
		return !ok
	})
	waitFor(t, func() bool {
		session, err := s.store.Get(context.Background(), "session-gone")
		return err == nil && !session.IsActive
	})
}

func TestHub_ReconnectReplacesConnection(t *testing.T) {
	s := setupTestServer(t, 3)
	first := s.dial(t, "session-twice")
	readUntil(t, first, MessageTypeStatus)

	second := s.dial(t, "session-twice")
	readUntil(t, second, MessageTypeStatus)

	// the first connection is closed by the server
	first.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}

	session, err := s.store.Get(context.Background(), "session-twice")
	if err != nil {
		t.Fatal(err)
	}
	if !session.IsActive {
		t.Error("closing the replaced connection must not deactivate the session")
	}
	if len(s.hub.ActiveSessions()) != 1 {
		t.Errorf("ActiveSessions() = %v, want one connection", s.hub.ActiveSessions())
	}
}

func TestHub_CleanupInactive(t *testing.T) {
	s := setupTestServer(t, 3)
	conn := s.dial(t, "session-idle")
	readUntil(t, conn, MessageTypeStatus)

	if closed := s.hub.CleanupInactive(time.Hour); closed != 0 {
		t.Errorf("CleanupInactive(1h) = %d, want 0", closed)
	}

	reaper := NewSessionCleanupService(s.hub, time.Nanosecond, time.Hour, zap.NewNop())
	time.Sleep(time.Millisecond)
	if closed := reaper.RunCleanup(); closed != 1 {
		t.Errorf("RunCleanup() = %d, want 1", closed)
	}
	waitFor(t, func() bool { return len(s.hub.ActiveSessions()) == 0 })
}

func TestHub_NotifyWithoutConnectionIsDropped(t *testing.T) {
	s := setupTestServer(t, 3)
	// must not panic or block
	s.hub.NotifyMindMap("nobody", domain.MindMapResultPayload{SessionID: "nobody"})
	s.hub.NotifySessionAnalysis("nobody", domain.SessionAnalysisPayload{SessionID: "nobody"})
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateConnecting:   "connecting",
		StateConnected:    "connected",
		StateStreaming:    "streaming",
		StateIdle:         "idle",
		StateDisconnected: "disconnected",
		State(42):         "unknown",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(state), got, want)
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

type slowTranscriber struct {
	delay time.Duration
}

func (s slowTranscriber) Transcribe(ctx context.Context, data []byte, language, model string) entities.TranscriptionResult {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return entities.TranscriptionResult{Error: ctx.Err().Error(), Segments: []entities.Segment{}}
	}
	return entities.TranscriptionResult{Success: true, Text: "slow but fine", Language: language, Model: model}
}

func TestHub_SlowTranscriptionKeepsConnection(t *testing.T) {
	config := DefaultConfig()
	config.PongWait = 500 * time.Millisecond
	s := setupTestServerWith(t, 1, slowTranscriber{delay: 3 * config.PongWait}, config)
	ctx := context.Background()

	conn := s.dial(t, "session-slow")
	readUntil(t, conn, MessageTypeStatus)

	sendChunk(t, conn, speechChunk())
	readUntil(t, conn, MessageTypeTranscriptionResult)

	// a second flush after the stall must still be served on the same connection
	sendChunk(t, conn, speechChunk())
	msg, _ := readUntil(t, conn, MessageTypeTranscriptionResult)
	var result domain.TranscriptionResultPayload
	if err := json.Unmarshal(msg.Data, &result); err != nil {
		t.Fatal(err)
	}
	if !result.Success || result.Text != "slow but fine" {
		t.Errorf("result = %+v", result)
	}

	if _, ok := s.hub.ActiveSessions()["session-slow"]; !ok {
		t.Error("connection was dropped after a slow transcription")
	}
	session, err := s.store.Get(ctx, "session-slow")
	if err != nil {
		t.Fatal(err)
	}
	if !session.IsActive {
		t.Error("session was deactivated after a slow transcription")
	}
	transcripts, err := s.store.AllTranscripts(ctx, "session-slow")
	if err != nil {
		t.Fatal(err)
	}
	if len(transcripts) != 2 {
		t.Errorf("transcripts = %d, want 2", len(transcripts))
	}
}
