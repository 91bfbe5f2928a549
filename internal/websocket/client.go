package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/voicemap/server/domain"
	"github.com/satriahrh/voicemap/server/domain/entities"
	"github.com/satriahrh/voicemap/server/internal/audio"
)

// State is the lifecycle stage of a connection
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateStreaming
	StateIdle
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateStreaming:
		return "streaming"
	case StateIdle:
		return "idle"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

const defaultTranscriptModel = "base"

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the hub. It owns
// the chunk buffer of its session; only readPump mutates it.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages. Never closed; done signals teardown.
	send chan WriteData
	done chan struct{}

	sessionID   string
	buffer      *audio.ChunkBuffer
	connectedAt time.Time

	// ctx is cancelled when the connection goes away
	ctx    context.Context
	cancel context.CancelFunc

	state        State
	lastActivity time.Time
	mu           sync.Mutex
	closeOnce    sync.Once

	logger *zap.Logger
}

func newClient(hub *Hub, conn *websocket.Conn, sessionID string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	return &Client{
		hub:          hub,
		conn:         conn,
		send:         make(chan WriteData, hub.config.SendBuffer),
		done:         make(chan struct{}),
		sessionID:    sessionID,
		buffer:       audio.NewChunkBuffer(),
		connectedAt:  now,
		ctx:          ctx,
		cancel:       cancel,
		state:        StateConnecting,
		lastActivity: now,
		logger:       hub.logger.With(zap.String("sessionID", sessionID)),
	}
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateDisconnected {
		return
	}
	c.state = s
}

// State returns the current lifecycle stage
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(c.ctx, c.hub.config.StoreTimeout)
	defer cancel()
	if err := c.hub.store.Touch(ctx, c.sessionID); err != nil {
		c.logger.Warn("Failed to update session activity", zap.Error(err))
	}
}

func (c *Client) lastSeen() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

func (c *Client) info() ConnectionInfo {
	c.mu.Lock()
	state, last := c.state, c.lastActivity
	c.mu.Unlock()
	return ConnectionInfo{
		ConnectedAt:  c.connectedAt,
		IsStreaming:  c.buffer.IsStreaming(),
		LastActivity: last,
		ChunkCount:   c.buffer.Len(),
		State:        state.String(),
	}
}

// close starts teardown. writePump sends the close frame and closes the
// transport, which in turn ends readPump.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		c.cancel()
		close(c.done)
	})
}

// readPump pumps messages from the websocket connection to the client's handlers.
func (c *Client) readPump() {
	defer func() {
		c.close()
		c.conn.Close()
		if c.hub.unregister(c) {
			c.hub.closeSession(c.sessionID)
		}
		c.buffer.Clear()
		c.hub.metrics.ConnectionClosed()
		c.logger.Info("WebSocket disconnected")
	}()

	pongWait := c.hub.config.PongWait
	c.conn.SetReadLimit(c.hub.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			// binary frames carry raw audio without an envelope
			c.touch()
			c.handleAudio(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}

		// a flush holds the loop through transcription and the summary
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

// writePump pumps messages from the send queue to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.config.pingPeriod())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				c.close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// sendMessage queues an outbound envelope. Messages for a closed connection
// or a full queue are dropped.
func (c *Client) sendMessage(msgType string, data any) bool {
	payload, err := json.Marshal(domain.NewOutbound(msgType, c.sessionID, data))
	if err != nil {
		c.logger.Error("Failed to encode message", zap.String("type", msgType), zap.Error(err))
		return false
	}

	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
		return true
	case <-c.done:
		return false
	default:
		c.logger.Warn("Send queue full, dropping message", zap.String("type", msgType))
		return false
	}
}

func (c *Client) sendError(format string, args ...any) {
	c.sendMessage(MessageTypeError, domain.ErrorPayload{Error: fmt.Sprintf(format, args...)})
}

// processMessage dispatches one text frame. Malformed frames are answered
// with an error message and leave the connection state untouched.
func (c *Client) processMessage(message []byte) {
	env, err := ParseEnvelope(message)
	if err != nil {
		c.logger.Warn("Failed to parse message", zap.Error(err))
		c.sendError("Invalid message: %v", err)
		return
	}

	c.touch()

	switch env.Type {
	case MessageTypeAudioChunk:
		data, err := DecodeAudioChunk(env.Data)
		if err != nil {
			c.hub.metrics.ChunkRejected("decode")
			c.logger.Warn("Failed to decode audio chunk", zap.Error(err))
			c.sendError("Failed to process audio chunk: %v", err)
			return
		}
		c.handleAudio(data)

	case MessageTypeStatus:
		action, err := DecodeStatus(env.Data)
		if err != nil {
			c.sendError("Invalid status message: %v", err)
			return
		}
		c.handleStatus(action)

	default:
		c.logger.Warn("Unknown message type", zap.String("type", env.Type))
		c.sendError("Unknown message type: %s", env.Type)
	}
}

// handleAudio buffers one fragment, lets the flush policy decide whether to
// transcribe, and reports the fragment's loudness
func (c *Client) handleAudio(data []byte) {
	if err := c.buffer.Append(data, time.Now()); err != nil {
		reason := "invalid"
		switch {
		case errors.Is(err, audio.ErrEmptyChunk):
			reason = "empty"
		case errors.Is(err, audio.ErrChunkTooSmall):
			reason = "too_small"
		}
		c.hub.metrics.ChunkRejected(reason)
		c.logger.Warn("Rejected audio chunk", zap.Int("size", len(data)), zap.Error(err))
		c.sendError("Failed to process audio chunk: %v", err)
		return
	}
	c.hub.metrics.ChunkAccepted()

	c.processChunks(false)

	c.sendMessage(MessageTypeAudioLevel, domain.AudioLevelPayload{
		AudioLevel: audio.Level(data),
		SessionID:  c.sessionID,
	})
}

func (c *Client) handleStatus(action string) {
	switch action {
	case ActionStartStream:
		c.buffer.Clear()
		c.buffer.SetStreaming(true)
		c.setState(StateStreaming)
		c.logger.Info("Audio streaming started")
		c.sendMessage(MessageTypeStatus, domain.StatusPayload{
			Message:   "Audio streaming started",
			SessionID: c.sessionID,
			Status:    "streaming",
		})

	case ActionStopStream:
		c.buffer.SetStreaming(false)
		c.processChunks(true)
		c.setState(StateIdle)
		c.logger.Info("Audio streaming stopped")
		c.sendMessage(MessageTypeStatus, domain.StatusPayload{
			Message:   "Audio streaming stopped",
			SessionID: c.sessionID,
			Status:    "stopped",
		})

	default:
		c.sendError("Unknown status action: %s", action)
	}
}

// processChunks evaluates the flush policy and, when it fires, drains the
// buffer into a transcription. The buffer is empty afterwards whatever the
// outcome.
func (c *Client) processChunks(force bool) {
	current := c.hub.settings.Current(c.ctx)
	policy := audio.NewFlushPolicy(current.VoiceChunkLength, current.VoiceChunksNumber)

	snap := c.buffer.Snapshot()
	flush, reason := policy.Evaluate(snap, force, time.Now())
	if !flush {
		if !snap.Empty() {
			c.sendMessage(MessageTypeProcessingProgress, domain.ProcessingProgressPayload{
				ChunksCollected: snap.Len(),
				ChunksNeeded:    policy.ChunkThreshold,
				AudioDuration:   policy.BufferedSeconds(snap.Len()),
				TargetDuration:  policy.TargetSeconds(),
				Status:          "collecting",
			})
		}
		return
	}

	snap = c.buffer.Drain()
	if snap.Empty() {
		return
	}
	c.hub.metrics.Flushed(string(reason))

	duration := policy.BufferedSeconds(snap.Len())
	c.logger.Info("Flushing audio buffer",
		zap.String("reason", string(reason)),
		zap.Int("chunks", snap.Len()),
		zap.Int("bytes", snap.TotalBytes),
		zap.Float64("audioSeconds", duration))

	c.sendMessage(MessageTypeProcessingStatus, domain.ProcessingStatusPayload{
		Status:          "transcribing",
		ChunksProcessed: snap.Len(),
		AudioDuration:   duration,
		Model:           current.WhisperModel,
		Language:        current.WhisperLanguage,
	})

	result := c.hub.transcriber.Transcribe(c.ctx, snap.Bytes(), current.WhisperLanguage, current.WhisperModel)
	if result.Success && strings.TrimSpace(result.Text) != "" {
		c.commitTranscript(result)
	}

	payload := domain.TranscriptionResultPayload{
		Success:  result.Success,
		Text:     result.Text,
		Language: result.Language,
		Segments: result.Segments,
		Model:    result.Model,
	}
	if payload.Segments == nil {
		payload.Segments = []entities.Segment{}
	}
	if result.Error != "" {
		msg := result.Error
		payload.Error = &msg
	}
	c.sendMessage(MessageTypeTranscriptionResult, payload)
}

// commitTranscript stores a successful transcription and runs the analysis
// stages for the session
func (c *Client) commitTranscript(result entities.TranscriptionResult) {
	model := result.Model
	if model == "" {
		model = defaultTranscriptModel
	}
	elapsed := result.Duration.Seconds()
	transcript := &entities.Transcript{
		SessionID:      c.sessionID,
		Text:           result.Text,
		Language:       result.Language,
		Model:          model,
		ProcessingTime: &elapsed,
		CreatedAt:      time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.hub.config.StoreTimeout)
	err := c.hub.store.CreateTranscript(ctx, transcript)
	cancel()
	if err != nil {
		c.logger.Error("Failed to save transcript", zap.Error(err))
		return
	}
	c.logger.Info("Transcript saved", zap.Int64("transcriptID", transcript.ID))

	if _, taskID, err := c.hub.analysis.OnTranscriptCommitted(c.ctx, c.sessionID); err != nil {
		c.logger.Warn("Session analysis incomplete",
			zap.String("mindMapTask", string(taskID)),
			zap.Error(err))
	}
}
