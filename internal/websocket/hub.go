package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/voicemap/server/domain"
	"github.com/satriahrh/voicemap/server/domain/entities"
	"github.com/satriahrh/voicemap/server/domain/repositories"
	"github.com/satriahrh/voicemap/server/internal/metrics"
	"github.com/satriahrh/voicemap/server/internal/tasks"
	"github.com/satriahrh/voicemap/server/usecase"
)

// Time allowed to write a message to the peer.
const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Transcriber turns flushed audio into text
type Transcriber interface {
	Transcribe(ctx context.Context, data []byte, language, model string) entities.TranscriptionResult
}

// Analyzer runs the analysis stages after a transcript is stored
type Analyzer interface {
	OnTranscriptCommitted(ctx context.Context, sessionID string) (*entities.LLMResult, tasks.TaskID, error)
}

// Store is the storage the connection manager writes to
type Store interface {
	repositories.SessionRepository
	repositories.TranscriptRepository
}

// Config tunes connection handling
type Config struct {
	SendBuffer     int
	MaxMessageSize int64
	// StoreTimeout bounds each storage call made on behalf of a connection
	StoreTimeout time.Duration
	// PongWait is the time allowed to read the next frame or pong from the
	// peer. Pings are sent at 9/10 of it.
	PongWait time.Duration
}

func (c Config) pingPeriod() time.Duration {
	return (c.PongWait * 9) / 10
}

// DefaultConfig returns the connection defaults
func DefaultConfig() Config {
	return Config{
		SendBuffer:     256,
		MaxMessageSize: 2 << 20,
		StoreTimeout:   5 * time.Second,
		PongWait:       60 * time.Second,
	}
}

// ConnectionInfo describes one live connection
type ConnectionInfo struct {
	ConnectedAt  time.Time `json:"connected_at"`
	IsStreaming  bool      `json:"is_streaming"`
	LastActivity time.Time `json:"last_activity"`
	ChunkCount   int       `json:"chunk_count"`
	State        string    `json:"state"`
}

// Hub maintains the set of live connections, one per session
type Hub struct {
	// Registered clients by session id.
	clients map[string]*Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	store       Store
	transcriber Transcriber
	analysis    Analyzer
	settings    usecase.SettingsProvider
	config      Config
	metrics     *metrics.Metrics

	logger *zap.Logger
}

var _ usecase.Notifier = (*Hub)(nil)

// NewHub creates a new WebSocket hub
func NewHub(
	store Store,
	transcriber Transcriber,
	analysis Analyzer,
	settings usecase.SettingsProvider,
	config Config,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Hub {
	defaults := DefaultConfig()
	if config.SendBuffer <= 0 {
		config.SendBuffer = defaults.SendBuffer
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = defaults.MaxMessageSize
	}
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = defaults.StoreTimeout
	}
	if config.PongWait <= 0 {
		config.PongWait = defaults.PongWait
	}
	return &Hub{
		clients:     make(map[string]*Client),
		store:       store,
		transcriber: transcriber,
		analysis:    analysis,
		settings:    settings,
		config:      config,
		metrics:     m,
		logger:      logger,
	}
}

// HandleWebSocket upgrades the request and starts serving the connection.
// The session id comes from the session_id query parameter; a new one is
// generated when it is absent.
func (h *Hub) HandleWebSocket(c echo.Context) error {
	sessionID := c.QueryParam("session_id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := newClient(h, conn, sessionID)
	h.openSession(sessionID)
	h.register(client)
	h.metrics.ConnectionOpened()

	client.setState(StateConnected)
	client.sendMessage(MessageTypeStatus, domain.StatusPayload{
		Message:   "Connected successfully",
		SessionID: sessionID,
		Status:    "connected",
	})

	h.logger.Info("WebSocket connected", zap.String("sessionID", sessionID))

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// openSession creates the session record or reactivates an existing one.
// Storage failures are logged and the connection proceeds.
func (h *Hub) openSession(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.StoreTimeout)
	defer cancel()

	_, err := h.store.Get(ctx, sessionID)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		if err := h.store.Create(ctx, entities.NewSession(sessionID)); err != nil {
			h.logger.Error("Failed to create session",
				zap.String("sessionID", sessionID),
				zap.Error(err))
			return
		}
		h.logger.Info("Session created", zap.String("sessionID", sessionID))
	case err != nil:
		h.logger.Error("Failed to load session",
			zap.String("sessionID", sessionID),
			zap.Error(err))
	default:
		if err := h.store.SetActive(ctx, sessionID, true); err != nil {
			h.logger.Error("Failed to activate session",
				zap.String("sessionID", sessionID),
				zap.Error(err))
			return
		}
		h.logger.Info("Session activated", zap.String("sessionID", sessionID))
	}
}

// closeSession deactivates the session record
func (h *Hub) closeSession(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.StoreTimeout)
	defer cancel()

	if err := h.store.SetActive(ctx, sessionID, false); err != nil {
		h.logger.Error("Failed to deactivate session",
			zap.String("sessionID", sessionID),
			zap.Error(err))
	}
}

// register makes client the live connection of its session. A previous
// connection for the same session is closed.
func (h *Hub) register(client *Client) {
	h.mu.Lock()
	previous := h.clients[client.sessionID]
	h.clients[client.sessionID] = client
	h.mu.Unlock()

	if previous != nil {
		h.logger.Info("Replacing existing connection", zap.String("sessionID", client.sessionID))
		previous.close()
	}
	h.logger.Info("Client registered", zap.String("sessionID", client.sessionID))
}

// unregister removes client if it is still the live connection of its
// session and reports whether it was.
func (h *Hub) unregister(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.clients[client.sessionID]; ok && current == client {
		delete(h.clients, client.sessionID)
		h.logger.Info("Client unregistered", zap.String("sessionID", client.sessionID))
		return true
	}
	return false
}

func (h *Hub) client(sessionID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[sessionID]
	return c, ok
}

// ActiveSessions describes every live connection by session id
func (h *Hub) ActiveSessions() map[string]ConnectionInfo {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	out := make(map[string]ConnectionInfo, len(clients))
	for _, c := range clients {
		out[c.sessionID] = c.info()
	}
	return out
}

// CleanupInactive closes every connection idle for longer than timeout and
// returns how many were closed
func (h *Hub) CleanupInactive(timeout time.Duration) int {
	now := time.Now()

	h.mu.RLock()
	var stale []*Client
	for _, c := range h.clients {
		if now.Sub(c.lastSeen()) > timeout {
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stale {
		h.logger.Info("Cleaning up inactive session",
			zap.String("sessionID", c.sessionID),
			zap.Duration("idle", now.Sub(c.lastSeen())))
		c.close()
	}
	return len(stale)
}

// CloseAll closes every live connection
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.close()
	}
}

// NotifySessionAnalysis implements usecase.Notifier
func (h *Hub) NotifySessionAnalysis(sessionID string, payload domain.SessionAnalysisPayload) {
	h.notify(sessionID, MessageTypeSessionAnalysis, payload)
}

// NotifyMindMap implements usecase.Notifier
func (h *Hub) NotifyMindMap(sessionID string, payload domain.MindMapResultPayload) {
	h.notify(sessionID, MessageTypeMindMapResult, payload)
}

func (h *Hub) notify(sessionID, msgType string, payload any) {
	c, ok := h.client(sessionID)
	if !ok {
		h.logger.Warn("No active connection for result",
			zap.String("sessionID", sessionID),
			zap.String("type", msgType))
		return
	}
	c.sendMessage(msgType, payload)
}
