package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/voicemap/server/domain/repositories"
	"github.com/satriahrh/voicemap/server/internal/settings"
	"github.com/satriahrh/voicemap/server/internal/websocket"
	"github.com/satriahrh/voicemap/server/usecase"
)

// Pagination bounds for list endpoints
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

var errInvalidPagination = errors.New("limit must be 1..500 and offset must not be negative")

// Handler serves the administrative HTTP surface
type Handler struct {
	store    repositories.Storage
	settings *settings.Service
	analysis *usecase.AnalysisService
	backfill *usecase.BackfillService
	hub      *websocket.Hub
	reaper   *websocket.SessionCleanupService
	metrics  http.Handler
	logger   *zap.Logger
}

// NewHandler creates the HTTP handler set. metrics may be nil.
func NewHandler(
	store repositories.Storage,
	settingsService *settings.Service,
	analysis *usecase.AnalysisService,
	backfill *usecase.BackfillService,
	hub *websocket.Hub,
	reaper *websocket.SessionCleanupService,
	metrics http.Handler,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		store:    store,
		settings: settingsService,
		analysis: analysis,
		backfill: backfill,
		hub:      hub,
		reaper:   reaper,
		metrics:  metrics,
		logger:   logger,
	}
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, h *Handler) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "voicemap-server",
		})
	})
	if h.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.metrics))
	}

	// Audio streaming
	e.GET("/ws/audio", h.hub.HandleWebSocket)
	e.GET("/websocket/sessions", h.activeSessions)
	e.POST("/websocket/cleanup", h.cleanupSessions)

	api := e.Group("/api")

	sessions := api.Group("/sessions")
	sessions.GET("", h.listSessions)
	sessions.POST("", h.createSession)
	sessions.GET("/:id", h.getSession)
	sessions.PUT("/:id", h.updateSession)
	sessions.DELETE("/:id", h.deleteSession)
	sessions.POST("/:id/activate", h.activateSession)
	sessions.PATCH("/:id/name", h.renameSession)
	sessions.GET("/:id/transcripts", h.sessionTranscripts)
	sessions.GET("/:id/llm-results", h.sessionLLMResults)
	sessions.DELETE("/:id/content", h.eraseSessionContent)
	sessions.GET("/:id/summary", h.sessionSummary)
	sessions.GET("/:id/mind-maps", h.listMindMaps)
	sessions.POST("/:id/mind-maps", h.generateMindMap)
	sessions.DELETE("/:id/mind-maps/:mapId", h.deleteMindMap)

	st := api.Group("/settings")
	st.GET("", h.getSettings)
	st.PUT("", h.updateSettings)
	st.POST("/temporary", h.applyTemporarySettings)
	st.GET("/temporary", h.getTemporarySettings)
	st.DELETE("/temporary", h.clearTemporarySettings)
	st.GET("/whisper/languages", h.whisperLanguages)
	st.GET("/whisper/models", h.whisperModels)

	db := api.Group("/database")
	db.GET("/stats", h.databaseStats)
	db.POST("/process", h.processUnprocessed)
}

// pagination reads limit and offset query parameters
func pagination(c echo.Context) (limit, offset int, err error) {
	limit, offset = DefaultLimit, 0
	if v := c.QueryParam("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 1 || limit > MaxLimit {
			return 0, 0, errInvalidPagination
		}
	}
	if v := c.QueryParam("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, errInvalidPagination
		}
	}
	return limit, offset, nil
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_request",
		Message: message,
	})
}

// fail maps a storage or pipeline error onto a response
func (h *Handler) fail(c echo.Context, err error, message string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: err.Error(),
		})
	}
	h.logger.Error(message,
		zap.String("path", c.Path()),
		zap.Error(err))
	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: message,
	})
}
