package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func (h *Handler) databaseStats(c echo.Context) error {
	stats, err := h.store.Stats(c.Request().Context())
	if err != nil {
		return h.fail(c, err, "Failed to get database stats")
	}
	return c.JSON(http.StatusOK, StatsResponse{
		Success: true,
		Stats:   stats,
	})
}

// processUnprocessed runs the transcript backfill once, optionally for a
// single session
func (h *Handler) processUnprocessed(c echo.Context) error {
	report := h.backfill.RunOnce(c.Request().Context(), c.QueryParam("session_id"))
	h.logger.Info("Manual backfill finished",
		zap.Int("found", report.TranscriptsFound),
		zap.Int("processed", report.Processed),
		zap.Int("errors", len(report.Errors)))
	return c.JSON(http.StatusOK, BackfillResponse{
		Success:        len(report.Errors) == 0,
		BackfillReport: report,
	})
}

func (h *Handler) activeSessions(c echo.Context) error {
	sessions := h.hub.ActiveSessions()
	return c.JSON(http.StatusOK, ActiveSessionsResponse{
		Success:       true,
		Sessions:      sessions,
		TotalSessions: len(sessions),
	})
}

func (h *Handler) cleanupSessions(c echo.Context) error {
	closed := h.reaper.RunCleanup()
	return c.JSON(http.StatusOK, CleanupResponse{
		Success: true,
		Message: fmt.Sprintf("Closed %d inactive connections", closed),
		Closed:  closed,
	})
}
