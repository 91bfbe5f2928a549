package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/voicemap/server/domain/entities"
	"github.com/satriahrh/voicemap/server/domain/repositories"
)

func (h *Handler) listSessions(c echo.Context) error {
	limit, offset, err := pagination(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	activeOnly := c.QueryParam("active_only") == "true"

	sessions, err := h.store.List(c.Request().Context(), activeOnly, limit, offset)
	if err != nil {
		return h.fail(c, err, "Failed to get sessions")
	}
	return c.JSON(http.StatusOK, SessionListResponse{
		Success:  true,
		Sessions: sessions,
		Total:    len(sessions),
		Message:  fmt.Sprintf("Retrieved %d sessions", len(sessions)),
	})
}

func (h *Handler) createSession(c echo.Context) error {
	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		h.logger.Warn("Failed to bind create session request", zap.Error(err))
		return badRequest(c, "Invalid request format")
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	ctx := c.Request().Context()
	if _, err := h.store.Get(ctx, req.ID); err == nil {
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "conflict",
			Message: fmt.Sprintf("session %s already exists", req.ID),
		})
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return h.fail(c, err, "Failed to create session")
	}

	session := entities.NewSession(req.ID)
	session.Name = req.Name
	session.Description = req.Description
	if err := session.Validate(); err != nil {
		return badRequest(c, err.Error())
	}
	if err := h.store.Create(ctx, session); err != nil {
		return h.fail(c, err, "Failed to create session")
	}

	h.logger.Info("Session created", zap.String("sessionID", session.ID))
	return c.JSON(http.StatusCreated, SessionResponse{
		Success: true,
		Session: session,
		Message: "Session created successfully",
	})
}

func (h *Handler) getSession(c echo.Context) error {
	session, err := h.store.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err, "Failed to get session")
	}
	return c.JSON(http.StatusOK, SessionResponse{
		Success: true,
		Session: session,
		Message: "Session retrieved successfully",
	})
}

func (h *Handler) updateSession(c echo.Context) error {
	var req UpdateSessionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request format")
	}

	ctx := c.Request().Context()
	session, err := h.store.Get(ctx, c.Param("id"))
	if err != nil {
		return h.fail(c, err, "Failed to update session")
	}
	if req.Name != nil {
		session.Name = *req.Name
	}
	if req.Description != nil {
		session.Description = *req.Description
	}
	if err := session.Validate(); err != nil {
		return badRequest(c, err.Error())
	}
	if err := h.store.Update(ctx, session); err != nil {
		return h.fail(c, err, "Failed to update session")
	}
	if req.IsActive != nil && *req.IsActive != session.IsActive {
		if err := h.store.SetActive(ctx, session.ID, *req.IsActive); err != nil {
			return h.fail(c, err, "Failed to update session")
		}
	}

	session, err = h.store.Get(ctx, session.ID)
	if err != nil {
		return h.fail(c, err, "Failed to update session")
	}
	return c.JSON(http.StatusOK, SessionResponse{
		Success: true,
		Session: session,
		Message: "Session updated successfully",
	})
}

// deleteSession deactivates the session; its content is kept
func (h *Handler) deleteSession(c echo.Context) error {
	id := c.Param("id")
	if err := h.store.SetActive(c.Request().Context(), id, false); err != nil {
		return h.fail(c, err, "Failed to delete session")
	}
	return c.JSON(http.StatusOK, MessageResponse{
		Success: true,
		Message: fmt.Sprintf("Session %s deactivated", id),
	})
}

func (h *Handler) activateSession(c echo.Context) error {
	id := c.Param("id")
	if err := h.store.SetActive(c.Request().Context(), id, true); err != nil {
		return h.fail(c, err, "Failed to activate session")
	}
	return c.JSON(http.StatusOK, MessageResponse{
		Success: true,
		Message: fmt.Sprintf("Session %s activated", id),
	})
}

func (h *Handler) renameSession(c echo.Context) error {
	var req RenameSessionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request format")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return badRequest(c, "Session name cannot be empty")
	}

	ctx := c.Request().Context()
	session, err := h.store.Get(ctx, c.Param("id"))
	if err != nil {
		return h.fail(c, err, "Failed to update session name")
	}
	session.Name = name
	if err := session.Validate(); err != nil {
		return badRequest(c, err.Error())
	}
	if err := h.store.Update(ctx, session); err != nil {
		return h.fail(c, err, "Failed to update session name")
	}
	return c.JSON(http.StatusOK, SessionResponse{
		Success: true,
		Session: session,
		Message: "Session name updated successfully",
	})
}

func (h *Handler) sessionTranscripts(c echo.Context) error {
	limit, offset, err := pagination(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	id := c.Param("id")
	transcripts, err := h.store.ListTranscripts(c.Request().Context(), id, limit, offset)
	if err != nil {
		return h.fail(c, err, "Failed to get session transcripts")
	}
	return c.JSON(http.StatusOK, TranscriptListResponse{
		Success:     true,
		Transcripts: transcripts,
		Total:       len(transcripts),
		Message:     fmt.Sprintf("Retrieved %d transcripts for session %s", len(transcripts), id),
	})
}

func (h *Handler) sessionLLMResults(c echo.Context) error {
	limit, offset, err := pagination(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	id := c.Param("id")
	results, err := h.store.SessionLLMResults(c.Request().Context(), id, limit, offset)
	if err != nil {
		return h.fail(c, err, "Failed to get session LLM results")
	}
	return c.JSON(http.StatusOK, LLMResultListResponse{
		Success:    true,
		LLMResults: results,
		Total:      len(results),
		Message:    fmt.Sprintf("Retrieved %d LLM results for session %s", len(results), id),
	})
}

func (h *Handler) eraseSessionContent(c echo.Context) error {
	id := c.Param("id")
	if err := h.store.EraseSessionContent(c.Request().Context(), id); err != nil {
		return h.fail(c, err, "Failed to erase session content")
	}
	h.logger.Info("Session content erased", zap.String("sessionID", id))
	return c.JSON(http.StatusOK, MessageResponse{
		Success: true,
		Message: fmt.Sprintf("Content of session %s erased", id),
	})
}

func (h *Handler) sessionSummary(c echo.Context) error {
	id := c.Param("id")
	summary, err := h.store.SessionSummary(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err, "Failed to get session summary")
	}
	return c.JSON(http.StatusOK, SessionSummaryResponse{
		Success: true,
		Summary: summary,
		Message: fmt.Sprintf("Summary for session %s", id),
	})
}
