package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/voicemap/server/internal/settings"
)

var whisperLanguages = []WhisperLanguage{
	{Code: "auto", Name: "Auto-detect"},
	{Code: "en", Name: "English"},
	{Code: "pl", Name: "Polish"},
	{Code: "es", Name: "Spanish"},
	{Code: "fr", Name: "French"},
	{Code: "de", Name: "German"},
	{Code: "it", Name: "Italian"},
	{Code: "pt", Name: "Portuguese"},
	{Code: "ru", Name: "Russian"},
	{Code: "ja", Name: "Japanese"},
	{Code: "ko", Name: "Korean"},
	{Code: "zh", Name: "Chinese"},
}

var whisperModels = []WhisperModel{
	{ID: "tiny", Name: "Tiny (39M)", Description: "Fastest, least accurate"},
	{ID: "base", Name: "Base (74M)", Description: "Good balance of speed and accuracy"},
	{ID: "small", Name: "Small (244M)", Description: "Better accuracy, slower"},
	{ID: "medium", Name: "Medium (769M)", Description: "High accuracy, slower"},
	{ID: "large", Name: "Large (1550M)", Description: "Best accuracy, slowest"},
}

// getSettings returns the effective settings, temporary override included
func (h *Handler) getSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, SettingsResponse{
		Success:  true,
		Settings: h.settings.Current(c.Request().Context()),
		Message:  "Settings retrieved successfully",
	})
}

func (h *Handler) updateSettings(c echo.Context) error {
	var req settings.Update
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request format")
	}

	ctx := c.Request().Context()
	if _, err := h.settings.Update(ctx, req); err != nil {
		if errors.Is(err, settings.ErrInvalidSettings) {
			return badRequest(c, err.Error())
		}
		return h.fail(c, err, "Failed to update settings")
	}
	return c.JSON(http.StatusOK, SettingsResponse{
		Success:  true,
		Settings: h.settings.Current(ctx),
		Message:  "Settings updated successfully",
	})
}

func (h *Handler) applyTemporarySettings(c echo.Context) error {
	var req settings.TemporaryOverride
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request format")
	}

	active, err := h.settings.ApplyTemporary(req)
	if err != nil {
		return badRequest(c, err.Error())
	}
	h.logger.Info("Temporary settings applied", zap.Strings("keys", req.Keys()))
	return c.JSON(http.StatusOK, TemporarySettingsResponse{
		Success:           true,
		Message:           "LLM settings applied temporarily",
		AppliedSettings:   req.Keys(),
		TemporarySettings: active,
	})
}

func (h *Handler) getTemporarySettings(c echo.Context) error {
	active, ok := h.settings.Temporary()
	resp := TemporarySettingsResponse{
		Success:         true,
		AppliedSettings: active.Keys(),
	}
	if ok {
		resp.TemporarySettings = active
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) clearTemporarySettings(c echo.Context) error {
	message := "No temporary settings to clear"
	if h.settings.ClearTemporary() {
		message = "Temporary settings cleared"
	}
	return c.JSON(http.StatusOK, MessageResponse{
		Success: true,
		Message: message,
	})
}

func (h *Handler) whisperLanguages(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"success":   true,
		"languages": whisperLanguages,
		"message":   "Available Whisper languages retrieved",
	})
}

func (h *Handler) whisperModels(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"models":  whisperModels,
		"message": "Available Whisper models retrieved",
	})
}
