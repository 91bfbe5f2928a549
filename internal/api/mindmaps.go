package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/satriahrh/voicemap/server/domain/repositories"
	"github.com/satriahrh/voicemap/server/usecase"
)

func (h *Handler) listMindMaps(c echo.Context) error {
	limit, offset, err := pagination(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	ctx := c.Request().Context()
	id := c.Param("id")
	if _, err := h.store.Get(ctx, id); err != nil {
		return h.fail(c, err, "Failed to get mind maps")
	}

	maps, err := h.store.SessionMindMaps(ctx, id, limit, offset)
	if err != nil {
		return h.fail(c, err, "Failed to get mind maps")
	}
	out := make([]MindMapData, 0, len(maps))
	for _, m := range maps {
		out = append(out, newMindMapData(m))
	}
	return c.JSON(http.StatusOK, MindMapListResponse{
		Success:  true,
		MindMaps: out,
	})
}

// generateMindMap runs the mind-map stage synchronously
func (h *Handler) generateMindMap(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if _, err := h.store.Get(ctx, id); err != nil {
		return h.fail(c, err, "Failed to generate mind map")
	}
	randomSeed, _ := strconv.ParseBool(c.QueryParam("use_random_seed"))

	mindMap, err := h.analysis.GenerateMindMap(ctx, id, randomSeed)
	switch {
	case errors.Is(err, usecase.ErrNoTranscripts):
		return badRequest(c, fmt.Sprintf("session %s has no transcripts", id))
	case errors.Is(err, usecase.ErrNoMindMap):
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "no_mind_map",
			Message: "The model did not produce a usable mind map",
		})
	case errors.Is(err, repositories.ErrLLMUnavailable):
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "llm_unavailable",
			Message: err.Error(),
		})
	case err != nil:
		return h.fail(c, err, "Failed to generate mind map")
	}

	return c.JSON(http.StatusOK, MindMapResponse{
		Success: true,
		MindMap: newMindMapData(mindMap),
	})
}

func (h *Handler) deleteMindMap(c echo.Context) error {
	mapID, err := strconv.ParseInt(c.Param("mapId"), 10, 64)
	if err != nil {
		return badRequest(c, "mind map id must be an integer")
	}

	ctx := c.Request().Context()
	sessionID := c.Param("id")
	mindMap, err := h.store.GetMindMap(ctx, mapID)
	if err != nil {
		return h.fail(c, err, "Failed to delete mind map")
	}
	if mindMap.SessionID != sessionID {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: fmt.Sprintf("mind map %d not found in session %s", mapID, sessionID),
		})
	}
	if err := h.store.DeleteMindMap(ctx, mapID); err != nil {
		return h.fail(c, err, "Failed to delete mind map")
	}
	return c.JSON(http.StatusOK, MessageResponse{
		Success: true,
		Message: "Mind map deleted successfully",
	})
}
