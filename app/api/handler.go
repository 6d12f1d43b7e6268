package api

import (
	"courserag/app/rag"
	"courserag/types"

	"github.com/gofiber/fiber/v2"
)

type RequestHandler struct {
	system *rag.System
}

func NewRequestHandler(system *rag.System) *RequestHandler {
	return &RequestHandler{
		system: system,
	}
}

// HandleQuery answers one user turn. The session id is created lazily when
// the request carries none and always returned to the caller.
func (h *RequestHandler) HandleQuery(c *fiber.Ctx) error {
	var params types.QueryParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	answer, sources, sessionID, err := h.system.Query(c.Context(), params.Query, params.SessionID)
	if err != nil {
		return err
	}

	return c.JSON(&types.QueryResponse{
		Answer:    answer,
		Sources:   sources,
		SessionID: sessionID,
	})
}

// HandleCourseStats exposes the metadata collection projection.
func (h *RequestHandler) HandleCourseStats(c *fiber.Ctx) error {
	stats, err := h.system.Stats(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(stats)
}
