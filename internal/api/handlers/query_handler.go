package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/docqa/backend/internal/engine"
	"github.com/docqa/backend/internal/errs"
	"github.com/docqa/backend/pkg/logger"
)

type QueryHandler struct {
	engine *engine.Engine
}

func NewQueryHandler(engine *engine.Engine) *QueryHandler {
	return &QueryHandler{engine: engine}
}

func (h *QueryHandler) Ask(c *fiber.Ctx) error {
	sess, err := h.engine.GetSession(c.Params("sessionId"))
	if err != nil {
		return sessionError(c, err)
	}

	var req struct {
		Question string `json:"question"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Question == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Question is required",
		})
	}

	result, err := h.engine.Ask(c.Context(), sess, req.Question)
	if err != nil {
		logger.Error("Ask failed",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
		if errs.IsRetryable(err) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Answering service unavailable. Please retry.",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to answer question",
		})
	}

	return c.JSON(fiber.Map{
		"answer":      result.Answer,
		"references":  result.References,
		"citations":   result.Citations,
		"chunks_used": result.ChunksUsed,
	})
}

func (h *QueryHandler) GetHistory(c *fiber.Ctx) error {
	sess, err := h.engine.GetSession(c.Params("sessionId"))
	if err != nil {
		return sessionError(c, err)
	}

	history := h.engine.History(sess)
	turns := make([]fiber.Map, len(history))
	for i, turn := range history {
		turns[i] = fiber.Map{
			"question":  turn.Question,
			"answer":    turn.Answer,
			"timestamp": turn.Timestamp,
		}
	}

	return c.JSON(fiber.Map{
		"history": turns,
	})
}

// GetAuditHistory serves the persisted ask trail. It intentionally does
// not require a live session: the trail outlives session end.
func (h *QueryHandler) GetAuditHistory(c *fiber.Ctx) error {
	records, err := h.engine.AuditHistory(c.Params("sessionId"), c.QueryInt("limit", 50))
	if err != nil {
		logger.Error("Audit history lookup failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read audit history",
		})
	}

	return c.JSON(fiber.Map{
		"records": records,
	})
}

func (h *QueryHandler) ClearHistory(c *fiber.Ctx) error {
	sess, err := h.engine.GetSession(c.Params("sessionId"))
	if err != nil {
		return sessionError(c, err)
	}

	h.engine.ClearHistory(sess)

	return c.JSON(fiber.Map{
		"message": "History cleared",
	})
}
