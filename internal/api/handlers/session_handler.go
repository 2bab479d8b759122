package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/docqa/backend/internal/engine"
	"github.com/docqa/backend/internal/errs"
	"github.com/docqa/backend/pkg/logger"
)

type SessionHandler struct {
	engine *engine.Engine
}

func NewSessionHandler(engine *engine.Engine) *SessionHandler {
	return &SessionHandler{engine: engine}
}

func (h *SessionHandler) CreateSession(c *fiber.Ctx) error {
	sess := h.engine.CreateSession()

	logger.Info("Session created", zap.String("session_id", sess.ID))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"session_id": sess.ID,
		"created_at": sess.CreatedAt,
	})
}

func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	sess, err := h.engine.GetSession(c.Params("sessionId"))
	if err != nil {
		return sessionError(c, err)
	}

	return c.JSON(fiber.Map{
		"session_id": sess.ID,
		"created_at": sess.CreatedAt,
		"documents":  h.engine.ListDocuments(sess),
		"turns":      len(h.engine.History(sess)),
	})
}

func (h *SessionHandler) EndSession(c *fiber.Ctx) error {
	id := c.Params("sessionId")

	if err := h.engine.EndSession(c.Context(), id); err != nil {
		return sessionError(c, err)
	}

	logger.Info("Session ended", zap.String("session_id", id))

	return c.JSON(fiber.Map{
		"message": "Session ended",
	})
}

// sessionError maps engine errors onto HTTP statuses shared by every
// handler touching a session.
func sessionError(c *fiber.Ctx, err error) error {
	if errors.Is(err, errs.ErrSessionNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Session not found",
		})
	}

	logger.Error("Session operation failed", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal server error",
	})
}
