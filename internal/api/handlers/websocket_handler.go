package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/docqa/backend/internal/engine"
	"github.com/docqa/backend/internal/errs"
	"github.com/docqa/backend/pkg/logger"
)

// WebSocketHandler answers questions over a persistent connection. The
// session ID comes from the upgrade path; each frame carries one ask.
type WebSocketHandler struct {
	engine *engine.Engine
}

func NewWebSocketHandler(engine *engine.Engine) *WebSocketHandler {
	return &WebSocketHandler{engine: engine}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	sessionID, _ := c.Locals("sessionId").(string)

	logger.Info("WebSocket connection established", zap.String("session_id", sessionID))

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed", zap.String("session_id", sessionID))
	}()

	for {
		var msg struct {
			Type     string `json:"type"`
			Question string `json:"question"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			return
		}

		if msg.Type != "ask" || msg.Question == "" {
			continue
		}

		if err := h.answer(c, sessionID, msg.Question); err != nil {
			logger.Error("WebSocket ask failed",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
		}
	}
}

func (h *WebSocketHandler) answer(c *websocket.Conn, sessionID, question string) error {
	ctx := context.Background()

	sess, err := h.engine.GetSession(sessionID)
	if err != nil {
		return h.sendError(c, "Session not found")
	}

	h.send(c, "status", "Thinking...")

	result, err := h.engine.Ask(ctx, sess, question)
	if err != nil {
		if errs.IsRetryable(err) {
			return h.sendError(c, "Answering service unavailable. Please retry.")
		}
		return h.sendError(c, "Failed to answer question")
	}

	return c.WriteJSON(map[string]interface{}{
		"type":        "answer",
		"answer":      result.Answer,
		"references":  result.References,
		"citations":   result.Citations,
		"chunks_used": result.ChunksUsed,
	})
}

func (h *WebSocketHandler) send(c *websocket.Conn, msgType, content string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":    msgType,
		"content": content,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}
