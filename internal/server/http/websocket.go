package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"symcheck/internal/conversation"
	apperrors "symcheck/internal/errors"
)

const wsWriteTimeout = 10 * time.Second

// handleWebSocket treats every text frame as one user message and answers
// with the Response JSON. Frames are handled in order on one goroutine, so a
// session never sees two turns at once from the same socket.
func (s *Server) handleWebSocket(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.deps.Sessions.Get(id); err != nil {
		s.writeError(c, err)
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed for session %s: %v", id, err)
		return
	}
	defer conn.Close()
	s.logger.Info("WebSocket connected for session %s", id)

	ctx := c.Request.Context()
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("WebSocket read failed for session %s: %v", id, err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var resp *conversation.Response
		err = s.deps.Sessions.WithSession(id, func(session *conversation.Session) error {
			var err error
			resp, err = s.deps.Processor.ProcessMessage(ctx, session, strings.TrimSpace(string(data)))
			return err
		})

		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err != nil {
			message := err.Error()
			if statusFor(err) >= http.StatusInternalServerError {
				message = apperrors.UserMessage(err)
			}
			if writeErr := conn.WriteJSON(wsError{Type: "error", Error: message}); writeErr != nil {
				return
			}
			if errors.Is(err, conversation.ErrSessionNotFound) {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "session expired"))
				return
			}
			continue
		}
		if err := conn.WriteJSON(resp); err != nil {
			s.logger.Warn("WebSocket write failed for session %s: %v", id, err)
			return
		}
	}
}
