package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"symcheck/internal/conversation"
	apperrors "symcheck/internal/errors"
	"symcheck/internal/report"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data: HealthResponse{
			Status:    "ok",
			Version:   s.config.Version,
			Timestamp: time.Now(),
			Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		},
	})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data: StatsResponse{
			ActiveSessions: s.deps.Sessions.Len(),
			Grounding:      s.deps.Evaluator.Snapshot(),
		},
	})
}

// handleResetStats starts a fresh grounding window, e.g. after reindexing.
func (s *Server) handleResetStats(c *gin.Context) {
	s.deps.Evaluator.Reset()
	s.logger.Info("Grounding statistics reset")
	s.handleStats(c)
}

func (s *Server) handleCreateSession(c *gin.Context) {
	session := s.deps.Sessions.Create(c.Request.Context())
	c.JSON(http.StatusCreated, APIResponse{
		Success: true,
		Data: SessionCreated{
			SessionID:      session.ID(),
			Stage:          session.Stage(),
			TotalQuestions: s.deps.Processor.NumFollowups(),
		},
	})
}

func (s *Server) handleGetSession(c *gin.Context) {
	session, err := s.deps.Sessions.Get(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: session.View()})
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	if err := s.deps.Sessions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Message: "session deleted"})
}

func (s *Server) handleSendMessage(c *gin.Context) {
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{Success: false, Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}

	var resp *conversation.Response
	err := s.deps.Sessions.WithSession(c.Param("id"), func(session *conversation.Session) error {
		var err error
		resp, err = s.deps.Processor.ProcessMessage(c.Request.Context(), session, req.Message)
		return err
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: resp})
}

func (s *Server) handleReport(c *gin.Context) {
	session, err := s.deps.Sessions.Get(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	result := session.LastDiagnosis()
	if result == nil {
		c.JSON(http.StatusConflict, APIResponse{Success: false, Error: "the assessment is not complete yet"})
		return
	}
	if s.deps.Reports == nil {
		c.JSON(http.StatusNotImplemented, APIResponse{Success: false, Error: "PDF export is not configured"})
		return
	}

	view := session.View()
	data, err := s.deps.Reports.Render(report.Input{
		SessionID: view.SessionID,
		CreatedAt: time.Now(),
		Narrative: view.History.Narrative(),
		Result:    result,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="symptom-report-%s.pdf"`, view.SessionID))
	c.Data(http.StatusOK, "application/pdf", data)
}

// writeError maps domain errors onto status codes. Collaborator failures get
// a retryable message; details go to the log only.
func (s *Server) writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	status := statusFor(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		message = apperrors.UserMessage(err)
	}
	c.JSON(status, APIResponse{Success: false, Error: message})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, conversation.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, conversation.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, report.ErrFontNotFound):
		return http.StatusServiceUnavailable
	case apperrors.IsDegraded(err):
		return http.StatusServiceUnavailable
	case apperrors.IsCollaborator(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
