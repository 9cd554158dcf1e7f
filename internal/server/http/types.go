package http

import (
	"time"

	"symcheck/internal/conversation"
	"symcheck/internal/rag/gate"
)

// APIResponse is the envelope every JSON endpoint returns.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// MessageRequest carries one user message.
type MessageRequest struct {
	Message string `json:"message" binding:"required"`
}

// SessionCreated is returned by POST /api/sessions.
type SessionCreated struct {
	SessionID      string             `json:"session_id"`
	Stage          conversation.Stage `json:"stage"`
	TotalQuestions int                `json:"total_questions"`
}

// StatsResponse reports grounding behaviour and load.
type StatsResponse struct {
	ActiveSessions int          `json:"active_sessions"`
	Grounding      gate.Summary `json:"grounding"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
}

// wsError is written to a websocket when a message fails.
type wsError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}
