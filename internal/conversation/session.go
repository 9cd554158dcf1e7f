package conversation

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"symcheck/internal/diagnosis"
	"symcheck/internal/types"
)

// Session is one patient's screening conversation. Its state changes only
// through Engine.ProcessMessage, which holds the session lock for the whole
// turn.
type Session struct {
	id        string
	createdAt time.Time

	mu            sync.Mutex
	history       types.History
	stage         Stage
	followupCount int
	lastDiagnosis *diagnosis.Result

	lastActive atomic.Int64 // unix nanos
}

// NewSession starts an empty session at INITIAL.
func NewSession() *Session {
	now := time.Now()
	s := &Session{
		id:        uuid.NewString(),
		createdAt: now,
		stage:     StageInitial,
	}
	s.lastActive.Store(now.UnixNano())
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Stage returns the current stage.
func (s *Session) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// LastDiagnosis returns the report produced when the session completed, or nil.
func (s *Session) LastDiagnosis() *diagnosis.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastDiagnosis
}

// LastActive is when the session was created or last processed a message.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

func (s *Session) touch(now time.Time) {
	s.lastActive.Store(now.UnixNano())
}

// View is a read-only snapshot of a session.
type View struct {
	SessionID     string        `json:"session_id"`
	Stage         Stage         `json:"stage"`
	FollowupCount int           `json:"followup_count"`
	History       types.History `json:"history"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// View snapshots the session.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		SessionID:     s.id,
		Stage:         s.stage,
		FollowupCount: s.followupCount,
		History:       s.history.Clone(),
		CreatedAt:     s.createdAt,
		UpdatedAt:     s.LastActive(),
	}
}
