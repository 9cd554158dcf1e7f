package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"symcheck/internal/logging"
	"symcheck/internal/observability"
)

// ErrSessionNotFound is returned for unknown or expired session IDs.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore keeps live sessions in memory and expires idle ones.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
	metrics  *observability.MetricsCollector
	logger   logging.Logger
}

// NewSessionStore creates a store. A ttl of zero disables expiry.
func NewSessionStore(ttl time.Duration, metrics *observability.MetricsCollector, logger logging.Logger) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
		metrics:  metrics,
		logger:   logging.OrNop(logger),
	}
}

// Create registers a fresh session.
func (s *SessionStore) Create(ctx context.Context) *Session {
	session := NewSession()
	session.touch(s.now())

	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()

	s.metrics.IncrementActiveSessions(ctx)
	s.logger.Debug("Created session %s", session.ID())
	return session
}

// Get returns the session with id.
func (s *SessionStore) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Delete drops the session with id.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.metrics.DecrementActiveSessions(ctx)
	return nil
}

// WithSession looks up id, marks it active and runs fn with it.
// Turns on one session are serialized by the session itself.
func (s *SessionStore) WithSession(id string, fn func(*Session) error) error {
	session, err := s.Get(id)
	if err != nil {
		return err
	}
	session.touch(s.now())
	defer session.touch(s.now())
	return fn(session)
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// were removed.
func (s *SessionStore) Sweep(ctx context.Context) int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	var expired []string
	for id, session := range s.sessions {
		if session.LastActive().Before(cutoff) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for range expired {
		s.metrics.DecrementActiveSessions(ctx)
	}
	if len(expired) > 0 {
		s.logger.Info("Expired %d idle sessions", len(expired))
	}
	return len(expired)
}

// RunSweeper sweeps every interval until ctx is cancelled.
func (s *SessionStore) RunSweeper(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}
