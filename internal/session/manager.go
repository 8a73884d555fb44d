package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/attendance/internal/frame"
)

// Session is one attendance run visible to the API: its key, live state,
// and event stream.
type Session struct {
	Broadcaster

	ID        string     `json:"id"`
	Key       string     `json:"session_key"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	mu      sync.RWMutex
	state   State
	outcome *Outcome
	cancel  context.CancelFunc
}

// GetState returns the session's current state.
func (s *Session) GetState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// GetOutcome returns the final outcome, or nil while the session runs.
func (s *Session) GetOutcome() *Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outcome
}

// GetEndedAt returns when the session finished, or nil while it runs.
func (s *Session) GetEndedAt() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.EndedAt
}

// Stop requests cancellation. It takes effect at the next frame boundary.
func (s *Session) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	s.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Session) finish(outcome Outcome) {
	now := time.Now()
	s.mu.Lock()
	s.state = outcome.State
	s.outcome = &outcome
	s.EndedAt = &now
	s.mu.Unlock()
	s.closeAll()
}

// Manager starts sessions and tracks them by ID.
type Manager struct {
	controller *Controller

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager around a shared controller.
func NewManager(controller *Controller) *Manager {
	return &Manager{
		controller: controller,
		sessions:   make(map[string]*Session),
	}
}

// Start launches a session consuming the given frame source in the
// background. The source is closed when the run ends. sessionKey scopes the
// attendance records (e.g. "Math-2024-01-01").
func (m *Manager) Start(sessionKey string, src frame.Source) (*Session, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("session: session key is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess := &Session{
		ID:        uuid.New().String(),
		Key:       sessionKey,
		StartedAt: time.Now(),
		state:     StateCapturing,
		cancel:    cancel,
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	go func() {
		defer cancel()
		defer src.Close()
		outcome := m.controller.Run(ctx, sessionKey, src, &sess.Broadcaster)
		sess.finish(outcome)
	}()

	return sess, nil
}

// Get returns a session by ID, or nil.
func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// List returns all known sessions.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// Delete forgets a finished session. Running sessions are stopped first.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	sess := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if sess != nil && !sess.GetState().Terminal() {
		sess.Stop()
	}
}
