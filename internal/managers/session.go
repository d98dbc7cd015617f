package managers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/chrissnell/snowrecorder/internal/session"
	"github.com/chrissnell/snowrecorder/internal/slope"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxRetainedStopped bounds how many stopped sessions stay readable in memory
const maxRetainedStopped = 64

var (
	ErrUnknownSession = errors.New("unknown session")
	ErrSessionExists  = errors.New("session already exists")
	ErrShuttingDown   = errors.New("session manager is shutting down")
)

// SessionManager owns the live sessions. Each session is its own actor; the
// manager forwards every session's events to the storage distributor.
type SessionManager struct {
	ctx         context.Context
	params      session.Params
	slopes      *slope.Index
	distributor chan<- session.Event
	logger      *zap.SugaredLogger

	mu       sync.RWMutex
	sessions map[string]*session.Session
	created  map[string]time.Time
	closed   bool

	forwarders sync.WaitGroup
}

// NewSessionManager creates a SessionManager. distributor may be nil, in
// which case events are drained and dropped.
func NewSessionManager(ctx context.Context, params session.Params, slopes *slope.Index, distributor chan<- session.Event, logger *zap.SugaredLogger) *SessionManager {
	return &SessionManager{
		ctx:         ctx,
		params:      params,
		slopes:      slopes,
		distributor: distributor,
		logger:      logger,
		sessions:    make(map[string]*session.Session),
		created:     make(map[string]time.Time),
	}
}

// Slopes returns the slope database shared by every session
func (m *SessionManager) Slopes() *slope.Index {
	return m.slopes
}

// Create registers a new session. An empty id gets a generated UUID.
func (m *SessionManager) Create(id string) (*session.Session, error) {
	if id == "" {
		id = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrShuttingDown
	}
	if _, exists := m.sessions[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, id)
	}

	s := session.New(id, m.params, m.slopes, m.logger)
	m.sessions[id] = s
	m.created[id] = time.Now()
	m.evictLocked()

	m.forwarders.Add(1)
	go m.forward(s)

	m.logger.Infow("session created", "session", id)
	return s, nil
}

// Start creates the session if needed and starts it
func (m *SessionManager) Start(id string, at time.Time) (*session.Session, error) {
	s, err := m.Get(id)
	if errors.Is(err, ErrUnknownSession) || id == "" {
		s, err = m.Create(id)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Start(at); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns a session by id
func (m *SessionManager) Get(id string) (*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return s, nil
}

// List returns a snapshot of every session, oldest first
func (m *SessionManager) List() []session.Snapshot {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ci, cj := m.created[ids[i]], m.created[ids[j]]
		if ci.Equal(cj) {
			return ids[i] < ids[j]
		}
		return ci.Before(cj)
	})
	sessions := make([]*session.Session, len(ids))
	for i, id := range ids {
		sessions[i] = m.sessions[id]
	}
	m.mu.RUnlock()

	snaps := make([]session.Snapshot, len(sessions))
	for i, s := range sessions {
		snaps[i] = s.Snapshot()
	}
	return snaps
}

// StopAll stops every running session and waits until their events have
// been handed to the distributor. No session can be created afterwards.
func (m *SessionManager) StopAll(ctx context.Context, at time.Time) {
	m.mu.Lock()
	m.closed = true
	sessions := make([]*session.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		snap := s.Snapshot()
		if !snap.Started || snap.Stopped {
			continue
		}
		if _, err := s.Stop(at); err != nil {
			m.logger.Warnw("could not stop session", "session", s.ID(), "error", err)
		}
	}

	// Sessions that were never started still hold a forwarder.
	for _, s := range sessions {
		if snap := s.Snapshot(); !snap.Started {
			s.Abandon()
		}
	}

	done := make(chan struct{})
	go func() {
		m.forwarders.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("timed out waiting for session events to drain")
	}
}

// forward moves one session's events into the distributor until the
// session's event stream closes
func (m *SessionManager) forward(s *session.Session) {
	defer m.forwarders.Done()
	for e := range s.Events() {
		if m.distributor == nil {
			continue
		}
		select {
		case m.distributor <- e:
		case <-m.ctx.Done():
			m.logger.Warnw("dropping session event at shutdown", "session", e.SessionID, "event", e.Kind)
		}
	}
}

// evictLocked drops the oldest stopped sessions beyond the retention bound
func (m *SessionManager) evictLocked() {
	var stopped []string
	for id, s := range m.sessions {
		if s.Snapshot().Stopped {
			stopped = append(stopped, id)
		}
	}
	if len(stopped) <= maxRetainedStopped {
		return
	}
	sort.Slice(stopped, func(i, j int) bool { return m.created[stopped[i]].Before(m.created[stopped[j]]) })
	for _, id := range stopped[:len(stopped)-maxRetainedStopped] {
		delete(m.sessions, id)
		delete(m.created, id)
	}
}
