package router

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gabrielmiguelok/crimedesk/pkg/core"
	"github.com/gabrielmiguelok/crimedesk/pkg/logging"
	"github.com/gabrielmiguelok/crimedesk/pkg/transport"
)

// LiveViewSession binds one live connection to its component instance.
type LiveViewSession struct {
	ID       string
	SocketID string
	Route    string

	Component core.Component
	Socket    *core.Socket
	Transport *transport.Conn

	Params  core.Params
	Session core.Session

	// JoinRef is echoed on every reply for the channel.
	JoinRef string

	CreatedAt    time.Time
	LastActivity time.Time
	Mounted      bool

	// Version orders diffs on the client.
	Version uint64

	Log logging.Logger

	slotHashes map[string]uint64
	slotMu     sync.RWMutex
	closeOnce  sync.Once

	// compMu serializes calls into Component. The reaper and the close
	// watcher terminate sessions from outside the message loop.
	compMu     sync.Mutex
	terminated bool

	mu sync.RWMutex
}

// NewLiveViewSession creates a session for a socket.
func NewLiveViewSession(socketID string, comp core.Component, params core.Params, session core.Session) *LiveViewSession {
	now := time.Now()
	return &LiveViewSession{
		ID:           uuid.NewString(),
		SocketID:     socketID,
		Component:    comp,
		Params:       params,
		Session:      session,
		CreatedAt:    now,
		LastActivity: now,
		Log:          logging.NopLogger{},
	}
}

// withComponent runs fn with exclusive access to the component. Once the
// session is terminated fn is skipped and false is returned.
func (s *LiveViewSession) withComponent(fn func()) bool {
	s.compMu.Lock()
	defer s.compMu.Unlock()
	if s.terminated {
		return false
	}
	fn()
	return true
}

// terminate marks the session terminated and calls Component.Terminate
// after any in-flight component call has returned.
func (s *LiveViewSession) terminate(ctx context.Context, reason core.TerminateReason) error {
	s.compMu.Lock()
	defer s.compMu.Unlock()
	s.terminated = true
	if s.Component == nil {
		return nil
	}
	return s.Component.Terminate(ctx, reason)
}

// GetSlotHashes returns the slot hashes of the last render.
func (s *LiveViewSession) GetSlotHashes() map[string]uint64 {
	s.slotMu.RLock()
	defer s.slotMu.RUnlock()
	return s.slotHashes
}

// SetSlotHashes stores the slot hashes of the last render.
func (s *LiveViewSession) SetSlotHashes(hashes map[string]uint64) {
	s.slotMu.Lock()
	defer s.slotMu.Unlock()
	s.slotHashes = hashes
}

// NextVersion increments and returns the diff version.
func (s *LiveViewSession) NextVersion() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Version++
	return s.Version
}

// UpdateActivity records activity on the session.
func (s *LiveViewSession) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActivity = time.Now()
}

// GetLastActivity returns the time of the last activity.
func (s *LiveViewSession) GetLastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastActivity
}

func (s *LiveViewSession) SetMounted(mounted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Mounted = mounted
}

func (s *LiveViewSession) IsMounted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Mounted
}

func (s *LiveViewSession) SetJoinRef(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.JoinRef = ref
}

func (s *LiveViewSession) GetJoinRef() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.JoinRef
}

// LiveViewSessionManager tracks active live sessions.
type LiveViewSessionManager struct {
	sessions map[string]*LiveViewSession
	bySocket map[string]*LiveViewSession

	// maxSessions is the session cap; 0 means unlimited.
	maxSessions int

	mu sync.RWMutex
}

// LiveViewSessionManagerConfig configures the session manager.
type LiveViewSessionManagerConfig struct {
	MaxSessions int
}

// DefaultSessionManagerConfig returns the default configuration.
func DefaultSessionManagerConfig() *LiveViewSessionManagerConfig {
	return &LiveViewSessionManagerConfig{
		MaxSessions: 10000,
	}
}

// NewLiveViewSessionManager creates a manager with the default configuration.
func NewLiveViewSessionManager() *LiveViewSessionManager {
	return NewLiveViewSessionManagerWithConfig(DefaultSessionManagerConfig())
}

// NewLiveViewSessionManagerWithConfig creates a manager.
func NewLiveViewSessionManagerWithConfig(config *LiveViewSessionManagerConfig) *LiveViewSessionManager {
	if config == nil {
		config = DefaultSessionManagerConfig()
	}
	return &LiveViewSessionManager{
		sessions:    make(map[string]*LiveViewSession),
		bySocket:    make(map[string]*LiveViewSession),
		maxSessions: config.MaxSessions,
	}
}

// Create registers a new session, evicting the least recently active one at the cap.
func (m *LiveViewSessionManager) Create(socketID string, comp core.Component, params core.Params, session core.Session) *LiveViewSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		m.evictOldestLocked()
	}

	lvSession := NewLiveViewSession(socketID, comp, params, session)
	m.sessions[lvSession.ID] = lvSession
	m.bySocket[socketID] = lvSession

	return lvSession
}

// Get returns a session by ID.
func (m *LiveViewSessionManager) Get(sessionID string) (*LiveViewSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}

// GetBySocket returns a session by socket ID.
func (m *LiveViewSessionManager) GetBySocket(socketID string) (*LiveViewSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.bySocket[socketID]
	return s, ok
}

// Remove deletes a session.
func (m *LiveViewSessionManager) Remove(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[sessionID]; ok {
		delete(m.bySocket, s.SocketID)
		delete(m.sessions, sessionID)
	}
}

// Count returns the number of active sessions.
func (m *LiveViewSessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Expired returns the sessions idle for longer than maxIdle. They stay
// registered until their connection closes.
func (m *LiveViewSessionManager) Expired(maxIdle time.Duration) []*LiveViewSession {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	var out []*LiveViewSession
	for _, s := range m.sessions {
		if now.Sub(s.GetLastActivity()) > maxIdle {
			out = append(out, s)
		}
	}
	return out
}

// evictOldestLocked must be called with m.mu held.
func (m *LiveViewSessionManager) evictOldestLocked() {
	var oldest *LiveViewSession

	for _, s := range m.sessions {
		if oldest == nil || s.GetLastActivity().Before(oldest.GetLastActivity()) {
			oldest = s
		}
	}

	if oldest != nil {
		delete(m.bySocket, oldest.SocketID)
		delete(m.sessions, oldest.ID)
		if oldest.Transport != nil {
			go oldest.Transport.Close()
		}
	}
}

// socketConn lets a core.Socket push through a live connection.
type socketConn struct {
	*transport.Conn
}

func (c socketConn) Send(msg core.Message) error {
	return c.Conn.Send(transport.Message{
		Ref:     msg.Ref,
		Topic:   msg.Topic,
		Event:   msg.Event,
		Payload: msg.Payload,
	})
}
