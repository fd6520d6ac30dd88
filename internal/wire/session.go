package wire

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matthewbaird/recordview/internal/controller"
	"github.com/matthewbaird/recordview/internal/orchestrator"
	"github.com/matthewbaird/recordview/internal/value"
)

// outboxSize bounds the messages queued for one connection.
const outboxSize = 256

// Session holds per-connection state. The screen is only touched on the
// bus thread; the outbox is drained by the connection's writer.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu           sync.Mutex
	lastActiveAt time.Time

	screen *orchestrator.Screen
	out    chan ServerMessage
}

// NewSession creates an idle session.
func NewSession() *Session {
	now := time.Now()
	return &Session{
		ID:           uuid.New().String(),
		CreatedAt:    now,
		lastActiveAt: now,
		out:          make(chan ServerMessage, outboxSize),
	}
}

// Touch updates the last activity timestamp.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActiveAt = time.Now()
	s.mu.Unlock()
}

// LastActiveAt returns the last activity timestamp.
func (s *Session) LastActiveAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActiveAt
}

// IsExpired returns true if the session has exceeded the given max age.
func (s *Session) IsExpired(maxAge time.Duration) bool {
	return time.Since(s.CreatedAt) > maxAge
}

// IsIdle returns true if the session has been idle longer than the timeout.
func (s *Session) IsIdle(timeout time.Duration) bool {
	return time.Since(s.LastActiveAt()) > timeout
}

// push queues msg for the writer. A full outbox drops the message so the
// bus thread never blocks on a slow client.
func (s *Session) push(msg ServerMessage) {
	select {
	case s.out <- msg:
	default:
		log.Printf("wire: session %s: outbox full, dropping %s", s.ID, msg.Type)
	}
}

func (s *Session) pushError(requestID, code, message string) {
	s.push(ServerMessage{Type: "error", RequestID: requestID, Data: ErrorData{Code: code, Message: message}})
}

// pushGroup snapshots the screen group. It must run on the bus thread.
func (s *Session) pushGroup(scr *orchestrator.Screen, requestID string) {
	g := scr.Group()
	if g == nil {
		return
	}
	raw, err := json.Marshal(g)
	if err != nil {
		log.Printf("wire: session %s: encoding group: %v", s.ID, err)
		return
	}
	s.push(ServerMessage{Type: "group", RequestID: requestID, Data: GroupData{ScreenID: scr.ID(), Group: raw}})
}

// Settled implements orchestrator.Listener.
func (s *Session) Settled(scr *orchestrator.Screen) {
	d := StateData{ScreenID: scr.ID(), State: scr.State().String()}
	if t := scr.Root().Tab(); t != nil {
		d.Tab = t.Name
	}
	if err := scr.Err(); err != nil {
		d.Error = err.Error()
	}
	s.push(ServerMessage{Type: "state", Data: d})
	s.pushGroup(scr, "")
}

// ValueChanged implements orchestrator.Listener.
func (s *Session) ValueChanged(_ *orchestrator.Screen, v value.Field) {
	s.push(ServerMessage{Type: "value", Data: ValueData{Name: v.Name, Value: v.Value}})
}

// Navigate implements orchestrator.Listener.
func (s *Session) Navigate(_ *orchestrator.Screen, nav controller.Navigation) {
	d := NavigateData{Target: nav.Target, Record: nav.Record}
	if nav.Values != nil {
		d.Values = nav.Values.Strings()
	}
	s.push(ServerMessage{Type: "navigate", Data: d})
}

// Manager handles session creation, lookup, and cleanup.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	maxAge      time.Duration
	idleTimeout time.Duration
}

// NewManager creates a session manager with the given timeouts.
func NewManager(maxAge, idleTimeout time.Duration) *Manager {
	return &Manager{
		sessions:    make(map[string]*Session),
		maxAge:      maxAge,
		idleTimeout: idleTimeout,
	}
}

// Create creates a new session and returns it.
func (m *Manager) Create() *Session {
	s := NewSession()
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get retrieves a session by ID. Returns nil if not found or expired.
func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	if s.IsExpired(m.maxAge) || s.IsIdle(m.idleTimeout) {
		m.Remove(id)
		return nil
	}
	return s
}

// Remove deletes a session.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Len returns the number of tracked sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Cleanup removes all expired and idle sessions. Called periodically.
func (m *Manager) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.IsExpired(m.maxAge) || s.IsIdle(m.idleTimeout) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}
