// internal/session/session.go
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/thaasbai/thaasbai/internal/protocol"
)

// OutboxSize bounds the per-session send buffer. A session whose buffer
// overflows is marked unhealthy and its transport is closed.
const OutboxSize = 256

// Binding ties a session to a player slot in one room.
type Binding struct {
	GameType string
	RoomCode string
	Position int
}

// Session is the server-side identity of one transport connection. The sid
// is stable for the connection's lifetime; a reconnecting client gets a new
// session and inherits its old slot through the reattach flow.
type Session struct {
	SID         string
	IP          string
	ConnectedAt time.Time

	mu         sync.Mutex
	lastActive time.Time
	binding    *Binding
	out        chan protocol.Frame
	closed     bool
	unhealthy  bool
	onOverflow func()
}

// New creates a session for a connection from the given remote IP.
func New(ip string) *Session {
	now := time.Now()
	return &Session{
		SID:         uuid.NewString(),
		IP:          ip,
		ConnectedAt: now,
		lastActive:  now,
		out:         make(chan protocol.Frame, OutboxSize),
	}
}

// SetOverflowHandler registers the callback invoked once when the outbox
// fills. The transport layer uses it to tear the connection down.
func (s *Session) SetOverflowHandler(fn func()) {
	s.mu.Lock()
	s.onOverflow = fn
	s.mu.Unlock()
}

// Send enqueues an outbound frame. It never blocks: frames to a full or
// closed outbox are dropped, and a full outbox marks the session unhealthy.
func (s *Session) Send(event string, data map[string]interface{}) {
	if data == nil {
		data = map[string]interface{}{}
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	select {
	case s.out <- protocol.Frame{Event: event, Data: data}:
		s.mu.Unlock()
	default:
		overflow := s.onOverflow
		alreadyUnhealthy := s.unhealthy
		s.unhealthy = true
		s.mu.Unlock()
		log.WithFields(log.Fields{"sid": s.SID, "event": event}).
			Warn("session outbox full, dropping frame and closing")
		if overflow != nil && !alreadyUnhealthy {
			overflow()
		}
	}
}

// SendError enqueues an error frame with the given wire label.
func (s *Session) SendError(label string) {
	s.Send(protocol.EvError, map[string]interface{}{"message": label})
}

// Out exposes the outbox for the transport's write pump.
func (s *Session) Out() <-chan protocol.Frame {
	return s.out
}

// Close closes the outbox. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.out)
	}
}

// Healthy reports whether the outbox has ever overflowed.
func (s *Session) Healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.unhealthy
}

// Touch stamps the session's last-activity time.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// LastActive returns the last-activity timestamp.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Bind attaches the session to a room slot. A session is bound to at most
// one room at a time; rebinding replaces the previous binding.
func (s *Session) Bind(gameType, roomCode string, position int) {
	s.mu.Lock()
	s.binding = &Binding{GameType: gameType, RoomCode: roomCode, Position: position}
	s.mu.Unlock()
}

// Unbind detaches the session from its room.
func (s *Session) Unbind() {
	s.mu.Lock()
	s.binding = nil
	s.mu.Unlock()
}

// Binding returns the current room binding, if any.
func (s *Session) Binding() (Binding, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.binding == nil {
		return Binding{}, false
	}
	return *s.binding, true
}
