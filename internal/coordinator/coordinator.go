// internal/coordinator/coordinator.go
package coordinator

import (
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/thaasbai/thaasbai/internal/game"
	"github.com/thaasbai/thaasbai/internal/matchmaking"
	"github.com/thaasbai/thaasbai/internal/protocol"
	"github.com/thaasbai/thaasbai/internal/session"
)

// DefaultGraceWindow is how long a disconnected player's slot is held for
// reattachment before it is vacated.
const DefaultGraceWindow = 30 * time.Second

// slowHandlerThreshold triggers a warning log; handlers are expected to be
// small and CPU-bounded.
const slowHandlerThreshold = time.Second

// Counters are the process-lifetime counters exposed by the admin snapshot.
type Counters struct {
	ConnectionsAccepted atomic.Int64
	ConnectionsRefused  atomic.Int64
	FramesIn            atomic.Int64
	FramesOut           atomic.Int64
	RoomsCreated        atomic.Int64
	MatchesMade         atomic.Int64
	ErrorsSent          atomic.Int64
}

func (c *Counters) snapshot() map[string]int64 {
	return map[string]int64{
		"connectionsAccepted": c.ConnectionsAccepted.Load(),
		"connectionsRefused":  c.ConnectionsRefused.Load(),
		"framesIn":            c.FramesIn.Load(),
		"framesOut":           c.FramesOut.Load(),
		"roomsCreated":        c.RoomsCreated.Load(),
		"matchesMade":         c.MatchesMade.Load(),
		"errorsSent":          c.ErrorsSent.Load(),
	}
}

// Coordinator owns all realtime state: sessions, rooms, queues, and the
// event routing table that mutates them. It is the only component that
// touches more than one of those at a time, and it does so under the lock
// discipline described in DESIGN.md.
type Coordinator struct {
	log      *logrus.Logger
	Sessions *session.Registry
	Rooms    *game.Registry
	Queues   *matchmaking.Queues
	Counters *Counters

	GraceWindow time.Duration

	startedAt time.Time
	inflight  atomic.Int64
	routes    map[string]route
}

// New wires an empty coordinator.
func New(logger *logrus.Logger) *Coordinator {
	c := &Coordinator{
		log:         logger,
		Sessions:    session.NewRegistry(),
		Rooms:       game.NewRegistry(),
		Queues:      matchmaking.New(),
		Counters:    &Counters{},
		GraceWindow: DefaultGraceWindow,
		startedAt:   time.Now(),
	}
	c.routes = buildRoutes()
	return c
}

// InFlight reports how many handlers are currently executing; the health
// endpoint compares it against a high-water mark.
func (c *Coordinator) InFlight() int64 {
	return c.inflight.Load()
}

// Uptime since construction.
func (c *Coordinator) Uptime() time.Duration {
	return time.Since(c.startedAt)
}

// HandleConnect registers a fresh session and acks it with its sid.
func (c *Coordinator) HandleConnect(s *session.Session) {
	c.Sessions.Add(s)
	c.Counters.ConnectionsAccepted.Add(1)
	c.send(s, protocol.EvConnected, map[string]interface{}{"sid": s.SID})
}

// send enqueues an outbound frame and counts it.
func (c *Coordinator) send(s *session.Session, event string, data map[string]interface{}) {
	c.Counters.FramesOut.Add(1)
	s.Send(event, data)
}

// sendErr reports a protocol error to the offending session only. Errors
// are never broadcast and never mutate room state.
func (c *Coordinator) sendErr(s *session.Session, label string) {
	c.Counters.ErrorsSent.Add(1)
	c.Counters.FramesOut.Add(1)
	s.SendError(label)
}

// broadcastUnsafe fans an event out to every connected member of the room,
// optionally excluding one sid (senders do not receive echoes of their own
// relayed events). Caller holds the room lock; session sends are
// non-blocking enqueues and the session registry lock is a leaf, so no
// handler ever waits on another handler here.
func (c *Coordinator) broadcastUnsafe(room *game.Room, exceptSID, event string, data map[string]interface{}) {
	for _, p := range room.Players {
		if !p.Connected || p.OderID == exceptSID {
			continue
		}
		if s, ok := c.Sessions.Get(p.OderID); ok {
			c.send(s, event, data)
		}
	}
}

// destroyRoomUnsafe tears a room down: timers stopped, members unbound,
// registry entry removed. Caller holds the room lock.
func (c *Coordinator) destroyRoomUnsafe(room *game.Room) {
	room.StopAllGraceUnsafe()
	gameType, code := room.GameType, room.Code
	c.Sessions.ForEachInRoom(gameType, code, func(s *session.Session) {
		s.Unbind()
	})
	c.Rooms.Delete(gameType, code)
}

// Snapshot renders the admin view of the whole coordinator.
func (c *Coordinator) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"rooms":    c.Rooms.Snapshot(),
		"sessions": c.Sessions.Snapshot(),
		"queues":   c.Queues.Snapshot(),
		"uptime":   c.Uptime().String(),
		"counters": c.Counters.snapshot(),
	}
}
