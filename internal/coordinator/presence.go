// internal/coordinator/presence.go
package coordinator

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/thaasbai/thaasbai/internal/game"
	"github.com/thaasbai/thaasbai/internal/protocol"
	"github.com/thaasbai/thaasbai/internal/session"
)

// Janitor cadence and garbage-collection horizons.
const (
	janitorInterval    = 30 * time.Second
	waitingIdleLimit   = 60 * time.Minute
	finishedLingerTime = 5 * time.Minute
)

// HandleDisconnect runs when a session's transport drops. The session
// leaves any matchmaking queue immediately; a room slot is kept for the
// grace window so a quick reconnect (tab hide, network blip) can reattach.
func (c *Coordinator) HandleDisconnect(s *session.Session) {
	c.dropFromQueue(s)

	if b, bound := s.Binding(); bound {
		if room, ok := c.Rooms.Get(b.GameType, b.RoomCode); ok {
			room.Mu.Lock()
			if pos, seated := room.FindBySIDUnsafe(s.SID); seated {
				slot := room.Players[pos]
				slot.Connected = false
				slot.LastSeenAt = time.Now()

				sid := s.SID
				gameType, code := b.GameType, b.RoomCode
				timer := time.AfterFunc(c.GraceWindow, func() {
					c.expireGrace(gameType, code, pos, sid)
				})
				room.SetGraceUnsafe(pos, timer)
				c.log.WithFields(logrus.Fields{
					"sid": sid, "room": code, "position": pos,
				}).Info("player disconnected, grace window open")
			}
			room.Mu.Unlock()
		}
	}

	c.Sessions.Remove(s.SID)
}

// expireGrace vacates a slot whose grace window elapsed without a
// reattach. Host migration is implicit: the host is always the occupant of
// the smallest remaining position.
func (c *Coordinator) expireGrace(gameType, code string, pos int, sid string) {
	room, ok := c.Rooms.Get(gameType, code)
	if !ok {
		return
	}

	room.Mu.Lock()
	defer room.Mu.Unlock()

	room.ClearGraceUnsafe(pos)
	slot, present := room.Players[pos]
	if !present || slot.OderID != sid || slot.Connected {
		// Reattached, rejoined, or replaced while we slept.
		return
	}
	delete(room.Players, pos)
	c.log.WithFields(logrus.Fields{"room": code, "position": pos}).
		Info("grace window expired, slot vacated")

	if room.EmptyUnsafe() {
		c.destroyRoomUnsafe(room)
		return
	}

	gone := protocol.EvPlayerDisconnected
	if gameType == protocol.GameDigu {
		gone = protocol.EvDiguPlayerDisconnected
	}
	c.broadcastUnsafe(room, "", gone, map[string]interface{}{
		"position": pos,
		"players":  room.PlayersPayloadUnsafe(),
	})
}

// RunJanitor garbage-collects stale rooms until ctx is cancelled.
func (c *Coordinator) RunJanitor(ctx context.Context) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// Sweep destroys rooms that outlived their usefulness: finished rooms past
// their linger time, and waiting rooms idle for over an hour without at
// least two connected players.
func (c *Coordinator) Sweep() {
	now := time.Now()
	for _, room := range c.Rooms.All() {
		room.Mu.Lock()
		stale := (room.Status == game.StatusFinished && now.Sub(room.FinishedAt) > finishedLingerTime) ||
			(room.Status == game.StatusWaiting && now.Sub(room.CreatedAt) > waitingIdleLimit && room.ConnectedUnsafe() < 2)
		if stale {
			c.log.WithFields(logrus.Fields{
				"room": room.Code, "gameType": room.GameType, "status": room.Status,
			}).Info("janitor collecting stale room")
			c.destroyRoomUnsafe(room)
		}
		room.Mu.Unlock()
	}
}
