// internal/coordinator/handlers_queue.go
package coordinator

import (
	"math/rand"
	"strings"
	"time"

	"github.com/thaasbai/thaasbai/internal/game"
	"github.com/thaasbai/thaasbai/internal/matchmaking"
	"github.com/thaasbai/thaasbai/internal/protocol"
	"github.com/thaasbai/thaasbai/internal/session"
)

func handlePingKeepalive(_ *Coordinator, _ *session.Session, _ *game.Room, _ int, _ map[string]interface{}) {
	// Receipt alone is liveness; Dispatch already stamped the session.
}

func handleJoinQueue(c *Coordinator, s *session.Session, _ *game.Room, _ int, data map[string]interface{}) {
	if _, bound := s.Binding(); bound {
		c.sendErr(s, protocol.ErrAlreadyInRoom)
		return
	}
	gameType := data["gameType"].(string)
	name := strings.TrimSpace(data["playerName"].(string))
	size := 4
	if f, ok := data["maxPlayers"].(float64); ok {
		size = int(f)
	}
	size = matchmaking.NormalizeSize(gameType, size)

	drained, waiting := c.Queues.Join(&matchmaking.Entry{
		SID:        s.SID,
		PlayerName: name,
		GameType:   gameType,
		Size:       size,
		JoinedAt:   time.Now(),
	})

	// When this join completed a match the bucket already drained; report
	// the full table rather than the now-empty queue.
	if drained != nil {
		waiting = size
	}
	needed := size - waiting
	if needed < 0 {
		needed = 0
	}
	c.send(s, protocol.EvQueueJoined, map[string]interface{}{
		"gameType":       gameType,
		"playersInQueue": waiting,
		"playersNeeded":  needed,
	})
	c.broadcastQueueStatus(gameType, size)

	if drained != nil {
		c.seatMatch(gameType, size, drained)
	}
}

func handleLeaveQueue(c *Coordinator, s *session.Session, _ *game.Room, _ int, _ map[string]interface{}) {
	gameType, size, queued := c.Queues.BucketFor(s.SID)
	c.Queues.Leave(s.SID)
	c.send(s, protocol.EvQueueLeft, map[string]interface{}{})
	if queued {
		c.broadcastQueueStatus(gameType, size)
	}
}

// dropFromQueue removes a session from any queue it waits in, notifying the
// remaining members. A session is in at most one queue and one room; every
// path that seats a player calls this first.
func (c *Coordinator) dropFromQueue(s *session.Session) {
	if gameType, size, queued := c.Queues.BucketFor(s.SID); queued {
		c.Queues.Leave(s.SID)
		c.broadcastQueueStatus(gameType, size)
	}
}

// broadcastQueueStatus pushes the current bucket count to everyone still
// waiting in it.
func (c *Coordinator) broadcastQueueStatus(gameType string, size int) {
	members := c.Queues.Members(gameType, size)
	needed := size - len(members)
	if needed < 0 {
		needed = 0
	}
	for _, e := range members {
		if s, ok := c.Sessions.Get(e.SID); ok {
			c.send(s, protocol.EvQueueUpdate, map[string]interface{}{
				"gameType":       gameType,
				"playersInQueue": len(members),
				"playersNeeded":  needed,
			})
		}
	}
}

// seatMatch synthesizes a room for a drained queue bucket and notifies the
// matched players. The drain itself already happened atomically under the
// queue lock, so none of these sids can be seated twice.
func (c *Coordinator) seatMatch(gameType string, size int, entries []*matchmaking.Entry) {
	room := c.Rooms.Create(gameType, size)
	c.Counters.RoomsCreated.Add(1)
	c.Counters.MatchesMade.Add(1)

	positions := make([]int, size)
	for i := range positions {
		positions[i] = i
	}
	if gameType == protocol.GameDhihaEi {
		// Randomize team assignment for quick matches.
		rand.Shuffle(len(positions), func(i, j int) {
			positions[i], positions[j] = positions[j], positions[i]
		})
	}

	room.Mu.Lock()
	defer room.Mu.Unlock()
	room.QuickMatch = true

	now := time.Now()
	seated := make(map[int]*session.Session, size)
	next := 0
	for _, e := range entries {
		sess, ok := c.Sessions.Get(e.SID)
		if !ok {
			// Disconnected between drain and seating; their slot is simply
			// not created.
			continue
		}
		pos := positions[next]
		next++
		room.Players[pos] = &game.PlayerSlot{
			OderID:     e.SID,
			Name:       e.PlayerName,
			Connected:  true,
			LastSeenAt: now,
		}
		sess.Bind(gameType, room.Code, pos)
		seated[pos] = sess
	}

	players := room.PlayersPayloadUnsafe()
	for pos, sess := range seated {
		c.send(sess, protocol.EvMatchmakingMatched, map[string]interface{}{
			"gameType":   gameType,
			"roomId":     room.Code,
			"position":   pos,
			"players":    players,
			"maxPlayers": room.MaxPlayers,
		})
	}
}

func handleReattach(c *Coordinator, s *session.Session, _ *game.Room, _ int, data map[string]interface{}) {
	if _, bound := s.Binding(); bound {
		c.sendErr(s, protocol.ErrAlreadyInRoom)
		return
	}
	gameType := data["gameType"].(string)
	code := protocol.NormalizeRoomCode(data["roomId"].(string))
	prevSID := data["previousOderId"].(string)
	c.dropFromQueue(s)

	room, ok := c.Rooms.Get(gameType, code)
	if !ok {
		c.sendErr(s, protocol.ErrRoomNotFound)
		return
	}

	room.Mu.Lock()
	defer room.Mu.Unlock()

	pos := -1
	for p, slot := range room.Players {
		if slot.OderID == prevSID && !slot.Connected {
			pos = p
			break
		}
	}
	if pos == -1 {
		// The grace window already expired, or the slot was never theirs.
		c.sendErr(s, protocol.ErrRoomNotFound)
		return
	}

	slot := room.Players[pos]
	slot.OderID = s.SID
	slot.Connected = true
	slot.LastSeenAt = time.Now()
	room.CancelGraceUnsafe(pos)
	s.Bind(gameType, code, pos)

	joined, changed := protocol.EvRoomJoined, protocol.EvPlayersChanged
	if gameType == protocol.GameDigu {
		joined, changed = protocol.EvDiguRoomJoined, protocol.EvDiguPlayersChanged
	}
	payload := map[string]interface{}{
		"roomId":     room.Code,
		"position":   pos,
		"players":    room.PlayersPayloadUnsafe(),
		"maxPlayers": room.MaxPlayers,
	}
	if room.Status == game.StatusPlaying {
		payload["gameState"] = room.GameState
		payload["hand"] = room.HandForUnsafe(pos)
		payload["currentPlayerIndex"] = room.CurrentPlayerIndex
		if gameType == protocol.GameDigu {
			payload["gamePhase"] = room.GamePhase
		}
	}
	c.send(s, joined, payload)
	c.broadcastUnsafe(room, s.SID, changed, map[string]interface{}{
		"players": room.PlayersPayloadUnsafe(),
	})
}
