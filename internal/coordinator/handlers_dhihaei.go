// internal/coordinator/handlers_dhihaei.go
package coordinator

import (
	"strings"

	"github.com/thaasbai/thaasbai/internal/game"
	"github.com/thaasbai/thaasbai/internal/protocol"
	"github.com/thaasbai/thaasbai/internal/session"
)

func handleCreateRoom(c *Coordinator, s *session.Session, _ *game.Room, _ int, data map[string]interface{}) {
	if _, bound := s.Binding(); bound {
		c.sendErr(s, protocol.ErrAlreadyInRoom)
		return
	}
	name := strings.TrimSpace(data["playerName"].(string))
	c.dropFromQueue(s)

	room := c.Rooms.Create(protocol.GameDhihaEi, 4)
	c.Counters.RoomsCreated.Add(1)

	room.Mu.Lock()
	defer room.Mu.Unlock()
	pos, _ := room.AddPlayerUnsafe(s.SID, name)
	s.Bind(room.GameType, room.Code, pos)

	c.send(s, protocol.EvRoomCreated, map[string]interface{}{
		"roomId":   room.Code,
		"position": pos,
		"players":  room.PlayersPayloadUnsafe(),
	})
}

func handleJoinRoom(c *Coordinator, s *session.Session, _ *game.Room, _ int, data map[string]interface{}) {
	joinRoom(c, s, protocol.GameDhihaEi, data)
}

// joinRoom is the shared join path for both namespaces.
func joinRoom(c *Coordinator, s *session.Session, gameType string, data map[string]interface{}) {
	if _, bound := s.Binding(); bound {
		c.sendErr(s, protocol.ErrAlreadyInRoom)
		return
	}
	code := protocol.NormalizeRoomCode(data["roomId"].(string))
	name := strings.TrimSpace(data["playerName"].(string))
	c.dropFromQueue(s)

	room, ok := c.Rooms.Get(gameType, code)
	if !ok {
		c.sendErr(s, protocol.ErrRoomNotFound)
		return
	}

	room.Mu.Lock()
	defer room.Mu.Unlock()

	if room.Status != game.StatusWaiting {
		c.sendErr(s, protocol.ErrGameInProgress)
		return
	}
	pos, err := room.AddPlayerUnsafe(s.SID, name)
	if err != nil {
		c.sendErr(s, protocol.ErrRoomFull)
		return
	}
	s.Bind(gameType, code, pos)

	joined, changed := protocol.EvRoomJoined, protocol.EvPlayersChanged
	if gameType == protocol.GameDigu {
		joined, changed = protocol.EvDiguRoomJoined, protocol.EvDiguPlayersChanged
	}
	c.send(s, joined, map[string]interface{}{
		"roomId":     room.Code,
		"position":   pos,
		"players":    room.PlayersPayloadUnsafe(),
		"maxPlayers": room.MaxPlayers,
	})
	c.broadcastUnsafe(room, s.SID, changed, map[string]interface{}{
		"players": room.PlayersPayloadUnsafe(),
	})
}

func handleLeaveRoom(c *Coordinator, s *session.Session, room *game.Room, pos int, _ map[string]interface{}) {
	leaveRoom(c, s, room, pos)
}

// leaveRoom vacates the caller's slot. In a playing room the departure is
// surfaced as player_disconnected and the room stays playing with a vacant
// slot; the clients decide what to do about it.
func leaveRoom(c *Coordinator, s *session.Session, room *game.Room, pos int) {
	room.RemovePlayerUnsafe(pos)
	s.Unbind()

	left := protocol.EvLeftRoom
	changed := protocol.EvPlayersChanged
	gone := protocol.EvPlayerDisconnected
	if room.GameType == protocol.GameDigu {
		left = protocol.EvDiguLeftRoom
		changed = protocol.EvDiguPlayersChanged
		gone = protocol.EvDiguPlayerDisconnected
	}

	if room.EmptyUnsafe() {
		c.destroyRoomUnsafe(room)
	} else if room.Status == game.StatusPlaying {
		c.broadcastUnsafe(room, "", gone, map[string]interface{}{
			"position": pos,
			"players":  room.PlayersPayloadUnsafe(),
		})
	} else {
		c.broadcastUnsafe(room, "", changed, map[string]interface{}{
			"players": room.PlayersPayloadUnsafe(),
		})
	}
	c.send(s, left, map[string]interface{}{})
}

func handleSetReady(c *Coordinator, s *session.Session, room *game.Room, pos int, data map[string]interface{}) {
	setReady(c, s, room, pos, data)
}

// setReady toggles the caller's ready flag; setting an already-set flag is
// idempotent. Only meaningful while waiting.
func setReady(c *Coordinator, s *session.Session, room *game.Room, pos int, data map[string]interface{}) {
	if room.Status != game.StatusWaiting {
		c.sendErr(s, protocol.ErrGameInProgress)
		return
	}
	room.Players[pos].Ready = data["ready"].(bool)

	changed := protocol.EvPlayersChanged
	if room.GameType == protocol.GameDigu {
		changed = protocol.EvDiguPlayersChanged
	}
	c.broadcastUnsafe(room, "", changed, map[string]interface{}{
		"players": room.PlayersPayloadUnsafe(),
	})
}

func handleSwapPlayer(c *Coordinator, s *session.Session, room *game.Room, _ int, data map[string]interface{}) {
	if room.Status != game.StatusWaiting {
		c.sendErr(s, protocol.ErrGameInProgress)
		return
	}
	fromPos := int(data["fromPosition"].(float64))

	toPos, err := room.SwapUnsafe(fromPos)
	if err != nil {
		c.sendErr(s, protocol.ErrInvalidPayload)
		return
	}

	// Rebind the sessions whose positions moved.
	for _, p := range []int{fromPos, toPos} {
		if slot, ok := room.Players[p]; ok {
			if sess, found := c.Sessions.Get(slot.OderID); found {
				sess.Bind(room.GameType, room.Code, p)
			}
		}
	}

	players := room.PlayersPayloadUnsafe()
	c.broadcastUnsafe(room, "", protocol.EvPlayersChanged, map[string]interface{}{
		"players": players,
	})
	c.broadcastUnsafe(room, "", protocol.EvPositionChanged, map[string]interface{}{
		"fromPosition": fromPos,
		"toPosition":   toPos,
		"players":      players,
	})
}

func handleStartGame(c *Coordinator, s *session.Session, room *game.Room, _ int, data map[string]interface{}) {
	startGame(c, s, room, data, nil)
}

// startGame transitions waiting -> playing and emits the per-member start
// event. The hands payload is the one privacy-sensitive filter the
// coordinator performs: each member receives only its own position's hand.
func startGame(c *Coordinator, s *session.Session, room *game.Room, data map[string]interface{}, diguExtra func(*game.Room, map[string]interface{})) {
	if room.Status != game.StatusWaiting {
		c.sendErr(s, protocol.ErrGameInProgress)
		return
	}
	gameState := data["gameState"].(map[string]interface{})
	hands := data["hands"].(map[string]interface{})

	if err := room.StartUnsafe(gameState, hands); err != nil {
		c.sendErr(s, protocol.ErrRoomNotReady)
		return
	}
	if diguExtra != nil {
		diguExtra(room, data)
	}

	started := protocol.EvGameStarted
	if room.GameType == protocol.GameDigu {
		started = protocol.EvDiguGameStarted
	}
	players := room.PlayersPayloadUnsafe()
	for pos, slot := range room.Players {
		if !slot.Connected {
			continue
		}
		member, ok := c.Sessions.Get(slot.OderID)
		if !ok {
			continue
		}
		c.send(member, started, map[string]interface{}{
			"gameState":          room.GameState,
			"hand":               room.HandForUnsafe(pos),
			"position":           pos,
			"players":            players,
			"currentPlayerIndex": room.CurrentPlayerIndex,
		})
	}
}

func handleCardPlayed(c *Coordinator, s *session.Session, room *game.Room, pos int, data map[string]interface{}) {
	card := data["card"]

	room.CurrentPlayerIndex = (pos + 1) % room.MaxPlayers
	room.CardsPlayedInTrick++

	c.broadcastUnsafe(room, s.SID, protocol.EvRemoteCardPlayed, map[string]interface{}{
		"card":               card,
		"position":           pos,
		"currentPlayerIndex": room.CurrentPlayerIndex,
	})
	c.send(s, protocol.EvTurnChanged, map[string]interface{}{
		"currentPlayerIndex": room.CurrentPlayerIndex,
	})
}

func handleTrickCompleted(c *Coordinator, _ *session.Session, room *game.Room, _ int, data map[string]interface{}) {
	winner := int(data["winner"].(float64))

	room.CurrentPlayerIndex = winner
	room.CardsPlayedInTrick = 0

	c.broadcastUnsafe(room, "", protocol.EvTrickWinnerSet, map[string]interface{}{
		"winner":             winner,
		"currentPlayerIndex": room.CurrentPlayerIndex,
	})
}

func handleUpdateGameState(c *Coordinator, s *session.Session, room *game.Room, _ int, data map[string]interface{}) {
	room.GameState = data["gameState"].(map[string]interface{})
	c.broadcastUnsafe(room, s.SID, protocol.EvGameStateUpdated, map[string]interface{}{
		"gameState": room.GameState,
	})
}

func handleNewRound(c *Coordinator, _ *session.Session, room *game.Room, _ int, data map[string]interface{}) {
	room.GameState = data["gameState"].(map[string]interface{})
	room.Hands = data["hands"].(map[string]interface{})
	room.CurrentPlayerIndex = game.CurrentIndexFromState(room.GameState)
	room.CardsPlayedInTrick = 0

	c.broadcastUnsafe(room, "", protocol.EvRoundStarted, map[string]interface{}{
		"gameState":          room.GameState,
		"hands":              room.Hands,
		"currentPlayerIndex": room.CurrentPlayerIndex,
	})
}

func handleReadyForRound(c *Coordinator, _ *session.Session, room *game.Room, pos int, _ map[string]interface{}) {
	if room.MarkRoundReadyUnsafe(pos) {
		c.broadcastUnsafe(room, "", protocol.EvAllReadyForRound, map[string]interface{}{})
	}
}

func handleGameOver(c *Coordinator, _ *session.Session, room *game.Room, pos int, data map[string]interface{}) {
	room.FinishUnsafe()
	c.broadcastUnsafe(room, "", protocol.EvGameOver, map[string]interface{}{
		"results":    data["results"],
		"declaredBy": pos,
	})
}
