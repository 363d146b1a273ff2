// internal/coordinator/handlers_digu.go
package coordinator

import (
	"math/rand"
	"strings"

	"github.com/thaasbai/thaasbai/internal/game"
	"github.com/thaasbai/thaasbai/internal/matchmaking"
	"github.com/thaasbai/thaasbai/internal/protocol"
	"github.com/thaasbai/thaasbai/internal/session"
)

func handleCreateDiguRoom(c *Coordinator, s *session.Session, _ *game.Room, _ int, data map[string]interface{}) {
	if _, bound := s.Binding(); bound {
		c.sendErr(s, protocol.ErrAlreadyInRoom)
		return
	}
	name := strings.TrimSpace(data["playerName"].(string))
	c.dropFromQueue(s)
	maxPlayers := 4
	if f, ok := data["maxPlayers"].(float64); ok {
		maxPlayers = matchmaking.NormalizeSize(protocol.GameDigu, int(f))
	}

	room := c.Rooms.Create(protocol.GameDigu, maxPlayers)
	c.Counters.RoomsCreated.Add(1)

	room.Mu.Lock()
	defer room.Mu.Unlock()
	pos, _ := room.AddPlayerUnsafe(s.SID, name)
	s.Bind(room.GameType, room.Code, pos)

	c.send(s, protocol.EvDiguRoomCreated, map[string]interface{}{
		"roomId":     room.Code,
		"position":   pos,
		"players":    room.PlayersPayloadUnsafe(),
		"maxPlayers": room.MaxPlayers,
	})
}

func handleJoinDiguRoom(c *Coordinator, s *session.Session, _ *game.Room, _ int, data map[string]interface{}) {
	joinRoom(c, s, protocol.GameDigu, data)
}

func handleLeaveDiguRoom(c *Coordinator, s *session.Session, room *game.Room, pos int, _ map[string]interface{}) {
	leaveRoom(c, s, room, pos)
}

func handleDiguSetReady(c *Coordinator, s *session.Session, room *game.Room, pos int, data map[string]interface{}) {
	setReady(c, s, room, pos, data)
}

func handleStartDiguGame(c *Coordinator, s *session.Session, room *game.Room, _ int, data map[string]interface{}) {
	startGame(c, s, room, data, applyDiguPiles)
}

// applyDiguPiles stores the client-dealt stock and discard piles the server
// holds authoritatively for the duration of the match.
func applyDiguPiles(room *game.Room, data map[string]interface{}) {
	room.StockPile, _ = data["stockPile"].([]interface{})
	room.DiscardPile, _ = data["discardPile"].([]interface{})
	room.GamePhase = game.PhaseDraw
}

// reshuffleStockUnsafe moves the whole discard pile into the stock in a
// random order. Returns false when there was nothing to reshuffle.
func reshuffleStockUnsafe(room *game.Room) bool {
	if len(room.DiscardPile) == 0 {
		return false
	}
	pile := room.DiscardPile
	rand.Shuffle(len(pile), func(i, j int) { pile[i], pile[j] = pile[j], pile[i] })
	room.StockPile = pile
	room.DiscardPile = nil
	return true
}

func handleDiguDrawCard(c *Coordinator, s *session.Session, room *game.Room, pos int, data map[string]interface{}) {
	if room.GamePhase != game.PhaseDraw {
		c.sendErr(s, protocol.ErrNotYourTurn)
		return
	}
	source := data["source"].(string)

	var card interface{}
	switch source {
	case "stock":
		if len(room.StockPile) == 0 {
			if !reshuffleStockUnsafe(room) {
				c.sendErr(s, protocol.ErrEmptyStock)
				return
			}
			c.broadcastUnsafe(room, "", protocol.EvDiguStockReshuffled, map[string]interface{}{
				"stockCount": len(room.StockPile),
			})
		}
		card = room.StockPile[0]
		room.StockPile = room.StockPile[1:]
	case "discard":
		if len(room.DiscardPile) == 0 {
			c.sendErr(s, protocol.ErrEmptyStock)
			return
		}
		card = room.DiscardPile[len(room.DiscardPile)-1]
		room.DiscardPile = room.DiscardPile[:len(room.DiscardPile)-1]
	}

	room.GamePhase = game.PhaseDiscard

	// The drawn card is server-authoritative, so the drawer receives it too;
	// a stock draw is otherwise invisible to the drawing client.
	c.broadcastUnsafe(room, "", protocol.EvDiguCardDrawn, map[string]interface{}{
		"source":             source,
		"card":               card,
		"position":           pos,
		"currentPlayerIndex": room.CurrentPlayerIndex,
		"gamePhase":          room.GamePhase,
		"stockCount":         len(room.StockPile),
		"discardCount":       len(room.DiscardPile),
	})
}

func handleDiguDiscardCard(c *Coordinator, s *session.Session, room *game.Room, pos int, data map[string]interface{}) {
	if room.GamePhase != game.PhaseDiscard {
		c.sendErr(s, protocol.ErrNotYourTurn)
		return
	}
	card := data["card"]

	room.DiscardPile = append(room.DiscardPile, card)
	room.CurrentPlayerIndex = (pos + 1) % room.MaxPlayers
	room.GamePhase = game.PhaseDraw

	reshuffled := false
	if len(room.StockPile) == 0 {
		reshuffled = reshuffleStockUnsafe(room)
	}

	c.broadcastUnsafe(room, s.SID, protocol.EvDiguRemoteCardDiscarded, map[string]interface{}{
		"card":               card,
		"position":           pos,
		"currentPlayerIndex": room.CurrentPlayerIndex,
		"gamePhase":          room.GamePhase,
	})
	c.send(s, protocol.EvDiguTurnChanged, map[string]interface{}{
		"currentPlayerIndex": room.CurrentPlayerIndex,
		"gamePhase":          room.GamePhase,
	})
	if reshuffled {
		c.broadcastUnsafe(room, "", protocol.EvDiguStockReshuffled, map[string]interface{}{
			"stockCount": len(room.StockPile),
		})
	}
}

func handleDiguDeclare(c *Coordinator, s *session.Session, room *game.Room, pos int, data map[string]interface{}) {
	c.broadcastUnsafe(room, s.SID, protocol.EvDiguRemoteDeclare, map[string]interface{}{
		"position": pos,
		"melds":    data["melds"],
		"isValid":  data["isValid"],
	})
}

func handleDiguUpdateState(c *Coordinator, s *session.Session, room *game.Room, _ int, data map[string]interface{}) {
	room.GameState = data["gameState"].(map[string]interface{})
	c.broadcastUnsafe(room, s.SID, protocol.EvDiguStateUpdated, map[string]interface{}{
		"gameState": room.GameState,
	})
}

func handleDiguGameOver(c *Coordinator, _ *session.Session, room *game.Room, pos int, data map[string]interface{}) {
	room.FinishUnsafe()
	c.broadcastUnsafe(room, "", protocol.EvDiguGameOver, map[string]interface{}{
		"results":    data["results"],
		"declaredBy": pos,
	})
}

func handleDiguNewMatch(c *Coordinator, _ *session.Session, room *game.Room, _ int, data map[string]interface{}) {
	room.GameState = data["gameState"].(map[string]interface{})
	room.Hands = data["hands"].(map[string]interface{})
	room.CurrentPlayerIndex = game.CurrentIndexFromState(room.GameState)
	room.GamePhase = game.PhaseDraw
	room.StockPile, _ = data["stockPile"].([]interface{})
	room.DiscardPile, _ = data["discardPile"].([]interface{})

	c.broadcastUnsafe(room, "", protocol.EvDiguMatchStarted, map[string]interface{}{
		"gameState":          room.GameState,
		"hands":              room.Hands,
		"currentPlayerIndex": room.CurrentPlayerIndex,
		"gamePhase":          room.GamePhase,
	})
}
