// internal/coordinator/digu_test.go
package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thaasbai/thaasbai/internal/game"
	"github.com/thaasbai/thaasbai/internal/protocol"
	"github.com/thaasbai/thaasbai/internal/session"
)

// setupDigu seats two ready players in a 2-player digu room and starts the
// game with the given piles.
func setupDigu(t *testing.T, c *Coordinator, stock, discard []interface{}) ([]*session.Session, string) {
	t.Helper()
	s1 := connect(t, c)
	dispatch(c, s1, protocol.EvCreateDiguRoom, map[string]interface{}{
		"playerName": "A", "maxPlayers": 2.0,
	})
	created := expect(t, s1, protocol.EvDiguRoomCreated)
	code := created["roomId"].(string)
	require.Equal(t, 2, created["maxPlayers"])

	s2 := connect(t, c)
	dispatch(c, s2, protocol.EvJoinDiguRoom, map[string]interface{}{
		"roomId": code, "playerName": "B",
	})
	expect(t, s2, protocol.EvDiguRoomJoined)
	expect(t, s1, protocol.EvDiguPlayersChanged)

	sessions := []*session.Session{s1, s2}
	for _, s := range sessions {
		dispatch(c, s, protocol.EvDiguSetReady, map[string]interface{}{"ready": true})
	}
	for _, s := range sessions {
		drainOutbox(s)
	}

	dispatch(c, s1, protocol.EvStartDiguGame, map[string]interface{}{
		"gameState":   map[string]interface{}{"currentPlayerIndex": 0.0},
		"hands":       map[string]interface{}{"0": []interface{}{"a1"}, "1": []interface{}{"b1"}},
		"stockPile":   stock,
		"discardPile": discard,
	})
	for i, s := range sessions {
		data := expect(t, s, protocol.EvDiguGameStarted)
		hand := []interface{}{"a1"}
		if i == 1 {
			hand = []interface{}{"b1"}
		}
		assert.Equal(t, hand, data["hand"])
	}
	return sessions, code
}

func TestDiguMaxPlayersClamped(t *testing.T) {
	c := newTestCoordinator()
	s := connect(t, c)
	dispatch(c, s, protocol.EvCreateDiguRoom, map[string]interface{}{
		"playerName": "A", "maxPlayers": 9.0,
	})
	created := expect(t, s, protocol.EvDiguRoomCreated)
	assert.Equal(t, 4, created["maxPlayers"], "out-of-range sizes clamp to 4")
}

func TestDiguDrawDiscardCycle(t *testing.T) {
	c := newTestCoordinator()
	sessions, _ := setupDigu(t, c,
		[]interface{}{"c1", "c2"}, []interface{}{"d1"})

	// Draw from stock: every member, drawer included, learns the card.
	dispatch(c, sessions[0], protocol.EvDiguDrawCard, map[string]interface{}{"source": "stock"})
	for _, s := range sessions {
		data := expect(t, s, protocol.EvDiguCardDrawn)
		assert.Equal(t, "c1", data["card"])
		assert.Equal(t, "stock", data["source"])
		assert.Equal(t, 0, data["position"])
		assert.Equal(t, game.PhaseDiscard, data["gamePhase"])
		assert.Equal(t, 1, data["stockCount"])
		assert.Equal(t, 1, data["discardCount"])
	}

	// Drawing again in the discard phase is a turn violation.
	dispatch(c, sessions[0], protocol.EvDiguDrawCard, map[string]interface{}{"source": "stock"})
	expectError(t, sessions[0], protocol.ErrNotYourTurn)
	expectNone(t, sessions[1])

	// Discard advances the turn and flips the phase back.
	discarded := map[string]interface{}{"suit": "hearts", "rank": "five"}
	dispatch(c, sessions[0], protocol.EvDiguDiscardCard, map[string]interface{}{"card": discarded})
	data := expect(t, sessions[1], protocol.EvDiguRemoteCardDiscarded)
	assert.Equal(t, discarded, data["card"])
	assert.Equal(t, 1, data["currentPlayerIndex"])
	assert.Equal(t, game.PhaseDraw, data["gamePhase"])
	turn := expect(t, sessions[0], protocol.EvDiguTurnChanged)
	assert.Equal(t, 1, turn["currentPlayerIndex"])

	// Next player draws the freshly discarded card from the discard pile.
	dispatch(c, sessions[1], protocol.EvDiguDrawCard, map[string]interface{}{"source": "discard"})
	for _, s := range sessions {
		data := expect(t, s, protocol.EvDiguCardDrawn)
		assert.Equal(t, discarded, data["card"])
		assert.Equal(t, "discard", data["source"])
		assert.Equal(t, 1, data["position"])
	}

	// Out-of-turn discard from the first player is rejected.
	dispatch(c, sessions[0], protocol.EvDiguDiscardCard, map[string]interface{}{"card": discarded})
	expectError(t, sessions[0], protocol.ErrNotYourTurn)
}

func TestDiguStockReshuffle(t *testing.T) {
	c := newTestCoordinator()
	sessions, _ := setupDigu(t, c, []interface{}{}, []interface{}{"d1"})

	// Stock is empty: the discard pile reshuffles into it, then the draw
	// proceeds.
	dispatch(c, sessions[0], protocol.EvDiguDrawCard, map[string]interface{}{"source": "stock"})
	for _, s := range sessions {
		resh := expect(t, s, protocol.EvDiguStockReshuffled)
		assert.Equal(t, 1, resh["stockCount"])
	}
	for _, s := range sessions {
		data := expect(t, s, protocol.EvDiguCardDrawn)
		assert.Equal(t, "d1", data["card"])
		assert.Equal(t, 0, data["stockCount"])
	}
}

func TestDiguEmptyPiles(t *testing.T) {
	c := newTestCoordinator()
	sessions, _ := setupDigu(t, c, []interface{}{}, []interface{}{})

	dispatch(c, sessions[0], protocol.EvDiguDrawCard, map[string]interface{}{"source": "stock"})
	expectError(t, sessions[0], protocol.ErrEmptyStock)

	dispatch(c, sessions[0], protocol.EvDiguDrawCard, map[string]interface{}{"source": "discard"})
	expectError(t, sessions[0], protocol.ErrEmptyStock)
	expectNone(t, sessions[1])
}

func TestDiguDeclareRelaysToOthers(t *testing.T) {
	c := newTestCoordinator()
	sessions, _ := setupDigu(t, c, []interface{}{"c1"}, []interface{}{})

	melds := []interface{}{[]interface{}{"3h", "3s", "3d"}}
	dispatch(c, sessions[0], protocol.EvDiguDeclare, map[string]interface{}{
		"melds": melds, "isValid": true,
	})
	data := expect(t, sessions[1], protocol.EvDiguRemoteDeclare)
	assert.Equal(t, melds, data["melds"])
	assert.Equal(t, true, data["isValid"])
	assert.Equal(t, 0, data["position"])
	expectNone(t, sessions[0])
}

func TestDiguGameOverAndNewMatch(t *testing.T) {
	c := newTestCoordinator()
	sessions, code := setupDigu(t, c, []interface{}{"c1"}, []interface{}{})

	// A new match resets the piles and state while playing.
	dispatch(c, sessions[0], protocol.EvDiguNewMatch, map[string]interface{}{
		"gameState":   map[string]interface{}{"currentPlayerIndex": 1.0},
		"hands":       map[string]interface{}{"0": []interface{}{"a2"}, "1": []interface{}{"b2"}},
		"stockPile":   []interface{}{"n1"},
		"discardPile": []interface{}{},
	})
	for _, s := range sessions {
		data := expect(t, s, protocol.EvDiguMatchStarted)
		assert.Equal(t, 1, data["currentPlayerIndex"])
		assert.Equal(t, game.PhaseDraw, data["gamePhase"])
	}

	dispatch(c, sessions[1], protocol.EvDiguGameOver, map[string]interface{}{
		"results": map[string]interface{}{"winner": 1.0},
	})
	for _, s := range sessions {
		data := expect(t, s, protocol.EvDiguGameOver)
		assert.Equal(t, 1, data["declaredBy"])
	}

	room, ok := c.Rooms.Get(protocol.GameDigu, code)
	require.True(t, ok)
	room.Mu.Lock()
	assert.Equal(t, game.StatusFinished, room.Status)
	room.Mu.Unlock()

	// A rematch out of finished is rejected: the status ladder is monotone.
	dispatch(c, sessions[0], protocol.EvDiguNewMatch, map[string]interface{}{
		"gameState": map[string]interface{}{}, "hands": map[string]interface{}{},
	})
	expectError(t, sessions[0], protocol.ErrNotPlaying)
}

func TestDiguQueueMatchesBySize(t *testing.T) {
	c := newTestCoordinator()

	a := connect(t, c)
	dispatch(c, a, protocol.EvJoinQueue, map[string]interface{}{
		"gameType": protocol.GameDigu, "playerName": "A", "maxPlayers": 2.0,
	})
	expect(t, a, protocol.EvQueueJoined)

	// A 3-player request does not complete the 2-player bucket.
	b := connect(t, c)
	dispatch(c, b, protocol.EvJoinQueue, map[string]interface{}{
		"gameType": protocol.GameDigu, "playerName": "B", "maxPlayers": 3.0,
	})
	drainOutbox(a)
	drainOutbox(b)

	d := connect(t, c)
	dispatch(c, d, protocol.EvJoinQueue, map[string]interface{}{
		"gameType": protocol.GameDigu, "playerName": "D", "maxPlayers": 2.0,
	})

	var matched map[string]interface{}
	for {
		f := mustRecv(t, d)
		if f.Event == protocol.EvMatchmakingMatched {
			matched = f.Data
			break
		}
	}
	assert.Equal(t, 2, matched["maxPlayers"])
	room, ok := c.Rooms.Get(protocol.GameDigu, matched["roomId"].(string))
	require.True(t, ok)
	room.Mu.Lock()
	assert.Equal(t, 2, room.OccupiedUnsafe())
	room.Mu.Unlock()

	_, _, stillQueued := c.Queues.BucketFor(b.SID)
	assert.True(t, stillQueued)
}
