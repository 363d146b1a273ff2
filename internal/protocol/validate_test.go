// internal/protocol/validate_test.go
package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCreateRoom(t *testing.T) {
	assert.True(t, Validate(EvCreateRoom, map[string]interface{}{"playerName": "Aisha"}))
	assert.True(t, Validate(EvCreateRoom, map[string]interface{}{"playerName": "  Aisha  "}))
	assert.False(t, Validate(EvCreateRoom, map[string]interface{}{"playerName": ""}))
	assert.False(t, Validate(EvCreateRoom, map[string]interface{}{"playerName": "   "}))
	assert.False(t, Validate(EvCreateRoom, map[string]interface{}{"playerName": "this name is far far too long to fit"}))
	assert.False(t, Validate(EvCreateRoom, map[string]interface{}{"playerName": 42.0}))
	assert.False(t, Validate(EvCreateRoom, nil))
}

func TestValidateJoinRoom(t *testing.T) {
	assert.True(t, Validate(EvJoinRoom, map[string]interface{}{"roomId": "ABCDEF", "playerName": "B"}))
	assert.True(t, Validate(EvJoinRoom, map[string]interface{}{"roomId": "abcdef", "playerName": "B"}),
		"codes are accepted case-insensitively")
	assert.False(t, Validate(EvJoinRoom, map[string]interface{}{"roomId": "ABC", "playerName": "B"}))
	assert.False(t, Validate(EvJoinRoom, map[string]interface{}{"roomId": "ABCDE1", "playerName": "B"}),
		"1 is not in the alphabet")
	assert.False(t, Validate(EvJoinRoom, map[string]interface{}{"playerName": "B"}))
}

func TestValidateTurnEvents(t *testing.T) {
	assert.True(t, Validate(EvCardPlayed, map[string]interface{}{"card": map[string]interface{}{"suit": "hearts", "rank": "ace"}}))
	assert.False(t, Validate(EvCardPlayed, map[string]interface{}{"card": "ace"}))

	assert.True(t, Validate(EvTrickCompleted, map[string]interface{}{"winner": 3.0}))
	assert.False(t, Validate(EvTrickCompleted, map[string]interface{}{"winner": 4.0}))
	assert.False(t, Validate(EvTrickCompleted, map[string]interface{}{"winner": 1.5}))

	assert.True(t, Validate(EvDiguDrawCard, map[string]interface{}{"source": "stock"}))
	assert.True(t, Validate(EvDiguDrawCard, map[string]interface{}{"source": "discard"}))
	assert.False(t, Validate(EvDiguDrawCard, map[string]interface{}{"source": "hand"}))

	assert.True(t, Validate(EvDiguDeclare, map[string]interface{}{"melds": []interface{}{}, "isValid": true}))
	assert.False(t, Validate(EvDiguDeclare, map[string]interface{}{"isValid": true}))
}

func TestValidateQueueAndReattach(t *testing.T) {
	assert.True(t, Validate(EvJoinQueue, map[string]interface{}{"gameType": GameDhihaEi, "playerName": "C"}))
	assert.True(t, Validate(EvJoinQueue, map[string]interface{}{"gameType": GameDigu, "playerName": "C", "maxPlayers": 2.0}))
	assert.False(t, Validate(EvJoinQueue, map[string]interface{}{"gameType": "chess", "playerName": "C"}))
	assert.False(t, Validate(EvJoinQueue, map[string]interface{}{"gameType": GameDigu, "playerName": "C", "maxPlayers": "two"}))

	assert.True(t, Validate(EvReattach, map[string]interface{}{
		"gameType": GameDigu, "roomId": "ABCDEF", "previousOderId": "sid-1",
	}))
	assert.False(t, Validate(EvReattach, map[string]interface{}{
		"gameType": GameDigu, "roomId": "ABCDEF", "previousOderId": "",
	}))
}

func TestValidateUnknownEvent(t *testing.T) {
	assert.False(t, Validate("fire_missiles", map[string]interface{}{}))
	assert.False(t, KnownEvent("fire_missiles"))
	assert.True(t, KnownEvent(EvPingKeepalive))
}

func TestRoomCode(t *testing.T) {
	assert.True(t, IsRoomCode("ABCDEF"))
	assert.True(t, IsRoomCode(" abcdef "))
	assert.False(t, IsRoomCode("ABCDE"))
	assert.False(t, IsRoomCode("ABCDEI"), "I is excluded as ambiguous")
	assert.False(t, IsRoomCode("ABCDE0"), "0 is excluded as ambiguous")
	assert.Equal(t, "ABCDEF", NormalizeRoomCode("abcdef"))
}
