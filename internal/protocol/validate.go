// internal/protocol/validate.go
package protocol

import "strings"

// MaxPlayerNameLen bounds the trimmed playerName field.
const MaxPlayerNameLen = 24

// validators maps each client event to its payload contract. An event absent
// from this table is not part of the protocol.
var validators = map[string]func(map[string]interface{}) bool{
	EvCreateRoom: func(d map[string]interface{}) bool {
		return validName(d)
	},
	EvJoinRoom: func(d map[string]interface{}) bool {
		return validName(d) && validRoomID(d)
	},
	EvLeaveRoom: always,
	EvSetReady: func(d map[string]interface{}) bool {
		return hasBool(d, "ready")
	},
	EvStartGame: func(d map[string]interface{}) bool {
		return hasMap(d, "gameState") && hasMap(d, "hands")
	},
	EvSwapPlayer: func(d map[string]interface{}) bool {
		return hasIntInRange(d, "fromPosition", 0, 3)
	},
	EvCardPlayed: func(d map[string]interface{}) bool {
		return hasMap(d, "card")
	},
	EvTrickCompleted: func(d map[string]interface{}) bool {
		return hasIntInRange(d, "winner", 0, 3)
	},
	EvUpdateGameState: func(d map[string]interface{}) bool {
		return hasMap(d, "gameState")
	},
	EvNewRound: func(d map[string]interface{}) bool {
		return hasMap(d, "gameState") && hasMap(d, "hands")
	},
	EvReadyForRound: always,
	EvGameOver: func(d map[string]interface{}) bool {
		_, ok := d["results"]
		return ok
	},

	EvCreateDiguRoom: func(d map[string]interface{}) bool {
		if _, present := d["maxPlayers"]; present && !hasNumber(d, "maxPlayers") {
			return false
		}
		return validName(d)
	},
	EvJoinDiguRoom: func(d map[string]interface{}) bool {
		return validName(d) && validRoomID(d)
	},
	EvLeaveDiguRoom: always,
	EvDiguSetReady: func(d map[string]interface{}) bool {
		return hasBool(d, "ready")
	},
	EvStartDiguGame: func(d map[string]interface{}) bool {
		return hasMap(d, "gameState") && hasMap(d, "hands")
	},
	EvDiguDrawCard: func(d map[string]interface{}) bool {
		src, ok := d["source"].(string)
		return ok && (src == "stock" || src == "discard")
	},
	EvDiguDiscardCard: func(d map[string]interface{}) bool {
		return hasMap(d, "card")
	},
	EvDiguDeclare: func(d map[string]interface{}) bool {
		_, melds := d["melds"].([]interface{})
		return melds && hasBool(d, "isValid")
	},
	EvDiguUpdateState: func(d map[string]interface{}) bool {
		return hasMap(d, "gameState")
	},
	EvDiguGameOver: func(d map[string]interface{}) bool {
		_, ok := d["results"]
		return ok
	},
	EvDiguNewMatch: func(d map[string]interface{}) bool {
		return hasMap(d, "gameState") && hasMap(d, "hands")
	},

	EvJoinQueue: func(d map[string]interface{}) bool {
		gt, ok := d["gameType"].(string)
		if !ok || (gt != GameDhihaEi && gt != GameDigu) {
			return false
		}
		if _, present := d["maxPlayers"]; present && !hasNumber(d, "maxPlayers") {
			return false
		}
		return validName(d)
	},
	EvLeaveQueue: always,
	EvReattach: func(d map[string]interface{}) bool {
		gt, ok := d["gameType"].(string)
		if !ok || (gt != GameDhihaEi && gt != GameDigu) {
			return false
		}
		prev, ok := d["previousOderId"].(string)
		return ok && prev != "" && validRoomID(d)
	},
	EvPingKeepalive: always,
}

// Validate reports whether the payload satisfies the event's contract.
// Unknown events fail: the catalogue is closed.
func Validate(event string, data map[string]interface{}) bool {
	v, ok := validators[event]
	if !ok {
		return false
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	return v(data)
}

// KnownEvent reports whether the event name is in the client catalogue.
func KnownEvent(event string) bool {
	_, ok := validators[event]
	return ok
}

func always(map[string]interface{}) bool { return true }

func validName(d map[string]interface{}) bool {
	name, ok := d["playerName"].(string)
	if !ok {
		return false
	}
	trimmed := strings.TrimSpace(name)
	return len(trimmed) >= 1 && len(trimmed) <= MaxPlayerNameLen
}

func validRoomID(d map[string]interface{}) bool {
	id, ok := d["roomId"].(string)
	return ok && IsRoomCode(id)
}

func hasBool(d map[string]interface{}, key string) bool {
	_, ok := d[key].(bool)
	return ok
}

func hasMap(d map[string]interface{}, key string) bool {
	_, ok := d[key].(map[string]interface{})
	return ok
}

func hasNumber(d map[string]interface{}, key string) bool {
	_, ok := d[key].(float64)
	return ok
}

func hasIntInRange(d map[string]interface{}, key string, lo, hi int) bool {
	f, ok := d[key].(float64)
	if !ok || f != float64(int(f)) {
		return false
	}
	n := int(f)
	return n >= lo && n <= hi
}
