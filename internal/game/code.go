// internal/game/code.go
package game

import (
	"crypto/rand"

	"github.com/thaasbai/thaasbai/internal/protocol"
)

// NewCode generates a random room code from the reduced alphabet.
// Uniqueness within a namespace is the registry's job: it re-rolls on
// collision.
func NewCode() string {
	buf := make([]byte, protocol.RoomCodeLen)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the OS entropy source is broken;
		// there is no sensible recovery for a realtime server.
		panic(err)
	}
	for i, b := range buf {
		buf[i] = protocol.RoomCodeAlphabet[int(b)%len(protocol.RoomCodeAlphabet)]
	}
	return string(buf)
}
