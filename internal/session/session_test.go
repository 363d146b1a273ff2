// internal/session/session_test.go
package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thaasbai/thaasbai/internal/protocol"
)

func TestSendAndReceive(t *testing.T) {
	s := New("203.0.113.1")
	require.NotEmpty(t, s.SID)

	s.Send(protocol.EvConnected, map[string]interface{}{"sid": s.SID})

	frame := <-s.Out()
	assert.Equal(t, protocol.EvConnected, frame.Event)
	assert.Equal(t, s.SID, frame.Data["sid"])
}

func TestOutboxOverflowMarksUnhealthy(t *testing.T) {
	s := New("203.0.113.1")
	overflowed := 0
	s.SetOverflowHandler(func() { overflowed++ })

	for i := 0; i < OutboxSize; i++ {
		s.Send("players_changed", nil)
	}
	assert.True(t, s.Healthy())

	s.Send("players_changed", nil)
	assert.False(t, s.Healthy(), "a full outbox marks the session unhealthy")
	assert.Equal(t, 1, overflowed)

	// Further overflow does not re-fire the handler.
	s.Send("players_changed", nil)
	assert.Equal(t, 1, overflowed)
}

func TestSendAfterCloseIsDropped(t *testing.T) {
	s := New("203.0.113.1")
	s.Close()
	s.Close() // idempotent
	s.Send("players_changed", nil)

	_, open := <-s.Out()
	assert.False(t, open)
}

func TestBinding(t *testing.T) {
	s := New("203.0.113.1")
	_, bound := s.Binding()
	assert.False(t, bound)

	s.Bind(protocol.GameDigu, "ABCDEF", 2)
	b, bound := s.Binding()
	require.True(t, bound)
	assert.Equal(t, protocol.GameDigu, b.GameType)
	assert.Equal(t, "ABCDEF", b.RoomCode)
	assert.Equal(t, 2, b.Position)

	s.Unbind()
	_, bound = s.Binding()
	assert.False(t, bound)
}

func TestRegistryForEachInRoom(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 4; i++ {
		s := New("203.0.113.1")
		s.Bind(protocol.GameDhihaEi, "ABCDEF", i)
		r.Add(s)
	}
	outsider := New("203.0.113.2")
	outsider.Bind(protocol.GameDhihaEi, "GHJKLM", 0)
	r.Add(outsider)
	r.Add(New("203.0.113.3"))

	n := 0
	r.ForEachInRoom(protocol.GameDhihaEi, "ABCDEF", func(*Session) { n++ })
	assert.Equal(t, 4, n)
	assert.Equal(t, 6, r.Len())
}

func TestRegistryRemoveClosesSession(t *testing.T) {
	r := NewRegistry()
	s := New("203.0.113.1")
	r.Add(s)

	r.Remove(s.SID)
	_, ok := r.Get(s.SID)
	assert.False(t, ok)
	_, open := <-s.Out()
	assert.False(t, open, "removal closes the outbox")
}

func TestRegistrySnapshot(t *testing.T) {
	r := NewRegistry()
	s := New("203.0.113.1")
	s.Bind(protocol.GameDigu, "ABCDEF", 1)
	r.Add(s)

	snaps := r.Snapshot()
	require.Len(t, snaps, 1)
	assert.Equal(t, s.SID, snaps[0].SID)
	assert.Equal(t, "ABCDEF", snaps[0].RoomCode)
	require.NotNil(t, snaps[0].Position)
	assert.Equal(t, 1, *snaps[0].Position)
}

func TestRegistryResponsive(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.Responsive(50*time.Millisecond))
}

func TestManySessionsUniqueSIDs(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		s := New(fmt.Sprintf("203.0.113.%d", i%250))
		require.False(t, seen[s.SID])
		seen[s.SID] = true
	}
}
