// internal/game/registry.go
package game

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/thaasbai/thaasbai/internal/protocol"
)

// Registry holds all rooms across both game-type namespaces. Lookups take a
// shared lock; creation and deletion take the exclusive one. Individual
// rooms own their own mutex and are opaque to other rooms' handlers.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*Room
}

// NewRegistry returns a registry with both namespaces initialized.
func NewRegistry() *Registry {
	return &Registry{
		rooms: map[string]map[string]*Room{
			protocol.GameDhihaEi: {},
			protocol.GameDigu:    {},
		},
	}
}

// Get looks a room up by namespace and code.
func (reg *Registry) Get(gameType, code string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	ns, ok := reg.rooms[gameType]
	if !ok {
		return nil, false
	}
	room, ok := ns[code]
	return room, ok
}

// Create inserts a new room with a freshly generated code, re-rolling on
// the (rare) collision within the namespace.
func (reg *Registry) Create(gameType string, maxPlayers int) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	ns := reg.rooms[gameType]
	var code string
	for {
		code = NewCode()
		if _, taken := ns[code]; !taken {
			break
		}
	}
	room := NewRoom(code, gameType, maxPlayers)
	ns[code] = room
	log.WithFields(log.Fields{"room": code, "gameType": gameType, "maxPlayers": maxPlayers}).
		Info("room created")
	return room
}

// Delete removes a room from its namespace.
func (reg *Registry) Delete(gameType, code string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if ns, ok := reg.rooms[gameType]; ok {
		if _, exists := ns[code]; exists {
			delete(ns, code)
			log.WithFields(log.Fields{"room": code, "gameType": gameType}).Info("room deleted")
		}
	}
}

// Len returns the total room count across namespaces.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	n := 0
	for _, ns := range reg.rooms {
		n += len(ns)
	}
	return n
}

// All returns a snapshot slice of every room pointer. Callers lock each
// room individually before reading its state.
func (reg *Registry) All() []*Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]*Room, 0, 8)
	for _, ns := range reg.rooms {
		for _, room := range ns {
			out = append(out, room)
		}
	}
	return out
}

// Summary is the admin-snapshot view of a room. Hands and gameState are
// deliberately omitted to keep snapshot payloads bounded.
type Summary struct {
	Code        string                 `json:"code"`
	GameType    string                 `json:"gameType"`
	Status      string                 `json:"status"`
	MaxPlayers  int                    `json:"maxPlayers"`
	CreatedAt   time.Time              `json:"createdAt"`
	QuickMatch  bool                   `json:"quickMatch,omitempty"`
	Players     map[string]interface{} `json:"players"`
	HostPos     int                    `json:"hostPosition"`
	CurrentTurn int                    `json:"currentPlayerIndex"`
}

// Snapshot renders the admin view of all rooms.
func (reg *Registry) Snapshot() []Summary {
	rooms := reg.All()
	out := make([]Summary, 0, len(rooms))
	for _, room := range rooms {
		room.Mu.Lock()
		out = append(out, Summary{
			Code:        room.Code,
			GameType:    room.GameType,
			Status:      room.Status,
			MaxPlayers:  room.MaxPlayers,
			CreatedAt:   room.CreatedAt,
			QuickMatch:  room.QuickMatch,
			Players:     room.PlayersPayloadUnsafe(),
			HostPos:     room.HostPositionUnsafe(),
			CurrentTurn: room.CurrentPlayerIndex,
		})
		room.Mu.Unlock()
	}
	return out
}
