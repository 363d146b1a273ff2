// internal/game/room.go
package game

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/thaasbai/thaasbai/internal/protocol"
)

// Room lifecycle states.
const (
	StatusWaiting  = "waiting"
	StatusPlaying  = "playing"
	StatusFinished = "finished"
)

// Digu turn phases while playing.
const (
	PhaseDraw    = "draw"
	PhaseDiscard = "discard"
)

var (
	ErrRoomFull       = errors.New("room has no free slot")
	ErrNoSuchPlayer   = errors.New("no player in that position")
	ErrNotAllReady    = errors.New("not every occupied slot is ready")
	ErrNotAllOccupied = errors.New("not every slot is occupied")
)

// PlayerSlot anchors a player's identity inside a room. The oderId field
// name is part of the wire protocol and is preserved verbatim.
type PlayerSlot struct {
	OderID     string    `json:"oderId"`
	Name       string    `json:"name"`
	Ready      bool      `json:"ready"`
	Connected  bool      `json:"connected"`
	LastSeenAt time.Time `json:"-"`

	roundReady bool
}

// Room holds one game's membership and relayed state. All fields are guarded
// by Mu; methods with the Unsafe suffix assume the caller holds it. The
// coordinator runs every event handler for a room under this lock, which
// totally orders the room's history.
type Room struct {
	Mu sync.Mutex

	Code       string
	GameType   string
	Status     string
	MaxPlayers int
	CreatedAt  time.Time
	FinishedAt time.Time
	QuickMatch bool

	Players map[int]*PlayerSlot

	// Opaque client-owned blobs. The server stores and forwards these but
	// never interprets card contents.
	GameState map[string]interface{}
	Hands     map[string]interface{}

	// Turn bookkeeping relayed alongside the opaque state.
	CurrentPlayerIndex int
	CardsPlayedInTrick int
	GamePhase          string

	// Digu server-held piles (opaque cards).
	StockPile   []interface{}
	DiscardPile []interface{}

	// graceTimers tracks pending disconnect-grace expirations by position.
	graceTimers map[int]*time.Timer
}

// NewRoom builds an empty waiting room.
func NewRoom(code, gameType string, maxPlayers int) *Room {
	return &Room{
		Code:        code,
		GameType:    gameType,
		Status:      StatusWaiting,
		MaxPlayers:  maxPlayers,
		CreatedAt:   time.Now(),
		Players:     make(map[int]*PlayerSlot),
		graceTimers: make(map[int]*time.Timer),
	}
}

// AddPlayerUnsafe seats a player in the lowest free position.
func (r *Room) AddPlayerUnsafe(sid, name string) (int, error) {
	for pos := 0; pos < r.MaxPlayers; pos++ {
		if _, taken := r.Players[pos]; !taken {
			r.Players[pos] = &PlayerSlot{
				OderID:     sid,
				Name:       name,
				Connected:  true,
				LastSeenAt: time.Now(),
			}
			return pos, nil
		}
	}
	return -1, ErrRoomFull
}

// RemovePlayerUnsafe vacates a position, cancelling any pending grace timer.
func (r *Room) RemovePlayerUnsafe(pos int) {
	r.CancelGraceUnsafe(pos)
	delete(r.Players, pos)
}

// FindBySIDUnsafe returns the position whose slot is owned by sid.
func (r *Room) FindBySIDUnsafe(sid string) (int, bool) {
	for pos, p := range r.Players {
		if p.OderID == sid {
			return pos, true
		}
	}
	return -1, false
}

// HostPositionUnsafe is the smallest occupied position. The occupant of this
// slot is the host.
func (r *Room) HostPositionUnsafe() int {
	host := -1
	for pos := range r.Players {
		if host == -1 || pos < host {
			host = pos
		}
	}
	return host
}

// OccupiedUnsafe counts seated players.
func (r *Room) OccupiedUnsafe() int {
	return len(r.Players)
}

// ConnectedUnsafe counts seated players whose transport is live.
func (r *Room) ConnectedUnsafe() int {
	n := 0
	for _, p := range r.Players {
		if p.Connected {
			n++
		}
	}
	return n
}

// EmptyUnsafe reports whether no slots remain, occupied or in grace.
func (r *Room) EmptyUnsafe() bool {
	return len(r.Players) == 0
}

// AllReadyUnsafe reports whether every occupied slot is ready.
func (r *Room) AllReadyUnsafe() bool {
	for _, p := range r.Players {
		if !p.Ready {
			return false
		}
	}
	return true
}

// PlayersPayloadUnsafe renders the players map with string position keys,
// the shape the client protocol uses.
func (r *Room) PlayersPayloadUnsafe() map[string]interface{} {
	out := make(map[string]interface{}, len(r.Players))
	for pos, p := range r.Players {
		out[strconv.Itoa(pos)] = map[string]interface{}{
			"oderId":    p.OderID,
			"name":      p.Name,
			"ready":     p.Ready,
			"connected": p.Connected,
		}
	}
	return out
}

// teamPositions returns the dhiha-ei positions of the team opposite the one
// owning pos. Positions 0 and 2 are team A, 1 and 3 team B.
func teamPositions(pos int) []int {
	if pos == 0 || pos == 2 {
		return []int{1, 3}
	}
	return []int{0, 2}
}

// SwapUnsafe relocates the slot at fromPos to a free position on the
// opposite team, or exchanges it with the first occupied slot there when
// the opposite team is full. Returns the destination position.
func (r *Room) SwapUnsafe(fromPos int) (int, error) {
	mover, ok := r.Players[fromPos]
	if !ok {
		return -1, ErrNoSuchPlayer
	}

	targets := teamPositions(fromPos)
	for _, pos := range targets {
		if _, taken := r.Players[pos]; !taken {
			r.Players[pos] = mover
			delete(r.Players, fromPos)
			return pos, nil
		}
	}

	toPos := targets[0]
	r.Players[fromPos], r.Players[toPos] = r.Players[toPos], mover
	return toPos, nil
}

// StartUnsafe transitions waiting -> playing, storing the client-provided
// state and hands. Every slot must be occupied and ready.
func (r *Room) StartUnsafe(gameState, hands map[string]interface{}) error {
	if len(r.Players) != r.MaxPlayers {
		return ErrNotAllOccupied
	}
	if !r.AllReadyUnsafe() {
		return ErrNotAllReady
	}
	r.Status = StatusPlaying
	r.GameState = gameState
	r.Hands = hands
	r.CurrentPlayerIndex = CurrentIndexFromState(gameState)
	r.CardsPlayedInTrick = 0
	if r.GameType == protocol.GameDigu {
		r.GamePhase = PhaseDraw
	}
	return nil
}

// FinishUnsafe transitions playing -> finished.
func (r *Room) FinishUnsafe() {
	r.Status = StatusFinished
	r.FinishedAt = time.Now()
}

// HandForUnsafe extracts the hand stored under a position key, or nil.
func (r *Room) HandForUnsafe(pos int) interface{} {
	if r.Hands == nil {
		return nil
	}
	return r.Hands[strconv.Itoa(pos)]
}

// MarkRoundReadyUnsafe flags a slot as ready for the next round. It returns
// true when every occupied slot is flagged, in which case all marks are
// cleared.
func (r *Room) MarkRoundReadyUnsafe(pos int) bool {
	p, ok := r.Players[pos]
	if !ok {
		return false
	}
	p.roundReady = true
	for _, pl := range r.Players {
		if !pl.roundReady {
			return false
		}
	}
	for _, pl := range r.Players {
		pl.roundReady = false
	}
	return true
}

// SetGraceUnsafe stores a pending grace timer for a position, replacing any
// previous one.
func (r *Room) SetGraceUnsafe(pos int, t *time.Timer) {
	r.CancelGraceUnsafe(pos)
	r.graceTimers[pos] = t
}

// CancelGraceUnsafe stops and forgets the grace timer for a position.
func (r *Room) CancelGraceUnsafe(pos int) {
	if t, ok := r.graceTimers[pos]; ok {
		t.Stop()
		delete(r.graceTimers, pos)
	}
}

// ClearGraceUnsafe forgets the timer for a position without stopping it,
// used from inside the timer's own callback.
func (r *Room) ClearGraceUnsafe(pos int) {
	delete(r.graceTimers, pos)
}

// StopAllGraceUnsafe cancels every pending grace timer, used on room
// destruction.
func (r *Room) StopAllGraceUnsafe() {
	for pos, t := range r.graceTimers {
		t.Stop()
		delete(r.graceTimers, pos)
	}
}

// CurrentIndexFromState pulls the starting turn out of an opaque gameState
// blob. Both key spellings used by the clients are accepted.
func CurrentIndexFromState(gs map[string]interface{}) int {
	if gs == nil {
		return 0
	}
	for _, key := range []string{"currentPlayerIndex", "currentTurn"} {
		if f, ok := gs[key].(float64); ok {
			return int(f)
		}
	}
	return 0
}
