// internal/coordinator/dispatch.go
package coordinator

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/thaasbai/thaasbai/internal/game"
	"github.com/thaasbai/thaasbai/internal/protocol"
	"github.com/thaasbai/thaasbai/internal/session"
)

// handlerFunc runs with the target room's lock held when the route declares
// requiresRoom; pos is the caller's position in that room (-1 otherwise).
type handlerFunc func(c *Coordinator, s *session.Session, room *game.Room, pos int, data map[string]interface{})

// route declares a handler and the predicate checks the dispatcher performs
// before invoking it. Handler code never re-checks these.
type route struct {
	fn              handlerFunc
	gameType        string // restrict to one namespace; "" for either
	requiresRoom    bool
	requiresPlaying bool
	requiresHost    bool
	requiresTurn    bool
}

func buildRoutes() map[string]route {
	return map[string]route{
		// Dhiha Ei.
		protocol.EvCreateRoom:      {fn: handleCreateRoom},
		protocol.EvJoinRoom:        {fn: handleJoinRoom},
		protocol.EvLeaveRoom:       {fn: handleLeaveRoom, requiresRoom: true, gameType: protocol.GameDhihaEi},
		protocol.EvSetReady:        {fn: handleSetReady, requiresRoom: true, gameType: protocol.GameDhihaEi},
		protocol.EvSwapPlayer:      {fn: handleSwapPlayer, requiresRoom: true, requiresHost: true, gameType: protocol.GameDhihaEi},
		protocol.EvStartGame:       {fn: handleStartGame, requiresRoom: true, requiresHost: true, gameType: protocol.GameDhihaEi},
		protocol.EvCardPlayed:      {fn: handleCardPlayed, requiresRoom: true, requiresPlaying: true, requiresTurn: true, gameType: protocol.GameDhihaEi},
		protocol.EvTrickCompleted:  {fn: handleTrickCompleted, requiresRoom: true, requiresPlaying: true, gameType: protocol.GameDhihaEi},
		protocol.EvUpdateGameState: {fn: handleUpdateGameState, requiresRoom: true, requiresPlaying: true, requiresHost: true, gameType: protocol.GameDhihaEi},
		protocol.EvNewRound:        {fn: handleNewRound, requiresRoom: true, requiresPlaying: true, requiresHost: true, gameType: protocol.GameDhihaEi},
		protocol.EvReadyForRound:   {fn: handleReadyForRound, requiresRoom: true, requiresPlaying: true, gameType: protocol.GameDhihaEi},
		protocol.EvGameOver:        {fn: handleGameOver, requiresRoom: true, requiresPlaying: true, gameType: protocol.GameDhihaEi},

		// Digu.
		protocol.EvCreateDiguRoom:  {fn: handleCreateDiguRoom},
		protocol.EvJoinDiguRoom:    {fn: handleJoinDiguRoom},
		protocol.EvLeaveDiguRoom:   {fn: handleLeaveDiguRoom, requiresRoom: true, gameType: protocol.GameDigu},
		protocol.EvDiguSetReady:    {fn: handleDiguSetReady, requiresRoom: true, gameType: protocol.GameDigu},
		protocol.EvStartDiguGame:   {fn: handleStartDiguGame, requiresRoom: true, requiresHost: true, gameType: protocol.GameDigu},
		protocol.EvDiguDrawCard:    {fn: handleDiguDrawCard, requiresRoom: true, requiresPlaying: true, requiresTurn: true, gameType: protocol.GameDigu},
		protocol.EvDiguDiscardCard: {fn: handleDiguDiscardCard, requiresRoom: true, requiresPlaying: true, requiresTurn: true, gameType: protocol.GameDigu},
		protocol.EvDiguDeclare:     {fn: handleDiguDeclare, requiresRoom: true, requiresPlaying: true, requiresTurn: true, gameType: protocol.GameDigu},
		protocol.EvDiguUpdateState: {fn: handleDiguUpdateState, requiresRoom: true, requiresPlaying: true, gameType: protocol.GameDigu},
		protocol.EvDiguGameOver:    {fn: handleDiguGameOver, requiresRoom: true, requiresPlaying: true, gameType: protocol.GameDigu},
		protocol.EvDiguNewMatch:    {fn: handleDiguNewMatch, requiresRoom: true, requiresPlaying: true, requiresHost: true, gameType: protocol.GameDigu},

		// Room-independent.
		protocol.EvJoinQueue:     {fn: handleJoinQueue},
		protocol.EvLeaveQueue:    {fn: handleLeaveQueue},
		protocol.EvReattach:      {fn: handleReattach},
		protocol.EvPingKeepalive: {fn: handlePingKeepalive},
	}
}

// Dispatch routes one inbound frame from a live session. Predicate checks
// run before the handler; the handler executes to completion holding the
// target room's lock. Panics are contained here and reported to the caller
// as error{internal}.
func (c *Coordinator) Dispatch(s *session.Session, f protocol.Frame) {
	c.inflight.Add(1)
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			c.log.WithFields(logrus.Fields{"sid": s.SID, "event": f.Event, "panic": rec}).
				Error("handler panicked")
			c.sendErr(s, protocol.ErrInternal)
		}
		if d := time.Since(start); d > slowHandlerThreshold {
			c.log.WithFields(logrus.Fields{"sid": s.SID, "event": f.Event, "duration": d}).
				Warn("slow handler")
		}
		c.inflight.Add(-1)
	}()

	c.Counters.FramesIn.Add(1)
	s.Touch()

	rt, known := c.routes[f.Event]
	if !known || !protocol.Validate(f.Event, f.Data) {
		c.sendErr(s, protocol.ErrInvalidPayload)
		return
	}
	data := f.Data
	if data == nil {
		data = map[string]interface{}{}
	}

	if !rt.requiresRoom {
		rt.fn(c, s, nil, -1, data)
		return
	}

	b, bound := s.Binding()
	if !bound || (rt.gameType != "" && b.GameType != rt.gameType) {
		c.sendErr(s, protocol.ErrNotInRoom)
		return
	}
	room, ok := c.Rooms.Get(b.GameType, b.RoomCode)
	if !ok {
		s.Unbind()
		c.sendErr(s, protocol.ErrRoomNotFound)
		return
	}

	room.Mu.Lock()
	defer room.Mu.Unlock()

	pos, seated := room.FindBySIDUnsafe(s.SID)
	if !seated {
		s.Unbind()
		c.sendErr(s, protocol.ErrNotInRoom)
		return
	}
	if rt.requiresPlaying && room.Status != game.StatusPlaying {
		c.sendErr(s, protocol.ErrNotPlaying)
		return
	}
	if rt.requiresHost && pos != room.HostPositionUnsafe() {
		c.sendErr(s, protocol.ErrNotHost)
		return
	}
	if rt.requiresTurn && room.CurrentPlayerIndex != pos {
		c.sendErr(s, protocol.ErrNotYourTurn)
		return
	}

	rt.fn(c, s, room, pos, data)
}
