package live

import (
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-live-server/internal/engine"
	"github.com/park285/chess-live-server/internal/obslog"
	"github.com/park285/chess-live-server/internal/store"
)

type roomStatus string

const (
	roomWaiting  roomStatus = "waiting"
	roomPlaying  roomStatus = "playing"
	roomFinished roomStatus = "finished"
)

// slot is one seat in a room.
type slot struct {
	session        string
	name           string
	conn           Transport
	connected      bool
	disconnectedAt time.Time
}

// Room is the per-game state machine: seats, clocks, move log, offers and
// the disconnect grace protocol. Every method runs under the owning Server's
// serialization; rooms never lock on their own.
type Room struct {
	srv    *Server
	code   string
	status roomStatus
	tc     TimeControl

	eng   *engine.Engine
	moves []store.MoveRecord
	clock *Clock

	gameID string

	white *slot
	black *slot

	drawOfferedBy    engine.Color
	rematchOfferedBy engine.Color

	graceTask   *Task
	cleanupTask *Task
}

func newRoom(srv *Server, code string, tc TimeControl, creator *slot) *Room {
	return &Room{
		srv:    srv,
		code:   code,
		status: roomWaiting,
		tc:     tc,
		eng:    engine.New(),
		white:  creator,
	}
}

func (r *Room) slotOf(color engine.Color) *slot {
	if color == engine.White {
		return r.white
	}
	return r.black
}

// bySession resolves a session to its seat. Color is meaningless when the
// returned slot is nil.
func (r *Room) bySession(session string) (engine.Color, *slot) {
	if r.white != nil && r.white.session == session {
		return engine.White, r.white
	}
	if r.black != nil && r.black.session == session {
		return engine.Black, r.black
	}
	return engine.White, nil
}

func (r *Room) sendTo(sl *slot, env Envelope) {
	if sl == nil || sl.conn == nil {
		return
	}
	sl.conn.Send(env)
}

// seatSecond fills the black seat and starts the game.
func (r *Room) seatSecond(session, name string, conn Transport) {
	r.black = &slot{session: session, name: name, conn: conn, connected: true}
	r.startGame(msgGameStart)
}

// startGame performs the waiting→playing transition (and the rematch
// restart): persists a fresh game, arms the clocks and notifies both seats
// with their own colour.
func (r *Room) startGame(startType string) {
	nowMs := r.srv.nowMs()
	r.status = roomPlaying
	r.clock = newClock(r.tc, nowMs)
	r.gameID = r.srv.createGame(store.GameMeta{
		GameType:    "multiplayer",
		TimeControl: r.tc.Tag,
		StartingFEN: r.eng.FEN(),
		White:       store.PlayerMeta{Name: r.white.name},
		Black:       store.PlayerMeta{Name: r.black.name},
	})
	for _, side := range []engine.Color{engine.White, engine.Black} {
		sl := r.slotOf(side)
		opp := r.slotOf(side.Opponent())
		r.sendTo(sl, frame(startType, gameStartPayload{
			RoomID:       r.code,
			Color:        string(side),
			FEN:          r.eng.FEN(),
			TimeControl:  r.tc.Tag,
			OpponentName: opp.name,
		}))
	}
	obslog.L().Info("game_start",
		zap.String("room", r.code),
		zap.String("game_id", r.gameID),
		zap.String("time_control", r.tc.Tag),
		zap.String("white", r.white.name),
		zap.String("black", r.black.name),
	)
}

// handleMove runs the move pipeline. Any failure leaves the room in its
// pre-event state.
func (r *Room) handleMove(session, san string) error {
	if r.status != roomPlaying {
		return errGameNotInProgress
	}
	color, sl := r.bySession(session)
	if sl == nil {
		return errNotAPlayer
	}
	if r.eng.Turn() != color {
		return errNotYourTurn
	}
	mv, err := r.eng.ParseSAN(san)
	if err != nil {
		return errInvalidMove
	}

	nowMs := r.srv.nowMs()
	if r.clock != nil {
		firstMove := r.eng.Ply() == 0
		if r.clock.ApplyMove(color, nowMs, firstMove) {
			// Flag fall detected lazily at the mover's own move attempt.
			r.finalize(winFor(color.Opponent()), "timeout")
			return nil
		}
	}

	if err := r.eng.Apply(mv); err != nil {
		return errInvalidMove
	}
	rec := store.MoveRecord{
		Ply:      len(r.moves),
		SAN:      mv.SAN(),
		FEN:      r.eng.FEN(),
		PlayedAt: nowMs,
		Side:     string(color),
	}
	r.moves = append(r.moves, rec)
	r.srv.appendMove(r.gameID, rec)

	var clocks *clockPayload
	if r.clock != nil {
		clocks = &clockPayload{W: r.clock.WMs, B: r.clock.BMs}
	}
	r.sendTo(r.slotOf(color.Opponent()), frame(msgMove, moveBroadcastPayload{
		SAN:    mv.SAN(),
		FEN:    rec.FEN,
		Clocks: clocks,
	}))
	if clocks != nil {
		r.sendTo(sl, frame(msgMoveAck, moveAckPayload{Clocks: clocks}))
	}

	if done, result, reason := r.eng.Outcome(); done {
		r.finalize(result, reason)
	}
	return nil
}

func (r *Room) handleResign(session string) error {
	if r.status != roomPlaying {
		return errGameNotInProgress
	}
	color, sl := r.bySession(session)
	if sl == nil {
		return errNotAPlayer
	}
	r.finalize(winFor(color.Opponent()), "resignation")
	return nil
}

func (r *Room) handleDrawOffer(session string) error {
	if r.status != roomPlaying {
		return errGameNotInProgress
	}
	color, sl := r.bySession(session)
	if sl == nil {
		return errNotAPlayer
	}
	// Duplicate offers are allowed and simply re-notify.
	r.drawOfferedBy = color
	r.sendTo(r.slotOf(color.Opponent()), frame(msgDrawOffered, nil))
	return nil
}

func (r *Room) handleDrawRespond(session string, accept bool) error {
	if r.status != roomPlaying {
		return errGameNotInProgress
	}
	color, sl := r.bySession(session)
	if sl == nil {
		return errNotAPlayer
	}
	if r.drawOfferedBy == "" || r.drawOfferedBy == color {
		// No outstanding offer from the opponent; nothing to respond to.
		obslog.L().Debug("draw_respond_ignored", zap.String("room", r.code), zap.String("session", session))
		return nil
	}
	offerer := r.drawOfferedBy
	r.drawOfferedBy = ""
	if accept {
		r.finalize("1/2-1/2", "agreement")
		return nil
	}
	r.sendTo(r.slotOf(offerer), frame(msgDrawDeclined, nil))
	return nil
}

func (r *Room) handleRematchOffer(session string) error {
	color, sl := r.bySession(session)
	if sl == nil {
		return errNotAPlayer
	}
	if r.status != roomFinished {
		obslog.L().Debug("rematch_offer_ignored", zap.String("room", r.code), zap.String("status", string(r.status)))
		return nil
	}
	r.rematchOfferedBy = color
	r.sendTo(r.slotOf(color.Opponent()), frame(msgRematchOffered, nil))
	return nil
}

func (r *Room) handleRematchRespond(session string, accept bool) error {
	color, sl := r.bySession(session)
	if sl == nil {
		return errNotAPlayer
	}
	if r.status != roomFinished || r.rematchOfferedBy == "" || r.rematchOfferedBy == color {
		obslog.L().Debug("rematch_respond_ignored", zap.String("room", r.code), zap.String("session", session))
		return nil
	}
	offerer := r.rematchOfferedBy
	r.rematchOfferedBy = ""
	if !accept {
		r.sendTo(r.slotOf(offerer), frame(msgRematchDeclined, nil))
		return nil
	}
	r.startRematch()
	return nil
}

// startRematch performs the finished→playing transition: colours swap, fresh
// engine, fresh clocks, fresh persisted game. Disconnect state from the
// previous game is reset.
func (r *Room) startRematch() {
	if r.cleanupTask != nil {
		r.cleanupTask.Stop()
		r.cleanupTask = nil
	}
	if r.graceTask != nil {
		r.graceTask.Stop()
		r.graceTask = nil
	}
	r.white, r.black = r.black, r.white
	r.eng = engine.New()
	r.moves = nil
	r.drawOfferedBy = ""
	r.rematchOfferedBy = ""
	r.white.disconnectedAt = time.Time{}
	r.black.disconnectedAt = time.Time{}
	r.startGame(msgRematchStart)
	obslog.L().Info("rematch_start", zap.String("room", r.code), zap.String("game_id", r.gameID))

	// A seat that never came back from the previous game starts the new one
	// under the usual grace rules.
	for _, side := range []engine.Color{engine.White, engine.Black} {
		if !r.slotOf(side).connected {
			r.armGrace(side)
			r.sendTo(r.slotOf(side.Opponent()), frame(msgOpponentDisconnected, opponentDisconnectedPayload{
				Timeout: int(r.srv.cfg.DisconnectGrace / time.Second),
			}))
		}
	}
}

// handleDisconnect reacts to the session's connection going away.
func (r *Room) handleDisconnect(session string) {
	color, sl := r.bySession(session)
	if sl == nil {
		return
	}
	switch r.status {
	case roomWaiting:
		// Sole player left before an opponent arrived.
		r.cleanup()
	case roomPlaying:
		sl.connected = false
		sl.conn = nil
		sl.disconnectedAt = r.srv.now()
		r.sendTo(r.slotOf(color.Opponent()), frame(msgOpponentDisconnected, opponentDisconnectedPayload{
			Timeout: int(r.srv.cfg.DisconnectGrace / time.Second),
		}))
		if r.graceTask == nil {
			r.armGrace(color)
		}
		obslog.L().Info("player_disconnected", zap.String("room", r.code), zap.String("session", session))
	case roomFinished:
		sl.connected = false
		sl.conn = nil
	}
}

// armGrace starts the abandonment countdown for the given seat. The callback
// re-checks state: a reconnect or finalization in the meantime wins.
func (r *Room) armGrace(absent engine.Color) {
	r.graceTask = r.srv.sched.After(r.srv.cfg.DisconnectGrace, func() {
		r.graceTask = nil
		if r.status != roomPlaying {
			return
		}
		if r.slotOf(absent).connected {
			return
		}
		obslog.L().Info("game_abandoned", zap.String("room", r.code), zap.String("absent", string(absent)))
		r.finalize(winFor(absent.Opponent()), "abandoned")
	})
}

// handleReconnect swaps a fresh connection into the session's seat and
// replays the authoritative state.
func (r *Room) handleReconnect(session string, conn Transport) {
	color, sl := r.bySession(session)
	if sl == nil {
		return
	}
	sl.conn = conn
	sl.connected = true
	sl.disconnectedAt = time.Time{}
	if r.graceTask != nil {
		r.graceTask.Stop()
		r.graceTask = nil
	}

	var clocks *clockPayload
	if r.clock != nil {
		clocks = r.clock.Snapshot(r.eng.Turn(), r.srv.nowMs())
	}
	sans := make([]string, len(r.moves))
	for i, mv := range r.moves {
		sans[i] = mv.SAN
	}
	opp := r.slotOf(color.Opponent())
	conn.Send(frame(msgReconnect, reconnectPayload{
		RoomID:            r.code,
		Color:             string(color),
		FEN:               r.eng.FEN(),
		TimeControl:       r.tc.Tag,
		Moves:             sans,
		Clocks:            clocks,
		OpponentName:      opp.name,
		OpponentConnected: opp.connected,
	}))
	r.sendTo(opp, frame(msgOpponentReconnected, nil))
	obslog.L().Info("player_reconnected", zap.String("room", r.code), zap.String("session", session))

	// The single grace timer was cancelled above; if the other seat is the
	// one that is gone, a fresh full-length countdown is armed for it.
	if !opp.connected {
		r.armGrace(color.Opponent())
	}
}

// finalize performs the playing→finished transition exactly once.
func (r *Room) finalize(result, reason string) {
	if r.status == roomFinished {
		return
	}
	r.status = roomFinished
	if r.graceTask != nil {
		r.graceTask.Stop()
		r.graceTask = nil
	}
	r.drawOfferedBy = ""
	r.rematchOfferedBy = ""
	r.srv.finishGame(r.gameID, result, reason)
	r.broadcast(frame(msgGameEnd, gameEndPayload{Result: result, Reason: reason}))
	r.cleanupTask = r.srv.sched.After(r.srv.cfg.RoomTTLAfterEnd, func() {
		if r.srv.rooms[r.code] == r && r.status == roomFinished {
			r.cleanup()
		}
	})
	obslog.L().Info("game_end",
		zap.String("room", r.code),
		zap.String("game_id", r.gameID),
		zap.String("result", result),
		zap.String("reason", reason),
	)
}

func (r *Room) broadcast(env Envelope) {
	r.sendTo(r.white, env)
	r.sendTo(r.black, env)
}

// cleanup is the room's destroyer: unseat both sessions, cancel timers,
// release the room code.
func (r *Room) cleanup() {
	if r.graceTask != nil {
		r.graceTask.Stop()
		r.graceTask = nil
	}
	if r.cleanupTask != nil {
		r.cleanupTask.Stop()
		r.cleanupTask = nil
	}
	for _, sl := range []*slot{r.white, r.black} {
		if sl != nil {
			r.srv.registry.ClearRoom(sl.session)
		}
	}
	delete(r.srv.rooms, r.code)
	obslog.L().Info("room_cleanup", zap.String("room", r.code))
}

func winFor(color engine.Color) string {
	if color == engine.White {
		return "1-0"
	}
	return "0-1"
}
