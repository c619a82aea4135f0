package live

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/park285/chess-live-server/internal/config"
	"github.com/park285/chess-live-server/internal/engine"
	"github.com/park285/chess-live-server/internal/msgcat"
	"github.com/park285/chess-live-server/internal/obslog"
	"github.com/park285/chess-live-server/internal/store"
)

const defaultPlayerName = "Anonymous"

// Server owns every live room, the session registry and the matchmaking
// queues. One mutex serializes all state transitions; timer callbacks run
// through the same boundary, so a grace firing cannot race a reconnect.
type Server struct {
	cfg   *config.AppConfig
	cat   *msgcat.Catalog
	store store.GameStore
	sched *Scheduler
	now   func() time.Time

	mu        sync.Mutex
	rooms     map[string]*Room
	registry  *Registry
	mm        *Matchmaker
	conns     int
	startedAt time.Time
}

func NewServer(cfg *config.AppConfig, cat *msgcat.Catalog, st store.GameStore) *Server {
	s := &Server{
		cfg:       cfg,
		cat:       cat,
		store:     st,
		now:       time.Now,
		rooms:     make(map[string]*Room),
		registry:  NewRegistry(),
		mm:        NewMatchmaker(cfg.DefaultTimeControl),
		startedAt: time.Now(),
	}
	s.sched = NewScheduler(s.runSerialized)
	return s
}

func (s *Server) runSerialized(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

func (s *Server) nowMs() int64 { return s.now().UnixMilli() }

// client is one connection's routing state.
type client struct {
	conn    Transport
	session string
}

// HandleWS upgrades the request and runs the connection's read loop.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		obslog.L().Warn("ws_accept", zap.Error(err))
		return
	}
	c := newWSConn(ws)
	go c.writePump()
	go c.pingPump(s.cfg.PingInterval)

	s.mu.Lock()
	s.conns++
	s.mu.Unlock()

	cl := &client{conn: c}
	s.readLoop(r.Context(), c, cl)
	c.Close("read loop done")
	s.handleClose(cl)

	s.mu.Lock()
	s.conns--
	s.mu.Unlock()
}

func (s *Server) readLoop(ctx context.Context, c *wsConn, cl *client) {
	for {
		_, data, err := c.ws.Read(ctx)
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || strings.TrimSpace(env.Type) == "" {
			s.sendErr(cl.conn, errBadJSON)
			continue
		}
		if cl.session == "" {
			s.handshake(cl, env)
			continue
		}
		if env.Type == msgAuth {
			// Already authenticated on this connection.
			obslog.L().Debug("duplicate_auth", zap.String("session", cl.session))
			continue
		}
		if err := s.dispatch(cl, env); err != nil {
			s.sendErr(cl.conn, err)
		}
	}
}

// handshake gates the first frame: it must be auth with a non-empty
// sessionId. The connection stays open on failure so the client may retry.
func (s *Server) handshake(cl *client, env Envelope) {
	if env.Type != msgAuth {
		s.sendErr(cl.conn, errFirstFrame)
		return
	}
	var p authPayload
	_ = json.Unmarshal(env.Payload, &p)
	sid := strings.TrimSpace(p.SessionID)
	if sid == "" {
		s.sendErr(cl.conn, errMissingSession)
		return
	}
	cl.session = sid

	s.mu.Lock()
	defer s.mu.Unlock()
	if old := s.registry.BindConn(sid, cl.conn); old != nil {
		old.Close("superseded by newer connection")
	}
	cl.conn.Send(frame(msgAuthOK, nil))
	obslog.L().Info("session_auth", zap.String("session", sid))

	// A session already seated in a playing room routes straight into the
	// reconnection path.
	if code := s.registry.RoomOf(sid); code != "" {
		if room := s.rooms[code]; room != nil && room.status == roomPlaying {
			room.handleReconnect(sid, cl.conn)
		}
	}
}

func (s *Server) dispatch(cl *client, env Envelope) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Internal failures stop at the room boundary: log, keep the connection.
	defer func() {
		if rec := recover(); rec != nil {
			obslog.L().Error("handler_panic",
				zap.String("type", env.Type),
				zap.String("session", cl.session),
				zap.Any("panic", rec),
			)
			err = nil
		}
	}()
	switch env.Type {
	case msgCreateRoom:
		var p createRoomPayload
		_ = json.Unmarshal(env.Payload, &p)
		return s.createRoom(cl, p)
	case msgJoinRoom:
		var p joinRoomPayload
		_ = json.Unmarshal(env.Payload, &p)
		return s.joinRoom(cl, p)
	case msgQuickMatch:
		var p quickMatchPayload
		_ = json.Unmarshal(env.Payload, &p)
		return s.quickMatch(cl, p)
	case msgCancelQueue:
		s.mm.Leave(cl.session)
		cl.conn.Send(frame(msgQueueLeft, nil))
		return nil
	case msgMove:
		var p movePayload
		_ = json.Unmarshal(env.Payload, &p)
		if strings.TrimSpace(p.SAN) == "" {
			return errMissingSAN
		}
		room, err := s.roomOf(cl.session)
		if err != nil {
			return err
		}
		return room.handleMove(cl.session, p.SAN)
	case msgResign:
		room, err := s.roomOf(cl.session)
		if err != nil {
			return err
		}
		return room.handleResign(cl.session)
	case msgDrawOffer:
		room, err := s.roomOf(cl.session)
		if err != nil {
			return err
		}
		return room.handleDrawOffer(cl.session)
	case msgDrawRespond:
		var p respondPayload
		_ = json.Unmarshal(env.Payload, &p)
		room, err := s.roomOf(cl.session)
		if err != nil {
			return err
		}
		return room.handleDrawRespond(cl.session, p.Accept)
	case msgRematchOffer:
		room, err := s.roomOf(cl.session)
		if err != nil {
			return err
		}
		return room.handleRematchOffer(cl.session)
	case msgRematchRespond:
		var p respondPayload
		_ = json.Unmarshal(env.Payload, &p)
		room, err := s.roomOf(cl.session)
		if err != nil {
			return err
		}
		return room.handleRematchRespond(cl.session, p.Accept)
	default:
		return errUnknownType
	}
}

func (s *Server) roomOf(session string) (*Room, error) {
	code := s.registry.RoomOf(session)
	if code == "" {
		return nil, errNotInRoom
	}
	room := s.rooms[code]
	if room == nil {
		return nil, errNotInRoom
	}
	return room, nil
}

func (s *Server) createRoom(cl *client, p createRoomPayload) error {
	if s.mm.InQueue(cl.session) {
		return errAlreadyInQueue
	}
	if s.registry.RoomOf(cl.session) != "" {
		return errAlreadyInGame
	}
	tag := strings.TrimSpace(p.TimeControl)
	if tag == "" || tag == tcAny {
		tag = s.cfg.DefaultTimeControl
	}
	tc, err := ParseTimeControl(tag)
	if err != nil {
		return err
	}
	if len(s.rooms) >= s.cfg.MaxConcurrentRooms {
		return errServerFull
	}
	code, err := s.allocCode()
	if err != nil {
		return fmt.Errorf("alloc room code: %w", err)
	}
	creator := &slot{session: cl.session, name: playerName(p.Name), conn: cl.conn, connected: true}
	s.rooms[code] = newRoom(s, code, tc, creator)
	s.registry.SetRoom(cl.session, code)
	cl.conn.Send(frame(msgRoomCreated, roomCreatedPayload{RoomID: code, Color: string(engine.White)}))
	obslog.L().Info("room_created",
		zap.String("room", code),
		zap.String("session", cl.session),
		zap.String("time_control", tc.Tag),
	)
	return nil
}

func (s *Server) joinRoom(cl *client, p joinRoomPayload) error {
	code := strings.ToUpper(strings.TrimSpace(p.RoomID))
	if code == "" {
		return errMissingRoom
	}
	if s.mm.InQueue(cl.session) {
		return errAlreadyInQueue
	}
	if seated := s.registry.RoomOf(cl.session); seated != "" {
		if seated == code {
			return errAlreadyInRoom
		}
		return errAlreadyInGame
	}
	room := s.rooms[code]
	if room == nil {
		return errRoomNotFound
	}
	if room.status != roomWaiting {
		return errRoomNotAccepting
	}
	s.registry.SetRoom(cl.session, code)
	room.seatSecond(cl.session, playerName(p.Name), cl.conn)
	return nil
}

func (s *Server) quickMatch(cl *client, p quickMatchPayload) error {
	if s.mm.InQueue(cl.session) {
		return errAlreadyInQueue
	}
	if s.registry.RoomOf(cl.session) != "" {
		return errAlreadyInGame
	}
	tag := strings.TrimSpace(p.TimeControl)
	if tag == "" {
		tag = s.cfg.DefaultTimeControl
	}
	tag, err := queueTag(tag)
	if err != nil {
		return err
	}
	name := playerName(p.Name)

	opp, effective := s.mm.PopOpponent(tag)
	if opp == nil {
		pos := s.mm.Enqueue(&queueEntry{session: cl.session, name: name, conn: cl.conn, tag: tag})
		cl.conn.Send(frame(msgQueueJoined, queueJoinedPayload{TimeControl: tag, Position: pos}))
		obslog.L().Info("queue_joined",
			zap.String("session", cl.session),
			zap.String("time_control", tag),
			zap.Int("position", pos),
		)
		return nil
	}
	return s.startMatch(cl, name, opp, effective)
}

// startMatch pairs the caller with a popped opponent: colours by an unbiased
// coin flip, room created with the white player as creator, black joined
// immediately. Pairing is atomic under the server lock.
func (s *Server) startMatch(cl *client, name string, opp *queueEntry, tag string) error {
	tc, err := ParseTimeControl(tag)
	if err != nil {
		return err
	}
	if len(s.rooms) >= s.cfg.MaxConcurrentRooms {
		return errServerFull
	}
	code, err := s.allocCode()
	if err != nil {
		return fmt.Errorf("alloc room code: %w", err)
	}

	whiteSession, whiteName, whiteConn := cl.session, name, cl.conn
	blackSession, blackName, blackConn := opp.session, opp.name, opp.conn
	if n, _ := rand.Int(rand.Reader, big.NewInt(2)); n != nil && n.Int64() == 0 {
		whiteSession, whiteName, whiteConn, blackSession, blackName, blackConn =
			blackSession, blackName, blackConn, whiteSession, whiteName, whiteConn
	}

	creator := &slot{session: whiteSession, name: whiteName, conn: whiteConn, connected: true}
	room := newRoom(s, code, tc, creator)
	s.rooms[code] = room
	s.registry.SetRoom(whiteSession, code)
	s.registry.SetRoom(blackSession, code)
	room.seatSecond(blackSession, blackName, blackConn)
	obslog.L().Info("match_start",
		zap.String("room", code),
		zap.String("time_control", tag),
		zap.String("white_session", whiteSession),
		zap.String("black_session", blackSession),
	)
	return nil
}

// handleClose routes a connection close. A close from a superseded
// connection must not evict the session's queue spot or room seat.
func (s *Server) handleClose(cl *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cl.session == "" {
		return
	}
	if !s.registry.ReleaseConn(cl.session, cl.conn) {
		return
	}
	s.mm.Leave(cl.session)
	if code := s.registry.RoomOf(cl.session); code != "" {
		if room := s.rooms[code]; room != nil {
			room.handleDisconnect(cl.session)
		}
	}
}

// allocCode rejection-samples a room code unused by any live room.
func (s *Server) allocCode() (string, error) {
	for {
		code, err := newRoomCode()
		if err != nil {
			return "", err
		}
		if _, taken := s.rooms[code]; !taken {
			return code, nil
		}
	}
}

func (s *Server) sendErr(t Transport, err error) {
	msg := err.Error()
	if de, ok := err.(domainErr); ok {
		msg = s.cat.Text(string(de))
	}
	t.Send(frame(msgError, errorPayload{Message: msg}))
}

// Stats is the health snapshot served over HTTP.
type Stats struct {
	Rooms       int    `json:"rooms"`
	Queued      int    `json:"queued"`
	Connections int    `json:"connections"`
	UptimeSec   int64  `json:"uptime_sec"`
	Status      string `json:"status"`
}

func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Rooms:       len(s.rooms),
		Queued:      s.mm.Size(),
		Connections: s.conns,
		UptimeSec:   int64(time.Since(s.startedAt).Seconds()),
		Status:      "ok",
	}
}

// HandleHealth serves the health snapshot.
func (s *Server) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.Stats())
}

// Shutdown cancels every room timer and closes the live connection of every
// authenticated session; connections that never completed auth are not closed
// here.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, room := range s.rooms {
		if room.graceTask != nil {
			room.graceTask.Stop()
		}
		if room.cleanupTask != nil {
			room.cleanupTask.Stop()
		}
	}
	for session, t := range s.registry.sessionConn {
		t.Close("server shutdown")
		delete(s.registry.sessionConn, session)
	}
}

// persistence helpers: the live room state is authoritative; store failures
// are logged and the game continues.

func (s *Server) persistCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (s *Server) createGame(meta store.GameMeta) string {
	ctx, cancel := s.persistCtx()
	defer cancel()
	id, err := s.store.CreateGame(ctx, meta)
	if err != nil {
		obslog.L().Error("persist_create_game", zap.Error(err))
		return ""
	}
	return id
}

func (s *Server) appendMove(gameID string, rec store.MoveRecord) {
	if gameID == "" {
		return
	}
	ctx, cancel := s.persistCtx()
	defer cancel()
	if err := s.store.AppendMove(ctx, gameID, rec); err != nil {
		obslog.L().Error("persist_append_move", zap.String("game_id", gameID), zap.Int("ply", rec.Ply), zap.Error(err))
	}
}

func (s *Server) finishGame(gameID, result, reason string) {
	if gameID == "" {
		return
	}
	ctx, cancel := s.persistCtx()
	defer cancel()
	if err := s.store.FinishGame(ctx, gameID, result, reason); err != nil {
		obslog.L().Error("persist_finish_game", zap.String("game_id", gameID), zap.Error(err))
	}
}

func playerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return defaultPlayerName
	}
	return name
}
