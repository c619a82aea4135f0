package live

import (
	"context"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/chess-live-server/internal/obslog"
	"go.uber.org/zap"
)

// Transport is one client endpoint as the core sees it. Send on a closed
// transport is a silent no-op: the caller never crashes because a peer
// disappeared between decision and write.
type Transport interface {
	Send(env Envelope)
	Alive() bool
	Close(reason string)
}

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
	pingTimeout  = 5 * time.Second
)

// wsConn wraps one websocket connection. Outbound frames go through a
// buffered channel drained by a single writer goroutine, so fan-out from the
// core never blocks on a slow socket.
type wsConn struct {
	id     string
	ws     *websocket.Conn
	sendCh chan Envelope
	done   chan struct{}
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{
		id:     uuid.NewString(),
		ws:     ws,
		sendCh: make(chan Envelope, sendBuffer),
		done:   make(chan struct{}),
	}
}

func (c *wsConn) Send(env Envelope) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.sendCh <- env:
	case <-c.done:
	default:
		// Buffer full: the client is not draining. Drop the frame; a
		// reconnect replays the authoritative state.
		obslog.L().Warn("ws_send_drop", zap.String("conn", c.id), zap.String("type", env.Type))
	}
}

func (c *wsConn) Alive() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

func (c *wsConn) Close(reason string) {
	select {
	case <-c.done:
		return
	default:
	}
	close(c.done)
	_ = c.ws.Close(websocket.StatusNormalClosure, reason)
}

func (c *wsConn) writePump() {
	for {
		select {
		case <-c.done:
			return
		case env := <-c.sendCh:
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err := wsjson.Write(ctx, c.ws, env)
			cancel()
			if err != nil {
				c.Close("write failure")
				return
			}
		}
	}
}

// pingPump probes liveness at the configured interval. Application-level
// pings are required because many clients sit behind proxies that silently
// drop idle TCP; a missing pong terminates the connection.
func (c *wsConn) pingPump(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
			err := c.ws.Ping(ctx)
			cancel()
			if err != nil {
				obslog.L().Debug("ws_ping_fail", zap.String("conn", c.id), zap.Error(err))
				c.Close("ping failure")
				return
			}
		}
	}
}
