package gateway

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bazario/pushgate/logger"
)

// Connection states. Transitions only move forward:
// CONNECTING -> AUTHENTICATED -> ACTIVE -> CLOSED, or straight to CLOSED on
// auth failure.
const (
	StateConnecting int32 = iota
	StateAuthenticated
	StateActive
	StateClosed
)

// Enumerated close codes (the 4xxx one is application-defined).
const (
	CloseNormal       = websocket.CloseNormalClosure // 1000
	CloseInternal     = websocket.CloseInternalServerErr
	CloseAuthRejected = 4401
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 25 * time.Second
	sendBacklog  = 64
)

// Conn is one live socket. The read loop is the only goroutine touching
// inbound frames (ordering per connection); writePump is the only writer.
type Conn struct {
	id    string
	user  string
	group string

	sock  *websocket.Conn
	send  chan []byte
	done  chan struct{}
	state atomic.Int32

	closeOnce sync.Once
}

func newConn(id string, sock *websocket.Conn) *Conn {
	return &Conn{
		id:   id,
		sock: sock,
		send: make(chan []byte, sendBacklog),
		done: make(chan struct{}),
	}
}

func (c *Conn) ID() string   { return c.id }
func (c *Conn) User() string { return c.user }

// Deliver enqueues without blocking; closed connections and full backlogs
// drop the event (at-most-once to currently-connected sockets).
func (c *Conn) Deliver(payload []byte) bool {
	if c.state.Load() == StateClosed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// writePump owns all writes on the socket: queued events plus the periodic
// control ping. It exits when close() fires or a write fails.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case payload := <-c.send:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Debugf("[ws] write err conn=%s user=%s err=%v", c.id, c.user, err)
				c.close(CloseInternal, "write failed")
				return
			}
		case <-ticker.C:
			if err := c.sock.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.close(CloseInternal, "ping failed")
				return
			}
		case <-c.done:
			return
		}
	}
}

// close transitions to CLOSED exactly once: sends the close frame with the
// given code, then tears down the socket and wakes the pump.
func (c *Conn) close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.state.Store(StateClosed)
		_ = c.sock.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		close(c.done)
		_ = c.sock.Close()
	})
}
