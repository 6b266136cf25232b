// Package realtime carries story viewer sessions and feed playback over
// websockets.
package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 64
)

var ErrConnectionClosed = errors.New("connection closed")

// Connection wraps a websocket and funnels every outbound frame through one
// write loop. Send is safe for concurrent use.
type Connection struct {
	ID     string
	UserID string

	ws     *websocket.Conn
	send   chan []byte
	once   sync.Once
	closed chan struct{}

	// frames queued or being written
	pending int64
}

func NewConnection(userID string, ws *websocket.Conn) *Connection {
	return &Connection{
		ID:     uuid.NewString(),
		UserID: userID,
		ws:     ws,
		send:   make(chan []byte, sendBuffer),
		closed: make(chan struct{}),
	}
}

// Start launches the write loop. Call it once.
func (c *Connection) Start() {
	go c.writeLoop()
}

// Send queues payload. A client that cannot keep up is disconnected rather
// than allowed to grow the buffer.
func (c *Connection) Send(payload []byte) error {
	select {
	case <-c.closed:
		return ErrConnectionClosed
	default:
	}

	atomic.AddInt64(&c.pending, 1)
	select {
	case <-c.closed:
		atomic.AddInt64(&c.pending, -1)
		return ErrConnectionClosed
	case c.send <- payload:
		return nil
	default:
		atomic.AddInt64(&c.pending, -1)
		c.Close(websocket.CloseTryAgainLater, "send buffer full")
		return errors.New("connection buffer exceeded")
	}
}

func (c *Connection) SendJSON(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Send(payload)
}

// Close sends a close frame and tears down the socket. Later calls are no-ops.
func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.closed)
		deadline := time.Now().Add(writeWait)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		_ = c.ws.Close()
	})
}

// Done is closed once the connection is closed.
func (c *Connection) Done() <-chan struct{} {
	return c.closed
}

// Flush waits until queued frames have been written or timeout passes.
func (c *Connection) Flush(timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for atomic.LoadInt64(&c.pending) > 0 && time.Now().Before(deadline) {
		select {
		case <-c.closed:
			return
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case msg := <-c.send:
			err := c.write(websocket.TextMessage, msg)
			atomic.AddInt64(&c.pending, -1)
			if err != nil {
				c.Close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		}
	}
}

func (c *Connection) write(kind int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(kind, payload)
}
