package ws

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

var (
	ErrConnectionClosed = errors.New("ws: connection closed")
	ErrSendBufferFull   = errors.New("ws: send buffer full")
)

type Connectioner interface {
	SendMessage(message []byte) error
	Close() error
}

// Connection is a single websocket client attached to a Hub.
type Connection struct {
	id     string
	conn   *websocket.Conn
	params url.Values
	send   chan []byte

	ctx    context.Context
	cancel context.CancelFunc

	lastActivity atomic.Int64
	closeOnce    sync.Once
	mu           sync.RWMutex
	closed       bool
}

func newConnection(conn *websocket.Conn, params url.Values) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:     uuid.NewString(),
		conn:   conn,
		params: params,
		send:   make(chan []byte, sendBufferSize),
		ctx:    ctx,
		cancel: cancel,
	}
	c.Touch()
	return c
}

func (c *Connection) ID() string {
	return c.id
}

// Params are the query parameters of the upgrade request.
func (c *Connection) Params() url.Values {
	return c.params
}

// Context is cancelled once the connection is closed.
func (c *Connection) Context() context.Context {
	return c.ctx
}

// Touch records client activity.
func (c *Connection) Touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

func (c *Connection) LastActivity() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

func (c *Connection) SendMessage(message []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnectionClosed
	}
	select {
	case c.send <- message:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *Connection) Close() error {
	return c.CloseWithReason(websocket.CloseNormalClosure, "")
}

// CloseWithReason sends a close frame with the given code and tears the connection down.
func (c *Connection) CloseWithReason(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()

		msg := websocket.FormatCloseMessage(code, reason)
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

func (c *Connection) readPump(onMessage func(*Connection, []byte)) {
	c.conn.SetReadLimit(maxMessageSize)
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.Touch()
		if onMessage != nil {
			onMessage(c, message)
		}
	}
}

func (c *Connection) writePump() {
	for message := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			c.cancel()
			return
		}
	}
}
