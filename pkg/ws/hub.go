package ws

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type HubOptions struct {
	Logger       *logrus.Logger
	CheckOrigin  func(r *http.Request) bool
	OnConnect    func(r *http.Request, hub *Hub, conn *Connection) error
	OnMessage    func(conn *Connection, message []byte)
	OnDisconnect func(conn *Connection)
}

type Huber interface {
	http.Handler
	JoinChannel(channel string, conn *Connection)
	LeaveChannel(channel string, conn *Connection)
	ConnectionsInChannel(channel string) []*Connection
	ConnectionsAll() []*Connection
	BroadcastToChannel(channel string, message []byte)
	BroadcastToAll(message []byte)
}

type Hub struct {
	upgrader websocket.Upgrader
	opts     *HubOptions
	logger   *logrus.Logger

	mu          sync.RWMutex
	connections map[*Connection]struct{}
	channels    map[string]map[*Connection]struct{}
}

func NewHub(opts *HubOptions) *Hub {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     opts.CheckOrigin,
		},
		opts:        opts,
		logger:      logger,
		connections: make(map[*Connection]struct{}),
		channels:    make(map[string]map[*Connection]struct{}),
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("ws: upgrade failed")
		return
	}
	conn := newConnection(wsConn, r.URL.Query())

	h.mu.Lock()
	h.connections[conn] = struct{}{}
	h.mu.Unlock()

	go conn.writePump()

	if h.opts.OnConnect != nil {
		if err := h.opts.OnConnect(r, h, conn); err != nil {
			h.logger.WithError(err).Debug("ws: connection rejected")
			h.remove(conn)
			return
		}
	}

	conn.readPump(h.opts.OnMessage)
	h.remove(conn)
}

func (h *Hub) remove(conn *Connection) {
	h.mu.Lock()
	_, known := h.connections[conn]
	delete(h.connections, conn)
	for name, members := range h.channels {
		delete(members, conn)
		if len(members) == 0 {
			delete(h.channels, name)
		}
	}
	h.mu.Unlock()

	_ = conn.Close()
	if known && h.opts.OnDisconnect != nil {
		h.opts.OnDisconnect(conn)
	}
}

func (h *Hub) JoinChannel(channel string, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.channels[channel]
	if !ok {
		members = make(map[*Connection]struct{})
		h.channels[channel] = members
	}
	members[conn] = struct{}{}
}

func (h *Hub) LeaveChannel(channel string, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.channels[channel]; ok {
		delete(members, conn)
		if len(members) == 0 {
			delete(h.channels, channel)
		}
	}
}

func (h *Hub) ConnectionsInChannel(channel string) []*Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Connection, 0, len(h.channels[channel]))
	for c := range h.channels[channel] {
		out = append(out, c)
	}
	return out
}

func (h *Hub) ConnectionsAll() []*Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Connection, 0, len(h.connections))
	for c := range h.connections {
		out = append(out, c)
	}
	return out
}

func (h *Hub) BroadcastToChannel(channel string, message []byte) {
	for _, c := range h.ConnectionsInChannel(channel) {
		if err := c.SendMessage(message); err != nil {
			h.logger.WithError(err).WithField("channel", channel).Debug("ws: broadcast skipped connection")
		}
	}
}

func (h *Hub) BroadcastToAll(message []byte) {
	for _, c := range h.ConnectionsAll() {
		if err := c.SendMessage(message); err != nil {
			h.logger.WithError(err).Debug("ws: broadcast skipped connection")
		}
	}
}
