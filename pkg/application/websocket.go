package application

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/labx-platform/testbed/pkg/constants"
	"github.com/labx-platform/testbed/pkg/ws"
)

const (
	ChannelAll string = "all"
)

func ExecutionChannel(executionID string) string {
	return "execution/" + executionID
}

func TestCaseChannel(testCaseID string) string {
	return "testcase/" + testCaseID
}

type HuberOptions struct {
	Logger       *logrus.Logger
	CheckOrigin  func(r *http.Request) bool
	OnConnect    func(ctx context.Context, conn Connection) error
	OnMessage    func(ctx context.Context, conn Connection, message []byte)
	OnDisconnect func(conn Connection)
}

type Connection interface {
	ws.Connectioner
	ID() string
	Params() url.Values
	Context() context.Context
	CloseWithReason(code int, reason string) error
	Touch()
	LastActivity() time.Time
}

type WsCallback func(ctx context.Context, conn Connection) error

type Huber interface {
	http.Handler
	ForEach(channel string, f WsCallback) error
	Broadcast(channel string, message []byte)
	Join(channel string, conn Connection)
	Count() int
}

func NewHub(opts *HuberOptions) Huber {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	appHub := &huber{
		logger: logger,
		opts:   opts,
	}
	appHub.hub = ws.NewHub(&ws.HubOptions{
		Logger:       logger,
		CheckOrigin:  opts.CheckOrigin,
		OnConnect:    appHub.onConnect,
		OnMessage:    appHub.onMessage,
		OnDisconnect: appHub.onDisconnect,
	})
	return appHub
}

type huber struct {
	hub    *ws.Hub
	logger *logrus.Logger
	opts   *HuberOptions
}

func (h *huber) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeHTTP(w, r)
}

func (h *huber) onConnect(_ *http.Request, hub *ws.Hub, conn *ws.Connection) error {
	hub.JoinChannel(ChannelAll, conn)
	if h.opts.OnConnect == nil {
		return nil
	}
	return h.opts.OnConnect(h.buildContext(conn.Context()), conn)
}

func (h *huber) onMessage(conn *ws.Connection, message []byte) {
	if h.opts.OnMessage != nil {
		h.opts.OnMessage(h.buildContext(conn.Context()), conn, message)
	}
}

func (h *huber) onDisconnect(conn *ws.Connection) {
	if h.opts.OnDisconnect != nil {
		h.opts.OnDisconnect(conn)
	}
}

func (h *huber) buildContext(parent context.Context) context.Context {
	return context.WithValue(parent, constants.LoggerKey, logrus.NewEntry(h.logger))
}

func (h *huber) Join(channel string, conn Connection) {
	c, ok := conn.(*ws.Connection)
	if !ok {
		panic(fmt.Sprintf("unsupported connection type %T", conn))
	}
	h.hub.JoinChannel(channel, c)
}

func (h *huber) Count() int {
	return len(h.hub.ConnectionsAll())
}

func (h *huber) Broadcast(channel string, message []byte) {
	h.hub.BroadcastToChannel(channel, message)
}

func (h *huber) ForEach(channel string, f WsCallback) error {
	for _, conn := range h.hub.ConnectionsInChannel(channel) {
		if err := f(h.buildContext(conn.Context()), conn); err != nil {
			return err
		}
	}
	return nil
}
