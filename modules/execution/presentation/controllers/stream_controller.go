package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/labx-platform/testbed/modules/execution/domain/entities/execution"
	"github.com/labx-platform/testbed/modules/execution/services"
	"github.com/labx-platform/testbed/pkg/application"
	"github.com/labx-platform/testbed/pkg/composables"
	"github.com/labx-platform/testbed/pkg/repo"
)

const recentMessagesLimit = 20

type StreamOptions struct {
	UpdateInterval    time.Duration
	MaxStream         time.Duration
	HeartbeatInterval time.Duration
	IdleTimeout       time.Duration
	CheckOrigin       func(r *http.Request) bool
}

func (o *StreamOptions) defaults() {
	if o.UpdateInterval <= 0 {
		o.UpdateInterval = time.Second
	}
	if o.MaxStream <= 0 {
		o.MaxStream = 10 * time.Minute
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 30 * time.Second
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 5 * time.Minute
	}
}

type streamMessage struct {
	Type        string    `json:"type"`
	ExecutionID string    `json:"executionId,omitempty"`
	TestCaseID  string    `json:"testCaseId,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Data        any       `json:"data,omitempty"`
	Message     string    `json:"message,omitempty"`
}

type statusData struct {
	Status           execution.Status `json:"status"`
	Progress         int              `json:"progress"`
	CurrentStep      string           `json:"currentStep"`
	TotalMessages    int              `json:"totalMessages"`
	ExpectedMessages int              `json:"expectedMessages"`
}

func newStatusData(x execution.Execution) statusData {
	return statusData{
		Status:           x.Status,
		Progress:         x.Progress,
		CurrentStep:      x.CurrentStep,
		TotalMessages:    len(x.Messages),
		ExpectedMessages: x.TotalSteps,
	}
}

// StreamController serves the execution websocket stream.
type StreamController struct {
	engine  *services.Engine
	clients *services.StreamClients
	opts    StreamOptions
	hub     application.Huber
	unsubs  *repo.SafeMap[string, func()]
}

func NewStreamController(app application.Application, opts StreamOptions) application.Controller {
	opts.defaults()
	c := &StreamController{
		engine:  app.Service(services.Engine{}).(*services.Engine),
		clients: app.Service(services.StreamClients{}).(*services.StreamClients),
		opts:    opts,
		unsubs:  repo.NewSafeMap[string, func()](),
	}
	c.hub = application.NewHub(&application.HuberOptions{
		Logger:       app.Logger(),
		CheckOrigin:  opts.CheckOrigin,
		OnConnect:    c.onConnect,
		OnMessage:    c.onMessage,
		OnDisconnect: c.onDisconnect,
	})
	return c
}

func (c *StreamController) Key() string {
	return "/execution/ws"
}

func (c *StreamController) Register(r *mux.Router) {
	r.Handle("/execution/ws", c.hub)
}

func (c *StreamController) send(conn application.Connection, msg streamMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if msg.ExecutionID == "" {
		msg.ExecutionID = conn.Params().Get("executionId")
	}
	if msg.TestCaseID == "" {
		msg.TestCaseID = conn.Params().Get("testCaseId")
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		logrus.WithError(err).Error("marshal stream message")
		return
	}
	_ = conn.SendMessage(payload)
}

func (c *StreamController) onConnect(ctx context.Context, conn application.Connection) error {
	executionID := conn.Params().Get("executionId")
	testCaseID := conn.Params().Get("testCaseId")
	if executionID == "" && testCaseID == "" {
		_ = conn.CloseWithReason(websocket.ClosePolicyViolation, "Execution ID or Test Case ID is required")
		return errMissingStreamKey
	}

	now := time.Now()
	c.clients.Add(services.StreamClient{
		ID:           conn.ID(),
		ExecutionID:  executionID,
		TestCaseID:   testCaseID,
		ConnectedAt:  now,
		LastActivity: now,
	})
	c.send(conn, streamMessage{Type: "connection", Timestamp: now, Message: "Connected to execution stream"})

	key := executionID
	if key == "" {
		key = testCaseID
	}
	c.unsubs.Set(conn.ID(), c.engine.Subscribe(key, func(x execution.Execution) {
		c.send(conn, streamMessage{Type: "execution_update", ExecutionID: x.ID, TestCaseID: x.TestCaseID, Data: x})
	}))
	composables.UseLogger(ctx).WithFields(logrus.Fields{
		"client_id":    conn.ID(),
		"execution_id": executionID,
		"test_case_id": testCaseID,
	}).Info("stream client connected")

	go c.pump(conn)
	return nil
}

// pump sends periodic status updates and heartbeats until the client goes away.
func (c *StreamController) pump(conn application.Connection) {
	updates := time.NewTicker(c.opts.UpdateInterval)
	defer updates.Stop()
	heartbeat := time.NewTicker(c.opts.HeartbeatInterval)
	defer heartbeat.Stop()
	deadline := time.NewTimer(c.opts.MaxStream)
	defer deadline.Stop()

	streaming := true
	for {
		select {
		case <-conn.Context().Done():
			return
		case <-deadline.C:
			streaming = false
		case <-updates.C:
			if time.Since(conn.LastActivity()) > c.opts.IdleTimeout {
				_ = conn.CloseWithReason(websocket.CloseNormalClosure, "Connection timeout")
				return
			}
			if !streaming {
				continue
			}
			x, ok := c.engine.Resolve(conn.Context(), conn.Params().Get("executionId"), conn.Params().Get("testCaseId"))
			if !ok {
				continue
			}
			c.send(conn, streamMessage{Type: "status_update", ExecutionID: x.ID, TestCaseID: x.TestCaseID, Data: newStatusData(x)})
		case t := <-heartbeat.C:
			c.send(conn, streamMessage{Type: "heartbeat", Timestamp: t})
		}
	}
}

type clientMessage struct {
	Type string `json:"type"`
}

func (c *StreamController) onMessage(ctx context.Context, conn application.Connection, raw []byte) {
	conn.Touch()
	c.clients.Touch(conn.ID(), time.Now())

	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.send(conn, streamMessage{Type: "error", Message: "Invalid message format"})
		return
	}
	switch msg.Type {
	case "ping":
		c.send(conn, streamMessage{Type: "pong"})
	case "request_status":
		x, ok := c.engine.Resolve(ctx, conn.Params().Get("executionId"), conn.Params().Get("testCaseId"))
		if !ok {
			c.send(conn, streamMessage{Type: "error", Message: "Execution not found"})
			return
		}
		c.send(conn, streamMessage{Type: "execution_status", ExecutionID: x.ID, TestCaseID: x.TestCaseID, Data: newStatusData(x)})
	case "request_messages":
		x, ok := c.engine.Resolve(ctx, conn.Params().Get("executionId"), conn.Params().Get("testCaseId"))
		if !ok {
			c.send(conn, streamMessage{Type: "error", Message: "Execution not found"})
			return
		}
		c.send(conn, streamMessage{Type: "messages", ExecutionID: x.ID, TestCaseID: x.TestCaseID, Data: x.RecentMessages(recentMessagesLimit)})
	default:
		c.send(conn, streamMessage{Type: "error", Message: "Unknown message type: " + msg.Type})
	}
}

func (c *StreamController) onDisconnect(conn application.Connection) {
	if unsubscribe, ok := c.unsubs.Get(conn.ID()); ok {
		unsubscribe()
		c.unsubs.Delete(conn.ID())
	}
	c.clients.Remove(conn.ID())
}
