package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHub_EchoAndChannels(t *testing.T) {
	joined := make(chan *Connection, 1)
	hub := NewHub(&HubOptions{
		OnConnect: func(_ *http.Request, h *Hub, conn *Connection) error {
			h.JoinChannel("execution/"+conn.Params().Get("executionId"), conn)
			joined <- conn
			return nil
		},
		OnMessage: func(conn *Connection, message []byte) {
			_ = conn.SendMessage(append([]byte("echo:"), message...))
		},
	})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	client := dial(t, srv, "executionId=exec-1")
	conn := <-joined
	assert.Equal(t, "exec-1", conn.Params().Get("executionId"))
	assert.NotEmpty(t, conn.ID())

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("hi")))
	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "echo:hi", string(msg))

	hub.BroadcastToChannel("execution/exec-1", []byte("update"))
	_, msg, err = client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "update", string(msg))

	assert.Len(t, hub.ConnectionsInChannel("execution/exec-1"), 1)
	assert.Empty(t, hub.ConnectionsInChannel("execution/other"))
}

func TestHub_CloseWithReasonDeliversCode(t *testing.T) {
	hub := NewHub(&HubOptions{
		OnConnect: func(_ *http.Request, _ *Hub, conn *Connection) error {
			_ = conn.CloseWithReason(websocket.ClosePolicyViolation, "missing id")
			return ErrConnectionClosed
		},
	})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	client := dial(t, srv, "")
	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := client.ReadMessage()
	require.Error(t, err)
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
	assert.Equal(t, "missing id", closeErr.Text)
}

func TestConnection_SendAfterCloseFails(t *testing.T) {
	done := make(chan *Connection, 1)
	hub := NewHub(&HubOptions{
		OnConnect: func(_ *http.Request, _ *Hub, conn *Connection) error {
			done <- conn
			return nil
		},
	})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	dial(t, srv, "")
	conn := <-done
	require.NoError(t, conn.Close())
	require.ErrorIs(t, conn.SendMessage([]byte("x")), ErrConnectionClosed)
	select {
	case <-conn.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled")
	}
}
