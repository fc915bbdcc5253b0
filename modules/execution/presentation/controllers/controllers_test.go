package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labx-platform/testbed/modules/execution/domain/entities/cellsearch"
	"github.com/labx-platform/testbed/modules/execution/domain/entities/execution"
	"github.com/labx-platform/testbed/modules/execution/infrastructure/persistence"
	"github.com/labx-platform/testbed/modules/execution/presentation/controllers"
	"github.com/labx-platform/testbed/modules/execution/services"
	"github.com/labx-platform/testbed/modules/testcases/domain/entities/testcase"
	"github.com/labx-platform/testbed/modules/testcases/domain/generators"
	"github.com/labx-platform/testbed/pkg/application"
)

type fakeCases map[string]testcase.TestCase

func (f fakeCases) Get(_ context.Context, key string) (testcase.TestCase, error) {
	tc, ok := f[key]
	if !ok {
		return testcase.TestCase{}, testcase.ErrNotFound
	}
	return tc, nil
}

type templateSource struct{}

func (templateSource) CellSearchTemplate() generators.CellSearchTemplate {
	return generators.NewCellSearchTemplate()
}

var cases = fakeCases{"LTE-ATTACH-1": {
	TestCaseID: "LTE-ATTACH-1",
	Name:       "Initial attach",
	Protocol:   "LTE",
	MessageFlow: []testcase.MessageStep{
		{Direction: "UL", Layer: "RRC", Message: "RRC Setup Request", Values: map[string]any{"ue_identity": "0x12"}},
		{Direction: "DL", Layer: "RRC", Message: "RRC Setup", Values: map[string]any{"srb": 1}},
		{Direction: "UL", Layer: "NAS", Message: "Attach Request", Values: map[string]any{"imsi": "001010123456789"}},
	},
}}

func newApp(t *testing.T, stream controllers.StreamOptions) (*mux.Router, *services.Engine) {
	t.Helper()
	app := application.New(&application.ApplicationOptions{Logger: logrus.New()})
	bus := app.EventPublisher()
	engine := services.NewEngine(persistence.NewInmemExecutionRepository(), cases, bus)
	dataFlow := services.NewDataFlowManager(bus, logrus.New(), time.Millisecond)
	app.RegisterServices(
		engine,
		dataFlow,
		services.NewCellSearchSimulator(templateSource{}, bus, logrus.New(), time.Hour),
		services.NewStreamClients(),
	)
	t.Cleanup(func() {
		_ = engine.Close(context.Background())
		_ = dataFlow.Close(context.Background())
	})
	r := mux.NewRouter()
	controllers.NewExecutionController(app).Register(r)
	controllers.NewStreamController(app, stream).Register(r)
	return r, engine
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func startBatch(t *testing.T, r http.Handler, engine *services.Engine) string {
	t.Helper()
	rec := do(r, http.MethodPost, "/execution/api/executions", `{"testCaseId":"LTE-ATTACH-1","executionMode":"batch"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var x execution.Execution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &x))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := engine.Wait(ctx, x.ID)
	require.NoError(t, err)
	return x.ID
}

func TestExecutionController_Executions(t *testing.T) {
	r, engine := newApp(t, controllers.StreamOptions{})
	id := startBatch(t, r, engine)

	rec := do(r, http.MethodGet, "/execution/api/executions/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var x execution.Execution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &x))
	assert.Equal(t, execution.StatusCompleted, x.Status)
	assert.Len(t, x.Messages, 3)

	rec = do(r, http.MethodGet, "/execution/api/executions?status=completed&testCaseId=LTE-ATTACH-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = do(r, http.MethodPost, "/execution/api/executions/"+id+":stop", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "EXECUTION_INVALID_STATE")

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/execution/api/executions/nope:stop", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/execution/api/executions/nope", "").Code)

	rec = do(r, http.MethodPost, "/execution/api/executions", `{"testCaseId":"MISSING"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "TEST_CASE_NOT_FOUND")
	assert.Equal(t, http.StatusUnprocessableEntity, do(r, http.MethodPost, "/execution/api/executions", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/execution/api/executions", `{"bogus":1}`).Code)
}

func TestExecutionController_DataFlowAndCellSearch(t *testing.T) {
	r, _ := newApp(t, controllers.StreamOptions{})

	rec := do(r, http.MethodPost, "/execution/api/dataflow", `{
		"executionId": "exec_api",
		"testCaseId": "NR-1",
		"testMessages": [{"id":"m1","layer":"RRC","direction":"UL","messageType":"RRCSetupRequest"}]
	}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	require.Eventually(t, func() bool {
		return strings.Contains(do(r, http.MethodGet, "/execution/api/dataflow", "").Body.String(), `"status":"COMPLETED"`)
	}, 2*time.Second, 5*time.Millisecond)

	rec = do(r, http.MethodGet, "/execution/api/dataflow/exec_api/analysis", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"correlationScore":0.95`)

	rec = do(r, http.MethodGet, "/execution/api/dataflow/events?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":2`)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/execution/api/dataflow/events?limit=x", "").Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, "/execution/api/dataflow/events", "").Code)
	assert.Equal(t, http.StatusConflict, do(r, http.MethodDelete, "/execution/api/dataflow", "").Code)

	rec = do(r, http.MethodPost, "/execution/api/cell-search", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	var run cellsearch.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/execution/api/cell-search/"+run.ID, "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodDelete, "/execution/api/cell-search/"+run.ID, "").Code)
	assert.Equal(t, http.StatusConflict, do(r, http.MethodDelete, "/execution/api/cell-search/"+run.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/execution/api/cell-search/missing", "").Code)
}

type frame struct {
	Type        string          `json:"type"`
	ExecutionID string          `json:"executionId"`
	Message     string          `json:"message"`
	Data        json.RawMessage `json:"data"`
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/execution/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestStreamController_RequiresKey(t *testing.T) {
	r, _ := newApp(t, controllers.StreamOptions{})
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn := dial(t, srv, "")
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
	assert.Equal(t, "Execution ID or Test Case ID is required", closeErr.Text)
}

func TestStreamController_Protocol(t *testing.T) {
	r, engine := newApp(t, controllers.StreamOptions{UpdateInterval: time.Hour, HeartbeatInterval: time.Hour})
	id := startBatch(t, r, engine)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn := dial(t, srv, "executionId="+id)
	f := read(t, conn)
	assert.Equal(t, "connection", f.Type)
	assert.Equal(t, id, f.ExecutionID)

	rec := do(r, http.MethodGet, "/execution/api/ws/clients", "")
	assert.Contains(t, rec.Body.String(), `"count":1`)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	assert.Equal(t, "pong", read(t, conn).Type)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "request_status"}))
	f = read(t, conn)
	require.Equal(t, "execution_status", f.Type)
	var status struct {
		Status           string `json:"status"`
		Progress         int    `json:"progress"`
		TotalMessages    int    `json:"totalMessages"`
		ExpectedMessages int    `json:"expectedMessages"`
	}
	require.NoError(t, json.Unmarshal(f.Data, &status))
	assert.Equal(t, "completed", status.Status)
	assert.Equal(t, 100, status.Progress)
	assert.Equal(t, 3, status.TotalMessages)
	assert.Equal(t, 3, status.ExpectedMessages)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "request_messages"}))
	f = read(t, conn)
	require.Equal(t, "messages", f.Type)
	var msgs []execution.ExecutedMessage
	require.NoError(t, json.Unmarshal(f.Data, &msgs))
	assert.Len(t, msgs, 3)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "dance"}))
	f = read(t, conn)
	assert.Equal(t, "error", f.Type)
	assert.Equal(t, "Unknown message type: dance", f.Message)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Equal(t, "error", read(t, conn).Type)
}

func TestStreamController_StatusUpdatesAndIdleTimeout(t *testing.T) {
	r, engine := newApp(t, controllers.StreamOptions{
		UpdateInterval:    10 * time.Millisecond,
		HeartbeatInterval: time.Hour,
		IdleTimeout:       150 * time.Millisecond,
	})
	id := startBatch(t, r, engine)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn := dial(t, srv, "testCaseId=LTE-ATTACH-1")
	assert.Equal(t, "connection", read(t, conn).Type)
	f := read(t, conn)
	assert.Equal(t, "status_update", f.Type)
	assert.Equal(t, id, f.ExecutionID)

	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		var closeErr *websocket.CloseError
		require.ErrorAs(t, err, &closeErr)
		assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
		assert.Equal(t, "Connection timeout", closeErr.Text)
		return
	}
}
