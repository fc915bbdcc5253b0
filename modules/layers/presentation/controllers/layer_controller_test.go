package controllers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labx-platform/testbed/modules/layers"
	"github.com/labx-platform/testbed/modules/layers/domain/entities/layer"
	"github.com/labx-platform/testbed/pkg/application"
	"github.com/labx-platform/testbed/pkg/eventbus"
)

func newRouter(t *testing.T) (*mux.Router, application.Application) {
	t.Helper()
	app := application.New(&application.ApplicationOptions{Logger: logrus.New()})
	require.NoError(t, layers.NewModule().Register(app))
	r := mux.NewRouter()
	for _, c := range app.Controllers() {
		c.Register(r)
	}
	return r, app
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestLayerController_Parse(t *testing.T) {
	r, _ := newRouter(t)

	rec := do(r, http.MethodPost, "/layers/api/mac:parse", `{"ieMap":{"harq_retransmission_count":3,"current_tx_power":"high"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var mac layer.MacReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mac))
	assert.Equal(t, 3, mac.HARQ.RetransmissionCount)
	assert.Equal(t, layer.GradePoor, mac.HARQStatus)
	assert.InDelta(t, 20.5, mac.Power.CurrentTxPower, 1e-9)
	assert.Equal(t, layer.PowerHigh, mac.PowerStatus)

	rec = do(r, http.MethodPost, "/layers/api/phy:parse", `{"ieMap":{"rsrp":-60,"sinr":25}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var phy layer.PhyReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &phy))
	assert.Equal(t, layer.GradeExcellent, phy.SignalStatus)
	assert.Equal(t, 123, phy.CellSync.PCI)

	assert.Equal(t, http.StatusUnprocessableEntity, do(r, http.MethodPost, "/layers/api/mac:parse", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/layers/api/phy:parse", `{"ies":{}}`).Code)
}

func TestLayerController_ExecutionViews(t *testing.T) {
	r, app := newRouter(t)

	rec := do(r, http.MethodGet, "/layers/api/executions/exec-9/mac", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "LAYER_DATA_NOT_FOUND")

	app.EventPublisher().Publish(eventbus.Event{
		Type:        eventbus.LayerUpdate("MAC"),
		ExecutionID: "exec-9",
		Data:        eventbus.MessagePayload{Layer: "MAC", IEMap: map[string]any{"allocated_rbs": 40}},
	})

	rec = do(r, http.MethodGet, "/layers/api/executions/exec-9/mac", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view layer.MacView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "exec-9", view.ExecutionID)
	assert.Equal(t, 40, view.Latest.Resources.AllocatedRBs)
	assert.Len(t, view.Trend, 1)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/layers/api/executions/exec-9/phy", "").Code)
	assert.Contains(t, do(r, http.MethodGet, "/layers/api/executions", "").Body.String(), `"count":1`)
}
