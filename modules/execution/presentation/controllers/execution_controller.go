package controllers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/labx-platform/testbed/modules/execution/domain/entities/dataflow"
	"github.com/labx-platform/testbed/modules/execution/domain/entities/execution"
	"github.com/labx-platform/testbed/modules/execution/services"
	"github.com/labx-platform/testbed/pkg/application"
	"github.com/labx-platform/testbed/pkg/composables"
	"github.com/labx-platform/testbed/pkg/httpapi"
	"github.com/labx-platform/testbed/pkg/metrics"
	"github.com/labx-platform/testbed/pkg/serrors"
)

const (
	moduleName      = "execution"
	maxRequestBytes = 4 << 20
)

type ExecutionController struct {
	engine     *services.Engine
	dataFlow   *services.DataFlowManager
	cellSearch *services.CellSearchSimulator
	clients    *services.StreamClients
	basePath   string
}

func NewExecutionController(app application.Application) application.Controller {
	return &ExecutionController{
		engine:     app.Service(services.Engine{}).(*services.Engine),
		dataFlow:   app.Service(services.DataFlowManager{}).(*services.DataFlowManager),
		cellSearch: app.Service(services.CellSearchSimulator{}).(*services.CellSearchSimulator),
		clients:    app.Service(services.StreamClients{}).(*services.StreamClients),
		basePath:   "/execution/api",
	}
}

func (c *ExecutionController) Key() string {
	return c.basePath
}

func (c *ExecutionController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("/executions", metrics.InstrumentAPI(moduleName, "start", c.Start)).Methods(http.MethodPost)
	router.HandleFunc("/executions", metrics.InstrumentAPI(moduleName, "list", c.List)).Methods(http.MethodGet)
	router.HandleFunc("/executions/{id:[^/:]+}", metrics.InstrumentAPI(moduleName, "get", c.Get)).Methods(http.MethodGet)
	router.HandleFunc("/executions/{id:[^/:]+}:stop", metrics.InstrumentAPI(moduleName, "stop", c.Stop)).Methods(http.MethodPost)

	router.HandleFunc("/dataflow", metrics.InstrumentAPI(moduleName, "dataflow_start", c.StartDataFlow)).Methods(http.MethodPost)
	router.HandleFunc("/dataflow", metrics.InstrumentAPI(moduleName, "dataflow_state", c.DataFlowState)).Methods(http.MethodGet)
	router.HandleFunc("/dataflow", metrics.InstrumentAPI(moduleName, "dataflow_stop", c.StopDataFlow)).Methods(http.MethodDelete)
	router.HandleFunc("/dataflow/events", metrics.InstrumentAPI(moduleName, "dataflow_events", c.Events)).Methods(http.MethodGet)
	router.HandleFunc("/dataflow/events", metrics.InstrumentAPI(moduleName, "dataflow_clear_events", c.ClearEvents)).Methods(http.MethodDelete)
	router.HandleFunc("/dataflow/{id}/analysis", metrics.InstrumentAPI(moduleName, "dataflow_analysis", c.Analysis)).Methods(http.MethodGet)

	router.HandleFunc("/cell-search", metrics.InstrumentAPI(moduleName, "cell_search_start", c.StartCellSearch)).Methods(http.MethodPost)
	router.HandleFunc("/cell-search", metrics.InstrumentAPI(moduleName, "cell_search_list", c.ListCellSearch)).Methods(http.MethodGet)
	router.HandleFunc("/cell-search/{id}", metrics.InstrumentAPI(moduleName, "cell_search_get", c.GetCellSearch)).Methods(http.MethodGet)
	router.HandleFunc("/cell-search/{id}", metrics.InstrumentAPI(moduleName, "cell_search_stop", c.StopCellSearch)).Methods(http.MethodDelete)

	router.HandleFunc("/ws/clients", metrics.InstrumentAPI(moduleName, "ws_clients", c.Clients)).Methods(http.MethodGet)
}

func (c *ExecutionController) Start(w http.ResponseWriter, r *http.Request) {
	var cfg execution.Config
	if err := httpapi.DecodeJSON(w, r, maxRequestBytes, &cfg); err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	id, err := c.engine.Start(r.Context(), cfg)
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	x, err := c.engine.Get(r.Context(), id)
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusAccepted, x)
}

func (c *ExecutionController) List(w http.ResponseWriter, r *http.Request) {
	params, err := composables.UseQuery(&execution.FindParams{}, r)
	if err != nil {
		httpapi.WriteServiceError(w, r, serrors.NewError(httpapi.CodeInvalidRequest, "invalid query", err.Error()))
		return
	}
	items, err := c.engine.List(r.Context(), params)
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{"executions": items, "count": len(items)})
}

func (c *ExecutionController) Get(w http.ResponseWriter, r *http.Request) {
	x, err := c.engine.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, x)
}

func (c *ExecutionController) Stop(w http.ResponseWriter, r *http.Request) {
	x, err := c.engine.Stop(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, x)
}

func (c *ExecutionController) StartDataFlow(w http.ResponseWriter, r *http.Request) {
	var data dataflow.TestExecutionData
	if err := httpapi.DecodeJSON(w, r, maxRequestBytes, &data); err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	started, err := c.dataFlow.StartTestExecution(data)
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusAccepted, started)
}

func (c *ExecutionController) DataFlowState(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"history": c.dataFlow.History()}
	if cur, ok := c.dataFlow.CurrentExecution(); ok {
		resp["current"] = cur
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, resp)
}

func (c *ExecutionController) StopDataFlow(w http.ResponseWriter, r *http.Request) {
	stopped, err := c.dataFlow.StopTestExecution(composables.GetLastQueryParam(r, "executionId"))
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, stopped)
}

func (c *ExecutionController) Events(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := composables.GetLastQueryParam(r, "limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httpapi.WriteAPIError(w, r, http.StatusBadRequest, httpapi.CodeInvalidRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	events, err := c.dataFlow.CachedEvents(r.Context(), limit)
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

func (c *ExecutionController) ClearEvents(w http.ResponseWriter, r *http.Request) {
	if err := c.dataFlow.ClearCache(r.Context()); err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *ExecutionController) Analysis(w http.ResponseWriter, r *http.Request) {
	analysis, err := c.dataFlow.EndToEndAnalysis(mux.Vars(r)["id"])
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, analysis)
}

func (c *ExecutionController) StartCellSearch(w http.ResponseWriter, r *http.Request) {
	_ = httpapi.WriteJSON(w, http.StatusAccepted, c.cellSearch.Start())
}

func (c *ExecutionController) ListCellSearch(w http.ResponseWriter, r *http.Request) {
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{"runs": c.cellSearch.List()})
}

func (c *ExecutionController) GetCellSearch(w http.ResponseWriter, r *http.Request) {
	run, err := c.cellSearch.Get(mux.Vars(r)["id"])
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, run)
}

func (c *ExecutionController) StopCellSearch(w http.ResponseWriter, r *http.Request) {
	run, err := c.cellSearch.Stop(mux.Vars(r)["id"])
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, run)
}

func (c *ExecutionController) Clients(w http.ResponseWriter, r *http.Request) {
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"clients": c.clients.ConnectedClients(),
		"count":   c.clients.ClientCount(),
	})
}
