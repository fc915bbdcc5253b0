package controllers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/labx-platform/testbed/modules/loadtesting/domain/entities/loadtest"
	"github.com/labx-platform/testbed/modules/loadtesting/services"
	"github.com/labx-platform/testbed/pkg/application"
	"github.com/labx-platform/testbed/pkg/composables"
	"github.com/labx-platform/testbed/pkg/httpapi"
	"github.com/labx-platform/testbed/pkg/metrics"
	"github.com/labx-platform/testbed/pkg/serrors"
)

const (
	moduleName      = "loadtesting"
	maxRequestBytes = 1 << 20
	xlsxMIME        = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type LoadTestController struct {
	service  *services.LoadTestService
	basePath string
}

func NewLoadTestController(app application.Application) application.Controller {
	return &LoadTestController{
		service:  app.Service(services.LoadTestService{}).(*services.LoadTestService),
		basePath: "/loadtesting/api",
	}
}

func (c *LoadTestController) Key() string {
	return c.basePath
}

func (c *LoadTestController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("/configs", metrics.InstrumentAPI(moduleName, "configs", c.Configs)).Methods(http.MethodGet)
	router.HandleFunc("/configs", metrics.InstrumentAPI(moduleName, "create_config", c.CreateConfig)).Methods(http.MethodPost)
	router.HandleFunc("/configs/{id:[^/:]+}", metrics.InstrumentAPI(moduleName, "config", c.Config)).Methods(http.MethodGet)
	router.HandleFunc("/configs/{id:[^/:]+}", metrics.InstrumentAPI(moduleName, "delete_config", c.DeleteConfig)).Methods(http.MethodDelete)
	router.HandleFunc("/configs/{id:[^/:]+}/baseline", metrics.InstrumentAPI(moduleName, "baseline", c.Baseline)).Methods(http.MethodGet)
	router.HandleFunc("/configs/{id:[^/:]+}/baseline", metrics.InstrumentAPI(moduleName, "set_baseline", c.SetBaseline)).Methods(http.MethodPut)

	router.HandleFunc("/executions", metrics.InstrumentAPI(moduleName, "execute", c.Execute)).Methods(http.MethodPost)
	router.HandleFunc("/executions", metrics.InstrumentAPI(moduleName, "list", c.List)).Methods(http.MethodGet)
	router.HandleFunc("/executions/{id:[^/:]+}", metrics.InstrumentAPI(moduleName, "get", c.Get)).Methods(http.MethodGet)
	router.HandleFunc("/executions/{id:[^/:]+}:cancel", metrics.InstrumentAPI(moduleName, "cancel", c.Cancel)).Methods(http.MethodPost)
	router.HandleFunc("/executions/{id:[^/:]+}/comparison", metrics.InstrumentAPI(moduleName, "comparison", c.Comparison)).Methods(http.MethodGet)
	router.HandleFunc("/executions/{id:[^/:]+}/report", metrics.InstrumentAPI(moduleName, "report", c.Report)).Methods(http.MethodGet)

	router.HandleFunc("/scalability", metrics.InstrumentAPI(moduleName, "scalability", c.Scalability)).Methods(http.MethodPost)
}

func (c *LoadTestController) Configs(w http.ResponseWriter, r *http.Request) {
	configs := c.service.Configs(r.Context())
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{"configs": configs, "count": len(configs)})
}

func (c *LoadTestController) CreateConfig(w http.ResponseWriter, r *http.Request) {
	var dto loadtest.CreateConfigDTO
	if err := httpapi.DecodeJSON(w, r, maxRequestBytes, &dto); err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	cfg, err := c.service.CreateConfig(r.Context(), dto)
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusCreated, cfg)
}

func (c *LoadTestController) Config(w http.ResponseWriter, r *http.Request) {
	cfg, err := c.service.Config(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, cfg)
}

func (c *LoadTestController) DeleteConfig(w http.ResponseWriter, r *http.Request) {
	if err := c.service.DeleteConfig(r.Context(), mux.Vars(r)["id"]); err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *LoadTestController) Baseline(w http.ResponseWriter, r *http.Request) {
	b, err := c.service.Baseline(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, b)
}

func (c *LoadTestController) SetBaseline(w http.ResponseWriter, r *http.Request) {
	var dto loadtest.SetBaselineDTO
	if err := httpapi.DecodeJSON(w, r, maxRequestBytes, &dto); err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	b, err := c.service.SetBaseline(r.Context(), mux.Vars(r)["id"], dto.ExecutionID)
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, b)
}

func (c *LoadTestController) Execute(w http.ResponseWriter, r *http.Request) {
	var dto loadtest.ExecuteDTO
	if err := httpapi.DecodeJSON(w, r, maxRequestBytes, &dto); err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	e, err := c.service.Execute(r.Context(), dto)
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusAccepted, e)
}

func (c *LoadTestController) List(w http.ResponseWriter, r *http.Request) {
	params, err := composables.UseQuery(&loadtest.FindParams{}, r)
	if err != nil {
		httpapi.WriteServiceError(w, r, serrors.NewError(httpapi.CodeInvalidRequest, "invalid query", err.Error()))
		return
	}
	items := c.service.Executions(r.Context(), *params)
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{"executions": items, "count": len(items)})
}

func (c *LoadTestController) Get(w http.ResponseWriter, r *http.Request) {
	e, err := c.service.Execution(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, e)
}

func (c *LoadTestController) Cancel(w http.ResponseWriter, r *http.Request) {
	e, err := c.service.Cancel(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, e)
}

func (c *LoadTestController) Comparison(w http.ResponseWriter, r *http.Request) {
	cmp, err := c.service.CompareWithBaseline(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{"comparison": cmp, "regressed": cmp.Regressed()})
}

func (c *LoadTestController) Report(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var buf bytes.Buffer
	if err := c.service.Report(r.Context(), id, &buf); err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxMIME)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "load-test-"+id+".xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (c *LoadTestController) Scalability(w http.ResponseWriter, r *http.Request) {
	var cfg loadtest.ScalabilityConfig
	if err := httpapi.DecodeJSON(w, r, maxRequestBytes, &cfg); err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	res, err := c.service.RunScalabilityTest(r.Context(), cfg)
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, res)
}
