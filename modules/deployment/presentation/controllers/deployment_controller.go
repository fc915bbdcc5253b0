package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/labx-platform/testbed/modules/deployment/domain/entities/deployment"
	"github.com/labx-platform/testbed/modules/deployment/services"
	"github.com/labx-platform/testbed/pkg/application"
	"github.com/labx-platform/testbed/pkg/composables"
	"github.com/labx-platform/testbed/pkg/httpapi"
	"github.com/labx-platform/testbed/pkg/metrics"
	"github.com/labx-platform/testbed/pkg/serrors"
)

const (
	moduleName      = "deployment"
	maxRequestBytes = 1 << 20
)

type DeploymentController struct {
	service  *services.DeploymentService
	basePath string
}

func NewDeploymentController(app application.Application) application.Controller {
	return &DeploymentController{
		service:  app.Service(services.DeploymentService{}).(*services.DeploymentService),
		basePath: "/deployment/api",
	}
}

func (c *DeploymentController) Key() string {
	return c.basePath
}

func (c *DeploymentController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("/configs", metrics.InstrumentAPI(moduleName, "configs", c.Configs)).Methods(http.MethodGet)
	router.HandleFunc("/configs", metrics.InstrumentAPI(moduleName, "create_config", c.CreateConfig)).Methods(http.MethodPost)
	router.HandleFunc("/configs/{id:[^/:]+}", metrics.InstrumentAPI(moduleName, "config", c.Config)).Methods(http.MethodGet)
	router.HandleFunc("/configs/{id:[^/:]+}:rollback", metrics.InstrumentAPI(moduleName, "rollback", c.Rollback)).Methods(http.MethodPost)

	router.HandleFunc("/deployments", metrics.InstrumentAPI(moduleName, "deploy", c.Deploy)).Methods(http.MethodPost)
	router.HandleFunc("/deployments", metrics.InstrumentAPI(moduleName, "list", c.List)).Methods(http.MethodGet)
	router.HandleFunc("/deployments/{id:[^/:]+}", metrics.InstrumentAPI(moduleName, "get", c.Get)).Methods(http.MethodGet)
	router.HandleFunc("/deployments/{id:[^/:]+}:cancel", metrics.InstrumentAPI(moduleName, "cancel", c.Cancel)).Methods(http.MethodPost)

	router.HandleFunc("/environments", metrics.InstrumentAPI(moduleName, "environments", c.Environments)).Methods(http.MethodGet)
}

func (c *DeploymentController) Configs(w http.ResponseWriter, r *http.Request) {
	configs := c.service.Configs(r.Context())
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{"configs": configs, "count": len(configs)})
}

func (c *DeploymentController) CreateConfig(w http.ResponseWriter, r *http.Request) {
	var dto deployment.CreateConfigDTO
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

func (c *DeploymentController) Config(w http.ResponseWriter, r *http.Request) {
	cfg, err := c.service.Config(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, cfg)
}

func (c *DeploymentController) Rollback(w http.ResponseWriter, r *http.Request) {
	d, err := c.service.Rollback(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusAccepted, d)
}

func (c *DeploymentController) Deploy(w http.ResponseWriter, r *http.Request) {
	var dto deployment.DeployDTO
	if err := httpapi.DecodeJSON(w, r, maxRequestBytes, &dto); err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	d, err := c.service.Deploy(r.Context(), dto)
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusAccepted, d)
}

func (c *DeploymentController) List(w http.ResponseWriter, r *http.Request) {
	params, err := composables.UseQuery(&deployment.FindParams{}, r)
	if err != nil {
		httpapi.WriteServiceError(w, r, serrors.NewError(httpapi.CodeInvalidRequest, "invalid query", err.Error()))
		return
	}
	items := c.service.Deployments(r.Context(), *params)
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{"deployments": items, "count": len(items)})
}

func (c *DeploymentController) Get(w http.ResponseWriter, r *http.Request) {
	d, err := c.service.Deployment(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, d)
}

func (c *DeploymentController) Cancel(w http.ResponseWriter, r *http.Request) {
	d, err := c.service.Cancel(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, d)
}

func (c *DeploymentController) Environments(w http.ResponseWriter, r *http.Request) {
	envs := c.service.Environments(r.Context())
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{"environments": envs, "count": len(envs)})
}
