package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/labx-platform/testbed/modules/health/services"
	"github.com/labx-platform/testbed/pkg/application"
	"github.com/labx-platform/testbed/pkg/httpapi"
)

type HealthController struct {
	service  *services.HealthService
	basePath string
}

func NewHealthController(app application.Application) application.Controller {
	return &HealthController{
		service:  app.Service(services.HealthService{}).(*services.HealthService),
		basePath: "/health",
	}
}

func (c *HealthController) Key() string {
	return c.basePath
}

func (c *HealthController) Register(r *mux.Router) {
	r.HandleFunc(c.basePath, c.Health).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc(c.basePath+"/live", c.Live).Methods(http.MethodGet, http.MethodHead)
}

func (c *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	report := c.service.Check(r.Context())
	status := http.StatusOK
	if report.Status == services.StatusDown {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Cache-Control", "no-store")
	_ = httpapi.WriteJSON(w, status, report)
}

func (c *HealthController) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	_ = httpapi.WriteJSON(w, http.StatusOK, c.service.Live())
}
