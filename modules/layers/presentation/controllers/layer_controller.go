package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/labx-platform/testbed/modules/layers/domain/entities/layer"
	"github.com/labx-platform/testbed/modules/layers/services"
	"github.com/labx-platform/testbed/pkg/application"
	"github.com/labx-platform/testbed/pkg/httpapi"
	"github.com/labx-platform/testbed/pkg/metrics"
)

const (
	moduleName      = "layers"
	maxRequestBytes = 1 << 20
)

type ParseRequest struct {
	IEMap map[string]any `json:"ieMap" validate:"required"`
}

type LayerController struct {
	tracker  *services.Tracker
	basePath string
}

func NewLayerController(app application.Application) application.Controller {
	return &LayerController{
		tracker:  app.Service(services.Tracker{}).(*services.Tracker),
		basePath: "/layers/api",
	}
}

func (c *LayerController) Key() string {
	return c.basePath
}

func (c *LayerController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("/mac:parse", metrics.InstrumentAPI(moduleName, "mac_parse", c.ParseMac)).Methods(http.MethodPost)
	router.HandleFunc("/phy:parse", metrics.InstrumentAPI(moduleName, "phy_parse", c.ParsePhy)).Methods(http.MethodPost)
	router.HandleFunc("/executions", metrics.InstrumentAPI(moduleName, "executions", c.Executions)).Methods(http.MethodGet)
	router.HandleFunc("/executions/{id}/mac", metrics.InstrumentAPI(moduleName, "mac", c.Mac)).Methods(http.MethodGet)
	router.HandleFunc("/executions/{id}/phy", metrics.InstrumentAPI(moduleName, "phy", c.Phy)).Methods(http.MethodGet)
}

func (c *LayerController) ParseMac(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if err := httpapi.DecodeJSON(w, r, maxRequestBytes, &req); err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, layer.NewMacReport(layer.ParseMacLayerData(req.IEMap)))
}

func (c *LayerController) ParsePhy(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if err := httpapi.DecodeJSON(w, r, maxRequestBytes, &req); err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, layer.NewPhyReport(layer.ParseUEPhyLayerData(req.IEMap)))
}

func (c *LayerController) Executions(w http.ResponseWriter, r *http.Request) {
	ids := c.tracker.Executions()
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{"executions": ids, "count": len(ids)})
}

func (c *LayerController) Mac(w http.ResponseWriter, r *http.Request) {
	view, err := c.tracker.Mac(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, view)
}

func (c *LayerController) Phy(w http.ResponseWriter, r *http.Request) {
	view, err := c.tracker.Phy(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, view)
}
