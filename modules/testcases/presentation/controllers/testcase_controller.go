package controllers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/labx-platform/testbed/modules/testcases/domain/entities/testcase"
	"github.com/labx-platform/testbed/modules/testcases/services"
	"github.com/labx-platform/testbed/pkg/application"
	"github.com/labx-platform/testbed/pkg/composables"
	"github.com/labx-platform/testbed/pkg/httpapi"
	"github.com/labx-platform/testbed/pkg/metrics"
	"github.com/labx-platform/testbed/pkg/serrors"
)

const moduleName = "testcases"

type TestCaseController struct {
	app       application.Application
	testCases *services.TestCaseService
	basePath  string
	maxUpload int64
}

func NewTestCaseController(app application.Application, maxUpload int64) application.Controller {
	return &TestCaseController{
		app:       app,
		testCases: app.Service(services.TestCaseService{}).(*services.TestCaseService),
		basePath:  "/testcases/api",
		maxUpload: maxUpload,
	}
}

func (c *TestCaseController) Key() string {
	return c.basePath
}

func (c *TestCaseController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("/test-cases", metrics.InstrumentAPI(moduleName, "list", c.List)).Methods(http.MethodGet)
	router.HandleFunc("/test-cases", metrics.InstrumentAPI(moduleName, "create", c.Create)).Methods(http.MethodPost)
	router.HandleFunc("/test-cases/{id}", metrics.InstrumentAPI(moduleName, "get", c.Get)).Methods(http.MethodGet)
	router.HandleFunc("/test-cases/{id}", metrics.InstrumentAPI(moduleName, "update", c.Update)).Methods(http.MethodPatch)
	router.HandleFunc("/test-cases/{id}", metrics.InstrumentAPI(moduleName, "delete", c.Delete)).Methods(http.MethodDelete)
	router.HandleFunc("/generate", metrics.InstrumentAPI(moduleName, "generate", c.Generate)).Methods(http.MethodPost)
	router.HandleFunc("/cell-search-template", metrics.InstrumentAPI(moduleName, "cell_search_template", c.CellSearchTemplate)).Methods(http.MethodGet)
	router.HandleFunc("/categories", metrics.InstrumentAPI(moduleName, "categories", c.Categories)).Methods(http.MethodGet)
	router.HandleFunc("/export", metrics.InstrumentAPI(moduleName, "export", c.Export)).Methods(http.MethodGet)
	router.HandleFunc("/import", metrics.InstrumentAPI(moduleName, "import", c.Import)).Methods(http.MethodPost)
}

func (c *TestCaseController) List(w http.ResponseWriter, r *http.Request) {
	params, err := composables.UseQuery(&testcase.FindParams{}, r)
	if err != nil {
		httpapi.WriteServiceError(w, r, serrors.NewError(httpapi.CodeInvalidRequest, "invalid query", err.Error()))
		return
	}
	params.Tags = splitTags(params.Tags)
	res, err := c.testCases.List(r.Context(), params)
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, res)
}

func (c *TestCaseController) Get(w http.ResponseWriter, r *http.Request) {
	t, err := c.testCases.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, t)
}

func (c *TestCaseController) Create(w http.ResponseWriter, r *http.Request) {
	var dto testcase.CreateDTO
	if err := httpapi.DecodeJSON(w, r, c.maxUpload, &dto); err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	created, err := c.testCases.Create(r.Context(), &dto)
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusCreated, created)
}

func (c *TestCaseController) Update(w http.ResponseWriter, r *http.Request) {
	patch, err := c.readBody(w, r)
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	res, err := c.testCases.Update(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, res)
}

func (c *TestCaseController) Delete(w http.ResponseWriter, r *http.Request) {
	hard, _ := strconv.ParseBool(composables.GetLastQueryParam(r, "hard"))
	t, err := c.testCases.Delete(r.Context(), mux.Vars(r)["id"], hard)
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	if hard {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, t)
}

func (c *TestCaseController) Generate(w http.ResponseWriter, r *http.Request) {
	persist, _ := strconv.ParseBool(composables.GetLastQueryParam(r, "persist"))
	res, err := c.testCases.Generate(r.Context(), composables.GetLastQueryParam(r, "suite"), persist)
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if persist {
		status = http.StatusCreated
	}
	_ = httpapi.WriteJSON(w, status, res)
}

func (c *TestCaseController) CellSearchTemplate(w http.ResponseWriter, r *http.Request) {
	_ = httpapi.WriteJSON(w, http.StatusOK, c.testCases.CellSearchTemplate())
}

func (c *TestCaseController) Categories(w http.ResponseWriter, r *http.Request) {
	tree, err := c.testCases.Categories(r.Context())
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{"categories": tree})
}

func (c *TestCaseController) Export(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if _, err := c.testCases.Export(r.Context(), &buf); err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	name := fmt.Sprintf("test-cases-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Import accepts the catalog either as the raw body or as the "file" part of a
// multipart form.
func (c *TestCaseController) Import(w http.ResponseWriter, r *http.Request) {
	data, err := c.readUpload(w, r)
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	res, err := c.testCases.Import(r.Context(), data)
	if err != nil {
		httpapi.WriteServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, res)
}

func (c *TestCaseController) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if c.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, c.maxUpload)
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, serrors.NewError(httpapi.CodeInvalidRequest, "unable to read body", err.Error())
	}
	return data, nil
}

func (c *TestCaseController) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return c.readBody(w, r)
	}
	if err := r.ParseMultipartForm(c.maxUpload); err != nil {
		return nil, serrors.NewError(httpapi.CodeInvalidRequest, "invalid multipart form", err.Error())
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, serrors.NewError(httpapi.CodeInvalidRequest, "missing file part", err.Error())
	}
	defer func() { _ = file.Close() }()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, serrors.NewError(httpapi.CodeInvalidRequest, "unable to read file", err.Error())
	}
	return data, nil
}

// splitTags accepts both repeated and comma separated tag parameters.
func splitTags(tags []string) []string {
	out := []string{}
	for _, t := range tags {
		for _, part := range strings.Split(t, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
