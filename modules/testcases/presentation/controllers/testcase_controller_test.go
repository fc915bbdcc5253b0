package controllers_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labx-platform/testbed/modules/testcases/infrastructure/persistence"
	"github.com/labx-platform/testbed/modules/testcases/presentation/controllers"
	"github.com/labx-platform/testbed/modules/testcases/services"
	"github.com/labx-platform/testbed/pkg/application"
	"github.com/labx-platform/testbed/pkg/httpapi"
)

func newRouter(t *testing.T) *mux.Router {
	t.Helper()
	app := application.New(&application.ApplicationOptions{})
	app.RegisterServices(services.NewTestCaseService(persistence.NewInmemTestCaseRepository()))
	r := mux.NewRouter()
	controllers.NewTestCaseController(app, 1<<20).Register(r)
	return r
}

func do(r http.Handler, method, target string, body []byte, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

const createBody = `{
	"test_case_id": "TC-API-1",
	"name": "Attach",
	"category": "4G_LTE_NAS",
	"test_type": "functional",
	"tags": ["nas", "attach"],
	"message_flow": [{"timestamp": 0, "direction": "UL", "layer": "NAS", "message": "Attach Request"}]
}`

func TestTestCaseController_CRUD(t *testing.T) {
	r := newRouter(t)

	rec := do(r, http.MethodPost, "/testcases/api/test-cases", []byte(createBody))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(r, http.MethodGet, "/testcases/api/test-cases?category=4G_LTE_NAS&tags=attach,other", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list services.ListResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, int64(1), list.Total)
	assert.Equal(t, 1, list.Facets.Categories["4G_LTE_NAS"])

	rec = do(r, http.MethodGet, "/testcases/api/test-cases?category=4G_LTE_RRC", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Zero(t, list.Total)

	rec = do(r, http.MethodPatch, "/testcases/api/test-cases/TC-API-1", []byte(`{"duration_ms": 2500}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Len(t, updated["changes"], 1)

	rec = do(r, http.MethodDelete, "/testcases/api/test-cases/TC-API-1?hard=true", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(r, http.MethodGet, "/testcases/api/test-cases/TC-API-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var env httpapi.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "TEST_CASE_NOT_FOUND", env.Code)
}

func TestTestCaseController_Errors(t *testing.T) {
	r := newRouter(t)

	rec := do(r, http.MethodPost, "/testcases/api/test-cases", []byte(`{"name":`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(r, http.MethodPost, "/testcases/api/test-cases", []byte(`{"name":"x"}`))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/testcases/api/test-cases", []byte(createBody)).Code)
	rec = do(r, http.MethodPost, "/testcases/api/test-cases", []byte(createBody))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(r, http.MethodPost, "/testcases/api/generate?suite=5g", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTestCaseController_GenerateAndCategories(t *testing.T) {
	r := newRouter(t)

	rec := do(r, http.MethodPost, "/testcases/api/generate?suite=lte-mac&persist=true", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var gen services.GenerateResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &gen))
	assert.Equal(t, 25, gen.Created)

	rec = do(r, http.MethodGet, "/testcases/api/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"key":"4G_LTE","name":"4G LTE","total_count":25`)

	rec = do(r, http.MethodGet, "/testcases/api/cell-search-template", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"testCaseId":"LTE-001-COMPLETE"`)
}

func TestTestCaseController_ExportImportMultipart(t *testing.T) {
	src := newRouter(t)
	require.Equal(t, http.StatusCreated, do(src, http.MethodPost, "/testcases/api/test-cases", []byte(createBody)).Code)

	rec := do(src, http.MethodGet, "/testcases/api/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "test-cases-")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "catalog.xlsx")
	require.NoError(t, err)
	_, err = part.Write(rec.Body.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	dst := newRouter(t)
	rec = do(dst, http.MethodPost, "/testcases/api/import", body.Bytes(), "Content-Type", mw.FormDataContentType())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res services.ImportResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Created)

	rec = do(dst, http.MethodPost, "/testcases/api/import", []byte("plain words"))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}
