package controllers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labx-platform/testbed/modules/health/presentation/controllers"
	"github.com/labx-platform/testbed/modules/health/services"
	"github.com/labx-platform/testbed/pkg/application"
)

func newRouter(opts ...services.Option) *mux.Router {
	app := application.New(&application.ApplicationOptions{Logger: logrus.New()})
	app.RegisterServices(services.NewHealthService("labx-testbed", "1.0.0", app.EventPublisher(), opts...))
	r := mux.NewRouter()
	controllers.NewHealthController(app).Register(r)
	return r
}

func get(r http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthController_Healthy(t *testing.T) {
	rec := get(newRouter(), "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body services.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, services.StatusHealthy, body.Status)
	assert.Len(t, body.Checks, 3)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestHealthController_DownReturns503(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing().WillReturnError(errors.New("refused"))

	rec := get(newRouter(services.WithDatabase(db.PingContext)), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"down"`)
}

func TestHealthController_Live(t *testing.T) {
	rec := get(newRouter(), "/health/live")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"service":"labx-testbed"`)
	assert.NotContains(t, rec.Body.String(), "checks")
}
