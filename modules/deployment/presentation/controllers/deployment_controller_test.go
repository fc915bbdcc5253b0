package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labx-platform/testbed/modules/deployment/domain/entities/deployment"
	"github.com/labx-platform/testbed/modules/deployment/presentation/controllers"
	"github.com/labx-platform/testbed/modules/deployment/services"
	"github.com/labx-platform/testbed/pkg/application"
)

func newRouter(t *testing.T) (*mux.Router, *services.DeploymentService) {
	t.Helper()
	app := application.New(&application.ApplicationOptions{Logger: logrus.New()})
	service := services.NewDeploymentService(app.EventPublisher(),
		services.WithStepDelay(0),
		services.WithLogger(app.Logger()),
	)
	require.NoError(t, service.Initialize(context.Background()))
	t.Cleanup(func() { _ = service.Close(context.Background()) })
	app.RegisterServices(service)

	r := mux.NewRouter()
	controllers.NewDeploymentController(app).Register(r)
	return r, service
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestDeploymentController_Configs(t *testing.T) {
	r, _ := newRouter(t)

	rec := do(r, http.MethodGet, "/deployment/api/configs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":2`)

	rec = do(r, http.MethodGet, "/deployment/api/configs/"+services.ProductionConfigID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cfg deployment.Config
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, "5glabx.com", cfg.Build.Domain)

	rec = do(r, http.MethodPost, "/deployment/api/configs", `{
		"name": "Preview",
		"environment": "development",
		"platform": "vercel",
		"config": {"buildCommand": "pnpm build", "outputDirectory": ".next", "domain": "preview.5glabx.com"}
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.True(t, cfg.Enabled)
	assert.NotEmpty(t, cfg.ID)

	rec = do(r, http.MethodPost, "/deployment/api/configs", `{"name": "Bad", "environment": "qa", "platform": "vercel"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/deployment/api/configs/missing", "").Code)
}

func TestDeploymentController_DeployLifecycle(t *testing.T) {
	r, service := newRouter(t)

	rec := do(r, http.MethodPost, "/deployment/api/deployments", `{"configId":"nope","version":"1.0.0"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Deployment configuration not found")

	rec = do(r, http.MethodPost, "/deployment/api/deployments", `{"configId":"staging_config","version":"latest"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(r, http.MethodPost, "/deployment/api/deployments", `{"configId":"staging_config","version":"1.3.0","commitHash":"deadbeef","branch":"main"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var d deployment.Deployment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, deployment.StatusPending, d.Status)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := service.Wait(ctx, d.ID)
	require.NoError(t, err)

	rec = do(r, http.MethodGet, "/deployment/api/deployments/"+d.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.False(t, d.Status.Active())

	rec = do(r, http.MethodPost, "/deployment/api/deployments/"+d.ID+":cancel", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(r, http.MethodGet, "/deployment/api/deployments?environment=staging&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = do(r, http.MethodGet, "/deployment/api/deployments?environment=production", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":0`)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/deployment/api/deployments/missing", "").Code)
	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, "/deployment/api/configs/production_config:rollback", "").Code)

	rec = do(r, http.MethodGet, "/deployment/api/environments", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":2`)
}
