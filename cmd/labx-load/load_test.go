package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labx-platform/testbed/modules/loadtesting/domain/entities/loadtest"
	"github.com/labx-platform/testbed/modules/loadtesting/services"
)

const sampleProfile = `
name: Catalog Read
type: volume
target:
  url: /testcases/api/test-cases
  method: GET
  timeout_ms: 2000
load:
  virtual_users: 2
  duration_seconds: 1
  think_time_ms: 100
thresholds:
  max_error_rate: 50
scenarios:
  - name: list
    weight: 100
    steps:
      - method: GET
        url: /testcases/api/test-cases
`

func TestParseProfile(t *testing.T) {
	cfg, err := parseProfile([]byte(sampleProfile))
	require.NoError(t, err)
	assert.Equal(t, "catalog_read", cfg.ID)
	assert.Equal(t, loadtest.TypeVolume, cfg.Type)
	assert.Equal(t, 2, cfg.Load.VirtualUsers)
	assert.Equal(t, 100, cfg.Load.ThinkTimeMs)
	require.Len(t, cfg.Scenarios, 1)
	assert.Equal(t, "/testcases/api/test-cases", cfg.Scenarios[0].Steps[0].URL)

	_, err = parseProfile([]byte("name: x\nunknown: 1\n"))
	require.Error(t, err)

	_, err = parseProfile([]byte("name: x\nload:\n  virtual_users: 0\n  duration_seconds: 1\n  think_time_ms: 1\n"))
	require.Error(t, err)
}

func TestBuiltinProfile(t *testing.T) {
	cfg, err := builtinProfile(services.SpikeConfigID)
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Load.VirtualUsers)

	_, err = builtinProfile("nope")
	require.ErrorContains(t, err, services.StressConfigID)
}

func TestPointAt(t *testing.T) {
	cfg, err := builtinProfile(services.StressConfigID)
	require.NoError(t, err)

	live, err := pointAt(cfg, "http://localhost:3200/")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3200/testcases/api/test-cases", live.Target.URL)
	assert.True(t, live.Target.Live())
	assert.Equal(t, loadtest.ModeSimulated, cfg.Target.Mode)

	_, err = pointAt(cfg, "localhost:3200")
	require.Error(t, err)
}

func TestBuildReport(t *testing.T) {
	cfg := loadtest.Config{
		Name:       "r",
		Thresholds: loadtest.Thresholds{MaxResponseTimeMs: 100, MinThroughput: 50},
		Load:       loadtest.Load{VirtualUsers: 1, DurationSeconds: 1, ThinkTimeMs: 10},
	}
	res := loadtest.Results{AverageResponseTime: 40, Throughput: 20}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	report := buildReport(cfg, "http://x", "run-1", now, now.Add(time.Second), res)
	assert.Equal(t, reportSchema, report.Schema)
	assert.False(t, report.Passed)
	require.Len(t, report.Thresholds, 2)
	assert.True(t, report.Thresholds[0].OK)
	assert.Equal(t, "throughput", report.Thresholds[1].Name)
	assert.False(t, report.Thresholds[1].OK)
}

func TestSmokeCheck(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newRetryClient(logrus.New(), 2)
	client.RetryWaitMin = time.Millisecond
	client.RetryWaitMax = time.Millisecond
	require.NoError(t, smokeCheck(t.Context(), client, srv.URL))
	assert.Equal(t, int32(2), calls.Load())
}

func TestSimulateCmd(t *testing.T) {
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"simulate", "--seed", "7", "--vus", "10", "--duration", "2", "--think-time", "1000",
		"--start-instances", "2", "--max-instances", "10", "--step-size", "4", "--load-per-instance", "25"})
	require.NoError(t, cmd.Execute())

	var got simulateOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, 20, got.Results.TotalRequests)
	assert.InDelta(t, 10, got.Results.Throughput, 1e-9)
	require.NotEmpty(t, got.Breaches)
	assert.Equal(t, "throughput", got.Breaches[len(got.Breaches)-1].Metric)
	require.NotNil(t, got.Scalability)
	assert.Equal(t, 10, got.Scalability.OptimalInstances)
}

func TestRunCmd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	profilePath := filepath.Join(dir, "profile.yaml")
	require.NoError(t, os.WriteFile(profilePath, []byte(sampleProfile), 0o644))
	outPath := filepath.Join(dir, "report.json")
	xlsxPath := filepath.Join(dir, "report.xlsx")

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"run", "--profile-file", profilePath, "--base-url", srv.URL, "--out", outPath, "--xlsx", xlsxPath, "--seed", "1"})
	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var report loadReportV1
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, reportSchema, report.Schema)
	assert.Equal(t, srv.URL, report.Target.BaseURL)
	assert.Positive(t, report.Results.TotalRequests)
	assert.Zero(t, report.Results.FailedRequests)
	assert.True(t, report.Passed)

	info, err := os.Stat(xlsxPath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestRunCmd_RequiresProfile(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"run", "--out", filepath.Join(t.TempDir(), "r.json")})
	require.ErrorContains(t, cmd.Execute(), "--profile")
}
