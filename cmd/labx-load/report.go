package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/labx-platform/testbed/modules/loadtesting/domain/entities/loadtest"
)

const reportSchema = "labx_load_report.v1"

type loadReportV1 struct {
	Schema     string `json:"schema"`
	RunID      string `json:"run_id"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
	Target     struct {
		BaseURL string `json:"base_url"`
	} `json:"target"`
	Profile struct {
		Name            string            `json:"name"`
		Type            loadtest.TestType `json:"type"`
		VUs             int               `json:"vus"`
		DurationSeconds int               `json:"duration_seconds"`
		ThinkTimeMs     int               `json:"think_time_ms"`
	} `json:"profile"`
	Results    loadtest.Results      `json:"results"`
	Thresholds []loadReportThreshold `json:"thresholds"`
	Passed     bool                  `json:"passed"`
	Notes      string                `json:"notes,omitempty"`
}

type loadReportThreshold struct {
	Name   string  `json:"name"`
	Limit  float64 `json:"limit"`
	Actual float64 `json:"actual"`
	OK     bool    `json:"ok"`
}

// buildReport lists every configured (non zero) threshold with its outcome.
func buildReport(cfg loadtest.Config, baseURL, runID string, startedAt, finishedAt time.Time, res loadtest.Results) loadReportV1 {
	report := loadReportV1{
		Schema:     reportSchema,
		RunID:      runID,
		StartedAt:  startedAt.UTC().Format(time.RFC3339),
		FinishedAt: finishedAt.UTC().Format(time.RFC3339),
		Results:    res,
		Thresholds: []loadReportThreshold{},
		Passed:     true,
	}
	report.Target.BaseURL = baseURL
	report.Profile.Name = cfg.Name
	report.Profile.Type = cfg.Type
	report.Profile.VUs = cfg.Load.VirtualUsers
	report.Profile.DurationSeconds = cfg.Load.DurationSeconds
	report.Profile.ThinkTimeMs = cfg.Load.ThinkTimeMs

	breached := map[string]bool{}
	for _, b := range loadtest.CheckThresholds(cfg.Thresholds, res) {
		breached[b.Metric] = true
		report.Passed = false
	}
	add := func(name string, limit, actual float64) {
		if limit > 0 {
			report.Thresholds = append(report.Thresholds, loadReportThreshold{Name: name, Limit: limit, Actual: actual, OK: !breached[name]})
		}
	}
	add("response_time", cfg.Thresholds.MaxResponseTimeMs, res.AverageResponseTime)
	add("error_rate", cfg.Thresholds.MaxErrorRate, res.ErrorRate)
	add("throughput", cfg.Thresholds.MinThroughput, res.Throughput)
	return report
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
