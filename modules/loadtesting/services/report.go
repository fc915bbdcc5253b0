package services

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/labx-platform/testbed/modules/loadtesting/domain/entities/loadtest"
)

const (
	summarySheet    = "Summary"
	errorsSheet     = "Errors"
	thresholdsSheet = "Thresholds"
	systemSheet     = "SystemMetrics"
)

// WriteReport renders an execution of cfg as an XLSX workbook.
func WriteReport(w io.Writer, cfg loadtest.Config, e loadtest.Execution) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return errors.Wrap(err, "rename sheet")
	}

	res := e.Results
	summary := [][]any{
		{"field", "value"},
		{"execution_id", e.ID},
		{"config_id", cfg.ID},
		{"config_name", cfg.Name},
		{"type", string(e.Type)},
		{"mode", string(e.Mode)},
		{"status", string(e.Status)},
		{"environment", e.Metadata.Environment},
		{"version", e.Metadata.Version},
		{"started_at", e.StartedAt.UTC().Format(time.RFC3339)},
		{"duration_s", e.DurationSeconds},
		{"virtual_users", cfg.Load.VirtualUsers},
		{"total_requests", res.TotalRequests},
		{"successful_requests", res.SuccessfulRequests},
		{"failed_requests", res.FailedRequests},
		{"avg_response_ms", res.AverageResponseTime},
		{"min_response_ms", res.MinResponseTime},
		{"max_response_ms", res.MaxResponseTime},
		{"p50_response_ms", res.P50ResponseTime},
		{"p90_response_ms", res.P90ResponseTime},
		{"p95_response_ms", res.P95ResponseTime},
		{"p99_response_ms", res.P99ResponseTime},
		{"throughput_rps", res.Throughput},
		{"error_rate_pct", res.ErrorRate},
	}
	if err := writeRows(f, summarySheet, summary); err != nil {
		return err
	}

	errRows := [][]any{{"type", "message", "count", "percentage"}}
	for _, er := range res.Errors {
		errRows = append(errRows, []any{er.Type, er.Message, er.Count, er.Percentage})
	}
	if err := writeSheet(f, errorsSheet, errRows); err != nil {
		return err
	}

	breachRows := [][]any{{"metric", "limit", "actual"}}
	for _, b := range e.ThresholdBreaches {
		breachRows = append(breachRows, []any{b.Metric, b.Limit, b.Actual})
	}
	if err := writeSheet(f, thresholdsSheet, breachRows); err != nil {
		return err
	}

	m := res.SystemMetrics
	sysRows := [][]any{{"sample", "cpu", "memory", "disk", "network"}}
	for i := range m.CPU {
		sysRows = append(sysRows, []any{i, m.CPU[i], at(m.Memory, i), at(m.Disk, i), at(m.Network, i)})
	}
	if err := writeSheet(f, systemSheet, sysRows); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return errors.Wrap(err, "write workbook")
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, rows [][]any) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return errors.Wrapf(err, "create sheet %s", sheet)
	}
	return writeRows(f, sheet, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.Wrapf(err, "write %s row %d", sheet, i+1)
		}
	}
	return nil
}

func at(v []float64, i int) float64 {
	if i < len(v) {
		return v[i]
	}
	return 0
}
