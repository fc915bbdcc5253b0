package loadtest

import (
	"slices"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Active() bool {
	return s == StatusPending || s == StatusRunning
}

const (
	DefaultEnvironment = "staging"
	DefaultVersion     = "latest"
)

type SystemMetrics struct {
	CPU     []float64 `json:"cpuUsage"`
	Memory  []float64 `json:"memoryUsage"`
	Disk    []float64 `json:"diskUsage"`
	Network []float64 `json:"networkUsage"`
}

func (m SystemMetrics) Clone() SystemMetrics {
	return SystemMetrics{
		CPU:     slices.Clone(m.CPU),
		Memory:  slices.Clone(m.Memory),
		Disk:    slices.Clone(m.Disk),
		Network: slices.Clone(m.Network),
	}
}

type ErrorSummary struct {
	Type       string  `json:"type"`
	Message    string  `json:"message"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type Results struct {
	TotalRequests       int            `json:"totalRequests"`
	SuccessfulRequests  int            `json:"successfulRequests"`
	FailedRequests      int            `json:"failedRequests"`
	AverageResponseTime float64        `json:"averageResponseTime"`
	MinResponseTime     float64        `json:"minResponseTime"`
	MaxResponseTime     float64        `json:"maxResponseTime"`
	P50ResponseTime     float64        `json:"p50ResponseTime"`
	P90ResponseTime     float64        `json:"p90ResponseTime"`
	P95ResponseTime     float64        `json:"p95ResponseTime"`
	P99ResponseTime     float64        `json:"p99ResponseTime"`
	Throughput          float64        `json:"throughput"`
	ErrorRate           float64        `json:"errorRate"`
	SystemMetrics       SystemMetrics  `json:"systemMetrics"`
	Errors              []ErrorSummary `json:"errors"`
}

func (r Results) Clone() Results {
	out := r
	out.SystemMetrics = r.SystemMetrics.Clone()
	out.Errors = slices.Clone(r.Errors)
	return out
}

// ThresholdBreach records one configured limit the results violated.
type ThresholdBreach struct {
	Metric string  `json:"metric"`
	Limit  float64 `json:"limit"`
	Actual float64 `json:"actual"`
}

type Metadata struct {
	Environment string `json:"environment"`
	Version     string `json:"version"`
	Notes       string `json:"notes,omitempty"`
}

type Execution struct {
	ID                string            `json:"id"`
	ConfigID          string            `json:"configId"`
	Type              TestType          `json:"type"`
	Mode              Mode              `json:"mode"`
	Status            Status            `json:"status"`
	StartedAt         time.Time         `json:"startedAt"`
	CompletedAt       *time.Time        `json:"completedAt,omitempty"`
	DurationSeconds   int64             `json:"duration"`
	Results           Results           `json:"results"`
	ThresholdBreaches []ThresholdBreach `json:"thresholdBreaches"`
	Metadata          Metadata          `json:"metadata"`
	Error             string            `json:"error,omitempty"`
}

func (e Execution) Clone() Execution {
	out := e
	out.Results = e.Results.Clone()
	out.ThresholdBreaches = slices.Clone(e.ThresholdBreaches)
	if e.CompletedAt != nil {
		at := *e.CompletedAt
		out.CompletedAt = &at
	}
	return out
}

func (e *Execution) Finish(status Status, at time.Time) {
	e.Status = status
	e.CompletedAt = &at
	e.DurationSeconds = int64(at.Sub(e.StartedAt) / time.Second)
}

// CheckThresholds lists the limits of t that r violates. Zero limits are disabled.
func CheckThresholds(t Thresholds, r Results) []ThresholdBreach {
	out := []ThresholdBreach{}
	if t.MaxResponseTimeMs > 0 && r.AverageResponseTime > t.MaxResponseTimeMs {
		out = append(out, ThresholdBreach{Metric: "response_time", Limit: t.MaxResponseTimeMs, Actual: r.AverageResponseTime})
	}
	if t.MaxErrorRate > 0 && r.ErrorRate > t.MaxErrorRate {
		out = append(out, ThresholdBreach{Metric: "error_rate", Limit: t.MaxErrorRate, Actual: r.ErrorRate})
	}
	if t.MinThroughput > 0 && r.Throughput < t.MinThroughput {
		out = append(out, ThresholdBreach{Metric: "throughput", Limit: t.MinThroughput, Actual: r.Throughput})
	}
	return out
}

type FindParams struct {
	ConfigID string `form:"configId"`
	Status   Status `form:"status"`
	Limit    int    `form:"limit"`
}

func (p FindParams) Matches(e Execution) bool {
	if p.ConfigID != "" && e.ConfigID != p.ConfigID {
		return false
	}
	if p.Status != "" && e.Status != p.Status {
		return false
	}
	return true
}
