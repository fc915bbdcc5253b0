package loadtest

import (
	"fmt"
	"time"
)

// Warning limits applied when comparing against a baseline.
const (
	ResponseTimeIncreaseLimit = 20.0
	ThroughputDecreaseLimit   = 20.0
	ErrorRateIncreaseLimit    = 1.0
)

// Baseline freezes the results of one completed execution as the reference for its config.
type Baseline struct {
	ConfigID            string    `json:"configId"`
	ExecutionID         string    `json:"executionId"`
	AverageResponseTime float64   `json:"averageResponseTime"`
	P95ResponseTime     float64   `json:"p95ResponseTime"`
	P99ResponseTime     float64   `json:"p99ResponseTime"`
	Throughput          float64   `json:"throughput"`
	ErrorRate           float64   `json:"errorRate"`
	SetAt               time.Time `json:"setAt"`
}

func NewBaseline(e Execution, at time.Time) Baseline {
	return Baseline{
		ConfigID:            e.ConfigID,
		ExecutionID:         e.ID,
		AverageResponseTime: e.Results.AverageResponseTime,
		P95ResponseTime:     e.Results.P95ResponseTime,
		P99ResponseTime:     e.Results.P99ResponseTime,
		Throughput:          e.Results.Throughput,
		ErrorRate:           e.Results.ErrorRate,
		SetAt:               at,
	}
}

type Comparison struct {
	ExecutionID          string   `json:"executionId"`
	BaselineExecutionID  string   `json:"baselineExecutionId"`
	ResponseTimeIncrease float64  `json:"responseTimeIncrease"`
	ThroughputDecrease   float64  `json:"throughputDecrease"`
	ErrorRateIncrease    float64  `json:"errorRateIncrease"`
	Warnings             []string `json:"warnings"`
}

// Regressed reports whether any warning limit was exceeded.
func (c Comparison) Regressed() bool {
	return len(c.Warnings) > 0
}

// Compare measures e against b. Increases and decreases are percentages of
// the baseline value; the error rate difference is in percentage points.
func Compare(b Baseline, e Execution) Comparison {
	c := Comparison{
		ExecutionID:         e.ID,
		BaselineExecutionID: b.ExecutionID,
		ErrorRateIncrease:   Round2(e.Results.ErrorRate - b.ErrorRate),
		Warnings:            []string{},
	}
	if b.AverageResponseTime > 0 {
		c.ResponseTimeIncrease = Round2((e.Results.AverageResponseTime - b.AverageResponseTime) / b.AverageResponseTime * 100)
	}
	if b.Throughput > 0 {
		c.ThroughputDecrease = Round2((b.Throughput - e.Results.Throughput) / b.Throughput * 100)
	}

	if c.ResponseTimeIncrease > ResponseTimeIncreaseLimit {
		c.Warnings = append(c.Warnings, fmt.Sprintf("Response time increased by %.2f%% (threshold: %.0f%%)", c.ResponseTimeIncrease, ResponseTimeIncreaseLimit))
	}
	if c.ThroughputDecrease > ThroughputDecreaseLimit {
		c.Warnings = append(c.Warnings, fmt.Sprintf("Throughput decreased by %.2f%% (threshold: %.0f%%)", c.ThroughputDecrease, ThroughputDecreaseLimit))
	}
	if c.ErrorRateIncrease > ErrorRateIncreaseLimit {
		c.Warnings = append(c.Warnings, fmt.Sprintf("Error rate increased by %.2f points (threshold: %.0f)", c.ErrorRateIncrease, ErrorRateIncreaseLimit))
	}
	return c
}
