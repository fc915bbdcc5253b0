package execution

import (
	"slices"
	"strings"
	"time"
)

type Mode string

const (
	ModeSimulation Mode = "simulation"
	ModeRealtime   Mode = "realtime"
	ModeBatch      Mode = "batch"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Finished reports whether no further updates will happen.
func (s Status) Finished() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

type Config struct {
	TestCaseID       string  `json:"testCaseId" validate:"required"`
	UserID           string  `json:"userId"`
	ExecutionMode    Mode    `json:"executionMode" validate:"omitempty,oneof=simulation realtime batch"`
	TimeAcceleration float64 `json:"timeAcceleration" validate:"gte=0"`
	LogLevel         string  `json:"logLevel" validate:"omitempty,oneof=basic detailed verbose"`
	CaptureMode      string  `json:"captureMode" validate:"omitempty,oneof=messages full performance"`
}

func (c *Config) Normalize() {
	c.TestCaseID = strings.TrimSpace(c.TestCaseID)
	c.ExecutionMode = Mode(strings.ToLower(strings.TrimSpace(string(c.ExecutionMode))))
	if c.ExecutionMode == "" {
		c.ExecutionMode = ModeSimulation
	}
	if c.TimeAcceleration == 0 {
		c.TimeAcceleration = 1
	}
	if c.LogLevel == "" {
		c.LogLevel = "basic"
	}
	if c.CaptureMode == "" {
		c.CaptureMode = "messages"
	}
}

type Performance struct {
	LatencyMs        int64 `json:"latency"`
	ProcessingTimeMs int64 `json:"processingTime"`
	MemoryUsage      int   `json:"memoryUsage"`
	CPUUsage         int   `json:"cpuUsage"`
}

type Validation struct {
	IsValid         bool     `json:"isValid"`
	Errors          []string `json:"errors"`
	Warnings        []string `json:"warnings"`
	ComplianceScore int      `json:"complianceScore"`
}

// ExecutedMessage is one message of a test case's flow as it was processed.
type ExecutedMessage struct {
	ID          string         `json:"id"`
	Sequence    int            `json:"sequence"`
	Timestamp   time.Time      `json:"timestamp"`
	OffsetMs    int64          `json:"timestampMs"`
	Direction   string         `json:"direction"`
	Layer       string         `json:"layer"`
	Protocol    string         `json:"protocol"`
	MessageType string         `json:"messageType"`
	MessageName string         `json:"messageName"`
	Values      map[string]any `json:"values,omitempty"`
	Performance Performance    `json:"performanceData"`
	Validation  Validation     `json:"validationResult"`
}

type LayerPerformance struct {
	MemoryUsage    int64 `json:"memoryUsage"`
	CPUUsage       int64 `json:"cpuUsage"`
	ProcessingTime int64 `json:"processingTime"`
}

type LayerStatistics struct {
	Layer              string           `json:"layer"`
	TotalMessages      int              `json:"totalMessages"`
	SuccessfulMessages int              `json:"successfulMessages"`
	FailedMessages     int              `json:"failedMessages"`
	AverageLatency     int64            `json:"averageLatency"`
	MaxLatency         int64            `json:"maxLatency"`
	MinLatency         int64            `json:"minLatency"`
	Throughput         float64          `json:"throughput"`
	ErrorRate          float64          `json:"errorRate"`
	SuccessRate        float64          `json:"successRate"`
	MessageTypes       map[string]int   `json:"messageTypes"`
	PerformanceMetrics LayerPerformance `json:"performanceMetrics"`
}

type Metrics struct {
	TotalMessages          int     `json:"totalMessages"`
	SuccessfulMessages     int     `json:"successfulMessages"`
	FailedMessages         int     `json:"failedMessages"`
	AverageLatency         int64   `json:"averageLatency"`
	MaxLatency             int64   `json:"maxLatency"`
	MinLatency             int64   `json:"minLatency"`
	Throughput             float64 `json:"throughput"`
	ErrorRate              float64 `json:"errorRate"`
	SuccessRate            float64 `json:"successRate"`
	OverallComplianceScore int     `json:"overallComplianceScore"`
}

type TrendPoint struct {
	Timestamp   time.Time `json:"timestamp"`
	LatencyMs   int64     `json:"latency"`
	Throughput  float64   `json:"throughput"`
	SuccessRate float64   `json:"successRate"`
	ErrorRate   float64   `json:"errorRate"`
}

// MaxTrendPoints bounds Execution.Trends.
const MaxTrendPoints = 100

type Execution struct {
	ID              string            `json:"executionId"`
	TestCaseID      string            `json:"testCaseId"`
	TestCaseName    string            `json:"testCaseName"`
	Config          Config            `json:"config"`
	Status          Status            `json:"status"`
	StartedAt       time.Time         `json:"startTime"`
	EndedAt         *time.Time        `json:"endTime,omitempty"`
	DurationMs      int64             `json:"duration"`
	Progress        int               `json:"progress"`
	CurrentStep     string            `json:"currentStep"`
	TotalSteps      int               `json:"totalSteps"`
	CompletedSteps  int               `json:"completedSteps"`
	Messages        []ExecutedMessage `json:"messages"`
	LayerStatistics []LayerStatistics `json:"layerStatistics"`
	Metrics         Metrics           `json:"performanceMetrics"`
	Trends          []TrendPoint      `json:"performanceTrends"`
	Logs            []string          `json:"logs"`
	Errors          []string          `json:"errors"`
	Warnings        []string          `json:"warnings"`
}

// Clone copies the slices so the result can leave the owning goroutine.
func (e Execution) Clone() Execution {
	out := e
	out.Messages = slices.Clone(e.Messages)
	out.LayerStatistics = slices.Clone(e.LayerStatistics)
	out.Trends = slices.Clone(e.Trends)
	out.Logs = slices.Clone(e.Logs)
	out.Errors = slices.Clone(e.Errors)
	out.Warnings = slices.Clone(e.Warnings)
	if e.EndedAt != nil {
		t := *e.EndedAt
		out.EndedAt = &t
	}
	return out
}

// RecentMessages returns at most n of the latest messages, oldest first.
func (e Execution) RecentMessages(n int) []ExecutedMessage {
	if n <= 0 || len(e.Messages) <= n {
		return slices.Clone(e.Messages)
	}
	return slices.Clone(e.Messages[len(e.Messages)-n:])
}

// Finish moves the execution into a terminal status.
func (e *Execution) Finish(status Status, at time.Time) {
	e.Status = status
	e.EndedAt = &at
	e.DurationMs = at.Sub(e.StartedAt).Milliseconds()
}
