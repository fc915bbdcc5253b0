package testcase

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Direction string

const (
	DirectionUL Direction = "UL"
	DirectionDL Direction = "DL"
)

type Complexity string

const (
	ComplexityLow          Complexity = "low"
	ComplexityMedium       Complexity = "medium"
	ComplexityHigh         Complexity = "high"
	ComplexityBeginner     Complexity = "beginner"
	ComplexityIntermediate Complexity = "intermediate"
	ComplexityAdvanced     Complexity = "advanced"
	ComplexityExpert       Complexity = "expert"
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Rank orders priorities for sorting; unknown values sort first.
func (p Priority) Rank() int {
	switch Priority(strings.ToLower(string(p))) {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityCritical:
		return 4
	default:
		return 0
	}
}

// MessageStep is one protocol message in a test case's expected flow.
type MessageStep struct {
	TimestampMs int64          `json:"timestamp"`
	Direction   Direction      `json:"direction"`
	Layer       string         `json:"layer"`
	Message     string         `json:"message"`
	Values      map[string]any `json:"values,omitempty"`
}

type TestCase struct {
	ID                 uuid.UUID      `json:"id"`
	TestCaseID         string         `json:"test_case_id"`
	Name               string         `json:"name"`
	Description        string         `json:"description"`
	Category           string         `json:"category"`
	Protocol           string         `json:"protocol"`
	ProtocolVersion    string         `json:"protocol_version"`
	TestType           string         `json:"test_type"`
	Complexity         Complexity     `json:"complexity"`
	Priority           Priority       `json:"priority"`
	DurationMs         int64          `json:"duration_ms"`
	Tags               []string       `json:"tags"`
	MessageFlow        []MessageStep  `json:"message_flow"`
	Layers             map[string]any `json:"layers,omitempty"`
	Prerequisites      map[string]any `json:"prerequisites"`
	ExpectedResults    map[string]any `json:"expected_results"`
	SuccessCriteria    map[string]any `json:"success_criteria"`
	FailureScenarios   map[string]any `json:"failure_scenarios"`
	PerformanceMetrics map[string]any `json:"performance_metrics"`
	TestEnvironment    map[string]any `json:"test_environment"`
	IsActive           bool           `json:"is_active"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// Key returns the human identifier when present, the uuid otherwise.
func (t TestCase) Key() string {
	if t.TestCaseID != "" {
		return t.TestCaseID
	}
	return t.ID.String()
}

func (t TestCase) HasAnyTag(tags []string) bool {
	if len(tags) == 0 {
		return true
	}
	for _, want := range tags {
		for _, have := range t.Tags {
			if strings.EqualFold(strings.TrimSpace(want), have) {
				return true
			}
		}
	}
	return false
}

// Normalize trims text fields and fills nil collections so JSON never carries null arrays.
func (t *TestCase) Normalize() {
	t.TestCaseID = strings.TrimSpace(t.TestCaseID)
	t.Name = strings.TrimSpace(t.Name)
	t.Category = strings.TrimSpace(t.Category)
	t.Protocol = strings.TrimSpace(t.Protocol)
	t.TestType = strings.TrimSpace(t.TestType)
	t.Complexity = Complexity(strings.ToLower(strings.TrimSpace(string(t.Complexity))))
	t.Priority = Priority(strings.ToLower(strings.TrimSpace(string(t.Priority))))
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if t.MessageFlow == nil {
		t.MessageFlow = []MessageStep{}
	}
	for i := range t.MessageFlow {
		t.MessageFlow[i].Direction = Direction(strings.ToUpper(strings.TrimSpace(string(t.MessageFlow[i].Direction))))
	}
	if t.Prerequisites == nil {
		t.Prerequisites = map[string]any{}
	}
	if t.ExpectedResults == nil {
		t.ExpectedResults = map[string]any{}
	}
	if t.SuccessCriteria == nil {
		t.SuccessCriteria = map[string]any{}
	}
	if t.FailureScenarios == nil {
		t.FailureScenarios = map[string]any{}
	}
	if t.PerformanceMetrics == nil {
		t.PerformanceMetrics = map[string]any{}
	}
	if t.TestEnvironment == nil {
		t.TestEnvironment = map[string]any{}
	}
}
