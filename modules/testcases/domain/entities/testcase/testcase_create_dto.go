package testcase

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type MessageStepDTO struct {
	TimestampMs int64          `json:"timestamp" validate:"gte=0"`
	Direction   string         `json:"direction" validate:"required,oneof=UL DL ul dl"`
	Layer       string         `json:"layer" validate:"required"`
	Message     string         `json:"message" validate:"required"`
	Values      map[string]any `json:"values"`
}

type CreateDTO struct {
	TestCaseID         string           `json:"test_case_id"`
	Name               string           `json:"name" validate:"required"`
	Description        string           `json:"description"`
	Category           string           `json:"category" validate:"required"`
	Protocol           string           `json:"protocol"`
	ProtocolVersion    string           `json:"protocol_version"`
	TestType           string           `json:"test_type"`
	Complexity         string           `json:"complexity" validate:"omitempty,oneof=low medium high beginner intermediate advanced expert"`
	Priority           string           `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	DurationMs         int64            `json:"duration_ms" validate:"gte=0"`
	Tags               []string         `json:"tags"`
	MessageFlow        []MessageStepDTO `json:"message_flow" validate:"dive"`
	Layers             map[string]any   `json:"layers"`
	Prerequisites      map[string]any   `json:"prerequisites"`
	ExpectedResults    map[string]any   `json:"expected_results"`
	SuccessCriteria    map[string]any   `json:"success_criteria"`
	FailureScenarios   map[string]any   `json:"failure_scenarios"`
	PerformanceMetrics map[string]any   `json:"performance_metrics"`
	TestEnvironment    map[string]any   `json:"test_environment"`
	IsActive           *bool            `json:"is_active"`
}

func (d *CreateDTO) Normalize() {
	d.TestCaseID = strings.TrimSpace(d.TestCaseID)
	d.Name = strings.TrimSpace(d.Name)
	d.Category = strings.TrimSpace(d.Category)
	d.Complexity = strings.ToLower(strings.TrimSpace(d.Complexity))
	d.Priority = strings.ToLower(strings.TrimSpace(d.Priority))
}

func (d *CreateDTO) ToEntity(now time.Time) TestCase {
	flow := make([]MessageStep, 0, len(d.MessageFlow))
	for _, s := range d.MessageFlow {
		flow = append(flow, MessageStep{
			TimestampMs: s.TimestampMs,
			Direction:   Direction(strings.ToUpper(s.Direction)),
			Layer:       s.Layer,
			Message:     s.Message,
			Values:      s.Values,
		})
	}
	active := true
	if d.IsActive != nil {
		active = *d.IsActive
	}
	complexity := Complexity(d.Complexity)
	if complexity == "" {
		complexity = ComplexityMedium
	}
	priority := Priority(d.Priority)
	if priority == "" {
		priority = PriorityMedium
	}
	t := TestCase{
		ID:                 uuid.New(),
		TestCaseID:         d.TestCaseID,
		Name:               d.Name,
		Description:        d.Description,
		Category:           d.Category,
		Protocol:           d.Protocol,
		ProtocolVersion:    d.ProtocolVersion,
		TestType:           d.TestType,
		Complexity:         complexity,
		Priority:           priority,
		DurationMs:         d.DurationMs,
		Tags:               d.Tags,
		MessageFlow:        flow,
		Layers:             d.Layers,
		Prerequisites:      d.Prerequisites,
		ExpectedResults:    d.ExpectedResults,
		SuccessCriteria:    d.SuccessCriteria,
		FailureScenarios:   d.FailureScenarios,
		PerformanceMetrics: d.PerformanceMetrics,
		TestEnvironment:    d.TestEnvironment,
		IsActive:           active,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if t.TestCaseID == "" {
		t.TestCaseID = "TC-" + strings.ToUpper(t.ID.String()[:8])
	}
	t.Normalize()
	return t
}
