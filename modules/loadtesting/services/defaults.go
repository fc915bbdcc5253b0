package services

import (
	"time"

	"github.com/labx-platform/testbed/modules/loadtesting/domain/entities/loadtest"
)

const (
	StressConfigID = "api_stress_test"
	SpikeConfigID  = "spike_test"
)

// DefaultConfigs are the load test configurations every service starts with.
func DefaultConfigs(now time.Time) []loadtest.Config {
	return []loadtest.Config{
		{
			ID:          StressConfigID,
			Name:        "API Stress Test",
			Description: "Stress test for main API endpoints",
			Type:        loadtest.TypeStress,
			Target: loadtest.Target{
				URL:       "/testcases/api/test-cases",
				Method:    "GET",
				Headers:   map[string]string{"Content-Type": "application/json"},
				TimeoutMs: 5000,
				Mode:      loadtest.ModeSimulated,
			},
			Load: loadtest.Load{VirtualUsers: 100, RampUpSeconds: 60, DurationSeconds: 300, RampDownSeconds: 30, ThinkTimeMs: 1000},
			Thresholds: loadtest.Thresholds{
				MaxResponseTimeMs: 2000,
				MaxErrorRate:      5,
				MinThroughput:     50,
			},
			Scenarios: []loadtest.Scenario{
				{
					Name:   "Browse Test Cases",
					Weight: 60,
					Steps: []loadtest.Step{
						{Method: "GET", URL: "/testcases/api/test-cases", WaitTimeMs: 1000},
						{Method: "GET", URL: "/testcases/api/test-cases/TC_001", WaitTimeMs: 2000},
					},
				},
				{
					Name:   "Create Test Case",
					Weight: 40,
					Steps: []loadtest.Step{
						{Method: "POST", URL: "/testcases/api/test-cases", Body: map[string]any{"name": "Test Case"}, WaitTimeMs: 3000},
					},
				},
			},
			Enabled:   true,
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:          SpikeConfigID,
			Name:        "Spike Test",
			Description: "Test system behavior under sudden load spikes",
			Type:        loadtest.TypeSpike,
			Target: loadtest.Target{
				URL:       "/execution/api/executions",
				Method:    "POST",
				Headers:   map[string]string{"Content-Type": "application/json"},
				TimeoutMs: 10000,
				Mode:      loadtest.ModeSimulated,
			},
			Load: loadtest.Load{VirtualUsers: 200, RampUpSeconds: 10, DurationSeconds: 120, RampDownSeconds: 10, ThinkTimeMs: 500},
			Thresholds: loadtest.Thresholds{
				MaxResponseTimeMs: 5000,
				MaxErrorRate:      10,
				MinThroughput:     100,
			},
			Scenarios: []loadtest.Scenario{
				{
					Name:   "Run Simulation",
					Weight: 100,
					Steps: []loadtest.Step{
						{Method: "POST", URL: "/execution/api/executions", Body: map[string]any{"testCaseId": "TC_001"}, WaitTimeMs: 2000},
					},
				},
			},
			Enabled:   true,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}
