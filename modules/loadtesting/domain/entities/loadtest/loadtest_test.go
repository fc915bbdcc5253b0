package loadtest_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labx-platform/testbed/modules/loadtesting/domain/entities/loadtest"
)

func TestSummarize(t *testing.T) {
	samples := make([]loadtest.Sample, 0, 100)
	for i := 100; i >= 1; i-- {
		s := loadtest.Sample{LatencyMs: float64(i)}
		switch {
		case i%10 == 0:
			s.ErrorType = loadtest.ErrServer
		case i == 5 || i == 15:
			s.ErrorType = loadtest.ErrTimeout
		}
		samples = append(samples, s)
	}

	r := loadtest.Summarize(samples, 10*time.Second, loadtest.SystemMetrics{})
	assert.Equal(t, 100, r.TotalRequests)
	assert.Equal(t, 12, r.FailedRequests)
	assert.Equal(t, 88, r.SuccessfulRequests)
	assert.InDelta(t, 50.5, r.AverageResponseTime, 1e-9)
	assert.InDelta(t, 1, r.MinResponseTime, 1e-9)
	assert.InDelta(t, 100, r.MaxResponseTime, 1e-9)
	assert.InDelta(t, 51, r.P50ResponseTime, 1e-9)
	assert.InDelta(t, 91, r.P90ResponseTime, 1e-9)
	assert.InDelta(t, 96, r.P95ResponseTime, 1e-9)
	assert.InDelta(t, 100, r.P99ResponseTime, 1e-9)
	assert.InDelta(t, 10, r.Throughput, 1e-9)
	assert.InDelta(t, 12, r.ErrorRate, 1e-9)

	require.Len(t, r.Errors, 2)
	assert.Equal(t, loadtest.ErrorSummary{Type: loadtest.ErrServer, Message: "Internal server error", Count: 10, Percentage: 10}, r.Errors[0])
	assert.Equal(t, loadtest.ErrorSummary{Type: loadtest.ErrTimeout, Message: "Request timeout", Count: 2, Percentage: 2}, r.Errors[1])
}

func TestSummarize_Empty(t *testing.T) {
	r := loadtest.Summarize(nil, time.Second, loadtest.SystemMetrics{})
	assert.Zero(t, r.TotalRequests)
	assert.Zero(t, r.ErrorRate)
	assert.Empty(t, r.Errors)
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "Connection failed", loadtest.ErrorMessage(loadtest.ErrConnection))
	assert.Equal(t, "Client error", loadtest.ErrorMessage(loadtest.ErrClient))
	assert.Equal(t, "Network error", loadtest.ErrorMessage(loadtest.ErrNetwork))
	assert.Equal(t, "Unknown error occurred", loadtest.ErrorMessage("dns"))
}

func TestCheckThresholds(t *testing.T) {
	th := loadtest.Thresholds{MaxResponseTimeMs: 2000, MaxErrorRate: 5, MinThroughput: 50}
	breaches := loadtest.CheckThresholds(th, loadtest.Results{AverageResponseTime: 2500, ErrorRate: 3, Throughput: 40})
	assert.Equal(t, []loadtest.ThresholdBreach{
		{Metric: "response_time", Limit: 2000, Actual: 2500},
		{Metric: "throughput", Limit: 50, Actual: 40},
	}, breaches)

	assert.Empty(t, loadtest.CheckThresholds(loadtest.Thresholds{}, loadtest.Results{AverageResponseTime: 1e6, ErrorRate: 100}))
}

func TestCompare(t *testing.T) {
	b := loadtest.Baseline{ExecutionID: "base", AverageResponseTime: 100, Throughput: 100, ErrorRate: 1}
	e := loadtest.Execution{ID: "next", Results: loadtest.Results{AverageResponseTime: 130, Throughput: 85, ErrorRate: 2.5}}

	c := loadtest.Compare(b, e)
	assert.Equal(t, "base", c.BaselineExecutionID)
	assert.InDelta(t, 30, c.ResponseTimeIncrease, 1e-9)
	assert.InDelta(t, 15, c.ThroughputDecrease, 1e-9)
	assert.InDelta(t, 1.5, c.ErrorRateIncrease, 1e-9)
	assert.Equal(t, []string{
		"Response time increased by 30.00% (threshold: 20%)",
		"Error rate increased by 1.50 points (threshold: 1)",
	}, c.Warnings)
	assert.True(t, c.Regressed())

	same := loadtest.Compare(b, loadtest.Execution{Results: loadtest.Results{AverageResponseTime: 100, Throughput: 100, ErrorRate: 1}})
	assert.False(t, same.Regressed())
}

func TestSimulateScalability(t *testing.T) {
	res := loadtest.SimulateScalability(loadtest.ScalabilityConfig{StartInstances: 10, MaxInstances: 30, StepSize: 10, LoadPerInstance: 50})
	require.Len(t, res.Steps, 3)
	assert.Equal(t, loadtest.ScalabilityStep{Instances: 10, ResponseTimeMs: 150, Throughput: 500, CPU: 50, Memory: 55, Network: 50}, res.Steps[0])
	assert.Equal(t, loadtest.ScalabilityStep{Instances: 30, ResponseTimeMs: 250, Throughput: 1500, CPU: 90, Memory: 85, Network: 80}, res.Steps[2])
	assert.Equal(t, 30, res.OptimalInstances)
	assert.InDelta(t, 1500, res.MaxThroughput, 1e-9)
	assert.Equal(t, []string{"CPU utilization high", "Memory usage high"}, res.Bottlenecks)
	assert.Len(t, res.Recommendations, 2)

	assert.Error(t, loadtest.ScalabilityConfig{StartInstances: 5, MaxInstances: 2, StepSize: 1, LoadPerInstance: 1}.Validate())
	assert.NoError(t, loadtest.ScalabilityConfig{StartInstances: 1, MaxInstances: 2, StepSize: 1, LoadPerInstance: 1}.Validate())
}

func TestCreateConfigDTO_Validate(t *testing.T) {
	valid := loadtest.CreateConfigDTO{
		Name:   "Smoke",
		Type:   loadtest.TypeVolume,
		Target: loadtest.Target{URL: "/testcases/api/test-cases"},
		Load:   loadtest.Load{VirtualUsers: 5, DurationSeconds: 10, ThinkTimeMs: 1000},
	}
	require.NoError(t, valid.Validate())
	cfg := valid.ToEntity("id-1", time.Now())
	assert.Equal(t, "GET", cfg.Target.Method)
	assert.Equal(t, loadtest.ModeSimulated, cfg.Target.Mode)
	assert.True(t, cfg.Enabled)

	live := valid
	live.Target.Mode = loadtest.ModeLive
	require.ErrorIs(t, live.Validate(), loadtest.ErrInvalidTarget)
	live.Target.URL = "http://localhost:3000/testcases/api/test-cases"
	require.NoError(t, live.Validate())

	zeroWeights := valid
	zeroWeights.Scenarios = []loadtest.Scenario{{Name: "a", Weight: 0}}
	require.ErrorIs(t, zeroWeights.Validate(), loadtest.ErrInvalidScenarios)

	noThink := valid
	noThink.Load.ThinkTimeMs = 0
	require.Error(t, noThink.Validate())

	endless := valid
	endless.Load.DurationSeconds = 1 << 40
	require.Error(t, endless.Validate())

	huge := valid
	huge.Load = loadtest.Load{VirtualUsers: 10000, DurationSeconds: 3600, ThinkTimeMs: 1}
	require.ErrorIs(t, huge.Validate(), loadtest.ErrLoadTooLarge)
	huge.Target = loadtest.Target{URL: "http://localhost:3000/health", Mode: loadtest.ModeLive}
	require.NoError(t, huge.Validate())
}

func TestLoad_SimulatedRequests(t *testing.T) {
	l := loadtest.Load{VirtualUsers: 10, DurationSeconds: 2, ThinkTimeMs: 1000}
	assert.Equal(t, int64(2), l.RequestsPerUser())
	assert.Equal(t, int64(20), l.SimulatedRequests())
	require.NoError(t, l.CheckSimulated())

	l = loadtest.Load{VirtualUsers: 10000, DurationSeconds: 1 << 40, ThinkTimeMs: 1}
	assert.Equal(t, int64(math.MaxInt64), l.SimulatedRequests())
	require.ErrorIs(t, l.CheckSimulated(), loadtest.ErrLoadTooLarge)

	l = loadtest.Load{VirtualUsers: 1000, DurationSeconds: 10, ThinkTimeMs: 1}
	assert.Equal(t, int64(loadtest.MaxSimulatedRequests), l.SimulatedRequests())
	require.NoError(t, l.CheckSimulated())
	l.VirtualUsers++
	require.ErrorIs(t, l.CheckSimulated(), loadtest.ErrLoadTooLarge)
}

func TestAggregator_MatchesSortedPercentiles(t *testing.T) {
	a := loadtest.NewAggregator()
	for _, v := range []float64{12.344, 3.5, 3.5, 7.001, 250.126, 3.5, 99.9, 12.346} {
		a.Add(loadtest.Sample{LatencyMs: v})
	}
	a.Add(loadtest.Sample{LatencyMs: 40, ErrorType: loadtest.ErrNetwork})
	require.Equal(t, 9, a.Len())

	r := a.Results(3*time.Second, loadtest.SystemMetrics{})
	assert.Equal(t, 9, r.TotalRequests)
	assert.Equal(t, 1, r.FailedRequests)
	assert.InDelta(t, 3.5, r.MinResponseTime, 1e-9)
	assert.InDelta(t, 250.13, r.MaxResponseTime, 1e-9)
	// sorted: 3.5 3.5 3.5 7.001 12.344 12.346 40 99.9 250.126
	assert.InDelta(t, 12.34, r.P50ResponseTime, 1e-9)
	assert.InDelta(t, 250.13, r.P90ResponseTime, 1e-9)
	assert.InDelta(t, 250.13, r.P99ResponseTime, 1e-9)
	assert.InDelta(t, 3, r.Throughput, 1e-9)
	assert.InDelta(t, 11.11, r.ErrorRate, 1e-9)
}

func TestExecuteDTO_MetadataDefaults(t *testing.T) {
	m := loadtest.ExecuteDTO{ConfigID: "x"}.Metadata()
	assert.Equal(t, "staging", m.Environment)
	assert.Equal(t, "latest", m.Version)
}

func TestTarget_ResolveURL(t *testing.T) {
	target := loadtest.Target{URL: "http://localhost:3000/testcases/api/test-cases"}
	u, err := target.ResolveURL("")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000/testcases/api/test-cases", u)
	u, err = target.ResolveURL("/health")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000/health", u)
}
