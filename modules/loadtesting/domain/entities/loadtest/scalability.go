package loadtest

import (
	"math"
	"slices"

	"github.com/labx-platform/testbed/pkg/serrors"
)

// Resource usage above this percentage is reported as a bottleneck.
const bottleneckLimit = 80.0

type ScalabilityConfig struct {
	StartInstances  int     `json:"startInstances" validate:"gte=1"`
	MaxInstances    int     `json:"maxInstances" validate:"gtefield=StartInstances,lte=1000"`
	StepSize        int     `json:"stepSize" validate:"gte=1"`
	LoadPerInstance float64 `json:"loadPerInstance" validate:"gt=0"`
}

func (c ScalabilityConfig) Validate() error {
	if verrs := serrors.ValidateStruct(c); verrs != nil {
		return verrs
	}
	return nil
}

type ScalabilityStep struct {
	Instances      int     `json:"instances"`
	ResponseTimeMs float64 `json:"responseTime"`
	Throughput     float64 `json:"throughput"`
	CPU            float64 `json:"cpu"`
	Memory         float64 `json:"memory"`
	Network        float64 `json:"network"`
}

type ScalabilityResult struct {
	Steps            []ScalabilityStep `json:"steps"`
	OptimalInstances int               `json:"optimalInstances"`
	MaxThroughput    float64           `json:"maxThroughput"`
	Bottlenecks      []string          `json:"bottlenecks"`
	Recommendations  []string          `json:"recommendations"`
}

var bottlenecks = []struct {
	name, recommendation string
	usage                func(ScalabilityStep) float64
}{
	{"CPU utilization high", "Consider CPU optimization or horizontal scaling", func(s ScalabilityStep) float64 { return s.CPU }},
	{"Memory usage high", "Optimize memory usage or increase instance memory", func(s ScalabilityStep) float64 { return s.Memory }},
	{"Network bandwidth saturated", "Optimize network usage or increase bandwidth", func(s ScalabilityStep) float64 { return s.Network }},
}

// SimulateScalability sweeps the instance count from start to max. Each
// resource that exceeds 80% at any step is reported once.
func SimulateScalability(cfg ScalabilityConfig) ScalabilityResult {
	res := ScalabilityResult{Steps: []ScalabilityStep{}, Bottlenecks: []string{}, Recommendations: []string{}}
	if cfg.StepSize <= 0 {
		return res
	}
	res.MaxThroughput = math.Inf(-1)
	for n := cfg.StartInstances; n <= cfg.MaxInstances; n += cfg.StepSize {
		f := float64(n)
		step := ScalabilityStep{
			Instances:      n,
			ResponseTimeMs: 100 + 5*f,
			Throughput:     Round2(f * cfg.LoadPerInstance),
			CPU:            math.Min(30+2*f, 90),
			Memory:         math.Min(40+1.5*f, 85),
			Network:        math.Min(20+3*f, 80),
		}
		res.Steps = append(res.Steps, step)
		if step.Throughput > res.MaxThroughput {
			res.MaxThroughput = step.Throughput
			res.OptimalInstances = n
		}
		for _, b := range bottlenecks {
			if b.usage(step) > bottleneckLimit && !slices.Contains(res.Bottlenecks, b.name) {
				res.Bottlenecks = append(res.Bottlenecks, b.name)
				res.Recommendations = append(res.Recommendations, b.recommendation)
			}
		}
	}
	if len(res.Steps) == 0 {
		res.MaxThroughput = 0
	}
	return res
}
