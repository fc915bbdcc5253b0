package loadtest

import (
	"fmt"
	"math"
	"net/url"
	"slices"
	"time"
)

type TestType string

const (
	TypeStress      TestType = "stress"
	TypeSpike       TestType = "spike"
	TypeVolume      TestType = "volume"
	TypeEndurance   TestType = "endurance"
	TypeScalability TestType = "scalability"
)

// Mode selects whether requests are simulated in memory or sent to the target.
type Mode string

const (
	ModeSimulated Mode = "simulated"
	ModeLive      Mode = "live"
)

type Target struct {
	URL       string            `json:"url" yaml:"url" validate:"required"`
	Method    string            `json:"method" yaml:"method" validate:"omitempty,oneof=GET POST PUT DELETE PATCH"`
	Headers   map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body      any               `json:"body,omitempty" yaml:"body,omitempty"`
	TimeoutMs int               `json:"timeout" yaml:"timeout_ms" validate:"gte=0"`
	Mode      Mode              `json:"mode" yaml:"mode" validate:"omitempty,oneof=simulated live"`
}

// Live reports whether requests go over the network.
func (t Target) Live() bool {
	return t.Mode == ModeLive
}

// Timeout is the per-request timeout, 5s when unset.
func (t Target) Timeout() time.Duration {
	if t.TimeoutMs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(t.TimeoutMs) * time.Millisecond
}

// MaxSimulatedRequests caps VirtualUsers * RequestsPerUser for simulated runs.
const MaxSimulatedRequests = 10_000_000

type Load struct {
	VirtualUsers    int `json:"virtualUsers" yaml:"virtual_users" validate:"gte=1,lte=10000"`
	RampUpSeconds   int `json:"rampUpTime" yaml:"ramp_up_seconds" validate:"gte=0,lte=86400"`
	DurationSeconds int `json:"duration" yaml:"duration_seconds" validate:"gte=1,lte=86400"`
	RampDownSeconds int `json:"rampDownTime" yaml:"ramp_down_seconds" validate:"gte=0,lte=86400"`
	ThinkTimeMs     int `json:"thinkTime" yaml:"think_time_ms" validate:"gte=1,lte=3600000"`
}

// RequestsPerUser is the number of requests one VU issues in a simulated run.
func (l Load) RequestsPerUser() int64 {
	if l.ThinkTimeMs <= 0 || l.DurationSeconds <= 0 {
		return 0
	}
	return int64(l.DurationSeconds) * 1000 / int64(l.ThinkTimeMs)
}

// SimulatedRequests is the request count of a simulated run. Inputs beyond
// the validated ranges saturate at math.MaxInt64.
func (l Load) SimulatedRequests() int64 {
	per := l.RequestsPerUser()
	if l.VirtualUsers <= 0 || per <= 0 {
		return 0
	}
	if per > math.MaxInt64/int64(l.VirtualUsers) {
		return math.MaxInt64
	}
	return int64(l.VirtualUsers) * per
}

// CheckSimulated reports ErrLoadTooLarge when a simulated run would exceed
// MaxSimulatedRequests.
func (l Load) CheckSimulated() error {
	if n := l.SimulatedRequests(); n > MaxSimulatedRequests {
		return ErrLoadTooLarge.WithDetails(fmt.Sprintf("%d requests requested, limit %d", n, MaxSimulatedRequests))
	}
	return nil
}

type Thresholds struct {
	MaxResponseTimeMs float64 `json:"responseTime" yaml:"max_response_time_ms" validate:"gte=0"`
	MaxErrorRate      float64 `json:"errorRate" yaml:"max_error_rate" validate:"gte=0,lte=100"`
	MinThroughput     float64 `json:"throughput" yaml:"min_throughput" validate:"gte=0"`
}

type Step struct {
	Method     string            `json:"action" yaml:"method"`
	URL        string            `json:"url,omitempty" yaml:"url,omitempty"`
	Headers    map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body       any               `json:"body,omitempty" yaml:"body,omitempty"`
	WaitTimeMs int               `json:"waitTime,omitempty" yaml:"wait_time_ms,omitempty"`
}

type Scenario struct {
	Name   string `json:"name" yaml:"name" validate:"required"`
	Weight int    `json:"weight" yaml:"weight" validate:"gte=0,lte=100"`
	Steps  []Step `json:"steps" yaml:"steps"`
}

type Config struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Type        TestType   `json:"type"`
	Target      Target     `json:"target"`
	Load        Load       `json:"load"`
	Thresholds  Thresholds `json:"thresholds"`
	Scenarios   []Scenario `json:"scenarios"`
	Enabled     bool       `json:"enabled"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (c Config) Clone() Config {
	out := c
	out.Scenarios = slices.Clone(c.Scenarios)
	return out
}

// ResolveURL resolves ref against the target URL. An empty ref yields the target itself.
func (t Target) ResolveURL(ref string) (string, error) {
	base, err := url.Parse(t.URL)
	if err != nil {
		return "", err
	}
	if ref == "" {
		return base.String(), nil
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(r).String(), nil
}
