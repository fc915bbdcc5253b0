package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"github.com/labx-platform/testbed/pkg/eventbus"
)

type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

const (
	dbDegradedLatency = 100 * time.Millisecond
	checkTimeout      = 5 * time.Second
)

var componentStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "labx",
	Subsystem: "health",
	Name:      "component_up",
	Help:      "1 when a component is healthy or degraded, 0 when down.",
}, []string{"component"})

type Component struct {
	Status       Status         `json:"status"`
	ResponseTime string         `json:"responseTime,omitempty"`
	Error        string         `json:"error,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
}

type Report struct {
	Status    Status               `json:"status"`
	Timestamp string               `json:"timestamp"`
	Service   string               `json:"service"`
	Version   string               `json:"version"`
	Checks    map[string]Component `json:"checks,omitempty"`
}

// Probe reports whether a dependency answers.
type Probe func(ctx context.Context) error

func PoolProbe(pool *pgxpool.Pool) Probe {
	return pool.Ping
}

func RedisProbe(client *redis.Client) Probe {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

type Option func(*HealthService)

// WithDatabase enables the database check.
func WithDatabase(p Probe) Option {
	return func(s *HealthService) {
		s.db = p
	}
}

// WithRedis enables the redis check.
func WithRedis(p Probe) Option {
	return func(s *HealthService) {
		s.redis = p
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *HealthService) {
		s.now = now
	}
}

type HealthService struct {
	service string
	version string
	bus     eventbus.EventBus
	db      Probe
	redis   Probe
	now     func() time.Time
}

func NewHealthService(service, version string, bus eventbus.EventBus, opts ...Option) *HealthService {
	s := &HealthService{service: service, version: version, bus: bus, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Live is the static liveness payload.
func (s *HealthService) Live() Report {
	return Report{
		Status:    StatusHealthy,
		Timestamp: s.now().UTC().Format(time.RFC3339),
		Service:   s.service,
		Version:   s.version,
	}
}

// Check probes every dependency. The overall status is the worst component status.
func (s *HealthService) Check(ctx context.Context) Report {
	r := s.Live()
	r.Checks = map[string]Component{
		"database": s.probe(ctx, s.db, dbDegradedLatency),
		"redis":    s.probe(ctx, s.redis, 0),
		"eventbus": s.checkEventBus(ctx),
	}
	for name, c := range r.Checks {
		r.Status = worst(r.Status, c.Status)
		up := 1.0
		if c.Status == StatusDown {
			up = 0
		}
		componentStatus.WithLabelValues(name).Set(up)
	}
	return r
}

// probe runs p; a response slower than degradedAfter marks the component
// degraded. A nil probe means the dependency is not configured.
func (s *HealthService) probe(ctx context.Context, p Probe, degradedAfter time.Duration) Component {
	if p == nil {
		return Component{Status: StatusHealthy, Details: map[string]any{"enabled": false}}
	}
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := p(ctx)
	elapsed := time.Since(start)
	if err != nil {
		return Component{Status: StatusDown, ResponseTime: elapsed.String(), Error: fmt.Sprintf("ping failed: %v", err)}
	}
	status := StatusHealthy
	if degradedAfter > 0 && elapsed > degradedAfter {
		status = StatusDegraded
	}
	return Component{Status: status, ResponseTime: elapsed.String()}
}

func (s *HealthService) checkEventBus(ctx context.Context) Component {
	if s.bus == nil {
		return Component{Status: StatusDown, Error: "event bus not available"}
	}
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	c := Component{Status: StatusHealthy, Details: map[string]any{"subscribers": s.bus.SubscribersCount(eventbus.AllEvents)}}
	if cache := s.bus.Cache(); cache != nil {
		if _, err := cache.Recent(ctx, 1); err != nil {
			c.Status = StatusDegraded
			c.Error = fmt.Sprintf("event cache unavailable: %v", err)
		}
	}
	c.ResponseTime = time.Since(start).String()
	return c
}

func worst(a, b Status) Status {
	rank := map[Status]int{StatusHealthy: 0, StatusDegraded: 1, StatusDown: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
