package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/labx-platform/testbed/modules/loadtesting/domain/entities/loadtest"
)

// LiveRunner drives real HTTP traffic against a target. Every VU is paced by
// its own token bucket at 1000/think requests per second.
type LiveRunner struct {
	client *http.Client
	logger *logrus.Logger
	draw   func() float64
}

// NewLiveRunner builds a runner. draw picks weighted scenarios and must be
// safe for concurrent use.
func NewLiveRunner(client *http.Client, logger *logrus.Logger, draw func() float64) *LiveRunner {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LiveRunner{client: client, logger: logger, draw: draw}
}

type sampleSink struct {
	mu  sync.Mutex
	agg *loadtest.Aggregator
}

func (s *sampleSink) add(v loadtest.Sample) {
	s.mu.Lock()
	s.agg.Add(v)
	s.mu.Unlock()
}

// Run blocks until the configured duration elapses or ctx is done. When ctx
// ends early the partial results are returned with ctx.Err().
func (l *LiveRunner) Run(ctx context.Context, cfg loadtest.Config) (loadtest.Results, error) {
	runCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Load.DurationSeconds)*time.Second)
	defer cancel()

	sink := &sampleSink{agg: loadtest.NewAggregator()}
	every := rate.Limit(1000 / float64(max(cfg.Load.ThinkTimeMs, 1)))
	rampUp := time.Duration(cfg.Load.RampUpSeconds) * time.Second
	users := max(cfg.Load.VirtualUsers, 1)

	log := l.logger.WithField("component", "load-runner").WithField("config_id", cfg.ID)
	log.WithField("virtual_users", users).Info("live load test started")

	start := time.Now()
	g, gctx := errgroup.WithContext(runCtx)
	for i := 0; i < users; i++ {
		delay := rampUp * time.Duration(i) / time.Duration(users)
		g.Go(func() error {
			l.user(gctx, cfg, delay, rate.NewLimiter(every, 1), sink)
			return nil
		})
	}
	_ = g.Wait()
	elapsed := time.Since(start)

	sink.mu.Lock()
	res := sink.agg.Results(elapsed, loadtest.SystemMetrics{CPU: []float64{}, Memory: []float64{}, Disk: []float64{}, Network: []float64{}})
	sink.mu.Unlock()
	log.WithField("requests", res.TotalRequests).Info("live load test finished")
	return res, ctx.Err()
}

func (l *LiveRunner) user(ctx context.Context, cfg loadtest.Config, delay time.Duration, lim *rate.Limiter, sink *sampleSink) {
	if !sleepCtx(ctx, delay) {
		return
	}
	for {
		for _, st := range l.pick(cfg.Scenarios) {
			if err := lim.Wait(ctx); err != nil {
				return
			}
			s, ok := l.do(ctx, cfg.Target, st)
			if !ok {
				return
			}
			sink.add(s)
			if !sleepCtx(ctx, time.Duration(st.WaitTimeMs)*time.Millisecond) {
				return
			}
		}
	}
}

// pick returns the steps of a weighted random scenario, or a single request
// to the target when no scenario has steps.
func (l *LiveRunner) pick(scenarios []loadtest.Scenario) []loadtest.Step {
	total := 0
	for _, s := range scenarios {
		if len(s.Steps) > 0 {
			total += s.Weight
		}
	}
	if total <= 0 {
		return []loadtest.Step{{}}
	}
	x := l.draw() * float64(total)
	acc := 0.0
	var last []loadtest.Step
	for _, s := range scenarios {
		if len(s.Steps) == 0 || s.Weight <= 0 {
			continue
		}
		acc += float64(s.Weight)
		last = s.Steps
		if x < acc {
			return s.Steps
		}
	}
	return last
}

// do performs one request. It reports false when ctx ended mid request; that
// request is not counted.
func (l *LiveRunner) do(ctx context.Context, target loadtest.Target, st loadtest.Step) (loadtest.Sample, bool) {
	method := st.Method
	if method == "" {
		method = target.Method
	}
	if method == "" {
		method = http.MethodGet
	}
	u, err := target.ResolveURL(st.URL)
	if err != nil {
		return loadtest.Sample{ErrorType: loadtest.ErrClient}, true
	}
	body := st.Body
	if body == nil && st.URL == "" {
		body = target.Body
	}
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return loadtest.Sample{ErrorType: loadtest.ErrClient}, true
		}
		reader = bytes.NewReader(raw)
	}

	reqCtx, cancel := context.WithTimeout(ctx, target.Timeout())
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, method, u, reader)
	if err != nil {
		return loadtest.Sample{ErrorType: loadtest.ErrClient}, true
	}
	for k, v := range target.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range st.Headers {
		req.Header.Set(k, v)
	}
	if reader != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := l.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return loadtest.Sample{}, false
		}
		return loadtest.Sample{LatencyMs: msSince(start), ErrorType: classify(err)}, true
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	s := loadtest.Sample{LatencyMs: msSince(start)}
	switch {
	case resp.StatusCode >= 500:
		s.ErrorType = loadtest.ErrServer
	case resp.StatusCode >= 400:
		s.ErrorType = loadtest.ErrClient
	}
	return s, true
}

func classify(err error) string {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return loadtest.ErrTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return loadtest.ErrConnection
	}
	return loadtest.ErrNetwork
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
