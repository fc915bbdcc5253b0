package services

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/labx-platform/testbed/modules/loadtesting/domain/entities/loadtest"
	"github.com/labx-platform/testbed/pkg/eventbus"
)

var executionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "labx",
	Subsystem: "loadtesting",
	Name:      "executions_total",
	Help:      "Finished load test executions by test type and terminal status.",
}, []string{"type", "status"})

type Option func(*LoadTestService)

func WithRand(r *rand.Rand) Option {
	return func(s *LoadTestService) {
		s.rnd = r
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *LoadTestService) {
		s.now = now
	}
}

func WithLogger(l *logrus.Logger) Option {
	return func(s *LoadTestService) {
		s.logger = l
	}
}

// WithHTTPClient sets the client used by live runs.
func WithHTTPClient(c *http.Client) Option {
	return func(s *LoadTestService) {
		s.client = c
	}
}

type run struct {
	e      loadtest.Execution
	cfg    loadtest.Config
	cancel context.CancelFunc
	done   chan struct{}
}

// LoadTestService stores load test configurations and runs them either as an
// in-memory simulation or as live HTTP traffic.
type LoadTestService struct {
	bus    eventbus.EventBus
	logger *logrus.Logger
	client *http.Client
	live   *LiveRunner
	now    func() time.Time

	randMu sync.Mutex
	rnd    *rand.Rand

	mu        sync.RWMutex
	configs   map[string]loadtest.Config
	baselines map[string]loadtest.Baseline
	runs      map[string]*run
	order     []string

	wg sync.WaitGroup
}

func NewLoadTestService(bus eventbus.EventBus, opts ...Option) *LoadTestService {
	s := &LoadTestService{
		bus:       bus,
		logger:    logrus.StandardLogger(),
		now:       time.Now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		configs:   map[string]loadtest.Config{},
		baselines: map[string]loadtest.Baseline{},
		runs:      map[string]*run{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.live = NewLiveRunner(s.client, s.logger, s.float)
	return s
}

// Initialize seeds the default configurations once.
func (s *LoadTestService) Initialize(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.configs) > 0 {
		return nil
	}
	for _, c := range DefaultConfigs(s.now()) {
		s.configs[c.ID] = c
	}
	return nil
}

func (s *LoadTestService) CreateConfig(_ context.Context, dto loadtest.CreateConfigDTO) (loadtest.Config, error) {
	if err := dto.Validate(); err != nil {
		return loadtest.Config{}, err
	}
	cfg := dto.ToEntity(uuid.NewString(), s.now())
	s.mu.Lock()
	s.configs[cfg.ID] = cfg
	s.mu.Unlock()
	return cfg.Clone(), nil
}

// Configs lists configurations ordered by name.
func (s *LoadTestService) Configs(_ context.Context) []loadtest.Config {
	s.mu.RLock()
	out := make([]loadtest.Config, 0, len(s.configs))
	for _, c := range s.configs {
		out = append(out, c.Clone())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *LoadTestService) Config(_ context.Context, id string) (loadtest.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.configs[id]
	if !ok {
		return loadtest.Config{}, loadtest.ErrConfigNotFound
	}
	return c.Clone(), nil
}

// DeleteConfig removes a configuration and its baseline. Executions keep their snapshot.
func (s *LoadTestService) DeleteConfig(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.configs[id]; !ok {
		return loadtest.ErrConfigNotFound
	}
	delete(s.configs, id)
	delete(s.baselines, id)
	return nil
}

// Execute starts a run of the given configuration in the background.
func (s *LoadTestService) Execute(_ context.Context, dto loadtest.ExecuteDTO) (loadtest.Execution, error) {
	if err := dto.Validate(); err != nil {
		return loadtest.Execution{}, err
	}
	s.mu.Lock()
	cfg, ok := s.configs[dto.ConfigID]
	if !ok {
		s.mu.Unlock()
		return loadtest.Execution{}, loadtest.ErrConfigNotFound
	}
	if !cfg.Enabled {
		s.mu.Unlock()
		return loadtest.Execution{}, loadtest.ErrConfigDisabled
	}
	mode := cfg.Target.Mode
	if mode == "" {
		mode = loadtest.ModeSimulated
	}
	runCtx, cancel := context.WithCancel(context.Background())
	r := &run{
		e: loadtest.Execution{
			ID:                uuid.NewString(),
			ConfigID:          cfg.ID,
			Type:              cfg.Type,
			Mode:              mode,
			Status:            loadtest.StatusPending,
			StartedAt:         s.now(),
			Results:           loadtest.Results{Errors: []loadtest.ErrorSummary{}},
			ThresholdBreaches: []loadtest.ThresholdBreach{},
			Metadata:          dto.Metadata(),
		},
		cfg:    cfg.Clone(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.runs[r.e.ID] = r
	s.order = append(s.order, r.e.ID)
	snap := r.e.Clone()
	s.wg.Add(1)
	s.mu.Unlock()

	s.publish(snap)
	go s.execute(runCtx, r)
	return snap, nil
}

// Executions lists executions newest first.
func (s *LoadTestService) Executions(_ context.Context, params loadtest.FindParams) []loadtest.Execution {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []loadtest.Execution{}
	for i := len(s.order) - 1; i >= 0; i-- {
		e := s.runs[s.order[i]].e
		if !params.Matches(e) {
			continue
		}
		out = append(out, e.Clone())
		if params.Limit > 0 && len(out) == params.Limit {
			break
		}
	}
	return out
}

func (s *LoadTestService) Execution(_ context.Context, id string) (loadtest.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok {
		return loadtest.Execution{}, loadtest.ErrNotFound
	}
	return r.e.Clone(), nil
}

// Cancel stops a pending or running execution.
func (s *LoadTestService) Cancel(_ context.Context, id string) (loadtest.Execution, error) {
	s.mu.Lock()
	r, ok := s.runs[id]
	if !ok {
		s.mu.Unlock()
		return loadtest.Execution{}, loadtest.ErrNotFound
	}
	if !r.e.Status.Active() {
		s.mu.Unlock()
		return loadtest.Execution{}, loadtest.ErrInvalidState
	}
	r.e.Finish(loadtest.StatusCancelled, s.now())
	r.cancel()
	snap := r.e.Clone()
	s.mu.Unlock()

	executionsTotal.WithLabelValues(string(snap.Type), string(snap.Status)).Inc()
	s.publish(snap)
	return snap, nil
}

// Wait blocks until the execution reaches a terminal status.
func (s *LoadTestService) Wait(ctx context.Context, id string) (loadtest.Execution, error) {
	s.mu.RLock()
	r, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		return loadtest.Execution{}, loadtest.ErrNotFound
	}
	select {
	case <-r.done:
	case <-ctx.Done():
		return loadtest.Execution{}, ctx.Err()
	}
	return s.Execution(ctx, id)
}

// SetBaseline stores the results of a completed execution of configID as its baseline.
func (s *LoadTestService) SetBaseline(_ context.Context, configID, executionID string) (loadtest.Baseline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.configs[configID]; !ok {
		return loadtest.Baseline{}, loadtest.ErrConfigNotFound
	}
	r, ok := s.runs[executionID]
	if !ok {
		return loadtest.Baseline{}, loadtest.ErrNotFound
	}
	if r.e.ConfigID != configID {
		return loadtest.Baseline{}, loadtest.ErrBaselineMismatch
	}
	if r.e.Status != loadtest.StatusCompleted {
		return loadtest.Baseline{}, loadtest.ErrNotCompleted
	}
	b := loadtest.NewBaseline(r.e, s.now())
	s.baselines[configID] = b
	return b, nil
}

func (s *LoadTestService) Baseline(_ context.Context, configID string) (loadtest.Baseline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.baselines[configID]
	if !ok {
		return loadtest.Baseline{}, loadtest.ErrBaselineNotFound
	}
	return b, nil
}

// CompareWithBaseline compares a completed execution with the baseline of its configuration.
func (s *LoadTestService) CompareWithBaseline(_ context.Context, executionID string) (loadtest.Comparison, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[executionID]
	if !ok {
		return loadtest.Comparison{}, loadtest.ErrNotFound
	}
	if r.e.Status != loadtest.StatusCompleted {
		return loadtest.Comparison{}, loadtest.ErrNotCompleted
	}
	b, ok := s.baselines[r.e.ConfigID]
	if !ok {
		return loadtest.Comparison{}, loadtest.ErrBaselineNotFound
	}
	return loadtest.Compare(b, r.e), nil
}

// RunScalabilityTest sweeps instance counts and reports throughput and bottlenecks.
func (s *LoadTestService) RunScalabilityTest(_ context.Context, cfg loadtest.ScalabilityConfig) (loadtest.ScalabilityResult, error) {
	if err := cfg.Validate(); err != nil {
		return loadtest.ScalabilityResult{}, err
	}
	return loadtest.SimulateScalability(cfg), nil
}

// Report writes an XLSX report of a finished execution.
func (s *LoadTestService) Report(_ context.Context, id string, w io.Writer) error {
	s.mu.RLock()
	r, ok := s.runs[id]
	if !ok {
		s.mu.RUnlock()
		return loadtest.ErrNotFound
	}
	e, cfg := r.e.Clone(), r.cfg.Clone()
	s.mu.RUnlock()
	if e.Status.Active() {
		return loadtest.ErrNotCompleted
	}
	return WriteReport(w, cfg, e)
}

func (s *LoadTestService) Name() string {
	return "loadtests"
}

// Run cancels in-flight executions once ctx is done.
func (s *LoadTestService) Run(ctx context.Context) error {
	<-ctx.Done()
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Close(closeCtx)
}

func (s *LoadTestService) Close(ctx context.Context) error {
	s.mu.RLock()
	ids := []string{}
	for id, r := range s.runs {
		if r.e.Status.Active() {
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()
	for _, id := range ids {
		_, _ = s.Cancel(ctx, id)
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *LoadTestService) execute(ctx context.Context, r *run) {
	defer s.wg.Done()
	defer close(r.done)
	log := s.logger.WithField("component", "loadtesting").WithField("execution_id", r.e.ID)

	s.mu.Lock()
	if !r.e.Status.Active() {
		s.mu.Unlock()
		return
	}
	r.e.Status = loadtest.StatusRunning
	snap := r.e.Clone()
	s.mu.Unlock()
	s.publish(snap)

	res, err := s.runLoad(ctx, r.cfg)

	s.mu.Lock()
	if !r.e.Status.Active() {
		s.mu.Unlock()
		return
	}
	if err != nil {
		r.e.Error = err.Error()
		r.e.Finish(loadtest.StatusFailed, s.now())
	} else {
		r.e.Results = res
		r.e.ThresholdBreaches = loadtest.CheckThresholds(r.cfg.Thresholds, res)
		r.e.Finish(loadtest.StatusCompleted, s.now())
	}
	snap = r.e.Clone()
	baseline, hasBaseline := s.baselines[r.e.ConfigID]
	s.mu.Unlock()

	executionsTotal.WithLabelValues(string(snap.Type), string(snap.Status)).Inc()
	log.WithFields(logrus.Fields{
		"status":     snap.Status,
		"requests":   snap.Results.TotalRequests,
		"error_rate": snap.Results.ErrorRate,
		"breaches":   len(snap.ThresholdBreaches),
	}).Info("load test finished")
	if hasBaseline && snap.Status == loadtest.StatusCompleted {
		for _, w := range loadtest.Compare(baseline, snap).Warnings {
			log.Warn(w)
		}
	}
	s.publish(snap)
}

// runLoad turns a panic in either runner into an error on the execution.
func (s *LoadTestService) runLoad(ctx context.Context, cfg loadtest.Config) (res loadtest.Results, err error) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.WithField("config_id", cfg.ID).WithField("panic", p).Error("load runner panicked")
			res, err = loadtest.Results{}, errors.Errorf("load runner panicked: %v", p)
		}
	}()
	if cfg.Target.Live() {
		return s.live.Run(ctx, cfg)
	}
	return Simulate(ctx, cfg.Load, s.float)
}

func (s *LoadTestService) publish(e loadtest.Execution) {
	s.bus.Publish(eventbus.Event{
		Type:      eventbus.LoadTestUpdate,
		Source:    eventbus.SourceSystem,
		Target:    eventbus.TargetAll,
		Data:      e,
		Timestamp: s.now(),
	})
}

func (s *LoadTestService) float() float64 {
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return s.rnd.Float64()
}
