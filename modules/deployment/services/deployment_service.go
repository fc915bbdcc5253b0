package services

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/hashicorp/go-version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/labx-platform/testbed/modules/deployment/domain/entities/deployment"
	"github.com/labx-platform/testbed/pkg/eventbus"
)

const defaultStepDelay = 500 * time.Millisecond

var deploymentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "labx",
	Subsystem: "deployment",
	Name:      "deployments_total",
	Help:      "Finished deployments by terminal status.",
}, []string{"status"})

var (
	buildSteps = []string{
		"Installing dependencies...",
		"Running type check...",
		"Running tests...",
		"Building application...",
		"Optimizing bundle...",
	}
	deploySteps = []string{
		"Uploading build artifacts...",
		"Configuring environment variables...",
		"Setting up CDN...",
		"Configuring SSL certificate...",
	}
)

type Option func(*DeploymentService)

func WithRand(r *rand.Rand) Option {
	return func(s *DeploymentService) {
		s.rnd = r
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *DeploymentService) {
		s.now = now
	}
}

// WithStepDelay sets the simulated duration of every build, deploy and check step.
func WithStepDelay(d time.Duration) Option {
	return func(s *DeploymentService) {
		if d >= 0 {
			s.stepDelay = d
		}
	}
}

// WithNotifier posts finished deployments to webhookURL unless a config names its own hook.
func WithNotifier(n Notifier, webhookURL string) Option {
	return func(s *DeploymentService) {
		s.notifier = n
		s.webhookURL = webhookURL
	}
}

func WithLogger(l *logrus.Logger) Option {
	return func(s *DeploymentService) {
		s.logger = l
	}
}

type run struct {
	d      deployment.Deployment
	cancel context.CancelFunc
	done   chan struct{}
}

// DeploymentService simulates build and deploy pipelines for the dashboard's environments.
type DeploymentService struct {
	bus        eventbus.EventBus
	notifier   Notifier
	webhookURL string
	logger     *logrus.Logger
	stepDelay  time.Duration
	now        func() time.Time

	randMu sync.Mutex
	rnd    *rand.Rand

	mu           sync.RWMutex
	configs      map[string]deployment.Config
	environments map[deployment.EnvironmentType]deployment.Environment
	runs         map[string]*run
	order        []string

	wg sync.WaitGroup
}

func NewDeploymentService(bus eventbus.EventBus, opts ...Option) *DeploymentService {
	s := &DeploymentService{
		bus:          bus,
		logger:       logrus.StandardLogger(),
		stepDelay:    defaultStepDelay,
		now:          time.Now,
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
		configs:      map[string]deployment.Config{},
		environments: map[deployment.EnvironmentType]deployment.Environment{},
		runs:         map[string]*run{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize seeds the default configurations and environments. It is a no-op when configs exist.
func (s *DeploymentService) Initialize(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.configs) > 0 {
		return nil
	}
	now := s.now()
	for _, c := range defaultConfigs(now) {
		s.configs[c.ID] = c
	}
	for _, e := range defaultEnvironments(now) {
		s.environments[e.Type] = e
	}
	return nil
}

func (s *DeploymentService) CreateConfig(_ context.Context, dto deployment.CreateConfigDTO) (deployment.Config, error) {
	if err := dto.Validate(); err != nil {
		return deployment.Config{}, err
	}
	cfg := dto.ToEntity(uuid.NewString(), s.now())
	s.mu.Lock()
	s.configs[cfg.ID] = cfg
	s.mu.Unlock()
	return cfg, nil
}

// Configs lists configurations ordered by name.
func (s *DeploymentService) Configs(_ context.Context) []deployment.Config {
	s.mu.RLock()
	out := make([]deployment.Config, 0, len(s.configs))
	for _, c := range s.configs {
		out = append(out, c)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *DeploymentService) Config(_ context.Context, id string) (deployment.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.configs[id]
	if !ok {
		return deployment.Config{}, deployment.ErrConfigNotFound
	}
	return c, nil
}

// Environments lists environments ordered by name.
func (s *DeploymentService) Environments(_ context.Context) []deployment.Environment {
	s.mu.RLock()
	out := make([]deployment.Environment, 0, len(s.environments))
	for _, e := range s.environments {
		out = append(out, e)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Deploy validates the request and starts the pipeline in the background.
func (s *DeploymentService) Deploy(ctx context.Context, dto deployment.DeployDTO) (deployment.Deployment, error) {
	return s.deploy(ctx, dto, "")
}

func (s *DeploymentService) deploy(_ context.Context, dto deployment.DeployDTO, rollbackOf string) (deployment.Deployment, error) {
	if err := dto.Validate(); err != nil {
		return deployment.Deployment{}, err
	}
	s.mu.Lock()
	cfg, ok := s.configs[dto.ConfigID]
	if !ok {
		s.mu.Unlock()
		return deployment.Deployment{}, deployment.ErrConfigNotFound
	}
	if !cfg.Enabled {
		s.mu.Unlock()
		return deployment.Deployment{}, deployment.ErrConfigDisabled
	}
	runCtx, cancel := context.WithCancel(context.Background())
	r := &run{
		d: deployment.Deployment{
			ID:          uuid.NewString(),
			ConfigID:    cfg.ID,
			Status:      deployment.StatusPending,
			Version:     dto.Version,
			Commit:      dto.Commit,
			Branch:      dto.Branch,
			Environment: cfg.Environment,
			StartedAt:   s.now(),
			BuildLogs:   []string{},
			DeployLogs:  []string{},
			RollbackOf:  rollbackOf,
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.runs[r.d.ID] = r
	s.order = append(s.order, r.d.ID)
	snap := r.d.Clone()
	s.wg.Add(1)
	s.mu.Unlock()

	s.publish(snap)
	go s.execute(runCtx, r, cfg)
	return snap, nil
}

// Deployments lists deployments newest first.
func (s *DeploymentService) Deployments(_ context.Context, params deployment.FindParams) []deployment.Deployment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []deployment.Deployment{}
	for i := len(s.order) - 1; i >= 0; i-- {
		d := s.runs[s.order[i]].d
		if !params.Matches(d) {
			continue
		}
		out = append(out, d.Clone())
		if params.Limit > 0 && len(out) == params.Limit {
			break
		}
	}
	return out
}

func (s *DeploymentService) Deployment(_ context.Context, id string) (deployment.Deployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok {
		return deployment.Deployment{}, deployment.ErrNotFound
	}
	return r.d.Clone(), nil
}

// Cancel stops a pending, building or deploying deployment.
func (s *DeploymentService) Cancel(_ context.Context, id string) (deployment.Deployment, error) {
	s.mu.Lock()
	r, ok := s.runs[id]
	if !ok {
		s.mu.Unlock()
		return deployment.Deployment{}, deployment.ErrNotFound
	}
	if !r.d.Status.Active() {
		s.mu.Unlock()
		return deployment.Deployment{}, deployment.ErrInvalidState
	}
	r.d.Finish(deployment.StatusCancelled, s.now())
	r.cancel()
	snap := r.d.Clone()
	s.mu.Unlock()

	deploymentsTotal.WithLabelValues(string(deployment.StatusCancelled)).Inc()
	s.publish(snap)
	return snap, nil
}

// Rollback redeploys the newest completed version of configID that is lower than its current version.
func (s *DeploymentService) Rollback(ctx context.Context, configID string) (deployment.Deployment, error) {
	s.mu.RLock()
	if _, ok := s.configs[configID]; !ok {
		s.mu.RUnlock()
		return deployment.Deployment{}, deployment.ErrConfigNotFound
	}
	var completed []deployment.Deployment
	for _, id := range s.order {
		d := s.runs[id].d
		if d.ConfigID == configID && d.Status == deployment.StatusCompleted {
			completed = append(completed, d)
		}
	}
	s.mu.RUnlock()

	current, target, ok := rollbackTarget(completed)
	if !ok {
		return deployment.Deployment{}, deployment.ErrNoRollbackTarget
	}
	return s.deploy(ctx, deployment.DeployDTO{
		ConfigID: configID,
		Version:  target.Version,
		Commit:   target.Commit,
		Branch:   target.Branch,
	}, current.ID)
}

// rollbackTarget picks the most recently completed deployment as current and
// the highest version below it as target.
func rollbackTarget(completed []deployment.Deployment) (deployment.Deployment, deployment.Deployment, bool) {
	if len(completed) == 0 {
		return deployment.Deployment{}, deployment.Deployment{}, false
	}
	current := completed[0]
	for _, d := range completed[1:] {
		if d.CompletedAt.After(*current.CompletedAt) {
			current = d
		}
	}
	currentVer, err := version.NewSemver(current.Version)
	if err != nil {
		return deployment.Deployment{}, deployment.Deployment{}, false
	}
	var (
		target    deployment.Deployment
		targetVer *version.Version
	)
	for _, d := range completed {
		v, err := version.NewSemver(d.Version)
		if err != nil || !v.LessThan(currentVer) {
			continue
		}
		if targetVer == nil || v.GreaterThan(targetVer) {
			target, targetVer = d, v
		}
	}
	return current, target, targetVer != nil
}

// Wait blocks until the deployment reaches a terminal status.
func (s *DeploymentService) Wait(ctx context.Context, id string) (deployment.Deployment, error) {
	s.mu.RLock()
	r, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		return deployment.Deployment{}, deployment.ErrNotFound
	}
	select {
	case <-r.done:
	case <-ctx.Done():
		return deployment.Deployment{}, ctx.Err()
	}
	return s.Deployment(ctx, id)
}

func (s *DeploymentService) Name() string {
	return "deployments"
}

// Run cancels in-flight deployments once ctx is done.
func (s *DeploymentService) Run(ctx context.Context) error {
	<-ctx.Done()
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Close(closeCtx)
}

func (s *DeploymentService) Close(ctx context.Context) error {
	s.mu.RLock()
	ids := []string{}
	for id, r := range s.runs {
		if r.d.Status.Active() {
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

func (s *DeploymentService) execute(ctx context.Context, r *run, cfg deployment.Config) {
	defer s.wg.Done()
	defer close(r.done)
	log := s.logger.WithField("component", "deployment").WithField("deployment_id", r.d.ID)

	if !s.transition(r, deployment.StatusBuilding) {
		return
	}
	buildStart := s.now()
	for _, step := range buildSteps {
		if !s.step(ctx, r, func(d *deployment.Deployment) { d.BuildLogs = append(d.BuildLogs, step) }) {
			return
		}
	}
	bundle := int64(500_000 + s.intn(1_000_000))
	s.mutate(r, func(d *deployment.Deployment) {
		d.Performance.BundleSize = bundle
		d.Performance.BuildTimeMs = s.now().Sub(buildStart).Milliseconds()
		d.BuildLogs = append(d.BuildLogs, "Build completed successfully (bundle "+units.HumanSize(float64(bundle))+")")
	})

	if !s.transition(r, deployment.StatusDeploying) {
		return
	}
	deployStart := s.now()
	for _, step := range deploySteps {
		if !s.step(ctx, r, func(d *deployment.Deployment) { d.DeployLogs = append(d.DeployLogs, step) }) {
			return
		}
	}
	s.mutate(r, func(d *deployment.Deployment) {
		d.DeployLogs = append(d.DeployLogs, "Deployment completed successfully")
		d.Performance.DeployTimeMs = s.now().Sub(deployStart).Milliseconds()
	})

	checks := deployment.Checks{}
	for _, c := range []struct {
		dst  *bool
		fail float64
	}{
		{&checks.HealthCheck, 0.10},
		{&checks.SmokeTest, 0.05},
		{&checks.SecurityScan, 0.02},
		{&checks.PerformanceTest, 0.03},
	} {
		if !sleepCtx(ctx, s.stepDelay) {
			return
		}
		*c.dst = s.float() > c.fail
	}
	lighthouse := 80 + s.intn(21)

	s.mu.Lock()
	if !r.d.Status.Active() {
		s.mu.Unlock()
		return
	}
	r.d.Checks = checks
	r.d.Performance.LighthouseScore = lighthouse
	switch {
	case !checks.HealthCheck:
		r.d.Error = "post-deployment health check failed"
		r.d.Finish(deployment.StatusFailed, s.now())
	case !checks.SmokeTest:
		r.d.Error = "post-deployment smoke test failed"
		r.d.Finish(deployment.StatusFailed, s.now())
	default:
		r.d.URL = "https://" + cfg.Build.Domain
		r.d.Finish(deployment.StatusCompleted, s.now())
		s.updateEnvironmentLocked(r.d)
	}
	snap := r.d.Clone()
	s.mu.Unlock()

	deploymentsTotal.WithLabelValues(string(snap.Status)).Inc()
	log.WithField("status", snap.Status).Info("deployment finished")
	s.publish(snap)
	s.notify(cfg, snap, log)
}

func (s *DeploymentService) notify(cfg deployment.Config, d deployment.Deployment, log *logrus.Entry) {
	url := cfg.Monitoring.WebhookURL
	if url == "" {
		url = s.webhookURL
	}
	if s.notifier == nil || url == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.notifier.Notify(ctx, url, d); err != nil {
		log.WithError(err).Warn("deployment webhook failed")
	}
}

// updateEnvironmentLocked must be called with s.mu held.
func (s *DeploymentService) updateEnvironmentLocked(d deployment.Deployment) {
	env, ok := s.environments[d.Environment]
	if !ok {
		return
	}
	env.Version = d.Version
	env.LastDeployment = d.ID
	env.Health = deployment.HealthHealthy
	env.ResponseTimeMs = 50 + s.intn(101)
	env.LastCheck = s.now()
	s.environments[d.Environment] = env
}

// step waits one step delay and then applies fn. It reports false when the deployment was cancelled.
func (s *DeploymentService) step(ctx context.Context, r *run, fn func(*deployment.Deployment)) bool {
	if !sleepCtx(ctx, s.stepDelay) {
		return false
	}
	return s.mutate(r, fn)
}

func (s *DeploymentService) mutate(r *run, fn func(*deployment.Deployment)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !r.d.Status.Active() {
		return false
	}
	fn(&r.d)
	return true
}

func (s *DeploymentService) transition(r *run, status deployment.Status) bool {
	s.mu.Lock()
	if !r.d.Status.Active() {
		s.mu.Unlock()
		return false
	}
	r.d.Status = status
	snap := r.d.Clone()
	s.mu.Unlock()
	s.publish(snap)
	return true
}

func (s *DeploymentService) publish(d deployment.Deployment) {
	s.bus.Publish(eventbus.Event{
		Type:      eventbus.DeploymentUpdate,
		Source:    eventbus.SourceSystem,
		Target:    eventbus.TargetAll,
		Data:      d,
		Timestamp: s.now(),
	})
}

func (s *DeploymentService) intn(n int) int {
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return s.rnd.Intn(n)
}

func (s *DeploymentService) float() float64 {
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return s.rnd.Float64()
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
