package services

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/labx-platform/testbed/modules/execution/domain/entities/execution"
	"github.com/labx-platform/testbed/modules/testcases/domain/entities/testcase"
	"github.com/labx-platform/testbed/pkg/eventbus"
	"github.com/labx-platform/testbed/pkg/repo"
	"github.com/labx-platform/testbed/pkg/serrors"
)

// TestCaseResolver finds a test case by uuid or test case id.
type TestCaseResolver interface {
	Get(ctx context.Context, key string) (testcase.TestCase, error)
}

// UpdateFunc receives a snapshot after every change of an execution.
type UpdateFunc func(execution.Execution)

// DefaultMaxRetained bounds finished runs kept in memory after saving them failed.
const DefaultMaxRetained = 200

type run struct {
	mu        sync.Mutex
	exec      execution.Execution
	flow      []testcase.MessageStep
	persisted bool
	cancel    context.CancelFunc
	done      chan struct{}
}

func (r *run) snapshot() execution.Execution {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exec.Clone()
}

type EngineOption func(*Engine)

func WithEngineRand(r *rand.Rand) EngineOption {
	return func(e *Engine) { e.rnd = r }
}

func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithBaseContext sets the context runs derive from; it carries the
// database pool used to persist finished executions.
func WithBaseContext(ctx context.Context) EngineOption {
	return func(e *Engine) { e.baseCtx = ctx }
}

func WithEngineLogger(l *logrus.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithMaxRetained bounds finished runs that could not be persisted and are
// therefore still served from memory.
func WithMaxRetained(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxRetained = n
		}
	}
}

// WithDefaultAcceleration applies to configs that leave TimeAcceleration unset.
func WithDefaultAcceleration(v float64) EngineOption {
	return func(e *Engine) { e.defaultAcceleration = v }
}

// Engine runs test case message flows and reports their progress.
type Engine struct {
	repo    execution.Repository
	cases   TestCaseResolver
	bus     eventbus.EventBus
	logger  *logrus.Logger
	baseCtx context.Context
	now     func() time.Time

	defaultAcceleration float64
	maxRetained         int

	randMu sync.Mutex
	rnd    *rand.Rand

	runs *repo.SafeMap[string, *run]
	wg   sync.WaitGroup

	subsMu  sync.RWMutex
	subs    map[string]map[uint64]UpdateFunc
	nextSub uint64
}

func NewEngine(repository execution.Repository, cases TestCaseResolver, bus eventbus.EventBus, opts ...EngineOption) *Engine {
	e := &Engine{
		repo:    repository,
		cases:   cases,
		bus:     bus,
		logger:  logrus.StandardLogger(),
		baseCtx: context.Background(),
		now:     time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		runs:    repo.NewSafeMap[string, *run](),
		subs:    map[string]map[uint64]UpdateFunc{},

		maxRetained: DefaultMaxRetained,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) float() float64 {
	e.randMu.Lock()
	defer e.randMu.Unlock()
	return e.rnd.Float64()
}

func (e *Engine) intn(n int) int {
	e.randMu.Lock()
	defer e.randMu.Unlock()
	return e.rnd.Intn(n)
}

func (e *Engine) newID() string {
	e.randMu.Lock()
	defer e.randMu.Unlock()
	return fmt.Sprintf("rt_exec_%d_%s", e.now().UnixMilli(), randomSuffix(e.rnd, 9))
}

// Start resolves the test case and runs its message flow in the background.
func (e *Engine) Start(ctx context.Context, cfg execution.Config) (string, error) {
	if cfg.TimeAcceleration == 0 && e.defaultAcceleration > 0 {
		cfg.TimeAcceleration = e.defaultAcceleration
	}
	cfg.Normalize()
	if errs := serrors.ValidateStruct(cfg); errs != nil {
		return "", errs
	}
	tc, err := e.cases.Get(ctx, cfg.TestCaseID)
	if err != nil {
		if errors.Is(err, testcase.ErrNotFound) {
			return "", execution.ErrTestCaseNotFound
		}
		return "", errors.Wrap(err, "resolve test case")
	}

	now := e.now()
	runCtx, cancel := context.WithCancel(e.baseCtx)
	r := &run{
		exec: execution.Execution{
			ID:              e.newID(),
			TestCaseID:      tc.Key(),
			TestCaseName:    tc.Name,
			Config:          cfg,
			Status:          execution.StatusRunning,
			StartedAt:       now,
			CurrentStep:     "Starting",
			TotalSteps:      len(tc.MessageFlow),
			Messages:        []execution.ExecutedMessage{},
			LayerStatistics: []execution.LayerStatistics{},
			Trends:          []execution.TrendPoint{},
			Logs:            []string{logLine(now, "Execution started for %s (%s mode)", tc.Name, cfg.ExecutionMode)},
			Errors:          []string{},
			Warnings:        []string{},
		},
		flow:   tc.MessageFlow,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.exec.Config.TestCaseID = tc.Key()
	e.runs.Set(r.exec.ID, r)
	e.wg.Add(1)
	runningExecutions.Inc()

	e.publish(eventbus.TestExecutionStarted, eventbus.TargetAll, r.exec, eventbus.StatusPayload{
		Status: string(execution.StatusRunning),
	})
	e.logger.WithFields(logrus.Fields{
		"execution_id": r.exec.ID,
		"test_case_id": r.exec.TestCaseID,
		"mode":         cfg.ExecutionMode,
		"messages":     len(tc.MessageFlow),
	}).Info("execution started")

	go e.execute(runCtx, r, tc)
	return r.exec.ID, nil
}

func logLine(at time.Time, format string, args ...any) string {
	return "[" + at.Format("15:04:05.000") + "] " + fmt.Sprintf(format, args...)
}

// StepDelay is the wait before a message is processed. Simulation mode scales
// the message's base delay by 1/acceleration and a random factor in
// [0.75, 1.25), never going below 10ms.
func (e *Engine) StepDelay(cfg execution.Config, message string) time.Duration {
	switch cfg.ExecutionMode {
	case execution.ModeBatch:
		return 0
	case execution.ModeRealtime:
		return time.Duration(float64(time.Second) / cfg.TimeAcceleration)
	default:
		ms := float64(BaseDelayMs(message)) / cfg.TimeAcceleration * (0.75 + e.float()*0.5)
		return time.Duration(math.Max(ms, 10) * float64(time.Millisecond))
	}
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (e *Engine) execute(ctx context.Context, r *run, tc testcase.TestCase) {
	defer e.wg.Done()
	defer e.release(r)
	defer close(r.done)
	defer r.cancel()
	defer func() {
		if rec := recover(); rec != nil {
			e.fail(r, fmt.Errorf("execution panicked: %v", rec))
		}
	}()

	if len(r.flow) == 0 {
		e.fail(r, errors.New("test case has no messages"))
		return
	}
	for i, step := range r.flow {
		if err := wait(ctx, e.StepDelay(r.exec.Config, step.Message)); err != nil {
			return
		}
		if !e.process(r, tc, i, step) {
			return
		}
	}
	e.complete(r)
}

func (e *Engine) buildMessage(execID string, started time.Time, tc testcase.TestCase, i int, step testcase.MessageStep) execution.ExecutedMessage {
	now := e.now()
	base := float64(BaseDelayMs(step.Message))
	latency := int64(math.Round(base * (0.8 + e.float()*0.4)))
	direction := NormalizeDirection(string(step.Direction))
	return execution.ExecutedMessage{
		ID:          fmt.Sprintf("%s_msg_%d", execID, i+1),
		Sequence:    i + 1,
		Timestamp:   now,
		OffsetMs:    now.Sub(started).Milliseconds(),
		Direction:   direction,
		Layer:       step.Layer,
		Protocol:    tc.Protocol,
		MessageType: messageKeyPreserving(step.Message),
		MessageName: step.Message,
		Values:      step.Values,
		Performance: execution.Performance{
			LatencyMs:        latency,
			ProcessingTimeMs: int64(math.Round(float64(latency) * 0.3)),
			MemoryUsage:      100 + e.intn(500),
			CPUUsage:         5 + e.intn(20),
		},
		Validation: execution.ValidateMessage(direction, step.Layer, step.Values),
	}
}

// messageKeyPreserving strips separators but keeps the original casing,
// e.g. "RRC Setup Request" -> "RRCSetupRequest".
func messageKeyPreserving(message string) string {
	out := make([]rune, 0, len(message))
	for _, c := range message {
		if c == ' ' || c == '_' || c == '-' {
			continue
		}
		out = append(out, c)
	}
	return string(out)
}

// process applies one message; it reports false when the run was stopped meanwhile.
func (e *Engine) process(r *run, tc testcase.TestCase, i int, step testcase.MessageStep) bool {
	r.mu.Lock()
	if r.exec.Status != execution.StatusRunning {
		r.mu.Unlock()
		return false
	}
	msg := e.buildMessage(r.exec.ID, r.exec.StartedAt, tc, i, step)
	x := &r.exec
	x.Messages = append(x.Messages, msg)
	x.CompletedSteps = i + 1
	x.Progress = int(math.Round(float64(x.CompletedSteps) / float64(x.TotalSteps) * 100))
	x.CurrentStep = "Processing " + step.Message
	x.LayerStatistics = execution.BuildLayerStatistics(x.Messages)
	x.Metrics = execution.BuildMetrics(x.Messages, msg.Timestamp.Sub(x.StartedAt))
	x.Trends = append(x.Trends, execution.TrendPoint{
		Timestamp:   msg.Timestamp,
		LatencyMs:   msg.Performance.LatencyMs,
		Throughput:  x.Metrics.Throughput,
		SuccessRate: x.Metrics.SuccessRate,
		ErrorRate:   x.Metrics.ErrorRate,
	})
	if len(x.Trends) > execution.MaxTrendPoints {
		x.Trends = x.Trends[len(x.Trends)-execution.MaxTrendPoints:]
	}
	x.Logs = append(x.Logs, logLine(msg.Timestamp, "Processed %s (%s %s, %d ms)", step.Message, msg.Layer, msg.Direction, msg.Performance.LatencyMs))
	for _, w := range msg.Validation.Warnings {
		x.Warnings = append(x.Warnings, fmt.Sprintf("%s: %s", step.Message, w))
	}
	for _, v := range msg.Validation.Errors {
		x.Errors = append(x.Errors, fmt.Sprintf("%s: %s", step.Message, v))
	}
	snap := x.Clone()
	r.mu.Unlock()

	executedMessagesTotal.WithLabelValues(msg.Layer).Inc()
	summary := summarize(snap)
	e.publish(eventbus.MessageTo5GLabX, eventbus.Target5GLabX, snap, eventbus.MessagePayload{
		Layer: msg.Layer, Protocol: msg.Protocol, Message: msg, IEMap: msg.Values, Execution: summary,
	})
	e.publish(eventbus.MessageToUEAnalysis, eventbus.TargetUEAnalysis, snap,
		ToUELogMessage(snap.ID, msg.ID, msg.Layer, msg.Direction, msg.MessageType, msg.Values, msg.Timestamp))
	e.publish(eventbus.LayerUpdate(msg.Layer), eventbus.TargetAll, snap, eventbus.MessagePayload{
		Layer: msg.Layer, Protocol: msg.Protocol, Message: msg, IEMap: msg.Values,
	})
	e.publish(eventbus.ExecutionUpdate, eventbus.TargetAll, snap, summary)
	e.notify(snap)
	return true
}

// Summary is the light-weight view of an execution carried by update events.
type Summary struct {
	ExecutionID    string            `json:"executionId"`
	TestCaseID     string            `json:"testCaseId"`
	Status         execution.Status  `json:"status"`
	Progress       int               `json:"progress"`
	CurrentStep    string            `json:"currentStep"`
	CompletedSteps int               `json:"completedSteps"`
	TotalSteps     int               `json:"totalSteps"`
	Metrics        execution.Metrics `json:"performanceMetrics"`
}

func summarize(x execution.Execution) Summary {
	return Summary{
		ExecutionID:    x.ID,
		TestCaseID:     x.TestCaseID,
		Status:         x.Status,
		Progress:       x.Progress,
		CurrentStep:    x.CurrentStep,
		CompletedSteps: x.CompletedSteps,
		TotalSteps:     x.TotalSteps,
		Metrics:        x.Metrics,
	}
}

func (e *Engine) complete(r *run) {
	r.mu.Lock()
	if r.exec.Status != execution.StatusRunning {
		r.mu.Unlock()
		return
	}
	now := e.now()
	r.exec.Finish(execution.StatusCompleted, now)
	r.exec.Progress = 100
	r.exec.CurrentStep = "Completed"
	r.exec.Logs = append(r.exec.Logs, logLine(now, "Execution completed in %d ms", r.exec.DurationMs))
	snap := r.exec.Clone()
	r.mu.Unlock()

	e.finished(r, snap, eventbus.TestExecutionCompleted, "")
}

func (e *Engine) fail(r *run, cause error) {
	r.mu.Lock()
	if r.exec.Status != execution.StatusRunning {
		r.mu.Unlock()
		return
	}
	now := e.now()
	r.exec.Finish(execution.StatusFailed, now)
	r.exec.CurrentStep = "Failed"
	r.exec.Errors = append(r.exec.Errors, cause.Error())
	r.exec.Logs = append(r.exec.Logs, logLine(now, "Execution failed: %s", cause))
	snap := r.exec.Clone()
	r.mu.Unlock()

	e.finished(r, snap, eventbus.TestExecutionFailed, cause.Error())
}

func (e *Engine) finished(r *run, snap execution.Execution, eventType, errMsg string) {
	runningExecutions.Dec()
	executionsTotal.WithLabelValues(string(snap.Status)).Inc()
	err := e.repo.Save(e.baseCtx, snap)
	if err != nil {
		e.logger.WithError(err).WithField("execution_id", snap.ID).Error("failed to persist execution")
	}
	r.mu.Lock()
	r.persisted = err == nil
	r.mu.Unlock()
	e.publish(eventType, eventbus.TargetAll, snap, eventbus.StatusPayload{
		Status: string(snap.Status), Progress: snap.Progress, Error: errMsg,
	})
	e.notify(snap)

	entry := e.logger.WithFields(logrus.Fields{
		"execution_id": snap.ID,
		"status":       snap.Status,
		"duration_ms":  snap.DurationMs,
		"messages":     len(snap.Messages),
	})
	if errMsg != "" {
		entry.Warn("execution failed: " + errMsg)
		return
	}
	entry.Info("execution finished")
}

// Stop cancels a running execution.
func (e *Engine) Stop(ctx context.Context, id string) (execution.Execution, error) {
	r, ok := e.runs.Get(id)
	if !ok {
		if _, err := e.repo.GetByID(ctx, id); err == nil {
			return execution.Execution{}, execution.ErrInvalidState
		}
		return execution.Execution{}, execution.ErrNotFound
	}
	r.mu.Lock()
	if r.exec.Status != execution.StatusRunning {
		r.mu.Unlock()
		return execution.Execution{}, execution.ErrInvalidState
	}
	now := e.now()
	r.exec.Finish(execution.StatusCancelled, now)
	r.exec.CurrentStep = "Stopped"
	r.exec.Logs = append(r.exec.Logs, logLine(now, "Execution stopped"))
	snap := r.exec.Clone()
	r.mu.Unlock()
	r.cancel()

	e.finished(r, snap, eventbus.TestExecutionStopped, "")
	return snap, nil
}

// release drops a finished run from memory once the repository holds it.
// Unpersisted runs stay, the oldest dropped beyond maxRetained.
func (e *Engine) release(r *run) {
	r.mu.Lock()
	persisted := r.persisted
	id := r.exec.ID
	r.mu.Unlock()
	if persisted {
		e.runs.Delete(id)
		return
	}

	finished := []execution.Execution{}
	for _, other := range e.runs.Values() {
		if snap := other.snapshot(); snap.Status != execution.StatusRunning {
			finished = append(finished, snap)
		}
	}
	if len(finished) <= e.maxRetained {
		return
	}
	sort.Slice(finished, func(i, j int) bool { return finished[i].StartedAt.Before(finished[j].StartedAt) })
	for _, x := range finished[:len(finished)-e.maxRetained] {
		e.runs.Delete(x.ID)
	}
}

// Tracked is the number of executions held in memory.
func (e *Engine) Tracked() int {
	return e.runs.Len()
}

// Get returns a live execution, or a persisted one.
func (e *Engine) Get(ctx context.Context, id string) (execution.Execution, error) {
	if r, ok := e.runs.Get(id); ok {
		return r.snapshot(), nil
	}
	return e.repo.GetByID(ctx, id)
}

// Wait blocks until the execution finishes or ctx is done.
func (e *Engine) Wait(ctx context.Context, id string) (execution.Execution, error) {
	r, ok := e.runs.Get(id)
	if !ok {
		return e.repo.GetByID(ctx, id)
	}
	select {
	case <-r.done:
		return r.snapshot(), nil
	case <-ctx.Done():
		return execution.Execution{}, ctx.Err()
	}
}

// List merges live and persisted executions, newest first.
func (e *Engine) List(ctx context.Context, params *execution.FindParams) ([]execution.Execution, error) {
	if params == nil {
		params = &execution.FindParams{}
	}
	params.Normalize()
	seen := map[string]bool{}
	out := []execution.Execution{}
	for _, r := range e.runs.Values() {
		snap := r.snapshot()
		if params.Matches(snap) {
			seen[snap.ID] = true
			out = append(out, snap)
		}
	}
	stored, err := e.repo.List(ctx, params)
	if err != nil {
		return nil, err
	}
	for _, s := range stored {
		if !seen[s.ID] {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}

// Resolve finds the execution a stream client asked for: by id, or the
// latest run of a test case, live runs first.
func (e *Engine) Resolve(ctx context.Context, executionID, testCaseID string) (execution.Execution, bool) {
	if executionID != "" {
		x, err := e.Get(ctx, executionID)
		return x, err == nil
	}
	var latest *execution.Execution
	for _, r := range e.runs.Values() {
		snap := r.snapshot()
		if snap.TestCaseID != testCaseID {
			continue
		}
		if latest == nil || snap.StartedAt.After(latest.StartedAt) {
			latest = &snap
		}
	}
	if latest != nil {
		return *latest, true
	}
	stored, err := e.repo.List(ctx, &execution.FindParams{TestCaseID: testCaseID, Limit: 1})
	if err != nil || len(stored) == 0 {
		return execution.Execution{}, false
	}
	return stored[0], true
}

// Subscribe registers fn for updates of an execution id or test case id.
func (e *Engine) Subscribe(key string, fn UpdateFunc) (unsubscribe func()) {
	e.subsMu.Lock()
	e.nextSub++
	id := e.nextSub
	if e.subs[key] == nil {
		e.subs[key] = map[uint64]UpdateFunc{}
	}
	e.subs[key][id] = fn
	e.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.subsMu.Lock()
			defer e.subsMu.Unlock()
			delete(e.subs[key], id)
			if len(e.subs[key]) == 0 {
				delete(e.subs, key)
			}
		})
	}
}

func (e *Engine) notify(snap execution.Execution) {
	e.subsMu.RLock()
	fns := []UpdateFunc{}
	for _, key := range []string{snap.ID, snap.TestCaseID} {
		for _, fn := range e.subs[key] {
			fns = append(fns, fn)
		}
	}
	e.subsMu.RUnlock()
	for _, fn := range fns {
		fn(snap)
	}
}

func (e *Engine) publish(eventType string, target eventbus.Target, x execution.Execution, data any) {
	e.bus.Publish(eventbus.Event{
		Type:        eventType,
		Source:      eventbus.SourceTestManager,
		Target:      target,
		Data:        data,
		Timestamp:   e.now(),
		ExecutionID: x.ID,
		TestCaseID:  x.TestCaseID,
	})
}

// Close stops every running execution and waits for the workers to exit.
func (e *Engine) Close(ctx context.Context) error {
	for _, r := range e.runs.Values() {
		if r.snapshot().Status == execution.StatusRunning {
			if _, err := e.Stop(ctx, r.exec.ID); err != nil && !errors.Is(err, execution.ErrInvalidState) && !errors.Is(err, execution.ErrNotFound) {
				return err
			}
		}
	}
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
