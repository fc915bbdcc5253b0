package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/labx-platform/testbed/modules/execution/domain/entities/cellsearch"
	"github.com/labx-platform/testbed/modules/testcases/domain/generators"
	"github.com/labx-platform/testbed/pkg/eventbus"
	"github.com/labx-platform/testbed/pkg/repo"
)

const (
	DefaultCellSearchStepInterval = 2 * time.Second
	// DefaultCellSearchRetention is how many finished runs stay listable.
	DefaultCellSearchRetention = 50
)

// TemplateSource provides the LTE cell search template.
type TemplateSource interface {
	CellSearchTemplate() generators.CellSearchTemplate
}

type cellSearchRun struct {
	mu       sync.Mutex
	run      cellsearch.Run
	template generators.CellSearchTemplate
	cancel   context.CancelFunc
	done     chan struct{}
}

// CellSearchSimulator steps through the cell search template on a timer.
type CellSearchSimulator struct {
	templates TemplateSource
	bus       eventbus.EventBus
	logger    *logrus.Logger
	interval  time.Duration
	now       func() time.Time
	retention int
	runs      *repo.SafeMap[string, *cellSearchRun]
	wg        sync.WaitGroup
}

type CellSearchOption func(*CellSearchSimulator)

// WithCellSearchRetention bounds the finished runs kept; the oldest go first.
func WithCellSearchRetention(n int) CellSearchOption {
	return func(s *CellSearchSimulator) {
		if n > 0 {
			s.retention = n
		}
	}
}

func NewCellSearchSimulator(templates TemplateSource, bus eventbus.EventBus, logger *logrus.Logger, interval time.Duration, opts ...CellSearchOption) *CellSearchSimulator {
	if interval <= 0 {
		interval = DefaultCellSearchStepInterval
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &CellSearchSimulator{
		templates: templates,
		bus:       bus,
		logger:    logger,
		interval:  interval,
		now:       time.Now,
		retention: DefaultCellSearchRetention,
		runs:      repo.NewSafeMap[string, *cellSearchRun](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *CellSearchSimulator) Start() cellsearch.Run {
	tpl := s.templates.CellSearchTemplate()
	steps := make([]cellsearch.Step, len(tpl.Steps))
	for i, st := range tpl.Steps {
		steps[i] = cellsearch.Step{
			StepID:     st.StepID,
			StepNumber: st.StepNumber,
			StepName:   st.StepName,
			Layer:      st.Layer,
			Direction:  NormalizeDirection(string(st.Direction)),
			Status:     cellsearch.StepPending,
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &cellSearchRun{
		run: cellsearch.Run{
			ID:         uuid.NewString(),
			TestCaseID: tpl.TestCaseID,
			Status:     cellsearch.RunRunning,
			Steps:      steps,
			StartedAt:  s.now(),
		},
		template: tpl,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	s.runs.Set(r.run.ID, r)
	s.wg.Add(1)
	s.logger.WithField("run_id", r.run.ID).Info("cell search simulation started")
	go s.step(ctx, r)

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.run.Clone()
}

// transition moves step i to status and publishes it; false when the run is over.
func (s *CellSearchSimulator) transition(r *cellSearchRun, i int, status cellsearch.StepStatus) bool {
	r.mu.Lock()
	if r.run.Status != cellsearch.RunRunning {
		r.mu.Unlock()
		return false
	}
	now := s.now()
	st := &r.run.Steps[i]
	st.Status = status
	if status == cellsearch.StepRunning {
		st.StartedAt = &now
		r.run.CurrentStep = i
	} else {
		st.CompletedAt = &now
	}
	evt := cellsearch.StepEvent{RunID: r.run.ID, TestCaseID: r.run.TestCaseID, Step: *st, Detail: r.template.Steps[i]}
	r.mu.Unlock()

	s.bus.Publish(eventbus.Event{
		Type:       eventbus.CellSearchStep,
		Source:     eventbus.SourceTestManager,
		Target:     eventbus.TargetAll,
		Data:       evt,
		Timestamp:  now,
		TestCaseID: evt.TestCaseID,
	})
	return true
}

func (s *CellSearchSimulator) step(ctx context.Context, r *cellSearchRun) {
	defer s.wg.Done()
	defer close(r.done)
	defer s.prune()
	defer r.cancel()
	for i := range r.template.Steps {
		if !s.transition(r, i, cellsearch.StepRunning) {
			return
		}
		if err := wait(ctx, s.interval); err != nil {
			return
		}
		if !s.transition(r, i, cellsearch.StepSuccess) {
			return
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.run.Status == cellsearch.RunRunning {
		end := s.now()
		r.run.Status = cellsearch.RunCompleted
		r.run.EndedAt = &end
	}
}

// prune drops the oldest finished runs beyond the retention limit.
func (s *CellSearchSimulator) prune() {
	finished := []cellsearch.Run{}
	for _, r := range s.runs.Values() {
		r.mu.Lock()
		if r.run.Status != cellsearch.RunRunning {
			finished = append(finished, r.run)
		}
		r.mu.Unlock()
	}
	if len(finished) <= s.retention {
		return
	}
	sort.Slice(finished, func(i, j int) bool { return finished[i].StartedAt.Before(finished[j].StartedAt) })
	for _, run := range finished[:len(finished)-s.retention] {
		s.runs.Delete(run.ID)
	}
}

func (s *CellSearchSimulator) Get(id string) (cellsearch.Run, error) {
	r, ok := s.runs.Get(id)
	if !ok {
		return cellsearch.Run{}, cellsearch.ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.run.Clone(), nil
}

// List returns all runs, newest first.
func (s *CellSearchSimulator) List() []cellsearch.Run {
	out := []cellsearch.Run{}
	for _, r := range s.runs.Values() {
		r.mu.Lock()
		out = append(out, r.run.Clone())
		r.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

func (s *CellSearchSimulator) Stop(id string) (cellsearch.Run, error) {
	r, ok := s.runs.Get(id)
	if !ok {
		return cellsearch.Run{}, cellsearch.ErrNotFound
	}
	r.mu.Lock()
	if r.run.Status != cellsearch.RunRunning {
		r.mu.Unlock()
		return cellsearch.Run{}, cellsearch.ErrInvalidState
	}
	end := s.now()
	r.run.Status = cellsearch.RunStopped
	r.run.EndedAt = &end
	for i := range r.run.Steps {
		if r.run.Steps[i].Status == cellsearch.StepRunning {
			r.run.Steps[i].Status = cellsearch.StepStopped
		}
	}
	out := r.run.Clone()
	r.mu.Unlock()
	r.cancel()
	return out, nil
}

// Wait blocks until the run ends or ctx is done.
func (s *CellSearchSimulator) Wait(ctx context.Context, id string) (cellsearch.Run, error) {
	r, ok := s.runs.Get(id)
	if !ok {
		return cellsearch.Run{}, cellsearch.ErrNotFound
	}
	select {
	case <-r.done:
	case <-ctx.Done():
		return cellsearch.Run{}, ctx.Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.run.Clone(), nil
}

// Close stops running simulations and waits for their goroutines.
func (s *CellSearchSimulator) Close(ctx context.Context) error {
	for _, r := range s.runs.Values() {
		r.mu.Lock()
		id, running := r.run.ID, r.run.Status == cellsearch.RunRunning
		r.mu.Unlock()
		if running {
			_, _ = s.Stop(id)
		}
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
