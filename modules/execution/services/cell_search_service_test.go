package services_test

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labx-platform/testbed/modules/execution/domain/entities/cellsearch"
	"github.com/labx-platform/testbed/modules/execution/services"
	"github.com/labx-platform/testbed/modules/testcases/domain/generators"
	"github.com/labx-platform/testbed/pkg/eventbus"
)

type templateSource struct{}

func (templateSource) CellSearchTemplate() generators.CellSearchTemplate {
	return generators.NewCellSearchTemplate()
}

func TestCellSearchSimulator_RunsAllSteps(t *testing.T) {
	bus := eventbus.NewEventPublisher(logrus.New())
	rec := &recorder{}
	bus.Subscribe(eventbus.CellSearchStep, rec.handle)
	sim := services.NewCellSearchSimulator(templateSource{}, bus, logrus.New(), time.Millisecond)

	run := sim.Start()
	assert.Equal(t, cellsearch.RunRunning, run.Status)
	steps := len(generators.NewCellSearchTemplate().Steps)
	require.Len(t, run.Steps, steps)

	done, err := sim.Wait(waitCtx(t), run.ID)
	require.NoError(t, err)
	assert.Equal(t, cellsearch.RunCompleted, done.Status)
	for _, st := range done.Steps {
		assert.Equal(t, cellsearch.StepSuccess, st.Status, st.StepName)
		assert.NotNil(t, st.CompletedAt)
	}
	assert.Len(t, rec.snapshot(), 2*steps)
	assert.Len(t, sim.List(), 1)
}

func TestCellSearchSimulator_Stop(t *testing.T) {
	sim := services.NewCellSearchSimulator(templateSource{}, eventbus.NewEventPublisher(logrus.New()), logrus.New(), time.Hour)
	run := sim.Start()

	require.Eventually(t, func() bool {
		r, err := sim.Get(run.ID)
		return err == nil && r.Steps[0].Status == cellsearch.StepRunning
	}, 2*time.Second, 5*time.Millisecond)

	stopped, err := sim.Stop(run.ID)
	require.NoError(t, err)
	assert.Equal(t, cellsearch.RunStopped, stopped.Status)
	assert.Equal(t, cellsearch.StepStopped, stopped.Steps[0].Status)
	assert.Equal(t, cellsearch.StepPending, stopped.Steps[1].Status)

	_, err = sim.Stop(run.ID)
	require.ErrorIs(t, err, cellsearch.ErrInvalidState)
	_, err = sim.Get("missing")
	require.ErrorIs(t, err, cellsearch.ErrNotFound)
}

func TestCellSearchSimulator_KeepsRecentFinishedRuns(t *testing.T) {
	sim := services.NewCellSearchSimulator(templateSource{}, eventbus.NewEventPublisher(logrus.New()), logrus.New(), time.Microsecond,
		services.WithCellSearchRetention(3))

	ids := []string{}
	for i := 0; i < 5; i++ {
		run := sim.Start()
		done, err := sim.Wait(waitCtx(t), run.ID)
		require.NoError(t, err)
		assert.Equal(t, cellsearch.RunCompleted, done.Status)
		ids = append(ids, run.ID)
		time.Sleep(2 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return len(sim.List()) == 3 }, 2*time.Second, 5*time.Millisecond)
	_, err := sim.Get(ids[0])
	require.ErrorIs(t, err, cellsearch.ErrNotFound)
	_, err = sim.Get(ids[4])
	require.NoError(t, err)
}

func TestCellSearchSimulator_CloseStopsRunningSearches(t *testing.T) {
	sim := services.NewCellSearchSimulator(templateSource{}, eventbus.NewEventPublisher(logrus.New()), logrus.New(), time.Hour)
	first := sim.Start()
	second := sim.Start()

	require.NoError(t, sim.Close(waitCtx(t)))
	for _, id := range []string{first.ID, second.ID} {
		r, err := sim.Get(id)
		require.NoError(t, err)
		assert.Equal(t, cellsearch.RunStopped, r.Status)
	}
}
