package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labx-platform/testbed/modules/execution/domain/entities/dataflow"
	"github.com/labx-platform/testbed/modules/execution/services"
	"github.com/labx-platform/testbed/pkg/eventbus"
	"github.com/labx-platform/testbed/pkg/serrors"
)

func flow() dataflow.TestExecutionData {
	return dataflow.TestExecutionData{
		TestCaseID:   "NR-REG-1",
		TestCaseName: "5G registration",
		Messages: []dataflow.TestMessage{
			{ID: "m1", Layer: "rrc", Direction: "UL", MessageType: "RRCSetupRequest",
				InformationElements: []dataflow.InformationElement{{Name: "ue_identity", Value: "0x1"}}},
			{ID: "m2", Layer: "RRC", Direction: "DL", MessageType: "RRCSetup"},
			{ID: "m3", Layer: "NAS", Direction: "UL", MessageType: "RegistrationRequest"},
		},
	}
}

func newManager(t *testing.T, interval time.Duration) (*services.DataFlowManager, eventbus.EventBus, *recorder) {
	t.Helper()
	bus := eventbus.NewEventPublisher(logrus.New())
	rec := &recorder{}
	bus.Subscribe(eventbus.AllEvents, rec.handle)
	m := services.NewDataFlowManager(bus, logrus.New(), interval)
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	return m, bus, rec
}

func TestDataFlowManager_DeliversFlow(t *testing.T) {
	m, bus, rec := newManager(t, 5*time.Millisecond)
	completed := make(chan eventbus.Event, 1)
	bus.Subscribe(eventbus.TestExecutionCompleted, func(e eventbus.Event) { completed <- e })

	started, err := m.StartTestExecution(flow())
	require.NoError(t, err)
	assert.Regexp(t, `^exec_\d+_[a-z0-9]{9}$`, started.ExecutionID)
	assert.Equal(t, "5G_NR", started.Technology)
	assert.Equal(t, "PROTOCOL", started.Category)
	assert.Equal(t, dataflow.StatusRunning, started.Status)

	select {
	case e := <-completed:
		assert.Equal(t, started.ExecutionID, e.ExecutionID)
	case <-time.After(5 * time.Second):
		t.Fatal("flow did not complete")
	}

	history := m.History()
	require.Len(t, history, 1)
	assert.Equal(t, dataflow.StatusCompleted, history[0].Status)
	assert.Equal(t, 3, history[0].Delivered)

	want := []string{eventbus.TestExecutionStarted,
		eventbus.MessageTo5GLabX, eventbus.MessageToUEAnalysis, "LAYER_RRC_UPDATE",
		eventbus.MessageTo5GLabX, eventbus.MessageToUEAnalysis, "LAYER_RRC_UPDATE",
		eventbus.MessageTo5GLabX, eventbus.MessageToUEAnalysis, "LAYER_NAS_UPDATE",
		eventbus.TestExecutionCompleted,
	}
	require.Eventually(t, func() bool { return len(rec.snapshot()) == len(want) }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, want, rec.snapshot())

	cached, err := m.CachedEvents(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, cached, len(want))

	analysis, err := m.EndToEndAnalysis(started.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, 3, analysis.TotalMessages)
	assert.Equal(t, []dataflow.LayerCount{{Layer: "RRC", Messages: 2}, {Layer: "NAS", Messages: 1}}, analysis.Layers)
	assert.Equal(t, 0.95, analysis.Correlation)
	assert.Equal(t, 45, analysis.MatchedMessages)
	assert.Equal(t, 50, analysis.ComparedTotal)

	require.NoError(t, m.ClearCache(context.Background()))
	cached, err = m.CachedEvents(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, cached)

	_, err = m.EndToEndAnalysis("exec_0_missing")
	require.ErrorIs(t, err, dataflow.ErrNotFound)
}

func TestDataFlowManager_StopAndReplace(t *testing.T) {
	m, _, rec := newManager(t, time.Hour)

	_, err := m.StopTestExecution("")
	require.ErrorIs(t, err, dataflow.ErrNotRunning)

	first, err := m.StartTestExecution(flow())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		cur, ok := m.CurrentExecution()
		return ok && cur.Delivered == 1
	}, 2*time.Second, 5*time.Millisecond)

	second := flow()
	second.ExecutionID = "exec_custom"
	_, err = m.StartTestExecution(second)
	require.NoError(t, err)

	history := m.History()
	require.Len(t, history, 1)
	assert.Equal(t, first.ExecutionID, history[0].ExecutionID)
	assert.Equal(t, dataflow.StatusStopped, history[0].Status)

	_, err = m.StopTestExecution("exec_other")
	require.ErrorIs(t, err, dataflow.ErrNotFound)
	stopped, err := m.StopTestExecution("exec_custom")
	require.NoError(t, err)
	assert.Equal(t, dataflow.StatusStopped, stopped.Status)

	types := rec.snapshot()
	assert.Equal(t, eventbus.TestExecutionStarted, types[0])
	assert.Contains(t, types, eventbus.TestExecutionStopped)
}

func TestDataFlowManager_Validation(t *testing.T) {
	m, _, _ := newManager(t, time.Millisecond)
	_, err := m.StartTestExecution(dataflow.TestExecutionData{})
	var verrs serrors.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs, "TestCaseID")
	assert.Contains(t, verrs, "Messages")
}
