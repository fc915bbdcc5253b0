package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labx-platform/testbed/modules/execution/domain/entities/dataflow"
	"github.com/labx-platform/testbed/modules/layers/domain/entities/layer"
	"github.com/labx-platform/testbed/modules/layers/services"
	"github.com/labx-platform/testbed/pkg/eventbus"
)

type tick struct{ t time.Time }

func (c *tick) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTracker(t *testing.T, opts ...services.TrackerOption) (*services.Tracker, eventbus.EventBus) {
	t.Helper()
	bus := eventbus.NewEventPublisher(logrus.New())
	clock := &tick{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	opts = append([]services.TrackerOption{services.WithTrackerClock(clock.now)}, opts...)
	tr := services.NewTracker(bus, opts...)
	t.Cleanup(tr.Close)
	return tr, bus
}

func layerEvent(layerName, executionID string, ies map[string]any) eventbus.Event {
	return eventbus.Event{
		Type:        eventbus.LayerUpdate(layerName),
		Source:      eventbus.SourceTestManager,
		Target:      eventbus.TargetAll,
		ExecutionID: executionID,
		Data:        eventbus.MessagePayload{Layer: layerName, IEMap: ies},
	}
}

func TestTracker_RecordsMacAndPhy(t *testing.T) {
	tr, bus := newTracker(t)
	ctx := context.Background()

	_, err := tr.Mac(ctx, "exec-1")
	require.ErrorIs(t, err, layer.ErrNoData)

	for i := 0; i < layer.TrendWindow+3; i++ {
		bus.Publish(layerEvent("MAC", "exec-1", map[string]any{"harq_retransmission_count": i % 2, "mac_throughput": float64(i)}))
	}
	bus.Publish(layerEvent("PHY", "exec-1", map[string]any{"rsrp": -72.0, "sinr": 22.0}))
	bus.Publish(layerEvent("RRC", "exec-1", map[string]any{"rsrp": -50.0}))
	bus.Publish(layerEvent("MAC", "", map[string]any{}))

	mac, err := tr.Mac(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, layer.TrendWindow+3, mac.Samples)
	require.Len(t, mac.Trend, layer.TrendWindow)
	assert.InDelta(t, 3, mac.Trend[0].Throughput, 1e-9)
	assert.Equal(t, 0, mac.Latest.HARQ.RetransmissionCount)
	assert.Equal(t, layer.GradeExcellent, mac.Latest.HARQStatus)

	phy, err := tr.Phy(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, 1, phy.Samples)
	assert.InDelta(t, -72, phy.Latest.Signal.RSRP, 1e-9)
	assert.Equal(t, layer.GradeGood, phy.Latest.SignalStatus)
	assert.Nil(t, phy.UE)

	assert.Equal(t, []string{"exec-1"}, tr.Executions())
}

func TestTracker_UEActivityAttachesToPhy(t *testing.T) {
	tr, bus := newTracker(t)
	msg := dataflow.UELogMessage{
		ID:          "m1",
		EventType:   eventbus.UERegistration,
		Layer:       "nas",
		Identity:    dataflow.UEIdentity{IMSI: "001010000000001"},
		Power:       dataflow.UEPower{BatteryLevel: 70, PowerHeadroom: 12},
		ExecutionID: "exec-ue",
	}
	bus.Publish(eventbus.Event{Type: eventbus.MessageToUEAnalysis, Data: msg})
	bus.Publish(eventbus.Event{Type: eventbus.MessageToUEAnalysis, Data: &msg, ExecutionID: "exec-ue"})
	bus.Publish(eventbus.Event{Type: eventbus.MessageToUEAnalysis, Data: "garbage", ExecutionID: "exec-ue"})

	_, err := tr.Phy(context.Background(), "exec-ue")
	require.ErrorIs(t, err, layer.ErrNoData)

	bus.Publish(layerEvent("PHY", "exec-ue", nil))
	phy, err := tr.Phy(context.Background(), "exec-ue")
	require.NoError(t, err)
	require.NotNil(t, phy.UE)
	assert.Equal(t, "001010000000001", phy.UE.IMSI)
	assert.Equal(t, "NAS", phy.UE.LastLayer)
	assert.Equal(t, 70, phy.UE.BatteryLevel)
	assert.Equal(t, map[string]int{eventbus.UERegistration: 2}, phy.UE.EventCounts)
}

func TestTracker_EvictsLeastRecentlyUpdated(t *testing.T) {
	tr, bus := newTracker(t, services.WithMaxTracked(2))
	bus.Publish(layerEvent("MAC", "a", nil))
	bus.Publish(layerEvent("MAC", "b", nil))
	bus.Publish(layerEvent("MAC", "a", nil))
	bus.Publish(layerEvent("MAC", "c", nil))

	assert.Equal(t, []string{"c", "a"}, tr.Executions())
	_, err := tr.Mac(context.Background(), "b")
	assert.ErrorIs(t, err, layer.ErrNoData)
}

func TestTracker_RunUnsubscribesOnCancel(t *testing.T) {
	bus := eventbus.NewEventPublisher(logrus.New())
	tr := services.NewTracker(bus)
	require.Equal(t, 1, bus.SubscribersCount(eventbus.LayerUpdate("MAC")))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx) }()
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 0, bus.SubscribersCount(eventbus.LayerUpdate("MAC")))
	assert.Equal(t, 0, bus.SubscribersCount(eventbus.MessageToUEAnalysis))
}
