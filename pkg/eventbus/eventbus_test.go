package eventbus

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/labx-platform/testbed/pkg/logging"
)

func TestPublisher_PublishWithoutSubscribersWarns(t *testing.T) {
	logBuffer := bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(&logBuffer)
	log.SetLevel(logrus.WarnLevel)
	publisher := NewEventPublisher(log)
	publisher.Subscribe(MessageTo5GLabX, func(Event) {
		t.Error("should not be called")
	})

	publisher.Publish(Event{Type: MessageToUEAnalysis})

	output := logBuffer.String()
	require.True(t, strings.Contains(output, "eventbus.Publish: no matching subscribers"), output)
}

func TestPublisher_TypeSubscribersRunBeforeAll(t *testing.T) {
	publisher := NewEventPublisher(logging.ConsoleLogger(logrus.WarnLevel))
	var order []string
	publisher.Subscribe(AllEvents, func(Event) { order = append(order, "all") })
	publisher.Subscribe(TestExecutionStarted, func(Event) { order = append(order, "first") })
	publisher.Subscribe(TestExecutionStarted, func(Event) { order = append(order, "second") })

	publisher.Publish(Event{Type: TestExecutionStarted, Source: SourceTestManager})

	require.Equal(t, []string{"first", "second", "all"}, order)
}

func TestPublisher_StampsTimestampAndTarget(t *testing.T) {
	publisher := NewEventPublisher(nil)
	var got Event
	publisher.Subscribe(ExecutionUpdate, func(e Event) { got = e })

	before := time.Now()
	publisher.Publish(Event{Type: ExecutionUpdate, Data: "x"})

	require.False(t, got.Timestamp.Before(before))
	require.Equal(t, TargetAll, got.Target)
	require.Equal(t, "x", got.Data)
}

func TestPublisher_UnsubscribeRemovesEmptySet(t *testing.T) {
	publisher := NewEventPublisher(nil)
	unsubscribe := publisher.Subscribe(CellSearchStep, func(Event) {})
	require.Equal(t, 1, publisher.SubscribersCount(CellSearchStep))

	unsubscribe()
	unsubscribe()
	require.Equal(t, 0, publisher.SubscribersCount(CellSearchStep))

	impl := publisher.(*publisherImpl)
	_, exists := impl.subscribers[CellSearchStep]
	require.False(t, exists)
}

func TestPublisher_UnsubscribeKeepsOtherHandlers(t *testing.T) {
	publisher := NewEventPublisher(nil)
	calls := 0
	first := publisher.Subscribe(LoadTestUpdate, func(Event) { calls += 10 })
	publisher.Subscribe(LoadTestUpdate, func(Event) { calls++ })

	first()
	publisher.Publish(Event{Type: LoadTestUpdate})
	require.Equal(t, 1, calls)
}

func TestPublisher_PanicIsRecoveredAndLogged(t *testing.T) {
	logBuffer := bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(&logBuffer)
	publisher := NewEventPublisher(log)

	secondCalled := false
	publisher.Subscribe(DeploymentUpdate, func(Event) { panic("boom") })
	publisher.Subscribe(DeploymentUpdate, func(Event) { secondCalled = true })

	require.NotPanics(t, func() {
		publisher.Publish(Event{Type: DeploymentUpdate})
	})
	require.True(t, secondCalled)
	require.Contains(t, logBuffer.String(), "panicked: boom")
}

func TestPublisher_PanickingOnlySubscriberCountsAsHandled(t *testing.T) {
	logBuffer := bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(&logBuffer)
	publisher := NewEventPublisher(log)
	publisher.Subscribe(LoadTestUpdate, func(Event) { panic("boom") })

	handled := testutil.ToFloat64(publishedEvents.WithLabelValues(LoadTestUpdate, "handled"))
	unhandled := testutil.ToFloat64(publishedEvents.WithLabelValues(LoadTestUpdate, "unhandled"))
	publisher.Publish(Event{Type: LoadTestUpdate})

	require.Contains(t, logBuffer.String(), "panicked: boom")
	require.NotContains(t, logBuffer.String(), "no matching subscribers")
	require.InDelta(t, handled+1, testutil.ToFloat64(publishedEvents.WithLabelValues(LoadTestUpdate, "handled")), 1e-9)
	require.InDelta(t, unhandled, testutil.ToFloat64(publishedEvents.WithLabelValues(LoadTestUpdate, "unhandled")), 1e-9)
}

func TestPublisher_PublishE(t *testing.T) {
	t.Run("no subscribers", func(t *testing.T) {
		publisher := NewEventPublisher(nil)
		err := publisher.PublishE(Event{Type: UEHandover})
		require.ErrorIs(t, err, ErrNoSubscribers)
	})

	t.Run("joins handler errors and panics", func(t *testing.T) {
		publisher := NewEventPublisher(nil)
		handlerErr := errors.New("handler failed")
		publisher.SubscribeE(UEHandover, func(Event) error { return handlerErr })
		publisher.SubscribeE(UEHandover, func(Event) error { panic("kaboom") })
		publisher.SubscribeE(UEHandover, func(Event) error { return nil })

		err := publisher.PublishE(Event{Type: UEHandover})
		require.Error(t, err)
		require.ErrorIs(t, err, handlerErr)
		require.Contains(t, err.Error(), "kaboom")
	})

	t.Run("success", func(t *testing.T) {
		publisher := NewEventPublisher(nil)
		publisher.Subscribe(AllEvents, func(Event) {})
		require.NoError(t, publisher.PublishE(Event{Type: UEHandover}))
	})
}

func TestPublisher_CachesEvents(t *testing.T) {
	cache := NewMemoryCache(10)
	publisher := NewEventPublisher(nil, WithCache(cache))
	ts := time.UnixMilli(1700000000123)

	publisher.Publish(Event{Type: MessageTo5GLabX, Timestamp: ts})

	evt, ok, err := publisher.Cache().Get(context.Background(), "MESSAGE_TO_5GLABX_1700000000123")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, MessageTo5GLabX, evt.Type)
}

func TestPublisher_Clear(t *testing.T) {
	publisher := NewEventPublisher(nil)
	publisher.Subscribe(UEConnected, func(Event) {})
	publisher.Subscribe(AllEvents, func(Event) {})
	publisher.Clear()
	require.Equal(t, 0, publisher.SubscribersCount(UEConnected))
	require.Equal(t, 0, publisher.SubscribersCount(AllEvents))
}

func TestMemoryCache_EvictsOldest(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(2)
	base := time.UnixMilli(1000)
	for i := 0; i < 3; i++ {
		require.NoError(t, cache.Put(ctx, Event{Type: "E", Timestamp: base.Add(time.Duration(i) * time.Millisecond)}))
	}

	events, err := cache.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, int64(1001), events[0].Timestamp.UnixMilli())
	require.Equal(t, int64(1002), events[1].Timestamp.UnixMilli())

	_, ok, _ := cache.Get(ctx, "E_1000")
	require.False(t, ok)

	last, err := cache.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, last, 1)
	require.Equal(t, int64(1002), last[0].Timestamp.UnixMilli())

	require.NoError(t, cache.Clear(ctx))
	events, _ = cache.Recent(ctx, 0)
	require.Empty(t, events)
}

func TestLayerUpdate(t *testing.T) {
	require.Equal(t, "LAYER_MAC_UPDATE", LayerUpdate("mac"))
	require.Equal(t, "LAYER_PHY_UPDATE", LayerUpdate(" PHY "))
}
