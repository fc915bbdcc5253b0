package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/labx-platform/testbed/modules/execution/domain/entities/dataflow"
	"github.com/labx-platform/testbed/modules/layers/domain/entities/layer"
	"github.com/labx-platform/testbed/pkg/eventbus"
	"github.com/labx-platform/testbed/pkg/repo"
)

const defaultMaxTracked = 200

var samplesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "labx",
	Subsystem: "layers",
	Name:      "samples_total",
	Help:      "Layer samples recorded by the tracker.",
}, []string{"layer"})

type TrackerOption func(*Tracker)

func WithTrackerClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		t.now = now
	}
}

func WithTrackerLogger(logger *logrus.Logger) TrackerOption {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithMaxTracked bounds the number of executions kept; the least recently updated is evicted first.
func WithMaxTracked(n int) TrackerOption {
	return func(t *Tracker) {
		if n > 0 {
			t.maxTracked = n
		}
	}
}

// Tracker keeps the latest MAC and PHY data of every execution seen on the bus.
type Tracker struct {
	snapshots  *repo.SafeMap[string, layer.Snapshot]
	unsubs     []func()
	now        func() time.Time
	logger     *logrus.Logger
	maxTracked int
}

func NewTracker(bus eventbus.EventBus, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		snapshots:  repo.NewSafeMap[string, layer.Snapshot](),
		now:        time.Now,
		logger:     logrus.StandardLogger(),
		maxTracked: defaultMaxTracked,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.unsubs = []func(){
		bus.Subscribe(eventbus.LayerUpdate("MAC"), t.onMac),
		bus.Subscribe(eventbus.LayerUpdate("PHY"), t.onPhy),
		bus.Subscribe(eventbus.MessageToUEAnalysis, t.onUE),
	}
	return t
}

func (t *Tracker) Name() string {
	return "layers-tracker"
}

// Run keeps the subscriptions alive until ctx is done.
func (t *Tracker) Run(ctx context.Context) error {
	<-ctx.Done()
	t.Close()
	return nil
}

func (t *Tracker) Close() {
	for _, unsub := range t.unsubs {
		unsub()
	}
}

func (t *Tracker) Mac(_ context.Context, executionID string) (layer.MacView, error) {
	s, ok := t.snapshots.Get(executionID)
	if !ok || s.Mac == nil {
		return layer.MacView{}, layer.ErrNoData
	}
	return *s.Clone().Mac, nil
}

func (t *Tracker) Phy(_ context.Context, executionID string) (layer.PhyView, error) {
	s, ok := t.snapshots.Get(executionID)
	if !ok || s.Phy == nil {
		return layer.PhyView{}, layer.ErrNoData
	}
	return *s.Clone().Phy, nil
}

// Executions lists tracked execution ids, most recently updated first.
func (t *Tracker) Executions() []string {
	all := t.snapshots.Values()
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })
	ids := make([]string, len(all))
	for i, s := range all {
		ids[i] = s.ExecutionID
	}
	return ids
}

func ieMap(data any) (map[string]any, bool) {
	switch p := data.(type) {
	case eventbus.MessagePayload:
		return p.IEMap, true
	case *eventbus.MessagePayload:
		if p == nil {
			return nil, false
		}
		return p.IEMap, true
	case map[string]any:
		if ies, ok := p["ieMap"].(map[string]any); ok {
			return ies, true
		}
	}
	return nil, false
}

func (t *Tracker) onMac(evt eventbus.Event) {
	ies, ok := ieMap(evt.Data)
	if !ok || evt.ExecutionID == "" {
		return
	}
	data := layer.ParseMacLayerData(ies)
	t.update(evt.ExecutionID, func(s *layer.Snapshot, at time.Time) {
		s.AddMac(data, at)
	})
	samplesTotal.WithLabelValues("MAC").Inc()
}

func (t *Tracker) onPhy(evt eventbus.Event) {
	ies, ok := ieMap(evt.Data)
	if !ok || evt.ExecutionID == "" {
		return
	}
	data := layer.ParseUEPhyLayerData(ies)
	t.update(evt.ExecutionID, func(s *layer.Snapshot, at time.Time) {
		s.AddPhy(data, at)
	})
	samplesTotal.WithLabelValues("PHY").Inc()
}

func (t *Tracker) onUE(evt eventbus.Event) {
	var msg dataflow.UELogMessage
	switch p := evt.Data.(type) {
	case dataflow.UELogMessage:
		msg = p
	case *dataflow.UELogMessage:
		if p == nil {
			return
		}
		msg = *p
	default:
		return
	}
	id := evt.ExecutionID
	if id == "" {
		id = msg.ExecutionID
	}
	if id == "" {
		return
	}
	t.update(id, func(s *layer.Snapshot, at time.Time) {
		if s.UE == nil {
			s.UE = &layer.UEActivity{EventCounts: map[string]int{}}
		}
		s.UE.IMSI = msg.Identity.IMSI
		s.UE.LastEventType = msg.EventType
		s.UE.LastLayer = strings.ToUpper(msg.Layer)
		s.UE.BatteryLevel = msg.Power.BatteryLevel
		s.UE.PowerHeadroom = msg.Power.PowerHeadroom
		s.UE.EventCounts[msg.EventType]++
		s.UE.UpdatedAt = at
		s.UpdatedAt = at
	})
}

func (t *Tracker) update(executionID string, fn func(*layer.Snapshot, time.Time)) {
	at := t.now()
	t.snapshots.Update(executionID, func(s layer.Snapshot, ok bool) (layer.Snapshot, bool) {
		if !ok {
			s = layer.Snapshot{ExecutionID: executionID}
		}
		// copy on write: readers may still hold the previous views
		s = s.Clone()
		fn(&s, at)
		return s, true
	})
	if t.snapshots.Len() > t.maxTracked {
		t.evictOldest()
	}
}

func (t *Tracker) evictOldest() {
	var oldest *layer.Snapshot
	for _, s := range t.snapshots.Values() {
		if oldest == nil || s.UpdatedAt.Before(oldest.UpdatedAt) {
			oldest = &s
		}
	}
	if oldest != nil {
		t.snapshots.Delete(oldest.ExecutionID)
		t.logger.WithField("execution_id", oldest.ExecutionID).Debug("layers: evicted execution")
	}
}
