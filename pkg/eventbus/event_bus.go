package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/labx-platform/testbed/pkg/serrors"
)

type Source string

const (
	SourceTestManager Source = "TEST_MANAGER"
	Source5GLabX      Source = "5GLABX"
	SourceUEAnalysis  Source = "UE_ANALYSIS"
	SourceSystem      Source = "SYSTEM"
)

type Target string

const (
	TargetTestManager Target = "TEST_MANAGER"
	Target5GLabX      Target = "5GLABX"
	TargetUEAnalysis  Target = "UE_ANALYSIS"
	TargetSystem      Target = "SYSTEM"
	TargetAll         Target = "ALL"
)

// AllEvents subscribes a handler to every published event type.
const AllEvents = "ALL"

type Event struct {
	Type        string    `json:"type"`
	Source      Source    `json:"source"`
	Target      Target    `json:"target"`
	Data        any       `json:"data"`
	Timestamp   time.Time `json:"timestamp"`
	ExecutionID string    `json:"executionId,omitempty"`
	TestCaseID  string    `json:"testCaseId,omitempty"`
}

func (e Event) CacheKey() string {
	return fmt.Sprintf("%s_%d", e.Type, e.Timestamp.UnixMilli())
}

type Handler func(Event)

type HandlerE func(Event) error

type EventBus interface {
	Publish(evt Event)
	Subscribe(eventType string, handler Handler) (unsubscribe func())
	Clear()
	SubscribersCount(eventType string) int
	Cache() Cache
}

type EventBusWithError interface {
	EventBus
	PublishE(evt Event) error
	SubscribeE(eventType string, handler HandlerE) (unsubscribe func())
}

var (
	ErrNoSubscribers = serrors.NewError("EVENTBUS_NO_SUBSCRIBERS", "no matching subscribers", "")
)

var publishedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "labx",
	Subsystem: "eventbus",
	Name:      "published_total",
	Help:      "Events published on the data flow bus by type and delivery result.",
}, []string{"type", "result"})

type subscriber struct {
	id      uint64
	handler HandlerE
}

type Option func(*publisherImpl)

func WithCache(c Cache) Option {
	return func(p *publisherImpl) {
		p.cache = c
	}
}

type publisherImpl struct {
	log   *logrus.Logger
	cache Cache

	mu          sync.RWMutex
	nextID      uint64
	subscribers map[string][]subscriber
}

func NewEventPublisher(log *logrus.Logger, opts ...Option) EventBusWithError {
	p := &publisherImpl{
		log:         log,
		subscribers: make(map[string][]subscriber),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.cache == nil {
		p.cache = NewMemoryCache(DefaultCacheSize)
	}
	return p
}

func (p *publisherImpl) Cache() Cache {
	return p.cache
}

func (p *publisherImpl) Subscribe(eventType string, handler Handler) func() {
	if handler == nil {
		panic("handler must not be nil")
	}
	return p.SubscribeE(eventType, func(evt Event) error {
		handler(evt)
		return nil
	})
}

func (p *publisherImpl) SubscribeE(eventType string, handler HandlerE) func() {
	if handler == nil {
		panic("handler must not be nil")
	}
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.subscribers[eventType] = append(p.subscribers[eventType], subscriber{id: id, handler: handler})
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { p.unsubscribe(eventType, id) })
	}
}

func (p *publisherImpl) unsubscribe(eventType string, id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	subs := p.subscribers[eventType]
	for i, s := range subs {
		if s.id == id {
			subs = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(subs) == 0 {
		delete(p.subscribers, eventType)
		return
	}
	p.subscribers[eventType] = subs
}

// snapshot returns type subscribers followed by ALL subscribers.
func (p *publisherImpl) snapshot(eventType string) []subscriber {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]subscriber, 0, len(p.subscribers[eventType])+len(p.subscribers[AllEvents]))
	out = append(out, p.subscribers[eventType]...)
	if eventType != AllEvents {
		out = append(out, p.subscribers[AllEvents]...)
	}
	return out
}

func (p *publisherImpl) prepare(evt Event) Event {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	if evt.Target == "" {
		evt.Target = TargetAll
	}
	if p.cache != nil {
		if err := p.cache.Put(context.Background(), evt); err != nil && p.log != nil {
			p.log.WithError(err).Warnf("eventbus: failed to cache event %s", evt.Type)
		}
	}
	return evt
}

func (p *publisherImpl) Publish(evt Event) {
	evt = p.prepare(evt)

	handled := false
	for _, sub := range p.snapshot(evt.Type) {
		handled = true
		func() {
			defer func() {
				if r := recover(); r != nil && p.log != nil {
					p.log.Errorf("eventbus: handler for %s panicked: %v", evt.Type, r)
				}
			}()
			if err := sub.handler(evt); err != nil && p.log != nil {
				p.log.WithError(err).Errorf("eventbus: handler for %s failed", evt.Type)
			}
		}()
	}

	if !handled {
		publishedEvents.WithLabelValues(evt.Type, "unhandled").Inc()
		if p.log != nil {
			p.log.Warnf("eventbus.Publish: no matching subscribers for event %s", evt.Type)
		}
		return
	}
	publishedEvents.WithLabelValues(evt.Type, "handled").Inc()
}

func (p *publisherImpl) PublishE(evt Event) error {
	evt = p.prepare(evt)

	subs := p.snapshot(evt.Type)
	if len(subs) == 0 {
		publishedEvents.WithLabelValues(evt.Type, "unhandled").Inc()
		return ErrNoSubscribers
	}

	var errs []error
	for _, sub := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					errs = append(errs, fmt.Errorf("eventbus: handler for %s panicked: %v", evt.Type, r))
				}
			}()
			if err := sub.handler(evt); err != nil {
				errs = append(errs, err)
			}
		}()
	}

	publishedEvents.WithLabelValues(evt.Type, "handled").Inc()
	return errors.Join(errs...)
}

func (p *publisherImpl) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = make(map[string][]subscriber)
}

func (p *publisherImpl) SubscribersCount(eventType string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subscribers[eventType])
}
