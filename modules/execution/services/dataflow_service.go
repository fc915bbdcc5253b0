package services

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/labx-platform/testbed/modules/execution/domain/entities/dataflow"
	"github.com/labx-platform/testbed/pkg/eventbus"
	"github.com/labx-platform/testbed/pkg/serrors"
)

const (
	DefaultMessageInterval = time.Second
	maxFlowHistory         = 50

	analysisCorrelation = 0.95
	analysisMatched     = 45
	analysisCompared    = 50
)

type flowRun struct {
	data   dataflow.TestExecutionData
	cancel context.CancelFunc
	done   chan struct{}
}

// DataFlowManager replays externally supplied message flows onto the bus.
// At most one flow runs at a time; starting another stops the current one.
type DataFlowManager struct {
	bus      eventbus.EventBus
	logger   *logrus.Logger
	interval time.Duration
	now      func() time.Time
	rnd      *rand.Rand

	mu      sync.Mutex
	current *flowRun
	history []dataflow.TestExecutionData
}

func NewDataFlowManager(bus eventbus.EventBus, logger *logrus.Logger, interval time.Duration) *DataFlowManager {
	if interval <= 0 {
		interval = DefaultMessageInterval
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &DataFlowManager{
		bus:      bus,
		logger:   logger,
		interval: interval,
		now:      time.Now,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// StartTestExecution validates the flow and starts delivering its messages.
func (m *DataFlowManager) StartTestExecution(data dataflow.TestExecutionData) (dataflow.TestExecutionData, error) {
	data.Normalize()
	if errs := serrors.ValidateStruct(data); errs != nil {
		return dataflow.TestExecutionData{}, errs
	}

	m.mu.Lock()
	var stopped *dataflow.TestExecutionData
	if m.current != nil && m.current.data.Status == dataflow.StatusRunning {
		prev := m.stopLocked()
		stopped = &prev
	}
	if data.ExecutionID == "" {
		data.ExecutionID = fmt.Sprintf("exec_%d_%s", m.now().UnixMilli(), randomSuffix(m.rnd, 9))
	}
	data.Status = dataflow.StatusRunning
	data.StartTime = m.now()
	data.EndTime = nil
	data.Delivered = 0
	ctx, cancel := context.WithCancel(context.Background())
	fr := &flowRun{data: data, cancel: cancel, done: make(chan struct{})}
	m.current = fr
	m.mu.Unlock()

	if stopped != nil {
		m.publishStopped(*stopped)
	}
	m.publish(eventbus.TestExecutionStarted, eventbus.SourceTestManager, eventbus.TargetAll, data, eventbus.StatusPayload{
		Status: string(dataflow.StatusRunning),
	})
	m.logger.WithFields(logrus.Fields{
		"execution_id": data.ExecutionID,
		"test_case_id": data.TestCaseID,
		"messages":     len(data.Messages),
	}).Info("data flow started")

	go m.deliver(ctx, fr)
	return data, nil
}

func (m *DataFlowManager) deliver(ctx context.Context, fr *flowRun) {
	defer close(fr.done)
	defer fr.cancel()
	for i, msg := range fr.data.Messages {
		if i > 0 {
			if err := wait(ctx, m.interval); err != nil {
				return
			}
		}
		m.mu.Lock()
		if fr.data.Status != dataflow.StatusRunning {
			m.mu.Unlock()
			return
		}
		fr.data.Delivered++
		data := fr.data
		m.mu.Unlock()
		m.deliverMessage(data, msg)
	}

	m.mu.Lock()
	if fr.data.Status != dataflow.StatusRunning {
		m.mu.Unlock()
		return
	}
	end := m.now()
	fr.data.Status = dataflow.StatusCompleted
	fr.data.EndTime = &end
	data := fr.data
	m.remember(data)
	m.mu.Unlock()

	m.publish(eventbus.TestExecutionCompleted, eventbus.SourceTestManager, eventbus.TargetAll, data, eventbus.StatusPayload{
		Status: string(dataflow.StatusCompleted), Progress: 100,
	})
}

func (m *DataFlowManager) deliverMessage(data dataflow.TestExecutionData, msg dataflow.TestMessage) {
	ies := msg.IEMap()
	protocol := msg.Protocol
	if protocol == "" {
		protocol = msg.Layer
	}
	m.publish(eventbus.MessageTo5GLabX, eventbus.SourceTestManager, eventbus.Target5GLabX, data, eventbus.MessagePayload{
		Layer: msg.Layer, Protocol: protocol, Message: msg, IEMap: ies,
	})
	m.publish(eventbus.MessageToUEAnalysis, eventbus.SourceTestManager, eventbus.TargetUEAnalysis, data,
		ToUELogMessage(data.ExecutionID, msg.ID, msg.Layer, msg.Direction, msg.MessageType, ies, m.now()))
	m.publish(eventbus.LayerUpdate(msg.Layer), eventbus.SourceTestManager, eventbus.TargetAll, data, eventbus.MessagePayload{
		Layer: msg.Layer, Protocol: protocol, Message: msg, IEMap: ies,
	})
}

// remember must be called with m.mu held.
func (m *DataFlowManager) remember(data dataflow.TestExecutionData) {
	m.history = append(m.history, data)
	if len(m.history) > maxFlowHistory {
		m.history = m.history[len(m.history)-maxFlowHistory:]
	}
}

func (m *DataFlowManager) stopLocked() dataflow.TestExecutionData {
	fr := m.current
	end := m.now()
	fr.data.Status = dataflow.StatusStopped
	fr.data.EndTime = &end
	fr.cancel()
	data := fr.data
	m.remember(data)
	return data
}

func (m *DataFlowManager) publishStopped(data dataflow.TestExecutionData) {
	m.publish(eventbus.TestExecutionStopped, eventbus.SourceTestManager, eventbus.TargetAll, data, eventbus.StatusPayload{
		Status: string(dataflow.StatusStopped), Progress: data.Delivered * 100 / max(len(data.Messages), 1),
	})
}

// StopTestExecution stops the running flow. An empty id stops whatever runs.
func (m *DataFlowManager) StopTestExecution(executionID string) (dataflow.TestExecutionData, error) {
	m.mu.Lock()
	if m.current == nil || m.current.data.Status != dataflow.StatusRunning {
		m.mu.Unlock()
		return dataflow.TestExecutionData{}, dataflow.ErrNotRunning
	}
	if executionID != "" && m.current.data.ExecutionID != executionID {
		m.mu.Unlock()
		return dataflow.TestExecutionData{}, dataflow.ErrNotFound
	}
	data := m.stopLocked()
	m.mu.Unlock()

	m.publishStopped(data)
	return data, nil
}

func (m *DataFlowManager) CurrentExecution() (dataflow.TestExecutionData, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return dataflow.TestExecutionData{}, false
	}
	return m.current.data, true
}

// History returns finished flows, newest first.
func (m *DataFlowManager) History() []dataflow.TestExecutionData {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]dataflow.TestExecutionData, 0, len(m.history))
	for i := len(m.history) - 1; i >= 0; i-- {
		out = append(out, m.history[i])
	}
	return out
}

func (m *DataFlowManager) find(executionID string) (dataflow.TestExecutionData, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil && m.current.data.ExecutionID == executionID {
		return m.current.data, true
	}
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].ExecutionID == executionID {
			return m.history[i], true
		}
	}
	return dataflow.TestExecutionData{}, false
}

func (m *DataFlowManager) CachedEvents(ctx context.Context, n int) ([]eventbus.Event, error) {
	return m.bus.Cache().Recent(ctx, n)
}

func (m *DataFlowManager) ClearCache(ctx context.Context) error {
	return m.bus.Cache().Clear(ctx)
}

// EndToEndAnalysis correlates a flow across layers and publishes the result.
func (m *DataFlowManager) EndToEndAnalysis(executionID string) (dataflow.Analysis, error) {
	data, ok := m.find(executionID)
	if !ok {
		return dataflow.Analysis{}, dataflow.ErrNotFound
	}
	layers := []dataflow.LayerCount{}
	index := map[string]int{}
	for _, msg := range data.Messages {
		i, seen := index[msg.Layer]
		if !seen {
			i = len(layers)
			index[msg.Layer] = i
			layers = append(layers, dataflow.LayerCount{Layer: msg.Layer})
		}
		layers[i].Messages++
	}
	analysis := dataflow.Analysis{
		ExecutionID:     data.ExecutionID,
		TestCaseID:      data.TestCaseID,
		TotalMessages:   len(data.Messages),
		Layers:          layers,
		Correlation:     analysisCorrelation,
		MatchedMessages: analysisMatched,
		ComparedTotal:   analysisCompared,
		Timestamp:       m.now(),
	}
	m.publish(eventbus.EndToEndAnalysis, eventbus.SourceSystem, eventbus.TargetAll, data, analysis)
	return analysis, nil
}

func (m *DataFlowManager) publish(eventType string, source eventbus.Source, target eventbus.Target, data dataflow.TestExecutionData, payload any) {
	m.bus.Publish(eventbus.Event{
		Type:        eventType,
		Source:      source,
		Target:      target,
		Data:        payload,
		Timestamp:   m.now(),
		ExecutionID: data.ExecutionID,
		TestCaseID:  data.TestCaseID,
	})
}

// Close stops the running flow, if any, and waits for it to exit.
func (m *DataFlowManager) Close(ctx context.Context) error {
	m.mu.Lock()
	fr := m.current
	running := fr != nil && fr.data.Status == dataflow.StatusRunning
	var data dataflow.TestExecutionData
	if running {
		data = m.stopLocked()
	}
	m.mu.Unlock()
	if fr == nil {
		return nil
	}
	if running {
		m.publishStopped(data)
	}
	select {
	case <-fr.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
