package dataflow

import (
	"strings"
	"time"
)

type Status string

const (
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusStopped   Status = "STOPPED"
)

type InformationElement struct {
	Name        string `json:"name"`
	Value       any    `json:"value"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

type LayerParameter struct {
	Layer     string `json:"layer"`
	Parameter string `json:"parameter"`
	Value     any    `json:"value"`
	Unit      string `json:"unit,omitempty"`
}

// TestMessage is an externally supplied message of an attached flow.
type TestMessage struct {
	ID                  string               `json:"id"`
	TimestampMs         int64                `json:"timestamp"`
	Direction           string               `json:"direction" validate:"omitempty,oneof=UL DL UPLINK DOWNLINK"`
	Layer               string               `json:"layer" validate:"required"`
	Protocol            string               `json:"protocol"`
	MessageType         string               `json:"messageType" validate:"required"`
	MessageName         string               `json:"messageName"`
	MessageData         map[string]any       `json:"messageData,omitempty"`
	InformationElements []InformationElement `json:"informationElements,omitempty"`
	LayerParameters     []LayerParameter     `json:"layerParameters,omitempty"`
}

// IEMap flattens the information elements into name -> value.
func (m TestMessage) IEMap() map[string]any {
	out := make(map[string]any, len(m.InformationElements)+len(m.MessageData))
	for k, v := range m.MessageData {
		out[k] = v
	}
	for _, ie := range m.InformationElements {
		out[ie.Name] = ie.Value
	}
	return out
}

type TestExecutionData struct {
	ExecutionID  string        `json:"executionId"`
	TestCaseID   string        `json:"testCaseId" validate:"required"`
	TestCaseName string        `json:"testCaseName"`
	Technology   string        `json:"technology"`
	Category     string        `json:"category"`
	Messages     []TestMessage `json:"testMessages" validate:"required,min=1,dive"`
	Status       Status        `json:"status"`
	StartTime    time.Time     `json:"startTime"`
	EndTime      *time.Time    `json:"endTime,omitempty"`
	Delivered    int           `json:"deliveredMessages"`
}

func (d *TestExecutionData) Normalize() {
	d.TestCaseID = strings.TrimSpace(d.TestCaseID)
	if d.Technology == "" {
		d.Technology = "5G_NR"
	}
	if d.Category == "" {
		d.Category = "PROTOCOL"
	}
	for i := range d.Messages {
		d.Messages[i].Layer = strings.ToUpper(strings.TrimSpace(d.Messages[i].Layer))
		d.Messages[i].Direction = strings.ToUpper(strings.TrimSpace(d.Messages[i].Direction))
		if d.Messages[i].MessageName == "" {
			d.Messages[i].MessageName = d.Messages[i].MessageType
		}
	}
}

type LayerCount struct {
	Layer    string `json:"layer"`
	Messages int    `json:"messages"`
}

// Analysis is the END_TO_END_ANALYSIS payload.
type Analysis struct {
	ExecutionID     string       `json:"executionId"`
	TestCaseID      string       `json:"testCaseId"`
	TotalMessages   int          `json:"totalMessages"`
	Layers          []LayerCount `json:"layers"`
	Correlation     float64      `json:"correlationScore"`
	MatchedMessages int          `json:"matchedMessages"`
	ComparedTotal   int          `json:"totalCompared"`
	Timestamp       time.Time    `json:"timestamp"`
}
