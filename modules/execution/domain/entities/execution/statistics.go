package execution

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// KnownLayers are the protocol layers a message may be attributed to.
var KnownLayers = []string{
	"PHY", "MAC", "RLC", "PDCP", "SDAP", "RRC", "NAS", "S1AP", "NGAP", "X2AP", "XNAP", "F1AP", "E1AP",
	"IMS", "SIP", "GTP", "IP", "APPLICATION",
}

// Percent returns part/total as a percentage rounded to two decimals.
func Percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return decimal.NewFromInt(int64(part)).
		Div(decimal.NewFromInt(int64(total))).
		Mul(decimal.NewFromInt(100)).
		Round(2).
		InexactFloat64()
}

func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func roundDiv(sum int64, n int) int64 {
	if n == 0 {
		return 0
	}
	return decimal.NewFromInt(sum).Div(decimal.NewFromInt(int64(n))).Round(0).IntPart()
}

// ValidateMessage checks one message: every supplied value is present, the
// direction is UL or DL and the layer is known. Each error costs 20 points of
// compliance, each warning 5.
func ValidateMessage(direction, layer string, values map[string]any) Validation {
	v := Validation{Errors: []string{}, Warnings: []string{}}
	if direction != "UL" && direction != "DL" {
		v.Errors = append(v.Errors, fmt.Sprintf("invalid direction %q", direction))
	}
	if !slices.Contains(KnownLayers, strings.ToUpper(layer)) {
		v.Warnings = append(v.Warnings, fmt.Sprintf("unknown layer %q", layer))
	}
	if len(values) == 0 {
		v.Warnings = append(v.Warnings, "message carries no information elements")
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if values[k] == nil {
			v.Errors = append(v.Errors, fmt.Sprintf("mandatory value %s is missing", k))
		}
	}
	v.IsValid = len(v.Errors) == 0
	v.ComplianceScore = max(0, 100-20*len(v.Errors)-5*len(v.Warnings))
	return v
}

// BuildLayerStatistics aggregates messages per layer in first-seen order.
func BuildLayerStatistics(messages []ExecutedMessage) []LayerStatistics {
	order := []string{}
	byLayer := map[string]*LayerStatistics{}
	for _, m := range messages {
		s, ok := byLayer[m.Layer]
		if !ok {
			s = &LayerStatistics{Layer: m.Layer, MinLatency: math.MaxInt64, MessageTypes: map[string]int{}}
			byLayer[m.Layer] = s
			order = append(order, m.Layer)
		}
		s.TotalMessages++
		if m.Validation.IsValid {
			s.SuccessfulMessages++
		} else {
			s.FailedMessages++
		}
		s.AverageLatency += m.Performance.LatencyMs
		s.MaxLatency = max(s.MaxLatency, m.Performance.LatencyMs)
		s.MinLatency = min(s.MinLatency, m.Performance.LatencyMs)
		s.MessageTypes[m.MessageType]++
		s.PerformanceMetrics.MemoryUsage += int64(m.Performance.MemoryUsage)
		s.PerformanceMetrics.CPUUsage += int64(m.Performance.CPUUsage)
		s.PerformanceMetrics.ProcessingTime += m.Performance.ProcessingTimeMs
	}

	out := make([]LayerStatistics, 0, len(order))
	for _, layer := range order {
		s := byLayer[layer]
		s.AverageLatency = roundDiv(s.AverageLatency, s.TotalMessages)
		s.ErrorRate = Percent(s.FailedMessages, s.TotalMessages)
		s.SuccessRate = Percent(s.SuccessfulMessages, s.TotalMessages)
		if s.AverageLatency > 0 {
			s.Throughput = Round2(float64(s.TotalMessages) / (float64(s.AverageLatency) / 1000))
		}
		s.PerformanceMetrics.MemoryUsage = roundDiv(s.PerformanceMetrics.MemoryUsage, s.TotalMessages)
		s.PerformanceMetrics.CPUUsage = roundDiv(s.PerformanceMetrics.CPUUsage, s.TotalMessages)
		s.PerformanceMetrics.ProcessingTime = roundDiv(s.PerformanceMetrics.ProcessingTime, s.TotalMessages)
		out = append(out, *s)
	}
	return out
}

// BuildMetrics summarises all messages; throughput is messages per second of
// elapsed execution time.
func BuildMetrics(messages []ExecutedMessage, elapsed time.Duration) Metrics {
	m := Metrics{TotalMessages: len(messages)}
	if len(messages) == 0 {
		return m
	}
	var latencySum int64
	compliance := 0
	m.MinLatency = math.MaxInt64
	for _, msg := range messages {
		if msg.Validation.IsValid {
			m.SuccessfulMessages++
		}
		latencySum += msg.Performance.LatencyMs
		m.MaxLatency = max(m.MaxLatency, msg.Performance.LatencyMs)
		m.MinLatency = min(m.MinLatency, msg.Performance.LatencyMs)
		compliance += msg.Validation.ComplianceScore
	}
	m.FailedMessages = m.TotalMessages - m.SuccessfulMessages
	m.AverageLatency = roundDiv(latencySum, m.TotalMessages)
	if secs := elapsed.Seconds(); secs > 0 {
		m.Throughput = Round2(float64(m.TotalMessages) / secs)
	}
	m.ErrorRate = Percent(m.FailedMessages, m.TotalMessages)
	m.SuccessRate = Percent(m.SuccessfulMessages, m.TotalMessages)
	m.OverallComplianceScore = int(roundDiv(int64(compliance), m.TotalMessages))
	return m
}
