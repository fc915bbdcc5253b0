package loadtest

import (
	"maps"
	"math"
	"slices"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Request error types.
const (
	ErrTimeout    = "timeout"
	ErrConnection = "connection_error"
	ErrServer     = "server_error"
	ErrClient     = "client_error"
	ErrNetwork    = "network_error"
)

var errorMessages = map[string]string{
	ErrTimeout:    "Request timeout",
	ErrConnection: "Connection failed",
	ErrServer:     "Internal server error",
	ErrClient:     "Client error",
	ErrNetwork:    "Network error",
}

func ErrorMessage(errType string) string {
	if m, ok := errorMessages[errType]; ok {
		return m
	}
	return "Unknown error occurred"
}

// Sample is one request outcome. ErrorType is empty for a success.
type Sample struct {
	LatencyMs float64
	ErrorType string
}

// Summarize aggregates samples collected over elapsed.
func Summarize(samples []Sample, elapsed time.Duration, metrics SystemMetrics) Results {
	a := NewAggregator()
	for _, s := range samples {
		a.Add(s)
	}
	return a.Results(elapsed, metrics)
}

// Aggregator accumulates samples into 0.01 ms latency buckets. Memory grows
// with the number of distinct rounded latencies, not with the request count.
// It is not safe for concurrent use.
type Aggregator struct {
	n       int
	sum     float64
	minMs   float64
	maxMs   float64
	buckets map[int64]int
	errors  map[string]int
}

func NewAggregator() *Aggregator {
	return &Aggregator{buckets: map[int64]int{}, errors: map[string]int{}}
}

func (a *Aggregator) Add(s Sample) {
	if a.n == 0 || s.LatencyMs < a.minMs {
		a.minMs = s.LatencyMs
	}
	if a.n == 0 || s.LatencyMs > a.maxMs {
		a.maxMs = s.LatencyMs
	}
	a.n++
	a.sum += s.LatencyMs
	a.buckets[int64(math.Round(s.LatencyMs*100))]++
	if s.ErrorType != "" {
		a.errors[s.ErrorType]++
	}
}

func (a *Aggregator) Len() int {
	return a.n
}

// Results summarizes what was added. Percentiles take the element at
// floor(n*q) of the sorted latencies.
func (a *Aggregator) Results(elapsed time.Duration, metrics SystemMetrics) Results {
	r := Results{SystemMetrics: metrics, Errors: []ErrorSummary{}}
	n := a.n
	if n == 0 {
		return r
	}

	r.TotalRequests = n
	for _, c := range a.errors {
		r.FailedRequests += c
	}
	r.SuccessfulRequests = n - r.FailedRequests
	r.AverageResponseTime = Round2(a.sum / float64(n))
	r.MinResponseTime = Round2(a.minMs)
	r.MaxResponseTime = Round2(a.maxMs)
	p := a.percentiles(0.5, 0.9, 0.95, 0.99)
	r.P50ResponseTime = Round2(p[0])
	r.P90ResponseTime = Round2(p[1])
	r.P95ResponseTime = Round2(p[2])
	r.P99ResponseTime = Round2(p[3])
	if secs := elapsed.Seconds(); secs > 0 {
		r.Throughput = Round2(float64(n) / secs)
	}
	r.ErrorRate = percent(r.FailedRequests, n)

	for t, c := range a.errors {
		r.Errors = append(r.Errors, ErrorSummary{Type: t, Message: ErrorMessage(t), Count: c, Percentage: percent(c, n)})
	}
	sort.Slice(r.Errors, func(i, j int) bool {
		if r.Errors[i].Count != r.Errors[j].Count {
			return r.Errors[i].Count > r.Errors[j].Count
		}
		return r.Errors[i].Type < r.Errors[j].Type
	})
	return r
}

func (a *Aggregator) percentiles(qs ...float64) []float64 {
	keys := slices.Sorted(maps.Keys(a.buckets))
	out := make([]float64, len(qs))
	for i, q := range qs {
		idx := min(int(math.Floor(float64(a.n)*q)), a.n-1)
		seen := 0
		for _, k := range keys {
			seen += a.buckets[k]
			if idx < seen {
				out[i] = float64(k) / 100
				break
			}
		}
	}
	return out
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return decimal.NewFromInt(int64(part)).
		Div(decimal.NewFromInt(int64(total))).
		Mul(decimal.NewFromInt(100)).
		Round(2).
		InexactFloat64()
}

// Round2 rounds v to two decimals; NaN and infinities become 0.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
