package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	executionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "labx",
		Subsystem: "execution",
		Name:      "runs_total",
		Help:      "Test executions by terminal status.",
	}, []string{"status"})

	executedMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "labx",
		Subsystem: "execution",
		Name:      "messages_total",
		Help:      "Executed protocol messages by layer.",
	}, []string{"layer"})

	runningExecutions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "labx",
		Subsystem: "execution",
		Name:      "running",
		Help:      "Executions currently running.",
	})

	streamClientsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "labx",
		Subsystem: "execution",
		Name:      "stream_clients",
		Help:      "Connected execution stream websocket clients.",
	})
)
