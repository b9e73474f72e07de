package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	activationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "emberd",
		Subsystem: "engine",
		Name:      "activations_total",
		Help:      "Activation outcomes by result.",
	}, []string{"outcome"})

	probeFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "emberd",
		Subsystem: "engine",
		Name:      "probe_failures_total",
		Help:      "Backend probes that refused a model, by backend kind.",
	}, []string{"backend"})

	fallbackActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "emberd",
		Subsystem: "engine",
		Name:      "fallback_active",
		Help:      "1 while the scripted fallback responder is serving chat.",
	})

	catalogRecords = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "emberd",
		Subsystem: "engine",
		Name:      "catalog_records",
		Help:      "Model records in the current catalog snapshot.",
	})

	chatTokensTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "emberd",
		Subsystem: "engine",
		Name:      "chat_tokens_total",
		Help:      "Tokens streamed to chat clients, fallback included.",
	})
)

func init() {
	prometheus.MustRegister(
		activationsTotal,
		probeFailuresTotal,
		fallbackActive,
		catalogRecords,
		chatTokensTotal,
	)
}
