package transfer

import "github.com/prometheus/client_golang/prometheus"

var (
	transferBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "emberd",
		Subsystem: "transfer",
		Name:      "bytes_total",
		Help:      "Total artifact bytes written to partial files.",
	})

	transferActiveJobs = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "emberd",
		Subsystem: "transfer",
		Name:      "active_jobs",
		Help:      "Number of live transfer jobs.",
	})

	transferFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "emberd",
		Subsystem: "transfer",
		Name:      "failures_total",
		Help:      "Failed transfer jobs by error kind.",
	}, []string{"kind"})

	transferRestartsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "emberd",
		Subsystem: "transfer",
		Name:      "range_restarts_total",
		Help:      "Downloads restarted from zero after the server ignored a range request.",
	})
)

func init() {
	prometheus.MustRegister(
		transferBytesTotal,
		transferActiveJobs,
		transferFailuresTotal,
		transferRestartsTotal,
	)
}
