package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatdb_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatdb_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	askTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatdb_ask_total",
			Help: "Questions answered, by outcome kind (ok, transport, protocol, safety, execution, timeout).",
		},
		[]string{"kind"},
	)

	llmRoundTripsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatdb_llm_round_trips_total",
			Help: "Language model round trips by round and result.",
		},
		[]string{"round", "result"},
	)

	sqlExecDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatdb_sql_exec_duration_seconds",
			Help:    "Latency of model-generated SQL executions.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	sqlRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatdb_sql_rejections_total",
			Help: "Model-generated queries rejected by the SQL gate.",
		},
	)

	exportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatdb_exports_total",
			Help: "Table exports by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		askTotal,
		llmRoundTripsTotal,
		sqlExecDurationSeconds,
		sqlRejectionsTotal,
		exportsTotal,
	)
}

func ObserveAsk(kind string) {
	if kind == "" {
		kind = "ok"
	}
	askTotal.WithLabelValues(kind).Inc()
}

func ObserveLLMRoundTrip(round int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	llmRoundTripsTotal.WithLabelValues(roundLabel(round), result).Inc()
}

func ObserveSQLExec(elapsed time.Duration) {
	sqlExecDurationSeconds.Observe(elapsed.Seconds())
}

func IncrementSQLRejection() {
	sqlRejectionsTotal.Inc()
}

func ObserveExport(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	exportsTotal.WithLabelValues(result).Inc()
}

func roundLabel(round int) string {
	switch round {
	case 1:
		return "1"
	case 2:
		return "2"
	default:
		return "other"
	}
}
