package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_http_requests_total",
			Help: "HTTP requests by method, route pattern and status.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askdb_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "route", "status"},
	)
	httpRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "askdb_http_requests_in_flight",
			Help: "HTTP requests currently being served.",
		},
	)

	askTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_ask_total",
			Help: "Questions answered, by outcome and the stage that ended the request.",
		},
		[]string{"outcome", "stage"},
	)
	askStageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askdb_ask_stage_duration_seconds",
			Help:    "Time spent in each stage of answering a question.",
			Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)
	sqlRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_sql_rejections_total",
			Help: "Generated SQL rejected by the safety gate, by reason.",
		},
		[]string{"reason"},
	)
	queryResultRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdb_query_result_rows",
			Help:    "Rows returned by executed queries.",
			Buckets: []float64{0, 1, 10, 50, 100, 500, 1000, 5000, 10000},
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		httpRequestsInFlight,
		askTotal,
		askStageDurationSeconds,
		sqlRejectionsTotal,
		queryResultRows,
	)
}

func ObserveAsk(outcome, stage string) {
	askTotal.WithLabelValues(outcome, stage).Inc()
}

func ObserveAskStage(stage string, elapsed time.Duration) {
	askStageDurationSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func IncrementSQLRejection(reason string) {
	sqlRejectionsTotal.WithLabelValues(reason).Inc()
}

func ObserveResultRows(rows int) {
	if rows < 0 {
		rows = 0
	}
	queryResultRows.Observe(float64(rows))
}
