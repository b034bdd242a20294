// Package observability provides Prometheus metrics for the simulation
// server.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Run metrics
	RunsStarted   *prometheus.CounterVec
	RunsCompleted *prometheus.CounterVec
	RunsFailed    *prometheus.CounterVec
	RunDuration   *prometheus.HistogramVec

	// Simulation metrics
	BlocksSimulated      prometheus.Counter
	LiquidationsExecuted prometheus.Counter
	BadDebtObserved      prometheus.Counter
	BreakerFires         *prometheus.CounterVec

	// Streaming metrics
	ActiveStreams    prometheus.Gauge
	FramesDelivered  prometheus.Counter
	StreamSendErrors prometheus.Counter

	// Storage metrics
	StoreWriteDuration *prometheus.HistogramVec
	StoreWriteErrors   *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance with all metrics registered on
// the default registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "flatcoin_lab"
	}

	return &Metrics{
		RunsStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Simulation runs started, by scenario.",
		}, []string{"scenario"}),
		RunsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_completed_total",
			Help:      "Simulation runs completed, by scenario and verdict.",
		}, []string{"scenario", "verdict"}),
		RunsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_failed_total",
			Help:      "Simulation runs aborted by error, by scenario.",
		}, []string{"scenario"}),
		RunDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of simulation runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"scenario"}),

		BlocksSimulated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_simulated_total",
			Help:      "Total simulated blocks across all runs.",
		}),
		LiquidationsExecuted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "liquidations_executed_total",
			Help:      "Total liquidations executed across all runs.",
		}),
		BadDebtObserved: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bad_debt_observed_total",
			Help:      "Total bad debt (ZAI) accrued across all runs.",
		}),
		BreakerFires: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_fires_total",
			Help:      "Circuit breaker trips, by breaker kind.",
		}, []string{"kind"}),

		ActiveStreams: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_streams",
			Help:      "Currently connected websocket metric streams.",
		}),
		FramesDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_delivered_total",
			Help:      "Block metric frames delivered over websocket.",
		}),
		StreamSendErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_send_errors_total",
			Help:      "Websocket send failures.",
		}),

		StoreWriteDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_write_duration_seconds",
			Help:      "Duration of store writes, by backend.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend"}),
		StoreWriteErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_write_errors_total",
			Help:      "Store write failures, by backend.",
		}, []string{"backend"}),
	}
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
