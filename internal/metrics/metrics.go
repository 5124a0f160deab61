// Package metrics holds the process-wide Prometheus collectors shared by
// the scheduler, worker, and HTTP server binaries, keeping vocabulary
// aligned with the firing/run/lease domain rather than generic job terms.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Scheduler metrics

	SchedulerLagSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ordinaut",
		Name:      "scheduler_lag_seconds",
		Help:      "Age of the oldest eligible, unclaimed firing.",
	})

	FiringsEnqueuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ordinaut",
		Name:      "firings_enqueued_total",
		Help:      "Total firings enqueued, by schedule kind.",
	}, []string{"schedule_kind"})

	// Worker metrics

	FiringPickupLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ordinaut",
		Name:      "firing_pickup_latency_seconds",
		Help:      "Time from a firing becoming eligible to a worker leasing it.",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	RunExecutionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ordinaut",
		Name:      "run_execution_duration_seconds",
		Help:      "Duration of a pipeline execution attempt.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"outcome"})

	RunsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ordinaut",
		Name:      "worker_runs_in_flight",
		Help:      "Number of runs currently executing across the worker pool.",
	})

	RunsCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ordinaut",
		Name:      "runs_completed_total",
		Help:      "Total attempts finished, by outcome.",
	}, []string{"outcome"})

	ConcurrencyYieldsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ordinaut",
		Name:      "concurrency_yields_total",
		Help:      "Total firings released back to the queue by the concurrency-key admission check.",
	})

	// Worker lifecycle

	WorkerStartTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ordinaut",
		Name:      "worker_start_time_seconds",
		Help:      "Unix timestamp when the worker process started.",
	})

	WorkerShutdownsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ordinaut",
		Name:      "worker_shutdowns_total",
		Help:      "Number of times the worker process has shut down.",
	})

	// Alerting

	AlertsFiringGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "ordinaut",
		Name:      "alert_firing",
		Help:      "Whether an alert rule is currently firing. 1 = firing, 0 = resolved.",
	}, []string{"rule"})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ordinaut",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ordinaut",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

// Register adds every collector to the default registry. Called once at
// process startup by each of the cmd/ binaries that exposes /metrics.
func Register() {
	prometheus.MustRegister(
		SchedulerLagSeconds,
		FiringsEnqueuedTotal,
		FiringPickupLatency,
		RunExecutionDuration,
		RunsInFlight,
		RunsCompletedTotal,
		ConcurrencyYieldsTotal,
		WorkerStartTime,
		WorkerShutdownsTotal,
		AlertsFiringGauge,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

// NewServer returns a standalone /metrics server on its own address,
// separate from any gin router; every binary serves metrics through it.
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux}
}
