package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	WorkersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleethq_workers_total",
			Help: "Total number of registered workers by status",
		},
		[]string{"status"},
	)

	DeploymentsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleethq_deployments_total",
			Help: "Total number of deployments by status",
		},
		[]string{"status"},
	)

	ReplicasTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleethq_replicas_total",
			Help: "Total number of replicas by status",
		},
		[]string{"status"},
	)

	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleethq_api_requests_total",
			Help: "Total number of admin API requests by route and status",
		},
		[]string{"route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleethq_api_request_duration_seconds",
			Help:    "Admin API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	PlacementLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleethq_placement_latency_seconds",
			Help:    "Time taken to select workers for a deployment",
			Buckets: prometheus.DefBuckets,
		},
	)

	ScaleActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleethq_scale_actions_total",
			Help: "Total number of scaling actions taken by direction",
		},
		[]string{"direction"},
	)

	ScalingTickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleethq_scaling_tick_duration_seconds",
			Help:    "Time taken for one scaling controller tick across all deployments",
			Buckets: prometheus.DefBuckets,
		},
	)

	DeployDispatchFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleethq_deploy_dispatch_failures_total",
			Help: "Total number of deployRepository dispatches that failed with WorkerUnreachable",
		},
	)
)

func init() {
	prometheus.MustRegister(
		WorkersTotal,
		DeploymentsTotal,
		ReplicasTotal,
		APIRequestsTotal,
		APIRequestDuration,
		PlacementLatency,
		ScaleActionsTotal,
		ScalingTickDuration,
		DeployDispatchFailuresTotal,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the time elapsed since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}
