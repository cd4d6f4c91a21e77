package caper

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricsRegistry = prometheus.NewRegistry()
	metricsOnce     sync.Once

	sagasStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caper_sagas_started_total",
			Help: "Total number of saga runs started.",
		},
		[]string{"saga"},
	)
	sagasFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caper_sagas_finished_total",
			Help: "Total number of saga runs finished, by outcome.",
		},
		[]string{"saga", "outcome"},
	)
	stepsExecuted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caper_steps_executed_total",
			Help: "Total number of forward steps executed, by outcome.",
		},
		[]string{"step", "outcome"},
	)
	compensationsExecuted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caper_compensations_executed_total",
			Help: "Total number of compensations executed, by outcome.",
		},
		[]string{"step", "outcome"},
	)
	sagaDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "caper_saga_duration_seconds",
		Help:    "Wall-clock duration of saga runs in seconds.",
		Buckets: prometheus.DefBuckets,
	})
)

// InitMetrics registers the saga metrics with the package registry once.
func InitMetrics() {
	metricsOnce.Do(func() {
		metricsRegistry.MustRegister(
			sagasStarted,
			sagasFinished,
			stepsExecuted,
			compensationsExecuted,
			sagaDuration,
		)
	})
}

// MetricsHandler exposes the Prometheus metrics endpoint handler.
func MetricsHandler() http.Handler {
	InitMetrics()
	return promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{})
}
