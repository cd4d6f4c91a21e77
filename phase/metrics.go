package phase

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricsRegistry = prometheus.NewRegistry()
	metricsOnce     sync.Once

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caper_phase_transitions_total",
			Help: "Total number of phase transitions, by edge.",
		},
		[]string{"from", "to"},
	)
	terminals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caper_operations_finished_total",
			Help: "Total number of operations reaching a terminal phase.",
		},
		[]string{"phase"},
	)
	alertLevel = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "caper_operation_alert_level",
		Help: "Alert level of the most recently updated operation.",
	})
	settledPayout = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "caper_settled_payout_total",
		Help: "Total payout distributed across completed operations.",
	})
)

// InitMetrics registers the phase metrics with the package registry once.
func InitMetrics() {
	metricsOnce.Do(func() {
		metricsRegistry.MustRegister(transitions, terminals, alertLevel, settledPayout)
	})
}

// MetricsHandler exposes the Prometheus metrics endpoint handler.
func MetricsHandler() http.Handler {
	InitMetrics()
	return promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{})
}
