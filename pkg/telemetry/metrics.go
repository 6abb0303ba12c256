package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Activations counts input source activations by outcome
	Activations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pluggedkbd",
			Name:      "activations_total",
			Help:      "Total number of input source activations",
		},
		[]string{"source", "result"},
	)

	// DeviceEvents counts keyboard plug events reported by the poller
	DeviceEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pluggedkbd",
			Name:      "device_events_total",
			Help:      "Total number of keyboard added/removed events",
		},
		[]string{"kind"},
	)

	PollErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pluggedkbd",
			Name:      "poll_errors_total",
			Help:      "Total number of failed input device polls",
		},
	)

	PollDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pluggedkbd",
			Name:      "poll_duration_seconds",
			Help:      "Time spent reading and diffing the input device list",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 2.5},
		},
	)

	// Keyboards tracks registry entries by state
	Keyboards = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "pluggedkbd",
			Name:      "keyboards",
			Help:      "Number of keyboards known to the registry",
		},
		[]string{"state"},
	)

	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry.
// It is safe to call more than once.
func InitMetrics() {
	once.Do(func() {
		prometheus.DefaultRegisterer.MustRegister(
			Activations,
			DeviceEvents,
			PollErrors,
			PollDuration,
			Keyboards,
		)
	})
}
