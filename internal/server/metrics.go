package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/splitkit/splitkit/internal/bus"
	"github.com/splitkit/splitkit/internal/engine"
)

var (
	// assignmentsTotal counts new variant assignments.
	// Labels: experiment, variant
	assignmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "splitkit",
		Subsystem: "engine",
		Name:      "assignments_total",
		Help:      "Total new variant assignments",
	}, []string{"experiment", "variant"})

	// conversionsTotal counts recorded conversions.
	// Labels: experiment, goal
	conversionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "splitkit",
		Subsystem: "engine",
		Name:      "conversions_total",
		Help:      "Total recorded conversions",
	}, []string{"experiment", "goal"})

	// trackLatency measures track endpoint handling time.
	// Labels: event
	trackLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "splitkit",
		Subsystem: "server",
		Name:      "track_request_seconds",
		Help:      "Track request handling latency in seconds",
		Buckets:   []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	}, []string{"event"})
)

// registerBusMetrics subscribes counter updates to the engine's event
// bus. The bus isolates listener failures, so metric updates can never
// abort a mutation.
func registerBusMetrics(b *bus.Bus) {
	b.Subscribe(func(ev bus.Event) {
		switch ev.Type {
		case bus.EventAssignment:
			if data, ok := ev.Data.(engine.AssignmentEvent); ok {
				assignmentsTotal.WithLabelValues(data.ExperimentID, data.VariantID).Inc()
			}
		case bus.EventConversion:
			if data, ok := ev.Data.(engine.ConversionData); ok {
				conversionsTotal.WithLabelValues(data.ExperimentID, data.Goal).Inc()
			}
		}
	})
}
