package emit

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusEmitter derives engine-level Prometheus metrics from events.
// It recognizes a handful of well-known Msg values (node_running,
// node_completed, node_failed, node_skipped, node_cancelled) and the
// "node_type" and "duration_ms" meta fields; any other event is ignored.
type PrometheusEmitter struct {
	nodesRunning  prometheus.Gauge
	nodeDurations *prometheus.HistogramVec
	nodeOutcomes  *prometheus.CounterVec
}

// NewPrometheusEmitter registers the engine's metrics with registry. Pass
// prometheus.DefaultRegisterer for the global registry, or a fresh
// prometheus.NewRegistry() for isolation in tests.
func NewPrometheusEmitter(registry prometheus.Registerer) *PrometheusEmitter {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &PrometheusEmitter{
		nodesRunning: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "flowengine",
			Name:      "nodes_running",
			Help:      "Number of nodes currently executing across all runs.",
		}),
		nodeDurations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flowengine",
			Name:      "node_duration_ms",
			Help:      "Node execution duration in milliseconds.",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 30000},
		}, []string{"node_type", "outcome"}),
		nodeOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowengine",
			Name:      "node_outcomes_total",
			Help:      "Count of node completions by outcome.",
		}, []string{"outcome"}),
	}
}

func (p *PrometheusEmitter) Emit(event Event) {
	switch event.Msg {
	case "node_running":
		p.nodesRunning.Inc()
	case "node_completed", "node_failed", "node_skipped", "node_cancelled":
		p.nodesRunning.Dec()
		outcome := event.Msg
		p.nodeOutcomes.WithLabelValues(outcome).Inc()

		nodeType, _ := event.Meta["node_type"].(string)
		if ms, ok := event.Meta["duration_ms"].(float64); ok {
			p.nodeDurations.WithLabelValues(nodeType, outcome).Observe(ms)
		}
	}
}

func (p *PrometheusEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, e := range events {
		p.Emit(e)
	}
	return nil
}

// Flush is a no-op: Prometheus metrics are pulled, not pushed.
func (p *PrometheusEmitter) Flush(_ context.Context) error { return nil }
