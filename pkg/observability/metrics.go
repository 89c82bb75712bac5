package observability

import (
	"context"
	"fmt"

	"github.com/aretw0/essayflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "essayflow"

// unknownNode labels events for nodes outside the graph, keeping label
// cardinality bounded by the topology.
const unknownNode = "unknown"

// Metrics holds the engine collectors.
type Metrics struct {
	activations *prometheus.CounterVec
	resolutions *prometheus.CounterVec
	hold        *prometheus.HistogramVec
	scores      *prometheus.GaugeVec
	decodeFails *prometheus.CounterVec
	discarded   prometheus.Counter
	transitions *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		activations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_activations_total",
			Help:      "Total number of step events that activated a node",
		}, []string{"node"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_resolutions_total",
			Help:      "Total number of node resolutions by final status",
		}, []string{"node", "status"}),
		hold: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_hold_seconds",
			Help:      "Time a node spent active before resolving",
			Buckets:   []float64{0.1, 0.25, 0.5, 0.8, 1, 2, 5},
		}, []string{"node"}),
		scores: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "node_score",
			Help:      "Last score extracted for a node",
		}, []string{"node"}),
		decodeFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_failures_total",
			Help:      "Total number of stream records that failed to decode",
		}, []string{"reason"}),
		discarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_discarded_total",
			Help:      "Total number of step events dropped because their run was superseded",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Total number of macro status transitions",
		}, []string{"from", "to"}),
	}

	for _, c := range []prometheus.Collector{
		m.activations, m.resolutions, m.hold, m.scores, m.decodeFails, m.discarded, m.transitions,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks recording into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeActivate: func(_ context.Context, e *domain.NodeEvent) {
			m.activations.WithLabelValues(nodeLabel(e)).Inc()
		},
		OnNodeResolve: func(_ context.Context, e *domain.NodeEvent) {
			node := nodeLabel(e)
			m.resolutions.WithLabelValues(node, string(e.Status)).Inc()
			m.hold.WithLabelValues(node).Observe(e.Elapsed.Seconds())
			if e.Score != nil {
				m.scores.WithLabelValues(node).Set(*e.Score)
			}
		},
		OnDecodeFailure: func(_ context.Context, e *domain.DecodeFailureEvent) {
			m.decodeFails.WithLabelValues(e.Reason).Inc()
		},
		OnEventDiscarded: func(_ context.Context, _ *domain.DiscardEvent) {
			m.discarded.Inc()
		},
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			m.transitions.WithLabelValues(string(e.From), string(e.To)).Inc()
		},
	}
}

func nodeLabel(e *domain.NodeEvent) string {
	if !e.Known {
		return unknownNode
	}
	return string(e.NodeID)
}
