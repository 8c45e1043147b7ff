package board

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/primecut/liveboard/order"
)

// Metrics exposes the screen's synchronization counters. One instance per
// screen process, registered on the screen's own registry and served from
// its /metrics endpoint.
type Metrics struct {
	SnapshotFetches *prometheus.CounterVec
	PushEvents      *prometheus.CounterVec
	ReconcileTicks  prometheus.Counter
	Transitions     *prometheus.CounterVec
	LaneOrders      *prometheus.GaugeVec
}

// NewMetrics creates and registers the board metrics.
func NewMetrics(reg prometheus.Registerer, role string) *Metrics {
	labels := prometheus.Labels{"role": role}

	m := &Metrics{
		SnapshotFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "liveboard_snapshot_fetches_total",
			Help:        "Snapshot fetches by result.",
			ConstLabels: labels,
		}, []string{"result"}),
		PushEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "liveboard_push_events_total",
			Help:        "Push-channel events received by kind.",
			ConstLabels: labels,
		}, []string{"kind"}),
		ReconcileTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "liveboard_reconcile_ticks_total",
			Help:        "Reconciliation scheduler ticks.",
			ConstLabels: labels,
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "liveboard_transitions_total",
			Help:        "Transition requests by operation and result.",
			ConstLabels: labels,
		}, []string{"op", "result"}),
		LaneOrders: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "liveboard_lane_orders",
			Help:        "Orders currently shown per lane.",
			ConstLabels: labels,
		}, []string{"lane"}),
	}

	reg.MustRegister(m.SnapshotFetches, m.PushEvents, m.ReconcileTicks, m.Transitions, m.LaneOrders)
	return m
}

// ObserveLanes updates the per-lane gauges from the current board.
func (m *Metrics) ObserveLanes(state *State) {
	counts := state.LaneCounts()
	for _, lane := range order.Lanes {
		m.LaneOrders.WithLabelValues(string(lane)).Set(float64(counts[lane]))
	}
}
