// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the arena engine.
type Metrics struct {
	TicksProcessed   prometheus.Counter
	PhaseTransitions prometheus.Counter

	TradesOpened prometheus.Counter
	TradesClosed *prometheus.CounterVec // label: reason
	Eliminations prometheus.Counter
	Refinances   prometheus.Counter

	OracleRequests prometheus.Counter
	OracleFailures prometheus.Counter

	AgentEquity  *prometheus.GaugeVec // label: agent
	AgentBalance *prometheus.GaugeVec // label: agent

	SnapshotSaves prometheus.Counter
}

// NewMetrics creates a Metrics instance with all metrics registered on
// the default registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "neuroarena"
	}

	return &Metrics{
		TicksProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "ticks_processed_total",
			Help:      "Total number of price ticks settled",
		}),
		PhaseTransitions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "phase_transitions_total",
			Help:      "Total number of ACTIVE/DISCUSSION transitions",
		}),
		TradesOpened: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trades",
			Name:      "opened_total",
			Help:      "Total number of positions opened",
		}),
		TradesClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trades",
			Name:      "closed_total",
			Help:      "Total number of positions closed by reason",
		}, []string{"reason"}),
		Eliminations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "accounts",
			Name:      "eliminations_total",
			Help:      "Total number of account eliminations",
		}),
		Refinances: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "accounts",
			Name:      "refinances_total",
			Help:      "Total number of operator refinances",
		}),
		OracleRequests: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "requests_total",
			Help:      "Total number of decision requests issued",
		}),
		OracleFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "failures_total",
			Help:      "Total number of decision requests that fell back to the heuristic",
		}),
		AgentEquity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "accounts",
			Name:      "equity",
			Help:      "Current mark-to-market equity per agent",
		}, []string{"agent"}),
		AgentBalance: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "accounts",
			Name:      "balance",
			Help:      "Current free balance per agent",
		}, []string{"agent"}),
		SnapshotSaves: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "snapshot_saves_total",
			Help:      "Total number of snapshots persisted",
		}),
	}
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
