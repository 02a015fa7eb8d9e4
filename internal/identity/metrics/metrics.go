package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for lifecycle operations.
const (
	OutcomeOK      = "ok"
	OutcomePartial = "partial" // off-chain write landed, chain leg degraded
	OutcomeError   = "error"
)

// Metrics tracks lifecycle coordinator activity.
type Metrics struct {
	Operations        *prometheus.CounterVec
	ChainWriteFailed  prometheus.Counter
	ReconcileHealed   prometheus.Counter
	OperationDuration *prometheus.HistogramVec
}

func New() *Metrics {
	return &Metrics{
		Operations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "campusid_identity_operations_total",
			Help: "Lifecycle operations by type and outcome",
		}, []string{"operation", "outcome"}),
		ChainWriteFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "campusid_identity_chain_write_failures_total",
			Help: "Chain writes that degraded to chain_write_failed",
		}),
		ReconcileHealed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "campusid_identity_reconcile_healed_total",
			Help: "Records brought back to synced by reconciliation",
		}),
		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "campusid_identity_operation_duration_seconds",
			Help:    "Lifecycle operation latency; chain confirmation dominates",
			Buckets: []float64{.01, .05, .25, 1, 5, 15, 30, 60, 120},
		}, []string{"operation"}),
	}
}

// RecordOperation records one coordinator operation observation.
func (m *Metrics) RecordOperation(operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(operation, outcome).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(seconds)
}

// IncChainWriteFailed counts a degraded chain leg.
func (m *Metrics) IncChainWriteFailed() {
	if m == nil {
		return
	}
	m.ChainWriteFailed.Inc()
}

// IncReconcileHealed counts a record healed to synced.
func (m *Metrics) IncReconcileHealed() {
	if m == nil {
		return
	}
	m.ReconcileHealed.Inc()
}
