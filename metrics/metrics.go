// Package metrics exposes prometheus instrumentation for the inventory
// service. A nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/warp/inventory-engine/stock"
)

const namespace = "inventory"

type Metrics struct {
	transactions *prometheus.CounterVec
	rejections   *prometheus.CounterVec
	duration     *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "transactions_total",
			Help:      "Ledger transactions recorded, by type.",
		}, []string{"type"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "rejections_total",
			Help:      "Operations rejected, by error class.",
		}, []string{"operation", "class"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of service operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	reg.MustRegister(m.transactions, m.rejections, m.duration)
	return m
}

// Recorded counts one persisted ledger row.
func (m *Metrics) Recorded(t stock.TransactionType) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(string(t)).Inc()
}

// Observe records the duration of an operation and, when err is non-nil,
// its rejection class.
func (m *Metrics) Observe(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		m.rejections.WithLabelValues(operation, Class(err)).Inc()
	}
}

// Class names the taxonomy class of err.
func Class(err error) string {
	switch {
	case stock.IsValidation(err):
		return "validation"
	case stock.IsNotFound(err):
		return "not_found"
	case stock.IsConflict(err):
		return "conflict"
	case errors.Is(err, stock.ErrConcurrentModification):
		return "retryable"
	default:
		return "internal"
	}
}
