package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics records reconciliation outcomes per target type.
type SyncMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	bulkApply  *prometheus.CounterVec
}

// NewSyncMetrics registers the sync metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "media_sync_operations",
		Help: "Media sync operations by target type, action, and outcome.",
	}, []string{"target_type", "action", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "media_sync_apply_duration_seconds",
		Help:    "Duration of pending-change reconciliation runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"target_type"})
	bulkApply := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bulk_apply_rows",
		Help: "Rows written by bulk apply operations, by kind and outcome.",
	}, []string{"kind", "outcome"})
	reg.MustRegister(operations, duration, bulkApply)
	return &SyncMetrics{
		operations: operations,
		duration:   duration,
		bulkApply:  bulkApply,
	}
}

// IncOperation counts one sync or unsync attempt against a target.
func (s *SyncMetrics) IncOperation(targetType, action, outcome string) {
	if s == nil || s.operations == nil {
		return
	}
	s.operations.WithLabelValues(normalizeLabel(targetType), normalizeLabel(action), normalizeLabel(outcome)).Inc()
}

// ObserveApplyDuration records how long a reconciliation run took for a target type.
func (s *SyncMetrics) ObserveApplyDuration(targetType string, duration time.Duration) {
	if s == nil || s.duration == nil {
		return
	}
	s.duration.WithLabelValues(normalizeLabel(targetType)).Observe(duration.Seconds())
}

// AddBulkRows counts rows written during a bulk apply.
func (s *SyncMetrics) AddBulkRows(kind, outcome string, rows int) {
	if s == nil || s.bulkApply == nil || rows <= 0 {
		return
	}
	s.bulkApply.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Add(float64(rows))
}
