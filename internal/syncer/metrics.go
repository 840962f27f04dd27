package syncer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/and161185/logistics-keeper/internal/model"
)

// Push triggers, used as the "trigger" label.
const (
	triggerAuto   = "auto"
	triggerManual = "manual"
	triggerFlush  = "flush"
	triggerPull   = "pull"
)

var statuses = []model.SyncStatus{model.SyncIdle, model.SyncSyncing, model.SyncSynced, model.SyncError}

type metrics struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
	status   *prometheus.GaugeVec
	retries  prometheus.Counter
}

// newMetrics registers the coordinator collectors on reg. A nil reg keeps them unregistered.
func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		ops: f.NewCounterVec(prometheus.CounterOpts{
			Name: "logistics_sync_operations_total",
			Help: "Remote sync operations by trigger and outcome",
		}, []string{"trigger", "outcome"}), // outcome: ok, error
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "logistics_sync_duration_seconds",
			Help:    "Duration of remote sync operations including retries",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"trigger"}),
		status: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "logistics_sync_status",
			Help: "Current sync status (1 for the active status)",
		}, []string{"status"}),
		retries: f.NewCounter(prometheus.CounterOpts{
			Name: "logistics_sync_retries_total",
			Help: "Retries of remote calls after transient transport errors",
		}),
	}
}

func (m *metrics) setStatus(s model.SyncStatus) {
	for _, v := range statuses {
		val := 0.0
		if v == s {
			val = 1
		}
		m.status.WithLabelValues(string(v)).Set(val)
	}
}

func (m *metrics) observe(trigger string, seconds float64, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ops.WithLabelValues(trigger, outcome).Inc()
	m.duration.WithLabelValues(trigger).Observe(seconds)
}
