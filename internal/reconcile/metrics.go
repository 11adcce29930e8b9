package reconcile

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/provsync/internal/diff"
	"github.com/roach88/provsync/internal/prov"
)

// Metrics holds the reconciler's prometheus collectors. The zero value is
// not usable; a nil *Metrics disables recording.
type Metrics struct {
	actionsApplied    *prometheus.CounterVec
	applyFailures     *prometheus.CounterVec
	reconcileDuration prometheus.Histogram
	skippedDeletes    prometheus.Counter
	resolvedActions   prometheus.Counter
}

// NewMetrics builds the collectors without registering them.
func NewMetrics() *Metrics {
	return &Metrics{
		actionsApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provsync_actions_applied_total",
				Help: "Total number of graph actions applied per kind",
			},
			[]string{"kind"},
		),
		applyFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provsync_apply_failures_total",
				Help: "Total number of failed reconciliation passes per error code",
			},
			[]string{"code"},
		),
		reconcileDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "provsync_reconcile_duration_seconds",
				Help:    "Duration of record reconciliation in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		skippedDeletes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "provsync_skipped_deletes_total",
				Help: "Total number of deletes skipped because the entity was still owned or linked",
			},
		),
		resolvedActions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "provsync_resolved_actions_total",
				Help: "Total number of additions rewritten to ownership joins on existing entities",
			},
		),
	}
}

// MustRegister registers every collector on reg.
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		m.actionsApplied,
		m.applyFailures,
		m.reconcileDuration,
		m.skippedDeletes,
		m.resolvedActions,
	)
}

func (m *Metrics) observeAction(k diff.Kind) {
	if m == nil {
		return
	}
	m.actionsApplied.WithLabelValues(k.String()).Inc()
}

func (m *Metrics) observeFailure(err error) {
	if m == nil {
		return
	}
	code := string(prov.CodeOf(err))
	if code == "" {
		code = "UNKNOWN"
	}
	m.applyFailures.WithLabelValues(code).Inc()
}

func (m *Metrics) observeDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.reconcileDuration.Observe(d.Seconds())
}

func (m *Metrics) observeSkippedDelete() {
	if m == nil {
		return
	}
	m.skippedDeletes.Inc()
}

func (m *Metrics) observeResolved(n int) {
	if m == nil || n == 0 {
		return
	}
	m.resolvedActions.Add(float64(n))
}
