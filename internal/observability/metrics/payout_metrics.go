package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recompute trigger labels.
const (
	TriggerManual       = "manual"
	TriggerLazyRead     = "lazy_read"
	TriggerLessonToggle = "lesson_toggle"
	TriggerRateChange   = "rate_change"
	TriggerPeriodList   = "period_list"
)

// PayoutMetrics captures payout engine health signals.
type PayoutMetrics struct {
	recomputes        *prometheus.CounterVec
	recomputeDuration prometheus.Observer
	upsertConflicts   prometheus.Counter
}

var (
	payoutMetricsOnce sync.Once
	payoutMetrics     *PayoutMetrics
)

// Payout returns the singleton payout metrics registry.
func Payout() *PayoutMetrics {
	payoutMetricsOnce.Do(func() {
		payoutMetrics = newPayoutMetrics(prometheus.DefaultRegisterer)
	})
	return payoutMetrics
}

func newPayoutMetrics(reg prometheus.Registerer) *PayoutMetrics {
	m := &PayoutMetrics{
		recomputes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skolar",
			Subsystem: "payout",
			Name:      "recomputes_total",
			Help:      "Payout recomputations by trigger.",
		}, []string{"trigger"}),
		upsertConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "skolar",
			Subsystem: "payout",
			Name:      "upsert_conflicts_total",
			Help:      "Payout upsert attempts that lost the insert race and retried.",
		}),
	}
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "skolar",
		Subsystem: "payout",
		Name:      "recompute_duration_seconds",
		Help:      "Wall time of a full payout recomputation.",
		Buckets:   prometheus.DefBuckets,
	})
	m.recomputeDuration = duration

	if reg != nil {
		reg.MustRegister(m.recomputes, m.upsertConflicts, duration)
	}
	return m
}

func (m *PayoutMetrics) RecordRecompute(trigger string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.recomputes.WithLabelValues(trigger).Inc()
	m.recomputeDuration.Observe(elapsed.Seconds())
}

func (m *PayoutMetrics) RecordUpsertConflict() {
	if m == nil {
		return
	}
	m.upsertConflicts.Inc()
}
