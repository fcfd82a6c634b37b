package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service's prometheus collectors. A nil *Metrics is
// valid and records nothing, which keeps tests free of registry setup.
type Metrics struct {
	SchedulesMaterialized prometheus.Counter
	DispatchTotal         *prometheus.CounterVec
	EvaluatorPassDuration prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SchedulesMaterialized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reserve_notify_schedules_materialized_total",
			Help: "Scheduled messages created or refreshed by the materializer.",
		}),
		DispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reserve_notify_dispatch_total",
			Help: "Send attempts by outcome and channel.",
		}, []string{"status", "channel"}),
		EvaluatorPassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reserve_notify_evaluator_pass_seconds",
			Help:    "Duration of full evaluator rescan passes.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(m.SchedulesMaterialized, m.DispatchTotal, m.EvaluatorPassDuration)
	return m
}

func (m *Metrics) IncMaterialized() {
	if m == nil {
		return
	}
	m.SchedulesMaterialized.Inc()
}

func (m *Metrics) IncDispatch(status, channel string) {
	if m == nil {
		return
	}
	m.DispatchTotal.WithLabelValues(status, channel).Inc()
}

func (m *Metrics) ObserveEvaluatorPass(seconds float64) {
	if m == nil {
		return
	}
	m.EvaluatorPassDuration.Observe(seconds)
}
