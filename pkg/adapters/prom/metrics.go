package prom

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/solis-lumine-vorago/phase/pkg/domain"
)

// Metrics exposes orchestrator activity as Prometheus collectors, wired in
// through domain.LifecycleHooks.
type Metrics struct {
	transitions   *prometheus.CounterVec
	dispatches    *prometheus.CounterVec
	cycleDuration prometheus.Histogram
}

// New registers the collectors with reg and returns the adapter.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "phase",
			Name:      "transitions_total",
			Help:      "Applied state transitions by machine type and shape.",
		}, []string{"machine", "kind"}),
		dispatches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "phase",
			Name:      "dispatches_total",
			Help:      "Pipeline dispatch attempts by stage and outcome.",
		}, []string{"stage", "outcome"}),
		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "phase",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of one orchestration cycle.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
	}
}

// Hooks returns the lifecycle hooks that feed the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnCycleEnd: func(_ context.Context, ev *domain.CycleEvent) {
			m.cycleDuration.Observe(ev.Duration.Seconds())
		},
		OnTransition: func(_ context.Context, rec *domain.TransitionRecord) {
			m.transitions.WithLabelValues(rec.Machine, string(rec.Kind)).Inc()
		},
		OnDispatch: func(_ context.Context, ev *domain.DispatchEvent) {
			outcome := "ran"
			switch {
			case ev.Err != nil:
				outcome = "error"
			case !ev.Ran:
				outcome = "skipped"
			}
			m.dispatches.WithLabelValues(ev.Stage.String(), outcome).Inc()
		},
	}
}
