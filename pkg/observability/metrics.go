package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/triagem/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "triagem"

// Metrics collects counters for every run driven through its hooks.
type Metrics struct {
	registry *prometheus.Registry

	StepsEntered *prometheus.CounterVec
	Suspensions  *prometheus.CounterVec
	Finishes     prometheus.Counter
	Diagnostics  prometheus.Counter
	Handoffs     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		StepsEntered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_entered_total",
			Help:      "Number of steps processed by the interpreter.",
		}, []string{"step_id", "kind"}),
		Suspensions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suspensions_total",
			Help:      "Number of times a run stopped to wait for input.",
		}, []string{"status"}),
		Finishes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_finished_total",
			Help:      "Number of runs that reached the end of their flow.",
		}),
		Diagnostics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runtime_diagnostics_total",
			Help:      "Number of runs ended by a missing step, a loop or an internal error.",
		}),
		Handoffs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handoffs_total",
			Help:      "Number of transfers and tickets requested by flows.",
		}, []string{"action"}),
	}
	m.registry.MustRegister(m.StepsEntered, m.Suspensions, m.Finishes, m.Diagnostics, m.Handoffs)
	return m
}

// Registry exposes the registry so callers can add their own collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Hooks returns lifecycle hooks that feed the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepEnter: func(_ context.Context, e *domain.StepEvent) {
			m.StepsEntered.WithLabelValues(e.StepID, string(e.StepKind)).Inc()
		},
		OnSuspend: func(_ context.Context, e *domain.RunEvent) {
			m.Suspensions.WithLabelValues(string(e.Status)).Inc()
		},
		OnFinish: func(context.Context, *domain.RunEvent) {
			m.Finishes.Inc()
		},
		OnDiagnostic: func(context.Context, *domain.RunEvent) {
			m.Diagnostics.Inc()
		},
		OnHandoff: func(_ context.Context, e *domain.HandoffEvent) {
			m.Handoffs.WithLabelValues(string(e.Handoff.Action)).Inc()
		},
	}
}
