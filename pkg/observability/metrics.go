package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics of the hook runtime. All methods are
// safe on a nil receiver so components can run without metrics.
type Metrics struct {
	// Hook invocation metrics
	HookInvocationsTotal  *prometheus.CounterVec
	HookDuration          *prometheus.HistogramVec
	HandlersPerInvocation *prometheus.HistogramVec

	// Category resolution metrics
	CategoryLoadsTotal *prometheus.CounterVec

	// Interaction metrics
	InteractionsTotal      *prometheus.CounterVec
	InteractionWaitSeconds prometheus.Histogram

	// Configuration variable metrics
	VariableResolutionsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HookInvocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hookrt_hook_invocations_total",
				Help: "Total number of hook protocol invocations",
			},
			[]string{"category", "hook", "protocol", "status"},
		),
		HookDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hookrt_hook_duration_seconds",
				Help:    "Hook protocol invocation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"category", "hook", "protocol"},
		),
		HandlersPerInvocation: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hookrt_hook_handlers",
				Help:    "Number of candidate handlers per hook invocation",
				Buckets: []float64{0, 1, 2, 4, 8, 16, 32},
			},
			[]string{"category", "hook"},
		),
		CategoryLoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hookrt_category_loads_total",
				Help: "Total number of plugin hook category resolutions",
			},
			[]string{"category", "kind", "status"},
		),
		InteractionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hookrt_interactions_total",
				Help: "Total number of user interactions",
			},
			[]string{"kind", "status"},
		),
		InteractionWaitSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hookrt_interaction_wait_seconds",
				Help:    "Time spent waiting for the interaction section",
				Buckets: []float64{0.001, 0.01, 0.1, 1, 10, 60},
			},
		),
		VariableResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hookrt_variable_resolutions_total",
				Help: "Total number of configuration variable resolutions",
			},
			[]string{"kind", "source", "status"},
		),
	}

	registry.MustRegister(
		m.HookInvocationsTotal,
		m.HookDuration,
		m.HandlersPerInvocation,
		m.CategoryLoadsTotal,
		m.InteractionsTotal,
		m.InteractionWaitSeconds,
		m.VariableResolutionsTotal,
	)

	return m
}

// ObserveHook records one protocol invocation.
func (m *Metrics) ObserveHook(category, hook, protocol string, handlers int, start time.Time, err error) {
	if m == nil {
		return
	}
	m.HookInvocationsTotal.WithLabelValues(category, hook, protocol, status(err)).Inc()
	m.HookDuration.WithLabelValues(category, hook, protocol).Observe(time.Since(start).Seconds())
	m.HandlersPerInvocation.WithLabelValues(category, hook).Observe(float64(handlers))
}

// RecordCategoryLoad records the resolution of a plugin's category.
func (m *Metrics) RecordCategoryLoad(category, kind string, err error) {
	if m == nil {
		return
	}
	m.CategoryLoadsTotal.WithLabelValues(category, kind, status(err)).Inc()
}

// RecordInteraction records a finished interaction.
func (m *Metrics) RecordInteraction(kind string, err error) {
	if m == nil {
		return
	}
	m.InteractionsTotal.WithLabelValues(kind, status(err)).Inc()
}

// ObserveInteractionWait records time spent queued for the interaction section.
func (m *Metrics) ObserveInteractionWait(d time.Duration) {
	if m == nil {
		return
	}
	m.InteractionWaitSeconds.Observe(d.Seconds())
}

// RecordVariableResolution records a configuration variable resolution.
func (m *Metrics) RecordVariableResolution(kind, source string, err error) {
	if m == nil {
		return
	}
	m.VariableResolutionsTotal.WithLabelValues(kind, source, status(err)).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
