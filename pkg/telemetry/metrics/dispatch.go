package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/mixer/pkg/config"
)

// DispatchMetrics tracks request dispatch.
//
// Metrics:
//   - mixer_dispatch_requests_total: dispatched requests by status
//   - mixer_dispatch_duration_seconds: dispatch duration
//   - mixer_dispatch_rules_selected: matching rules per request
//   - mixer_dispatch_actions_total: actions by handler and outcome
//   - mixer_instance_builds_total: instance builds by instance and result
type DispatchMetrics struct {
	requestsTotal    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	rulesSelected    prometheus.Histogram
	actionsTotal     *prometheus.CounterVec
	buildsTotal      *prometheus.CounterVec
}

// NewDispatchMetrics creates and registers dispatch metrics.
func NewDispatchMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *DispatchMetrics {
	dm := &DispatchMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "dispatch_requests_total",
				Help:      "Total number of dispatched requests",
			},
			[]string{"status"},
		),

		dispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "dispatch_duration_seconds",
				Help:      "Duration of request dispatch in seconds",
				Buckets:   cfg.DispatchDurationBuckets,
			},
			[]string{"status"},
		),

		rulesSelected: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "dispatch_rules_selected",
				Help:      "Number of rules matching a request",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
			},
		),

		actionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "dispatch_actions_total",
				Help:      "Total number of actions by handler and outcome",
			},
			[]string{"handler", "outcome"},
		),

		buildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "instance_builds_total",
				Help:      "Total number of instance builds by instance and result",
			},
			[]string{"instance", "result"},
		),
	}

	registry.MustRegister(
		dm.requestsTotal,
		dm.dispatchDuration,
		dm.rulesSelected,
		dm.actionsTotal,
		dm.buildsTotal,
	)

	return dm
}

// RecordDispatch records a dispatched request.
func (dm *DispatchMetrics) RecordDispatch(status string, duration time.Duration) {
	dm.requestsTotal.WithLabelValues(status).Inc()
	dm.dispatchDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordRulesSelected records the number of matching rules.
func (dm *DispatchMetrics) RecordRulesSelected(n int) {
	dm.rulesSelected.Observe(float64(n))
}

// RecordAction records one action outcome.
func (dm *DispatchMetrics) RecordAction(handler, outcome string) {
	dm.actionsTotal.WithLabelValues(handler, outcome).Inc()
}

// RecordBuild records one instance build.
func (dm *DispatchMetrics) RecordBuild(instance string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	dm.buildsTotal.WithLabelValues(instance, result).Inc()
}
