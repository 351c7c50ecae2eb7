package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/mixer/pkg/config"
)

// Action outcomes.
const (
	OutcomeInvoked = "invoked"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// OtherLabel replaces label values beyond the cardinality limit.
const OtherLabel = "other"

// Collector is the entry point for all Prometheus metrics of the process.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	dispatchMetrics *DispatchMetrics
	reloadMetrics   *ReloadMetrics
	httpMetrics     *HTTPMetrics

	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a collector registering on registry. If registry is
// nil a fresh registry is created.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg == nil {
		cfg = &config.MetricsConfig{Enabled: true}
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.DispatchDurationBuckets) == 0 {
		cfg.DispatchDurationBuckets = append([]float64(nil), config.DefaultDispatchDurationBuckets...)
	}

	c := &Collector{
		config:             cfg,
		registry:           registry,
		cardinalityLimiter: NewCardinalityLimiter(1000),
	}

	c.dispatchMetrics = NewDispatchMetrics(cfg, registry)
	c.reloadMetrics = NewReloadMetrics(cfg, registry)
	c.httpMetrics = NewHTTPMetrics(cfg, registry)

	return c
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// label bounds the cardinality of a configuration-derived label value.
func (c *Collector) label(kind, value string) string {
	if c.cardinalityLimiter.Allow(kind + ":" + value) {
		return value
	}
	return OtherLabel
}

// RecordDispatch records one dispatched request.
//
// Parameters:
//   - status: "ok", "partial" (some actions failed or were skipped),
//     "cancelled" or "rejected"
//   - duration: time spent dispatching
func (c *Collector) RecordDispatch(status string, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.dispatchMetrics.RecordDispatch(status, duration)
}

// RecordRulesSelected records how many rules matched one request.
func (c *Collector) RecordRulesSelected(n int) {
	if !c.enabled() {
		return
	}
	c.dispatchMetrics.RecordRulesSelected(n)
}

// RecordAction records the outcome of one action.
func (c *Collector) RecordAction(handler, outcome string) {
	if !c.enabled() {
		return
	}
	c.dispatchMetrics.RecordAction(c.label("handler", handler), outcome)
}

// RecordBuild records one instance build.
func (c *Collector) RecordBuild(instance string, err error) {
	if !c.enabled() {
		return
	}
	c.dispatchMetrics.RecordBuild(c.label("instance", instance), err)
}

// RecordReload records a snapshot reload attempt.
func (c *Collector) RecordReload(status string, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.reloadMetrics.RecordReload(status, duration)
}

// SetSnapshot records the sizes of the active snapshot.
func (c *Collector) SetSnapshot(rules, instances, handlers, attributes int) {
	if !c.enabled() {
		return
	}
	c.reloadMetrics.SetSnapshot(rules, instances, handlers, attributes)
}

// RecordHTTPRequest records one request to the HTTP surface.
func (c *Collector) RecordHTTPRequest(route string, code int, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.httpMetrics.RecordRequest(route, code, duration)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter limits the number of unique label values tracked.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter allowing maxCardinality values.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether labelSet is already tracked or can still be added.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
