// Package prometheus implements an adapter that turns metric instances
// into Prometheus samples.
//
// Each metric instance is exported as one metric. Its "value" field is the
// sample and its "dimensions" map supplies the labels. Handler params may
// describe the exported metrics:
//
//	handlers:
//	  - name: prom
//	    adapter: prometheus
//	    params:
//	      metrics:
//	        - instance_name: requestcount
//	          name: request_count
//	          kind: COUNTER
//	          label_names: [code, destination]
//	        - instance_name: latency
//	          kind: DISTRIBUTION
//	          buckets: [0.01, 0.1, 1]
//
// An instance without an entry becomes a counter named after the instance
// with one label per dimension of the first sample.
package prometheus

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/mixer/pkg/adapter"
	"mercator-hq/mixer/pkg/policy/instance"
	"mercator-hq/mixer/pkg/schema"
	"mercator-hq/mixer/pkg/templates"
)

// Name is the adapter name.
const Name = "prometheus"

// DefaultNamespace prefixes every exported metric.
const DefaultNamespace = "mixer_adapter"

// Metric kinds.
const (
	KindCounter      = "COUNTER"
	KindGauge        = "GAUGE"
	KindDistribution = "DISTRIBUTION"
)

// metricSpec describes one exported metric.
type metricSpec struct {
	name       string
	kind       string
	labelNames []string
	buckets    []float64
}

// collector is a registered metric vector.
type collector struct {
	spec      metricSpec
	counter   *prometheus.CounterVec
	gauge     *prometheus.GaugeVec
	histogram *prometheus.HistogramVec
}

func (c *collector) observe(labels []string, v float64) error {
	switch c.spec.kind {
	case KindCounter:
		if v < 0 {
			return fmt.Errorf("counter %s cannot decrease (value %v)", c.spec.name, v)
		}
		c.counter.WithLabelValues(labels...).Add(v)
	case KindGauge:
		c.gauge.WithLabelValues(labels...).Set(v)
	case KindDistribution:
		c.histogram.WithLabelValues(labels...).Observe(v)
	}
	return nil
}

// Adapter exports metric instances to a Prometheus registerer.
type Adapter struct {
	registerer prometheus.Registerer
	namespace  string

	mu         sync.Mutex
	collectors map[string]*collector
}

// New creates the adapter. Metrics are registered on registerer as they are
// first observed. An empty namespace means DefaultNamespace.
func New(registerer prometheus.Registerer, namespace string) *Adapter {
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Adapter{
		registerer: registerer,
		namespace:  namespace,
		collectors: make(map[string]*collector),
	}
}

func (a *Adapter) Name() string { return Name }

// Handle records one sample per instance. Only metric instances are
// accepted.
func (a *Adapter) Handle(ctx context.Context, handler *schema.Handler, instances []*instance.Instance) error {
	specs, err := parseSpecs(handler)
	if err != nil {
		return err
	}

	for _, inst := range instances {
		if inst.Template != templates.Metric {
			return fmt.Errorf("%w: %s has template %q, want %q", adapter.ErrUnsupportedInstance, inst.Name, inst.Template, templates.Metric)
		}

		value, err := sampleValue(inst)
		if err != nil {
			return err
		}
		dims := dimensions(inst)

		spec, ok := specs[inst.Name]
		if !ok {
			spec = metricSpec{name: inst.Name, kind: KindCounter, labelNames: sortedKeys(dims)}
		}
		if spec.name == "" {
			spec.name = inst.Name
		}
		if spec.labelNames == nil {
			spec.labelNames = sortedKeys(dims)
		}

		c, err := a.collector(handler.Name, spec)
		if err != nil {
			return err
		}

		labels := make([]string, len(c.spec.labelNames))
		for i, name := range c.spec.labelNames {
			labels[i] = dims[name]
		}
		if err := c.observe(labels, value); err != nil {
			return err
		}
	}
	return nil
}

// collector returns the vector for spec, registering it on first use. A
// later spec with the same name must keep the kind and labels.
func (a *Adapter) collector(handler string, spec metricSpec) (*collector, error) {
	key := handler + "/" + spec.name

	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.collectors[key]; ok {
		if c.spec.kind != spec.kind || strings.Join(c.spec.labelNames, ",") != strings.Join(spec.labelNames, ",") {
			return nil, fmt.Errorf("metric %s redefined: was %s%v, now %s%v", spec.name, c.spec.kind, c.spec.labelNames, spec.kind, spec.labelNames)
		}
		return c, nil
	}

	c := &collector{spec: spec}
	help := fmt.Sprintf("Metric instance %s delivered to handler %s", spec.name, handler)
	constLabels := prometheus.Labels{"handler": handler}

	var vec prometheus.Collector
	switch spec.kind {
	case KindCounter:
		c.counter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: a.namespace, Name: spec.name, Help: help, ConstLabels: constLabels,
		}, spec.labelNames)
		vec = c.counter
	case KindGauge:
		c.gauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: a.namespace, Name: spec.name, Help: help, ConstLabels: constLabels,
		}, spec.labelNames)
		vec = c.gauge
	case KindDistribution:
		buckets := spec.buckets
		if len(buckets) == 0 {
			buckets = prometheus.DefBuckets
		}
		c.histogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: a.namespace, Name: spec.name, Help: help, ConstLabels: constLabels, Buckets: buckets,
		}, spec.labelNames)
		vec = c.histogram
	default:
		return nil, fmt.Errorf("metric %s: unknown kind %q", spec.name, spec.kind)
	}

	if err := a.registerer.Register(vec); err != nil {
		return nil, fmt.Errorf("register metric %s: %w", spec.name, err)
	}
	a.collectors[key] = c
	return c, nil
}

func (a *Adapter) HealthCheck(context.Context) error { return nil }

// Close unregisters every metric created by the adapter.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for key, c := range a.collectors {
		switch {
		case c.counter != nil:
			a.registerer.Unregister(c.counter)
		case c.gauge != nil:
			a.registerer.Unregister(c.gauge)
		case c.histogram != nil:
			a.registerer.Unregister(c.histogram)
		}
		delete(a.collectors, key)
	}
	return nil
}

func sampleValue(inst *instance.Instance) (float64, error) {
	v, ok := inst.Fields.Field("value")
	if !ok {
		return 0, fmt.Errorf("%w: %s has no value", adapter.ErrUnsupportedInstance, inst.Name)
	}
	switch v.Kind() {
	case schema.KindNumber:
		n, _ := v.Num()
		return n, nil
	case schema.KindBool:
		if b, _ := v.Boolean(); b {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: %s value is a %s, want a number", adapter.ErrUnsupportedInstance, inst.Name, v.Kind())
	}
}

// dimensions renders every dimension as a label value.
func dimensions(inst *instance.Instance) map[string]string {
	d, _ := inst.Fields.Field("dimensions")
	out := make(map[string]string, len(d.Fields()))
	for k, v := range d.Fields() {
		if s, ok := v.Str(); ok {
			out[k] = s
		} else {
			out[k] = v.String()
		}
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// parseSpecs reads the "metrics" handler param.
func parseSpecs(handler *schema.Handler) (map[string]metricSpec, error) {
	list, ok := handler.Params.Field("metrics")
	if !ok {
		return nil, nil
	}
	if list.Kind() != schema.KindList {
		return nil, fmt.Errorf("handler %s: metrics must be a list", handler.Name)
	}

	specs := make(map[string]metricSpec, len(list.Items()))
	for i, item := range list.Items() {
		instName := stringField(item, "instance_name")
		if instName == "" {
			return nil, fmt.Errorf("handler %s: metrics[%d].instance_name is required", handler.Name, i)
		}
		spec := metricSpec{
			name: stringField(item, "name"),
			kind: strings.ToUpper(stringField(item, "kind")),
		}
		if spec.kind == "" {
			spec.kind = KindCounter
		}
		if names, ok := item.Field("label_names"); ok {
			spec.labelNames = []string{}
			for _, n := range names.Items() {
				s, _ := n.Str()
				spec.labelNames = append(spec.labelNames, s)
			}
		}
		if buckets, ok := item.Field("buckets"); ok {
			for _, b := range buckets.Items() {
				n, _ := b.Num()
				spec.buckets = append(spec.buckets, n)
			}
		}
		specs[instName] = spec
	}
	return specs, nil
}

func stringField(v schema.Value, key string) string {
	f, _ := v.Field(key)
	s, _ := f.Str()
	return s
}
