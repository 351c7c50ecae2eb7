package adapter

import (
	"context"
	"time"

	"mercator-hq/mixer/pkg/policy/instance"
	"mercator-hq/mixer/pkg/schema"
)

// Adapter delivers built instances to an external sink.
//
// Handle is called once per dispatched action with the instances of that
// action in declared order. It may block and must respect ctx. Handle is
// called concurrently by independent requests.
type Adapter interface {
	// Name returns the adapter name handlers refer to.
	Name() string

	// Handle delivers instances on behalf of handler.
	Handle(ctx context.Context, handler *schema.Handler, instances []*instance.Instance) error

	// HealthCheck returns nil if the sink is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases resources held by the adapter.
	Close() error
}

// Record is the serialized form of one delivered instance, shared by the
// adapters that persist invocations.
type Record struct {
	Handler   string                 `json:"handler"`
	Adapter   string                 `json:"adapter"`
	Instance  string                 `json:"instance"`
	Template  string                 `json:"template"`
	Fields    map[string]interface{} `json:"fields"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewRecords converts one invocation into records, one per instance.
func NewRecords(handler *schema.Handler, instances []*instance.Instance, now time.Time) []Record {
	out := make([]Record, 0, len(instances))
	for _, inst := range instances {
		fields, _ := inst.Fields.Interface().(map[string]interface{})
		if fields == nil {
			fields = map[string]interface{}{}
		}
		out = append(out, Record{
			Handler:   handler.Name,
			Adapter:   handler.Adapter,
			Instance:  inst.Name,
			Template:  inst.Template,
			Fields:    fields,
			Timestamp: now.UTC(),
		})
	}
	return out
}

// StringParam returns the string param key of handler, or def if absent.
func StringParam(handler *schema.Handler, key, def string) string {
	if v, ok := handler.Params.Field(key); ok {
		if s, ok := v.Str(); ok && s != "" {
			return s
		}
	}
	return def
}
