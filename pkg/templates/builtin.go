package templates

import "mercator-hq/mixer/pkg/schema"

// Names of the built-in templates.
const (
	Metric        = "metric"
	LogEntry      = "logentry"
	ListEntry     = "listentry"
	CheckNothing  = "checknothing"
	Quota         = "quota"
	Authorization = "authorization"
)

// Builtin returns the built-in templates.
func Builtin() []*Template {
	return []*Template{
		{
			Name: Metric,
			Fields: map[string]FieldSpec{
				"value":                         {Required: true},
				"dimensions":                    {Kind: schema.KindMap},
				"monitored_resource_type":       {Kind: schema.KindString},
				"monitored_resource_dimensions": {Kind: schema.KindMap},
			},
		},
		{
			Name: LogEntry,
			Fields: map[string]FieldSpec{
				"variables":               {Kind: schema.KindMap},
				"timestamp":               {},
				"severity":                {Kind: schema.KindString},
				"monitored_resource_type": {Kind: schema.KindString},
			},
		},
		{
			Name: ListEntry,
			Fields: map[string]FieldSpec{
				"value": {Required: true},
			},
		},
		{
			Name:   CheckNothing,
			Fields: map[string]FieldSpec{},
		},
		{
			Name: Quota,
			Fields: map[string]FieldSpec{
				"dimensions": {Kind: schema.KindMap},
			},
		},
		{
			// Authorization carries nested subject and action maps whose
			// contents vary per adapter.
			Name: Authorization,
		},
	}
}

// Default returns a registry holding the built-in templates.
func Default() *Registry {
	r := NewRegistry()
	for _, t := range Builtin() {
		// Built-in names are distinct.
		_ = r.Register(t)
	}
	return r
}
