package expr

import (
	"errors"
	"testing"

	"mercator-hq/mixer/pkg/attribute"
	"mercator-hq/mixer/pkg/schema"
)

func TestEvalBool(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		attrs map[string]interface{}
		want  bool
	}{
		{name: "empty is true", src: "", attrs: nil, want: true},
		{name: "empty is true with attributes", src: "", attrs: map[string]interface{}{"a": "1"}, want: true},
		{
			name:  "wildcard prefix match",
			src:   `destination.service == "ratings*"`,
			attrs: map[string]interface{}{"destination.service": "ratings-v1"},
			want:  true,
		},
		{
			name:  "wildcard prefix mismatch",
			src:   `destination.service == "ratings*"`,
			attrs: map[string]interface{}{"destination.service": "other"},
			want:  false,
		},
		{
			name:  "wildcard only trailing",
			src:   `destination.service == "*-v1"`,
			attrs: map[string]interface{}{"destination.service": "ratings-v1"},
			want:  false,
		},
		{
			name:  "wildcard on left",
			src:   `"ratings*" == destination.service`,
			attrs: map[string]interface{}{"destination.service": "ratings"},
			want:  true,
		},
		{
			name:  "star matches anything present",
			src:   `source.user == "*"`,
			attrs: map[string]interface{}{"source.user": 42},
			want:  true,
		},
		{name: "star requires presence", src: `source.user == "*"`, attrs: nil, want: false},
		{
			name:  "wildcard not equal",
			src:   `destination.service != "ratings*"`,
			attrs: map[string]interface{}{"destination.service": "reviews"},
			want:  true,
		},
		{
			name:  "and both hold",
			src:   `a == "20" && b == "30"`,
			attrs: map[string]interface{}{"a": "20", "b": "30"},
			want:  true,
		},
		{
			name:  "and first flipped",
			src:   `a == "20" && b == "30"`,
			attrs: map[string]interface{}{"a": "21", "b": "30"},
			want:  false,
		},
		{
			name:  "and second flipped",
			src:   `a == "20" && b == "30"`,
			attrs: map[string]interface{}{"a": "20", "b": "31"},
			want:  false,
		},
		{
			name:  "or",
			src:   `a == "1" || b == "2"`,
			attrs: map[string]interface{}{"b": "2"},
			want:  true,
		},
		{name: "missing attribute equality", src: `a == "1"`, attrs: nil, want: false},
		{name: "missing attribute inequality", src: `a != "1"`, attrs: nil, want: false},
		{name: "negated missing comparison", src: `!(a == "1")`, attrs: nil, want: true},
		{name: "number equality", src: `response.code == 200`, attrs: map[string]interface{}{"response.code": 200}, want: true},
		{name: "no coercion", src: `response.code == "200"`, attrs: map[string]interface{}{"response.code": 200}, want: false},
		{name: "bool attribute", src: `context.secure`, attrs: map[string]interface{}{"context.secure": true}, want: true},
		{name: "string attribute in bool position", src: `context.secure`, attrs: map[string]interface{}{"context.secure": "yes"}, want: false},
		{name: "missing bool attribute", src: `context.secure`, attrs: nil, want: false},
		{name: "false literal", src: `false`, attrs: nil, want: false},
		{name: "not", src: `!context.secure`, attrs: map[string]interface{}{"context.secure": false}, want: true},
		{
			name:  "attribute to attribute",
			src:   `source.namespace == destination.namespace`,
			attrs: map[string]interface{}{"source.namespace": "default", "destination.namespace": "default"},
			want:  true,
		},
		{name: "default used", src: `source.service | "unknown" == "unknown"`, attrs: nil, want: true},
		{
			name:  "default skipped",
			src:   `source.service | "unknown" == "unknown"`,
			attrs: map[string]interface{}{"source.service": "productpage"},
			want:  false,
		},
		{name: "compare booleans", src: `(a == "1") == true`, attrs: map[string]interface{}{"a": "1"}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := Parse(tt.src)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.src, err)
			}
			bag := attribute.MustBag(tt.attrs)
			if got := EvalBool(n, bag); got != tt.want {
				t.Errorf("EvalBool(%q) = %v, want %v", tt.src, got, tt.want)
			}
		})
	}
}

// countingBag records every lookup so short-circuiting can be observed.
type countingBag struct {
	attribute.MapBag
	lookups map[string]int
}

func (b *countingBag) Get(name string) (schema.Value, bool) {
	b.lookups[name]++
	return b.MapBag.Get(name)
}

func TestEvalBool_ShortCircuit(t *testing.T) {
	bag := &countingBag{
		MapBag:  attribute.MustBag(map[string]interface{}{"a": "1"}),
		lookups: map[string]int{},
	}

	EvalBool(MustParse(`a == "2" && b == "3"`), bag)
	if bag.lookups["b"] != 0 {
		t.Errorf("&& evaluated right operand after false left operand")
	}

	EvalBool(MustParse(`a == "1" || b == "3"`), bag)
	if bag.lookups["b"] != 0 {
		t.Errorf("|| evaluated right operand after true left operand")
	}
}

func TestEval(t *testing.T) {
	bag := attribute.MustBag(map[string]interface{}{
		"source.service": "productpage",
		"response.code":  404,
		"request.size":   128.5,
	})

	tests := []struct {
		name string
		src  string
		want schema.Value
	}{
		{name: "string literal", src: `"1"`, want: schema.String("1")},
		{name: "number literal", src: `10`, want: schema.Number(10)},
		{name: "attribute", src: `source.service`, want: schema.String("productpage")},
		{name: "number attribute", src: `response.code`, want: schema.Number(404)},
		{name: "comparison", src: `response.code == 404`, want: schema.Bool(true)},
		{name: "comparison with missing", src: `destination.service == "x"`, want: schema.Bool(false)},
		{name: "default present", src: `source.service | "unknown"`, want: schema.String("productpage")},
		{name: "default absent", src: `destination.service | "unknown"`, want: schema.String("unknown")},
		{name: "chained default", src: `a | b | request.size`, want: schema.Number(128.5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Eval(MustParse(tt.src), bag)
			if err != nil {
				t.Fatalf("Eval(%q) error = %v", tt.src, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Eval(%q) = %s, want %s", tt.src, got, tt.want)
			}
		})
	}
}

func TestEval_MissingAttribute(t *testing.T) {
	for _, src := range []string{`destination.service`, `a | b`} {
		_, err := Eval(MustParse(src), attribute.EmptyBag)
		if !errors.Is(err, ErrMissingAttribute) {
			t.Fatalf("Eval(%q) error = %v, want ErrMissingAttribute", src, err)
		}
		var evalErr *EvaluationError
		if !errors.As(err, &evalErr) || evalErr.Kind != KindMissingAttribute {
			t.Errorf("Eval(%q) error = %#v", src, err)
		}
	}
}
