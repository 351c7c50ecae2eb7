package schema

import (
	"encoding/json"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestFromInterface(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want Value
	}{
		{name: "nil", in: nil, want: Null()},
		{name: "string", in: "ratings", want: String("ratings")},
		{name: "int", in: 42, want: Number(42)},
		{name: "float", in: 1.5, want: Number(1.5)},
		{name: "bool", in: true, want: Bool(true)},
		{
			name: "nested",
			in: map[string]interface{}{
				"labels": map[string]interface{}{"app": "ratings"},
				"ports":  []interface{}{80, 443},
			},
			want: Map(map[string]Value{
				"labels": Map(map[string]Value{"app": String("ratings")}),
				"ports":  List(Number(80), Number(443)),
			}),
		},
		{name: "string map", in: map[string]string{"a": "b"}, want: Map(map[string]Value{"a": String("b")})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromInterface(tt.in)
			if err != nil {
				t.Fatalf("FromInterface() error = %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("FromInterface() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFromInterface_Unsupported(t *testing.T) {
	if _, err := FromInterface(struct{}{}); err == nil {
		t.Error("expected error for unsupported type")
	}
}

func TestValueEqual(t *testing.T) {
	a := Map(map[string]Value{"x": List(String("1"), Bool(false))})
	b := Map(map[string]Value{"x": List(String("1"), Bool(false))})
	c := Map(map[string]Value{"x": List(String("1"))})

	if !a.Equal(b) {
		t.Error("expected equal maps")
	}
	if a.Equal(c) {
		t.Error("expected different maps")
	}
	if String("1").Equal(Number(1)) {
		t.Error("string and number must not be equal")
	}
	if !Null().Equal(Value{}) {
		t.Error("zero Value must be null")
	}
}

func TestValueJSON(t *testing.T) {
	in := Map(map[string]Value{
		"value":      String("1"),
		"dimensions": Map(map[string]Value{"source": String("source.service")}),
		"weight":     Number(2.5),
		"enabled":    Bool(true),
		"tags":       List(String("a"), String("b")),
		"nothing":    Null(),
	})

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var out Value
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !in.Equal(out) {
		t.Errorf("round trip mismatch: %s != %s", in, out)
	}
}

func TestValueYAML(t *testing.T) {
	src := `
value: "1"
dimensions:
  source: source.service
  code: 200
`
	var v Value
	if err := yaml.Unmarshal([]byte(src), &v); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	dims, ok := v.Field("dimensions")
	if !ok || dims.Kind() != KindMap {
		t.Fatalf("dimensions = %s, want map", dims)
	}
	code, _ := dims.Field("code")
	if n, ok := code.Num(); !ok || n != 200 {
		t.Errorf("code = %s, want 200", code)
	}
}

func TestValueString(t *testing.T) {
	v := Map(map[string]Value{"b": Number(1), "a": List(String("x"))})
	if got, want := v.String(), `{"a":["x"],"b":1}`; got != want {
		t.Errorf("String() = %s, want %s", got, want)
	}
}
