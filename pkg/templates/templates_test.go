package templates

import (
	"testing"

	"mercator-hq/mixer/pkg/schema"
)

func TestDefault(t *testing.T) {
	r := Default()

	want := []string{Authorization, CheckNothing, ListEntry, LogEntry, Metric, Quota}
	got := r.Names()
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	metric, ok := r.Get(Metric)
	if !ok {
		t.Fatal("metric template not registered")
	}
	if metric.Open() {
		t.Error("metric template should declare fields")
	}
	if req := metric.Required(); len(req) != 1 || req[0] != "value" {
		t.Errorf("metric Required() = %v", req)
	}
	if f, ok := metric.Field("dimensions"); !ok || f.Kind != schema.KindMap {
		t.Errorf("metric dimensions = %+v, %v", f, ok)
	}
	if _, ok := metric.Field("bogus"); ok {
		t.Error("metric accepted an undeclared field")
	}

	authz, _ := r.Get(Authorization)
	if !authz.Open() {
		t.Error("authorization template should be open")
	}
	if _, ok := authz.Field("subject"); !ok {
		t.Error("open template rejected a field")
	}

	nothing, _ := r.Get(CheckNothing)
	if nothing.Open() {
		t.Error("checknothing template should be closed")
	}
	if _, ok := nothing.Field("value"); ok {
		t.Error("checknothing accepted a field")
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name    string
		tmpl    *Template
		wantErr bool
	}{
		{name: "valid", tmpl: &Template{Name: "custom"}},
		{name: "duplicate", tmpl: &Template{Name: "custom"}, wantErr: true},
		{name: "empty name", tmpl: &Template{}, wantErr: true},
		{name: "nil", tmpl: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Register(tt.tmpl)
			if (err != nil) != tt.wantErr {
				t.Errorf("Register() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if _, ok := r.Get("missing"); ok {
		t.Error("Get(missing) reported ok")
	}
}
