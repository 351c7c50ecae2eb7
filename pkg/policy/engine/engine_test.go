package engine

import (
	"context"
	"errors"
	"testing"

	"mercator-hq/mixer/pkg/adapter"
	"mercator-hq/mixer/pkg/policy/dispatch"
	"mercator-hq/mixer/pkg/policy/snapshot"
	"mercator-hq/mixer/pkg/schema"
	"mercator-hq/mixer/pkg/telemetry/health"
)

const testConfig = `
manifests:
  - name: proxy
    attributes:
      destination.service: {valueType: STRING}
      response.code: {valueType: INT64}
rules:
  - match: destination.service == "ratings*"
    actions:
      - handler: sink
        instances: [requestcount, requestcount]
instances:
  - name: requestcount
    template: metric
    params:
      value: "1"
      dimensions:
        code: response.code | 0
handlers:
  - name: sink
    adapter: memory
`

func newEngine(t *testing.T) (*Engine, *snapshot.Store, *adapter.Memory) {
	t.Helper()
	mem := adapter.NewMemory()
	reg := adapter.NewRegistry(nil)
	if err := reg.Register(mem); err != nil {
		t.Fatal(err)
	}
	store := snapshot.NewStore()
	e, err := New(&Config{Store: store, Adapters: reg}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e, store, mem
}

func activate(t *testing.T, store *snapshot.Store, reg snapshot.AdapterFinder) {
	t.Helper()
	cfg, err := schema.DecodeYAML([]byte(testConfig))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Activate(cfg, snapshot.Options{StrictAttributes: true, Adapters: reg}); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
}

func TestNew_Errors(t *testing.T) {
	reg := adapter.NewRegistry(nil)
	tests := []struct {
		name string
		cfg  *Config
	}{
		{name: "nil config"},
		{name: "nil store", cfg: &Config{Adapters: reg}},
		{name: "nil adapters", cfg: &Config{Store: snapshot.NewStore()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestEngine_CheckWithoutSnapshot(t *testing.T) {
	e, _, _ := newEngine(t)
	if e.Ready() {
		t.Error("engine should not be ready without a snapshot")
	}
	if _, err := e.CheckValues(context.Background(), nil); !errors.Is(err, dispatch.ErrNoSnapshot) {
		t.Errorf("Check() error = %v, want ErrNoSnapshot", err)
	}
}

func TestEngine_CheckValues(t *testing.T) {
	e, store, mem := newEngine(t)
	activate(t, store, e.adapters)

	res, err := e.CheckValues(context.Background(), map[string]interface{}{
		"destination.service": "ratings.default",
		"response.code":       200,
	})
	if err != nil {
		t.Fatalf("CheckValues() error = %v", err)
	}
	if res.Invoked != 1 || len(res.Errors) != 0 {
		t.Fatalf("result invoked=%d errors=%v, want 1 and none", res.Invoked, res.Errors)
	}

	calls := mem.Invocations()
	if len(calls) != 1 {
		t.Fatalf("memory adapter got %d invocations, want 1", len(calls))
	}
	if len(calls[0].Instances) != 2 {
		t.Errorf("got %d instances, want the duplicate delivered twice", len(calls[0].Instances))
	}
	if calls[0].Instances[0] != calls[0].Instances[1] {
		t.Error("duplicate instance should be built once and delivered twice")
	}

	res, err = e.CheckValues(context.Background(), map[string]interface{}{"destination.service": "reviews"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rules) != 0 || res.Invoked != 0 {
		t.Errorf("non-matching request selected %v and invoked %d", res.Rules, res.Invoked)
	}
}

func TestEngine_CheckValuesInvalid(t *testing.T) {
	e, store, _ := newEngine(t)
	activate(t, store, e.adapters)

	_, err := e.CheckValues(context.Background(), map[string]interface{}{"destination.service": struct{}{}})
	if !errors.Is(err, ErrInvalidAttributes) {
		t.Errorf("CheckValues() error = %v, want ErrInvalidAttributes", err)
	}
}

func TestEngine_HealthChecks(t *testing.T) {
	e, store, _ := newEngine(t)
	checker := health.New(0)
	e.RegisterHealthChecks(checker)

	if checker.CheckReadiness(context.Background()).Ready() {
		t.Error("readiness should fail without a snapshot")
	}

	activate(t, store, e.adapters)
	if st := checker.CheckReadiness(context.Background()); !st.Ready() {
		t.Errorf("readiness = %+v, want ready", st)
	}
	if err := e.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
