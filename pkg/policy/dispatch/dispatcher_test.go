package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/mixer/pkg/attribute"
	"mercator-hq/mixer/pkg/config"
	"mercator-hq/mixer/pkg/policy/instance"
	"mercator-hq/mixer/pkg/policy/snapshot"
	"mercator-hq/mixer/pkg/schema"
	"mercator-hq/mixer/pkg/telemetry/logging"
	"mercator-hq/mixer/pkg/telemetry/metrics"
)

const testConfig = `
manifests:
  - name: proxy
    attributes:
      destination.service: {valueType: STRING}
      source.service: {valueType: STRING}
      response.code: {valueType: INT64}
rules:
  - match: destination.service == "ratings*"
    actions:
      - handler: prom
        instances: [requestcount]
  - actions:
      - handler: stdio
        instances: [accesslog, requestcount]
  - match: response.code == 500
    actions:
      - handler: prom
        instances: [requestcount]
instances:
  - name: requestcount
    template: metric
    params:
      value: "1"
      dimensions:
        code: response.code
  - name: accesslog
    template: logentry
    params:
      severity: '"info"'
      variables:
        source: source.service | "unknown"
handlers:
  - name: prom
    adapter: prometheus
  - name: stdio
    adapter: log
`

func buildSnapshot(t testing.TB, src string, unchecked bool) *snapshot.Snapshot {
	t.Helper()
	cfg, err := schema.DecodeYAML([]byte(src))
	if err != nil {
		t.Fatalf("DecodeYAML() error = %v", err)
	}
	build := snapshot.Build
	if unchecked {
		build = snapshot.BuildUnchecked
	}
	snap, err := build(cfg, snapshot.Options{StrictAttributes: true})
	if err != nil {
		t.Fatalf("build snapshot: %v", err)
	}
	return snap
}

type call struct {
	handler   string
	instances []string
}

// recorder is an Invoker that records every call.
type recorder struct {
	mu    sync.Mutex
	calls []call
	fail  map[string]error
	after func(n int)
}

func (r *recorder) Invoke(ctx context.Context, h *schema.Handler, insts []*instance.Instance) error {
	r.mu.Lock()
	names := make([]string, len(insts))
	for i, inst := range insts {
		names[i] = inst.Name
	}
	r.calls = append(r.calls, call{handler: h.Name, instances: names})
	n := len(r.calls)
	err := r.fail[h.Name]
	after := r.after
	r.mu.Unlock()

	if after != nil {
		after(n)
	}
	return err
}

func newDispatcher(t testing.TB, inv Invoker, cfg *Config) *Dispatcher {
	t.Helper()
	d, err := New(inv, cfg, logging.Discard())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return d
}

func TestDispatch_Order(t *testing.T) {
	snap := buildSnapshot(t, testConfig, false)

	tests := []struct {
		name      string
		bag       map[string]interface{}
		wantRules []int
		wantCalls []call
	}{
		{
			name:      "first two rules",
			bag:       map[string]interface{}{"destination.service": "ratings.default", "response.code": 200},
			wantRules: []int{0, 1},
			wantCalls: []call{
				{handler: "prom", instances: []string{"requestcount"}},
				{handler: "stdio", instances: []string{"accesslog", "requestcount"}},
			},
		},
		{
			name:      "all rules",
			bag:       map[string]interface{}{"destination.service": "ratings", "response.code": 500},
			wantRules: []int{0, 1, 2},
			wantCalls: []call{
				{handler: "prom", instances: []string{"requestcount"}},
				{handler: "stdio", instances: []string{"accesslog", "requestcount"}},
				{handler: "prom", instances: []string{"requestcount"}},
			},
		},
		{
			name:      "only unconditional rule",
			bag:       map[string]interface{}{"destination.service": "reviews", "response.code": 200},
			wantRules: []int{1},
			wantCalls: []call{
				{handler: "stdio", instances: []string{"accesslog", "requestcount"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			d := newDispatcher(t, rec, nil)

			res, err := d.Dispatch(context.Background(), snap, attribute.MustBag(tt.bag))
			if err != nil {
				t.Fatalf("Dispatch() error = %v", err)
			}

			if len(res.Rules) != len(tt.wantRules) {
				t.Fatalf("Rules = %v, want %v", res.Rules, tt.wantRules)
			}
			for i := range tt.wantRules {
				if res.Rules[i] != tt.wantRules[i] {
					t.Errorf("Rules = %v, want %v", res.Rules, tt.wantRules)
				}
			}

			if len(rec.calls) != len(tt.wantCalls) {
				t.Fatalf("got %d calls, want %d: %+v", len(rec.calls), len(tt.wantCalls), rec.calls)
			}
			for i, want := range tt.wantCalls {
				got := rec.calls[i]
				if got.handler != want.handler || len(got.instances) != len(want.instances) {
					t.Errorf("call %d = %+v, want %+v", i, got, want)
					continue
				}
				for j := range want.instances {
					if got.instances[j] != want.instances[j] {
						t.Errorf("call %d = %+v, want %+v", i, got, want)
					}
				}
			}

			if res.Invoked != len(tt.wantCalls) || res.Skipped != 0 || len(res.Errors) != 0 {
				t.Errorf("invoked=%d skipped=%d errors=%v", res.Invoked, res.Skipped, res.Errors)
			}
			if res.Phase != PhaseDone {
				t.Errorf("Phase = %v, want Done", res.Phase)
			}
			if res.Status() != StatusOK {
				t.Errorf("Status() = %q, want ok", res.Status())
			}
			if res.RequestID == "" || res.SnapshotID != snap.ID() {
				t.Errorf("RequestID = %q, SnapshotID = %q", res.RequestID, res.SnapshotID)
			}
		})
	}
}

func TestDispatch_BuildsOncePerRequest(t *testing.T) {
	snap := buildSnapshot(t, testConfig, false)
	counter := &countingBuilder{}
	d := newDispatcher(t, &recorder{}, &Config{Builder: counter})

	bag := attribute.MustBag(map[string]interface{}{"destination.service": "ratings", "response.code": 500})
	res, err := d.Dispatch(context.Background(), snap, bag)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	// requestcount is referenced by three actions, accesslog by one.
	if counter.builds["requestcount"] != 1 || counter.builds["accesslog"] != 1 {
		t.Errorf("builds = %v, want one per instance", counter.builds)
	}
	if res.Builds != 2 {
		t.Errorf("Builds = %d, want 2", res.Builds)
	}

	// A second request builds again.
	if _, err := d.Dispatch(context.Background(), snap, bag); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if counter.builds["requestcount"] != 2 {
		t.Errorf("second request builds = %d, want 2", counter.builds["requestcount"])
	}
}

type countingBuilder struct {
	mu     sync.Mutex
	builds map[string]int
}

func (b *countingBuilder) Build(def *instance.Definition, bag attribute.Bag) (*instance.Instance, error) {
	b.mu.Lock()
	if b.builds == nil {
		b.builds = make(map[string]int)
	}
	b.builds[def.Name]++
	b.mu.Unlock()
	return instance.DefaultBuilder{}.Build(def, bag)
}

func TestDispatch_CancelAfterFirstAction(t *testing.T) {
	snap := buildSnapshot(t, testConfig, false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{after: func(n int) {
		if n == 1 {
			cancel()
		}
	}}
	d := newDispatcher(t, rec, nil)

	bag := attribute.MustBag(map[string]interface{}{"destination.service": "ratings", "response.code": 500})
	res, err := d.Dispatch(ctx, snap, bag)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if res.Invoked != 1 || res.Skipped != 2 {
		t.Errorf("invoked=%d skipped=%d, want 1 and 2", res.Invoked, res.Skipped)
	}
	if len(res.Errors) != 0 {
		t.Errorf("Errors = %v, want none", res.Errors)
	}
	if !res.Cancelled || res.Status() != StatusCancelled {
		t.Errorf("Cancelled = %v, Status() = %q", res.Cancelled, res.Status())
	}
	if res.Phase != PhaseHandlersInvoked {
		t.Errorf("Phase = %v, want HandlersInvoked", res.Phase)
	}
	if len(rec.calls) != 1 {
		t.Errorf("got %d calls, want 1", len(rec.calls))
	}
}

func TestDispatch_Timeout(t *testing.T) {
	snap := buildSnapshot(t, testConfig, false)
	rec := &recorder{after: func(n int) { time.Sleep(30 * time.Millisecond) }}
	d := newDispatcher(t, rec, &Config{Timeout: 10 * time.Millisecond})

	bag := attribute.MustBag(map[string]interface{}{"destination.service": "ratings", "response.code": 500})
	res, err := d.Dispatch(context.Background(), snap, bag)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if !res.Cancelled || res.Invoked != 1 || res.Skipped != 2 {
		t.Errorf("cancelled=%v invoked=%d skipped=%d", res.Cancelled, res.Invoked, res.Skipped)
	}
}

func TestDispatch_HandlerFailureIsRecorded(t *testing.T) {
	snap := buildSnapshot(t, testConfig, false)
	boom := errors.New("sink unavailable")
	rec := &recorder{fail: map[string]error{"prom": boom}}
	d := newDispatcher(t, rec, nil)

	bag := attribute.MustBag(map[string]interface{}{"destination.service": "ratings", "response.code": 500})
	res, err := d.Dispatch(context.Background(), snap, bag)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if res.Invoked != 3 || res.Skipped != 0 {
		t.Errorf("invoked=%d skipped=%d, want 3 and 0", res.Invoked, res.Skipped)
	}
	if len(res.Errors) != 2 {
		t.Fatalf("got %d errors, want 2: %v", len(res.Errors), res.Errors)
	}
	if res.Errors[0].Ref != "rules[0].actions[0]" || res.Errors[1].Ref != "rules[2].actions[0]" {
		t.Errorf("refs = %q, %q", res.Errors[0].Ref, res.Errors[1].Ref)
	}
	if !errors.Is(res.Errors[0].Cause, boom) {
		t.Errorf("cause = %v, want wrapped %v", res.Errors[0].Cause, boom)
	}
	var ie *InvokeError
	if !errors.As(res.Errors[0].Cause, &ie) || ie.Handler != "prom" {
		t.Errorf("cause is not an InvokeError for prom: %v", res.Errors[0].Cause)
	}
	if len(res.Failed()) != 2 {
		t.Errorf("Failed() = %d invocations, want 2", len(res.Failed()))
	}
	if res.Status() != StatusPartial {
		t.Errorf("Status() = %q, want partial", res.Status())
	}
	if len(rec.calls) != 3 {
		t.Errorf("handler retried or skipped: %d calls", len(rec.calls))
	}
}

func TestDispatch_BuildErrorSkipsAction(t *testing.T) {
	const src = `
manifests:
  - name: proxy
    attributes:
      destination.service: {valueType: STRING}
rules:
  - actions:
      - handler: sink
        instances: [needscode]
  - actions:
      - handler: sink
        instances: [plain]
  - actions:
      - handler: sink
        instances: [plain, needscode]
instances:
  - name: needscode
    template: listentry
    params:
      value: response.code
  - name: plain
    template: listentry
    params:
      value: destination.service
handlers:
  - name: sink
    adapter: memory
`
	cfg, err := schema.DecodeYAML([]byte(src))
	if err != nil {
		t.Fatalf("DecodeYAML() error = %v", err)
	}
	snap, err := snapshot.Build(cfg, snapshot.Options{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	counter := &countingBuilder{}
	rec := &recorder{}
	d := newDispatcher(t, rec, &Config{Builder: counter})

	res, err := d.Dispatch(context.Background(), snap, attribute.MustBag(map[string]interface{}{"destination.service": "ratings"}))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if res.Invoked != 1 || res.Skipped != 2 || len(res.Errors) != 2 {
		t.Fatalf("invoked=%d skipped=%d errors=%v", res.Invoked, res.Skipped, res.Errors)
	}
	var be *instance.BuildError
	if !errors.As(res.Errors[0].Cause, &be) || be.Instance != "needscode" {
		t.Errorf("first error = %v, want BuildError for needscode", res.Errors[0].Cause)
	}
	if counter.builds["needscode"] != 1 {
		t.Errorf("failed build repeated: %d builds", counter.builds["needscode"])
	}
	if res.Errors[1].Ref != "rules[2].actions[0]" {
		t.Errorf("second error ref = %q", res.Errors[1].Ref)
	}
}

func TestDispatch_UnknownReferences(t *testing.T) {
	const src = `
rules:
  - actions:
      - handler: ghost
        instances: [one]
  - actions:
      - handler: sink
        instances: [one, missing]
  - actions:
      - handler: sink
        instances: [one]
instances:
  - name: one
    template: listentry
    params:
      value: '"x"'
handlers:
  - name: sink
    adapter: memory
`
	snap := buildSnapshot(t, src, true)
	rec := &recorder{}
	d := newDispatcher(t, rec, nil)

	res, err := d.Dispatch(context.Background(), snap, nil)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if res.Invoked != 1 || res.Skipped != 2 {
		t.Fatalf("invoked=%d skipped=%d", res.Invoked, res.Skipped)
	}
	if len(res.Errors) != 2 {
		t.Fatalf("got %d errors, want 2", len(res.Errors))
	}

	var de *DispatchError
	if !errors.As(res.Errors[0].Cause, &de) || !errors.Is(de, ErrUnknownHandler) || de.Name != "ghost" {
		t.Errorf("first error = %v, want unknown handler ghost", res.Errors[0].Cause)
	}
	if !errors.Is(res.Errors[1].Cause, ErrUnknownInstance) {
		t.Errorf("second error = %v, want unknown instance", res.Errors[1].Cause)
	}
	if res.Errors[1].Ref != "rules[1].actions[0]" {
		t.Errorf("second error ref = %q", res.Errors[1].Ref)
	}
}

func TestDispatch_NoSnapshot(t *testing.T) {
	d := newDispatcher(t, &recorder{}, nil)
	if _, err := d.Dispatch(context.Background(), nil, nil); !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("Dispatch(nil) error = %v, want ErrNoSnapshot", err)
	}
}

func TestDispatch_PropagatesRequestID(t *testing.T) {
	snap := buildSnapshot(t, testConfig, false)

	var seen string
	inv := InvokerFunc(func(ctx context.Context, h *schema.Handler, insts []*instance.Instance) error {
		seen = logging.GetRequestID(ctx)
		return nil
	})
	d := newDispatcher(t, inv, nil)

	ctx := logging.WithRequestID(context.Background(), "req-42")
	res, err := d.Dispatch(ctx, snap, attribute.MustBag(map[string]interface{}{"destination.service": "x", "response.code": 200}))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if res.RequestID != "req-42" || seen != "req-42" {
		t.Errorf("RequestID = %q, invoker saw %q", res.RequestID, seen)
	}
}

func TestDispatch_RecordsMetrics(t *testing.T) {
	snap := buildSnapshot(t, testConfig, false)
	collector := metrics.NewCollector(&config.MetricsConfig{Enabled: true}, nil)
	rec := &recorder{fail: map[string]error{"stdio": errors.New("closed")}}
	d := newDispatcher(t, rec, &Config{Metrics: collector})

	bag := attribute.MustBag(map[string]interface{}{"destination.service": "ratings", "response.code": 500})
	if _, err := d.Dispatch(context.Background(), snap, bag); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	reg := collector.Registry()
	if got := counterValue(t, reg, "mixer_dispatch_requests_total", map[string]string{"status": StatusPartial}); got != 1 {
		t.Errorf("partial dispatches = %v, want 1", got)
	}
	if got := counterValue(t, reg, "mixer_dispatch_actions_total", map[string]string{"handler": "prom", "outcome": metrics.OutcomeInvoked}); got != 2 {
		t.Errorf("prom invocations = %v, want 2", got)
	}
	if got := counterValue(t, reg, "mixer_dispatch_actions_total", map[string]string{"handler": "stdio", "outcome": metrics.OutcomeFailed}); got != 1 {
		t.Errorf("stdio failures = %v, want 1", got)
	}
}

func TestResult_JSON(t *testing.T) {
	res := &Result{
		RequestID: "r",
		Phase:     PhaseDone,
		Errors:    []ActionError{{Ref: "rules[0].actions[0]", Cause: errors.New("boom")}},
		Invocations: []Invocation{
			{Ref: "rules[0].actions[0]", Handler: "h", Err: errors.New("boom")},
		},
	}
	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var out struct {
		Phase  string `json:"phase"`
		Errors []struct {
			Ref   string `json:"ref"`
			Error string `json:"error"`
		} `json:"errors"`
		Invocations []struct {
			Handler string `json:"handler"`
			Error   string `json:"error"`
		} `json:"invocations"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if out.Phase != "Done" {
		t.Errorf("phase = %q", out.Phase)
	}
	if len(out.Errors) != 1 || out.Errors[0].Error != "boom" {
		t.Errorf("errors = %+v", out.Errors)
	}
	if len(out.Invocations) != 1 || out.Invocations[0].Error != "boom" || out.Invocations[0].Handler != "h" {
		t.Errorf("invocations = %+v", out.Invocations)
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}
