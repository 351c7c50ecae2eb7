package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/mixer/pkg/attribute"
	"mercator-hq/mixer/pkg/policy/instance"
	"mercator-hq/mixer/pkg/policy/rules"
	"mercator-hq/mixer/pkg/policy/snapshot"
	"mercator-hq/mixer/pkg/schema"
	"mercator-hq/mixer/pkg/telemetry/logging"
	"mercator-hq/mixer/pkg/telemetry/metrics"
	"mercator-hq/mixer/pkg/telemetry/tracing"
)

// Invoker delivers built instances to a handler. Invoke is the only call in
// a dispatch that may block.
type Invoker interface {
	Invoke(ctx context.Context, handler *schema.Handler, instances []*instance.Instance) error
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, handler *schema.Handler, instances []*instance.Instance) error

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, handler *schema.Handler, instances []*instance.Instance) error {
	return f(ctx, handler, instances)
}

// Config contains optional dispatcher settings.
type Config struct {
	// Timeout bounds one dispatch. Zero means no timeout beyond the
	// caller's context.
	Timeout time.Duration

	// Builder builds instances. Default: instance.DefaultBuilder.
	Builder instance.Builder

	// Metrics records dispatch metrics. May be nil.
	Metrics *metrics.Collector

	// Tracer records one span per dispatch. May be nil.
	Tracer *tracing.Tracer
}

// Dispatcher runs the actions of matching rules against a snapshot. It
// holds no per-request state and is safe for concurrent use.
type Dispatcher struct {
	invoker Invoker
	builder instance.Builder
	timeout time.Duration
	metrics *metrics.Collector
	tracer  *tracing.Tracer
	logger  *slog.Logger
}

// New creates a dispatcher delivering to invoker.
func New(invoker Invoker, cfg *Config, logger *slog.Logger) (*Dispatcher, error) {
	if invoker == nil {
		return nil, errors.New("invoker cannot be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	builder := cfg.Builder
	if builder == nil {
		builder = instance.DefaultBuilder{}
	}

	return &Dispatcher{
		invoker: invoker,
		builder: builder,
		timeout: cfg.Timeout,
		metrics: cfg.Metrics,
		tracer:  cfg.Tracer,
		logger:  logger,
	}, nil
}

type step struct {
	rule   *rules.Rule
	index  int
	action schema.Action
}

func (s step) ref() string {
	return s.rule.ActionRef(s.index)
}

// request holds the private state of one dispatch.
type request struct {
	ctx    context.Context
	snap   *snapshot.Snapshot
	cache  *instance.Cache
	span   trace.Span
	logger *slog.Logger
	result *Result
}

func (r *request) advance(p Phase) {
	if p > r.result.Phase {
		r.result.Phase = p
	}
}

// Dispatch evaluates bag against snap and invokes the handler of every
// action of every matching rule. It returns an error only when snap is nil;
// every other failure is recorded in the Result.
//
// If ctx is done before all actions ran, the result is marked cancelled and
// its Phase is the last phase reached.
func (d *Dispatcher) Dispatch(ctx context.Context, snap *snapshot.Snapshot, bag attribute.Bag) (*Result, error) {
	start := time.Now()
	if snap == nil {
		d.metrics.RecordDispatch(StatusRejected, time.Since(start))
		return nil, ErrNoSnapshot
	}
	if bag == nil {
		bag = attribute.EmptyBag
	}

	requestID := logging.GetRequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
		ctx = logging.WithRequestID(ctx, requestID)
	}
	logger := logging.FromContext(ctx, d.logger)

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	ctx, span := d.tracer.Start(ctx, tracing.SpanDispatch)
	defer span.End()
	tracing.SetSnapshotAttributes(span, requestID, snap.ID(), snap.Revision())

	req := &request{
		ctx:    ctx,
		snap:   snap,
		cache:  instance.NewCache(d.builder, bag),
		span:   span,
		logger: logger,
		result: &Result{
			RequestID:  requestID,
			SnapshotID: snap.ID(),
			Phase:      PhaseStart,
		},
	}
	res := req.result

	selected := snap.Rules().Select(bag)
	res.Rules = make([]int, len(selected))
	for i, r := range selected {
		res.Rules[i] = r.Index
	}
	req.advance(PhaseRulesSelected)
	d.metrics.RecordRulesSelected(len(selected))

	steps := expand(selected)
	req.advance(PhaseActionsExpanded)

	for i, st := range steps {
		if err := ctx.Err(); err != nil {
			d.cancel(req, steps[i:], err)
			break
		}
		d.run(req, st)
	}
	if !res.Cancelled {
		res.Phase = PhaseDone
	}

	res.Builds = req.cache.Builds()
	res.Duration = time.Since(start)

	tracing.SetDispatchAttributes(span, res.Phase.String(), len(selected), res.Invoked, res.Skipped, len(res.Errors), res.Cancelled)
	if len(res.Errors) > 0 {
		tracing.SetStatus(span, res.Errors[0].Cause)
	}
	d.metrics.RecordDispatch(res.Status(), res.Duration)

	logger.Debug("dispatch complete",
		"snapshot_id", res.SnapshotID,
		"rules_selected", len(selected),
		"invoked", res.Invoked,
		"skipped", res.Skipped,
		"errors", len(res.Errors),
		"cancelled", res.Cancelled,
		"duration", res.Duration,
	)

	return res, nil
}

// expand flattens the actions of the selected rules in dispatch order.
func expand(selected []*rules.Rule) []step {
	n := 0
	for _, r := range selected {
		n += len(r.Actions)
	}
	steps := make([]step, 0, n)
	for _, r := range selected {
		for j, a := range r.Actions {
			steps = append(steps, step{rule: r, index: j, action: a})
		}
	}
	return steps
}

func (d *Dispatcher) run(req *request, st step) {
	ref := st.ref()

	handler, ok := req.snap.Handler(st.action.Handler)
	if !ok {
		d.skip(req, st, &DispatchError{Ref: ref, Name: st.action.Handler, Err: ErrUnknownHandler})
		return
	}

	built := make([]*instance.Instance, 0, len(st.action.Instances))
	for _, name := range st.action.Instances {
		def, ok := req.snap.Instance(name)
		if !ok {
			d.skip(req, st, &DispatchError{Ref: ref, Name: name, Err: ErrUnknownInstance})
			return
		}

		before := req.cache.Builds()
		inst, err := req.cache.Get(def)
		if req.cache.Builds() > before {
			d.metrics.RecordBuild(name, err)
		}
		if err != nil {
			d.skip(req, st, err)
			return
		}
		built = append(built, inst)
	}
	req.advance(PhaseInstancesBuilt)

	err := d.invoker.Invoke(req.ctx, handler, built)
	req.advance(PhaseHandlersInvoked)

	res := req.result
	res.Invoked++
	outcome := metrics.OutcomeInvoked
	if err != nil {
		err = &InvokeError{Handler: handler.Name, Cause: err}
		res.Errors = append(res.Errors, ActionError{Ref: ref, Cause: err})
		outcome = metrics.OutcomeFailed
		req.logger.Error("handler invocation failed", "ref", ref, "handler", handler.Name, "error", err)
	}
	res.Invocations = append(res.Invocations, Invocation{
		Ref:       ref,
		Handler:   handler.Name,
		Instances: built,
		Err:       err,
	})

	d.metrics.RecordAction(handler.Name, outcome)
	tracing.AddActionEvent(req.span, ref, handler.Name, outcome, st.action.Instances, err)
}

func (d *Dispatcher) skip(req *request, st step, err error) {
	ref := st.ref()
	res := req.result
	res.Skipped++
	res.Errors = append(res.Errors, ActionError{Ref: ref, Cause: err})

	req.logger.Warn("action skipped", "ref", ref, "handler", st.action.Handler, "error", err)
	d.metrics.RecordAction(st.action.Handler, metrics.OutcomeSkipped)
	tracing.AddActionEvent(req.span, ref, st.action.Handler, metrics.OutcomeSkipped, st.action.Instances, err)
}

// cancel counts the remaining steps as skipped. Cancellation is not an
// action error.
func (d *Dispatcher) cancel(req *request, remaining []step, cause error) {
	res := req.result
	res.Cancelled = true
	res.Skipped += len(remaining)
	for _, st := range remaining {
		d.metrics.RecordAction(st.action.Handler, metrics.OutcomeSkipped)
	}
	req.logger.Warn("dispatch cancelled",
		"invoked", res.Invoked,
		"skipped", len(remaining),
		"error", cause,
	)
}
