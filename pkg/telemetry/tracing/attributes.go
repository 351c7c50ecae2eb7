package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	SpanDispatch = "mixer.dispatch"
	SpanReload   = "mixer.reload"
	SpanCheck    = "mixer.http.check"
)

// EventAction is the name of the span event recorded for every action.
const EventAction = "mixer.action"

// Attribute keys use the "mixer.*" namespace.
const (
	AttrRequestID        = "mixer.request_id"
	AttrSnapshotID       = "mixer.snapshot.id"
	AttrSnapshotRevision = "mixer.snapshot.revision"
	AttrRulesSelected    = "mixer.rules.selected"
	AttrActionRef        = "mixer.action.ref"
	AttrActionOutcome    = "mixer.action.outcome"
	AttrHandler          = "mixer.handler"
	AttrInstances        = "mixer.instances"
	AttrInvoked          = "mixer.dispatch.invoked"
	AttrSkipped          = "mixer.dispatch.skipped"
	AttrErrors           = "mixer.dispatch.errors"
	AttrCancelled        = "mixer.dispatch.cancelled"
	AttrPhase            = "mixer.dispatch.phase"
	AttrSource           = "mixer.reload.source"
	AttrReloadStatus     = "mixer.reload.status"
)

// SetSnapshotAttributes records which snapshot served the request.
func SetSnapshotAttributes(span trace.Span, requestID, snapshotID, revision string) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrRequestID, requestID),
		attribute.String(AttrSnapshotID, snapshotID),
	}
	if revision != "" {
		attrs = append(attrs, attribute.String(AttrSnapshotRevision, revision))
	}
	span.SetAttributes(attrs...)
}

// SetDispatchAttributes records the counters of a finished dispatch.
func SetDispatchAttributes(span trace.Span, phase string, selected, invoked, skipped, errs int, cancelled bool) {
	span.SetAttributes(
		attribute.String(AttrPhase, phase),
		attribute.Int(AttrRulesSelected, selected),
		attribute.Int(AttrInvoked, invoked),
		attribute.Int(AttrSkipped, skipped),
		attribute.Int(AttrErrors, errs),
		attribute.Bool(AttrCancelled, cancelled),
	)
}

// AddActionEvent records one action as a span event.
func AddActionEvent(span trace.Span, ref, handler, outcome string, instances []string, err error) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrActionRef, ref),
		attribute.String(AttrHandler, handler),
		attribute.String(AttrActionOutcome, outcome),
		attribute.StringSlice(AttrInstances, instances),
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error.message", err.Error()))
	}
	span.AddEvent(EventAction, trace.WithAttributes(attrs...))
}

// SetReloadAttributes records the outcome of a snapshot reload.
func SetReloadAttributes(span trace.Span, source, status, revision string) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrSource, source),
		attribute.String(AttrReloadStatus, status),
	}
	if revision != "" {
		attrs = append(attrs, attribute.String(AttrSnapshotRevision, revision))
	}
	span.SetAttributes(attrs...)
}
