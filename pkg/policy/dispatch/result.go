package dispatch

import (
	"time"

	"mercator-hq/mixer/pkg/policy/instance"
)

// Phase is a step of the per-request dispatch state machine.
type Phase int

const (
	PhaseStart Phase = iota
	PhaseRulesSelected
	PhaseActionsExpanded
	PhaseInstancesBuilt
	PhaseHandlersInvoked
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseStart:
		return "Start"
	case PhaseRulesSelected:
		return "RulesSelected"
	case PhaseActionsExpanded:
		return "ActionsExpanded"
	case PhaseInstancesBuilt:
		return "InstancesBuilt"
	case PhaseHandlersInvoked:
		return "HandlersInvoked"
	case PhaseDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Dispatch statuses, as reported by Result.Status.
const (
	StatusOK        = "ok"
	StatusPartial   = "partial"
	StatusCancelled = "cancelled"
	StatusRejected  = "rejected"
)

// Invocation is one handler call.
type Invocation struct {
	Ref       string               `json:"ref"`
	Handler   string               `json:"handler"`
	Instances []*instance.Instance `json:"instances"`
	Err       error                `json:"-"`
}

// ActionError records why an action was skipped or failed.
type ActionError struct {
	Ref   string `json:"ref"`
	Cause error  `json:"-"`
}

// MarshalJSON renders the cause as a message.
func (e ActionError) MarshalJSON() ([]byte, error) {
	return marshalRefError(e.Ref, e.Cause)
}

// Result summarizes one dispatched request.
type Result struct {
	RequestID  string `json:"request_id"`
	SnapshotID string `json:"snapshot_id"`

	// Rules holds the indexes of the selected rules in declared order.
	Rules []int `json:"rules"`

	Invocations []Invocation  `json:"invocations"`
	Invoked     int           `json:"invoked"`
	Skipped     int           `json:"skipped"`
	Errors      []ActionError `json:"errors"`
	Cancelled   bool          `json:"cancelled"`
	Phase       Phase         `json:"phase"`
	Builds      int           `json:"builds"`
	Duration    time.Duration `json:"duration_ns"`
}

// Status classifies the result for metrics and logs.
func (r *Result) Status() string {
	switch {
	case r.Cancelled:
		return StatusCancelled
	case len(r.Errors) > 0:
		return StatusPartial
	default:
		return StatusOK
	}
}

// Failed returns the invocations whose handler returned an error.
func (r *Result) Failed() []Invocation {
	var out []Invocation
	for _, inv := range r.Invocations {
		if inv.Err != nil {
			out = append(out, inv)
		}
	}
	return out
}
