package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"mercator-hq/mixer/pkg/policy/dispatch"
	"mercator-hq/mixer/pkg/policy/engine"
	"mercator-hq/mixer/pkg/policy/manager"
	"mercator-hq/mixer/pkg/policy/snapshot"
	"mercator-hq/mixer/pkg/telemetry/logging"
	"mercator-hq/mixer/pkg/telemetry/tracing"
)

// CheckRequest is the body of POST /v1/check.
type CheckRequest struct {
	Attributes map[string]interface{} `json:"attributes"`
}

// CheckResponse is the body of a successful check.
type CheckResponse struct {
	Status string `json:"status"`
	*dispatch.Result
}

// SnapshotResponse is the body of GET /v1/snapshot and POST /v1/reload.
type SnapshotResponse struct {
	Snapshot snapshot.Summary `json:"snapshot"`
	Manager  *manager.Status  `json:"manager,omitempty"`
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), tracing.SpanCheck)
	defer span.End()

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	var req CheckRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, CodeTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	attrs, err := normalizeNumbers(req.Attributes)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	res, err := s.engine.CheckValues(ctx, attrs)
	tracing.SetError(span, err)
	switch {
	case errors.Is(err, engine.ErrInvalidAttributes):
		writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	case errors.Is(err, dispatch.ErrNoSnapshot):
		writeError(w, r, http.StatusServiceUnavailable, CodeNoSnapshot, "no configuration snapshot is active")
		return
	case err != nil:
		logging.FromContext(ctx, s.logger).Error("check failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, CodeInternal, "check failed")
		return
	}

	writeJSON(w, http.StatusOK, CheckResponse{Status: res.Status(), Result: res})
}

// normalizeNumbers converts json.Number values into float64 so they reach
// the attribute bag as plain numbers.
func normalizeNumbers(in map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		nv, err := normalizeNumber(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		out[k] = nv
	}
	return out, nil
}

func normalizeNumber(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case json.Number:
		return t.Float64()
	case map[string]interface{}:
		return normalizeNumbers(t)
	case []interface{}:
		items := make([]interface{}, len(t))
		for i, item := range t {
			nv, err := normalizeNumber(item)
			if err != nil {
				return nil, err
			}
			items[i] = nv
		}
		return items, nil
	default:
		return v, nil
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Snapshot()
	if snap == nil {
		writeError(w, r, http.StatusServiceUnavailable, CodeNoSnapshot, "no configuration snapshot is active")
		return
	}
	writeJSON(w, http.StatusOK, s.snapshotResponse(snap))
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.manager == nil {
		writeError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "reload is not available")
		return
	}

	snap, err := s.manager.Reload(r.Context())
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, CodeReloadFailed, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.snapshotResponse(snap))
}

func (s *Server) snapshotResponse(snap *snapshot.Snapshot) SnapshotResponse {
	resp := SnapshotResponse{Snapshot: snap.Summary()}
	if s.manager != nil {
		st := s.manager.Status()
		resp.Manager = &st
	}
	return resp
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, CodeInvalidRequest, fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path))
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusMethodNotAllowed, CodeInvalidRequest, fmt.Sprintf("method %s not allowed", r.Method))
}
