package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/agentwire/agentwire/pkg/a2a"
	"github.com/agentwire/agentwire/pkg/observability"
)

// handleRPC serves the non-streaming JSON-RPC task operations. In-envelope
// errors mirror into HTTP status codes: malformed requests get 400, unknown
// tasks 404, internal failures 500. Unknown methods stay 200 so strict
// JSON-RPC clients can read the envelope.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondJSON(w, http.StatusBadRequest,
			a2a.NewErrorResponse(nil, a2a.CodeParseError, "failed to read request body"))
		return
	}

	var req a2a.Request
	if err := json.Unmarshal(body, &req); err != nil {
		respondJSON(w, http.StatusBadRequest,
			a2a.NewErrorResponse(nil, a2a.CodeParseError, "parse error: "+err.Error()))
		return
	}
	if req.JSONRPC != a2a.JSONRPCVersion || req.Method == "" {
		respondJSON(w, http.StatusOK,
			a2a.NewErrorResponse(req.ID, a2a.CodeInvalidRequest, "invalid JSON-RPC request"))
		return
	}

	switch req.Method {
	case a2a.MethodTasksSend:
		s.rpcSend(w, r, req)
	case a2a.MethodTasksGet:
		s.rpcGet(w, req)
	case a2a.MethodTasksCancel:
		s.rpcCancel(w, req)
	default:
		respondJSON(w, http.StatusOK,
			a2a.NewErrorResponse(req.ID, a2a.CodeMethodNotFound, "method not found: "+req.Method))
	}
}

// taskFromParams accepts either the task dictionary directly or wrapped in a
// {"task": {...}} object.
func taskFromParams(raw json.RawMessage) (*a2a.Task, error) {
	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, err
	}
	if wrapped, ok := params["task"].(map[string]any); ok {
		params = wrapped
	}
	return a2a.TaskFromDict(params)
}

func (s *Server) rpcSend(w http.ResponseWriter, r *http.Request, req a2a.Request) {
	t, err := taskFromParams(req.Params)
	if err != nil {
		respondJSON(w, http.StatusBadRequest,
			a2a.NewErrorResponse(req.ID, a2a.CodeInvalidParams, "invalid task params: "+err.Error()))
		return
	}

	if m := s.metrics(); m != nil {
		m.TasksTotal.Add(r.Context(), 1, metric.WithAttributes(attribute.String("operation", "send")))
	}

	result, err := s.manager.Send(r.Context(), t)
	if err != nil {
		slog.Error("task send failed", "task_id", t.ID, "error", err)
		respondJSON(w, http.StatusInternalServerError,
			a2a.NewErrorResponse(req.ID, a2a.CodeInternalError, err.Error()))
		return
	}
	respondJSON(w, http.StatusOK, a2a.NewResponse(req.ID, result.ToDict()))
}

func (s *Server) rpcGet(w http.ResponseWriter, req a2a.Request) {
	var params a2a.GetParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.ID == "" {
		respondJSON(w, http.StatusBadRequest,
			a2a.NewErrorResponse(req.ID, a2a.CodeInvalidParams, "task id is required"))
		return
	}

	result, err := s.manager.Get(params.ID, params.HistoryLength)
	if err != nil {
		s.respondTaskError(w, req.ID, params.ID, err)
		return
	}
	respondJSON(w, http.StatusOK, a2a.NewResponse(req.ID, result.ToDict()))
}

func (s *Server) rpcCancel(w http.ResponseWriter, req a2a.Request) {
	var params a2a.CancelParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.ID == "" {
		respondJSON(w, http.StatusBadRequest,
			a2a.NewErrorResponse(req.ID, a2a.CodeInvalidParams, "task id is required"))
		return
	}

	result, err := s.manager.Cancel(params.ID)
	if err != nil {
		s.respondTaskError(w, req.ID, params.ID, err)
		return
	}
	respondJSON(w, http.StatusOK, a2a.NewResponse(req.ID, result.ToDict()))
}

func (s *Server) respondTaskError(w http.ResponseWriter, rpcID any, taskID string, err error) {
	if errors.Is(err, a2a.ErrTaskNotFound) {
		respondJSON(w, http.StatusNotFound,
			a2a.NewErrorResponse(rpcID, a2a.CodeTaskNotFound, "task not found: "+taskID))
		return
	}
	respondJSON(w, http.StatusInternalServerError,
		a2a.NewErrorResponse(rpcID, a2a.CodeInternalError, err.Error()))
}

func (s *Server) metrics() *observability.Metrics {
	if s.obs == nil {
		return nil
	}
	return s.obs.GetMetrics()
}
