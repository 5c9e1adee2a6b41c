package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/agentwire/agentwire/pkg/a2a"
	"github.com/agentwire/agentwire/pkg/adapter"
)

// streamQueueSize bounds the producer-to-writer bridge so a slow client
// applies backpressure instead of growing memory.
const streamQueueSize = 64

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	// Tell buffering reverse proxies to pass frames through.
	w.Header().Set("X-Accel-Buffering", "no")
}

// writeSSE writes one SSE frame and flushes it. An empty event name emits a
// bare data: frame, the default event type, so plain EventSource consumers
// receive it on their default listener.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// handleTaskStream serves tasks/stream (and its tasks/sendSubscribe alias):
// a JSON-RPC request answered with an SSE stream of task snapshots instead
// of a single envelope.
func (s *Server) handleTaskStream(w http.ResponseWriter, r *http.Request) {
	var req a2a.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest,
			a2a.NewErrorResponse(nil, a2a.CodeParseError, "parse error: "+err.Error()))
		return
	}
	if req.Method != a2a.MethodTasksStream && req.Method != a2a.MethodTasksSendSubscribe {
		respondJSON(w, http.StatusOK,
			a2a.NewErrorResponse(req.ID, a2a.CodeMethodNotFound, "method not found: "+req.Method))
		return
	}

	t, err := taskFromParams(req.Params)
	if err != nil {
		respondJSON(w, http.StatusBadRequest,
			a2a.NewErrorResponse(req.ID, a2a.CodeInvalidParams, "invalid task params: "+err.Error()))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondJSON(w, http.StatusInternalServerError,
			a2a.NewErrorResponse(req.ID, a2a.CodeInternalError, "streaming unsupported"))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	setSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	if err := writeSSE(w, flusher, "message", a2a.StreamHandshake{Message: "Task streaming established"}); err != nil {
		return
	}

	if m := s.metrics(); m != nil {
		m.TasksTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", "stream")))
	}

	updates, err := s.manager.Subscribe(ctx, t)
	if err != nil {
		_ = writeSSE(w, flusher, "error", a2a.StreamError{Error: err.Error()})
		return
	}

	idle := s.cfg.Server.StreamIdleTimeout
	if idle <= 0 {
		idle = 300 * time.Second
	}
	timer := time.NewTimer(idle)
	defer timer.Stop()

	index := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			slog.Warn("task stream idle timeout", "task_id", t.ID)
			_ = writeSSE(w, flusher, "error", a2a.StreamError{Error: "stream idle timeout"})
			return
		case snapshot, open := <-updates:
			if !open {
				return
			}
			event := a2a.TaskStreamEvent{
				Task:      snapshot.ToDict(),
				Index:     index,
				Append:    index > 0,
				LastChunk: snapshot.Status.State.Terminal(),
			}
			if err := writeSSE(w, flusher, "", event); err != nil {
				// Client went away; Subscribe's producer stops via ctx.
				cancel()
				return
			}
			s.countChunk(ctx, "task")
			index++
			timer.Reset(idle)
		}
	}
}

// handleMessageStream serves incremental message responses over SSE. The body
// is a plain message dictionary, not a JSON-RPC envelope.
func (s *Server) handleMessageStream(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	msg, err := a2a.MessageFromDict(body)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid message: " + err.Error()})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	setSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	streamer, ok := s.agent.(adapter.Streamer)
	if !ok {
		s.streamOneShot(ctx, w, flusher, msg)
		return
	}

	parts, err := streamer.StreamResponse(ctx, msg)
	if err != nil {
		_ = writeSSE(w, flusher, "error", a2a.StreamError{Error: err.Error()})
		return
	}

	// Decouple the producer from the network write so the adapter never
	// blocks directly on a stalled client.
	queue := make(chan a2a.Part, streamQueueSize)
	go func() {
		defer close(queue)
		for part := range parts {
			select {
			case queue <- part:
			case <-ctx.Done():
				return
			}
		}
	}()

	idle := s.cfg.Server.StreamIdleTimeout
	if idle <= 0 {
		idle = 300 * time.Second
	}
	timer := time.NewTimer(idle)
	defer timer.Stop()

	index := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			slog.Warn("stream idle timeout", "message_id", msg.MessageID)
			_ = writeSSE(w, flusher, "error", a2a.StreamError{Error: "stream idle timeout"})
			return
		case part, open := <-queue:
			if !open {
				_ = writeSSE(w, flusher, "", a2a.StreamChunk{Index: index, Append: index > 0, LastChunk: true})
				return
			}
			content, err := part.ToContent()
			if err != nil {
				continue
			}
			chunk := a2a.StreamChunk{Content: content.Text, Index: index, Append: index > 0}
			if err := writeSSE(w, flusher, "", chunk); err != nil {
				cancel()
				return
			}
			s.countChunk(ctx, "message")
			index++
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(idle)
		}
	}
}

// streamOneShot emits the full reply as a single chunk for adapters without
// native streaming, keeping the wire shape identical.
func (s *Server) streamOneShot(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, msg a2a.Message) {
	reply, err := s.agent.HandleMessage(ctx, msg)
	if err != nil {
		_ = writeSSE(w, flusher, "error", a2a.StreamError{Error: err.Error()})
		return
	}
	if err := writeSSE(w, flusher, "", a2a.StreamChunk{Content: reply.Text(), Index: 0}); err != nil {
		return
	}
	s.countChunk(ctx, "message")
	_ = writeSSE(w, flusher, "", a2a.StreamChunk{Index: 1, Append: true, LastChunk: true})
}

func (s *Server) countChunk(ctx context.Context, kind string) {
	if m := s.metrics(); m != nil {
		m.StreamChunks.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	}
}
