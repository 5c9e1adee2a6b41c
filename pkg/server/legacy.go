package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/agentwire/agentwire/pkg/a2a"
)

// handleLegacy serves the pre-task direct messaging endpoint. The body is
// either a single Message or a whole Conversation, told apart by the
// "messages" key. Handler failures come back as an Error-content reply with
// status 200; only undecodable bodies get a 4xx.
func (s *Server) handleLegacy(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	ctx := r.Context()
	if s.cfg.Server.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Server.RequestTimeout)
		defer cancel()
	}

	if _, ok := body["messages"]; ok {
		s.legacyConversation(ctx, w, body)
		return
	}
	s.legacyMessage(ctx, w, body)
}

func (s *Server) legacyMessage(ctx context.Context, w http.ResponseWriter, body map[string]any) {
	msg, err := a2a.MessageFromDict(body)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid message: " + err.Error()})
		return
	}

	reply := s.respond(ctx, msg)
	respondJSON(w, http.StatusOK, reply.ToDict())
}

// legacyConversation replies to the last user message and returns the whole
// conversation with the reply appended. Conversations with IDs are kept
// server-side so repeated posts extend the same transcript.
func (s *Server) legacyConversation(ctx context.Context, w http.ResponseWriter, body map[string]any) {
	conv, err := a2a.ConversationFromDict(body)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid conversation: " + err.Error()})
		return
	}

	last := conv.Last()
	if last == nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "conversation has no messages"})
		return
	}

	reply := s.respond(ctx, *last)
	conv.Append(reply)

	if conv.ID != "" {
		s.mu.Lock()
		s.conversations[conv.ID] = conv
		s.mu.Unlock()
	}
	respondJSON(w, http.StatusOK, conv.ToDict())
}

// respond runs the adapter and folds failures into an Error-content reply so
// legacy clients always get a well-formed message back.
func (s *Server) respond(ctx context.Context, msg a2a.Message) a2a.Message {
	reply, err := s.agent.HandleMessage(ctx, msg)
	if err != nil {
		slog.Warn("adapter failed on direct message", "message_id", msg.MessageID, "error", err)
		return msg.Reply(a2a.ErrorContent(err.Error()))
	}
	return reply
}
