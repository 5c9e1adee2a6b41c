// Package server exposes an agent adapter over the A2A HTTP+JSON transport:
// JSON-RPC task operations, legacy direct messaging, agent-card discovery
// with content negotiation, and SSE streaming.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/agentwire/agentwire/pkg/a2a"
	"github.com/agentwire/agentwire/pkg/adapter"
	"github.com/agentwire/agentwire/pkg/config"
	"github.com/agentwire/agentwire/pkg/observability"
	"github.com/agentwire/agentwire/pkg/task"
)

// Server hosts one agent adapter behind the A2A HTTP surface.
type Server struct {
	cfg     *config.Config
	agent   adapter.MessageHandler
	manager *task.Manager
	card    *a2a.AgentCard
	obs     *observability.Manager

	mu            sync.Mutex
	conversations map[string]*a2a.Conversation
	httpServer    *http.Server
}

// Option configures the server.
type Option func(*Server)

// WithObservability attaches metrics and tracing.
func WithObservability(obs *observability.Manager) Option {
	return func(s *Server) {
		s.obs = obs
	}
}

// WithCard overrides the generated agent card.
func WithCard(card *a2a.AgentCard) Option {
	return func(s *Server) {
		s.card = card
	}
}

// New creates a server around the adapter. The agent card comes from the
// adapter when it implements CardProvider, otherwise from config.
func New(cfg *config.Config, agent adapter.MessageHandler, opts ...Option) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	cfg.SetDefaults()

	s := &Server{
		cfg:           cfg,
		agent:         agent,
		manager:       task.NewManager(agent),
		conversations: make(map[string]*a2a.Conversation),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.card == nil {
		s.card = s.buildCard()
	}
	return s
}

// Manager exposes the task manager, mainly for tests and embedding.
func (s *Server) Manager() *task.Manager {
	return s.manager
}

// Card returns the served agent card.
func (s *Server) Card() *a2a.AgentCard {
	return s.card
}

func (s *Server) buildCard() *a2a.AgentCard {
	if cp, ok := s.agent.(adapter.CardProvider); ok {
		card := *cp.AgentCard()
		if card.URL == "" {
			card.URL = s.cfg.Server.BaseURL
		}
		return &card
	}
	return &a2a.AgentCard{
		Name:               s.cfg.Agent.Name,
		Description:        s.cfg.Agent.Description,
		URL:                s.cfg.Server.BaseURL,
		Version:            s.cfg.Agent.Version,
		Capabilities:       adapter.Capabilities(s.agent),
		DefaultInputModes:  []string{"text/plain"},
		DefaultOutputModes: []string{"text/plain"},
	}
}

// Handler builds the chi router with both the bare and the /a2a-prefixed
// route sets.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(corsMiddleware)
	r.Use(s.requestLogger)
	if s.obs != nil {
		r.Use(s.metricsMiddleware)
		r.Method(http.MethodGet, "/metrics", s.obs.MetricsHandler())
	}

	s.mountRoutes(r)
	r.Route("/a2a", func(sub chi.Router) {
		s.mountRoutes(sub)
	})
	return r
}

func (s *Server) mountRoutes(r chi.Router) {
	r.Get("/agent.json", s.handleAgentCard)
	r.Get("/health", s.handleHealth)
	r.Post("/", s.handleLegacy)
	r.Post("/tasks/send", s.handleRPC)
	r.Post("/tasks/get", s.handleRPC)
	r.Post("/tasks/cancel", s.handleRPC)
	r.Post("/tasks/stream", s.handleTaskStream)
	r.Post("/tasks/sendSubscribe", s.handleTaskStream)
	r.Post("/stream", s.handleMessageStream)
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	s.httpServer = &http.Server{
		Addr:    s.cfg.Server.Address(),
		Handler: s.Handler(),
	}
	srv := s.httpServer
	s.mu.Unlock()

	slog.Info("A2A server starting",
		"addr", s.cfg.Server.Address(),
		"agent", s.card.Name,
		"streaming", s.card.Capabilities.Streaming)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return s.Stop(context.Background())
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
