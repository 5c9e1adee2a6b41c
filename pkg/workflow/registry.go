package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/agentwire/agentwire/pkg/a2a"
	"github.com/agentwire/agentwire/pkg/client"
)

// ============================================================================
// AGENT AND TOOL REGISTRIES - process-wide, concurrent reads
// ============================================================================

// Agent is anything a workflow agent node can send text to.
type Agent interface {
	// Ask sends the input text and returns the reply payload: a plain
	// string or a mapping carrying "content" or "text".
	Ask(ctx context.Context, input string) (any, error)
}

// Tool is anything a workflow tool node can invoke with named parameters.
type Tool interface {
	Invoke(ctx context.Context, params map[string]any) (any, error)
}

// AgentFunc adapts a function to Agent.
type AgentFunc func(ctx context.Context, input string) (any, error)

func (f AgentFunc) Ask(ctx context.Context, input string) (any, error) {
	return f(ctx, input)
}

// ToolFunc adapts a function to Tool.
type ToolFunc func(ctx context.Context, params map[string]any) (any, error)

func (f ToolFunc) Invoke(ctx context.Context, params map[string]any) (any, error) {
	return f(ctx, params)
}

// AgentRegistry maps agent ids to invocable agents.
type AgentRegistry struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

// NewAgentRegistry creates an empty registry.
func NewAgentRegistry() *AgentRegistry {
	return &AgentRegistry{agents: make(map[string]Agent)}
}

// Register adds or replaces an agent.
func (r *AgentRegistry) Register(id string, agent Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[id] = agent
}

// Get looks an agent up by id.
func (r *AgentRegistry) Get(id string) (Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agent, ok := r.agents[id]
	if !ok {
		return nil, fmt.Errorf("agent not found: %s", id)
	}
	return agent, nil
}

// IDs returns the registered agent ids.
func (r *AgentRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	return ids
}

// ToolRegistry maps tool ids to invocable tools.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool.
func (r *ToolRegistry) Register(id string, tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[id] = tool
}

// Get looks a tool up by id.
func (r *ToolRegistry) Get(id string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[id]
	if !ok {
		return nil, fmt.Errorf("tool not found: %s", id)
	}
	return tool, nil
}

// RemoteAgent is an Agent backed by an A2A endpoint. Connect probes the
// agent card once; subsequent Asks go over the direct messaging endpoint.
type RemoteAgent struct {
	client *client.Client

	mu        sync.Mutex
	connected bool
}

// NewRemoteAgent wraps an A2A client as a workflow agent.
func NewRemoteAgent(c *client.Client) *RemoteAgent {
	return &RemoteAgent{client: c}
}

// Connect verifies the endpoint serves a valid agent card. Idempotent.
func (ra *RemoteAgent) Connect(ctx context.Context) error {
	ra.mu.Lock()
	defer ra.mu.Unlock()
	if ra.connected {
		return nil
	}
	if _, err := ra.client.AgentCard(ctx); err != nil {
		return err
	}
	ra.connected = true
	return nil
}

// Ask sends the input as a user message and returns the reply text. Error
// replies surface as errors so error edges can route them.
func (ra *RemoteAgent) Ask(ctx context.Context, input string) (any, error) {
	if err := ra.Connect(ctx); err != nil {
		return nil, err
	}
	reply, err := ra.client.SendMessage(ctx, a2a.UserText(input))
	if err != nil {
		return nil, err
	}
	if reply.Content.Kind == a2a.ContentKindError {
		return nil, fmt.Errorf("agent error: %s", reply.Content.Message)
	}
	return reply.Text(), nil
}
