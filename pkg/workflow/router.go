package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
)

// ============================================================================
// AI ROUTER - content-based agent selection
// ============================================================================

// AgentInfo describes one candidate agent for routing.
type AgentInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
}

// Router picks the agent best suited for a query, with a confidence in
// [0, 1].
type Router interface {
	Route(ctx context.Context, query string, agents []AgentInfo) (string, float64, error)
}

// CompleteFunc abstracts the language model behind LLMRouter: prompt in,
// completion text out.
type CompleteFunc func(ctx context.Context, prompt string) (string, error)

// LLMRouter asks a language model to pick the agent. The model is expected
// to answer with a JSON object {"agent": "...", "confidence": 0.x}; answers
// that fail to parse fall back to keyword scoring.
type LLMRouter struct {
	Complete CompleteFunc
	fallback KeywordRouter
}

// NewLLMRouter builds a router around a completion function.
func NewLLMRouter(complete CompleteFunc) *LLMRouter {
	return &LLMRouter{Complete: complete}
}

func (r *LLMRouter) Route(ctx context.Context, query string, agents []AgentInfo) (string, float64, error) {
	if len(agents) == 0 {
		return "", 0, fmt.Errorf("no agents to route between")
	}
	if r.Complete == nil {
		return r.fallback.Route(ctx, query, agents)
	}

	var sb strings.Builder
	sb.WriteString("Select the agent best suited to handle the query.\n\nAgents:\n")
	for _, a := range agents {
		fmt.Fprintf(&sb, "- %s: %s", a.Name, a.Description)
		if len(a.Tags) > 0 {
			fmt.Fprintf(&sb, " (tags: %s)", strings.Join(a.Tags, ", "))
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "\nQuery: %s\n\nAnswer with JSON: {\"agent\": \"<name>\", \"confidence\": <0..1>}\n", query)

	answer, err := r.Complete(ctx, sb.String())
	if err != nil {
		return r.fallback.Route(ctx, query, agents)
	}

	var parsed struct {
		Agent      string  `json:"agent"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(answer)), &parsed); err != nil || parsed.Agent == "" {
		return r.fallback.Route(ctx, query, agents)
	}
	for _, a := range agents {
		if a.Name == parsed.Agent {
			return parsed.Agent, clamp01(parsed.Confidence), nil
		}
	}
	// The model invented an agent; fall back rather than propagate it.
	return r.fallback.Route(ctx, query, agents)
}

// KeywordRouter scores agents by how many of their tags and description
// words appear in the query. Score is matches/10 clamped to [0, 1].
type KeywordRouter struct{}

func (KeywordRouter) Route(_ context.Context, query string, agents []AgentInfo) (string, float64, error) {
	if len(agents) == 0 {
		return "", 0, fmt.Errorf("no agents to route between")
	}

	lowerQuery := strings.ToLower(query)
	best := agents[0]
	bestScore := -1.0
	for _, a := range agents {
		matches := 0
		for _, tag := range a.Tags {
			if tag != "" && strings.Contains(lowerQuery, strings.ToLower(tag)) {
				matches++
			}
		}
		for _, word := range strings.Fields(strings.ToLower(a.Description)) {
			if len(word) > 3 && strings.Contains(lowerQuery, word) {
				matches++
			}
		}
		score := clamp01(float64(matches) / 10)
		if score > bestScore {
			best = a
			bestScore = score
		}
	}
	return best.Name, bestScore, nil
}

// RandomRouter picks uniformly at random with fixed 0.5 confidence. The
// terminal fallback when nothing smarter is available.
type RandomRouter struct {
	// Rand allows deterministic selection in tests; nil uses the global
	// source.
	Rand *rand.Rand
}

func (r RandomRouter) Route(_ context.Context, _ string, agents []AgentInfo) (string, float64, error) {
	if len(agents) == 0 {
		return "", 0, fmt.Errorf("no agents to route between")
	}
	idx := 0
	if r.Rand != nil {
		idx = r.Rand.Intn(len(agents))
	} else {
		idx = rand.Intn(len(agents))
	}
	return agents[idx].Name, 0.5, nil
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
