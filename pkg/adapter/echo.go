package adapter

import (
	"context"
	"strings"

	"github.com/agentwire/agentwire/pkg/a2a"
)

// Echo replies with the request text, optionally prefixed. It doubles as the
// default adapter for a bare server and as a fixture in transport tests.
type Echo struct {
	// Prefix is prepended to every reply ("Echo: " style). Empty means the
	// reply text equals the request text.
	Prefix string

	// Card overrides the generated agent card.
	Card *a2a.AgentCard
}

// HandleMessage echoes the request text back as an agent reply.
func (e *Echo) HandleMessage(_ context.Context, msg a2a.Message) (a2a.Message, error) {
	return msg.Reply(a2a.TextContent(e.Prefix + msg.Text())), nil
}

// StreamResponse yields the echoed reply word by word.
func (e *Echo) StreamResponse(ctx context.Context, msg a2a.Message) (<-chan a2a.Part, error) {
	words := strings.Fields(e.Prefix + msg.Text())
	out := make(chan a2a.Part)
	go func() {
		defer close(out)
		for i, word := range words {
			chunk := word
			if i < len(words)-1 {
				chunk += " "
			}
			select {
			case out <- a2a.TextPart(chunk):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// AgentCard describes the echo agent.
func (e *Echo) AgentCard() *a2a.AgentCard {
	if e.Card != nil {
		return e.Card
	}
	return &a2a.AgentCard{
		Name:         "echo",
		Description:  "Echoes every message back to the sender",
		Version:      "1.0.0",
		Capabilities: Capabilities(e),
		Skills: []a2a.AgentSkill{{
			ID:          "echo",
			Name:        "Echo",
			Description: "Repeat the incoming text",
			Tags:        []string{"echo", "test"},
		}},
		DefaultInputModes:  []string{"text/plain"},
		DefaultOutputModes: []string{"text/plain"},
	}
}
