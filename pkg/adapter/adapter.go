// Package adapter defines the contract between the A2A runtime and the
// agents it hosts. Concrete LLM bindings live outside the runtime; the
// runtime only depends on the capability interfaces below and on the
// bridging helpers that fill the gaps between them.
package adapter

import (
	"context"

	"github.com/agentwire/agentwire/pkg/a2a"
)

// MessageHandler is the minimal capability: produce a reply for a message.
// The reply must thread to the request (parent id, conversation id). A
// handler failure is surfaced to callers as Error content, not as a
// transport error.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg a2a.Message) (a2a.Message, error)
}

// TaskHandler drives a task to a terminal state, producing at least one
// artifact on success.
type TaskHandler interface {
	HandleTask(ctx context.Context, task *a2a.Task) (*a2a.Task, error)
}

// Streamer produces an incremental response to a message. The channel is
// lazy, finite and non-restartable; producers must honor ctx cancellation
// between sends within a bounded delay.
type Streamer interface {
	StreamResponse(ctx context.Context, msg a2a.Message) (<-chan a2a.Part, error)
}

// TaskSubscriber emits task snapshots with non-decreasing status and
// monotonically extending artifact lists; the final element is terminal.
type TaskSubscriber interface {
	SendSubscribe(ctx context.Context, task *a2a.Task) (<-chan *a2a.Task, error)
}

// CardProvider exposes the agent's discovery card.
type CardProvider interface {
	AgentCard() *a2a.AgentCard
}

// Capabilities probes which optional interfaces the adapter implements and
// reports them in agent-card form. The runtime records status transitions
// for every adapter, so that capability is always on.
func Capabilities(a MessageHandler) a2a.AgentCapabilities {
	_, streams := a.(Streamer)
	_, subscribes := a.(TaskSubscriber)
	return a2a.AgentCapabilities{
		Streaming:              streams || subscribes,
		StateTransitionHistory: true,
	}
}
