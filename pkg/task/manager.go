// Package task drives tasks through their lifecycle and holds the
// process-wide in-memory task map. Tasks do not survive a restart.
package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/agentwire/agentwire/pkg/a2a"
	"github.com/agentwire/agentwire/pkg/adapter"
)

// Manager owns the tasks map and dispatches work to a single adapter.
// Reads and writes to the map are serialized; execution happens outside the
// lock so slow adapters do not block unrelated requests.
type Manager struct {
	mu      sync.RWMutex
	agent   adapter.MessageHandler
	tasks   map[string]*a2a.Task
	history map[string][]a2a.TaskStatus
}

// NewManager creates a manager around the given adapter.
func NewManager(agent adapter.MessageHandler) *Manager {
	return &Manager{
		agent:   agent,
		tasks:   make(map[string]*a2a.Task),
		history: make(map[string][]a2a.TaskStatus),
	}
}

// Send creates or resumes a task, dispatches it to the adapter, stores the
// result and returns it. A task referencing an existing input-required task
// by id resumes it with the new request message. Adapter failures come back
// as a failed task, not as an error: the envelope stays well-formed. A task
// that reached a terminal state while the adapter ran keeps that state.
func (m *Manager) Send(ctx context.Context, t *a2a.Task) (*a2a.Task, error) {
	m.mu.Lock()
	stored, exists := m.tasks[t.ID]
	if exists && stored.Status.State == a2a.TaskStateInputRequired {
		// Follow-up input for a paused task: graft the new message onto the
		// stored task and resume.
		if t.Message != nil {
			stored.Message = t.Message
			stored.History = append(stored.History, t.Message)
		}
		stored.Status = a2a.NewTaskStatus(a2a.TaskStateWaiting)
		t = stored
	} else if exists && stored.Status.State.Terminal() {
		m.mu.Unlock()
		return stored.Clone(), nil
	} else {
		m.tasks[t.ID] = t
	}
	m.recordStatusLocked(t)
	// The adapter works on a private copy; the stored task is only ever
	// mutated under the lock, so concurrent reads stay safe.
	work := t.Clone()
	m.mu.Unlock()

	result, err := adapter.ExecuteTask(ctx, m.agent, work)
	if err != nil {
		slog.Debug("task execution failed", "task_id", work.ID, "error", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if stored, ok := m.tasks[result.ID]; ok && stored.Status.State.Terminal() {
		// A concurrent cancel reached a terminal state first; it sticks.
		return stored.Clone(), nil
	}
	m.tasks[result.ID] = result
	m.recordStatusLocked(result)
	return result.Clone(), nil
}

// Get returns the stored task. historyLength > 0 truncates the history to
// the last N entries; zero or negative keeps it whole.
func (m *Manager) Get(id string, historyLength int) (*a2a.Task, error) {
	m.mu.RLock()
	stored, ok := m.tasks[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", a2a.ErrTaskNotFound, id)
	}

	out := stored.Clone()
	if historyLength > 0 && len(out.History) > historyLength {
		out.History = out.History[len(out.History)-historyLength:]
	}
	return out, nil
}

// Cancel transitions a non-terminal task to canceled. Cancelling a terminal
// task is a no-op returning the unchanged task; unknown ids fail.
func (m *Manager) Cancel(id string) (*a2a.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", a2a.ErrTaskNotFound, id)
	}
	if !stored.Status.State.Terminal() {
		stored.Status = a2a.NewTaskStatus(a2a.TaskStateCanceled)
		m.recordStatusLocked(stored)
	}
	return stored.Clone(), nil
}

// Subscribe stores the task and returns a channel of task snapshots driven
// by the adapter. The final snapshot is terminal and is persisted back into
// the map as it passes through.
func (m *Manager) Subscribe(ctx context.Context, t *a2a.Task) (<-chan *a2a.Task, error) {
	m.mu.Lock()
	m.tasks[t.ID] = t
	m.recordStatusLocked(t)
	work := t.Clone()
	m.mu.Unlock()

	updates, err := adapter.SubscribeTask(ctx, m.agent, work)
	if err != nil {
		return nil, err
	}

	out := make(chan *a2a.Task)
	go func() {
		defer close(out)
		for snap := range updates {
			m.mu.Lock()
			if stored, ok := m.tasks[snap.ID]; !ok || !stored.Status.State.Terminal() {
				m.tasks[snap.ID] = snap.Clone()
				m.recordStatusLocked(snap)
			}
			m.mu.Unlock()
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// StatusHistory returns the observed status transitions for a task, oldest
// first. Backs the stateTransitionHistory capability.
func (m *Manager) StatusHistory(id string) ([]a2a.TaskStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.tasks[id]; !ok {
		return nil, fmt.Errorf("%w: %s", a2a.ErrTaskNotFound, id)
	}
	hist := make([]a2a.TaskStatus, len(m.history[id]))
	copy(hist, m.history[id])
	return hist, nil
}

// Count returns the number of tracked tasks.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tasks)
}

func (m *Manager) recordStatusLocked(t *a2a.Task) {
	hist := m.history[t.ID]
	if len(hist) > 0 && hist[len(hist)-1].State == t.Status.State {
		return
	}
	m.history[t.ID] = append(hist, t.Status)
}
