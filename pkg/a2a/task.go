package a2a

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// TASK - Unit of work with lifecycle state
// ============================================================================

// TaskState enumerates the task lifecycle states.
type TaskState string

const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWaiting       TaskState = "waiting"
	TaskStateInputRequired TaskState = "input-required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateCanceled      TaskState = "canceled"
	TaskStateFailed        TaskState = "failed"
	TaskStateUnknown       TaskState = "unknown"
)

// ParseTaskState validates a task state string.
func ParseTaskState(s string) (TaskState, error) {
	switch TaskState(s) {
	case TaskStateSubmitted, TaskStateWaiting, TaskStateInputRequired,
		TaskStateCompleted, TaskStateCanceled, TaskStateFailed, TaskStateUnknown:
		return TaskState(s), nil
	default:
		return "", fmt.Errorf("%w: task state %q", ErrBadEnum, s)
	}
}

// Terminal reports whether the state admits no further transitions.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateCanceled, TaskStateFailed:
		return true
	default:
		return false
	}
}

// Order ranks states along the state machine so streamed updates can be
// checked for monotonicity. Terminal states share the highest rank.
func (s TaskState) Order() int {
	switch s {
	case TaskStateSubmitted:
		return 0
	case TaskStateWaiting:
		return 1
	case TaskStateInputRequired:
		return 2
	case TaskStateCompleted, TaskStateCanceled, TaskStateFailed:
		return 3
	default:
		return -1
	}
}

// TaskStatus carries the current state with an optional payload and a
// timestamp of the transition.
type TaskStatus struct {
	State     TaskState      `json:"state"`
	Message   map[string]any `json:"message,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// NewTaskStatus stamps a status with the current time.
func NewTaskStatus(state TaskState) TaskStatus {
	return TaskStatus{
		State:     state,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// Task is a unit of work: identity, lifecycle status, the request message,
// conversation history and accumulating artifacts. Mutation is reserved to
// the owning handler; cross-handler sharing goes through task.Manager.
type Task struct {
	ID        string
	SessionID string
	Status    TaskStatus
	Message   map[string]any
	History   []map[string]any
	Artifacts []Artifact
	Metadata  map[string]any
}

// NewTask creates a submitted task wrapping the request message. The session
// id follows the message's conversation when present.
func NewTask(request Message) *Task {
	sessionID := request.ConversationID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return &Task{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Status:    NewTaskStatus(TaskStateSubmitted),
		Message:   request.ToDict(),
		History:   []map[string]any{request.ToDict()},
		Metadata:  map[string]any{},
	}
}

// RequestMessage decodes the request message carried by the task.
func (t *Task) RequestMessage() (Message, error) {
	if t.Message == nil {
		return Message{}, fmt.Errorf("task %s carries no request message", t.ID)
	}
	return MessageFromDict(t.Message)
}

// SetState transitions the task, stamping a fresh timestamp. Transitions out
// of a terminal state fail with ErrTerminalState.
func (t *Task) SetState(state TaskState) error {
	if t.Status.State.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrTerminalState, t.ID, t.Status.State)
	}
	t.Status = NewTaskStatus(state)
	return nil
}

// Fail transitions to failed with the error text in the status message.
// Failing an already-terminal task is a no-op.
func (t *Task) Fail(errText string) {
	if t.Status.State.Terminal() {
		return
	}
	t.Status = NewTaskStatus(TaskStateFailed)
	t.Status.Message = map[string]any{"error": errText}
}

// AddArtifact appends an artifact.
func (t *Task) AddArtifact(a Artifact) {
	t.Artifacts = append(t.Artifacts, a)
}

// AppendHistory records a message in the task history.
func (t *Task) AppendHistory(m Message) {
	t.History = append(t.History, m.ToDict())
}

// Clone returns a snapshot safe to hand to another goroutine. Maps are
// shallow-copied at the top level; entries are treated as immutable values.
func (t *Task) Clone() *Task {
	out := &Task{
		ID:        t.ID,
		SessionID: t.SessionID,
		Status:    t.Status,
	}
	if t.Message != nil {
		out.Message = copyMap(t.Message)
	}
	if t.History != nil {
		out.History = make([]map[string]any, len(t.History))
		for i, h := range t.History {
			out.History[i] = copyMap(h)
		}
	}
	if t.Artifacts != nil {
		out.Artifacts = make([]Artifact, len(t.Artifacts))
		copy(out.Artifacts, t.Artifacts)
	}
	if t.Metadata != nil {
		out.Metadata = copyMap(t.Metadata)
	}
	return out
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ToDict encodes the task in the active process-wide dialect.
func (t *Task) ToDict() map[string]any {
	if GoogleA2AEnabled() {
		return t.ToGoogleA2A()
	}
	return t.toNative()
}

func (t *Task) toNative() map[string]any {
	status := map[string]any{
		"state":     string(t.Status.State),
		"timestamp": t.Status.Timestamp,
	}
	if t.Status.Message != nil {
		status["message"] = t.Status.Message
	}
	out := map[string]any{
		"id":         t.ID,
		"session_id": t.SessionID,
		"status":     status,
	}
	if t.Message != nil {
		out["message"] = t.Message
	}
	if t.History != nil {
		hist := make([]any, 0, len(t.History))
		for _, h := range t.History {
			hist = append(hist, h)
		}
		out["history"] = hist
	}
	arts := make([]any, 0, len(t.Artifacts))
	for _, a := range t.Artifacts {
		arts = append(arts, a.ToMap())
	}
	out["artifacts"] = arts
	if t.Metadata != nil {
		out["metadata"] = t.Metadata
	}
	return out
}

// ToGoogleA2A encodes the task in the Google A2A dialect (camelCase keys,
// same nested status.state enum values).
func (t *Task) ToGoogleA2A() map[string]any {
	status := map[string]any{
		"state":     string(t.Status.State),
		"timestamp": t.Status.Timestamp,
	}
	if t.Status.Message != nil {
		status["message"] = t.Status.Message
	}
	out := map[string]any{
		"id":        t.ID,
		"sessionId": t.SessionID,
		"status":    status,
	}
	if t.Message != nil {
		out["message"] = t.Message
	}
	if t.History != nil {
		hist := make([]any, 0, len(t.History))
		for _, h := range t.History {
			hist = append(hist, h)
		}
		out["history"] = hist
	}
	arts := make([]any, 0, len(t.Artifacts))
	for _, a := range t.Artifacts {
		arts = append(arts, a.ToMap())
	}
	out["artifacts"] = arts
	if t.Metadata != nil {
		out["metadata"] = t.Metadata
	}
	return out
}

// TaskFromDict decodes a task from either dialect, detected by the session
// id key casing. Tasks without a session id default to the native path.
func TaskFromDict(m map[string]any) (*Task, error) {
	t := &Task{}
	t.ID, _ = m["id"].(string)
	if sid, ok := m["sessionId"].(string); ok {
		t.SessionID = sid
	} else {
		t.SessionID, _ = m["session_id"].(string)
	}

	if statusMap, ok := m["status"].(map[string]any); ok {
		stateStr, _ := statusMap["state"].(string)
		state, err := ParseTaskState(stateStr)
		if err != nil {
			return nil, err
		}
		t.Status.State = state
		t.Status.Timestamp, _ = statusMap["timestamp"].(string)
		if msg, ok := statusMap["message"].(map[string]any); ok {
			t.Status.Message = msg
		}
	} else {
		t.Status = NewTaskStatus(TaskStateUnknown)
	}

	if msg, ok := m["message"].(map[string]any); ok {
		t.Message = msg
	}
	if hist, ok := m["history"].([]any); ok {
		for _, item := range hist {
			if hm, ok := item.(map[string]any); ok {
				t.History = append(t.History, hm)
			}
		}
	}
	if arts, ok := m["artifacts"].([]any); ok {
		for _, item := range arts {
			am, ok := item.(map[string]any)
			if !ok {
				continue
			}
			a, err := ArtifactFromMap(am)
			if err != nil {
				return nil, err
			}
			t.Artifacts = append(t.Artifacts, a)
		}
	}
	if md, ok := m["metadata"].(map[string]any); ok {
		t.Metadata = md
	}
	return t, nil
}

// TaskFromGoogleA2A decodes a task from the Google A2A dialect.
func TaskFromGoogleA2A(m map[string]any) (*Task, error) {
	return TaskFromDict(m)
}

// MarshalJSON emits the active dialect.
func (t Task) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.ToDict())
}

// UnmarshalJSON decodes either dialect.
func (t *Task) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := TaskFromDict(raw)
	if err != nil {
		return err
	}
	*t = *decoded
	return nil
}
