package task

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentwire/agentwire/pkg/a2a"
	"github.com/agentwire/agentwire/pkg/adapter"
)

func TestSendHappyPath(t *testing.T) {
	m := NewManager(&adapter.Echo{})
	task := a2a.NewTask(a2a.UserText("hi"))

	result, err := m.Send(context.Background(), task)
	require.NoError(t, err)

	assert.Equal(t, a2a.TaskStateCompleted, result.Status.State)
	require.Len(t, result.Artifacts, 1)
	assert.Equal(t, "hi", result.Artifacts[0].FirstText())

	// tasks/get returns the same task.
	got, err := m.Get(task.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, result.ID, got.ID)
	assert.Equal(t, a2a.TaskStateCompleted, got.Status.State)
}

func TestGetHistoryTruncation(t *testing.T) {
	m := NewManager(&adapter.Echo{})
	task := a2a.NewTask(a2a.UserText("hi"))

	_, err := m.Send(context.Background(), task)
	require.NoError(t, err)

	full, err := m.Get(task.ID, 0)
	require.NoError(t, err)
	require.Len(t, full.History, 2)

	truncated, err := m.Get(task.ID, 1)
	require.NoError(t, err)
	require.Len(t, truncated.History, 1)
	// The last entry survives truncation.
	assert.Equal(t, full.History[1], truncated.History[0])
}

func TestGetUnknownTask(t *testing.T) {
	m := NewManager(&adapter.Echo{})
	_, err := m.Get("nope", 0)
	assert.ErrorIs(t, err, a2a.ErrTaskNotFound)
}

func TestCancel(t *testing.T) {
	m := NewManager(&adapter.Echo{})

	task := a2a.NewTask(a2a.UserText("hi"))
	m.mu.Lock()
	m.tasks[task.ID] = task
	m.mu.Unlock()

	canceled, err := m.Cancel(task.ID)
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCanceled, canceled.Status.State)

	// Idempotent on terminal tasks.
	again, err := m.Cancel(task.ID)
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCanceled, again.Status.State)
	assert.Equal(t, canceled.Status.Timestamp, again.Status.Timestamp)

	_, err = m.Cancel("unknown")
	assert.ErrorIs(t, err, a2a.ErrTaskNotFound)
}

func TestCancelAfterCompletionIsNoOp(t *testing.T) {
	m := NewManager(&adapter.Echo{})
	task := a2a.NewTask(a2a.UserText("hi"))

	_, err := m.Send(context.Background(), task)
	require.NoError(t, err)

	after, err := m.Cancel(task.ID)
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCompleted, after.Status.State)
}

type inputRequiredAdapter struct {
	calls int
}

func (a *inputRequiredAdapter) HandleMessage(context.Context, a2a.Message) (a2a.Message, error) {
	return a2a.Message{}, nil
}

func (a *inputRequiredAdapter) HandleTask(_ context.Context, t *a2a.Task) (*a2a.Task, error) {
	a.calls++
	if a.calls == 1 {
		_ = t.SetState(a2a.TaskStateInputRequired)
		return t, nil
	}
	t.AddArtifact(a2a.TextArtifact("finished"))
	_ = t.SetState(a2a.TaskStateCompleted)
	return t, nil
}

func TestInputRequiredResume(t *testing.T) {
	agent := &inputRequiredAdapter{}
	m := NewManager(agent)

	task := a2a.NewTask(a2a.UserText("start"))
	first, err := m.Send(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateInputRequired, first.Status.State)

	// Follow-up send referencing the same id resumes the paused task.
	followUp := a2a.NewTask(a2a.UserText("here is more input"))
	followUp.ID = task.ID

	second, err := m.Send(context.Background(), followUp)
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCompleted, second.Status.State)
	assert.Equal(t, task.ID, second.ID)
	require.Len(t, second.Artifacts, 1)
	assert.Equal(t, "finished", second.Artifacts[0].FirstText())
}

func TestSendOnTerminalTaskReturnsStored(t *testing.T) {
	m := NewManager(&adapter.Echo{})
	task := a2a.NewTask(a2a.UserText("hi"))

	first, err := m.Send(context.Background(), task)
	require.NoError(t, err)
	require.Equal(t, a2a.TaskStateCompleted, first.Status.State)

	resend := a2a.NewTask(a2a.UserText("again"))
	resend.ID = task.ID
	second, err := m.Send(context.Background(), resend)
	require.NoError(t, err)
	assert.Equal(t, first.Status.State, second.Status.State)
	assert.Len(t, second.Artifacts, 1)
}

// gatedAdapter blocks HandleMessage until released, signalling when the
// execution has started.
type gatedAdapter struct {
	started chan struct{}
	release chan struct{}
}

func newGatedAdapter() *gatedAdapter {
	return &gatedAdapter{started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedAdapter) HandleMessage(_ context.Context, msg a2a.Message) (a2a.Message, error) {
	close(g.started)
	<-g.release
	return msg.Reply(a2a.TextContent("done")), nil
}

func TestCancelDuringExecutionSticks(t *testing.T) {
	agent := newGatedAdapter()
	m := NewManager(agent)
	task := a2a.NewTask(a2a.UserText("slow"))

	results := make(chan *a2a.Task, 1)
	go func() {
		res, _ := m.Send(context.Background(), task)
		results <- res
	}()
	<-agent.started

	canceled, err := m.Cancel(task.ID)
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCanceled, canceled.Status.State)

	close(agent.release)
	res := <-results
	assert.Equal(t, a2a.TaskStateCanceled, res.Status.State)

	stored, err := m.Get(task.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCanceled, stored.Status.State)
}

func TestGetDuringExecution(t *testing.T) {
	agent := newGatedAdapter()
	m := NewManager(agent)
	task := a2a.NewTask(a2a.UserText("busy"))

	results := make(chan *a2a.Task, 1)
	go func() {
		res, _ := m.Send(context.Background(), task)
		results <- res
	}()
	<-agent.started

	// Reads overlap the adapter's mutations; run with -race.
	reads := make(chan struct{})
	go func() {
		defer close(reads)
		for i := 0; i < 200; i++ {
			got, err := m.Get(task.ID, 0)
			if err == nil {
				_ = got.Status.State
			}
			_, _ = m.StatusHistory(task.ID)
		}
	}()
	close(agent.release)

	res := <-results
	<-reads
	assert.Equal(t, a2a.TaskStateCompleted, res.Status.State)
}

func TestStatusHistory(t *testing.T) {
	m := NewManager(&adapter.Echo{})
	task := a2a.NewTask(a2a.UserText("hi"))

	_, err := m.Send(context.Background(), task)
	require.NoError(t, err)

	hist, err := m.StatusHistory(task.ID)
	require.NoError(t, err)
	require.NotEmpty(t, hist)
	assert.Equal(t, a2a.TaskStateSubmitted, hist[0].State)
	assert.Equal(t, a2a.TaskStateCompleted, hist[len(hist)-1].State)

	// States never regress along the recorded history.
	prev := -1
	for _, st := range hist {
		assert.GreaterOrEqual(t, st.State.Order(), prev)
		prev = st.State.Order()
	}
}

func TestSubscribeEmitsTerminalSnapshot(t *testing.T) {
	m := NewManager(&adapter.Echo{})
	task := a2a.NewTask(a2a.UserText("alpha beta"))

	updates, err := m.Subscribe(context.Background(), task)
	require.NoError(t, err)

	var last *a2a.Task
	for snap := range updates {
		last = snap
	}
	require.NotNil(t, last)
	assert.True(t, last.Status.State.Terminal())

	stored, err := m.Get(task.ID, 0)
	require.NoError(t, err)
	assert.True(t, stored.Status.State.Terminal())
}
