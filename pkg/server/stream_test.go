package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentwire/agentwire/pkg/a2a"
	"github.com/agentwire/agentwire/pkg/adapter"
	"github.com/agentwire/agentwire/pkg/config"
)

type sseFrame struct {
	event string
	data  []byte
}

// parseSSE splits a fully buffered SSE body into frames.
func parseSSE(t *testing.T, body []byte) []sseFrame {
	t.Helper()
	var frames []sseFrame
	var current sseFrame
	for _, line := range strings.Split(string(body), "\n") {
		switch {
		case strings.HasPrefix(line, "event: "):
			current.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.data = []byte(strings.TrimPrefix(line, "data: "))
		case line == "" && current.data != nil:
			frames = append(frames, current)
			current = sseFrame{}
		}
	}
	return frames
}

func streamBody(t *testing.T, url string, payload any) []sseFrame {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return parseSSE(t, body)
}

func TestTaskStream(t *testing.T) {
	ts := newTestServer(t, &adapter.Echo{Prefix: "Echo: "})

	task := a2a.NewTask(a2a.UserText("stream me"))
	req, err := a2a.NewRequest(1, a2a.MethodTasksStream, task.ToDict())
	require.NoError(t, err)

	frames := streamBody(t, ts.URL+"/tasks/stream", req)
	require.GreaterOrEqual(t, len(frames), 2)

	// Handshake first, then task snapshots.
	assert.Equal(t, "message", frames[0].event)
	var hello a2a.StreamHandshake
	require.NoError(t, json.Unmarshal(frames[0].data, &hello))
	assert.Contains(t, hello.Message, "streaming established")

	var lastState a2a.TaskState
	prevOrder := -1
	for i, frame := range frames[1:] {
		// Snapshot frames are default events and carry no event: line.
		assert.Empty(t, frame.event)
		var event a2a.TaskStreamEvent
		require.NoError(t, json.Unmarshal(frame.data, &event))
		assert.Equal(t, i, event.Index)

		snap, err := a2a.TaskFromDict(event.Task)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, snap.Status.State.Order(), prevOrder)
		prevOrder = snap.Status.State.Order()
		lastState = snap.Status.State

		if i == len(frames)-2 {
			assert.True(t, event.LastChunk)
			require.NotEmpty(t, snap.Artifacts)
			var text strings.Builder
			for _, p := range snap.Artifacts[0].Parts {
				text.WriteString(p.Text)
			}
			assert.Equal(t, "Echo: stream me", text.String())
		}
	}
	assert.Equal(t, a2a.TaskStateCompleted, lastState)
}

func TestTaskStreamSendSubscribeAlias(t *testing.T) {
	ts := newTestServer(t, &adapter.Echo{})

	task := a2a.NewTask(a2a.UserText("alias"))
	req, err := a2a.NewRequest(1, a2a.MethodTasksSendSubscribe, task.ToDict())
	require.NoError(t, err)

	frames := streamBody(t, ts.URL+"/tasks/sendSubscribe", req)
	require.GreaterOrEqual(t, len(frames), 2)
}

func TestMessageStream(t *testing.T) {
	ts := newTestServer(t, &adapter.Echo{})

	msg := a2a.UserText("one two three")
	frames := streamBody(t, ts.URL+"/stream", msg.ToDict())
	require.NotEmpty(t, frames)

	var text strings.Builder
	for i, frame := range frames {
		require.Empty(t, frame.event)
		var chunk a2a.StreamChunk
		require.NoError(t, json.Unmarshal(frame.data, &chunk))
		assert.Equal(t, i, chunk.Index)
		assert.Equal(t, i > 0, chunk.Append)
		text.WriteString(chunk.Content)

		if i == len(frames)-1 {
			assert.True(t, chunk.LastChunk)
			assert.Empty(t, chunk.Content)
		} else {
			assert.False(t, chunk.LastChunk)
		}
	}
	assert.Equal(t, "one two three", text.String())
}

func TestMessageStreamOneShotFallback(t *testing.T) {
	// Wrapping hides Echo's Streamer so only HandleMessage is visible.
	ts := newTestServer(t, &struct{ adapter.MessageHandler }{&adapter.Echo{Prefix: "> "}})

	frames := streamBody(t, ts.URL+"/stream", a2a.UserText("hi").ToDict())
	require.Len(t, frames, 2)

	var chunk a2a.StreamChunk
	require.NoError(t, json.Unmarshal(frames[0].data, &chunk))
	assert.Equal(t, "> hi", chunk.Content)

	require.NoError(t, json.Unmarshal(frames[1].data, &chunk))
	assert.True(t, chunk.LastChunk)
}

// hangingStreamer emits one part and then blocks until its context is
// cancelled, signalling the cancellation on a channel.
type hangingStreamer struct {
	adapter.Echo
	canceled chan struct{}
}

func (h *hangingStreamer) StreamResponse(ctx context.Context, _ a2a.Message) (<-chan a2a.Part, error) {
	out := make(chan a2a.Part)
	go func() {
		defer close(out)
		select {
		case out <- a2a.TextPart("first"):
		case <-ctx.Done():
			close(h.canceled)
			return
		}
		<-ctx.Done()
		close(h.canceled)
	}()
	return out, nil
}

func TestMessageStreamDisconnectCancelsProducer(t *testing.T) {
	h := &hangingStreamer{canceled: make(chan struct{})}
	ts := newTestServer(t, h)

	ctx, cancel := context.WithCancel(context.Background())
	raw, err := json.Marshal(a2a.UserText("hang").ToDict())
	require.NoError(t, err)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.URL+"/stream", bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	// Read the first frame, then drop the connection.
	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			break
		}
	}
	cancel()

	select {
	case <-h.canceled:
	case <-time.After(time.Second):
		t.Fatal("producer context not cancelled within 1s of disconnect")
	}
}

// silentStreamer opens a stream and then never yields.
type silentStreamer struct {
	adapter.Echo
}

func (*silentStreamer) StreamResponse(ctx context.Context, _ a2a.Message) (<-chan a2a.Part, error) {
	out := make(chan a2a.Part)
	go func() {
		<-ctx.Done()
		close(out)
	}()
	return out, nil
}

func TestMessageStreamIdleTimeout(t *testing.T) {
	cfg := config.Default()
	cfg.Server.StreamIdleTimeout = 150 * time.Millisecond

	srv := New(cfg, &silentStreamer{})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	frames := streamBody(t, ts.URL+"/stream", a2a.UserText("hang").ToDict())
	require.NotEmpty(t, frames)

	last := frames[len(frames)-1]
	assert.Equal(t, "error", last.event)
	var se a2a.StreamError
	require.NoError(t, json.Unmarshal(last.data, &se))
	assert.Contains(t, se.Error, "idle timeout")
}

func TestTaskStreamWrongMethod(t *testing.T) {
	ts := newTestServer(t, &adapter.Echo{})

	req, err := a2a.NewRequest(1, a2a.MethodTasksSend, a2a.NewTask(a2a.UserText("x")).ToDict())
	require.NoError(t, err)
	raw, err := json.Marshal(req)
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/tasks/stream", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope a2a.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, a2a.CodeMethodNotFound, envelope.Error.Code)
}
