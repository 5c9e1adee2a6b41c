package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentwire/agentwire/pkg/a2a"
	"github.com/agentwire/agentwire/pkg/adapter"
	"github.com/agentwire/agentwire/pkg/config"
	"github.com/agentwire/agentwire/pkg/server"
)

func newEchoServer(t *testing.T, agent adapter.MessageHandler) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(server.New(config.Default(), agent).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func newClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := New(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSendMessage(t *testing.T) {
	ts := newEchoServer(t, &adapter.Echo{Prefix: "Echo: "})
	c := newClient(t, ts.URL)

	reply, err := c.SendMessage(context.Background(), a2a.UserText("hello"))
	require.NoError(t, err)
	assert.Equal(t, a2a.RoleAgent, reply.Role)
	assert.Equal(t, "Echo: hello", reply.Text())
}

func TestSendMessageConnectionError(t *testing.T) {
	c := newClient(t, "http://127.0.0.1:1")

	msg := a2a.UserText("hello")
	reply, err := c.SendMessage(context.Background(), msg)
	require.Error(t, err)
	assert.ErrorIs(t, err, a2a.ErrConnection)

	// The reply is still a well-formed error message.
	assert.Equal(t, a2a.ContentKindError, reply.Content.Kind)
	assert.Equal(t, msg.MessageID, reply.ParentMessageID)
}

func TestSendConversation(t *testing.T) {
	ts := newEchoServer(t, &adapter.Echo{})
	c := newClient(t, ts.URL)

	conv := a2a.NewConversation()
	conv.AddUserText("ping")

	got, err := c.SendConversation(context.Background(), conv)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "ping", got.Messages[1].Text())
}

func TestTaskLifecycle(t *testing.T) {
	ts := newEchoServer(t, &adapter.Echo{Prefix: "Echo: "})
	c := newClient(t, ts.URL)
	ctx := context.Background()

	sent := a2a.NewTask(a2a.UserText("work"))
	result, err := c.SendTask(ctx, sent)
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCompleted, result.Status.State)
	require.NotEmpty(t, result.Artifacts)
	assert.Equal(t, "Echo: work", result.Artifacts[0].FirstText())

	got, err := c.GetTask(ctx, sent.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, sent.ID, got.ID)

	canceled, err := c.CancelTask(ctx, sent.ID)
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCompleted, canceled.Status.State)
}

func TestSendTaskConnectionError(t *testing.T) {
	c := newClient(t, "http://127.0.0.1:1")

	sent := a2a.NewTask(a2a.UserText("work"))
	result, err := c.SendTask(context.Background(), sent)
	require.Error(t, err)
	assert.ErrorIs(t, err, a2a.ErrConnection)
	assert.Equal(t, a2a.TaskStateFailed, result.Status.State)
}

func TestGetTaskNotFound(t *testing.T) {
	ts := newEchoServer(t, &adapter.Echo{})
	c := newClient(t, ts.URL)

	_, err := c.GetTask(context.Background(), "missing", 0)
	require.Error(t, err)
	var rpcErr *a2a.RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, a2a.CodeTaskNotFound, rpcErr.Code)
}

func TestStreamMessage(t *testing.T) {
	ts := newEchoServer(t, &adapter.Echo{})
	c := newClient(t, ts.URL)

	chunks, err := c.StreamMessage(context.Background(), a2a.UserText("one two three"))
	require.NoError(t, err)

	var text strings.Builder
	sawLast := false
	for chunk := range chunks {
		text.WriteString(chunk.Content)
		sawLast = chunk.LastChunk
	}
	assert.True(t, sawLast)
	assert.Equal(t, "one two three", text.String())
}

func TestStreamMessageFallback(t *testing.T) {
	// A server without the streaming endpoint: /stream 404s, / echoes.
	mux := http.NewServeMux()
	mux.HandleFunc("/stream", func(w http.ResponseWriter, _ *http.Request) {
		http.NotFound(w, nil)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		reply := a2a.NewMessage(a2a.RoleAgent, a2a.TextContent("plain reply"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(reply.ToDict())
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	c := newClient(t, ts.URL)

	chunks, err := c.StreamMessage(context.Background(), a2a.UserText("hi"))
	require.NoError(t, err)

	var got []a2a.StreamChunk
	for chunk := range chunks {
		got = append(got, chunk)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "plain reply", got[0].Content)
	assert.True(t, got[1].LastChunk)
}

func TestStreamTask(t *testing.T) {
	ts := newEchoServer(t, &adapter.Echo{})
	c := newClient(t, ts.URL)

	events, err := c.StreamTask(context.Background(), a2a.NewTask(a2a.UserText("go")))
	require.NoError(t, err)

	var last a2a.TaskStreamEvent
	count := 0
	for event := range events {
		last = event
		count++
	}
	require.Greater(t, count, 0)
	assert.True(t, last.LastChunk)

	snap, err := a2a.TaskFromDict(last.Task)
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCompleted, snap.Status.State)
}
