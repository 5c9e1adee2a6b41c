package server

import (
	"bytes"
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
)

func newTestServer(t *testing.T, agent adapter.MessageHandler) *httptest.Server {
	t.Helper()
	srv := New(config.Default(), agent)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, &adapter.Echo{})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decodeBody(t, resp)["status"])
}

func TestAgentCardJSON(t *testing.T) {
	ts := newTestServer(t, &adapter.Echo{})

	for _, path := range []string{"/agent.json", "/a2a/agent.json"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

		card := decodeBody(t, resp)
		assert.Equal(t, "echo", card["name"])
		caps, ok := card["capabilities"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, true, caps["streaming"])
	}
}

func TestAgentCardHTMLNegotiation(t *testing.T) {
	ts := newTestServer(t, &adapter.Echo{})

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/agent.json", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `id="agent-card"`)
	assert.Contains(t, buf.String(), "echo")

	// format=json overrides negotiation even for browsers.
	req, err = http.NewRequest(http.MethodGet, ts.URL+"/agent.json?format=json", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/html")
	req.Header.Set("User-Agent", "Mozilla/5.0")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
	resp.Body.Close()
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, &adapter.Echo{})

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/tasks/send", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
}

func TestLegacyMessage(t *testing.T) {
	ts := newTestServer(t, &adapter.Echo{Prefix: "Echo: "})

	msg := a2a.UserText("hello")
	resp := postJSON(t, ts.URL+"/", msg.ToDict())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	reply, err := a2a.MessageFromDict(decodeBody(t, resp))
	require.NoError(t, err)
	assert.Equal(t, a2a.RoleAgent, reply.Role)
	assert.Equal(t, "Echo: hello", reply.Text())
	assert.Equal(t, msg.MessageID, reply.ParentMessageID)
}

func TestLegacyConversation(t *testing.T) {
	ts := newTestServer(t, &adapter.Echo{})

	conv := a2a.NewConversation()
	conv.AddUserText("first")
	conv.AddUserText("second")

	resp := postJSON(t, ts.URL+"/", conv.ToDict())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	got, err := a2a.ConversationFromDict(decodeBody(t, resp))
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, a2a.RoleAgent, got.Messages[2].Role)
	assert.Equal(t, "second", got.Messages[2].Text())
}

type failingAdapter struct{}

func (failingAdapter) HandleMessage(context.Context, a2a.Message) (a2a.Message, error) {
	return a2a.Message{}, errors.New("backend unavailable")
}

func TestLegacyAdapterErrorBecomesErrorContent(t *testing.T) {
	ts := newTestServer(t, failingAdapter{})

	resp := postJSON(t, ts.URL+"/", a2a.UserText("hi").ToDict())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	reply, err := a2a.MessageFromDict(decodeBody(t, resp))
	require.NoError(t, err)
	assert.Equal(t, a2a.ContentKindError, reply.Content.Kind)
	assert.Contains(t, reply.Content.Message, "backend unavailable")
}

func TestLegacyMalformedJSON(t *testing.T) {
	ts := newTestServer(t, &adapter.Echo{})

	resp, err := http.Post(ts.URL+"/", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func rpcCall(t *testing.T, url, method string, params any) (*http.Response, a2a.Response) {
	t.Helper()
	req, err := a2a.NewRequest(1, method, params)
	require.NoError(t, err)
	resp := postJSON(t, url, req)
	defer resp.Body.Close()
	var envelope a2a.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp, envelope
}

func taskResult(t *testing.T, envelope a2a.Response) *a2a.Task {
	t.Helper()
	require.Nil(t, envelope.Error)
	dict, ok := envelope.Result.(map[string]any)
	require.True(t, ok)
	task, err := a2a.TaskFromDict(dict)
	require.NoError(t, err)
	return task
}

func TestRPCSendGetCancel(t *testing.T) {
	ts := newTestServer(t, &adapter.Echo{Prefix: "Echo: "})

	sent := a2a.NewTask(a2a.UserText("hi"))
	resp, envelope := rpcCall(t, ts.URL+"/tasks/send", a2a.MethodTasksSend, sent.ToDict())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	result := taskResult(t, envelope)
	assert.Equal(t, sent.ID, result.ID)
	assert.Equal(t, a2a.TaskStateCompleted, result.Status.State)
	require.NotEmpty(t, result.Artifacts)
	assert.Equal(t, "Echo: hi", result.Artifacts[0].FirstText())

	resp, envelope = rpcCall(t, ts.URL+"/tasks/get", a2a.MethodTasksGet, a2a.GetParams{ID: sent.ID})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	got := taskResult(t, envelope)
	assert.Equal(t, a2a.TaskStateCompleted, got.Status.State)

	// Cancel after completion is an idempotent no-op.
	resp, envelope = rpcCall(t, ts.URL+"/tasks/cancel", a2a.MethodTasksCancel, a2a.CancelParams{ID: sent.ID})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	canceled := taskResult(t, envelope)
	assert.Equal(t, a2a.TaskStateCompleted, canceled.Status.State)
}

func TestRPCSendAcceptsWrappedTask(t *testing.T) {
	ts := newTestServer(t, &adapter.Echo{})

	sent := a2a.NewTask(a2a.UserText("wrapped"))
	resp, envelope := rpcCall(t, ts.URL+"/tasks/send", a2a.MethodTasksSend,
		map[string]any{"task": sent.ToDict()})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, a2a.TaskStateCompleted, taskResult(t, envelope).Status.State)
}

func TestRPCParseError(t *testing.T) {
	ts := newTestServer(t, &adapter.Echo{})

	resp, err := http.Post(ts.URL+"/tasks/send", "application/json", strings.NewReader("{broken"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var envelope a2a.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	resp.Body.Close()
	require.NotNil(t, envelope.Error)
	assert.Equal(t, a2a.CodeParseError, envelope.Error.Code)
}

func TestRPCUnknownMethod(t *testing.T) {
	ts := newTestServer(t, &adapter.Echo{})

	resp, envelope := rpcCall(t, ts.URL+"/tasks/send", "tasks/frobnicate", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, a2a.CodeMethodNotFound, envelope.Error.Code)
}

func TestRPCInvalidParams(t *testing.T) {
	ts := newTestServer(t, &adapter.Echo{})

	resp, envelope := rpcCall(t, ts.URL+"/tasks/get", a2a.MethodTasksGet, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, a2a.CodeInvalidParams, envelope.Error.Code)
}

func TestRPCTaskNotFound(t *testing.T) {
	ts := newTestServer(t, &adapter.Echo{})

	resp, envelope := rpcCall(t, ts.URL+"/tasks/get", a2a.MethodTasksGet, a2a.GetParams{ID: "nope"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, a2a.CodeTaskNotFound, envelope.Error.Code)
}

func TestMirroredRoutes(t *testing.T) {
	ts := newTestServer(t, &adapter.Echo{})

	sent := a2a.NewTask(a2a.UserText("via prefix"))
	resp, envelope := rpcCall(t, ts.URL+"/a2a/tasks/send", a2a.MethodTasksSend, sent.ToDict())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, a2a.TaskStateCompleted, taskResult(t, envelope).Status.State)
}
