// Package client is the outbound side of the A2A protocol: direct messaging,
// JSON-RPC task operations, SSE stream consumption, agent-card discovery and
// a multi-endpoint distributed client.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agentwire/agentwire/pkg/a2a"
	"github.com/agentwire/agentwire/pkg/httpclient"
)

const defaultTimeout = 300 * time.Second

// Client talks to a single A2A endpoint.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	// stream has no client-level timeout; streams outlive request timeouts.
	stream *http.Client
}

// Option configures the client.
type Option func(*Client) error

// WithToken attaches a bearer token to every request.
func WithToken(token string) Option {
	return func(c *Client) error {
		c.token = token
		return nil
	}
}

// WithTimeout overrides the non-streaming request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		c.http.Timeout = d
		return nil
	}
}

// WithTLS configures TLS for both the request and the stream client.
func WithTLS(cfg *httpclient.TLSConfig) Option {
	return func(c *Client) error {
		reqClient, err := httpclient.New(c.http.Timeout, cfg)
		if err != nil {
			return err
		}
		streamClient, err := httpclient.New(0, cfg)
		if err != nil {
			return err
		}
		c.http = reqClient
		c.stream = streamClient
		return nil
	}
}

// New creates a client for the endpoint base URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		stream:  &http.Client{},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// BaseURL returns the endpoint this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	c.stream.CloseIdleConnections()
	return nil
}

// SendMessage posts a message to the direct endpoint and returns the reply.
// Transport failures still produce a well-formed Error-content reply along
// with the wrapped error, so callers can render something either way.
func (c *Client) SendMessage(ctx context.Context, msg a2a.Message) (a2a.Message, error) {
	body, err := c.postJSON(ctx, c.baseURL+"/", msg.ToDict())
	if err != nil {
		return msg.Reply(a2a.ErrorContent(err.Error())), err
	}

	var dict map[string]any
	if err := json.Unmarshal(body, &dict); err != nil {
		err = fmt.Errorf("%w: undecodable reply: %v", a2a.ErrConnection, err)
		return msg.Reply(a2a.ErrorContent(err.Error())), err
	}
	reply, err := a2a.MessageFromDict(dict)
	if err != nil {
		return msg.Reply(a2a.ErrorContent(err.Error())), err
	}
	return reply, nil
}

// SendConversation posts a whole conversation and returns the server's
// extended transcript.
func (c *Client) SendConversation(ctx context.Context, conv *a2a.Conversation) (*a2a.Conversation, error) {
	body, err := c.postJSON(ctx, c.baseURL+"/", conv.ToDict())
	if err != nil {
		return nil, err
	}
	var dict map[string]any
	if err := json.Unmarshal(body, &dict); err != nil {
		return nil, fmt.Errorf("%w: undecodable reply: %v", a2a.ErrConnection, err)
	}
	return a2a.ConversationFromDict(dict)
}

// SendTask dispatches a task via tasks/send. Transport failures come back as
// the task in failed state plus the wrapped error.
func (c *Client) SendTask(ctx context.Context, t *a2a.Task) (*a2a.Task, error) {
	result, err := c.rpcTask(ctx, "/tasks/send", a2a.MethodTasksSend, t.ToDict())
	if err != nil {
		t.Fail(err.Error())
		return t, err
	}
	return result, nil
}

// GetTask fetches a stored task. historyLength > 0 asks the server to
// truncate history to the last N messages.
func (c *Client) GetTask(ctx context.Context, id string, historyLength int) (*a2a.Task, error) {
	return c.rpcTask(ctx, "/tasks/get", a2a.MethodTasksGet,
		a2a.GetParams{ID: id, HistoryLength: historyLength})
}

// CancelTask requests cancellation of a task.
func (c *Client) CancelTask(ctx context.Context, id string) (*a2a.Task, error) {
	return c.rpcTask(ctx, "/tasks/cancel", a2a.MethodTasksCancel, a2a.CancelParams{ID: id})
}

func (c *Client) rpcTask(ctx context.Context, path, method string, params any) (*a2a.Task, error) {
	req, err := a2a.NewRequest(1, method, params)
	if err != nil {
		return nil, err
	}
	body, err := c.postJSON(ctx, c.baseURL+path, req)
	if err != nil {
		return nil, err
	}

	var envelope a2a.Response
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: undecodable envelope: %v", a2a.ErrConnection, err)
	}
	if envelope.Error != nil {
		return nil, envelope.Error
	}
	dict, ok := envelope.Result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T", envelope.Result)
	}
	return a2a.TaskFromDict(dict)
}

// postJSON posts a JSON body and returns the raw response. Non-2xx responses
// carrying a JSON-RPC envelope are returned as a body so the caller can read
// the in-envelope error; other failures wrap ErrConnection.
func (c *Client) postJSON(ctx context.Context, url string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", a2a.ErrConnection, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", a2a.ErrConnection, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}
	// Error statuses still carry a readable envelope on RPC endpoints.
	if json.Valid(body) && bytes.Contains(body, []byte("jsonrpc")) {
		return body, nil
	}
	return nil, fmt.Errorf("%w: server returned %d: %s", a2a.ErrConnection, resp.StatusCode, body)
}
