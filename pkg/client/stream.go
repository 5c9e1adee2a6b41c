package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/agentwire/agentwire/pkg/a2a"
)

// StreamMessage posts a message to the streaming endpoint and returns the
// chunk channel. Servers without the endpoint degrade to a single-chunk
// stream backed by the non-streaming call, so callers never branch.
func (c *Client) StreamMessage(ctx context.Context, msg a2a.Message) (<-chan a2a.StreamChunk, error) {
	resp, err := c.openStream(ctx, c.baseURL+"/stream", msg.ToDict())
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return c.fallbackStream(ctx, msg)
	}

	out := make(chan a2a.StreamChunk, 10)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		consumeSSE(ctx, resp.Body, func(event string, data []byte) bool {
			if event == "error" {
				var se a2a.StreamError
				_ = json.Unmarshal(data, &se)
				slog.Debug("stream error frame", "error", se.Error)
				return false
			}
			var chunk a2a.StreamChunk
			if err := json.Unmarshal(data, &chunk); err != nil {
				return true
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return false
			}
			return !chunk.LastChunk
		})
	}()
	return out, nil
}

// StreamTask opens a tasks/stream subscription and returns the snapshot
// event channel. The handshake frame is skipped.
func (c *Client) StreamTask(ctx context.Context, t *a2a.Task) (<-chan a2a.TaskStreamEvent, error) {
	req, err := a2a.NewRequest(1, a2a.MethodTasksStream, t.ToDict())
	if err != nil {
		return nil, err
	}
	resp, err := c.openStream(ctx, c.baseURL+"/tasks/stream", req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: endpoint does not support task streaming", a2a.ErrConnection)
	}

	out := make(chan a2a.TaskStreamEvent, 10)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		consumeSSE(ctx, resp.Body, func(event string, data []byte) bool {
			switch event {
			case "error":
				return false
			case "message":
				// Handshake frame.
				return true
			}
			var te a2a.TaskStreamEvent
			if err := json.Unmarshal(data, &te); err != nil {
				return true
			}
			select {
			case out <- te:
			case <-ctx.Done():
				return false
			}
			return !te.LastChunk
		})
	}()
	return out, nil
}

// openStream opens an SSE connection. A nil response with nil error means
// the endpoint is absent and the caller should fall back.
func (c *Client) openStream(ctx context.Context, url string, payload any) (*http.Response, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", a2a.ErrConnection, err)
	}
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusMethodNotAllowed {
		resp.Body.Close()
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("%w: server returned %d: %s", a2a.ErrConnection, resp.StatusCode, body)
	}
	return resp, nil
}

// fallbackStream runs the non-streaming call and replays the reply as a
// two-frame stream: the full text, then the terminator.
func (c *Client) fallbackStream(ctx context.Context, msg a2a.Message) (<-chan a2a.StreamChunk, error) {
	reply, err := c.SendMessage(ctx, msg)
	if err != nil {
		return nil, err
	}
	out := make(chan a2a.StreamChunk, 2)
	out <- a2a.StreamChunk{Content: reply.Text(), Index: 0}
	out <- a2a.StreamChunk{Index: 1, Append: true, LastChunk: true}
	close(out)
	return out, nil
}

// consumeSSE reads event:/data: frames until EOF, the context ends, or the
// callback returns false. ReadBytes is used instead of bufio.Scanner so
// frames larger than Scanner's buffer limit still parse.
func consumeSSE(ctx context.Context, body io.Reader, handle func(event string, data []byte) bool) {
	reader := bufio.NewReader(body)

	var currentEvent string
	var currentData string
	for {
		if ctx.Err() != nil {
			return
		}
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF {
				slog.Debug("SSE stream read error", "error", err)
			}
			return
		}

		lineStr := strings.TrimSpace(string(line))
		switch {
		case strings.HasPrefix(lineStr, "event: "):
			currentEvent = strings.TrimPrefix(lineStr, "event: ")
		case strings.HasPrefix(lineStr, "data: "):
			currentData = strings.TrimPrefix(lineStr, "data: ")
		case lineStr == "" && currentData != "":
			if !handle(currentEvent, []byte(currentData)) {
				return
			}
			currentEvent = ""
			currentData = ""
		}
	}
}
