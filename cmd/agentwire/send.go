package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/agentwire/agentwire/pkg/a2a"
	"github.com/agentwire/agentwire/pkg/client"
)

// SendCmd sends a message to an agent endpoint and prints the reply. With
// --task the message is wrapped in a task and the lifecycle result printed;
// an argument of the form @file.json submits the file's task dictionary.
type SendCmd struct {
	Endpoint string `arg:"" help:"Agent base URL, e.g. http://localhost:8080."`
	Message  string `arg:"" help:"Message text, or @file.json for a task dictionary."`

	Token   string        `help:"Bearer token for authentication."`
	Timeout time.Duration `help:"Request timeout." default:"300s"`
	Stream  bool          `help:"Stream the reply over SSE and print chunks as they arrive."`
	Task    bool          `help:"Submit as a task instead of a direct message."`
}

func (c *SendCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	cl, err := c.client()
	if err != nil {
		return err
	}

	if strings.HasPrefix(c.Message, "@") {
		return c.sendTaskFile(ctx, cl, strings.TrimPrefix(c.Message, "@"))
	}

	msg := a2a.UserText(c.Message)

	if c.Task {
		task, err := cl.SendTask(ctx, a2a.NewTask(msg))
		if err != nil {
			return err
		}
		return printJSON(task.ToDict())
	}

	if c.Stream {
		chunks, err := cl.StreamMessage(ctx, msg)
		if err != nil {
			return err
		}
		for chunk := range chunks {
			fmt.Print(chunk.Content)
		}
		fmt.Println()
		return nil
	}

	reply, err := cl.SendMessage(ctx, msg)
	if err != nil {
		return err
	}
	fmt.Println(reply.Text())
	return nil
}

func (c *SendCmd) client() (*client.Client, error) {
	opts := []client.Option{client.WithTimeout(c.Timeout)}
	if c.Token != "" {
		opts = append(opts, client.WithToken(c.Token))
	}
	return client.New(c.Endpoint, opts...)
}

func (c *SendCmd) sendTaskFile(ctx context.Context, cl *client.Client, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read task file: %w", err)
	}
	var dict map[string]any
	if err := json.Unmarshal(data, &dict); err != nil {
		return fmt.Errorf("failed to parse task file: %w", err)
	}
	task, err := a2a.TaskFromDict(dict)
	if err != nil {
		return fmt.Errorf("invalid task in %s: %w", path, err)
	}

	result, err := cl.SendTask(ctx, task)
	if err != nil {
		return err
	}
	return printJSON(result.ToDict())
}

// CardCmd fetches and prints an agent's card, following HTML-wrapped cards
// the same way the client library does.
type CardCmd struct {
	Endpoint string        `arg:"" help:"Agent base URL."`
	Token    string        `help:"Bearer token for authentication."`
	Timeout  time.Duration `help:"Request timeout." default:"30s"`
}

func (c *CardCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	opts := []client.Option{client.WithTimeout(c.Timeout)}
	if c.Token != "" {
		opts = append(opts, client.WithToken(c.Token))
	}
	cl, err := client.New(c.Endpoint, opts...)
	if err != nil {
		return err
	}

	card, err := cl.AgentCard(ctx)
	if err != nil {
		return err
	}
	return printJSON(card)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
