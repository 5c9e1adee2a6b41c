package main

import (
	"fmt"
	"time"

	"github.com/agentwire/agentwire/pkg/client"
	"github.com/agentwire/agentwire/pkg/workflow"
)

// WorkflowCmd groups workflow subcommands.
type WorkflowCmd struct {
	Run WorkflowRunCmd `cmd:"" help:"Execute a workflow definition."`
}

// WorkflowRunCmd loads a workflow YAML file and executes it. Agent nodes
// resolve against --agent id=url bindings, each a remote A2A endpoint.
type WorkflowRunCmd struct {
	Config string            `short:"c" required:"" help:"Path to workflow YAML file." type:"path"`
	Input  string            `help:"Initial input text, delivered to every input node."`
	Agents map[string]string `name:"agent" help:"Remote agent bindings as id=url pairs."`

	Verbose bool `short:"v" help:"Print per-node progress events."`
}

func (c *WorkflowRunCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	wf, err := workflow.LoadFile(c.Config)
	if err != nil {
		return err
	}

	agents := workflow.NewAgentRegistry()
	for id, url := range c.Agents {
		cl, err := client.New(url)
		if err != nil {
			return fmt.Errorf("agent %s: %w", id, err)
		}
		agents.Register(id, workflow.NewRemoteAgent(cl))
	}

	var opts []workflow.EngineOption
	if c.Verbose {
		events := make(chan workflow.StepEvent, 64)
		done := make(chan struct{})
		go func() {
			defer close(done)
			for ev := range events {
				if ev.Error != "" {
					fmt.Printf("[%s] %s: %s\n", ev.NodeID, ev.Status, ev.Error)
					continue
				}
				fmt.Printf("[%s] %s\n", ev.NodeID, ev.Status)
			}
		}()
		defer func() { close(events); <-done }()
		opts = append(opts, workflow.WithEvents(events))
	}

	engine := workflow.NewEngine(agents, workflow.NewToolRegistry(), opts...)

	inputs := map[string]any{}
	if c.Input != "" {
		inputs["input"] = c.Input
	}

	start := time.Now()
	result, err := engine.Execute(ctx, wf, inputs)
	if err != nil {
		return err
	}

	fmt.Printf("workflow %s %s in %s (%d steps)\n",
		result.WorkflowName, result.Status, time.Since(start).Round(time.Millisecond),
		result.StepsExecuted)
	if result.Error != "" {
		fmt.Printf("error: %s\n", result.Error)
	}
	return printJSON(result.Results)
}
