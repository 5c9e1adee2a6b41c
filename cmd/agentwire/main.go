// Command agentwire runs and talks to A2A protocol agents.
//
// Usage:
//
//	agentwire serve --config agent.yaml
//	agentwire send http://localhost:8080 "hello there" --stream
//	agentwire workflow run --config wf.yaml --input "Rainy day"
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/agentwire/agentwire/pkg/config"
	"github.com/agentwire/agentwire/pkg/logger"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the A2A server."`
	Send     SendCmd     `cmd:"" help:"Send a message or task to an agent endpoint."`
	Card     CardCmd     `cmd:"" help:"Fetch and print an agent's card."`
	Workflow WorkflowCmd `cmd:"" help:"Run workflow definitions."`
	Schema   SchemaCmd   `cmd:"" help:"Generate JSON Schema for the config file."`

	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFormat string `help:"Log format (text or json)." default:"text"`
	LogFile   string `help:"Log file path (empty = stderr)."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("agentwire version %s\n", version)
	return nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}

func main() {
	_ = config.LoadEnvFiles()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("agentwire"),
		kong.Description("A2A protocol runtime: agent server, client and workflow engine."),
		kong.UsageOnError(),
	)

	closer, err := logger.Setup(logger.Options{
		Level:  cli.LogLevel,
		Format: cli.LogFormat,
		File:   cli.LogFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = closer() }()

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
