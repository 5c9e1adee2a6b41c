package main

import (
	"context"
	"log/slog"

	"github.com/agentwire/agentwire/pkg/adapter"
	"github.com/agentwire/agentwire/pkg/config"
	"github.com/agentwire/agentwire/pkg/config/provider"
	"github.com/agentwire/agentwire/pkg/observability"
	"github.com/agentwire/agentwire/pkg/server"
)

// ServeCmd starts the A2A server around the built-in echo adapter. Embedders
// wire their own adapters through the server package; the CLI serves as the
// reference deployment and smoke-test target.
type ServeCmd struct {
	Config  string `short:"c" help:"Path to config file." type:"path"`
	Host    string `help:"Host to bind (overrides config)."`
	Port    int    `help:"Port to listen on (overrides config)."`
	Watch   bool   `help:"Watch the config file and reload on change."`
	Observe bool   `help:"Enable metrics and tracing."`
	Prefix  string `help:"Echo reply prefix." default:"Echo: "`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := c.loadConfig(ctx)
	if err != nil {
		return err
	}
	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if c.Observe {
		cfg.Observability.Enabled = true
	}

	var opts []server.Option
	if cfg.Observability.Enabled {
		obs := observability.NewManager(observability.Config{
			Enabled:     true,
			ServiceName: cfg.Observability.ServiceName,
			TraceStdout: cfg.Observability.TraceStdout,
		})
		if err := obs.Initialize(ctx); err != nil {
			return err
		}
		defer func() { _ = obs.Shutdown(context.Background()) }()
		opts = append(opts, server.WithObservability(obs))
	}

	srv := server.New(cfg, &adapter.Echo{Prefix: c.Prefix}, opts...)

	if c.Watch && c.Config != "" {
		go c.watchConfig(ctx)
	}

	return srv.Start(ctx)
}

func (c *ServeCmd) loadConfig(ctx context.Context) (*config.Config, error) {
	if c.Config == "" {
		return config.Default(), nil
	}
	return config.LoadFile(ctx, c.Config)
}

// watchConfig logs reloads. Listener changes need a restart; everything the
// adapter reads per-request picks the new values up live.
func (c *ServeCmd) watchConfig(ctx context.Context) {
	p, err := provider.NewFileProvider(c.Config)
	if err != nil {
		slog.Error("config watch unavailable", "error", err)
		return
	}
	defer p.Close()

	loader := config.NewLoader(p, config.WithOnChange(func(cfg *config.Config) {
		slog.Info("config file changed",
			"log_level", cfg.Logging.Level,
			"note", "listener changes take effect on restart")
	}))
	if err := loader.Watch(ctx); err != nil && ctx.Err() == nil {
		slog.Error("config watch stopped", "error", err)
	}
}
