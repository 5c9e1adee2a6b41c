// Package config loads and validates runtime configuration from YAML or
// JSON, with ${VAR} environment expansion and optional file watching.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the runtime.
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Agent         AgentConfig         `yaml:"agent" json:"agent"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// ServerConfig configures the HTTP listener and stream behavior.
type ServerConfig struct {
	Host    string `yaml:"host" json:"host"`
	Port    int    `yaml:"port" json:"port"`
	BaseURL string `yaml:"base_url" json:"base_url"`

	// RequestTimeout bounds non-streaming request handling.
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	// StreamIdleTimeout closes a stream with no events for this long.
	StreamIdleTimeout time.Duration `yaml:"stream_idle_timeout" json:"stream_idle_timeout"`
}

// Address returns host:port.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SetDefaults fills zero fields.
func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.BaseURL == "" {
		c.BaseURL = fmt.Sprintf("http://%s", c.Address())
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.StreamIdleTimeout == 0 {
		c.StreamIdleTimeout = 300 * time.Second
	}
}

// AgentConfig describes the served agent's card fields.
type AgentConfig struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Version     string `yaml:"version" json:"version"`
}

// SetDefaults fills zero fields.
func (c *AgentConfig) SetDefaults() {
	if c.Name == "" {
		c.Name = "agentwire"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

// LoggingConfig configures slog setup.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	File   string `yaml:"file" json:"file"`
}

// SetDefaults fills zero fields.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}
}

// ObservabilityConfig toggles metrics and tracing.
type ObservabilityConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	ServiceName string `yaml:"service_name" json:"service_name"`
	// TraceStdout dumps spans to stdout; useful without a collector.
	TraceStdout bool `yaml:"trace_stdout" json:"trace_stdout"`
}

// SetDefaults fills zero fields.
func (c *ObservabilityConfig) SetDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "agentwire"
	}
}

// SetDefaults applies defaults to the whole tree.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Agent.SetDefaults()
	c.Logging.SetDefaults()
	c.Observability.SetDefaults()
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.StreamIdleTimeout < time.Second {
		return fmt.Errorf("server.stream_idle_timeout must be at least 1s")
	}
	return nil
}

// Default returns a fully defaulted config.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}
