package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  host: 0.0.0.0
  port: 9090
  stream_idle_timeout: 60s
agent:
  name: weather
  description: Weather agent
logging:
  level: debug
`), 0o644))

	cfg, err := LoadFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 60*time.Second, cfg.Server.StreamIdleTimeout)
	assert.Equal(t, "weather", cfg.Agent.Name)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Defaults fill the rest.
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "0.1.0", cfg.Agent.Version)
}

func TestLoadFileJSONFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server":{"port":7070}}`), 0o644))

	cfg, err := LoadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestEnvExpansion(t *testing.T) {
	t.Setenv("AW_TEST_HOST", "10.0.0.5")

	raw, err := ParseBytes([]byte(`
server:
  host: ${AW_TEST_HOST}
  base_url: ${AW_TEST_MISSING:-http://fallback:8080}
`))
	require.NoError(t, err)

	expanded := ExpandEnvVars(raw)
	server := expanded["server"].(map[string]any)
	assert.Equal(t, "10.0.0.5", server["host"])
	assert.Equal(t, "http://fallback:8080", server["base_url"])
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 70000
	assert.Error(t, cfg.Validate())
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Address())
	assert.Equal(t, 300*time.Second, cfg.Server.StreamIdleTimeout)
}
