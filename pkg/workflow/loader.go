package workflow

import (
	"fmt"
	"os"

	"github.com/agentwire/agentwire/pkg/config"
)

// Parse decodes a workflow definition from YAML or JSON bytes, with the
// same ${VAR} expansion the runtime config gets.
func Parse(data []byte) (*Workflow, error) {
	raw, err := config.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse workflow: %w", err)
	}
	expanded := config.ExpandEnvVars(raw)

	wf := &Workflow{}
	if err := config.Decode(expanded, wf); err != nil {
		return nil, fmt.Errorf("failed to decode workflow: %w", err)
	}
	if err := wf.Validate(); err != nil {
		return nil, err
	}
	return wf, nil
}

// LoadFile reads and parses a workflow definition file.
func LoadFile(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}
	return Parse(data)
}
