package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"

	"github.com/agentwire/agentwire/pkg/config"
)

// SchemaCmd generates JSON Schema for the config file. Output goes to stdout
// so it can be redirected or piped into editor tooling.
type SchemaCmd struct {
	Compact bool `short:"c" help:"Compact JSON output (no indentation)."`
}

func (c *SchemaCmd) Run(cli *CLI) error {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		// Inline all definitions so consumers don't have to resolve $ref.
		DoNotReference: true,
	}

	schema := reflector.Reflect(&config.Config{})
	schema.ID = "https://agentwire.dev/schemas/config.json"
	schema.Title = "Agentwire Configuration Schema"
	schema.Description = "Configuration schema for the agentwire A2A runtime"
	schema.Version = "http://json-schema.org/draft-07/schema#"
	schema.Examples = []any{
		map[string]any{
			"server": map[string]any{
				"host": "0.0.0.0",
				"port": 8080,
			},
			"agent": map[string]any{
				"name":        "echo",
				"description": "Echoes whatever it receives.",
				"version":     "1.0.0",
			},
			"logging": map[string]any{
				"level":  "info",
				"format": "json",
			},
		},
	}

	encoder := json.NewEncoder(os.Stdout)
	if !c.Compact {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(schema); err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	return nil
}
