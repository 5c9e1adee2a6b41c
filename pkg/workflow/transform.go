package workflow

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/agentwire/agentwire/pkg/a2a"
)

// ============================================================================
// TRANSFORM NODES
// ============================================================================

// TransformType names the supported transforms.
type TransformType string

const (
	TransformPassthrough TransformType = "passthrough"
	TransformExtract     TransformType = "extract"
	TransformTemplate    TransformType = "template"
	TransformJSON        TransformType = "json"
)

// ApplyTransform runs one transform over the incoming value.
func ApplyTransform(transformType string, cfg map[string]any, input any) (any, error) {
	switch TransformType(transformType) {
	case TransformPassthrough, "":
		return input, nil

	case TransformExtract:
		path, _ := cfg["field_path"].(string)
		if path == "" {
			return nil, fmt.Errorf("extract transform requires field_path")
		}
		return extractPath(input, path)

	case TransformTemplate:
		tmpl, _ := cfg["template"].(string)
		return strings.ReplaceAll(tmpl, "${input}", textOf(input)), nil

	case TransformJSON:
		return canonicalizeJSON(input)

	default:
		return nil, fmt.Errorf("%w: unknown transform type %q", a2a.ErrBadEnum, transformType)
	}
}

// extractPath walks a dotted path through mappings and numeric-indexed
// sequences: "items.0.name" reads input["items"][0]["name"].
func extractPath(input any, path string) (any, error) {
	current := input
	// A JSON string input is parsed first so paths work on raw payloads.
	if s, ok := current.(string); ok {
		var parsed any
		if err := json.Unmarshal([]byte(s), &parsed); err == nil {
			current = parsed
		}
	}

	for _, segment := range strings.Split(path, ".") {
		switch v := current.(type) {
		case map[string]any:
			next, ok := v[segment]
			if !ok {
				return nil, fmt.Errorf("field %q not found in path %q", segment, path)
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil {
				return nil, fmt.Errorf("segment %q is not a sequence index in path %q", segment, path)
			}
			if idx < 0 || idx >= len(v) {
				return nil, fmt.Errorf("index %d out of range in path %q", idx, path)
			}
			current = v[idx]
		default:
			return nil, fmt.Errorf("cannot descend into %T at segment %q of path %q", current, segment, path)
		}
	}
	return current, nil
}

// canonicalizeJSON parses a JSON string, or re-encodes a structured value to
// its canonical JSON text.
func canonicalizeJSON(input any) (any, error) {
	if s, ok := input.(string); ok {
		var parsed any
		if err := json.Unmarshal([]byte(s), &parsed); err != nil {
			return nil, fmt.Errorf("json transform: %w", err)
		}
		return parsed, nil
	}
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("json transform: %w", err)
	}
	return string(raw), nil
}

// textOf projects any value to text: strings pass through, mappings prefer
// their "content" or "text" key, everything else JSON-encodes.
func textOf(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]any:
		if content, ok := val["content"]; ok {
			return textOf(content)
		}
		if text, ok := val["text"].(string); ok {
			return text
		}
	case bool:
		if val {
			return "true"
		}
		return "false"
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}
