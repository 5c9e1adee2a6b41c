package a2a

import (
	"fmt"
	"sort"
)

// ============================================================================
// CONTENT - Tagged union carried by a Message
// ============================================================================

// ContentKind discriminates the content variants.
type ContentKind string

const (
	ContentKindText             ContentKind = "text"
	ContentKindFunctionCall     ContentKind = "function_call"
	ContentKindFunctionResponse ContentKind = "function_response"
	ContentKindError            ContentKind = "error"
)

// Parameter is one named argument of a function call. The list form
// [{name, value}] is the canonical wire representation; converters to and
// from the object form are provided below.
type Parameter struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Content is the payload of a message (union type). Exactly the fields of
// the active Kind are meaningful. Extra holds unknown keys seen on decode so
// they survive a round trip.
type Content struct {
	Kind ContentKind

	// text
	Text string

	// function_call / function_response
	Name       string
	Parameters []Parameter
	Response   any

	// error
	Message string

	Extra map[string]any
}

// TextContent builds a text content value.
func TextContent(text string) Content {
	return Content{Kind: ContentKindText, Text: text}
}

// FunctionCallContent builds a function_call content value.
func FunctionCallContent(name string, params []Parameter) Content {
	return Content{Kind: ContentKindFunctionCall, Name: name, Parameters: params}
}

// FunctionResponseContent builds a function_response content value.
func FunctionResponseContent(name string, response any) Content {
	return Content{Kind: ContentKindFunctionResponse, Name: name, Response: response}
}

// ErrorContent builds an error content value.
func ErrorContent(message string) Content {
	return Content{Kind: ContentKindError, Message: message}
}

// ToMap encodes the content as a dialect-neutral map with a "type"
// discriminator. Unknown keys preserved from a previous decode are emitted
// first so the typed fields win on key collisions.
func (c Content) ToMap() map[string]any {
	m := make(map[string]any, len(c.Extra)+3)
	for k, v := range c.Extra {
		m[k] = v
	}
	m["type"] = string(c.Kind)
	switch c.Kind {
	case ContentKindText:
		m["text"] = c.Text
	case ContentKindFunctionCall:
		m["name"] = c.Name
		m["parameters"] = parametersToList(c.Parameters)
	case ContentKindFunctionResponse:
		m["name"] = c.Name
		m["response"] = c.Response
	case ContentKindError:
		m["message"] = c.Message
	}
	return m
}

// ContentFromMap decodes a content map. Unknown "type" values fail with
// ErrUnknownContentKind; unknown sibling keys are kept in Extra.
func ContentFromMap(m map[string]any) (Content, error) {
	kind, _ := m["type"].(string)
	c := Content{Kind: ContentKind(kind)}

	consumed := map[string]bool{"type": true}
	switch c.Kind {
	case ContentKindText:
		c.Text, _ = m["text"].(string)
		consumed["text"] = true
	case ContentKindFunctionCall:
		c.Name, _ = m["name"].(string)
		params, err := ParametersFromAny(m["parameters"])
		if err != nil {
			return Content{}, err
		}
		c.Parameters = params
		consumed["name"] = true
		consumed["parameters"] = true
	case ContentKindFunctionResponse:
		c.Name, _ = m["name"].(string)
		c.Response = m["response"]
		consumed["name"] = true
		consumed["response"] = true
	case ContentKindError:
		c.Message, _ = m["message"].(string)
		consumed["message"] = true
	default:
		return Content{}, fmt.Errorf("%w: %q", ErrUnknownContentKind, kind)
	}

	for k, v := range m {
		if consumed[k] {
			continue
		}
		if c.Extra == nil {
			c.Extra = make(map[string]any)
		}
		c.Extra[k] = v
	}
	return c, nil
}

// ============================================================================
// PARAMETER CONVERTERS - list form <-> object form
// ============================================================================

func parametersToList(params []Parameter) []any {
	out := make([]any, 0, len(params))
	for _, p := range params {
		out = append(out, map[string]any{"name": p.Name, "value": p.Value})
	}
	return out
}

// ParametersFromAny accepts either the canonical list form
// [{name, value}, ...] or the object form {name: value, ...}.
func ParametersFromAny(v any) ([]Parameter, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case []any:
		out := make([]Parameter, 0, len(val))
		for _, item := range val {
			entry, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: function_call parameter entry must be an object", ErrBadEnum)
			}
			name, _ := entry["name"].(string)
			out = append(out, Parameter{Name: name, Value: entry["value"]})
		}
		return out, nil
	case map[string]any:
		return ParametersFromObject(val), nil
	default:
		return nil, fmt.Errorf("%w: function_call parameters must be a list or object", ErrBadEnum)
	}
}

// ParametersToObject converts the list form to an object keyed by parameter
// name. Later duplicates win.
func ParametersToObject(params []Parameter) map[string]any {
	out := make(map[string]any, len(params))
	for _, p := range params {
		out[p.Name] = p.Value
	}
	return out
}

// ParametersFromObject converts the object form to the canonical list form.
// Keys are sorted so the conversion is deterministic.
func ParametersFromObject(obj map[string]any) []Parameter {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Parameter, 0, len(keys))
	for _, k := range keys {
		out = append(out, Parameter{Name: k, Value: obj[k]})
	}
	return out
}
