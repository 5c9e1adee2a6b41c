package a2a

import "fmt"

// ============================================================================
// PART - Typed fragment inside an artifact or a Google A2A message
// ============================================================================

// Part mirrors the content variants at artifact granularity. The set of part
// types is open: unknown types decode without error and round-trip through
// Extra, only the known variants get typed fields.
type Part struct {
	Type string

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

// TextPart builds a text part.
func TextPart(text string) Part {
	return Part{Type: string(ContentKindText), Text: text}
}

// ToPart converts message content into an artifact part.
func (c Content) ToPart() Part {
	return Part{
		Type:       string(c.Kind),
		Text:       c.Text,
		Name:       c.Name,
		Parameters: c.Parameters,
		Response:   c.Response,
		Message:    c.Message,
		Extra:      c.Extra,
	}
}

// ToContent converts a part back into message content. Parts whose type
// names no content variant fail with ErrUnknownContentKind.
func (p Part) ToContent() (Content, error) {
	switch ContentKind(p.Type) {
	case ContentKindText, ContentKindFunctionCall, ContentKindFunctionResponse, ContentKindError:
		return Content{
			Kind:       ContentKind(p.Type),
			Text:       p.Text,
			Name:       p.Name,
			Parameters: p.Parameters,
			Response:   p.Response,
			Message:    p.Message,
			Extra:      p.Extra,
		}, nil
	default:
		return Content{}, fmt.Errorf("%w: part type %q", ErrUnknownContentKind, p.Type)
	}
}

// ToMap encodes the part with its "type" discriminator.
func (p Part) ToMap() map[string]any {
	m := make(map[string]any, len(p.Extra)+3)
	for k, v := range p.Extra {
		m[k] = v
	}
	m["type"] = p.Type
	switch ContentKind(p.Type) {
	case ContentKindText:
		m["text"] = p.Text
	case ContentKindFunctionCall:
		m["name"] = p.Name
		m["parameters"] = parametersToList(p.Parameters)
	case ContentKindFunctionResponse:
		m["name"] = p.Name
		m["response"] = p.Response
	case ContentKindError:
		m["message"] = p.Message
	}
	return m
}

// PartFromMap decodes a part map. Unlike ContentFromMap this is tolerant of
// unknown types: all keys besides the known ones land in Extra.
func PartFromMap(m map[string]any) (Part, error) {
	typ, _ := m["type"].(string)
	p := Part{Type: typ}

	consumed := map[string]bool{"type": true}
	switch ContentKind(typ) {
	case ContentKindText:
		p.Text, _ = m["text"].(string)
		consumed["text"] = true
	case ContentKindFunctionCall:
		p.Name, _ = m["name"].(string)
		params, err := ParametersFromAny(m["parameters"])
		if err != nil {
			return Part{}, err
		}
		p.Parameters = params
		consumed["name"] = true
		consumed["parameters"] = true
	case ContentKindFunctionResponse:
		p.Name, _ = m["name"].(string)
		p.Response = m["response"]
		consumed["name"] = true
		consumed["response"] = true
	case ContentKindError:
		p.Message, _ = m["message"].(string)
		consumed["message"] = true
	}

	for k, v := range m {
		if consumed[k] {
			continue
		}
		if p.Extra == nil {
			p.Extra = make(map[string]any)
		}
		p.Extra[k] = v
	}
	return p, nil
}

// ============================================================================
// ARTIFACT - Structured payload attached to a task
// ============================================================================

// Artifact is a produced result attached to a task, composed of parts.
// Artifacts are append-only within a task execution.
type Artifact struct {
	Type  string
	Role  string
	Name  string
	Parts []Part
	Extra map[string]any
}

// TextArtifact builds a single-part text artifact.
func TextArtifact(text string) Artifact {
	return Artifact{Parts: []Part{TextPart(text)}}
}

// ToMap encodes the artifact, inlining Extra keys.
func (a Artifact) ToMap() map[string]any {
	m := make(map[string]any, len(a.Extra)+4)
	for k, v := range a.Extra {
		m[k] = v
	}
	if a.Type != "" {
		m["type"] = a.Type
	}
	if a.Role != "" {
		m["role"] = a.Role
	}
	if a.Name != "" {
		m["name"] = a.Name
	}
	parts := make([]any, 0, len(a.Parts))
	for _, p := range a.Parts {
		parts = append(parts, p.ToMap())
	}
	m["parts"] = parts
	return m
}

// ArtifactFromMap decodes an artifact map.
func ArtifactFromMap(m map[string]any) (Artifact, error) {
	a := Artifact{}
	a.Type, _ = m["type"].(string)
	a.Role, _ = m["role"].(string)
	a.Name, _ = m["name"].(string)

	raw, _ := m["parts"].([]any)
	for _, item := range raw {
		partMap, ok := item.(map[string]any)
		if !ok {
			return Artifact{}, fmt.Errorf("artifact part must be an object")
		}
		p, err := PartFromMap(partMap)
		if err != nil {
			return Artifact{}, err
		}
		a.Parts = append(a.Parts, p)
	}

	consumed := map[string]bool{"type": true, "role": true, "name": true, "parts": true}
	for k, v := range m {
		if consumed[k] {
			continue
		}
		if a.Extra == nil {
			a.Extra = make(map[string]any)
		}
		a.Extra[k] = v
	}
	return a, nil
}

// FirstText returns the text of the first text-typed part, or empty.
func (a Artifact) FirstText() string {
	for _, p := range a.Parts {
		if ContentKind(p.Type) == ContentKindText {
			return p.Text
		}
	}
	return ""
}
