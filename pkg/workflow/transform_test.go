package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentwire/agentwire/pkg/a2a"
)

func TestTransformPassthrough(t *testing.T) {
	got, err := ApplyTransform("passthrough", nil, "unchanged")
	require.NoError(t, err)
	assert.Equal(t, "unchanged", got)

	got, err = ApplyTransform("", nil, 42)
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestTransformExtract(t *testing.T) {
	input := map[string]any{
		"user": map[string]any{
			"emails": []any{"a@example.com", "b@example.com"},
		},
	}

	got, err := ApplyTransform("extract",
		map[string]any{"field_path": "user.emails.1"}, input)
	require.NoError(t, err)
	assert.Equal(t, "b@example.com", got)

	_, err = ApplyTransform("extract",
		map[string]any{"field_path": "user.phone"}, input)
	assert.Error(t, err)

	_, err = ApplyTransform("extract",
		map[string]any{"field_path": "user.emails.9"}, input)
	assert.Error(t, err)

	_, err = ApplyTransform("extract", nil, input)
	assert.Error(t, err)
}

func TestTransformTemplate(t *testing.T) {
	got, err := ApplyTransform("template",
		map[string]any{"template": "Dear ${input}, welcome."}, "Ada")
	require.NoError(t, err)
	assert.Equal(t, "Dear Ada, welcome.", got)
}

func TestTransformJSON(t *testing.T) {
	// String input parses.
	got, err := ApplyTransform("json", nil, `{"a": 1}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, got)

	// Structured input canonicalizes to text.
	got, err = ApplyTransform("json", nil, map[string]any{"a": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 1}`, got.(string))

	_, err = ApplyTransform("json", nil, "not json")
	assert.Error(t, err)
}

func TestTransformUnknownType(t *testing.T) {
	_, err := ApplyTransform("reverse", nil, "x")
	assert.ErrorIs(t, err, a2a.ErrBadEnum)
}

func TestTextOf(t *testing.T) {
	assert.Equal(t, "", textOf(nil))
	assert.Equal(t, "plain", textOf("plain"))
	assert.Equal(t, "true", textOf(true))
	assert.Equal(t, "nested", textOf(map[string]any{"content": "nested"}))
	assert.Equal(t, "deep", textOf(map[string]any{"content": map[string]any{"content": "deep"}}))
	assert.Equal(t, "alt", textOf(map[string]any{"text": "alt"}))
	assert.JSONEq(t, `{"k":"v"}`, textOf(map[string]any{"k": "v"}))
}
