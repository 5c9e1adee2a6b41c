package a2a

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageRoundTrip_Native(t *testing.T) {
	tests := []struct {
		name    string
		content Content
	}{
		{"text", TextContent("hello")},
		{"error", ErrorContent("boom")},
		{"function_call", FunctionCallContent("lookup", []Parameter{
			{Name: "city", Value: "Berlin"},
			{Name: "units", Value: "metric"},
		})},
		{"function_response", FunctionResponseContent("lookup", map[string]any{"temp": "12C"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := NewMessage(RoleUser, tt.content)
			msg.ConversationID = "conv-1"

			decoded, err := MessageFromDict(msg.ToDict())
			require.NoError(t, err)

			assert.Equal(t, msg.MessageID, decoded.MessageID)
			assert.Equal(t, msg.ConversationID, decoded.ConversationID)
			assert.Equal(t, msg.Role, decoded.Role)
			assert.Equal(t, msg.Content.Kind, decoded.Content.Kind)
			assert.Equal(t, msg.Content.Text, decoded.Content.Text)
			assert.Equal(t, msg.Content.Name, decoded.Content.Name)
			assert.Equal(t, msg.Content.Message, decoded.Content.Message)
		})
	}
}

func TestMessageRoundTrip_GoogleA2A(t *testing.T) {
	msg := NewMessage(RoleUser, TextContent("hi there"))
	msg.ConversationID = "conv-7"

	decoded, err := MessageFromGoogleA2A(msg.ToGoogleA2A())
	require.NoError(t, err)

	assert.Equal(t, msg.Role, decoded.Role)
	assert.Equal(t, "hi there", decoded.Text())
	assert.Equal(t, msg.MessageID, decoded.MessageID)
	assert.Equal(t, msg.ConversationID, decoded.ConversationID)
}

func TestMessageCrossDialectRoundTrip(t *testing.T) {
	// from_B(to_B(from_A(to_A(m)))) preserves observable fields.
	msg := NewMessage(RoleAgent, TextContent("cross"))
	msg.ParentMessageID = "parent-1"
	msg.ConversationID = "conv-2"

	viaNative, err := MessageFromDict(msg.ToDict())
	require.NoError(t, err)
	viaGoogle, err := MessageFromGoogleA2A(viaNative.ToGoogleA2A())
	require.NoError(t, err)

	assert.Equal(t, msg.MessageID, viaGoogle.MessageID)
	assert.Equal(t, msg.ParentMessageID, viaGoogle.ParentMessageID)
	assert.Equal(t, msg.ConversationID, viaGoogle.ConversationID)
	assert.Equal(t, msg.Role, viaGoogle.Role)
	assert.Equal(t, "cross", viaGoogle.Text())
}

func TestCompatModeTogglesDialect(t *testing.T) {
	defer UseGoogleA2A(false)

	msg := NewMessage(RoleUser, TextContent("mode test"))

	native := msg.ToDict()
	_, hasContent := native["content"]
	assert.True(t, hasContent)

	UseGoogleA2A(true)
	google := msg.ToDict()
	_, hasParts := google["parts"]
	assert.True(t, hasParts)

	// Enabling then disabling is a no-op on subsequent outputs.
	UseGoogleA2A(false)
	again := msg.ToDict()
	assert.Equal(t, native, again)
}

func TestMessageJSONAutoDetectsDialect(t *testing.T) {
	googleWire := []byte(`{
		"parts": [{"type": "text", "text": "from google"}],
		"role": "user",
		"messageId": "m-1",
		"conversationId": "c-1"
	}`)

	var msg Message
	require.NoError(t, json.Unmarshal(googleWire, &msg))
	assert.Equal(t, "from google", msg.Text())
	assert.Equal(t, "m-1", msg.MessageID)
	assert.Equal(t, "c-1", msg.ConversationID)
}

func TestMessageFromDict_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]any
		want error
	}{
		{
			"unknown content kind",
			map[string]any{
				"content": map[string]any{"type": "video"},
				"role":    "user",
			},
			ErrUnknownContentKind,
		},
		{
			"bad role",
			map[string]any{
				"content": map[string]any{"type": "text", "text": "x"},
				"role":    "robot",
			},
			ErrBadEnum,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MessageFromDict(tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestContentPreservesUnknownKeys(t *testing.T) {
	in := map[string]any{
		"type":         "text",
		"text":         "hi",
		"x-annotation": "keep me",
	}
	c, err := ContentFromMap(in)
	require.NoError(t, err)

	out := c.ToMap()
	assert.Equal(t, "keep me", out["x-annotation"])
	assert.Equal(t, "hi", out["text"])
}

func TestReplyThreading(t *testing.T) {
	req := UserText("question")
	req.ConversationID = "conv-9"

	reply := req.Reply(TextContent("answer"))

	assert.Equal(t, req.MessageID, reply.ParentMessageID)
	assert.Equal(t, req.ConversationID, reply.ConversationID)
	assert.Equal(t, RoleAgent, reply.Role)
	assert.NotEqual(t, req.MessageID, reply.MessageID)
}

func TestParameterConverters(t *testing.T) {
	params := []Parameter{
		{Name: "a", Value: float64(1)},
		{Name: "b", Value: "two"},
	}

	obj := ParametersToObject(params)
	assert.Equal(t, map[string]any{"a": float64(1), "b": "two"}, obj)

	back := ParametersFromObject(obj)
	assert.Equal(t, params, back)

	fromList, err := ParametersFromAny([]any{
		map[string]any{"name": "a", "value": float64(1)},
		map[string]any{"name": "b", "value": "two"},
	})
	require.NoError(t, err)
	assert.Equal(t, params, fromList)
}

func TestConversationAppendOnly(t *testing.T) {
	conv := NewConversation()

	first := conv.AddUserText("hello")
	second := conv.AddAgentText("hi back")

	require.Len(t, conv.Messages, 2)
	assert.Equal(t, conv.ID, first.ConversationID)
	assert.Equal(t, conv.ID, second.ConversationID)
	assert.Equal(t, first.MessageID, second.ParentMessageID)
}
