package a2a

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ============================================================================
// MESSAGE - Identity, threading and content
// ============================================================================

// Role identifies the sender of a message.
type Role string

const (
	RoleUser   Role = "user"
	RoleAgent  Role = "agent"
	RoleSystem Role = "system"
)

// ParseRole validates a role string.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAgent, RoleSystem:
		return Role(s), nil
	default:
		return "", fmt.Errorf("%w: role %q", ErrBadEnum, s)
	}
}

// Message is the unit of exchange between agents. Messages are immutable
// once dispatched; reply threading is expressed through ParentMessageID and
// a stable ConversationID across the chain.
type Message struct {
	MessageID       string
	ParentMessageID string
	ConversationID  string
	Role            Role
	Content         Content
	Metadata        map[string]any
}

// NewMessage creates a message with a fresh message id.
func NewMessage(role Role, content Content) Message {
	return Message{
		MessageID: uuid.NewString(),
		Role:      role,
		Content:   content,
	}
}

// UserText is a convenience constructor for a user text message.
func UserText(text string) Message {
	return NewMessage(RoleUser, TextContent(text))
}

// Reply builds an agent reply to m: fresh id, parent set to m's id, same
// conversation.
func (m Message) Reply(content Content) Message {
	return Message{
		MessageID:       uuid.NewString(),
		ParentMessageID: m.MessageID,
		ConversationID:  m.ConversationID,
		Role:            RoleAgent,
		Content:         content,
	}
}

// Text returns the text projection of the message content: the text of a
// text variant, the message of an error variant, empty otherwise.
func (m Message) Text() string {
	switch m.Content.Kind {
	case ContentKindText:
		return m.Content.Text
	case ContentKindError:
		return m.Content.Message
	default:
		return ""
	}
}

// ToDict encodes the message in the active process-wide dialect.
func (m Message) ToDict() map[string]any {
	if GoogleA2AEnabled() {
		return m.ToGoogleA2A()
	}
	return m.toNative()
}

func (m Message) toNative() map[string]any {
	out := map[string]any{
		"content":    m.Content.ToMap(),
		"role":       string(m.Role),
		"message_id": m.MessageID,
	}
	if m.ParentMessageID != "" {
		out["parent_message_id"] = m.ParentMessageID
	}
	if m.ConversationID != "" {
		out["conversation_id"] = m.ConversationID
	}
	if m.Metadata != nil {
		out["metadata"] = m.Metadata
	}
	return out
}

// ToGoogleA2A encodes the message in the Google A2A dialect: the content is
// flattened into a "parts" array and identifiers use camelCase keys.
func (m Message) ToGoogleA2A() map[string]any {
	out := map[string]any{
		"parts":     []any{m.Content.ToPart().ToMap()},
		"role":      string(m.Role),
		"messageId": m.MessageID,
	}
	if m.ParentMessageID != "" {
		out["parentMessageId"] = m.ParentMessageID
	}
	if m.ConversationID != "" {
		out["conversationId"] = m.ConversationID
	}
	if m.Metadata != nil {
		out["metadata"] = m.Metadata
	}
	return out
}

// MessageFromDict decodes a message from either dialect, detected by the
// presence of a "parts" array versus a "content" object.
func MessageFromDict(m map[string]any) (Message, error) {
	if _, ok := m["parts"]; ok {
		return MessageFromGoogleA2A(m)
	}

	contentMap, ok := m["content"].(map[string]any)
	if !ok {
		return Message{}, fmt.Errorf("message is missing a content object")
	}
	content, err := ContentFromMap(contentMap)
	if err != nil {
		return Message{}, err
	}

	roleStr, _ := m["role"].(string)
	role, err := ParseRole(roleStr)
	if err != nil {
		return Message{}, err
	}

	msg := Message{
		Role:    role,
		Content: content,
	}
	msg.MessageID, _ = m["message_id"].(string)
	msg.ParentMessageID, _ = m["parent_message_id"].(string)
	msg.ConversationID, _ = m["conversation_id"].(string)
	if md, ok := m["metadata"].(map[string]any); ok {
		msg.Metadata = md
	}
	return msg, nil
}

// MessageFromGoogleA2A decodes a message from the Google A2A dialect. Only
// the first part is retained as the message content; additional parts are
// carried as artifacts at the task level, not inside messages.
func MessageFromGoogleA2A(m map[string]any) (Message, error) {
	parts, _ := m["parts"].([]any)
	if len(parts) == 0 {
		return Message{}, fmt.Errorf("message has no parts")
	}
	partMap, ok := parts[0].(map[string]any)
	if !ok {
		return Message{}, fmt.Errorf("message part must be an object")
	}
	part, err := PartFromMap(partMap)
	if err != nil {
		return Message{}, err
	}
	content, err := part.ToContent()
	if err != nil {
		return Message{}, err
	}

	roleStr, _ := m["role"].(string)
	role, err := ParseRole(roleStr)
	if err != nil {
		return Message{}, err
	}

	msg := Message{
		Role:    role,
		Content: content,
	}
	msg.MessageID, _ = m["messageId"].(string)
	msg.ParentMessageID, _ = m["parentMessageId"].(string)
	msg.ConversationID, _ = m["conversationId"].(string)
	if md, ok := m["metadata"].(map[string]any); ok {
		msg.Metadata = md
	}
	return msg, nil
}

// MarshalJSON emits the active dialect.
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.ToDict())
}

// UnmarshalJSON decodes either dialect.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := MessageFromDict(raw)
	if err != nil {
		return err
	}
	*m = decoded
	return nil
}
