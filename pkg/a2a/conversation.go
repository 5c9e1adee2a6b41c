package a2a

import "github.com/google/uuid"

// Conversation is an append-only ordered sequence of messages sharing a
// conversation id. Not safe for concurrent use; ownership is exclusive
// within a single handler.
type Conversation struct {
	ID       string    `json:"conversation_id"`
	Messages []Message `json:"messages"`
}

// NewConversation creates an empty conversation with a fresh id.
func NewConversation() *Conversation {
	return &Conversation{ID: uuid.NewString()}
}

// Append stamps the message with the conversation id and appends it.
// The stamped message is returned.
func (c *Conversation) Append(m Message) Message {
	m.ConversationID = c.ID
	c.Messages = append(c.Messages, m)
	return m
}

// AddUserText appends a user text message.
func (c *Conversation) AddUserText(text string) Message {
	return c.Append(NewMessage(RoleUser, TextContent(text)))
}

// AddAgentText appends an agent text message threaded to the last message.
func (c *Conversation) AddAgentText(text string) Message {
	if last := c.Last(); last != nil {
		return c.Append(last.Reply(TextContent(text)))
	}
	return c.Append(NewMessage(RoleAgent, TextContent(text)))
}

// AddError appends an agent error message threaded to the last message.
func (c *Conversation) AddError(message string) Message {
	if last := c.Last(); last != nil {
		return c.Append(last.Reply(ErrorContent(message)))
	}
	return c.Append(NewMessage(RoleAgent, ErrorContent(message)))
}

// Last returns the most recent message, or nil when empty.
func (c *Conversation) Last() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}

// ToDict encodes the conversation in the active dialect.
func (c *Conversation) ToDict() map[string]any {
	msgs := make([]any, 0, len(c.Messages))
	for _, m := range c.Messages {
		msgs = append(msgs, m.ToDict())
	}
	return map[string]any{
		"conversation_id": c.ID,
		"messages":        msgs,
	}
}

// ConversationFromDict decodes a conversation from either dialect.
func ConversationFromDict(m map[string]any) (*Conversation, error) {
	c := &Conversation{}
	c.ID, _ = m["conversation_id"].(string)
	raw, _ := m["messages"].([]any)
	for _, item := range raw {
		msgMap, ok := item.(map[string]any)
		if !ok {
			continue
		}
		msg, err := MessageFromDict(msgMap)
		if err != nil {
			return nil, err
		}
		c.Messages = append(c.Messages, msg)
	}
	return c, nil
}
