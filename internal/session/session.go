package session

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies who authored a message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole converts a stored role string back into a Role
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleSystem, RoleUser, RoleAssistant:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role: %q", s)
	}
}

// Message represents a single chat message
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is the ordered message log of a session.
// It only grows, except through Reset.
type Conversation struct {
	messages []Message
}

// NewConversation returns a conversation seeded with the system directive
func NewConversation(directive string) *Conversation {
	c := &Conversation{}
	c.Reset(directive)
	return c
}

// Restore rebuilds a conversation from persisted messages
func Restore(messages []Message) *Conversation {
	c := &Conversation{messages: make([]Message, len(messages))}
	copy(c.messages, messages)
	return c
}

// Append adds a message to the end of the conversation
func (c *Conversation) Append(role Role, content string) Message {
	msg := Message{Role: role, Content: content, Timestamp: time.Now()}
	c.messages = append(c.messages, msg)
	return msg
}

// Reset replaces the whole conversation with a single system directive.
func (c *Conversation) Reset(directive string) {
	c.messages = []Message{{Role: RoleSystem, Content: directive, Timestamp: time.Now()}}
}

// Messages returns a copy of the message log
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages
func (c *Conversation) Len() int {
	return len(c.messages)
}

// WithoutSystem returns a copy of the log with every system message removed
func (c *Conversation) WithoutSystem() []Message {
	return WithoutSystem(c.messages)
}

// WithoutSystem filters system-role messages out of msgs
func WithoutSystem(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Role == RoleSystem {
			continue
		}
		out = append(out, msg)
	}
	return out
}

// Transcript renders messages as "role: content" lines
func Transcript(msgs []Message) string {
	var sb strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(string(msg.Role))
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
	}
	return sb.String()
}

// Session represents a chat session
type Session struct {
	ID            string        `json:"id"`
	StartTime     time.Time     `json:"start_time"`
	Backend       string        `json:"backend"`
	SearchEnabled bool          `json:"search_enabled"`
	Conversation  *Conversation `json:"-"`
}
