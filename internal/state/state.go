package state

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrUnknownSender is returned when a transcript names a sender other than user or assistant.
	ErrUnknownSender = errors.New("unknown sender")
	// ErrEmptyTranscript is returned when a transcript holds no usable messages.
	ErrEmptyTranscript = errors.New("empty transcript")
)

// Sender identifies who produced a chat turn.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// ParseSender normalizes a sender name. "client" and "bot" are accepted as aliases
// because exported chat-widget transcripts use them.
func ParseSender(raw string) (Sender, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "user", "client":
		return SenderUser, nil
	case "assistant", "bot":
		return SenderAssistant, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSender, raw)
	}
}

// Message is a single conversational turn. Messages are treated as values: every
// transformation in this module builds new slices instead of editing them in place.
type Message struct {
	Text      string     `json:"text" yaml:"text"`
	Sender    Sender     `json:"sender" yaml:"sender"`
	Timestamp *time.Time `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
}

// HasTimestamp reports whether the message carries a point in time.
func (m Message) HasTimestamp() bool {
	return m.Timestamp != nil && !m.Timestamp.IsZero()
}

// Conversation is a named, ordered list of chat messages for one session.
type Conversation struct {
	key       string
	messages  []Message
	createdAt time.Time
	updatedAt time.Time
}

// NewConversation builds a conversation from an existing history.
func NewConversation(key string, messages []Message) *Conversation {
	now := time.Now()
	conv := &Conversation{key: key, createdAt: now, updatedAt: now}
	conv.messages = make([]Message, len(messages))
	copy(conv.messages, messages)
	return conv
}

// Key returns the identifier assigned to the conversation.
func (c *Conversation) Key() string {
	return c.key
}

// Messages exposes a copy of the underlying history.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages held.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// Append adds a new chat message to the history.
func (c *Conversation) Append(msg Message) {
	c.messages = append(c.messages, msg)
	c.touch()
}

// Clear removes all history.
func (c *Conversation) Clear() {
	c.messages = nil
	c.touch()
}

// CreatedAt returns when the conversation was created or loaded.
func (c *Conversation) CreatedAt() time.Time {
	return c.createdAt
}

// UpdatedAt returns when the conversation last changed.
func (c *Conversation) UpdatedAt() time.Time {
	return c.updatedAt
}

func (c *Conversation) touch() {
	now := time.Now()
	if c.createdAt.IsZero() {
		c.createdAt = now
	}
	c.updatedAt = now
}
