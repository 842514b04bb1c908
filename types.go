package chathistory

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	// RoleUser marks a message authored by the person chatting.
	RoleUser Role = "user"

	// RoleAssistant marks a message authored by the assistant.
	RoleAssistant Role = "assistant"
)

const (
	// DefaultTitle is the placeholder title of a freshly created thread.
	// It is replaced by the first user message (see Store.AppendMessage).
	DefaultTitle = "New chat"

	// DefaultGreeting is the assistant message every new thread is seeded with.
	DefaultGreeting = "Hi! I'm your AI assistant. Ask me anything to get started."
)

// Message represents one turn in a thread.
type Message struct {
	// ID uniquely identifies the message within its thread.
	ID string `json:"id"`

	// Role is "user" or "assistant".
	Role Role `json:"role"`

	// Content is the text body. It may be empty while a response is
	// still streaming in.
	Content string `json:"content"`

	// Images holds data-URI encoded attachments, in the order they were
	// attached. Absent when the message carries none.
	Images []string `json:"images,omitempty"`
}

// Thread represents one persisted conversation.
type Thread struct {
	// ID uniquely identifies the thread within the store.
	ID string `json:"id"`

	// Title is the short user-facing label. Auto-derived from the first
	// user message until explicitly renamed.
	Title string `json:"title"`

	// Messages are the turns of the conversation, in conversation order.
	// Never empty after creation: every thread is seeded with one
	// assistant greeting.
	Messages []Message `json:"messages"`

	// CreatedAt is when the thread was created, in milliseconds since epoch.
	CreatedAt int64 `json:"createdAt"`

	// UpdatedAt is refreshed on every mutation to the thread,
	// in milliseconds since epoch.
	UpdatedAt int64 `json:"updatedAt"`
}

// NewThreadID generates a new thread ID.
func NewThreadID() string {
	return uuid.New().String()
}

// NewMessageID generates a new message ID.
func NewMessageID() string {
	return uuid.New().String()
}

// NewThread creates a thread seeded with the assistant greeting.
func NewThread() Thread {
	now := nowMillis()
	return Thread{
		ID:    NewThreadID(),
		Title: DefaultTitle,
		Messages: []Message{
			{
				ID:      NewMessageID(),
				Role:    RoleAssistant,
				Content: DefaultGreeting,
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// nowMillis returns the current wall clock in milliseconds since epoch.
func nowMillis() int64 {
	return time.Now().UnixMilli()
}
