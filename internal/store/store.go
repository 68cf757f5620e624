// ABOUTME: Data types and error sentinels for conversation storage
// ABOUTME: Defines Conversation, Message and the per-conversation turn state

package store

import (
	"errors"
	"time"
)

// Storage errors
var (
	// ErrNotFound is returned when a requested conversation does not exist.
	ErrNotFound = errors.New("conversation not found")

	// ErrDuplicateConversation is returned when creating a conversation whose
	// ID is already taken.
	ErrDuplicateConversation = errors.New("conversation already exists")

	// ErrTurnInFlight is returned by BeginTurn while a previous turn for the
	// same conversation has not finished.
	ErrTurnInFlight = errors.New("turn already in flight")
)

// DefaultTitle is the sentinel title for conversations that have not yet
// earned an auto-derived or user-chosen one. A conversation still carrying it
// is eligible for re-titling on its next first message.
const DefaultTitle = "New conversation"

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser  Sender = "user"
	SenderAgent Sender = "agent"
)

// State is the per-conversation turn state. It lives in the store, not in any
// presentation layer, so the single-flight guarantee holds for every caller.
type State string

const (
	// StateIdle means no call is in flight; input is accepted.
	StateIdle State = "idle"

	// StateSending means a turn is in flight; further submissions for this
	// conversation are rejected until the turn completes.
	StateSending State = "sending"
)

// Message is a single entry in a conversation transcript. Once appended it is
// never mutated.
type Message struct {
	ID     string
	Sender Sender
	Text   string

	// ContextTag is an optional label (selected role, selected emotion)
	// attached to user messages. It steers the outgoing prompt but is not
	// part of the displayed text.
	ContextTag string

	Timestamp time.Time
}

// Conversation is a titled, ordered thread of messages. Messages are
// append-only and keep insertion order.
type Conversation struct {
	ID           string
	Title        string
	Messages     []Message
	LastActivity time.Time
	State        State
}

// clone returns a deep copy safe to hand outside the store.
func (c *Conversation) clone() *Conversation {
	out := *c
	out.Messages = make([]Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	return &out
}
