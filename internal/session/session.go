// ABOUTME: Runtime session token construction for agent calls
// ABOUTME: Derives per-call tokens from conversation ID and call time

package session

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultMinLength is the transport's minimum session identifier size.
	DefaultMinLength = 33

	// defaultTopic prefixes tokens when no endpoint topic is given.
	defaultTopic = "session"

	// filler pads short tokens on the right up to the minimum length.
	filler = "0"
)

// Builder produces session tokens for the agent transport. Tokens are
// deterministic given their inputs and the call timestamp, unique per call
// (the timestamp) and per conversation (the conversation ID), and padded to
// the transport's minimum identifier length.
type Builder struct {
	minLength int
}

// NewBuilder creates a Builder. A non-positive minLength falls back to
// DefaultMinLength.
func NewBuilder(minLength int) *Builder {
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	return &Builder{minLength: minLength}
}

// Token builds the session identifier for one call. topic names the logical
// endpoint ("session" when empty); conversationID keeps tokens from colliding
// across conversations created in the same millisecond.
func (b *Builder) Token(topic, conversationID string, now time.Time) string {
	if topic == "" {
		topic = defaultTopic
	}
	token := fmt.Sprintf("%s-%s-%d", topic, conversationID, now.UnixMilli())
	if pad := b.minLength - len(token); pad > 0 {
		token += strings.Repeat(filler, pad)
	}
	return token
}
