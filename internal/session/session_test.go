// ABOUTME: Tests for session token construction
// ABOUTME: Verifies padding, determinism, and cross-conversation uniqueness

package session

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToken_PaddedToMinimumLength(t *testing.T) {
	b := NewBuilder(40)
	now := time.UnixMilli(1700000000000)

	token := b.Token("chat", "c1", now)
	assert.Len(t, token, 40)
	assert.True(t, strings.HasPrefix(token, "chat-c1-1700000000000"))
	assert.True(t, strings.HasSuffix(token, "0"))
}

func TestToken_LongTokenNotPadded(t *testing.T) {
	b := NewBuilder(10)
	now := time.UnixMilli(1700000000000)

	token := b.Token("session", "a-very-long-conversation-identifier", now)
	assert.Equal(t, "session-a-very-long-conversation-identifier-1700000000000", token)
}

func TestToken_Deterministic(t *testing.T) {
	b := NewBuilder(0)
	now := time.UnixMilli(1700000000000)

	assert.Equal(t, b.Token("session", "c1", now), b.Token("session", "c1", now))
}

func TestToken_UniquePerConversation(t *testing.T) {
	b := NewBuilder(0)

	// Same millisecond, different conversations.
	now := time.UnixMilli(1700000000000)
	assert.NotEqual(t, b.Token("session", "c1", now), b.Token("session", "c2", now))
}

func TestToken_UniquePerCall(t *testing.T) {
	b := NewBuilder(0)

	first := b.Token("session", "c1", time.UnixMilli(1))
	second := b.Token("session", "c1", time.UnixMilli(2))
	assert.NotEqual(t, first, second)
}

func TestToken_DefaultsTopicAndMinimum(t *testing.T) {
	b := NewBuilder(0)

	token := b.Token("", "c", time.UnixMilli(5))
	assert.True(t, strings.HasPrefix(token, "session-c-5"))
	assert.GreaterOrEqual(t, len(token), DefaultMinLength)
}
