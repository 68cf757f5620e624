// ABOUTME: In-memory conversation store with most-recent-first ordering
// ABOUTME: Single source of truth for transcripts and per-conversation turn state

package store

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore holds all conversations for the life of the process. The
// orchestrator is the only writer; reads return copies so callers can never
// mutate stored state.
type MemoryStore struct {
	mu    sync.RWMutex
	order []string // conversation IDs, most recent creation first
	convs map[string]*Conversation
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		convs: make(map[string]*Conversation),
	}
}

// Create inserts a new conversation at the front of the collection. An empty
// title gets the default sentinel.
func (s *MemoryStore) Create(ctx context.Context, id, title string) (*Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.convs[id]; ok {
		return nil, ErrDuplicateConversation
	}

	conv := &Conversation{
		ID:           id,
		Title:        title,
		Messages:     []Message{},
		LastActivity: time.Now(),
		State:        StateIdle,
	}
	s.convs[id] = conv
	s.order = append([]string{id}, s.order...)

	return conv.clone(), nil
}

// Append adds a message to a conversation and touches its last activity.
func (s *MemoryStore) Append(ctx context.Context, id string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[id]
	if !ok {
		return ErrNotFound
	}

	conv.Messages = append(conv.Messages, msg)
	if msg.Timestamp.IsZero() {
		conv.LastActivity = time.Now()
	} else {
		conv.LastActivity = msg.Timestamp
	}
	return nil
}

// Rename sets a conversation title. Empty or whitespace-only titles are
// silently ignored.
func (s *MemoryStore) Rename(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[id]
	if !ok {
		return ErrNotFound
	}
	conv.Title = title
	return nil
}

// Find returns a copy of the conversation with the given ID.
func (s *MemoryStore) Find(ctx context.Context, id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.convs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return conv.clone(), nil
}

// List returns copies of all conversations, most recently created first.
func (s *MemoryStore) List(ctx context.Context) []*Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Conversation, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.convs[id].clone())
	}
	return out
}

// Search returns conversations whose title or any message text contains term,
// case-insensitively. Collection order is preserved. An empty term matches
// everything.
func (s *MemoryStore) Search(ctx context.Context, term string) []*Conversation {
	term = strings.ToLower(term)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Conversation, 0)
	for _, id := range s.order {
		conv := s.convs[id]
		if matchesTerm(conv, term) {
			out = append(out, conv.clone())
		}
	}
	return out
}

func matchesTerm(conv *Conversation, term string) bool {
	if term == "" {
		return true
	}
	if strings.Contains(strings.ToLower(conv.Title), term) {
		return true
	}
	for _, msg := range conv.Messages {
		if strings.Contains(strings.ToLower(msg.Text), term) {
			return true
		}
	}
	return false
}

// BeginTurn moves a conversation from Idle to Sending. It fails with
// ErrTurnInFlight when a turn is already running, which is the per-conversation
// single-flight guard.
func (s *MemoryStore) BeginTurn(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[id]
	if !ok {
		return ErrNotFound
	}
	if conv.State == StateSending {
		return ErrTurnInFlight
	}
	conv.State = StateSending
	return nil
}

// EndTurn returns a conversation to Idle. Safe to call regardless of the
// current state.
func (s *MemoryStore) EndTurn(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[id]
	if !ok {
		return ErrNotFound
	}
	conv.State = StateIdle
	return nil
}
