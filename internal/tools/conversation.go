package tools

import (
	"context"
	"sync"

	"github.com/voyago/voyago/internal/store"
)

// Conversation carries the explicit trip state of one chat turn. The
// orchestrator seeds it from the persisted chat, executors advance it, and
// the final value is stored back with the messages. Safe for concurrent use
// because tool calls in one round run in parallel.
type Conversation struct {
	mu    sync.Mutex
	state store.TripState
}

// NewConversation creates a conversation tag. An unknown or empty state
// starts at searching.
func NewConversation(state store.TripState) *Conversation {
	if !state.Valid() {
		state = store.StateSearching
	}
	return &Conversation{state: state}
}

// State returns the current trip state.
func (c *Conversation) State() store.TripState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Set moves the conversation to a new state. Invalid targets are ignored.
func (c *Conversation) Set(state store.TripState) {
	if !state.Valid() {
		return
	}
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

type conversationKey struct{}

// WithConversation returns a context carrying the turn's conversation tag.
func WithConversation(ctx context.Context, c *Conversation) context.Context {
	return context.WithValue(ctx, conversationKey{}, c)
}

// ConversationFromContext extracts the conversation tag. Executors called
// outside a chat turn (tests, direct invocation) get a fresh searching tag
// so state checks still apply.
func ConversationFromContext(ctx context.Context) *Conversation {
	if c, ok := ctx.Value(conversationKey{}).(*Conversation); ok {
		return c
	}
	return NewConversation(store.StateSearching)
}
