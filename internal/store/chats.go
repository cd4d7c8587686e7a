package store

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/voyago/voyago/internal/log"
)

// ChatQuerier defines the database operations the chat store needs.
// Interfaces are defined by the consumer, not the provider; pg.go holds
// the pgx-backed implementation and tests use fakes.
type ChatQuerier interface {
	// UpsertChat inserts the chat or replaces its messages and trip state.
	// The replace must apply atomically and only when the stored owner
	// matches chat.UserID; a mismatch is ErrForbidden.
	UpsertChat(ctx context.Context, chat Chat) error
	GetChat(ctx context.Context, id uuid.UUID) (Chat, error)
	ListChats(ctx context.Context, userID uuid.UUID) ([]Chat, error)
	DeleteChat(ctx context.Context, id uuid.UUID) error
}

// Chats manages conversation persistence. Saves are idempotent: saving the
// same chat id twice replaces the message list and trip state wholesale, so
// a retried turn never duplicates history.
type Chats struct {
	q      ChatQuerier
	logger log.Logger
}

// NewChats creates a chat store.
func NewChats(q ChatQuerier, logger log.Logger) *Chats {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Chats{q: q, logger: logger.With("component", "store.chats")}
}

// Save upserts the chat by id: insert when new, full replace of messages and
// trip state when it exists. The owner of an existing chat never changes;
// the querier enforces that atomically, so a stolen id surfaces as
// ErrForbidden even when two first-saves race.
func (c *Chats) Save(ctx context.Context, chat Chat) error {
	if chat.ID == uuid.Nil || chat.UserID == uuid.Nil {
		return fmt.Errorf("save chat: missing id or user id")
	}
	if !chat.TripState.Valid() {
		return fmt.Errorf("save chat %s: unknown trip state %q", chat.ID, chat.TripState)
	}

	if chat.Messages == nil {
		chat.Messages = []*ai.Message{}
	}
	if err := c.q.UpsertChat(ctx, chat); err != nil {
		return fmt.Errorf("save chat %s: %w", chat.ID, err)
	}

	c.logger.Debug("saved chat", "id", chat.ID, "messages", len(chat.Messages), "trip_state", chat.TripState)
	return nil
}

// Get returns the chat if it belongs to userID.
func (c *Chats) Get(ctx context.Context, id, userID uuid.UUID) (Chat, error) {
	chat, err := c.q.GetChat(ctx, id)
	if err != nil {
		return Chat{}, fmt.Errorf("get chat %s: %w", id, err)
	}
	if chat.UserID != userID {
		return Chat{}, fmt.Errorf("get chat %s: %w", id, ErrForbidden)
	}
	return chat, nil
}

// List returns the user's chats, most recently updated first.
func (c *Chats) List(ctx context.Context, userID uuid.UUID) ([]Chat, error) {
	chats, err := c.q.ListChats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return chats, nil
}

// Delete removes the chat if it belongs to userID.
func (c *Chats) Delete(ctx context.Context, id, userID uuid.UUID) error {
	chat, err := c.q.GetChat(ctx, id)
	if err != nil {
		return fmt.Errorf("delete chat %s: %w", id, err)
	}
	if chat.UserID != userID {
		return fmt.Errorf("delete chat %s: %w", id, ErrForbidden)
	}
	if err := c.q.DeleteChat(ctx, id); err != nil {
		return fmt.Errorf("delete chat %s: %w", id, err)
	}
	c.logger.Debug("deleted chat", "id", id)
	return nil
}
