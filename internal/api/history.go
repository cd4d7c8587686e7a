package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/voyago/voyago/internal/auth"
	"github.com/voyago/voyago/internal/log"
	"github.com/voyago/voyago/internal/store"
)

// History serves the persisted conversation list for the signed-in user.
type History struct {
	chats  *store.Chats
	logger log.Logger
}

// NewHistory creates a history handler.
func NewHistory(chats *store.Chats, logger log.Logger) *History {
	return &History{chats: chats, logger: logger}
}

// ChatSummary is one row of the history listing. Messages are omitted; the
// client fetches a single chat to hydrate them.
type ChatSummary struct {
	ID        string          `json:"id"`
	TripState store.TripState `json:"tripState"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// ChatDetail is a full chat including its transcript.
type ChatDetail struct {
	ChatSummary
	Messages any `json:"messages"`
}

// List handles GET /api/v1/history.
func (h *History) List(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.FromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "no identity", h.logger)
		return
	}

	chats, err := h.chats.List(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("failed to list chats", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list chats", h.logger)
		return
	}

	summaries := make([]ChatSummary, 0, len(chats))
	for _, c := range chats {
		summaries = append(summaries, summarizeChat(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"chats": summaries}, h.logger)
}

// Get handles GET /api/v1/chat/{id}.
func (h *History) Get(w http.ResponseWriter, r *http.Request) {
	identity, chatID, ok := h.scope(w, r)
	if !ok {
		return
	}

	chat, err := h.chats.Get(r.Context(), chatID, identity.UserID)
	if err != nil {
		h.writeStoreError(w, err, "failed to load chat")
		return
	}

	writeJSON(w, http.StatusOK, ChatDetail{
		ChatSummary: summarizeChat(chat),
		Messages:    chat.Messages,
	}, h.logger)
}

// Delete handles DELETE /api/v1/chat/{id}.
func (h *History) Delete(w http.ResponseWriter, r *http.Request) {
	identity, chatID, ok := h.scope(w, r)
	if !ok {
		return
	}

	if err := h.chats.Delete(r.Context(), chatID, identity.UserID); err != nil {
		h.writeStoreError(w, err, "failed to delete chat")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// scope resolves the identity and the {id} path value.
func (h *History) scope(w http.ResponseWriter, r *http.Request) (auth.Identity, uuid.UUID, bool) {
	identity, err := auth.FromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "no identity", h.logger)
		return auth.Identity{}, uuid.Nil, false
	}

	chatID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_chat_id", "id must be a UUID", h.logger)
		return auth.Identity{}, uuid.Nil, false
	}
	return identity, chatID, true
}

func (h *History) writeStoreError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "chat not found", h.logger)
	case errors.Is(err, store.ErrForbidden):
		// Cross-account probes read the same as missing rows.
		writeError(w, http.StatusNotFound, "not_found", "chat not found", h.logger)
	default:
		h.logger.Error(msg, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", msg, h.logger)
	}
}

func summarizeChat(c store.Chat) ChatSummary {
	return ChatSummary{
		ID:        c.ID.String(),
		TripState: c.TripState,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
