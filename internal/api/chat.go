package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/voyago/voyago/internal/chat"
	"github.com/voyago/voyago/internal/log"
	"github.com/voyago/voyago/internal/store"
)

// Chat handles the conversational endpoint.
//
// POST /api/v1/chat streams the assistant turn as Server-Sent Events:
// text chunks as the model produces them, one event per executed tool call,
// then a final done event carrying the full response and trip state.
type Chat struct {
	orchestrator *chat.Orchestrator
	logger       log.Logger
}

// NewChat creates a chat handler around the turn orchestrator.
func NewChat(orchestrator *chat.Orchestrator, logger log.Logger) *Chat {
	return &Chat{orchestrator: orchestrator, logger: logger}
}

// SSE event types for chat streaming.
const (
	EventChunk = "chunk" // Partial response text
	EventTool  = "tool"  // One executed tool call
	EventDone  = "done"  // Stream completed successfully
	EventError = "error" // Error occurred during streaming
)

// ChatRequest is the streaming chat request body.
type ChatRequest struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// ChunkPayload is the SSE data payload for streaming text chunks.
type ChunkPayload struct {
	Text string `json:"text"`
}

// ToolPayload is the SSE data payload for one executed tool call.
type ToolPayload struct {
	Name   string `json:"name"`
	Output any    `json:"output"`
}

// DonePayload is the SSE data payload when streaming completes successfully.
type DonePayload struct {
	Response  string          `json:"response"`
	ChatID    string          `json:"chatId"`
	TripState store.TripState `json:"tripState"`
	Rounds    int             `json:"rounds"`
}

// ErrorPayload is the SSE data payload when an error occurs.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Stream handles the SSE chat turn. The identity was resolved by the auth
// middleware; an unknown chat id starts a new conversation under it.
func (h *Chat) Stream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	var req ChatRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1024*1024) // Limit request size to 1MB
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = writeEvent(w, flusher, EventError, ErrorPayload{
			Code:    "INVALID_REQUEST",
			Message: "invalid request body",
		})
		return
	}

	if req.Message == "" {
		_ = writeEvent(w, flusher, EventError, ErrorPayload{Code: "MISSING_MESSAGE", Message: "message is required"})
		return
	}

	chatID := uuid.New()
	if req.ID != "" {
		parsed, err := uuid.Parse(req.ID)
		if err != nil {
			_ = writeEvent(w, flusher, EventError, ErrorPayload{Code: "INVALID_CHAT_ID", Message: "id must be a UUID"})
			return
		}
		chatID = parsed
	}

	ctx := r.Context()
	h.logger.Debug("SSE stream started", "chat_id", chatID)

	result, err := h.orchestrator.Turn(ctx, chatID, req.Message, func(text string) error {
		if text == "" {
			return nil
		}
		return writeEvent(w, flusher, EventChunk, ChunkPayload{Text: text})
	})
	if err != nil {
		if ctx.Err() != nil {
			h.logger.Info("client disconnected", "chat_id", chatID)
			return
		}
		h.handleStreamError(w, flusher, err)
		return
	}

	for _, ev := range result.ToolEvents {
		if err := writeEvent(w, flusher, EventTool, ToolPayload{Name: ev.Name, Output: ev.Output}); err != nil {
			h.logger.Error("failed to write tool event", "err", err)
			return
		}
	}

	_ = writeEvent(w, flusher, EventDone, DonePayload{
		Response:  result.Text,
		ChatID:    chatID.String(),
		TripState: result.TripState,
		Rounds:    result.Rounds,
	})

	h.logger.Info("SSE stream completed",
		"chat_id", chatID, "rounds", result.Rounds, "tool_calls", len(result.ToolEvents))
}

// handleStreamError maps turn errors to SSE error events.
func (h *Chat) handleStreamError(w io.Writer, f http.Flusher, err error) {
	code := "STREAM_ERROR"

	switch {
	case errors.Is(err, chat.ErrCircuitOpen):
		code = "MODEL_UNAVAILABLE"
	case errors.Is(err, store.ErrForbidden):
		code = "FORBIDDEN"
	}

	_ = writeEvent(w, f, EventError, ErrorPayload{
		Code:    code,
		Message: err.Error(),
	})
}

// writeEvent writes a single SSE event with JSON-encoded data.
// SSE format: "event: <type>\ndata: <json>\n\n"
func writeEvent[T any](w io.Writer, flusher http.Flusher, event string, data T) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	flusher.Flush()
	return nil
}
