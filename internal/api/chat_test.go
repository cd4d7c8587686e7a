package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"

	"github.com/voyago/voyago/internal/chat"
	"github.com/voyago/voyago/internal/log"
	"github.com/voyago/voyago/internal/store"
	"github.com/voyago/voyago/internal/testutil"
	"github.com/voyago/voyago/internal/tools"
)

// sseExecutor is a canned tool executor for streaming tests.
type sseExecutor struct {
	outputs map[tools.Name]any
}

func (e *sseExecutor) Execute(_ context.Context, name tools.Name, _ json.RawMessage) any {
	if out, ok := e.outputs[name]; ok {
		return out
	}
	return tools.ErrorPayload{Error: "unknown tool: " + string(name)}
}

func (e *sseExecutor) Refs() []ai.ToolRef { return nil }

type sseEvent struct {
	event string
	data  string
}

// parseSSE splits a raw SSE stream into events.
func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	var cur sseEvent
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			cur.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if cur.event != "" {
				events = append(events, cur)
				cur = sseEvent{}
			}
		}
	}
	return events
}

func chatFixture(t *testing.T) (*Chat, *testutil.MockLLM, *store.Chats) {
	t.Helper()

	g := genkit.Init(context.Background())
	mock := testutil.NewMockLLM("fallback")
	model := mock.RegisterModel(g)
	chats := store.NewChats(newChatQ(), log.NewNop())

	orch, err := chat.New(chat.Config{
		Genkit:   g,
		Model:    model,
		Registry: &sseExecutor{outputs: map[tools.Name]any{"searchFlights": "flights!"}},
		Chats:    chats,
	})
	if err != nil {
		t.Fatalf("chat.New() error = %v", err)
	}
	return NewChat(orch, log.NewNop()), mock, chats
}

func streamRequest(userID uuid.UUID, body string) (*httptest.ResponseRecorder, *http.Request) {
	ctx := identityRequest(http.MethodPost, "/api/v1/chat", userID).Context()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	return httptest.NewRecorder(), r.WithContext(ctx)
}

func TestStreamChunksAndDone(t *testing.T) {
	t.Parallel()

	h, mock, _ := chatFixture(t)
	mock.Enqueue("Here are your options.")

	w, r := streamRequest(uuid.New(), `{"message":"find flights"}`)
	h.Stream(w, r)

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	events := parseSSE(t, w.Body.String())
	if len(events) < 2 {
		t.Fatalf("events = %d, body %q", len(events), w.Body.String())
	}
	if events[0].event != EventChunk {
		t.Errorf("first event = %q, want chunk", events[0].event)
	}

	last := events[len(events)-1]
	if last.event != EventDone {
		t.Fatalf("last event = %q, want done", last.event)
	}
	var done DonePayload
	if err := json.Unmarshal([]byte(last.data), &done); err != nil {
		t.Fatalf("decode done payload: %v", err)
	}
	if done.Response != "Here are your options." {
		t.Errorf("Response = %q", done.Response)
	}
	if done.TripState != store.StateSearching {
		t.Errorf("TripState = %s", done.TripState)
	}
	if _, err := uuid.Parse(done.ChatID); err != nil {
		t.Errorf("ChatID %q is not a UUID", done.ChatID)
	}
}

func TestStreamEmitsToolEvents(t *testing.T) {
	t.Parallel()

	h, mock, _ := chatFixture(t)
	mock.EnqueueToolCalls("", &ai.ToolRequest{
		Name:  "searchFlights",
		Ref:   "call_1",
		Input: map[string]any{"origin": "AMS"},
	})
	mock.Enqueue("Found one flight.")

	w, r := streamRequest(uuid.New(), `{"message":"fly me to New York"}`)
	h.Stream(w, r)

	events := parseSSE(t, w.Body.String())
	var toolEvents []sseEvent
	for _, ev := range events {
		if ev.event == EventTool {
			toolEvents = append(toolEvents, ev)
		}
	}
	if len(toolEvents) != 1 {
		t.Fatalf("tool events = %d, body %q", len(toolEvents), w.Body.String())
	}
	var tool ToolPayload
	if err := json.Unmarshal([]byte(toolEvents[0].data), &tool); err != nil {
		t.Fatalf("decode tool payload: %v", err)
	}
	if tool.Name != "searchFlights" || tool.Output != "flights!" {
		t.Errorf("tool payload = %+v", tool)
	}
}

func TestStreamResumesExistingChat(t *testing.T) {
	t.Parallel()

	h, mock, chats := chatFixture(t)
	userID := uuid.New()
	chatID := uuid.New()

	seed := store.Chat{
		ID:        chatID,
		UserID:    userID,
		Messages:  []*ai.Message{ai.NewUserTextMessage("earlier"), ai.NewModelTextMessage("noted")},
		TripState: store.StatePaid,
	}
	if err := chats.Save(context.Background(), seed); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	mock.Enqueue("Welcome back.")
	w, r := streamRequest(userID, `{"id":"`+chatID.String()+`","message":"boarding pass please"}`)
	h.Stream(w, r)

	events := parseSSE(t, w.Body.String())
	last := events[len(events)-1]
	var done DonePayload
	if err := json.Unmarshal([]byte(last.data), &done); err != nil {
		t.Fatalf("decode done payload: %v", err)
	}
	if done.ChatID != chatID.String() {
		t.Errorf("ChatID = %s, want %s", done.ChatID, chatID)
	}
	if done.TripState != store.StatePaid {
		t.Errorf("TripState = %s, want paid carried over", done.TripState)
	}

	saved, err := chats.Get(context.Background(), chatID, userID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(saved.Messages) != 4 {
		t.Errorf("saved messages = %d, want 4", len(saved.Messages))
	}
}

func TestStreamValidation(t *testing.T) {
	t.Parallel()

	h, _, _ := chatFixture(t)

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{name: "malformed body", body: `{"message":`, wantCode: "INVALID_REQUEST"},
		{name: "missing message", body: `{"id":"` + uuid.NewString() + `"}`, wantCode: "MISSING_MESSAGE"},
		{name: "bad chat id", body: `{"id":"nope","message":"hi"}`, wantCode: "INVALID_CHAT_ID"},
	}
	for _, tt := range tests {
		w, r := streamRequest(uuid.New(), tt.body)
		h.Stream(w, r)

		events := parseSSE(t, w.Body.String())
		if len(events) != 1 || events[0].event != EventError {
			t.Errorf("%s: events = %+v", tt.name, events)
			continue
		}
		var payload ErrorPayload
		if err := json.Unmarshal([]byte(events[0].data), &payload); err != nil {
			t.Fatalf("%s: decode error payload: %v", tt.name, err)
		}
		if payload.Code != tt.wantCode {
			t.Errorf("%s: code = %q, want %q", tt.name, payload.Code, tt.wantCode)
		}
	}
}

func TestStreamErrorsAsEvents(t *testing.T) {
	t.Parallel()

	h, _, _ := chatFixture(t)

	// No identity in context: the turn fails after headers went out, so the
	// failure must arrive as an SSE error event, not a status code.
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"message":"hi"}`))
	h.Stream(w, r)

	events := parseSSE(t, w.Body.String())
	if len(events) != 1 || events[0].event != EventError {
		t.Fatalf("events = %+v", events)
	}
	var payload ErrorPayload
	if err := json.Unmarshal([]byte(events[0].data), &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload.Code != "STREAM_ERROR" {
		t.Errorf("code = %q", payload.Code)
	}
}
