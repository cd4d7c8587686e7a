// Package chat owns the conversation turn loop: model calls, tool fan-out,
// state tagging and history persistence.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/voyago/voyago/internal/auth"
	"github.com/voyago/voyago/internal/log"
	"github.com/voyago/voyago/internal/store"
	"github.com/voyago/voyago/internal/tools"
)

// FallbackResponse is used when the model returns neither text nor tool
// requests.
const FallbackResponse = "I'm sorry, I couldn't generate a response. Please try again."

// ChatStore is the persistence surface the orchestrator needs.
type ChatStore interface {
	Save(ctx context.Context, chat store.Chat) error
	Get(ctx context.Context, id, userID uuid.UUID) (store.Chat, error)
}

// ToolExecutor runs tool requests and advertises tool definitions.
type ToolExecutor interface {
	Execute(ctx context.Context, name tools.Name, raw json.RawMessage) any
	Refs() []ai.ToolRef
}

// StreamCallback receives text chunks as the model produces them.
type StreamCallback func(chunk string) error

// ToolEvent reports one executed tool call within a turn, in request order.
type ToolEvent struct {
	Name   string `json:"name"`
	Output any    `json:"output"`
}

// TurnResult is the outcome of one conversation turn.
type TurnResult struct {
	Text       string
	Messages   []*ai.Message
	ToolEvents []ToolEvent
	TripState  store.TripState
	Rounds     int
}

// Config wires an Orchestrator.
type Config struct {
	Genkit    *genkit.Genkit
	Model     ai.Model
	Registry  ToolExecutor
	Chats     ChatStore
	MaxRounds int

	Retry   RetryConfig
	Breaker CircuitBreakerConfig

	// RequestsPerMinute caps model calls; zero disables the limiter.
	RequestsPerMinute int

	Logger log.Logger
}

// Orchestrator runs conversation turns. The tool loop is owned here rather
// than delegated to the model substrate: each round the model is asked for
// tool requests, the registry executes them concurrently, and the collected
// responses are appended before the next round. Safe for concurrent use.
type Orchestrator struct {
	g         *genkit.Genkit
	model     ai.Model
	registry  ToolExecutor
	chats     ChatStore
	maxRounds int

	retryConfig RetryConfig
	breaker     *CircuitBreaker
	limiter     *rate.Limiter

	logger log.Logger
	now    func() time.Time
}

// New creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Genkit == nil {
		return nil, fmt.Errorf("chat: Genkit instance is required")
	}
	if cfg.Model == nil {
		return nil, fmt.Errorf("chat: model is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("chat: tool registry is required")
	}
	if cfg.Chats == nil {
		return nil, fmt.Errorf("chat: chat store is required")
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = 5
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.RequestsPerMinute)
	}

	return &Orchestrator{
		g:           cfg.Genkit,
		model:       cfg.Model,
		registry:    cfg.Registry,
		chats:       cfg.Chats,
		maxRounds:   cfg.MaxRounds,
		retryConfig: cfg.Retry,
		breaker:     NewCircuitBreaker(cfg.Breaker),
		limiter:     limiter,
		logger:      logger.With("component", "chat"),
		now:         time.Now,
	}, nil
}

// Turn runs one conversation turn for the identity resolved in ctx.
//
// The working history is the persisted chat plus the new user message. The
// loop generates with tool requests returned rather than auto-executed;
// requests from one round run concurrently and their responses are
// collected in request order, so the transcript is deterministic for a
// given set of model outputs. The loop ends when the model stops requesting
// tools, the round cap is hit, or ctx is canceled. At the cap the pending
// requests are dropped and one final tools-free call produces the closing
// answer, so the transcript never ends on an unanswered tool request.
// Cancellation never schedules further rounds, though already-streamed
// text stands.
//
// After the loop the full message list and trip state are saved by chat id.
// A persistence failure after a successful turn is logged, not returned.
func (o *Orchestrator) Turn(ctx context.Context, chatID uuid.UUID, userMessage string, callback StreamCallback) (*TurnResult, error) {
	identity, err := auth.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("turn: %w", err)
	}

	chat, err := o.loadChat(ctx, chatID, identity.UserID)
	if err != nil {
		return nil, err
	}

	conv := tools.NewConversation(chat.TripState)
	ctx = tools.WithConversation(ctx, conv)

	working := append(copyMessages(chat.Messages), ai.NewUserTextMessage(userMessage))
	system := systemPrompt(o.now())

	var (
		resp   *ai.ModelResponse
		events []ToolEvent
		rounds int
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("turn canceled: %w", err)
		}

		resp, err = o.generate(ctx, system, working, callback)
		if err != nil {
			return nil, err
		}
		if resp.Message != nil {
			working = append(working, resp.Message)
		}

		requests := resp.ToolRequests()
		if len(requests) == 0 {
			break
		}
		if rounds >= o.maxRounds {
			o.logger.Warn("round cap reached with pending tool requests",
				"chat_id", chatID, "rounds", rounds, "pending", len(requests))
			// Drop the unanswered request message before persisting;
			// providers reject histories where a tool request has no
			// response. A tools-free call then wraps the turn up.
			working = working[:len(working)-1]
			resp, err = o.closingGenerate(ctx, system, working, callback)
			if err != nil {
				return nil, err
			}
			if resp.Message != nil && len(resp.ToolRequests()) == 0 {
				working = append(working, resp.Message)
			}
			break
		}
		rounds++

		parts, roundEvents, err := o.executeRound(ctx, requests)
		if err != nil {
			return nil, err
		}
		events = append(events, roundEvents...)
		working = append(working, ai.NewMessage(ai.RoleTool, nil, parts...))
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		o.logger.Warn("model returned empty response", "chat_id", chatID)
		text = FallbackResponse
	}

	chat.Messages = working
	chat.TripState = conv.State()
	if err := o.chats.Save(ctx, chat); err != nil {
		// The turn succeeded; losing the transcript is logged, not fatal.
		o.logger.Error("failed to persist chat", "chat_id", chatID, "error", err)
	}

	o.logger.Info("turn completed",
		"chat_id", chatID, "rounds", rounds,
		"tool_calls", len(events), "trip_state", chat.TripState)

	return &TurnResult{
		Text:       text,
		Messages:   working,
		ToolEvents: events,
		TripState:  chat.TripState,
		Rounds:     rounds,
	}, nil
}

// loadChat fetches the chat or starts a fresh one for unknown ids.
func (o *Orchestrator) loadChat(ctx context.Context, chatID, userID uuid.UUID) (store.Chat, error) {
	chat, err := o.chats.Get(ctx, chatID, userID)
	if err == nil {
		return chat, nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return store.Chat{
			ID:        chatID,
			UserID:    userID,
			Messages:  []*ai.Message{},
			TripState: store.StateSearching,
		}, nil
	}
	return store.Chat{}, fmt.Errorf("load chat %s: %w", chatID, err)
}

// generate performs one model call with the working history.
func (o *Orchestrator) generate(ctx context.Context, system string, messages []*ai.Message, callback StreamCallback) (*ai.ModelResponse, error) {
	opts := []ai.GenerateOption{
		ai.WithModel(o.model),
		ai.WithSystem(system),
		ai.WithMessages(messages...),
		ai.WithTools(o.registry.Refs()...),
		ai.WithReturnToolRequests(true),
	}
	if callback != nil {
		opts = append(opts, ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			return callback(chunk.Text())
		}))
	}

	return o.generateWithRetry(ctx, func(ctx context.Context) (*ai.ModelResponse, error) {
		return genkit.Generate(ctx, o.g, opts...)
	})
}

// closingGenerate asks the model to wrap the turn up without tools
// advertised. Used once the round cap cuts the tool loop.
func (o *Orchestrator) closingGenerate(ctx context.Context, system string, messages []*ai.Message, callback StreamCallback) (*ai.ModelResponse, error) {
	opts := []ai.GenerateOption{
		ai.WithModel(o.model),
		ai.WithSystem(system),
		ai.WithMessages(messages...),
	}
	if callback != nil {
		opts = append(opts, ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			return callback(chunk.Text())
		}))
	}

	return o.generateWithRetry(ctx, func(ctx context.Context) (*ai.ModelResponse, error) {
		return genkit.Generate(ctx, o.g, opts...)
	})
}

// executeRound fans the round's tool requests out concurrently and collects
// responses in request order. Tool failures are data in the transcript, so
// the only error out of here is context cancellation.
func (o *Orchestrator) executeRound(ctx context.Context, requests []*ai.ToolRequest) ([]*ai.Part, []ToolEvent, error) {
	parts := make([]*ai.Part, len(requests))
	events := make([]ToolEvent, len(requests))

	g, gctx := errgroup.WithContext(ctx)
	for i, req := range requests {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			raw, err := json.Marshal(req.Input)
			if err != nil {
				raw = []byte("{}")
			}

			output := o.registry.Execute(gctx, tools.Name(req.Name), raw)
			parts[i] = ai.NewToolResponsePart(&ai.ToolResponse{
				Name:   req.Name,
				Ref:    req.Ref,
				Output: output,
			})
			events[i] = ToolEvent{Name: req.Name, Output: output}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("tool round canceled: %w", err)
	}
	return parts, events, nil
}

// copyMessages copies the message slice, each message shell and each part
// shell, so appends and part-field edits on the working history never reach
// the persisted messages. Payloads nested inside parts stay shared.
func copyMessages(in []*ai.Message) []*ai.Message {
	out := make([]*ai.Message, len(in))
	for i, msg := range in {
		copied := *msg
		copied.Content = make([]*ai.Part, len(msg.Content))
		for j, part := range msg.Content {
			p := *part
			copied.Content[j] = &p
		}
		out[i] = &copied
	}
	return out
}
