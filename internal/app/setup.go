package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/voyago/voyago/internal/api"
	"github.com/voyago/voyago/internal/auth"
	"github.com/voyago/voyago/internal/chat"
	"github.com/voyago/voyago/internal/config"
	"github.com/voyago/voyago/internal/database"
	"github.com/voyago/voyago/internal/flights"
	"github.com/voyago/voyago/internal/log"
	"github.com/voyago/voyago/internal/stays"
	"github.com/voyago/voyago/internal/store"
	"github.com/voyago/voyago/internal/tools"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = log.NewNop()
	}
	a := &App{Config: cfg, logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	if os.Getenv("GEMINI_API_KEY") == "" && os.Getenv("GOOGLE_API_KEY") == "" {
		return nil, fmt.Errorf("%w: set GEMINI_API_KEY", config.ErrMissingAPIKey)
	}
	if cfg.DuffelToken == "" {
		return nil, fmt.Errorf("%w: set DUFFEL_TOKEN", config.ErrMissingDuffelToken)
	}

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	g, model, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	// Stores share one pgx-backed querier.
	pg := store.NewPG(pool)
	chats := store.NewChats(pg, logger)
	bookings := store.NewBookings(pg, logger)
	passengers := store.NewPassengers(pg, logger)
	payments := store.NewPayments(pg, logger)
	resolver := auth.NewResolver(pg, logger)

	// Flight and accommodation search.
	duffel := flights.NewDuffelClient(cfg.DuffelBaseURL, cfg.DuffelToken, cfg.SupplierTimeout, logger)
	flightSvc := flights.NewService(duffel, cfg.ExcludedCarrier, cfg.MaxFlightResults, logger)
	seatGen := flights.NewSeatGenerator(g, model, logger)
	staySearch := stays.NewSearcher(g, model, logger)

	// Tool registry.
	registry := tools.NewRegistry(g, logger)
	kit := tools.NewKit(flightSvc, seatGen, staySearch, bookings, passengers, payments, logger)
	if err := kit.Register(registry); err != nil {
		return nil, fmt.Errorf("registering tools: %w", err)
	}

	orchestrator, err := chat.New(chat.Config{
		Genkit:    g,
		Model:     model,
		Registry:  registry,
		Chats:     chats,
		MaxRounds: cfg.MaxRounds,
		Retry: chat.RetryConfig{
			MaxRetries:      cfg.MaxRetries,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     10 * time.Second,
		},
		Breaker: chat.DefaultCircuitBreakerConfig(),
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}
	a.Orchestrator = orchestrator

	server, err := api.NewServer(api.ServerConfig{
		Logger:       logger,
		Orchestrator: orchestrator,
		AuthResolver: resolver,
		Chats:        chats,
		Bookings:     bookings,
		Passengers:   passengers,
		Payments:     payments,
		Pool:         pool,
		CORSOrigins:  cfg.CORSOrigins,
		TrustProxy:   cfg.TrustProxy,
		RateBurst:    cfg.RateBurst,
	})
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	a.Handler = server.Handler()

	logger.Info("application ready",
		"model", cfg.ModelName, "tools", registry.Count(), "listen", cfg.ListenAddr)
	return a, nil
}

// provideOtelShutdown sets up OTLP trace export before Genkit initialization
// so the span processor is registered on Genkit's TracerProvider in time.
// An empty endpoint disables export entirely.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	if cfg.OTLPEndpoint == "" {
		return func() {}
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(), // collector is expected on the local network
	)
	if err != nil {
		logger.Warn("creating OTLP exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("OTLP tracing enabled", "endpoint", cfg.OTLPEndpoint)

	shutdown := tracing.TracerProvider().Shutdown
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool runs migrations and creates the PostgreSQL connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := database.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := database.NewPool(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// provideGenkit initializes Genkit with the Google AI plugin and resolves the
// configured model.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, ai.Model, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, nil, errors.New("initializing genkit")
	}

	model := genkit.LookupModel(g, cfg.ModelName)
	if model == nil {
		return nil, nil, fmt.Errorf("%w: model %q not found", config.ErrInvalidModelName, cfg.ModelName)
	}

	logger.Info("initialized Genkit", "model", cfg.ModelName)
	return g, model, nil
}
