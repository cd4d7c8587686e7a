// Package api is the JSON/SSE HTTP surface of the travel assistant.
package api

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voyago/voyago/internal/auth"
	"github.com/voyago/voyago/internal/chat"
	"github.com/voyago/voyago/internal/log"
	"github.com/voyago/voyago/internal/store"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger       log.Logger
	Orchestrator *chat.Orchestrator // Required
	AuthResolver *auth.Resolver     // Required
	Chats        *store.Chats       // Required
	Bookings     *store.Bookings    // Required
	Passengers   *store.Passengers  // Required
	Payments     *store.Payments    // Required
	Pool         *pgxpool.Pool      // Optional: nil disables the DB ping in /ready
	CORSOrigins  []string           // Allowed origins for CORS
	IsDev        bool               // Disables HSTS (no HTTPS locally)
	TrustProxy   bool               // Trust X-Real-IP/X-Forwarded-For headers (behind reverse proxy)
	RateBurst    int                // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Orchestrator == nil {
		return nil, errors.New("orchestrator is required")
	}
	if cfg.AuthResolver == nil {
		return nil, errors.New("auth resolver is required")
	}
	if cfg.Chats == nil || cfg.Bookings == nil || cfg.Passengers == nil || cfg.Payments == nil {
		return nil, errors.New("all stores are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	ch := NewChat(cfg.Orchestrator, logger)
	history := NewHistory(cfg.Chats, logger)
	bookings := NewBookings(cfg.Bookings, logger)
	profile := NewProfile(cfg.Passengers, cfg.Payments, logger)

	mux := http.NewServeMux()

	// Chat
	mux.HandleFunc("POST /api/v1/chat", ch.Stream)

	// Conversation history
	mux.HandleFunc("GET /api/v1/history", history.List)
	mux.HandleFunc("GET /api/v1/chat/{id}", history.Get)
	mux.HandleFunc("DELETE /api/v1/chat/{id}", history.Delete)

	// Bookings
	mux.HandleFunc("GET /api/v1/bookings", bookings.List)
	mux.HandleFunc("GET /api/v1/bookings/{id}", bookings.Get)

	// Profile
	mux.HandleFunc("GET /api/v1/passengers", profile.Passengers)
	mux.HandleFunc("GET /api/v1/payment-info", profile.PaymentInfo)
	mux.HandleFunc("POST /api/v1/payment/authorize", profile.AuthorizePayment)

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Auth → Routes
	// RequestID must be before Logging so request_id is available in log attributes.
	// CORS must be before RateLimit so preflight OPTIONS gets proper CORS headers.
	var handler http.Handler = mux
	handler = authMiddleware(cfg.AuthResolver, logger)(handler)
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Wrap with security headers
	isDev := cfg.IsDev
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w, isDev)
		handler.ServeHTTP(w, r)
	})

	// Use a top-level mux to separate health probes from middleware stack
	hh := NewHealthHandler(cfg.Pool, logger)
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", hh.liveness)
	topMux.HandleFunc("GET /ready", hh.readiness)
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
