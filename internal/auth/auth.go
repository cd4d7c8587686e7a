// Package auth resolves the caller's identity once per request and carries
// it through the request context. Handlers and tool executors read the
// identity from the context instead of re-resolving sessions themselves.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/voyago/voyago/internal/log"
)

var (
	// ErrNoToken indicates the request carried no bearer token.
	ErrNoToken = errors.New("no bearer token")

	// ErrInvalidToken indicates the bearer token matched no active session.
	ErrInvalidToken = errors.New("invalid or expired session token")

	// ErrNoIdentity indicates the context carries no resolved identity.
	ErrNoIdentity = errors.New("no identity in context")
)

// Identity is the resolved caller for one request.
type Identity struct {
	UserID uuid.UUID
	Email  string
}

// Session is an authenticated session row.
type Session struct {
	Token     string
	UserID    uuid.UUID
	Email     string
	ExpiresAt time.Time
}

// SessionQuerier looks up sessions by token hash. Implemented by the store
// layer; defined here because this package is the consumer.
type SessionQuerier interface {
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (Session, error)
}

// Resolver turns bearer tokens into identities.
type Resolver struct {
	sessions SessionQuerier
	logger   log.Logger
}

// NewResolver creates a Resolver backed by the given session querier.
func NewResolver(sessions SessionQuerier, logger log.Logger) *Resolver {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Resolver{sessions: sessions, logger: logger.With("component", "auth")}
}

// Resolve validates the Authorization header value and returns the identity.
// Tokens are stored hashed; the raw token never touches the database.
func (r *Resolver) Resolve(ctx context.Context, authorization string) (Identity, error) {
	token, ok := strings.CutPrefix(authorization, "Bearer ")
	if !ok || token == "" {
		return Identity{}, ErrNoToken
	}

	sess, err := r.sessions.GetSessionByTokenHash(ctx, HashToken(token))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if time.Now().After(sess.ExpiresAt) {
		return Identity{}, ErrInvalidToken
	}

	return Identity{UserID: sess.UserID, Email: sess.Email}, nil
}

// HashToken returns the hex SHA-256 of a session token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

type contextKey struct{}

// WithIdentity returns a context carrying the resolved identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext extracts the identity resolved at request entry.
func FromContext(ctx context.Context) (Identity, error) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	if !ok {
		return Identity{}, ErrNoIdentity
	}
	return id, nil
}
