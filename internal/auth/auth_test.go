package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeSessions struct {
	sessions map[string]Session
}

func (f *fakeSessions) GetSessionByTokenHash(_ context.Context, tokenHash string) (Session, error) {
	s, ok := f.sessions[tokenHash]
	if !ok {
		return Session{}, errors.New("no rows")
	}
	return s, nil
}

func TestResolve(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	sessions := &fakeSessions{sessions: map[string]Session{
		HashToken("tok_valid"): {
			Token:     "tok_valid",
			UserID:    userID,
			Email:     "traveler@example.com",
			ExpiresAt: time.Now().Add(time.Hour),
		},
		HashToken("tok_expired"): {
			Token:     "tok_expired",
			UserID:    uuid.New(),
			ExpiresAt: time.Now().Add(-time.Minute),
		},
	}}
	resolver := NewResolver(sessions, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		header  string
		wantErr error
	}{
		{name: "no header", header: "", wantErr: ErrNoToken},
		{name: "wrong scheme", header: "Basic dXNlcg==", wantErr: ErrNoToken},
		{name: "bearer with empty token", header: "Bearer ", wantErr: ErrNoToken},
		{name: "unknown token", header: "Bearer tok_unknown", wantErr: ErrInvalidToken},
		{name: "expired session", header: "Bearer tok_expired", wantErr: ErrInvalidToken},
		{name: "valid token", header: "Bearer tok_valid", wantErr: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			identity, err := resolver.Resolve(ctx, tt.header)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if identity.UserID != userID || identity.Email != "traveler@example.com" {
				t.Errorf("identity = %+v", identity)
			}
		})
	}
}

func TestHashTokenIsStableAndOpaque(t *testing.T) {
	t.Parallel()

	h := HashToken("tok_abc")
	if h != HashToken("tok_abc") {
		t.Error("HashToken not deterministic")
	}
	if h == HashToken("tok_abd") {
		t.Error("distinct tokens hash equal")
	}
	if len(h) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(h))
	}
	if h == "tok_abc" {
		t.Error("token stored in the clear")
	}
}

func TestIdentityContextRoundTrip(t *testing.T) {
	t.Parallel()

	want := Identity{UserID: uuid.New(), Email: "traveler@example.com"}
	ctx := WithIdentity(context.Background(), want)

	got, err := FromContext(ctx)
	if err != nil {
		t.Fatalf("FromContext() error = %v", err)
	}
	if got != want {
		t.Errorf("identity = %+v, want %+v", got, want)
	}

	if _, err := FromContext(context.Background()); !errors.Is(err, ErrNoIdentity) {
		t.Errorf("FromContext() on empty context error = %v, want ErrNoIdentity", err)
	}
}
