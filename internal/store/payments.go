package store

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/voyago/voyago/internal/log"
)

// ErrWrongMagicWord indicates the supplied confirmation word did not match.
var ErrWrongMagicWord = errors.New("wrong magic word")

// Account is a user account row, including the payment confirmation secret
// (stored hashed) and the card alias shown in the payment-info endpoint.
type Account struct {
	ID            uuid.UUID
	Email         string
	DisplayName   string
	MagicWordHash string
	CardBrand     string
	CardLast4     string
}

// PaymentQuerier defines the database operations the payment store needs.
type PaymentQuerier interface {
	GetAccount(ctx context.Context, userID uuid.UUID) (Account, error)
	UpsertAuthorization(ctx context.Context, auth PaymentAuthorization) error
	GetAuthorization(ctx context.Context, offerID string) (PaymentAuthorization, error)
	CompleteAuthorization(ctx context.Context, offerID string, userID uuid.UUID) error
}

// Payments manages the toy payment flow: an authorization row is opened per
// offer when payment is requested, and completed only when the user supplies
// the account's magic word. No gateway is involved.
type Payments struct {
	q      PaymentQuerier
	logger log.Logger
}

// NewPayments creates a payment store.
func NewPayments(q PaymentQuerier, logger log.Logger) *Payments {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Payments{q: q, logger: logger.With("component", "store.payments")}
}

// HashMagicWord returns the stored form of a magic word. Comparison is
// case-insensitive on the raw word.
func HashMagicWord(word string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(word))))
	return hex.EncodeToString(sum[:])
}

// RequestAuthorization opens (or re-opens as pending lookup) the
// authorization row for an offer. Idempotent per offer id.
func (p *Payments) RequestAuthorization(ctx context.Context, offerID string, userID uuid.UUID) error {
	if offerID == "" {
		return fmt.Errorf("request authorization: empty offer id")
	}

	// Existing rows are left untouched so a completed authorization
	// survives a re-requested payment screen.
	if _, err := p.q.GetAuthorization(ctx, offerID); err == nil {
		return nil
	}

	auth := PaymentAuthorization{
		OfferID:   offerID,
		UserID:    userID,
		Completed: false,
		CreatedAt: time.Now(),
	}
	if err := p.q.UpsertAuthorization(ctx, auth); err != nil {
		return fmt.Errorf("request authorization %s: %w", offerID, err)
	}

	p.logger.Debug("opened payment authorization", "offer_id", offerID)
	return nil
}

// Confirm completes the authorization when word matches the account's magic
// word. The comparison runs over hashes in constant time.
func (p *Payments) Confirm(ctx context.Context, offerID string, userID uuid.UUID, word string) error {
	account, err := p.q.GetAccount(ctx, userID)
	if err != nil {
		return fmt.Errorf("confirm payment %s: %w", offerID, err)
	}

	supplied := HashMagicWord(word)
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(account.MagicWordHash)) != 1 {
		return ErrWrongMagicWord
	}

	auth, err := p.q.GetAuthorization(ctx, offerID)
	if err != nil {
		return fmt.Errorf("confirm payment %s: %w", offerID, err)
	}
	if auth.UserID != userID {
		return fmt.Errorf("confirm payment %s: %w", offerID, ErrForbidden)
	}

	if err := p.q.CompleteAuthorization(ctx, offerID, userID); err != nil {
		return fmt.Errorf("confirm payment %s: %w", offerID, err)
	}

	p.logger.Info("payment authorization completed", "offer_id", offerID)
	return nil
}

// Verified reports whether the offer's authorization has been completed by
// its owner. Missing rows verify as false, not as an error.
func (p *Payments) Verified(ctx context.Context, offerID string, userID uuid.UUID) (bool, error) {
	auth, err := p.q.GetAuthorization(ctx, offerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("verify payment %s: %w", offerID, err)
	}
	return auth.Completed && auth.UserID == userID, nil
}

// CardInfo returns the display card alias for the payment-info endpoint.
// Only the brand and last four digits are ever stored or returned.
func (p *Payments) CardInfo(ctx context.Context, userID uuid.UUID) (brand, last4 string, err error) {
	account, err := p.q.GetAccount(ctx, userID)
	if err != nil {
		return "", "", fmt.Errorf("card info: %w", err)
	}
	return account.CardBrand, account.CardLast4, nil
}
