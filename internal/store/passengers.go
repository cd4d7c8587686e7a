package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/voyago/voyago/internal/log"
)

// PassengerQuerier defines the database operations the passenger store needs.
type PassengerQuerier interface {
	InsertPassenger(ctx context.Context, p Passenger) error
	ListPassengers(ctx context.Context, userID uuid.UUID) ([]Passenger, error)
	GetPassenger(ctx context.Context, id uuid.UUID) (Passenger, error)
}

// Passengers manages traveler profiles.
type Passengers struct {
	q      PassengerQuerier
	logger log.Logger
}

// NewPassengers creates a passenger store.
func NewPassengers(q PassengerQuerier, logger log.Logger) *Passengers {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Passengers{q: q, logger: logger.With("component", "store.passengers")}
}

// Create stores a new passenger profile for the user.
func (p *Passengers) Create(ctx context.Context, userID uuid.UUID, fullName string, dateOfBirth *time.Time, passportNo string) (Passenger, error) {
	if fullName == "" {
		return Passenger{}, fmt.Errorf("create passenger: full name is empty")
	}

	passenger := Passenger{
		ID:          uuid.New(),
		UserID:      userID,
		FullName:    fullName,
		DateOfBirth: dateOfBirth,
		PassportNo:  passportNo,
		CreatedAt:   time.Now(),
	}
	if err := p.q.InsertPassenger(ctx, passenger); err != nil {
		return Passenger{}, fmt.Errorf("create passenger: %w", err)
	}

	p.logger.Debug("created passenger", "id", passenger.ID)
	return passenger, nil
}

// List returns the user's passengers.
func (p *Passengers) List(ctx context.Context, userID uuid.UUID) ([]Passenger, error) {
	passengers, err := p.q.ListPassengers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list passengers: %w", err)
	}
	return passengers, nil
}

// Verify checks that every passenger id exists and belongs to userID.
func (p *Passengers) Verify(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error {
	for _, id := range ids {
		passenger, err := p.q.GetPassenger(ctx, id)
		if err != nil {
			return fmt.Errorf("passenger %s: %w", id, err)
		}
		if passenger.UserID != userID {
			return fmt.Errorf("passenger %s: %w", id, ErrForbidden)
		}
	}
	return nil
}
