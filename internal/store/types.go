// Package store provides PostgreSQL-backed persistence for chats, bookings,
// passengers and payment authorizations.
//
// Each store depends on a consumer-defined querier interface rather than the
// pool directly, so business rules (ownership checks, booking type widening,
// optimistic concurrency) are testable with in-memory fakes. The pgx-backed
// implementation of every querier lives in pg.go.
package store

import (
	"errors"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden indicates the row exists but belongs to another user.
	ErrForbidden = errors.New("forbidden")

	// ErrVersionConflict indicates an optimistic-concurrency update lost the race.
	ErrVersionConflict = errors.New("booking version conflict")

	// ErrInvalidBookingType indicates an unknown booking type value.
	ErrInvalidBookingType = errors.New("invalid booking type")
)

// TripState tags where a conversation stands in the booking flow. It is
// persisted with the chat and enforced by the tool executors; out-of-order
// tool calls are rejected against it.
type TripState string

const (
	StateSearching      TripState = "searching"
	StateReserved       TripState = "reserved"
	StatePaymentPending TripState = "payment-pending"
	StatePaid           TripState = "paid"
	StateConfirmed      TripState = "confirmed"
)

// Valid reports whether s is a known trip state.
func (s TripState) Valid() bool {
	switch s {
	case StateSearching, StateReserved, StatePaymentPending, StatePaid, StateConfirmed:
		return true
	}
	return false
}

// BookingType classifies what a booking covers. It only ever widens:
// once a booking is "both" it never narrows back.
type BookingType string

const (
	BookingFlight        BookingType = "flight"
	BookingAccommodation BookingType = "accommodation"
	BookingBoth          BookingType = "both"
)

// Widen returns the booking type after adding a component of type add.
// Widening is monotonic: flight+accommodation in either order gives both,
// and both absorbs everything.
func (t BookingType) Widen(add BookingType) BookingType {
	if t == add || t == BookingBoth {
		return t
	}
	if add == BookingBoth {
		return BookingBoth
	}
	// flight + accommodation, in either order
	return BookingBoth
}

// Chat is one persisted conversation.
type Chat struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Messages  []*ai.Message
	TripState TripState
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Booking is the root booking row.
type Booking struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Reference     string
	Type          BookingType
	Status        string
	PaymentStatus string
	TotalAmount   string // decimal carried as string, matching numeric(12,2)
	Currency      string
	Origin        string
	Destination   string
	StartDate     *time.Time
	EndDate       *time.Time
	Version       int32
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FlightLeg is one flight attached to a booking.
type FlightLeg struct {
	ID           uuid.UUID
	BookingID    uuid.UUID
	FlightNumber string
	Airline      string
	Origin       string
	Destination  string
	DepartureAt  time.Time
	ArrivalAt    time.Time
	CabinClass   string
	PriceAmount  string
	Currency     string
}

// Stay is one accommodation attached to a booking.
type Stay struct {
	ID          uuid.UUID
	BookingID   uuid.UUID
	Name        string
	City        string
	Country     string
	Type        string
	CheckIn     time.Time
	CheckOut    time.Time
	PriceAmount string
	Currency    string
}

// Passenger is a traveler profile owned by a user.
type Passenger struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	FullName    string
	DateOfBirth *time.Time
	PassportNo  string
	CreatedAt   time.Time
}

// PaymentAuthorization tracks the shared-secret payment confirmation for
// one offer. Created when payment is requested, completed when the user
// supplies the correct magic word.
type PaymentAuthorization struct {
	OfferID   string
	UserID    uuid.UUID
	Completed bool
	CreatedAt time.Time
}
