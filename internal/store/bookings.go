package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"

	"github.com/voyago/voyago/internal/log"
)

// BookingQuerier defines the database operations the booking store needs.
type BookingQuerier interface {
	InsertBooking(ctx context.Context, b Booking, passengerIDs []uuid.UUID) error
	GetBooking(ctx context.Context, id uuid.UUID) (Booking, error)
	GetBookingByReference(ctx context.Context, reference string) (Booking, error)
	ListBookings(ctx context.Context, userID uuid.UUID) ([]Booking, error)
	ListFlightLegs(ctx context.Context, bookingID uuid.UUID) ([]FlightLeg, error)
	ListStays(ctx context.Context, bookingID uuid.UUID) ([]Stay, error)

	// UpdateBookingIfVersion applies the booking's mutable fields only when
	// the stored version still equals expectedVersion, bumping version by
	// one. Returns false when the row was concurrently modified.
	UpdateBookingIfVersion(ctx context.Context, b Booking, expectedVersion int32) (bool, error)

	InsertFlightLeg(ctx context.Context, leg FlightLeg) error
	InsertStay(ctx context.Context, stay Stay) error

	// WithTx runs fn against a transactional querier. Implementations
	// without transaction support (test fakes) may run fn directly.
	WithTx(ctx context.Context, fn func(BookingQuerier) error) error
}

// maxVersionRetries bounds how often a widening update is retried after
// losing an optimistic-concurrency race.
const maxVersionRetries = 3

// Bookings manages booking persistence and the widening rules: a booking's
// type only ever widens (flight + accommodation = both, never narrows) and
// its date range only ever grows to cover every component.
type Bookings struct {
	q      BookingQuerier
	logger log.Logger
	now    func() time.Time
}

// NewBookings creates a booking store.
func NewBookings(q BookingQuerier, logger log.Logger) *Bookings {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Bookings{q: q, logger: logger.With("component", "store.bookings"), now: time.Now}
}

// CreateInitial creates a pending booking shell with a fresh short reference
// and one join row per passenger. Totals start at zero EUR; components added
// later accumulate into it.
func (b *Bookings) CreateInitial(ctx context.Context, userID uuid.UUID, bookingType BookingType, origin, destination string, passengerIDs []uuid.UUID) (Booking, error) {
	switch bookingType {
	case BookingFlight, BookingAccommodation, BookingBoth:
	default:
		return Booking{}, fmt.Errorf("create booking: %w: %q", ErrInvalidBookingType, bookingType)
	}

	now := b.now()
	booking := Booking{
		ID:            uuid.New(),
		UserID:        userID,
		Reference:     shortuuid.New(),
		Type:          bookingType,
		Status:        "pending",
		PaymentStatus: "unpaid",
		TotalAmount:   "0.00",
		Currency:      "EUR",
		Origin:        origin,
		Destination:   destination,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := b.q.InsertBooking(ctx, booking, passengerIDs); err != nil {
		return Booking{}, fmt.Errorf("create booking: %w", err)
	}

	b.logger.Info("created booking", "id", booking.ID, "reference", booking.Reference, "type", bookingType, "passengers", len(passengerIDs))
	return booking, nil
}

// Get returns the booking if it belongs to userID.
func (b *Bookings) Get(ctx context.Context, id, userID uuid.UUID) (Booking, error) {
	booking, err := b.q.GetBooking(ctx, id)
	if err != nil {
		return Booking{}, fmt.Errorf("get booking %s: %w", id, err)
	}
	if booking.UserID != userID {
		return Booking{}, fmt.Errorf("get booking %s: %w", id, ErrForbidden)
	}
	return booking, nil
}

// List returns the user's bookings, newest first.
func (b *Bookings) List(ctx context.Context, userID uuid.UUID) ([]Booking, error) {
	bookings, err := b.q.ListBookings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

// FlightLegs returns the flight legs of a booking owned by userID.
func (b *Bookings) FlightLegs(ctx context.Context, bookingID, userID uuid.UUID) ([]FlightLeg, error) {
	if _, err := b.Get(ctx, bookingID, userID); err != nil {
		return nil, err
	}
	legs, err := b.q.ListFlightLegs(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("list flight legs %s: %w", bookingID, err)
	}
	return legs, nil
}

// Stays returns the accommodations of a booking owned by userID.
func (b *Bookings) Stays(ctx context.Context, bookingID, userID uuid.UUID) ([]Stay, error) {
	if _, err := b.Get(ctx, bookingID, userID); err != nil {
		return nil, err
	}
	stays, err := b.q.ListStays(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("list stays %s: %w", bookingID, err)
	}
	return stays, nil
}

// AddFlight attaches a flight leg to the booking, widening the booking type
// toward flight coverage and stretching the date range over the leg.
func (b *Bookings) AddFlight(ctx context.Context, bookingID, userID uuid.UUID, leg FlightLeg) (Booking, error) {
	leg.ID = uuid.New()
	leg.BookingID = bookingID
	if leg.Currency == "" {
		leg.Currency = "EUR"
	}

	booking, err := b.addComponent(ctx, bookingID, userID, BookingFlight,
		leg.PriceAmount, leg.DepartureAt, leg.ArrivalAt,
		func(q BookingQuerier) error { return q.InsertFlightLeg(ctx, leg) })
	if err != nil {
		return Booking{}, fmt.Errorf("add flight to booking %s: %w", bookingID, err)
	}

	b.logger.Info("added flight leg", "booking_id", bookingID, "flight_number", leg.FlightNumber, "type", booking.Type)
	return booking, nil
}

// AddStay attaches an accommodation to the booking, widening the booking
// type toward accommodation coverage and stretching the date range over the
// stay.
func (b *Bookings) AddStay(ctx context.Context, bookingID, userID uuid.UUID, stay Stay) (Booking, error) {
	stay.ID = uuid.New()
	stay.BookingID = bookingID
	if stay.Currency == "" {
		stay.Currency = "EUR"
	}

	booking, err := b.addComponent(ctx, bookingID, userID, BookingAccommodation,
		stay.PriceAmount, stay.CheckIn, stay.CheckOut,
		func(q BookingQuerier) error { return q.InsertStay(ctx, stay) })
	if err != nil {
		return Booking{}, fmt.Errorf("add stay to booking %s: %w", bookingID, err)
	}

	b.logger.Info("added stay", "booking_id", bookingID, "name", stay.Name, "type", booking.Type)
	return booking, nil
}

// addComponent runs the shared attach flow inside a transaction: re-read the
// parent, widen the type, merge the date range, accumulate the total, then
// update guarded by the version column. Lost races retry with a fresh read.
func (b *Bookings) addComponent(ctx context.Context, bookingID, userID uuid.UUID, add BookingType, amount string, from, to time.Time, insert func(BookingQuerier) error) (Booking, error) {
	var result Booking

	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		err := b.q.WithTx(ctx, func(q BookingQuerier) error {
			booking, err := q.GetBooking(ctx, bookingID)
			if err != nil {
				return err
			}
			if booking.UserID != userID {
				return ErrForbidden
			}

			expected := booking.Version
			booking.Type = booking.Type.Widen(add)
			booking.StartDate, booking.EndDate = mergeDateRange(booking.StartDate, booking.EndDate, from, to)
			booking.TotalAmount, err = addAmounts(booking.TotalAmount, amount)
			if err != nil {
				return err
			}
			booking.UpdatedAt = b.now()

			ok, err := q.UpdateBookingIfVersion(ctx, booking, expected)
			if err != nil {
				return err
			}
			if !ok {
				return ErrVersionConflict
			}

			if err := insert(q); err != nil {
				return err
			}

			booking.Version = expected + 1
			result = booking
			return nil
		})
		if errors.Is(err, ErrVersionConflict) {
			b.logger.Debug("booking version conflict, retrying", "booking_id", bookingID, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return Booking{}, err
		}
		return result, nil
	}

	return Booking{}, ErrVersionConflict
}

// mergeDateRange grows [start,end] to cover [from,to]. A nil bound adopts
// the incoming date unconditionally.
func mergeDateRange(start, end *time.Time, from, to time.Time) (*time.Time, *time.Time) {
	fromDay, toDay := truncateToDay(from), truncateToDay(to)
	if start == nil || fromDay.Before(*start) {
		start = &fromDay
	}
	if end == nil || toDay.After(*end) {
		end = &toDay
	}
	return start, end
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
