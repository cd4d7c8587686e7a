package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/voyago/voyago/internal/auth"
	"github.com/voyago/voyago/internal/flights"
	"github.com/voyago/voyago/internal/stays"
	"github.com/voyago/voyago/internal/store"
)

// --- collaborator fakes ---

type fakeFlights struct {
	offers []flights.Offer
	err    error
}

func (f *fakeFlights) Search(_ context.Context, _ flights.Query) ([]flights.Offer, error) {
	return f.offers, f.err
}

type fakeSeats struct{}

func (fakeSeats) Generate(_ context.Context, _ string) ([]flights.Seat, error) {
	return []flights.Seat{{SeatNumber: "1A", PriceInEuros: 42, IsAvailable: true}}, nil
}

type fakeStays struct{}

func (fakeStays) Search(_ context.Context, _ stays.Query) ([]stays.Accommodation, error) {
	return []stays.Accommodation{{ID: "acc_1", Name: "Canal View", Type: "Hotel", PricePerNight: 120, Currency: "EUR"}}, nil
}

type fakeBookings struct {
	created store.Booking
	err     error
}

func (f *fakeBookings) CreateInitial(_ context.Context, userID uuid.UUID, bookingType store.BookingType, origin, destination string, _ []uuid.UUID) (store.Booking, error) {
	if f.err != nil {
		return store.Booking{}, f.err
	}
	f.created = store.Booking{
		ID: uuid.New(), UserID: userID, Reference: "REF123", Type: bookingType,
		Status: "pending", PaymentStatus: "unpaid", TotalAmount: "0.00", Currency: "EUR",
		Origin: origin, Destination: destination, Version: 1,
	}
	return f.created, nil
}

func (f *fakeBookings) AddFlight(_ context.Context, bookingID, userID uuid.UUID, _ store.FlightLeg) (store.Booking, error) {
	if f.err != nil {
		return store.Booking{}, f.err
	}
	return store.Booking{ID: bookingID, UserID: userID, Type: store.BookingFlight, TotalAmount: "245.50", Currency: "EUR"}, nil
}

func (f *fakeBookings) AddStay(_ context.Context, bookingID, userID uuid.UUID, _ store.Stay) (store.Booking, error) {
	if f.err != nil {
		return store.Booking{}, f.err
	}
	return store.Booking{ID: bookingID, UserID: userID, Type: store.BookingBoth, TotalAmount: "725.50", Currency: "EUR"}, nil
}

type fakePassengers struct {
	listed    []store.Passenger
	verifyErr error
}

func (f *fakePassengers) List(_ context.Context, _ uuid.UUID) ([]store.Passenger, error) {
	return f.listed, nil
}

func (f *fakePassengers) Verify(_ context.Context, _ uuid.UUID, _ []uuid.UUID) error {
	return f.verifyErr
}

type fakePayments struct {
	requested []string
	verified  map[string]bool
}

func (f *fakePayments) RequestAuthorization(_ context.Context, offerID string, _ uuid.UUID) error {
	f.requested = append(f.requested, offerID)
	return nil
}

func (f *fakePayments) Verified(_ context.Context, offerID string, _ uuid.UUID) (bool, error) {
	return f.verified[offerID], nil
}

func testKit() (*Kit, *fakeBookings, *fakePayments) {
	bookings := &fakeBookings{}
	payments := &fakePayments{verified: make(map[string]bool)}
	kit := NewKit(&fakeFlights{}, fakeSeats{}, fakeStays{}, bookings, &fakePassengers{}, payments, nil)
	return kit, bookings, payments
}

func signedInCtx(conv *Conversation) context.Context {
	ctx := auth.WithIdentity(context.Background(), auth.Identity{UserID: uuid.New(), Email: "traveler@example.com"})
	return WithConversation(ctx, conv)
}

// --- tests ---

func TestDisplayReservationRequiresSignIn(t *testing.T) {
	t.Parallel()

	kit, _, _ := testKit()
	out, err := kit.DisplayReservation(context.Background(), DisplayReservationInput{OfferID: "off_1"})
	if err != nil {
		t.Fatalf("DisplayReservation() error = %v", err)
	}

	payload, ok := out.(ErrorPayload)
	if !ok {
		t.Fatalf("DisplayReservation() = %T, want ErrorPayload", out)
	}
	if payload.Error != notSignedIn {
		t.Errorf("Error = %q, want %q", payload.Error, notSignedIn)
	}
}

func TestDisplayReservationEchoesAndReserves(t *testing.T) {
	t.Parallel()

	kit, _, _ := testKit()
	conv := NewConversation(store.StateSearching)
	in := DisplayReservationInput{OfferID: "off_1", FlightNumber: "KL641", Seats: []string{"1A"}}

	out, err := kit.DisplayReservation(signedInCtx(conv), in)
	if err != nil {
		t.Fatalf("DisplayReservation() error = %v", err)
	}
	if got, ok := out.(DisplayReservationInput); !ok || got.OfferID != "off_1" {
		t.Errorf("DisplayReservation() = %#v, want echoed input", out)
	}
	if conv.State() != store.StateReserved {
		t.Errorf("trip state = %s, want reserved", conv.State())
	}
}

func TestBoardingPassBlockedBeforePayment(t *testing.T) {
	t.Parallel()

	kit, _, _ := testKit()

	for _, state := range []store.TripState{store.StateSearching, store.StateReserved, store.StatePaymentPending} {
		conv := NewConversation(state)
		out, err := kit.DisplayBoardingPass(signedInCtx(conv), DisplayBoardingPassInput{FlightNumber: "KL641"})
		if err != nil {
			t.Fatalf("DisplayBoardingPass() error = %v", err)
		}
		if _, ok := out.(ErrorPayload); !ok {
			t.Errorf("state %s: DisplayBoardingPass() = %T, want ErrorPayload", state, out)
		}
		if conv.State() != state {
			t.Errorf("state %s: blocked call must not advance state, got %s", state, conv.State())
		}
	}
}

func TestPaymentFlowUnlocksBoardingPass(t *testing.T) {
	t.Parallel()

	kit, _, payments := testKit()
	conv := NewConversation(store.StateReserved)
	ctx := signedInCtx(conv)

	// authorizePayment opens the authorization and parks the conversation.
	out, err := kit.AuthorizePayment(ctx, OfferRef{OfferID: "off_1"})
	if err != nil {
		t.Fatalf("AuthorizePayment() error = %v", err)
	}
	if ref, ok := out.(OfferRef); !ok || ref.OfferID != "off_1" {
		t.Errorf("AuthorizePayment() = %#v", out)
	}
	if conv.State() != store.StatePaymentPending {
		t.Errorf("state = %s, want payment-pending", conv.State())
	}
	if len(payments.requested) != 1 || payments.requested[0] != "off_1" {
		t.Errorf("requested = %v", payments.requested)
	}

	// Unverified payment reports false and stays parked.
	out, err = kit.VerifyPayment(ctx, OfferRef{OfferID: "off_1"})
	if err != nil {
		t.Fatalf("VerifyPayment() error = %v", err)
	}
	if v := out.(VerifyPaymentOutput); v.HasCompletedPayment {
		t.Error("HasCompletedPayment = true before confirmation")
	}
	if conv.State() != store.StatePaymentPending {
		t.Errorf("state = %s, want payment-pending", conv.State())
	}

	// After confirmation, verification flips the state to paid.
	payments.verified["off_1"] = true
	out, err = kit.VerifyPayment(ctx, OfferRef{OfferID: "off_1"})
	if err != nil {
		t.Fatalf("VerifyPayment() error = %v", err)
	}
	if v := out.(VerifyPaymentOutput); !v.HasCompletedPayment {
		t.Error("HasCompletedPayment = false after confirmation")
	}
	if conv.State() != store.StatePaid {
		t.Errorf("state = %s, want paid", conv.State())
	}

	// The boarding pass now renders and confirms the trip.
	out, err = kit.DisplayBoardingPass(ctx, DisplayBoardingPassInput{FlightNumber: "KL641", Seat: "1A"})
	if err != nil {
		t.Fatalf("DisplayBoardingPass() error = %v", err)
	}
	if got, ok := out.(DisplayBoardingPassInput); !ok || got.Seat != "1A" {
		t.Errorf("DisplayBoardingPass() = %#v, want echoed input", out)
	}
	if conv.State() != store.StateConfirmed {
		t.Errorf("state = %s, want confirmed", conv.State())
	}
}

func TestSearchFlightsResetsState(t *testing.T) {
	t.Parallel()

	kit, _, _ := testKit()
	conv := NewConversation(store.StateConfirmed)

	_, err := kit.SearchFlights(signedInCtx(conv), SearchFlightsInput{Origin: "AMS", Destination: "JFK"})
	if err != nil {
		t.Fatalf("SearchFlights() error = %v", err)
	}
	if conv.State() != store.StateSearching {
		t.Errorf("state = %s, want searching (fresh search restarts the flow)", conv.State())
	}
}

func TestCreateInitialBookingValidation(t *testing.T) {
	t.Parallel()

	kit, _, _ := testKit()
	ctx := signedInCtx(NewConversation(store.StateSearching))

	out, err := kit.CreateInitialBooking(ctx, CreateInitialBookingInput{BookingType: "flight"})
	if err != nil {
		t.Fatalf("CreateInitialBooking() error = %v", err)
	}
	if _, ok := out.(ErrorPayload); !ok {
		t.Errorf("no passengers: got %T, want ErrorPayload", out)
	}

	out, err = kit.CreateInitialBooking(ctx, CreateInitialBookingInput{
		PassengerIDs: []string{"not-a-uuid"}, BookingType: "flight",
	})
	if err != nil {
		t.Fatalf("CreateInitialBooking() error = %v", err)
	}
	if _, ok := out.(ErrorPayload); !ok {
		t.Errorf("bad passenger id: got %T, want ErrorPayload", out)
	}
}

func TestCreateInitialBookingRejectsForeignPassengers(t *testing.T) {
	t.Parallel()

	bookings := &fakeBookings{}
	payments := &fakePayments{verified: make(map[string]bool)}
	passengers := &fakePassengers{verifyErr: store.ErrForbidden}
	kit := NewKit(&fakeFlights{}, fakeSeats{}, fakeStays{}, bookings, passengers, payments, nil)

	out, err := kit.CreateInitialBooking(signedInCtx(NewConversation(store.StateSearching)), CreateInitialBookingInput{
		PassengerIDs: []string{uuid.NewString()}, BookingType: "flight",
	})
	if err != nil {
		t.Fatalf("CreateInitialBooking() error = %v", err)
	}
	if _, ok := out.(ErrorPayload); !ok {
		t.Errorf("foreign passenger: got %T, want ErrorPayload", out)
	}
}

func TestCreateInitialBookingSummarizes(t *testing.T) {
	t.Parallel()

	kit, bookings, _ := testKit()

	out, err := kit.CreateInitialBooking(signedInCtx(NewConversation(store.StateSearching)), CreateInitialBookingInput{
		PassengerIDs: []string{uuid.NewString()}, BookingType: "flight", Origin: "AMS", Destination: "JFK",
	})
	if err != nil {
		t.Fatalf("CreateInitialBooking() error = %v", err)
	}

	summary, ok := out.(BookingSummary)
	if !ok {
		t.Fatalf("CreateInitialBooking() = %T, want BookingSummary", out)
	}
	if summary.Reference != bookings.created.Reference {
		t.Errorf("Reference = %q, want %q", summary.Reference, bookings.created.Reference)
	}
	if summary.BookingType != "flight" || summary.Status != "pending" {
		t.Errorf("summary = %+v", summary)
	}
}

func TestCreateFlightBookingTimestampValidation(t *testing.T) {
	t.Parallel()

	kit, _, _ := testKit()
	ctx := signedInCtx(NewConversation(store.StateSearching))

	out, err := kit.CreateFlightBooking(ctx, CreateFlightBookingInput{
		BookingID:          uuid.NewString(),
		DepartureTimestamp: "yesterday",
		ArrivalTimestamp:   "2026-03-01T11:30:00Z",
	})
	if err != nil {
		t.Fatalf("CreateFlightBooking() error = %v", err)
	}
	if _, ok := out.(ErrorPayload); !ok {
		t.Errorf("bad timestamp: got %T, want ErrorPayload", out)
	}
}

func TestCreateAccommodationBookingDateOrder(t *testing.T) {
	t.Parallel()

	kit, _, _ := testKit()
	ctx := signedInCtx(NewConversation(store.StateSearching))

	out, err := kit.CreateAccommodationBooking(ctx, CreateAccommodationBookingInput{
		BookingID:    uuid.NewString(),
		Name:         "Canal View",
		CheckInDate:  "2026-03-08",
		CheckOutDate: "2026-03-01",
	})
	if err != nil {
		t.Fatalf("CreateAccommodationBooking() error = %v", err)
	}
	if _, ok := out.(ErrorPayload); !ok {
		t.Errorf("inverted dates: got %T, want ErrorPayload", out)
	}

	// Full timestamps are accepted for the date fields.
	out, err = kit.CreateAccommodationBooking(ctx, CreateAccommodationBookingInput{
		BookingID:    uuid.NewString(),
		Name:         "Canal View",
		CheckInDate:  "2026-03-01T15:00:00Z",
		CheckOutDate: "2026-03-08T11:00:00Z",
	})
	if err != nil {
		t.Fatalf("CreateAccommodationBooking() error = %v", err)
	}
	if _, ok := out.(BookingSummary); !ok {
		t.Errorf("timestamp dates: got %T, want BookingSummary", out)
	}
}

func TestSearchFlightsPropagatesProviderError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("provider down")
	kit := NewKit(&fakeFlights{err: wantErr}, fakeSeats{}, fakeStays{}, &fakeBookings{}, &fakePassengers{}, &fakePayments{verified: map[string]bool{}}, nil)

	_, err := kit.SearchFlights(signedInCtx(NewConversation(store.StateSearching)), SearchFlightsInput{})
	if !errors.Is(err, wantErr) {
		t.Errorf("SearchFlights() error = %v, want %v", err, wantErr)
	}
}

func TestListPassengers(t *testing.T) {
	t.Parallel()

	passengers := &fakePassengers{listed: []store.Passenger{
		{ID: uuid.New(), FullName: "Ada Lovelace"},
		{ID: uuid.New(), FullName: "Grace Hopper"},
	}}
	kit := NewKit(&fakeFlights{}, fakeSeats{}, fakeStays{}, &fakeBookings{}, passengers, &fakePayments{verified: map[string]bool{}}, nil)

	out, err := kit.ListPassengers(signedInCtx(NewConversation(store.StateSearching)), ListPassengersInput{})
	if err != nil {
		t.Fatalf("ListPassengers() error = %v", err)
	}
	got, ok := out.(ListPassengersOutput)
	if !ok {
		t.Fatalf("ListPassengers() = %T, want ListPassengersOutput", out)
	}
	if len(got.Passengers) != 2 || got.Passengers[0].FullName != "Ada Lovelace" {
		t.Errorf("Passengers = %+v", got.Passengers)
	}
}
