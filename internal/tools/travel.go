package tools

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/voyago/voyago/internal/auth"
	"github.com/voyago/voyago/internal/flights"
	"github.com/voyago/voyago/internal/log"
	"github.com/voyago/voyago/internal/stays"
	"github.com/voyago/voyago/internal/store"
)

// Collaborator interfaces, defined here because the kit is the consumer.

// FlightSearcher runs flight searches.
type FlightSearcher interface {
	Search(ctx context.Context, q flights.Query) ([]flights.Offer, error)
}

// SeatChartGenerator produces seating charts.
type SeatChartGenerator interface {
	Generate(ctx context.Context, flightNumber string) ([]flights.Seat, error)
}

// AccommodationSearcher runs accommodation searches.
type AccommodationSearcher interface {
	Search(ctx context.Context, q stays.Query) ([]stays.Accommodation, error)
}

// BookingWriter persists bookings and their components.
type BookingWriter interface {
	CreateInitial(ctx context.Context, userID uuid.UUID, bookingType store.BookingType, origin, destination string, passengerIDs []uuid.UUID) (store.Booking, error)
	AddFlight(ctx context.Context, bookingID, userID uuid.UUID, leg store.FlightLeg) (store.Booking, error)
	AddStay(ctx context.Context, bookingID, userID uuid.UUID, stay store.Stay) (store.Booking, error)
}

// PassengerReader reads traveler profiles.
type PassengerReader interface {
	List(ctx context.Context, userID uuid.UUID) ([]store.Passenger, error)
	Verify(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error
}

// PaymentService opens and checks per-offer payment authorizations.
type PaymentService interface {
	RequestAuthorization(ctx context.Context, offerID string, userID uuid.UUID) error
	Verified(ctx context.Context, offerID string, userID uuid.UUID) (bool, error)
}

// Kit bundles the travel tool executors and their collaborators.
type Kit struct {
	flights    FlightSearcher
	seats      SeatChartGenerator
	stays      AccommodationSearcher
	bookings   BookingWriter
	passengers PassengerReader
	payments   PaymentService
	logger     log.Logger
}

// NewKit creates the travel tool kit.
func NewKit(fs FlightSearcher, sg SeatChartGenerator, as AccommodationSearcher, bw BookingWriter, pr PassengerReader, ps PaymentService, logger log.Logger) *Kit {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Kit{
		flights:    fs,
		seats:      sg,
		stays:      as,
		bookings:   bw,
		passengers: pr,
		payments:   ps,
		logger:     logger.With("component", "tools.travel"),
	}
}

// Register builds every travel tool and adds it to the registry.
func (k *Kit) Register(r *Registry) error {
	add := func(tool *Tool, err error) error {
		if err != nil {
			return err
		}
		return r.Add(tool)
	}

	if err := add(NewTool(SearchFlights,
		"Search for flights based on the given parameters", k.SearchFlights)); err != nil {
		return err
	}
	if err := add(NewTool(SelectSeats,
		"Select seats for a flight", k.SelectSeats)); err != nil {
		return err
	}
	if err := add(NewTool(DisplayReservation,
		"Display pending reservation details", k.DisplayReservation)); err != nil {
		return err
	}
	if err := add(NewTool(AuthorizePayment,
		"User will enter credentials to authorize payment, wait for user to respond when they are done", k.AuthorizePayment)); err != nil {
		return err
	}
	if err := add(NewTool(VerifyPayment,
		"Verify payment status", k.VerifyPayment)); err != nil {
		return err
	}
	if err := add(NewTool(DisplayBoardingPass,
		"Display a boarding pass", k.DisplayBoardingPass)); err != nil {
		return err
	}
	if err := add(NewTool(SearchAccommodations,
		"Search for accommodations based on the given parameters", k.SearchAccommodations)); err != nil {
		return err
	}
	if err := add(NewTool(CreateInitialBooking,
		"Create the initial booking for the selected passengers", k.CreateInitialBooking)); err != nil {
		return err
	}
	if err := add(NewTool(CreateFlightBooking,
		"Attach a booked flight leg to an existing booking", k.CreateFlightBooking)); err != nil {
		return err
	}
	if err := add(NewTool(CreateAccommodationBooking,
		"Attach a booked accommodation to an existing booking", k.CreateAccommodationBooking)); err != nil {
		return err
	}
	return add(NewTool(ListPassengers,
		"List the signed-in user's saved passenger profiles", k.ListPassengers))
}

const notSignedIn = "User is not signed in to perform this action!"

// --- flight search and seats ---

// SearchFlightsInput are the flight search parameters.
type SearchFlightsInput struct {
	Origin        string   `json:"origin" jsonschema_description:"Origin airport iata code"`
	Destination   string   `json:"destination" jsonschema_description:"Destination airport iata code"`
	DepartureDate string   `json:"departureDate" jsonschema_description:"Departure date in ISO 8601 format"`
	Passengers    []string `json:"passengers,omitempty" jsonschema_description:"Passenger ids travelling"`
}

// SearchFlightsOutput wraps the normalized offers.
type SearchFlightsOutput struct {
	Flights []flights.Offer `json:"flights"`
}

// SearchFlights searches the inventory provider and resets the trip state
// to searching: a fresh search restarts the flow.
func (k *Kit) SearchFlights(ctx context.Context, in SearchFlightsInput) (SearchFlightsOutput, error) {
	offers, err := k.flights.Search(ctx, flights.Query{
		Origin:        in.Origin,
		Destination:   in.Destination,
		DepartureDate: in.DepartureDate,
		Passengers:    in.Passengers,
	})
	if err != nil {
		return SearchFlightsOutput{}, err
	}
	ConversationFromContext(ctx).Set(store.StateSearching)
	return SearchFlightsOutput{Flights: offers}, nil
}

// SelectSeatsInput identifies the flight to chart.
type SelectSeatsInput struct {
	FlightNumber string `json:"flightNumber" jsonschema_description:"Flight number"`
}

// SelectSeatsOutput wraps the generated chart.
type SelectSeatsOutput struct {
	Seats []flights.Seat `json:"seats"`
}

// SelectSeats returns a complete synthetic seating chart.
func (k *Kit) SelectSeats(ctx context.Context, in SelectSeatsInput) (SelectSeatsOutput, error) {
	seats, err := k.seats.Generate(ctx, in.FlightNumber)
	if err != nil {
		return SelectSeatsOutput{}, err
	}
	return SelectSeatsOutput{Seats: seats}, nil
}

// --- reservation and payment ---

// ReservationEndpoint is one end of a reservation display.
type ReservationEndpoint struct {
	CityName    string `json:"cityName" jsonschema_description:"Name of the city"`
	AirportCode string `json:"airportCode" jsonschema_description:"Code of the airport"`
	Timestamp   string `json:"timestamp" jsonschema_description:"ISO 8601 date and time"`
	Gate        string `json:"gate" jsonschema_description:"Gate"`
	Terminal    string `json:"terminal" jsonschema_description:"Terminal"`
}

// DisplayReservationInput is the pending reservation summary.
type DisplayReservationInput struct {
	OfferID           string              `json:"offerId" jsonschema_description:"Offer ID"`
	Seats             []string            `json:"seats" jsonschema_description:"Array of selected seat numbers"`
	FlightNumber      string              `json:"flightNumber" jsonschema_description:"Flight number"`
	Departure         ReservationEndpoint `json:"departure"`
	Arrival           ReservationEndpoint `json:"arrival"`
	PassengerName     string              `json:"passengerName" jsonschema_description:"Name of the passenger"`
	TotalPriceInEuros float64             `json:"totalPriceInEuros" jsonschema_description:"Total price in Euros including flight and seat"`
}

// DisplayReservation echoes the reservation for the renderer. Requires a
// signed-in user; on success the trip state moves to reserved.
func (k *Kit) DisplayReservation(ctx context.Context, in DisplayReservationInput) (any, error) {
	if _, err := auth.FromContext(ctx); err != nil {
		return ErrorPayload{Error: notSignedIn}, nil
	}
	ConversationFromContext(ctx).Set(store.StateReserved)
	return in, nil
}

// OfferRef identifies one provider offer.
type OfferRef struct {
	OfferID string `json:"offerId" jsonschema_description:"Unique identifier for the offer"`
}

// AuthorizePayment opens the payment authorization for the offer and moves
// the trip state to payment-pending. The user completes it out of band
// through the payment endpoint.
func (k *Kit) AuthorizePayment(ctx context.Context, in OfferRef) (any, error) {
	identity, err := auth.FromContext(ctx)
	if err != nil {
		return ErrorPayload{Error: notSignedIn}, nil
	}
	if err := k.payments.RequestAuthorization(ctx, in.OfferID, identity.UserID); err != nil {
		return nil, err
	}
	ConversationFromContext(ctx).Set(store.StatePaymentPending)
	return OfferRef{OfferID: in.OfferID}, nil
}

// VerifyPaymentOutput reports the authorization status.
type VerifyPaymentOutput struct {
	HasCompletedPayment bool `json:"hasCompletedPayment"`
}

// VerifyPayment checks whether the offer's authorization was completed. A
// completed authorization moves the trip state to paid; anything else
// reports false and leaves the state alone.
func (k *Kit) VerifyPayment(ctx context.Context, in OfferRef) (any, error) {
	identity, err := auth.FromContext(ctx)
	if err != nil {
		return ErrorPayload{Error: notSignedIn}, nil
	}
	verified, err := k.payments.Verified(ctx, in.OfferID, identity.UserID)
	if err != nil {
		return nil, err
	}
	if verified {
		ConversationFromContext(ctx).Set(store.StatePaid)
	}
	return VerifyPaymentOutput{HasCompletedPayment: verified}, nil
}

// BoardingPassEndpoint is one end of a boarding pass.
type BoardingPassEndpoint struct {
	CityName    string `json:"cityName" jsonschema_description:"Name of the city"`
	AirportCode string `json:"airportCode" jsonschema_description:"Code of the airport"`
	AirportName string `json:"airportName" jsonschema_description:"Name of the airport"`
	Timestamp   string `json:"timestamp" jsonschema_description:"ISO 8601 date and time"`
	Terminal    string `json:"terminal" jsonschema_description:"Terminal"`
	Gate        string `json:"gate" jsonschema_description:"Gate"`
}

// DisplayBoardingPassInput is the boarding pass to render.
type DisplayBoardingPassInput struct {
	ReservationID string               `json:"reservationId" jsonschema_description:"Unique identifier for the reservation"`
	PassengerName string               `json:"passengerName" jsonschema_description:"Name of the passenger, in title case"`
	FlightNumber  string               `json:"flightNumber" jsonschema_description:"Flight number"`
	Seat          string               `json:"seat" jsonschema_description:"Seat number"`
	Departure     BoardingPassEndpoint `json:"departure"`
	Arrival       BoardingPassEndpoint `json:"arrival"`
}

// DisplayBoardingPass echoes the boarding pass for the renderer. It refuses
// to run before the payment has been verified; on success the trip state
// moves to confirmed.
func (k *Kit) DisplayBoardingPass(ctx context.Context, in DisplayBoardingPassInput) (any, error) {
	conv := ConversationFromContext(ctx)
	switch conv.State() {
	case store.StatePaid, store.StateConfirmed:
	default:
		return ErrorPayload{Error: "payment has not been verified for this reservation"}, nil
	}
	conv.Set(store.StateConfirmed)
	return in, nil
}

// --- accommodations ---

// SearchAccommodationsInput are the accommodation search parameters.
type SearchAccommodationsInput struct {
	DestinationCountry string `json:"destinationCountry" jsonschema_description:"Country of the destination"`
	DestinationCity    string `json:"destinationCity" jsonschema_description:"City of the destination"`
	CheckInDate        string `json:"checkInDate" jsonschema_description:"Check in date in ISO 8601 format"`
	CheckOutDate       string `json:"checkOutDate" jsonschema_description:"Check out date in ISO 8601 format"`
}

// SearchAccommodationsOutput wraps the generated options.
type SearchAccommodationsOutput struct {
	Accommodations []stays.Accommodation `json:"accommodations"`
}

// SearchAccommodations generates lodging options for the destination.
func (k *Kit) SearchAccommodations(ctx context.Context, in SearchAccommodationsInput) (SearchAccommodationsOutput, error) {
	results, err := k.stays.Search(ctx, stays.Query{
		DestinationCountry: in.DestinationCountry,
		DestinationCity:    in.DestinationCity,
		CheckInDate:        in.CheckInDate,
		CheckOutDate:       in.CheckOutDate,
	})
	if err != nil {
		return SearchAccommodationsOutput{}, err
	}
	return SearchAccommodationsOutput{Accommodations: results}, nil
}

// --- booking persistence ---

// CreateInitialBookingInput creates the booking shell.
type CreateInitialBookingInput struct {
	PassengerIDs []string `json:"passengerIds" jsonschema_description:"Ids of the passengers on this booking"`
	BookingType  string   `json:"bookingType" jsonschema_description:"Booking type: flight, accommodation or both"`
	Origin       string   `json:"origin,omitempty" jsonschema_description:"Origin airport iata code, for flight bookings"`
	Destination  string   `json:"destination,omitempty" jsonschema_description:"Destination city or airport"`
}

// BookingSummary is the persisted-booking view returned to the conversation.
type BookingSummary struct {
	BookingID     string `json:"bookingId"`
	Reference     string `json:"reference"`
	BookingType   string `json:"bookingType"`
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`
	TotalAmount   string `json:"totalAmount"`
	Currency      string `json:"currency"`
	StartDate     string `json:"startDate,omitempty"`
	EndDate       string `json:"endDate,omitempty"`
}

// CreateInitialBooking creates a pending booking for the given passengers.
func (k *Kit) CreateInitialBooking(ctx context.Context, in CreateInitialBookingInput) (any, error) {
	identity, err := auth.FromContext(ctx)
	if err != nil {
		return ErrorPayload{Error: notSignedIn}, nil
	}

	if len(in.PassengerIDs) == 0 {
		return ErrorPayload{Error: "at least one passenger is required"}, nil
	}
	passengerIDs := make([]uuid.UUID, 0, len(in.PassengerIDs))
	for _, raw := range in.PassengerIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return ErrorPayload{Error: fmt.Sprintf("invalid passenger id %q", raw)}, nil
		}
		passengerIDs = append(passengerIDs, id)
	}
	if err := k.passengers.Verify(ctx, identity.UserID, passengerIDs); err != nil {
		return ErrorPayload{Error: err.Error()}, nil
	}

	booking, err := k.bookings.CreateInitial(ctx, identity.UserID,
		store.BookingType(in.BookingType), in.Origin, in.Destination, passengerIDs)
	if err != nil {
		return nil, err
	}
	return summarize(booking), nil
}

// CreateFlightBookingInput attaches a flight leg.
type CreateFlightBookingInput struct {
	BookingID          string  `json:"bookingId" jsonschema_description:"Booking id returned by createInitialBooking"`
	FlightNumber       string  `json:"flightNumber" jsonschema_description:"Flight number"`
	Airline            string  `json:"airline,omitempty" jsonschema_description:"Operating airline name"`
	Origin             string  `json:"origin" jsonschema_description:"Origin airport iata code"`
	Destination        string  `json:"destination" jsonschema_description:"Destination airport iata code"`
	DepartureTimestamp string  `json:"departureTimestamp" jsonschema_description:"ISO 8601 departure date and time"`
	ArrivalTimestamp   string  `json:"arrivalTimestamp" jsonschema_description:"ISO 8601 arrival date and time"`
	CabinClass         string  `json:"cabinClass,omitempty" jsonschema_description:"Cabin class"`
	PriceInEuros       float64 `json:"priceInEuros" jsonschema_description:"Leg price in Euros"`
}

// CreateFlightBooking inserts the leg and widens the parent booking.
func (k *Kit) CreateFlightBooking(ctx context.Context, in CreateFlightBookingInput) (any, error) {
	identity, err := auth.FromContext(ctx)
	if err != nil {
		return ErrorPayload{Error: notSignedIn}, nil
	}
	bookingID, err := uuid.Parse(in.BookingID)
	if err != nil {
		return ErrorPayload{Error: fmt.Sprintf("invalid booking id %q", in.BookingID)}, nil
	}
	departure, err := time.Parse(time.RFC3339, in.DepartureTimestamp)
	if err != nil {
		return ErrorPayload{Error: fmt.Sprintf("invalid departure timestamp %q", in.DepartureTimestamp)}, nil
	}
	arrival, err := time.Parse(time.RFC3339, in.ArrivalTimestamp)
	if err != nil {
		return ErrorPayload{Error: fmt.Sprintf("invalid arrival timestamp %q", in.ArrivalTimestamp)}, nil
	}

	booking, err := k.bookings.AddFlight(ctx, bookingID, identity.UserID, store.FlightLeg{
		FlightNumber: in.FlightNumber,
		Airline:      in.Airline,
		Origin:       in.Origin,
		Destination:  in.Destination,
		DepartureAt:  departure,
		ArrivalAt:    arrival,
		CabinClass:   in.CabinClass,
		PriceAmount:  formatEuros(in.PriceInEuros),
		Currency:     "EUR",
	})
	if err != nil {
		return nil, err
	}
	return summarize(booking), nil
}

// CreateAccommodationBookingInput attaches an accommodation.
type CreateAccommodationBookingInput struct {
	BookingID         string  `json:"bookingId" jsonschema_description:"Booking id returned by createInitialBooking"`
	Name              string  `json:"name" jsonschema_description:"Name of the accommodation"`
	City              string  `json:"city,omitempty" jsonschema_description:"City of the accommodation"`
	Country           string  `json:"country,omitempty" jsonschema_description:"Country of the accommodation"`
	Type              string  `json:"type,omitempty" jsonschema_description:"Type of the accommodation"`
	CheckInDate       string  `json:"checkInDate" jsonschema_description:"Check in date in ISO 8601 format"`
	CheckOutDate      string  `json:"checkOutDate" jsonschema_description:"Check out date in ISO 8601 format"`
	TotalPriceInEuros float64 `json:"totalPriceInEuros" jsonschema_description:"Total stay price in Euros"`
}

// CreateAccommodationBooking inserts the stay and widens the parent booking.
func (k *Kit) CreateAccommodationBooking(ctx context.Context, in CreateAccommodationBookingInput) (any, error) {
	identity, err := auth.FromContext(ctx)
	if err != nil {
		return ErrorPayload{Error: notSignedIn}, nil
	}
	bookingID, err := uuid.Parse(in.BookingID)
	if err != nil {
		return ErrorPayload{Error: fmt.Sprintf("invalid booking id %q", in.BookingID)}, nil
	}
	checkIn, err := parseDate(in.CheckInDate)
	if err != nil {
		return ErrorPayload{Error: fmt.Sprintf("invalid check in date %q", in.CheckInDate)}, nil
	}
	checkOut, err := parseDate(in.CheckOutDate)
	if err != nil {
		return ErrorPayload{Error: fmt.Sprintf("invalid check out date %q", in.CheckOutDate)}, nil
	}
	if !checkOut.After(checkIn) {
		return ErrorPayload{Error: "check out date must be after check in date"}, nil
	}

	booking, err := k.bookings.AddStay(ctx, bookingID, identity.UserID, store.Stay{
		Name:        in.Name,
		City:        in.City,
		Country:     in.Country,
		Type:        in.Type,
		CheckIn:     checkIn,
		CheckOut:    checkOut,
		PriceAmount: formatEuros(in.TotalPriceInEuros),
		Currency:    "EUR",
	})
	if err != nil {
		return nil, err
	}
	return summarize(booking), nil
}

// ListPassengersInput has no parameters.
type ListPassengersInput struct{}

// PassengerSummary is one traveler profile as seen by the conversation.
type PassengerSummary struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
}

// ListPassengersOutput wraps the profiles.
type ListPassengersOutput struct {
	Passengers []PassengerSummary `json:"passengers"`
}

// ListPassengers returns the signed-in user's saved passenger profiles.
func (k *Kit) ListPassengers(ctx context.Context, _ ListPassengersInput) (any, error) {
	identity, err := auth.FromContext(ctx)
	if err != nil {
		return ErrorPayload{Error: notSignedIn}, nil
	}
	passengers, err := k.passengers.List(ctx, identity.UserID)
	if err != nil {
		return nil, err
	}
	out := ListPassengersOutput{Passengers: make([]PassengerSummary, 0, len(passengers))}
	for _, p := range passengers {
		out.Passengers = append(out.Passengers, PassengerSummary{ID: p.ID.String(), FullName: p.FullName})
	}
	return out, nil
}

func summarize(b store.Booking) BookingSummary {
	s := BookingSummary{
		BookingID:     b.ID.String(),
		Reference:     b.Reference,
		BookingType:   string(b.Type),
		Status:        b.Status,
		PaymentStatus: b.PaymentStatus,
		TotalAmount:   b.TotalAmount,
		Currency:      b.Currency,
	}
	if b.StartDate != nil {
		s.StartDate = b.StartDate.Format("2006-01-02")
	}
	if b.EndDate != nil {
		s.EndDate = b.EndDate.Format("2006-01-02")
	}
	return s
}

func formatEuros(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// parseDate accepts a plain date or a full RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
