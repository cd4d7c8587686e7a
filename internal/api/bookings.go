package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/voyago/voyago/internal/auth"
	"github.com/voyago/voyago/internal/log"
	"github.com/voyago/voyago/internal/store"
)

// BookingsHandler serves the persisted bookings the assistant has created.
type BookingsHandler struct {
	bookings *store.Bookings
	logger   log.Logger
}

// NewBookings creates a bookings handler.
func NewBookings(bookings *store.Bookings, logger log.Logger) *BookingsHandler {
	return &BookingsHandler{bookings: bookings, logger: logger}
}

// BookingView is the API shape of a booking row.
type BookingView struct {
	ID            string `json:"id"`
	Reference     string `json:"reference"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`
	TotalAmount   string `json:"totalAmount"`
	Currency      string `json:"currency"`
	Origin        string `json:"origin,omitempty"`
	Destination   string `json:"destination,omitempty"`
	StartDate     string `json:"startDate,omitempty"`
	EndDate       string `json:"endDate,omitempty"`
}

// FlightLegView is one flight attached to a booking.
type FlightLegView struct {
	FlightNumber string    `json:"flightNumber"`
	Airline      string    `json:"airline"`
	Origin       string    `json:"origin"`
	Destination  string    `json:"destination"`
	DepartureAt  time.Time `json:"departureAt"`
	ArrivalAt    time.Time `json:"arrivalAt"`
	CabinClass   string    `json:"cabinClass"`
	Price        string    `json:"price"`
	Currency     string    `json:"currency"`
}

// StayView is one accommodation attached to a booking.
type StayView struct {
	Name     string `json:"name"`
	City     string `json:"city"`
	Country  string `json:"country"`
	Type     string `json:"type"`
	CheckIn  string `json:"checkIn"`
	CheckOut string `json:"checkOut"`
	Price    string `json:"price"`
	Currency string `json:"currency"`
}

// BookingDetail is a booking with its components.
type BookingDetail struct {
	BookingView
	Flights []FlightLegView `json:"flights"`
	Stays   []StayView      `json:"stays"`
}

// List handles GET /api/v1/bookings.
func (h *BookingsHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.FromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "no identity", h.logger)
		return
	}

	bookings, err := h.bookings.List(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("failed to list bookings", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list bookings", h.logger)
		return
	}

	views := make([]BookingView, 0, len(bookings))
	for _, b := range bookings {
		views = append(views, bookingView(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": views}, h.logger)
}

// Get handles GET /api/v1/bookings/{id}.
func (h *BookingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.FromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "no identity", h.logger)
		return
	}

	bookingID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a UUID", h.logger)
		return
	}

	booking, err := h.bookings.Get(r.Context(), bookingID, identity.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrForbidden) {
			writeError(w, http.StatusNotFound, "not_found", "booking not found", h.logger)
			return
		}
		h.logger.Error("failed to load booking", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load booking", h.logger)
		return
	}

	legs, err := h.bookings.FlightLegs(r.Context(), bookingID, identity.UserID)
	if err != nil {
		h.logger.Error("failed to load flight legs", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load booking", h.logger)
		return
	}
	stays, err := h.bookings.Stays(r.Context(), bookingID, identity.UserID)
	if err != nil {
		h.logger.Error("failed to load stays", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load booking", h.logger)
		return
	}

	detail := BookingDetail{
		BookingView: bookingView(booking),
		Flights:     make([]FlightLegView, 0, len(legs)),
		Stays:       make([]StayView, 0, len(stays)),
	}
	for _, leg := range legs {
		detail.Flights = append(detail.Flights, FlightLegView{
			FlightNumber: leg.FlightNumber,
			Airline:      leg.Airline,
			Origin:       leg.Origin,
			Destination:  leg.Destination,
			DepartureAt:  leg.DepartureAt,
			ArrivalAt:    leg.ArrivalAt,
			CabinClass:   leg.CabinClass,
			Price:        leg.PriceAmount,
			Currency:     leg.Currency,
		})
	}
	for _, stay := range stays {
		detail.Stays = append(detail.Stays, StayView{
			Name:     stay.Name,
			City:     stay.City,
			Country:  stay.Country,
			Type:     stay.Type,
			CheckIn:  stay.CheckIn.Format(time.DateOnly),
			CheckOut: stay.CheckOut.Format(time.DateOnly),
			Price:    stay.PriceAmount,
			Currency: stay.Currency,
		})
	}

	writeJSON(w, http.StatusOK, detail, h.logger)
}

func bookingView(b store.Booking) BookingView {
	v := BookingView{
		ID:            b.ID.String(),
		Reference:     b.Reference,
		Type:          string(b.Type),
		Status:        b.Status,
		PaymentStatus: b.PaymentStatus,
		TotalAmount:   b.TotalAmount,
		Currency:      b.Currency,
		Origin:        b.Origin,
		Destination:   b.Destination,
	}
	if b.StartDate != nil {
		v.StartDate = b.StartDate.Format(time.DateOnly)
	}
	if b.EndDate != nil {
		v.EndDate = b.EndDate.Format(time.DateOnly)
	}
	return v
}
