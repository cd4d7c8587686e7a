package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/voyago/voyago/internal/auth"
	"github.com/voyago/voyago/internal/log"
	"github.com/voyago/voyago/internal/store"
)

// Profile serves the signed-in user's passengers and payment details.
type Profile struct {
	passengers *store.Passengers
	payments   *store.Payments
	logger     log.Logger
}

// NewProfile creates a profile handler.
func NewProfile(passengers *store.Passengers, payments *store.Payments, logger log.Logger) *Profile {
	return &Profile{passengers: passengers, payments: payments, logger: logger}
}

// PassengerView is the API shape of a saved traveler profile.
type PassengerView struct {
	ID          string `json:"id"`
	FullName    string `json:"fullName"`
	DateOfBirth string `json:"dateOfBirth,omitempty"`
	PassportNo  string `json:"passportNumber,omitempty"`
}

// Passengers handles GET /api/v1/passengers.
func (h *Profile) Passengers(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.FromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "no identity", h.logger)
		return
	}

	passengers, err := h.passengers.List(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("failed to list passengers", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list passengers", h.logger)
		return
	}

	views := make([]PassengerView, 0, len(passengers))
	for _, p := range passengers {
		v := PassengerView{
			ID:         p.ID.String(),
			FullName:   p.FullName,
			PassportNo: p.PassportNo,
		}
		if p.DateOfBirth != nil {
			v.DateOfBirth = p.DateOfBirth.Format(time.DateOnly)
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"passengers": views}, h.logger)
}

// PaymentInfoResponse carries the card alias only. The magic word never
// leaves the server, hashed or otherwise.
type PaymentInfoResponse struct {
	CardBrand string `json:"cardBrand"`
	CardLast4 string `json:"cardLast4"`
}

// PaymentInfo handles GET /api/v1/payment-info.
func (h *Profile) PaymentInfo(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.FromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "no identity", h.logger)
		return
	}

	brand, last4, err := h.payments.CardInfo(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("failed to load card info", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load payment info", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, PaymentInfoResponse{CardBrand: brand, CardLast4: last4}, h.logger)
}

// AuthorizePaymentRequest is the magic-word confirmation body.
type AuthorizePaymentRequest struct {
	OfferID   string `json:"offerId"`
	MagicWord string `json:"magicWord"`
}

// AuthorizePayment handles POST /api/v1/payment/authorize. The assistant's
// authorizePayment tool opens the pending authorization; this endpoint is
// where the user actually completes it out of band of the chat.
func (h *Profile) AuthorizePayment(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.FromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "no identity", h.logger)
		return
	}

	var req AuthorizePaymentRequest
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}
	if req.OfferID == "" || req.MagicWord == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "offerId and magicWord are required", h.logger)
		return
	}

	err = h.payments.Confirm(r.Context(), req.OfferID, identity.UserID, req.MagicWord)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]bool{"hasCompletedPayment": true}, h.logger)
	case errors.Is(err, store.ErrWrongMagicWord):
		writeError(w, http.StatusUnprocessableEntity, "wrong_magic_word", "magic word does not match", h.logger)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "no pending authorization for this offer", h.logger)
	case errors.Is(err, store.ErrForbidden):
		writeError(w, http.StatusNotFound, "not_found", "no pending authorization for this offer", h.logger)
	default:
		h.logger.Error("failed to confirm payment", "offer_id", req.OfferID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to confirm payment", h.logger)
	}
}
