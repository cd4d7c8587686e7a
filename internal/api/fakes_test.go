package api

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voyago/voyago/internal/auth"
	"github.com/voyago/voyago/internal/store"
)

// In-memory queriers backing the real store types in handler tests.

type chatQ struct {
	mu    sync.Mutex
	chats map[uuid.UUID]store.Chat
}

func newChatQ() *chatQ { return &chatQ{chats: make(map[uuid.UUID]store.Chat)} }

func (q *chatQ) UpsertChat(_ context.Context, chat store.Chat) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if existing, ok := q.chats[chat.ID]; ok {
		if existing.UserID != chat.UserID {
			return store.ErrForbidden
		}
		chat.CreatedAt = existing.CreatedAt
	} else {
		chat.CreatedAt = time.Now()
	}
	chat.UpdatedAt = time.Now()
	q.chats[chat.ID] = chat
	return nil
}

func (q *chatQ) GetChat(_ context.Context, id uuid.UUID) (store.Chat, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	chat, ok := q.chats[id]
	if !ok {
		return store.Chat{}, store.ErrNotFound
	}
	return chat, nil
}

func (q *chatQ) ListChats(_ context.Context, userID uuid.UUID) ([]store.Chat, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []store.Chat
	for _, c := range q.chats {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (q *chatQ) DeleteChat(_ context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.chats, id)
	return nil
}

type bookingQ struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]store.Booking
	legs     map[uuid.UUID][]store.FlightLeg
	stays    map[uuid.UUID][]store.Stay
}

func newBookingQ() *bookingQ {
	return &bookingQ{
		bookings: make(map[uuid.UUID]store.Booking),
		legs:     make(map[uuid.UUID][]store.FlightLeg),
		stays:    make(map[uuid.UUID][]store.Stay),
	}
}

func (q *bookingQ) InsertBooking(_ context.Context, b store.Booking, _ []uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.bookings[b.ID] = b
	return nil
}

func (q *bookingQ) GetBooking(_ context.Context, id uuid.UUID) (store.Booking, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	b, ok := q.bookings[id]
	if !ok {
		return store.Booking{}, store.ErrNotFound
	}
	return b, nil
}

func (q *bookingQ) GetBookingByReference(_ context.Context, ref string) (store.Booking, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, b := range q.bookings {
		if b.Reference == ref {
			return b, nil
		}
	}
	return store.Booking{}, store.ErrNotFound
}

func (q *bookingQ) ListBookings(_ context.Context, userID uuid.UUID) ([]store.Booking, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []store.Booking
	for _, b := range q.bookings {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (q *bookingQ) ListFlightLegs(_ context.Context, bookingID uuid.UUID) ([]store.FlightLeg, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.legs[bookingID], nil
}

func (q *bookingQ) ListStays(_ context.Context, bookingID uuid.UUID) ([]store.Stay, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stays[bookingID], nil
}

func (q *bookingQ) UpdateBookingIfVersion(_ context.Context, b store.Booking, expected int32) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	current, ok := q.bookings[b.ID]
	if !ok || current.Version != expected {
		return false, nil
	}
	b.Version = expected + 1
	q.bookings[b.ID] = b
	return true, nil
}

func (q *bookingQ) InsertFlightLeg(_ context.Context, leg store.FlightLeg) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.legs[leg.BookingID] = append(q.legs[leg.BookingID], leg)
	return nil
}

func (q *bookingQ) InsertStay(_ context.Context, stay store.Stay) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stays[stay.BookingID] = append(q.stays[stay.BookingID], stay)
	return nil
}

func (q *bookingQ) WithTx(_ context.Context, fn func(store.BookingQuerier) error) error {
	return fn(q)
}

type passengerQ struct {
	mu         sync.Mutex
	passengers map[uuid.UUID]store.Passenger
}

func newPassengerQ() *passengerQ {
	return &passengerQ{passengers: make(map[uuid.UUID]store.Passenger)}
}

func (q *passengerQ) InsertPassenger(_ context.Context, p store.Passenger) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.passengers[p.ID] = p
	return nil
}

func (q *passengerQ) ListPassengers(_ context.Context, userID uuid.UUID) ([]store.Passenger, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []store.Passenger
	for _, p := range q.passengers {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (q *passengerQ) GetPassenger(_ context.Context, id uuid.UUID) (store.Passenger, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	p, ok := q.passengers[id]
	if !ok {
		return store.Passenger{}, store.ErrNotFound
	}
	return p, nil
}

type paymentQ struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]store.Account
	auths    map[string]store.PaymentAuthorization
}

func newPaymentQ() *paymentQ {
	return &paymentQ{
		accounts: make(map[uuid.UUID]store.Account),
		auths:    make(map[string]store.PaymentAuthorization),
	}
}

func (q *paymentQ) GetAccount(_ context.Context, userID uuid.UUID) (store.Account, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	a, ok := q.accounts[userID]
	if !ok {
		return store.Account{}, store.ErrNotFound
	}
	return a, nil
}

func (q *paymentQ) UpsertAuthorization(_ context.Context, auth store.PaymentAuthorization) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.auths[auth.OfferID]; ok {
		return nil
	}
	q.auths[auth.OfferID] = auth
	return nil
}

func (q *paymentQ) GetAuthorization(_ context.Context, offerID string) (store.PaymentAuthorization, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	a, ok := q.auths[offerID]
	if !ok {
		return store.PaymentAuthorization{}, store.ErrNotFound
	}
	return a, nil
}

func (q *paymentQ) CompleteAuthorization(_ context.Context, offerID string, userID uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	a, ok := q.auths[offerID]
	if !ok {
		return store.ErrNotFound
	}
	if a.UserID != userID {
		return store.ErrForbidden
	}
	a.Completed = true
	q.auths[offerID] = a
	return nil
}

type sessionQ struct {
	mu       sync.Mutex
	sessions map[string]auth.Session // keyed by token hash
}

func newSessionQ() *sessionQ { return &sessionQ{sessions: make(map[string]auth.Session)} }

func (q *sessionQ) add(token string, userID uuid.UUID, email string, expiresAt time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sessions[auth.HashToken(token)] = auth.Session{
		Token:     token,
		UserID:    userID,
		Email:     email,
		ExpiresAt: expiresAt,
	}
}

func (q *sessionQ) GetSessionByTokenHash(_ context.Context, tokenHash string) (auth.Session, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	s, ok := q.sessions[tokenHash]
	if !ok {
		return auth.Session{}, store.ErrNotFound
	}
	return s, nil
}
