package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// memQuerier is an in-memory implementation of every store querier, used so
// the business rules (ownership, widening, optimistic concurrency) can be
// tested without a database.
type memQuerier struct {
	mu       sync.Mutex
	chats    map[uuid.UUID]Chat
	bookings map[uuid.UUID]Booking
	legs     map[uuid.UUID][]FlightLeg
	stays    map[uuid.UUID][]Stay
	pax      map[uuid.UUID]Passenger
	accounts map[uuid.UUID]Account
	auths    map[string]PaymentAuthorization

	// conflictUpdates fails the first N UpdateBookingIfVersion calls to
	// simulate lost optimistic-concurrency races.
	conflictUpdates int
}

func newMemQuerier() *memQuerier {
	return &memQuerier{
		chats:    make(map[uuid.UUID]Chat),
		bookings: make(map[uuid.UUID]Booking),
		legs:     make(map[uuid.UUID][]FlightLeg),
		stays:    make(map[uuid.UUID][]Stay),
		pax:      make(map[uuid.UUID]Passenger),
		accounts: make(map[uuid.UUID]Account),
		auths:    make(map[string]PaymentAuthorization),
	}
}

// --- ChatQuerier ---

func (m *memQuerier) UpsertChat(_ context.Context, chat Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.chats[chat.ID]; ok && existing.UserID != chat.UserID {
		return ErrForbidden
	}
	m.chats[chat.ID] = chat
	return nil
}

func (m *memQuerier) GetChat(_ context.Context, id uuid.UUID) (Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat, ok := m.chats[id]
	if !ok {
		return Chat{}, ErrNotFound
	}
	return chat, nil
}

func (m *memQuerier) ListChats(_ context.Context, userID uuid.UUID) ([]Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Chat
	for _, chat := range m.chats {
		if chat.UserID == userID {
			out = append(out, chat)
		}
	}
	return out, nil
}

func (m *memQuerier) DeleteChat(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chats, id)
	return nil
}

// --- BookingQuerier ---

func (m *memQuerier) InsertBooking(_ context.Context, b Booking, _ []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.ID] = b
	return nil
}

func (m *memQuerier) GetBooking(_ context.Context, id uuid.UUID) (Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return Booking{}, ErrNotFound
	}
	return b, nil
}

func (m *memQuerier) GetBookingByReference(_ context.Context, reference string) (Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.Reference == reference {
			return b, nil
		}
	}
	return Booking{}, ErrNotFound
}

func (m *memQuerier) ListBookings(_ context.Context, userID uuid.UUID) ([]Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Booking
	for _, b := range m.bookings {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memQuerier) ListFlightLegs(_ context.Context, bookingID uuid.UUID) ([]FlightLeg, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]FlightLeg(nil), m.legs[bookingID]...), nil
}

func (m *memQuerier) ListStays(_ context.Context, bookingID uuid.UUID) ([]Stay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Stay(nil), m.stays[bookingID]...), nil
}

func (m *memQuerier) UpdateBookingIfVersion(_ context.Context, b Booking, expectedVersion int32) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conflictUpdates > 0 {
		m.conflictUpdates--
		// Simulate a concurrent writer bumping the version between the
		// caller's read and its guarded update.
		stored := m.bookings[b.ID]
		stored.Version++
		m.bookings[b.ID] = stored
		return false, nil
	}

	stored, ok := m.bookings[b.ID]
	if !ok || stored.Version != expectedVersion {
		return false, nil
	}
	b.Version = expectedVersion + 1
	m.bookings[b.ID] = b
	return true, nil
}

func (m *memQuerier) InsertFlightLeg(_ context.Context, leg FlightLeg) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.legs[leg.BookingID] = append(m.legs[leg.BookingID], leg)
	return nil
}

func (m *memQuerier) InsertStay(_ context.Context, stay Stay) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stays[stay.BookingID] = append(m.stays[stay.BookingID], stay)
	return nil
}

func (m *memQuerier) WithTx(_ context.Context, fn func(BookingQuerier) error) error {
	return fn(m)
}

// --- PassengerQuerier ---

func (m *memQuerier) InsertPassenger(_ context.Context, p Passenger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pax[p.ID] = p
	return nil
}

func (m *memQuerier) ListPassengers(_ context.Context, userID uuid.UUID) ([]Passenger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Passenger
	for _, p := range m.pax {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memQuerier) GetPassenger(_ context.Context, id uuid.UUID) (Passenger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pax[id]
	if !ok {
		return Passenger{}, ErrNotFound
	}
	return p, nil
}

// --- PaymentQuerier ---

func (m *memQuerier) GetAccount(_ context.Context, userID uuid.UUID) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[userID]
	if !ok {
		return Account{}, ErrNotFound
	}
	return a, nil
}

func (m *memQuerier) UpsertAuthorization(_ context.Context, auth PaymentAuthorization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.auths[auth.OfferID]; ok {
		return nil
	}
	m.auths[auth.OfferID] = auth
	return nil
}

func (m *memQuerier) GetAuthorization(_ context.Context, offerID string) (PaymentAuthorization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.auths[offerID]
	if !ok {
		return PaymentAuthorization{}, ErrNotFound
	}
	return a, nil
}

func (m *memQuerier) CompleteAuthorization(_ context.Context, offerID string, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.auths[offerID]
	if !ok || a.UserID != userID {
		return ErrNotFound
	}
	a.Completed = true
	m.auths[offerID] = a
	return nil
}
