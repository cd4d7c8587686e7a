package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voyago/voyago/internal/auth"
)

// dbtx is the subset of pgx shared by *pgxpool.Pool and pgx.Tx, so the same
// query methods serve both pooled and transactional execution.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PG implements every store querier interface against PostgreSQL.
type PG struct {
	db   dbtx
	pool *pgxpool.Pool // nil inside a transaction
}

// NewPG creates the pgx-backed querier.
func NewPG(pool *pgxpool.Pool) *PG {
	return &PG{db: pool, pool: pool}
}

func mapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// --- chats ---

func (p *PG) UpsertChat(ctx context.Context, chat Chat) error {
	raw, err := json.Marshal(chat.Messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}

	// The update is guarded on owner so a conflicting id held by another
	// user is never overwritten, even when two first-saves race.
	tag, err := p.db.Exec(ctx, `
		INSERT INTO chat (id, user_id, messages, trip_state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (id) DO UPDATE
		SET messages = EXCLUDED.messages,
		    trip_state = EXCLUDED.trip_state,
		    updated_at = now()
		WHERE chat.user_id = EXCLUDED.user_id`,
		chat.ID, chat.UserID, raw, string(chat.TripState))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrForbidden
	}
	return nil
}

func (p *PG) GetChat(ctx context.Context, id uuid.UUID) (Chat, error) {
	var (
		chat Chat
		raw  []byte
	)
	err := p.db.QueryRow(ctx, `
		SELECT id, user_id, messages, trip_state, created_at, updated_at
		FROM chat WHERE id = $1`, id).
		Scan(&chat.ID, &chat.UserID, &raw, &chat.TripState, &chat.CreatedAt, &chat.UpdatedAt)
	if err != nil {
		return Chat{}, mapNoRows(err)
	}

	if err := json.Unmarshal(raw, &chat.Messages); err != nil {
		return Chat{}, fmt.Errorf("unmarshal messages: %w", err)
	}
	if chat.Messages == nil {
		chat.Messages = []*ai.Message{}
	}
	return chat, nil
}

func (p *PG) ListChats(ctx context.Context, userID uuid.UUID) ([]Chat, error) {
	rows, err := p.db.Query(ctx, `
		SELECT id, user_id, messages, trip_state, created_at, updated_at
		FROM chat WHERE user_id = $1
		ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		var (
			chat Chat
			raw  []byte
		)
		if err := rows.Scan(&chat.ID, &chat.UserID, &raw, &chat.TripState, &chat.CreatedAt, &chat.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &chat.Messages); err != nil {
			return nil, fmt.Errorf("unmarshal messages for chat %s: %w", chat.ID, err)
		}
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

func (p *PG) DeleteChat(ctx context.Context, id uuid.UUID) error {
	tag, err := p.db.Exec(ctx, `DELETE FROM chat WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- bookings ---

func (p *PG) InsertBooking(ctx context.Context, b Booking, passengerIDs []uuid.UUID) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO booking (id, user_id, reference, booking_type, status, payment_status,
		                     total_amount, currency, origin, destination, start_date, end_date,
		                     version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		b.ID, b.UserID, b.Reference, string(b.Type), b.Status, b.PaymentStatus,
		b.TotalAmount, b.Currency, b.Origin, b.Destination, b.StartDate, b.EndDate,
		b.Version, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return err
	}

	for _, pid := range passengerIDs {
		if _, err := p.db.Exec(ctx, `
			INSERT INTO booking_passenger (booking_id, passenger_id) VALUES ($1, $2)`,
			b.ID, pid); err != nil {
			return fmt.Errorf("attach passenger %s: %w", pid, err)
		}
	}
	return nil
}

func (p *PG) GetBooking(ctx context.Context, id uuid.UUID) (Booking, error) {
	return p.scanBooking(p.db.QueryRow(ctx, `
		SELECT id, user_id, reference, booking_type, status, payment_status,
		       total_amount, currency, origin, destination, start_date, end_date,
		       version, created_at, updated_at
		FROM booking WHERE id = $1`, id))
}

func (p *PG) GetBookingByReference(ctx context.Context, reference string) (Booking, error) {
	return p.scanBooking(p.db.QueryRow(ctx, `
		SELECT id, user_id, reference, booking_type, status, payment_status,
		       total_amount, currency, origin, destination, start_date, end_date,
		       version, created_at, updated_at
		FROM booking WHERE reference = $1`, reference))
}

func (p *PG) scanBooking(row pgx.Row) (Booking, error) {
	var b Booking
	err := row.Scan(&b.ID, &b.UserID, &b.Reference, &b.Type, &b.Status, &b.PaymentStatus,
		&b.TotalAmount, &b.Currency, &b.Origin, &b.Destination, &b.StartDate, &b.EndDate,
		&b.Version, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return Booking{}, mapNoRows(err)
	}
	return b, nil
}

func (p *PG) ListBookings(ctx context.Context, userID uuid.UUID) ([]Booking, error) {
	rows, err := p.db.Query(ctx, `
		SELECT id, user_id, reference, booking_type, status, payment_status,
		       total_amount, currency, origin, destination, start_date, end_date,
		       version, created_at, updated_at
		FROM booking WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(&b.ID, &b.UserID, &b.Reference, &b.Type, &b.Status, &b.PaymentStatus,
			&b.TotalAmount, &b.Currency, &b.Origin, &b.Destination, &b.StartDate, &b.EndDate,
			&b.Version, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (p *PG) UpdateBookingIfVersion(ctx context.Context, b Booking, expectedVersion int32) (bool, error) {
	tag, err := p.db.Exec(ctx, `
		UPDATE booking
		SET booking_type = $1, status = $2, payment_status = $3, total_amount = $4,
		    start_date = $5, end_date = $6, version = version + 1, updated_at = $7
		WHERE id = $8 AND version = $9`,
		string(b.Type), b.Status, b.PaymentStatus, b.TotalAmount,
		b.StartDate, b.EndDate, b.UpdatedAt, b.ID, expectedVersion)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (p *PG) InsertFlightLeg(ctx context.Context, leg FlightLeg) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO booking_flight (id, booking_id, flight_number, airline, origin, destination,
		                            departure_at, arrival_at, cabin_class, price_amount, price_currency)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		leg.ID, leg.BookingID, leg.FlightNumber, leg.Airline, leg.Origin, leg.Destination,
		leg.DepartureAt, leg.ArrivalAt, leg.CabinClass, leg.PriceAmount, leg.Currency)
	return err
}

func (p *PG) InsertStay(ctx context.Context, stay Stay) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO booking_stay (id, booking_id, name, city, country, stay_type,
		                          check_in, check_out, price_amount, price_currency)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		stay.ID, stay.BookingID, stay.Name, stay.City, stay.Country, stay.Type,
		stay.CheckIn, stay.CheckOut, stay.PriceAmount, stay.Currency)
	return err
}

func (p *PG) ListFlightLegs(ctx context.Context, bookingID uuid.UUID) ([]FlightLeg, error) {
	rows, err := p.db.Query(ctx, `
		SELECT id, booking_id, flight_number, airline, origin, destination,
		       departure_at, arrival_at, cabin_class, price_amount, price_currency
		FROM booking_flight WHERE booking_id = $1
		ORDER BY departure_at`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var legs []FlightLeg
	for rows.Next() {
		var leg FlightLeg
		if err := rows.Scan(&leg.ID, &leg.BookingID, &leg.FlightNumber, &leg.Airline, &leg.Origin,
			&leg.Destination, &leg.DepartureAt, &leg.ArrivalAt, &leg.CabinClass,
			&leg.PriceAmount, &leg.Currency); err != nil {
			return nil, err
		}
		legs = append(legs, leg)
	}
	return legs, rows.Err()
}

func (p *PG) ListStays(ctx context.Context, bookingID uuid.UUID) ([]Stay, error) {
	rows, err := p.db.Query(ctx, `
		SELECT id, booking_id, name, city, country, stay_type,
		       check_in, check_out, price_amount, price_currency
		FROM booking_stay WHERE booking_id = $1
		ORDER BY check_in`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stays []Stay
	for rows.Next() {
		var stay Stay
		if err := rows.Scan(&stay.ID, &stay.BookingID, &stay.Name, &stay.City, &stay.Country,
			&stay.Type, &stay.CheckIn, &stay.CheckOut, &stay.PriceAmount, &stay.Currency); err != nil {
			return nil, err
		}
		stays = append(stays, stay)
	}
	return stays, rows.Err()
}

// WithTx runs fn inside a database transaction. Calling WithTx on a querier
// that is already transactional is a programming error.
func (p *PG) WithTx(ctx context.Context, fn func(BookingQuerier) error) error {
	if p.pool == nil {
		return fmt.Errorf("WithTx: already inside a transaction")
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&PG{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// --- passengers ---

func (p *PG) InsertPassenger(ctx context.Context, passenger Passenger) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO passenger (id, user_id, full_name, date_of_birth, passport_no, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		passenger.ID, passenger.UserID, passenger.FullName, passenger.DateOfBirth,
		passenger.PassportNo, passenger.CreatedAt)
	return err
}

func (p *PG) GetPassenger(ctx context.Context, id uuid.UUID) (Passenger, error) {
	var passenger Passenger
	err := p.db.QueryRow(ctx, `
		SELECT id, user_id, full_name, date_of_birth, passport_no, created_at
		FROM passenger WHERE id = $1`, id).
		Scan(&passenger.ID, &passenger.UserID, &passenger.FullName,
			&passenger.DateOfBirth, &passenger.PassportNo, &passenger.CreatedAt)
	if err != nil {
		return Passenger{}, mapNoRows(err)
	}
	return passenger, nil
}

func (p *PG) ListPassengers(ctx context.Context, userID uuid.UUID) ([]Passenger, error) {
	rows, err := p.db.Query(ctx, `
		SELECT id, user_id, full_name, date_of_birth, passport_no, created_at
		FROM passenger WHERE user_id = $1
		ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var passengers []Passenger
	for rows.Next() {
		var passenger Passenger
		if err := rows.Scan(&passenger.ID, &passenger.UserID, &passenger.FullName,
			&passenger.DateOfBirth, &passenger.PassportNo, &passenger.CreatedAt); err != nil {
			return nil, err
		}
		passengers = append(passengers, passenger)
	}
	return passengers, rows.Err()
}

// --- accounts, sessions, payments ---

func (p *PG) GetAccount(ctx context.Context, userID uuid.UUID) (Account, error) {
	var account Account
	err := p.db.QueryRow(ctx, `
		SELECT id, email, display_name, magic_word_hash, card_brand, card_last4
		FROM account WHERE id = $1`, userID).
		Scan(&account.ID, &account.Email, &account.DisplayName,
			&account.MagicWordHash, &account.CardBrand, &account.CardLast4)
	if err != nil {
		return Account{}, mapNoRows(err)
	}
	return account, nil
}

// GetSessionByTokenHash implements auth.SessionQuerier.
func (p *PG) GetSessionByTokenHash(ctx context.Context, tokenHash string) (auth.Session, error) {
	var sess auth.Session
	err := p.db.QueryRow(ctx, `
		SELECT s.token, s.user_id, a.email, s.expires_at
		FROM session s JOIN account a ON a.id = s.user_id
		WHERE s.token = $1`, tokenHash).
		Scan(&sess.Token, &sess.UserID, &sess.Email, &sess.ExpiresAt)
	if err != nil {
		return auth.Session{}, mapNoRows(err)
	}
	return sess, nil
}

func (p *PG) UpsertAuthorization(ctx context.Context, a PaymentAuthorization) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO payment_authorization (offer_id, user_id, completed, created_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (offer_id) DO NOTHING`,
		a.OfferID, a.UserID, a.Completed, a.CreatedAt)
	return err
}

func (p *PG) GetAuthorization(ctx context.Context, offerID string) (PaymentAuthorization, error) {
	var a PaymentAuthorization
	err := p.db.QueryRow(ctx, `
		SELECT offer_id, user_id, completed, created_at
		FROM payment_authorization WHERE offer_id = $1`, offerID).
		Scan(&a.OfferID, &a.UserID, &a.Completed, &a.CreatedAt)
	if err != nil {
		return PaymentAuthorization{}, mapNoRows(err)
	}
	return a, nil
}

func (p *PG) CompleteAuthorization(ctx context.Context, offerID string, userID uuid.UUID) error {
	tag, err := p.db.Exec(ctx, `
		UPDATE payment_authorization SET completed = true
		WHERE offer_id = $1 AND user_id = $2`, offerID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
