package flights

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/voyago/voyago/internal/log"
)

// Seat chart dimensions: every chart is a complete 6-across, 5-row grid.
const (
	seatRows    = 5
	seatLetters = "ABCDEF"
	maxSeatEUR  = 100
)

// Seat is one position in a seating chart.
type Seat struct {
	SeatNumber   string  `json:"seatNumber" jsonschema_description:"Seat identifier, e.g., 12A, 15C"`
	PriceInEuros float64 `json:"priceInEuros" jsonschema_description:"Seat price in Euros, less than 100 EUR"`
	IsAvailable  bool    `json:"isAvailable" jsonschema_description:"Whether the seat is available for booking"`
}

type seatChart struct {
	Seats []Seat `json:"seats"`
}

// SeatGenerator produces synthetic seating charts. This is a stand-in
// generator, not a real inventory query: the model is asked to simulate a
// cabin, and any incomplete or out-of-bounds chart is replaced by a locally
// generated one so callers always see a full grid.
type SeatGenerator struct {
	g      *genkit.Genkit
	model  ai.Model
	logger log.Logger
}

// NewSeatGenerator creates a seat generator bound to the given model.
func NewSeatGenerator(g *genkit.Genkit, model ai.Model, logger log.Logger) *SeatGenerator {
	if logger == nil {
		logger = log.NewNop()
	}
	return &SeatGenerator{g: g, model: model, logger: logger.With("component", "flights.seats")}
}

// Generate returns a complete seating chart for the flight.
func (s *SeatGenerator) Generate(ctx context.Context, flightNumber string) ([]Seat, error) {
	prompt := fmt.Sprintf(
		"Simulate available seats for flight number %s, 6 seats on each row and 5 rows in total, "+
			"adjust pricing based on location of seat, randomize availability of seats",
		flightNumber)

	resp, err := genkit.Generate(ctx, s.g,
		ai.WithModel(s.model),
		ai.WithPrompt(prompt),
		ai.WithOutputType(seatChart{}),
	)
	if err != nil {
		s.logger.Warn("seat generation failed, using local grid", "flight_number", flightNumber, "error", err)
		return s.localGrid(), nil
	}

	var chart seatChart
	if err := resp.Output(&chart); err != nil {
		s.logger.Warn("seat chart decode failed, using local grid", "flight_number", flightNumber, "error", err)
		return s.localGrid(), nil
	}

	if !validChart(chart.Seats) {
		s.logger.Warn("seat chart incomplete, using local grid", "flight_number", flightNumber, "seats", len(chart.Seats))
		return s.localGrid(), nil
	}
	return chart.Seats, nil
}

// validChart requires a full grid with every price inside (0, 100).
func validChart(seats []Seat) bool {
	if len(seats) != seatRows*len(seatLetters) {
		return false
	}
	for _, seat := range seats {
		if seat.SeatNumber == "" || seat.PriceInEuros <= 0 || seat.PriceInEuros >= maxSeatEUR {
			return false
		}
	}
	return true
}

// localGrid builds the fallback chart: window and front seats price higher,
// availability is randomized.
func (s *SeatGenerator) localGrid() []Seat {
	seats := make([]Seat, 0, seatRows*len(seatLetters))
	for row := 1; row <= seatRows; row++ {
		for _, letter := range seatLetters {
			price := 20.0 + float64(seatRows-row)*8
			if letter == 'A' || letter == 'F' {
				price += 15
			}
			seats = append(seats, Seat{
				SeatNumber:   fmt.Sprintf("%d%c", row, letter),
				PriceInEuros: price,
				IsAvailable:  rand.IntN(3) > 0,
			})
		}
	}
	return seats
}
