// Package tools provides the travel tool registry: typed tool names, a
// generic type-safe constructor, schema validation ahead of execution, and
// the executors that carry a conversation through the booking flow.
package tools

// Name is a typed tool identifier. Handlers and the orchestrator refer to
// tools through these constants; free-form strings don't enter the registry.
type Name string

const (
	SearchFlights              Name = "searchFlights"
	SelectSeats                Name = "selectSeats"
	DisplayReservation         Name = "displayReservation"
	AuthorizePayment           Name = "authorizePayment"
	VerifyPayment              Name = "verifyPayment"
	DisplayBoardingPass        Name = "displayBoardingPass"
	SearchAccommodations       Name = "searchAccommodations"
	CreateInitialBooking       Name = "createInitialBooking"
	CreateFlightBooking        Name = "createFlightBooking"
	CreateAccommodationBooking Name = "createAccommodationBooking"
	ListPassengers             Name = "listPassengers"
)

// AllNames returns every tool name, the single source of truth for what the
// model may call.
func AllNames() []Name {
	return []Name{
		SearchFlights,
		SelectSeats,
		DisplayReservation,
		AuthorizePayment,
		VerifyPayment,
		DisplayBoardingPass,
		SearchAccommodations,
		CreateInitialBooking,
		CreateFlightBooking,
		CreateAccommodationBooking,
		ListPassengers,
	}
}
