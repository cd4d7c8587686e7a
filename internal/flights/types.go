// Package flights talks to the flight inventory provider and normalizes its
// offers into the flat records the conversation works with.
package flights

// Endpoint describes one end of a flight.
type Endpoint struct {
	CityName    string `json:"cityName"`
	AirportCode string `json:"airportCode"`
	AirportName string `json:"airportName"`
	Timestamp   string `json:"timestamp"`
	Terminal    string `json:"terminal"`
	Gate        string `json:"gate"`
}

// Connection summarizes the shared airport of a two-segment itinerary.
type Connection struct {
	AirportCode        string `json:"airportCode"`
	AirportName        string `json:"airportName"`
	ArrivalTimestamp   string `json:"arrivalTimestamp"`
	DepartureTimestamp string `json:"departureTimestamp"`
}

// Offer is one normalized flight offer. Offer ids are provider-issued and
// valid only for the lifetime of one search; nothing here is persisted.
type Offer struct {
	OfferID              string      `json:"offerId"`
	FlightNumber         string      `json:"flightNumber"`
	Departure            Endpoint    `json:"departure"`
	Connection           *Connection `json:"connection,omitempty"`
	Arrival              Endpoint    `json:"arrival"`
	Airlines             []string    `json:"airlines"`
	CabinClass           string      `json:"cabinClass"`
	TotalDistanceInMiles float64     `json:"totalDistanceInMiles"`
	PriceInEuros         float64     `json:"priceInEuros"`
}

// Provider wire types, mirroring the Duffel offer shape.

// ProviderCarrier is an airline reference on a segment.
type ProviderCarrier struct {
	IATACode string `json:"iata_code"`
	Name     string `json:"name"`
}

// ProviderAirport is an airport reference on a segment.
type ProviderAirport struct {
	IATACode string `json:"iata_code"`
	Name     string `json:"name"`
	CityName string `json:"city_name"`
}

// ProviderSegmentPassenger carries per-passenger segment details.
type ProviderSegmentPassenger struct {
	CabinClass string `json:"cabin_class"`
}

// ProviderSegment is one flown segment of an offer slice.
type ProviderSegment struct {
	Origin                       ProviderAirport            `json:"origin"`
	Destination                  ProviderAirport            `json:"destination"`
	DepartingAt                  string                     `json:"departing_at"`
	ArrivingAt                   string                     `json:"arriving_at"`
	OriginTerminal               string                     `json:"origin_terminal"`
	DestinationTerminal          string                     `json:"destination_terminal"`
	Distance                     string                     `json:"distance"`
	MarketingCarrier             ProviderCarrier            `json:"marketing_carrier"`
	MarketingCarrierFlightNumber string                     `json:"marketing_carrier_flight_number"`
	OperatingCarrier             ProviderCarrier            `json:"operating_carrier"`
	Passengers                   []ProviderSegmentPassenger `json:"passengers"`
}

// ProviderSlice is one requested journey of an offer.
type ProviderSlice struct {
	Segments []ProviderSegment `json:"segments"`
}

// ProviderOffer is one raw offer from the inventory provider.
type ProviderOffer struct {
	ID          string          `json:"id"`
	TotalAmount string          `json:"total_amount"`
	Slices      []ProviderSlice `json:"slices"`
}

// Query describes one flight search.
type Query struct {
	Origin        string
	Destination   string
	DepartureDate string
	Passengers    []string
}
