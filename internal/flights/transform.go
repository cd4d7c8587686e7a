package flights

import (
	"strconv"
)

// kmToMiles converts provider distances (kilometers) to miles.
const kmToMiles = 0.621371

// Normalize flattens raw provider offers into display records.
//
// Segment handling per offer (first slice only):
//   - one segment: direct flight, no connection block
//   - two segments: composite "A1 / B2" flight number and one connection
//     block summarizing the shared airport
//   - anything else: fall back to the first segment alone
//
// Airline names are deduplicated in first-seen order across marketing and
// operating carriers. Cabin class comes from the first segment and is
// assumed uniform. Terminal falls back to "" when absent; gates are never
// provided by the offer API.
func Normalize(offers []ProviderOffer) []Offer {
	normalized := make([]Offer, 0, len(offers))
	for _, raw := range offers {
		if len(raw.Slices) == 0 || len(raw.Slices[0].Segments) == 0 {
			continue
		}
		normalized = append(normalized, normalizeOffer(raw))
	}
	return normalized
}

func normalizeOffer(raw ProviderOffer) Offer {
	segments := raw.Slices[0].Segments
	price, _ := strconv.ParseFloat(raw.TotalAmount, 64)

	if len(segments) == 2 {
		first, second := segments[0], segments[1]
		return Offer{
			OfferID:      raw.ID,
			FlightNumber: segmentFlightNumber(first) + " / " + segmentFlightNumber(second),
			Departure:    departureEndpoint(first),
			Connection: &Connection{
				AirportCode:        first.Destination.IATACode,
				AirportName:        first.Destination.Name,
				ArrivalTimestamp:   first.ArrivingAt,
				DepartureTimestamp: second.DepartingAt,
			},
			Arrival:              arrivalEndpoint(second),
			Airlines:             dedupeAirlines(first, second),
			CabinClass:           cabinClass(first),
			TotalDistanceInMiles: (parseDistance(first) + parseDistance(second)) * kmToMiles,
			PriceInEuros:         price,
		}
	}

	// Direct flight, or fallback to the first segment for unexpected counts.
	seg := segments[0]
	return Offer{
		OfferID:              raw.ID,
		FlightNumber:         segmentFlightNumber(seg),
		Departure:            departureEndpoint(seg),
		Arrival:              arrivalEndpoint(seg),
		Airlines:             dedupeAirlines(seg),
		CabinClass:           cabinClass(seg),
		TotalDistanceInMiles: parseDistance(seg) * kmToMiles,
		PriceInEuros:         price,
	}
}

func segmentFlightNumber(seg ProviderSegment) string {
	return seg.MarketingCarrier.IATACode + seg.MarketingCarrierFlightNumber
}

func departureEndpoint(seg ProviderSegment) Endpoint {
	return Endpoint{
		CityName:    seg.Origin.CityName,
		AirportCode: seg.Origin.IATACode,
		AirportName: seg.Origin.Name,
		Timestamp:   seg.DepartingAt,
		Terminal:    seg.OriginTerminal,
		Gate:        "",
	}
}

func arrivalEndpoint(seg ProviderSegment) Endpoint {
	return Endpoint{
		CityName:    seg.Destination.CityName,
		AirportCode: seg.Destination.IATACode,
		AirportName: seg.Destination.Name,
		Timestamp:   seg.ArrivingAt,
		Terminal:    seg.DestinationTerminal,
		Gate:        "",
	}
}

// dedupeAirlines collects marketing then operating carrier names per
// segment, keeping the first occurrence of each.
func dedupeAirlines(segments ...ProviderSegment) []string {
	seen := make(map[string]struct{}, len(segments)*2)
	var airlines []string
	for _, seg := range segments {
		for _, name := range []string{seg.MarketingCarrier.Name, seg.OperatingCarrier.Name} {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			airlines = append(airlines, name)
		}
	}
	return airlines
}

func cabinClass(seg ProviderSegment) string {
	if len(seg.Passengers) == 0 {
		return ""
	}
	return seg.Passengers[0].CabinClass
}

func parseDistance(seg ProviderSegment) float64 {
	km, _ := strconv.ParseFloat(seg.Distance, 64)
	return km
}
