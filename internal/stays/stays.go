// Package stays produces accommodation search results through generative
// structured output. There is no real accommodation inventory behind it.
package stays

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/voyago/voyago/internal/log"
)

// ErrGeneration indicates the model failed to produce a usable result set.
var ErrGeneration = errors.New("accommodation generation failed")

// Result-set bounds: the conversation expects a handful of options, unranked.
const (
	minResults = 3
	maxResults = 7
)

// Location places an accommodation within its city.
type Location struct {
	City     string `json:"city" jsonschema_description:"City of the accommodation"`
	Area     string `json:"area" jsonschema_description:"Area of the accommodation"`
	Distance string `json:"distance" jsonschema_description:"Distance from a significant landmark and the landmark's name"`
}

// Accommodation is one generated lodging option.
type Accommodation struct {
	ID            string   `json:"id" jsonschema_description:"Unique identifier for the accommodation"`
	Name          string   `json:"name" jsonschema_description:"Name of the accommodation"`
	Location      Location `json:"location"`
	Type          string   `json:"type" jsonschema:"enum=Hotel,enum=Apartment,enum=Boutique Hotel" jsonschema_description:"Type of the accommodation"`
	Amenities     []string `json:"amenities" jsonschema_description:"Amenities, from: wifi, parking, spa, kitchen, pool, gym, breakfast"`
	Rating        float64  `json:"rating" jsonschema:"minimum=0,maximum=5" jsonschema_description:"Rating of the accommodation"`
	PricePerNight float64  `json:"pricePerNight" jsonschema_description:"Price per night in Euros"`
	Currency      string   `json:"currency" jsonschema:"enum=EUR" jsonschema_description:"Currency of the price"`
}

type resultSet struct {
	Accommodations []Accommodation `json:"accommodations"`
}

// Query describes one accommodation search.
type Query struct {
	DestinationCountry string
	DestinationCity    string
	CheckInDate        string
	CheckOutDate       string
}

// Searcher generates accommodation options for a destination and date range.
type Searcher struct {
	g      *genkit.Genkit
	model  ai.Model
	logger log.Logger
}

// NewSearcher creates an accommodation searcher bound to the given model.
func NewSearcher(g *genkit.Genkit, model ai.Model, logger log.Logger) *Searcher {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Searcher{g: g, model: model, logger: logger.With("component", "stays")}
}

var validTypes = map[string]struct{}{
	"Hotel": {}, "Apartment": {}, "Boutique Hotel": {},
}

var validAmenities = map[string]struct{}{
	"wifi": {}, "parking": {}, "spa": {}, "kitchen": {}, "pool": {}, "gym": {}, "breakfast": {},
}

// Search returns 3-7 generated accommodations, unranked.
func (s *Searcher) Search(ctx context.Context, q Query) ([]Accommodation, error) {
	prompt := fmt.Sprintf(
		"Generate a list of %d-%d accommodations in %s, %s for the dates %s to %s follow the schema CAREFULLY",
		minResults, maxResults, q.DestinationCity, q.DestinationCountry, q.CheckInDate, q.CheckOutDate)

	resp, err := genkit.Generate(ctx, s.g,
		ai.WithModel(s.model),
		ai.WithPrompt(prompt),
		ai.WithOutputType(resultSet{}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	var set resultSet
	if err := resp.Output(&set); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	valid := sanitize(set.Accommodations)
	if len(valid) == 0 {
		return nil, fmt.Errorf("%w: no valid results", ErrGeneration)
	}
	if len(valid) > maxResults {
		valid = valid[:maxResults]
	}

	s.logger.Debug("accommodation search completed",
		"city", q.DestinationCity, "country", q.DestinationCountry, "results", len(valid))
	return valid, nil
}

// sanitize drops entries that violate the contract and scrubs unknown
// amenities from the ones that remain.
func sanitize(in []Accommodation) []Accommodation {
	out := make([]Accommodation, 0, len(in))
	for _, a := range in {
		if a.Name == "" || a.PricePerNight <= 0 {
			continue
		}
		if _, ok := validTypes[a.Type]; !ok {
			continue
		}
		if a.Rating < 0 || a.Rating > 5 {
			continue
		}
		a.Currency = "EUR"
		kept := a.Amenities[:0]
		for _, amenity := range a.Amenities {
			if _, ok := validAmenities[amenity]; ok {
				kept = append(kept, amenity)
			}
		}
		a.Amenities = kept
		out = append(out, a)
	}
	return out
}
