package flights

import (
	"context"
	"fmt"
	"slices"

	"github.com/voyago/voyago/internal/log"
)

// Provider issues offer searches against the flight inventory.
type Provider interface {
	SearchOffers(ctx context.Context, q Query) ([]ProviderOffer, error)
}

// Service runs flight searches: provider call, normalization, carrier
// filter, result cap.
type Service struct {
	provider        Provider
	excludedCarrier string
	maxResults      int
	logger          log.Logger
}

// NewService creates a flight search service. Offers whose airline list
// contains excludedCarrier are dropped after normalization; at most
// maxResults offers are returned, in provider order.
func NewService(provider Provider, excludedCarrier string, maxResults int, logger log.Logger) *Service {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Service{
		provider:        provider,
		excludedCarrier: excludedCarrier,
		maxResults:      maxResults,
		logger:          logger.With("component", "flights.search"),
	}
}

// Search returns normalized, filtered offers for the query.
func (s *Service) Search(ctx context.Context, q Query) ([]Offer, error) {
	raw, err := s.provider.SearchOffers(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search flights %s-%s: %w", q.Origin, q.Destination, err)
	}

	offers := s.filter(Normalize(raw))
	s.logger.Debug("flight search completed",
		"origin", q.Origin, "destination", q.Destination,
		"raw", len(raw), "returned", len(offers))
	return offers, nil
}

// filter drops excluded-carrier offers and truncates to the result cap.
// Filtering happens post-normalization and is idempotent.
func (s *Service) filter(offers []Offer) []Offer {
	kept := make([]Offer, 0, len(offers))
	for _, offer := range offers {
		if s.excludedCarrier != "" && slices.Contains(offer.Airlines, s.excludedCarrier) {
			continue
		}
		kept = append(kept, offer)
		if len(kept) == s.maxResults {
			break
		}
	}
	return kept
}
