package flights

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type stubProvider struct {
	offers []ProviderOffer
	err    error
}

func (s *stubProvider) SearchOffers(_ context.Context, _ Query) ([]ProviderOffer, error) {
	return s.offers, s.err
}

func offerWithAirline(id, airline string) ProviderOffer {
	seg := segment("AMS", "JFK", "XX", "1")
	seg.MarketingCarrier.Name = airline
	seg.OperatingCarrier.Name = airline
	return ProviderOffer{ID: id, TotalAmount: "100.00", Slices: []ProviderSlice{{Segments: []ProviderSegment{seg}}}}
}

func TestSearchFiltersExcludedCarrier(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{offers: []ProviderOffer{
		offerWithAirline("off_1", "KLM"),
		offerWithAirline("off_2", "Duffel Airways"),
		offerWithAirline("off_3", "Lufthansa"),
	}}
	svc := NewService(provider, "Duffel Airways", 7, nil)

	offers, err := svc.Search(context.Background(), Query{Origin: "AMS", Destination: "JFK"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(offers) != 2 {
		t.Fatalf("Search() returned %d offers, want 2", len(offers))
	}
	if offers[0].OfferID != "off_1" || offers[1].OfferID != "off_3" {
		t.Errorf("provider order not preserved: %s, %s", offers[0].OfferID, offers[1].OfferID)
	}
}

func TestSearchCapsResults(t *testing.T) {
	t.Parallel()

	var raw []ProviderOffer
	for i := range 12 {
		raw = append(raw, offerWithAirline(fmt.Sprintf("off_%d", i), "KLM"))
	}
	svc := NewService(&stubProvider{offers: raw}, "Duffel Airways", 7, nil)

	offers, err := svc.Search(context.Background(), Query{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(offers) != 7 {
		t.Errorf("Search() returned %d offers, want 7", len(offers))
	}
	if offers[0].OfferID != "off_0" {
		t.Errorf("first offer = %s, want off_0", offers[0].OfferID)
	}
}

func TestSearchPropagatesProviderError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("upstream down")
	svc := NewService(&stubProvider{err: wantErr}, "", 7, nil)

	_, err := svc.Search(context.Background(), Query{Origin: "AMS", Destination: "JFK"})
	if !errors.Is(err, wantErr) {
		t.Errorf("Search() error = %v, want wrapped %v", err, wantErr)
	}
}

func TestFilterIdempotent(t *testing.T) {
	t.Parallel()

	svc := NewService(nil, "Duffel Airways", 7, nil)
	offers := []Offer{
		{OfferID: "a", Airlines: []string{"KLM"}},
		{OfferID: "b", Airlines: []string{"Duffel Airways", "KLM"}},
	}

	once := svc.filter(offers)
	twice := svc.filter(once)
	if len(once) != 1 || len(twice) != 1 || twice[0].OfferID != "a" {
		t.Errorf("filter not idempotent: once=%v twice=%v", once, twice)
	}
}
