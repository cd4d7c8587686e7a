package flights

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voyago/voyago/internal/log"
)

// ErrProvider indicates the inventory provider rejected or failed a request.
var ErrProvider = errors.New("flight provider error")

// maxConnections is fixed: the conversation never offers itineraries with
// more than one connection.
const maxConnections = 1

// DuffelClient is a minimal client for the Duffel offer-request API.
type DuffelClient struct {
	baseURL         string
	token           string
	supplierTimeout time.Duration
	httpClient      *http.Client
	logger          log.Logger
}

// NewDuffelClient creates a Duffel client. supplierTimeout bounds how long
// upstream suppliers may take; the HTTP timeout leaves headroom above it.
func NewDuffelClient(baseURL, token string, supplierTimeout time.Duration, logger log.Logger) *DuffelClient {
	if logger == nil {
		logger = log.NewNop()
	}
	return &DuffelClient{
		baseURL:         baseURL,
		token:           token,
		supplierTimeout: supplierTimeout,
		httpClient:      &http.Client{Timeout: supplierTimeout + 10*time.Second},
		logger:          logger.With("component", "flights.duffel"),
	}
}

type offerRequestSlice struct {
	Origin        string  `json:"origin"`
	Destination   string  `json:"destination"`
	DepartureDate string  `json:"departure_date"`
	ArrivalTime   *string `json:"arrival_time"`
	DepartureTime *string `json:"departure_time"`
}

type offerRequestPassenger struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type offerRequestBody struct {
	Data struct {
		MaxConnections  int                     `json:"max_connections"`
		SupplierTimeout int                     `json:"supplier_timeout"`
		Slices          []offerRequestSlice     `json:"slices"`
		Passengers      []offerRequestPassenger `json:"passengers"`
	} `json:"data"`
}

type offerRequestResponse struct {
	Data struct {
		Offers []ProviderOffer `json:"offers"`
	} `json:"data"`
}

// SearchOffers creates an offer request and returns the raw offers.
func (c *DuffelClient) SearchOffers(ctx context.Context, q Query) ([]ProviderOffer, error) {
	var body offerRequestBody
	body.Data.MaxConnections = maxConnections
	body.Data.SupplierTimeout = int(c.supplierTimeout.Milliseconds())
	body.Data.Slices = []offerRequestSlice{{
		Origin:        q.Origin,
		Destination:   q.Destination,
		DepartureDate: q.DepartureDate,
	}}
	for _, p := range q.Passengers {
		body.Data.Passengers = append(body.Data.Passengers, offerRequestPassenger{ID: p, Type: "adult"})
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal offer request: %w", err)
	}

	url := c.baseURL + "/air/offer_requests?return_offers=true"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("create offer request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Duffel-Version", "v2")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProvider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Bounded read so a hostile response can't blow up memory.
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d: %s", ErrProvider, resp.StatusCode, detail)
	}

	var decoded offerRequestResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrProvider, err)
	}

	c.logger.Debug("offer request completed",
		"origin", q.Origin, "destination", q.Destination,
		"offers", len(decoded.Data.Offers), "elapsed", time.Since(start))
	return decoded.Data.Offers, nil
}
