// Package places resolves typed text to places through the Google Places web service.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/route"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/pkg/domain"
	"go.uber.org/zap"
)

const (
	defaultBaseURL       = "https://maps.googleapis.com/maps/api"
	autocompleteEndpoint = "/place/autocomplete/json"
	detailsEndpoint      = "/place/details/json"
	detailsFields        = "place_id,name,formatted_address,geometry/location"
)

type autocompleteResponse struct {
	Predictions []struct {
		Description string `json:"description"`
		PlaceID     string `json:"place_id"`
	} `json:"predictions"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

type detailsResponse struct {
	Result struct {
		PlaceID          string `json:"place_id"`
		Name             string `json:"name"`
		FormattedAddress string `json:"formatted_address"`
		Geometry         *struct {
			Location *struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"result"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

// Config configures the Google Places client.
type Config struct {
	BaseURL  string
	APIKey   string
	Language string
	Timeout  time.Duration
}

// GoogleClient implements autocomplete and place details lookups.
type GoogleClient struct {
	baseURL    string
	apiKey     string
	language   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewGoogleClient creates a Places client.
func NewGoogleClient(cfg Config, logger *zap.Logger) *GoogleClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GoogleClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
		language:   cfg.Language,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Autocomplete returns candidate places for a partial query. Candidates carry an identifier
// and description but no coordinates; call Details to resolve one.
func (g *GoogleClient) Autocomplete(ctx context.Context, query, sessionToken string) ([]route.Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []route.Place{}, nil
	}

	params := url.Values{}
	params.Set("input", query)
	params.Set("key", g.apiKey)
	if sessionToken != "" {
		params.Set("sessiontoken", sessionToken)
	}
	if g.language != "" {
		params.Set("language", g.language)
	}

	var resp autocompleteResponse
	if err := g.get(ctx, autocompleteEndpoint, params, &resp); err != nil {
		return nil, domain.NewPlaceResolutionError("autocomplete lookup failed", err)
	}

	switch resp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return []route.Place{}, nil
	default:
		return nil, domain.NewPlaceResolutionError("autocomplete lookup failed",
			fmt.Errorf("places API status %s: %s", resp.Status, resp.ErrorMessage))
	}

	out := make([]route.Place, 0, len(resp.Predictions))
	for _, p := range resp.Predictions {
		out = append(out, route.Place{PlaceID: p.PlaceID, Description: p.Description})
	}
	return out, nil
}

// Details resolves a place identifier. A place without geometry is returned with a nil Location.
func (g *GoogleClient) Details(ctx context.Context, placeID string) (*route.Place, error) {
	if placeID == "" {
		return nil, domain.NewValidationError("place id is required")
	}

	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", detailsFields)
	params.Set("key", g.apiKey)
	if g.language != "" {
		params.Set("language", g.language)
	}

	var resp detailsResponse
	if err := g.get(ctx, detailsEndpoint, params, &resp); err != nil {
		return nil, domain.NewPlaceResolutionError(fmt.Sprintf("details lookup for %s failed", placeID), err)
	}

	switch resp.Status {
	case "OK":
	case "NOT_FOUND", "ZERO_RESULTS", "INVALID_REQUEST":
		return nil, domain.NewNotFoundError("Place", placeID)
	default:
		return nil, domain.NewPlaceResolutionError(fmt.Sprintf("details lookup for %s failed", placeID),
			fmt.Errorf("places API status %s: %s", resp.Status, resp.ErrorMessage))
	}

	r := resp.Result
	place := &route.Place{
		PlaceID:          r.PlaceID,
		Description:      r.Name,
		FormattedAddress: r.FormattedAddress,
	}
	if place.PlaceID == "" {
		place.PlaceID = placeID
	}
	if r.Geometry != nil && r.Geometry.Location != nil {
		place.Location = &route.LatLng{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng}
	} else {
		g.logger.Warn("place resolved without coordinates", zap.String("place_id", placeID))
	}
	return place, nil
}

func (g *GoogleClient) get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("places request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("places API HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse places response: %w", err)
	}
	return nil
}
