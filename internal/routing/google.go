package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/geo"
)

const defaultGoogleBaseURL = "https://maps.googleapis.com/maps/api/directions/json"

type googleDirectionsResponse struct {
	Routes       []googleRoute `json:"routes"`
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

type googleRoute struct {
	Legs     []googleLeg    `json:"legs"`
	Overview googlePolyline `json:"overview_polyline"`
}

type googleLeg struct {
	Duration googleValue `json:"duration"`
	Distance googleValue `json:"distance"`
}

type googleValue struct {
	Value int64  `json:"value"`
	Text  string `json:"text"`
}

type googlePolyline struct {
	Points string `json:"points"`
}

// GoogleProvider calls the Google Directions API in driving mode.
type GoogleProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewGoogleProvider(baseURL, apiKey string, client *http.Client) *GoogleProvider {
	if baseURL == "" {
		baseURL = defaultGoogleBaseURL
	}
	return &GoogleProvider{baseURL: baseURL, apiKey: apiKey, httpClient: client}
}

func (p *GoogleProvider) Name() Source { return SourceGoogle }

func (p *GoogleProvider) Directions(ctx context.Context, origin, dest geo.Coordinate) (*Directions, error) {
	params := url.Values{}
	params.Set("origin", fmt.Sprintf("%.6f,%.6f", origin.Lat, origin.Lng))
	params.Set("destination", fmt.Sprintf("%.6f,%.6f", dest.Lat, dest.Lng))
	params.Set("mode", "driving")
	params.Set("units", "metric")
	params.Set("key", p.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call google directions: %w: %w", ErrRouteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google directions returned status %d: %w", resp.StatusCode, ErrRouteUnavailable)
	}

	var body googleDirectionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode google directions response: %w: %w", ErrRouteUnavailable, err)
	}
	if body.Status != "OK" {
		return nil, fmt.Errorf("google directions status %s %s: %w", body.Status, body.ErrorMessage, ErrRouteUnavailable)
	}
	if len(body.Routes) == 0 {
		return nil, fmt.Errorf("google directions found no route: %w", ErrRouteUnavailable)
	}

	route := body.Routes[0]
	d := &Directions{Polyline: route.Overview.Points}
	for _, leg := range route.Legs {
		d.DistanceMeters += float64(leg.Distance.Value)
		d.DurationSeconds += float64(leg.Duration.Value)
	}
	return d, nil
}
