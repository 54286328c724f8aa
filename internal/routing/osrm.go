package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/geo"
)

const defaultOSRMBaseURL = "http://router.project-osrm.org/route/v1/driving"

type osrmResponse struct {
	Code   string      `json:"code"`
	Routes []osrmRoute `json:"routes"`
}

type osrmRoute struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
	Geometry string  `json:"geometry"`
}

// OSRMProvider calls an OSRM route service. Geometry is requested in the
// same encoded polyline format Google uses.
type OSRMProvider struct {
	baseURL    string
	httpClient *http.Client
}

func NewOSRMProvider(baseURL string, client *http.Client) *OSRMProvider {
	if baseURL == "" {
		baseURL = defaultOSRMBaseURL
	}
	return &OSRMProvider{baseURL: strings.TrimRight(baseURL, "/"), httpClient: client}
}

func (p *OSRMProvider) Name() Source { return SourceOSRM }

func (p *OSRMProvider) Directions(ctx context.Context, origin, dest geo.Coordinate) (*Directions, error) {
	// OSRM takes lng,lat pairs.
	u := fmt.Sprintf("%s/%.6f,%.6f;%.6f,%.6f?overview=full&geometries=polyline&alternatives=false&steps=false",
		p.baseURL, origin.Lng, origin.Lat, dest.Lng, dest.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call OSRM: %w: %w", ErrRouteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OSRM returned status %d: %w", resp.StatusCode, ErrRouteUnavailable)
	}

	var body osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode OSRM response: %w: %w", ErrRouteUnavailable, err)
	}
	if body.Code != "Ok" || len(body.Routes) == 0 {
		return nil, fmt.Errorf("OSRM found no route (%s): %w", body.Code, ErrRouteUnavailable)
	}

	r := body.Routes[0]
	return &Directions{Polyline: r.Geometry, DistanceMeters: r.Distance, DurationSeconds: r.Duration}, nil
}
