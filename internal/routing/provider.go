package routing

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/geo"
)

// Directions is a provider's answer for one origin/destination pair.
type Directions struct {
	Polyline        string
	DistanceMeters  float64
	DurationSeconds float64
}

// Provider is an external directions service.
type Provider interface {
	Name() Source
	Directions(ctx context.Context, origin, dest geo.Coordinate) (*Directions, error)
}

// ProviderConfig selects and configures a directions provider.
type ProviderConfig struct {
	Kind    string
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// NewProvider builds the configured provider. Kind "none" returns nil, which
// makes the estimator always use the straight-line fallback.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	client := &http.Client{Timeout: cfg.Timeout}
	switch cfg.Kind {
	case "google":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("google directions provider requires an API key")
		}
		return NewGoogleProvider(cfg.BaseURL, cfg.APIKey, client), nil
	case "osrm":
		return NewOSRMProvider(cfg.BaseURL, client), nil
	case "", "none":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown directions provider: %s", cfg.Kind)
}
