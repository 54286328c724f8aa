package routing

import (
	"errors"
	"time"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/geo"
)

// ErrRouteUnavailable is returned by providers that failed or found no route.
var ErrRouteUnavailable = errors.New("route unavailable")

// Source names where an estimate came from.
type Source string

const (
	SourceGoogle   Source = "google"
	SourceOSRM     Source = "osrm"
	SourceFallback Source = "straight_line"
)

// Estimate is a route between two endpoints. It is recomputed per request.
type Estimate struct {
	Points          []geo.Coordinate `json:"points"`
	DistanceMeters  float64          `json:"distance_meters"`
	DurationSeconds float64          `json:"duration_seconds"`
	Source          Source           `json:"source"`
}

// Duration returns the estimated travel time.
func (e Estimate) Duration() time.Duration {
	return time.Duration(e.DurationSeconds * float64(time.Second))
}

// DistanceKm returns the distance in kilometres.
func (e Estimate) DistanceKm() float64 {
	return e.DistanceMeters / 1000
}

// IsFallback reports whether the estimate is a straight line.
func (e Estimate) IsFallback() bool {
	return e.Source == SourceFallback
}

// StraightLine builds the fallback estimate: a two-point path at speedKmh.
func StraightLine(origin, dest geo.Coordinate, speedKmh float64) Estimate {
	dist := geo.Haversine(origin, dest)
	return Estimate{
		Points:          []geo.Coordinate{origin, dest},
		DistanceMeters:  dist,
		DurationSeconds: geo.EstimateDuration(dist, speedKmh).Seconds(),
		Source:          SourceFallback,
	}
}
