// Package geo holds the pure geometry used by routing and tracking:
// great-circle distance, interpolation along straight segments and
// polylines, and Google's encoded polyline format.
package geo

import (
	"math"
	"time"
)

// EarthRadiusMeters is the mean Earth radius used by Haversine.
const EarthRadiusMeters = 6371000.0

// DefaultFallbackSpeedKmh is the flat urban speed assumed without a provider.
const DefaultFallbackSpeedKmh = 25.0

// Coordinate is a WGS84 point in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsValid reports whether the point lies within latitude/longitude bounds.
func (c Coordinate) IsValid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180 &&
		!math.IsNaN(c.Lat) && !math.IsNaN(c.Lng)
}

// Round5 rounds both axes to the 1e-5 precision of the polyline format.
func (c Coordinate) Round5() Coordinate {
	return Coordinate{
		Lat: math.Round(c.Lat*polylineScale) / polylineScale,
		Lng: math.Round(c.Lng*polylineScale) / polylineScale,
	}
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func radiansToDegrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

// Haversine returns the great-circle distance between a and b in meters.
func Haversine(a, b Coordinate) float64 {
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	lat1 := degreesToRadians(a.Lat)
	lat2 := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLng/2)*math.Sin(dLng/2)*math.Cos(lat1)*math.Cos(lat2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// Bearing returns the initial compass bearing from a to b in degrees [0, 360).
func Bearing(a, b Coordinate) float64 {
	lat1 := degreesToRadians(a.Lat)
	lat2 := degreesToRadians(b.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)

	return math.Mod(radiansToDegrees(math.Atan2(y, x))+360, 360)
}

// Interpolate returns the point at fraction f of the straight segment a→b.
// f is clamped to [0, 1]. Urban legs are short enough that linear
// interpolation in degrees is indistinguishable from the geodesic.
func Interpolate(a, b Coordinate, f float64) Coordinate {
	f = Clamp01(f)
	return Coordinate{
		Lat: a.Lat + (b.Lat-a.Lat)*f,
		Lng: a.Lng + (b.Lng-a.Lng)*f,
	}
}

// PathLength returns the summed Haversine length of consecutive points.
func PathLength(points []Coordinate) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += Haversine(points[i-1], points[i])
	}
	return total
}

// PointAlong returns the point at fraction f of the path's length.
// An empty path yields the zero Coordinate; a single point yields itself.
func PointAlong(points []Coordinate, f float64) Coordinate {
	switch len(points) {
	case 0:
		return Coordinate{}
	case 1:
		return points[0]
	}

	f = Clamp01(f)
	total := PathLength(points)
	if total == 0 {
		return points[0]
	}
	if f == 1 {
		return points[len(points)-1]
	}

	target := total * f
	for i := 1; i < len(points); i++ {
		seg := Haversine(points[i-1], points[i])
		if target <= seg {
			if seg == 0 {
				return points[i]
			}
			return Interpolate(points[i-1], points[i], target/seg)
		}
		target -= seg
	}
	return points[len(points)-1]
}

// EstimateDuration is the fallback travel time at a flat assumed speed.
// A non-positive speed yields zero; callers clamp durations themselves.
func EstimateDuration(distanceMeters, speedKmh float64) time.Duration {
	if speedKmh <= 0 || distanceMeters <= 0 {
		return 0
	}
	hours := distanceMeters / 1000 / speedKmh
	return time.Duration(hours * float64(time.Hour))
}

// Clamp01 limits f to [0, 1]; NaN becomes 0.
func Clamp01(f float64) float64 {
	switch {
	case math.IsNaN(f), f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
