package routing

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/geo"
)

// Estimator produces a route for two endpoints. It never fails: provider
// errors, timeouts and undecodable geometry fall back to a straight line.
type Estimator struct {
	provider         Provider
	timeout          time.Duration
	fallbackSpeedKmh float64
	logger           *zap.Logger
}

// NewEstimator creates an Estimator. provider may be nil.
func NewEstimator(provider Provider, timeout time.Duration, fallbackSpeedKmh float64, logger *zap.Logger) *Estimator {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if fallbackSpeedKmh <= 0 {
		fallbackSpeedKmh = geo.DefaultFallbackSpeedKmh
	}
	return &Estimator{
		provider:         provider,
		timeout:          timeout,
		fallbackSpeedKmh: fallbackSpeedKmh,
		logger:           logger,
	}
}

// FallbackSpeedKmh returns the assumed speed for straight-line estimates.
func (e *Estimator) FallbackSpeedKmh() float64 { return e.fallbackSpeedKmh }

// Estimate returns the best route the provider can give within the timeout.
func (e *Estimator) Estimate(ctx context.Context, origin, dest geo.Coordinate) Estimate {
	fallback := StraightLine(origin, dest, e.fallbackSpeedKmh)
	if e.provider == nil {
		return fallback
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	d, err := e.provider.Directions(ctx, origin, dest)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = errors.Join(ErrRouteUnavailable, err)
		}
		e.logger.Warn("directions provider unavailable, using straight line",
			zap.String("provider", string(e.provider.Name())),
			zap.Error(err),
		)
		return fallback
	}

	est := Estimate{
		DistanceMeters:  d.DistanceMeters,
		DurationSeconds: d.DurationSeconds,
		Source:          e.provider.Name(),
	}

	points, err := geo.DecodePolyline(d.Polyline)
	switch {
	case err != nil:
		e.logger.Warn("malformed route geometry, using straight line",
			zap.String("provider", string(e.provider.Name())),
			zap.Error(err),
		)
		est.Points = fallback.Points
	case len(points) < 2:
		est.Points = fallback.Points
	default:
		est.Points = points
	}

	if est.DistanceMeters <= 0 {
		est.DistanceMeters = geo.PathLength(est.Points)
	}
	if est.DurationSeconds <= 0 {
		est.DurationSeconds = geo.EstimateDuration(est.DistanceMeters, e.fallbackSpeedKmh).Seconds()
	}
	return est
}
