package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/domain"
	driverDomain "github.com/Kilat-Pet-Delivery/service-ride/internal/domain/driver"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/domain/ride"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/geo"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/tracking"
)

// LocationService fans live driver positions out to the tracking hub, the
// position index and the breadcrumb trail. It is the Ingester behind both
// the Kafka and the MQTT feeds.
type LocationService struct {
	hub         *tracking.Hub
	locator     driverDomain.Locator
	breadcrumbs driverDomain.BreadcrumbRepository
	rides       ride.Repository
	logger      *zap.Logger
}

// NewLocationService creates a LocationService. Any of hub, locator and
// breadcrumbs may be nil.
func NewLocationService(
	hub *tracking.Hub,
	locator driverDomain.Locator,
	breadcrumbs driverDomain.BreadcrumbRepository,
	rides ride.Repository,
	logger *zap.Logger,
) *LocationService {
	return &LocationService{hub: hub, locator: locator, breadcrumbs: breadcrumbs, rides: rides, logger: logger}
}

// BreadcrumbDTO is one point of a driver trail.
type BreadcrumbDTO struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Heading    float64   `json:"heading"`
	SpeedKmh   float64   `json:"speed_kmh"`
	ReportedAt time.Time `json:"reported_at"`
}

// Ingest records one position report. A locator failure is returned so the
// feed can redeliver; a breadcrumb failure is only logged.
func (s *LocationService) Ingest(ctx context.Context, p tracking.DriverPosition) error {
	if !p.Coordinate.IsValid() {
		return domain.NewValidationError("driver position is out of range")
	}
	if p.ReportedAt.IsZero() {
		p.ReportedAt = time.Now().UTC()
	}

	if s.hub != nil {
		s.hub.Publish(p)
	}
	if s.locator != nil {
		if err := s.locator.UpdatePosition(ctx, p.DriverID, p.Coordinate); err != nil {
			return err
		}
	}
	if s.breadcrumbs != nil {
		crumb := driverDomain.Breadcrumb{
			DriverID:   p.DriverID,
			Position:   p.Coordinate,
			Heading:    p.Heading,
			SpeedKmh:   p.SpeedKmh,
			ReportedAt: p.ReportedAt,
		}
		if err := s.breadcrumbs.Append(ctx, crumb); err != nil {
			s.logger.Warn("failed to store breadcrumb", zap.String("driver_id", p.DriverID.String()), zap.Error(err))
		}
	}
	return nil
}

// ReportPosition is the HTTP path for a driver reporting their own position.
func (s *LocationService) ReportPosition(ctx context.Context, driverID uuid.UUID, lat, lng, heading, speedKmh float64) error {
	return s.Ingest(ctx, tracking.DriverPosition{
		DriverID:   driverID,
		Coordinate: geo.Coordinate{Lat: lat, Lng: lng},
		Heading:    heading,
		SpeedKmh:   speedKmh,
		ReportedAt: time.Now().UTC(),
	})
}

// RideTrail returns the driver's breadcrumbs between acceptance and the end
// of the ride. Only the ride's parties and admins may read it.
func (s *LocationService) RideTrail(ctx context.Context, rideID, userID uuid.UUID, userRole string) ([]BreadcrumbDTO, error) {
	if s.breadcrumbs == nil {
		return []BreadcrumbDTO{}, nil
	}
	b, err := s.rides.FindByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !b.IsParty(userID) && userRole != "admin" {
		return nil, domain.NewForbiddenError("ride does not belong to this user")
	}
	if b.DriverID() == nil || b.AcceptedAt() == nil {
		return []BreadcrumbDTO{}, nil
	}

	to := time.Now().UTC()
	switch {
	case b.CompletedAt() != nil:
		to = *b.CompletedAt()
	case b.CancelledAt() != nil:
		to = *b.CancelledAt()
	}

	crumbs, err := s.breadcrumbs.Trail(ctx, *b.DriverID(), *b.AcceptedAt(), to)
	if err != nil {
		return nil, err
	}
	out := make([]BreadcrumbDTO, len(crumbs))
	for i, c := range crumbs {
		out[i] = BreadcrumbDTO{
			Lat:        c.Position.Lat,
			Lng:        c.Position.Lng,
			Heading:    c.Heading,
			SpeedKmh:   c.SpeedKmh,
			ReportedAt: c.ReportedAt,
		}
	}
	return out, nil
}
