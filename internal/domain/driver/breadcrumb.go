package driver

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/geo"
)

// Breadcrumb is one reported driver position, kept for trip replay and audit.
type Breadcrumb struct {
	DriverID   uuid.UUID
	Position   geo.Coordinate
	Heading    float64
	SpeedKmh   float64
	ReportedAt time.Time
}

// BreadcrumbRepository is an append-only store of driver positions.
type BreadcrumbRepository interface {
	Append(ctx context.Context, b Breadcrumb) error
	// Trail returns the driver's positions reported in [from, to], oldest first.
	Trail(ctx context.Context, driverID uuid.UUID, from, to time.Time) ([]Breadcrumb, error)
}
