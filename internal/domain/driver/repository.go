package driver

import (
	"context"

	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/geo"
)

// Repository defines persistence operations for driver profiles.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Driver, error)
	List(ctx context.Context, page, limit int) ([]*Driver, int64, error)
	Save(ctx context.Context, driver *Driver) error
	Update(ctx context.Context, driver *Driver) error
}

// Locator stores and looks up the latest known driver positions.
type Locator interface {
	UpdatePosition(ctx context.Context, driverID uuid.UUID, pos geo.Coordinate) error
	Position(ctx context.Context, driverID uuid.UUID) (geo.Coordinate, bool, error)
	Remove(ctx context.Context, driverID uuid.UUID) error
	// Nearby returns up to count driver IDs within radiusKm of center, nearest first.
	Nearby(ctx context.Context, center geo.Coordinate, radiusKm float64, count int) ([]uuid.UUID, error)
}
