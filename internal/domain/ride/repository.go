package ride

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence contract for ride bookings.
type Repository interface {
	// FindByID retrieves a booking by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindByCode retrieves a booking by its human-readable booking code.
	FindByCode(ctx context.Context, code string) (*Booking, error)

	// FindByRiderID retrieves bookings requested by a rider with pagination.
	FindByRiderID(ctx context.Context, riderID uuid.UUID, page, limit int) ([]*Booking, int64, error)

	// FindByDriverID retrieves bookings served by a driver with pagination.
	FindByDriverID(ctx context.Context, driverID uuid.UUID, page, limit int) ([]*Booking, int64, error)

	// ListPending retrieves bookings still waiting for a driver.
	ListPending(ctx context.Context, page, limit int) ([]*Booking, int64, error)

	// ListAll retrieves all bookings with pagination (admin).
	ListAll(ctx context.Context, page, limit int) ([]*Booking, int64, error)

	// CountByStatus returns booking counts grouped by status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// Save persists a new booking. A duplicate booking code is a conflict.
	Save(ctx context.Context, booking *Booking) error

	// Update persists changes with optimistic locking on the version.
	Update(ctx context.Context, booking *Booking) error
}
