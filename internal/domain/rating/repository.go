package rating

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines persistence operations for ride ratings.
type Repository interface {
	// Save persists a rating. A second rating by the same rater for the same ride is a conflict.
	Save(ctx context.Context, rating *Rating) error
	FindByRideID(ctx context.Context, rideID uuid.UUID) ([]*Rating, error)
	FindByRateeID(ctx context.Context, rateeID uuid.UUID, page, limit int) ([]*Rating, int64, error)
}
