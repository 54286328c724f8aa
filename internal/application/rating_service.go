package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/domain"
	driverDomain "github.com/Kilat-Pet-Delivery/service-ride/internal/domain/driver"
	ratingDomain "github.com/Kilat-Pet-Delivery/service-ride/internal/domain/rating"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/domain/ride"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/events"
)

// RateRideRequest holds a post-trip rating.
type RateRideRequest struct {
	Score   int    `json:"score" binding:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

// RatingDTO is the API response representation of a rating.
type RatingDTO struct {
	ID        uuid.UUID `json:"id"`
	RideID    uuid.UUID `json:"ride_id"`
	RaterID   uuid.UUID `json:"rater_id"`
	RateeID   uuid.UUID `json:"ratee_id"`
	RaterRole string    `json:"rater_role"`
	Score     int       `json:"score"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RatingService handles post-trip ratings.
type RatingService struct {
	repo     ratingDomain.Repository
	rides    ride.Repository
	drivers  driverDomain.Repository
	producer EventProducer
	logger   *zap.Logger
}

// NewRatingService creates a new RatingService.
func NewRatingService(
	repo ratingDomain.Repository,
	rides ride.Repository,
	drivers driverDomain.Repository,
	producer EventProducer,
	logger *zap.Logger,
) *RatingService {
	return &RatingService{repo: repo, rides: rides, drivers: drivers, producer: producer, logger: logger}
}

// RateRide records the caller's rating of the other party of a completed ride.
func (s *RatingService) RateRide(ctx context.Context, rideID, raterID uuid.UUID, req RateRideRequest) (*RatingDTO, error) {
	b, err := s.rides.FindByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !b.IsParty(raterID) {
		return nil, domain.NewForbiddenError("only the rider or the driver may rate this ride")
	}

	r, err := ratingDomain.NewRating(b, raterID, req.Score, req.Comment)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	if err := s.repo.Save(ctx, r); err != nil {
		return nil, err
	}

	if r.RaterRole() == ride.RoleRider {
		err := retryOnConflict(func() error {
			d, err := s.drivers.FindByID(ctx, r.RateeID())
			if err != nil {
				return err
			}
			d.AddRating(r.Score())
			return s.drivers.Update(ctx, d)
		})
		if err != nil {
			s.logger.Error("failed to update driver rating",
				zap.String("driver_id", r.RateeID().String()),
				zap.Error(err),
			)
		}
	}

	evt := events.RideRatedEvent{
		RideID:     r.RideID(),
		RaterID:    r.RaterID(),
		RateeID:    r.RateeID(),
		RaterRole:  string(r.RaterRole()),
		Score:      r.Score(),
		OccurredAt: r.CreatedAt(),
	}
	publishEvent(ctx, s.producer, s.logger, events.TopicRideEvents, events.RideRated, r.RideID().String(), evt)

	return toRatingDTO(r), nil
}

// GetRideRatings returns the ratings left on a ride.
func (s *RatingService) GetRideRatings(ctx context.Context, rideID, userID uuid.UUID, userRole string) ([]*RatingDTO, error) {
	b, err := s.rides.FindByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !b.IsParty(userID) && userRole != "admin" {
		return nil, domain.NewForbiddenError("ride does not belong to this user")
	}

	ratings, err := s.repo.FindByRideID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	dtos := make([]*RatingDTO, len(ratings))
	for i, r := range ratings {
		dtos[i] = toRatingDTO(r)
	}
	return dtos, nil
}

// GetDriverRatings returns a page of ratings received by a driver.
func (s *RatingService) GetDriverRatings(ctx context.Context, driverID uuid.UUID, page, limit int) (*domain.PaginatedResult[RatingDTO], error) {
	ratings, total, err := s.repo.FindByRateeID(ctx, driverID, page, limit)
	if err != nil {
		return nil, err
	}
	dtos := make([]RatingDTO, len(ratings))
	for i, r := range ratings {
		dtos[i] = *toRatingDTO(r)
	}
	result := domain.NewPaginatedResult(dtos, total, page, limit)
	return &result, nil
}

func toRatingDTO(r *ratingDomain.Rating) *RatingDTO {
	return &RatingDTO{
		ID:        r.ID(),
		RideID:    r.RideID(),
		RaterID:   r.RaterID(),
		RateeID:   r.RateeID(),
		RaterRole: string(r.RaterRole()),
		Score:     r.Score(),
		Comment:   r.Comment(),
		CreatedAt: r.CreatedAt(),
	}
}
