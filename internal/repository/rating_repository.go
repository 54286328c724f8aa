package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/domain"
	ratingDomain "github.com/Kilat-Pet-Delivery/service-ride/internal/domain/rating"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/domain/ride"
)

// RatingModel is the GORM model for the ride_ratings table.
type RatingModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	RideID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_ride_rater"`
	RaterID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_ride_rater"`
	RateeID   uuid.UUID `gorm:"type:uuid;not null;index"`
	RaterRole string    `gorm:"type:varchar(10);not null"`
	Score     int       `gorm:"not null"`
	Comment   string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName sets the table name.
func (RatingModel) TableName() string { return "ride_ratings" }

// GormRatingRepository implements rating.Repository using GORM.
type GormRatingRepository struct {
	db *gorm.DB
}

// NewGormRatingRepository creates a new GormRatingRepository.
func NewGormRatingRepository(db *gorm.DB) *GormRatingRepository {
	return &GormRatingRepository{db: db}
}

// Save persists a new rating.
func (r *GormRatingRepository) Save(ctx context.Context, rating *ratingDomain.Rating) error {
	model := toRatingModel(rating)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewConflictError("this ride has already been rated by this user")
		}
		return fmt.Errorf("failed to save rating: %w", err)
	}
	return nil
}

// FindByRideID returns the ratings left on a ride.
func (r *GormRatingRepository) FindByRideID(ctx context.Context, rideID uuid.UUID) ([]*ratingDomain.Rating, error) {
	var models []RatingModel
	if err := r.db.WithContext(ctx).Where("ride_id = ?", rideID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find ride ratings: %w", err)
	}
	return toRatingDomains(models), nil
}

// FindByRateeID returns a page of ratings received by a user, newest first.
func (r *GormRatingRepository) FindByRateeID(ctx context.Context, rateeID uuid.UUID, page, limit int) ([]*ratingDomain.Rating, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&RatingModel{}).Where("ratee_id = ?", rateeID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count ratings: %w", err)
	}

	var models []RatingModel
	if err := r.db.WithContext(ctx).
		Where("ratee_id = ?", rateeID).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to find ratings: %w", err)
	}
	return toRatingDomains(models), total, nil
}

func toRatingModel(r *ratingDomain.Rating) RatingModel {
	return RatingModel{
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

func toRatingDomains(models []RatingModel) []*ratingDomain.Rating {
	out := make([]*ratingDomain.Rating, len(models))
	for i, m := range models {
		out[i] = ratingDomain.Reconstruct(m.ID, m.RideID, m.RaterID, m.RateeID, ride.Role(m.RaterRole), m.Score, m.Comment, m.CreatedAt)
	}
	return out
}
