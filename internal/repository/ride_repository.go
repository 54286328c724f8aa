package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/domain"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/domain/ride"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/geo"
)

// RideModel is the GORM model for the rides table.
type RideModel struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	BookingCode     string     `gorm:"uniqueIndex;not null;size:20"`
	RiderID         uuid.UUID  `gorm:"type:uuid;index;not null"`
	DriverID        *uuid.UUID `gorm:"type:uuid;index"`
	Status          string     `gorm:"not null;size:20;index"`
	PickupLat       float64    `gorm:"not null"`
	PickupLng       float64    `gorm:"not null"`
	PickupAddress   string     `gorm:"size:500;not null"`
	DestLat         float64    `gorm:"not null"`
	DestLng         float64    `gorm:"not null"`
	DestAddress     string     `gorm:"size:500;not null"`
	VehicleClass    string     `gorm:"size:20;not null"`
	DistanceKm      float64    `gorm:"not null"`
	Fare            int64      `gorm:"not null"`
	Currency        string     `gorm:"not null;size:3;default:'VND'"`
	DriverOriginLat *float64   `gorm:""`
	DriverOriginLng *float64   `gorm:""`
	AcceptedAt      *time.Time `gorm:""`
	ArrivedAt       *time.Time `gorm:""`
	StartedAt       *time.Time `gorm:""`
	CompletedAt     *time.Time `gorm:""`
	CancelledAt     *time.Time `gorm:""`
	CancelReason    string     `gorm:"size:500"`
	Version         int64      `gorm:"not null;default:1"`
	CreatedAt       time.Time  `gorm:"not null"`
	UpdatedAt       time.Time  `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (RideModel) TableName() string {
	return "rides"
}

// GormRideRepository is the GORM-based implementation of ride.Repository.
type GormRideRepository struct {
	db *gorm.DB
}

// NewGormRideRepository creates a new GormRideRepository.
func NewGormRideRepository(db *gorm.DB) *GormRideRepository {
	return &GormRideRepository{db: db}
}

// FindByID retrieves a ride by its unique identifier.
func (r *GormRideRepository) FindByID(ctx context.Context, id uuid.UUID) (*ride.Booking, error) {
	var model RideModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Ride", id.String())
		}
		return nil, fmt.Errorf("failed to find ride by ID: %w", err)
	}
	return toDomainRide(&model)
}

// FindByCode retrieves a ride by its booking code.
func (r *GormRideRepository) FindByCode(ctx context.Context, code string) (*ride.Booking, error) {
	var model RideModel
	if err := r.db.WithContext(ctx).Where("booking_code = ?", code).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Ride", code)
		}
		return nil, fmt.Errorf("failed to find ride by code: %w", err)
	}
	return toDomainRide(&model)
}

// FindByRiderID retrieves rides booked by a rider with pagination.
func (r *GormRideRepository) FindByRiderID(ctx context.Context, riderID uuid.UUID, page, limit int) ([]*ride.Booking, int64, error) {
	return r.page(ctx, "rider rides", page, limit, "rider_id = ?", riderID)
}

// FindByDriverID retrieves rides served by a driver with pagination.
func (r *GormRideRepository) FindByDriverID(ctx context.Context, driverID uuid.UUID, page, limit int) ([]*ride.Booking, int64, error) {
	return r.page(ctx, "driver rides", page, limit, "driver_id = ?", driverID)
}

// ListPending retrieves rides waiting for a driver, oldest first.
func (r *GormRideRepository) ListPending(ctx context.Context, page, limit int) ([]*ride.Booking, int64, error) {
	var total int64
	q := r.db.WithContext(ctx).Model(&RideModel{}).Where("status = ?", string(ride.StatusPending))
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count pending rides: %w", err)
	}

	var models []RideModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(ride.StatusPending)).
		Order("created_at ASC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to find pending rides: %w", err)
	}
	rides, err := toDomainRides(models)
	return rides, total, err
}

// ListAll retrieves all rides with pagination (admin).
func (r *GormRideRepository) ListAll(ctx context.Context, page, limit int) ([]*ride.Booking, int64, error) {
	return r.page(ctx, "rides", page, limit, "")
}

func (r *GormRideRepository) page(ctx context.Context, what string, page, limit int, where string, args ...interface{}) ([]*ride.Booking, int64, error) {
	count := r.db.WithContext(ctx).Model(&RideModel{})
	find := r.db.WithContext(ctx)
	if where != "" {
		count = count.Where(where, args...)
		find = find.Where(where, args...)
	}

	var total int64
	if err := count.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count %s: %w", what, err)
	}

	var models []RideModel
	if err := find.
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to find %s: %w", what, err)
	}
	rides, err := toDomainRides(models)
	return rides, total, err
}

// CountByStatus returns ride counts grouped by status (admin).
func (r *GormRideRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&RideModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// Save persists a new ride.
func (r *GormRideRepository) Save(ctx context.Context, b *ride.Booking) error {
	model := toRideModel(b)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewConflictError("booking code already in use")
		}
		return fmt.Errorf("failed to save ride: %w", err)
	}
	return nil
}

// Update persists changes with optimistic locking. The caller has already
// called IncrementVersion, so the stored row must be one version behind.
func (r *GormRideRepository) Update(ctx context.Context, b *ride.Booking) error {
	model := toRideModel(b)
	expectedVersion := b.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&RideModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"driver_id":         model.DriverID,
			"status":            model.Status,
			"driver_origin_lat": model.DriverOriginLat,
			"driver_origin_lng": model.DriverOriginLng,
			"accepted_at":       model.AcceptedAt,
			"arrived_at":        model.ArrivedAt,
			"started_at":        model.StartedAt,
			"completed_at":      model.CompletedAt,
			"cancelled_at":      model.CancelledAt,
			"cancel_reason":     model.CancelReason,
			"version":           model.Version,
			"updated_at":        model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update ride: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("ride was modified by another transaction")
	}
	return nil
}

// --- Conversion Helpers ---

func toRideModel(b *ride.Booking) *RideModel {
	m := &RideModel{
		ID:            b.ID(),
		BookingCode:   b.BookingCode(),
		RiderID:       b.RiderID(),
		DriverID:      b.DriverID(),
		Status:        string(b.Status()),
		PickupLat:     b.Pickup().Lat,
		PickupLng:     b.Pickup().Lng,
		PickupAddress: b.Pickup().Address,
		DestLat:       b.Destination().Lat,
		DestLng:       b.Destination().Lng,
		DestAddress:   b.Destination().Address,
		VehicleClass:  string(b.VehicleClass()),
		DistanceKm:    b.DistanceKm(),
		Fare:          b.Fare(),
		Currency:      b.Currency(),
		AcceptedAt:    b.AcceptedAt(),
		ArrivedAt:     b.ArrivedAt(),
		StartedAt:     b.StartedAt(),
		CompletedAt:   b.CompletedAt(),
		CancelledAt:   b.CancelledAt(),
		CancelReason:  b.CancelReason(),
		Version:       b.Version(),
		CreatedAt:     b.CreatedAt(),
		UpdatedAt:     b.UpdatedAt(),
	}
	if o := b.DriverOrigin(); o != nil {
		lat, lng := o.Lat, o.Lng
		m.DriverOriginLat, m.DriverOriginLng = &lat, &lng
	}
	return m
}

func toDomainRide(m *RideModel) (*ride.Booking, error) {
	status, err := ride.ParseRideStatus(m.Status)
	if err != nil {
		return nil, err
	}

	var origin *geo.Coordinate
	if m.DriverOriginLat != nil && m.DriverOriginLng != nil {
		origin = &geo.Coordinate{Lat: *m.DriverOriginLat, Lng: *m.DriverOriginLng}
	}

	return ride.ReconstructBooking(
		m.ID,
		m.BookingCode,
		m.RiderID,
		m.DriverID,
		status,
		ride.Place{Lat: m.PickupLat, Lng: m.PickupLng, Address: m.PickupAddress},
		ride.Place{Lat: m.DestLat, Lng: m.DestLng, Address: m.DestAddress},
		ride.VehicleClass(m.VehicleClass),
		m.DistanceKm,
		m.Fare,
		m.Currency,
		origin,
		m.AcceptedAt,
		m.ArrivedAt,
		m.StartedAt,
		m.CompletedAt,
		m.CancelledAt,
		m.CancelReason,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}

func toDomainRides(models []RideModel) ([]*ride.Booking, error) {
	rides := make([]*ride.Booking, len(models))
	for i := range models {
		b, err := toDomainRide(&models[i])
		if err != nil {
			return nil, err
		}
		rides[i] = b
	}
	return rides, nil
}
