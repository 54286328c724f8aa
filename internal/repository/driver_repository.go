package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/domain"
	driverDomain "github.com/Kilat-Pet-Delivery/service-ride/internal/domain/driver"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/domain/ride"
)

// DriverModel is the GORM model for the drivers table.
type DriverModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name         string    `gorm:"size:200;not null"`
	Phone        string    `gorm:"size:30;not null"`
	VehicleClass string    `gorm:"size:20;not null"`
	VehiclePlate string    `gorm:"size:20;not null"`
	VehicleModel string    `gorm:"size:100"`
	Rating       float64   `gorm:"not null;default:0"`
	RatingCount  int       `gorm:"not null;default:0"`
	TripCount    int       `gorm:"not null;default:0"`
	Status       string    `gorm:"size:20;not null;index"`
	Version      int64     `gorm:"not null;default:1"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName sets the table name.
func (DriverModel) TableName() string { return "drivers" }

// GormDriverRepository implements driver.Repository using GORM.
type GormDriverRepository struct {
	db *gorm.DB
}

// NewGormDriverRepository creates a new GormDriverRepository.
func NewGormDriverRepository(db *gorm.DB) *GormDriverRepository {
	return &GormDriverRepository{db: db}
}

// FindByID returns a driver profile by its user ID.
func (r *GormDriverRepository) FindByID(ctx context.Context, id uuid.UUID) (*driverDomain.Driver, error) {
	var model DriverModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Driver", id.String())
		}
		return nil, fmt.Errorf("failed to find driver: %w", err)
	}
	return toDriverDomain(&model), nil
}

// List returns driver profiles ordered by name.
func (r *GormDriverRepository) List(ctx context.Context, page, limit int) ([]*driverDomain.Driver, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&DriverModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count drivers: %w", err)
	}

	var models []DriverModel
	if err := r.db.WithContext(ctx).
		Order("name ASC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list drivers: %w", err)
	}

	drivers := make([]*driverDomain.Driver, len(models))
	for i := range models {
		drivers[i] = toDriverDomain(&models[i])
	}
	return drivers, total, nil
}

// Save persists a new driver profile. A second profile for the same user is a conflict.
func (r *GormDriverRepository) Save(ctx context.Context, d *driverDomain.Driver) error {
	model := toDriverModel(d)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewConflictError("driver profile already exists")
		}
		return fmt.Errorf("failed to save driver: %w", err)
	}
	return nil
}

// Update persists profile changes with optimistic locking. Every mutating
// method on Driver bumps the version once.
func (r *GormDriverRepository) Update(ctx context.Context, d *driverDomain.Driver) error {
	model := toDriverModel(d)
	result := r.db.WithContext(ctx).
		Model(&DriverModel{}).
		Where("id = ? AND version = ?", model.ID, model.Version-1).
		Updates(map[string]interface{}{
			"name":          model.Name,
			"phone":         model.Phone,
			"vehicle_plate": model.VehiclePlate,
			"vehicle_model": model.VehicleModel,
			"rating":        model.Rating,
			"rating_count":  model.RatingCount,
			"trip_count":    model.TripCount,
			"status":        model.Status,
			"version":       model.Version,
			"updated_at":    model.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update driver: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("driver was modified by another transaction")
	}
	return nil
}

func toDriverModel(d *driverDomain.Driver) DriverModel {
	return DriverModel{
		ID:           d.ID(),
		Name:         d.Name(),
		Phone:        d.Phone(),
		VehicleClass: string(d.VehicleClass()),
		VehiclePlate: d.VehiclePlate(),
		VehicleModel: d.VehicleModel(),
		Rating:       d.Rating(),
		RatingCount:  d.RatingCount(),
		TripCount:    d.TripCount(),
		Status:       string(d.Status()),
		Version:      d.Version(),
		CreatedAt:    d.CreatedAt(),
		UpdatedAt:    d.UpdatedAt(),
	}
}

func toDriverDomain(m *DriverModel) *driverDomain.Driver {
	return driverDomain.Reconstruct(
		m.ID,
		m.Name,
		m.Phone,
		ride.VehicleClass(m.VehicleClass),
		m.VehiclePlate,
		m.VehicleModel,
		m.Rating,
		m.RatingCount,
		m.TripCount,
		driverDomain.Status(m.Status),
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	)
}
