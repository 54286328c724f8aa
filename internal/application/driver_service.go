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
)

// RegisterDriverRequest holds the data to create a driver profile.
type RegisterDriverRequest struct {
	Name         string `json:"name" binding:"required"`
	Phone        string `json:"phone" binding:"required"`
	VehicleClass string `json:"vehicle_class" binding:"required"`
	VehiclePlate string `json:"vehicle_plate" binding:"required"`
	VehicleModel string `json:"vehicle_model"`
}

// UpdateDriverRequest holds optional profile changes.
type UpdateDriverRequest struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	VehiclePlate string `json:"vehicle_plate"`
	VehicleModel string `json:"vehicle_model"`
}

// DriverDTO is the API response representation of a driver profile.
type DriverDTO struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	VehicleClass string    `json:"vehicle_class"`
	VehiclePlate string    `json:"vehicle_plate"`
	VehicleModel string    `json:"vehicle_model,omitempty"`
	Rating       float64   `json:"rating"`
	RatingCount  int       `json:"rating_count"`
	TripCount    int       `json:"trip_count"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DriverCandidateDTO is a driver profile with the last known position.
type DriverCandidateDTO struct {
	DriverDTO
	Position *geo.Coordinate `json:"position,omitempty"`
}

// DriverService handles driver profile use cases.
type DriverService struct {
	repo    driverDomain.Repository
	locator driverDomain.Locator
	logger  *zap.Logger
}

// NewDriverService creates a new DriverService. locator may be nil.
func NewDriverService(repo driverDomain.Repository, locator driverDomain.Locator, logger *zap.Logger) *DriverService {
	return &DriverService{repo: repo, locator: locator, logger: logger}
}

// RegisterDriver creates the caller's driver profile.
func (s *DriverService) RegisterDriver(ctx context.Context, userID uuid.UUID, req RegisterDriverRequest) (*DriverDTO, error) {
	d, err := driverDomain.NewDriver(userID, req.Name, req.Phone, ride.VehicleClass(req.VehicleClass), req.VehiclePlate, req.VehicleModel)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	if err := s.repo.Save(ctx, d); err != nil {
		return nil, err
	}

	s.logger.Info("driver registered",
		zap.String("driver_id", d.ID().String()),
		zap.String("vehicle_class", string(d.VehicleClass())),
	)
	return toDriverDTO(d), nil
}

// GetDriver returns a driver profile.
func (s *DriverService) GetDriver(ctx context.Context, driverID uuid.UUID) (*DriverDTO, error) {
	d, err := s.repo.FindByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	return toDriverDTO(d), nil
}

// UpdateDriver applies profile changes.
func (s *DriverService) UpdateDriver(ctx context.Context, driverID uuid.UUID, req UpdateDriverRequest) (*DriverDTO, error) {
	var d *driverDomain.Driver
	err := retryOnConflict(func() error {
		var err error
		if d, err = s.repo.FindByID(ctx, driverID); err != nil {
			return err
		}
		d.Update(req.Name, req.Phone, req.VehiclePlate, req.VehicleModel)
		return s.repo.Update(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	return toDriverDTO(d), nil
}

// ListDrivers returns a page of driver profiles (admin).
func (s *DriverService) ListDrivers(ctx context.Context, page, limit int) (*domain.PaginatedResult[DriverDTO], error) {
	drivers, total, err := s.repo.List(ctx, page, limit)
	if err != nil {
		return nil, err
	}
	dtos := make([]DriverDTO, len(drivers))
	for i, d := range drivers {
		dtos[i] = *toDriverDTO(d)
	}
	result := domain.NewPaginatedResult(dtos, total, page, limit)
	return &result, nil
}

// SetSuspended suspends or reactivates a driver (admin).
func (s *DriverService) SetSuspended(ctx context.Context, driverID uuid.UUID, suspended bool) (*DriverDTO, error) {
	var d *driverDomain.Driver
	err := retryOnConflict(func() error {
		var err error
		if d, err = s.repo.FindByID(ctx, driverID); err != nil {
			return err
		}
		if suspended {
			d.Suspend()
		} else {
			d.Reactivate()
		}
		return s.repo.Update(ctx, d)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("driver status changed",
		zap.String("driver_id", driverID.String()),
		zap.String("status", string(d.Status())),
	)
	return toDriverDTO(d), nil
}

// GetDriverCandidate combines a driver profile with the driver's current position.
func (s *DriverService) GetDriverCandidate(ctx context.Context, driverID uuid.UUID) (*DriverCandidateDTO, error) {
	d, err := s.repo.FindByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	out := &DriverCandidateDTO{DriverDTO: *toDriverDTO(d)}
	if s.locator == nil {
		return out, nil
	}

	pos, ok, err := s.locator.Position(ctx, driverID)
	if err != nil {
		s.logger.Warn("driver position lookup failed", zap.String("driver_id", driverID.String()), zap.Error(err))
		return out, nil
	}
	if ok {
		out.Position = &pos
	}
	return out, nil
}

// NearbyDrivers lists active drivers of class near center, nearest first.
// Drivers without a profile or with another vehicle class are skipped.
func (s *DriverService) NearbyDrivers(ctx context.Context, center geo.Coordinate, class ride.VehicleClass, radiusKm float64, limit int) ([]DriverCandidateDTO, error) {
	if !center.IsValid() {
		return nil, domain.NewValidationError("position is out of range")
	}
	if radiusKm <= 0 {
		return nil, domain.NewValidationError("radius must be positive")
	}
	if s.locator == nil {
		return []DriverCandidateDTO{}, nil
	}

	ids, err := s.locator.Nearby(ctx, center, radiusKm, limit*2)
	if err != nil {
		return nil, err
	}

	out := make([]DriverCandidateDTO, 0, len(ids))
	for _, id := range ids {
		if len(out) == limit {
			break
		}
		d, err := s.repo.FindByID(ctx, id)
		if err != nil {
			if domain.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if class != "" && d.CanServe(class) != nil {
			continue
		}
		if class == "" && d.Status() != driverDomain.StatusActive {
			continue
		}
		c := DriverCandidateDTO{DriverDTO: *toDriverDTO(d)}
		if pos, ok, err := s.locator.Position(ctx, id); err == nil && ok {
			c.Position = &pos
		}
		out = append(out, c)
	}
	return out, nil
}

func toDriverDTO(d *driverDomain.Driver) *DriverDTO {
	return &DriverDTO{
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
		CreatedAt:    d.CreatedAt(),
		UpdatedAt:    d.UpdatedAt(),
	}
}
