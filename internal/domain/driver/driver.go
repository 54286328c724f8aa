package driver

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/domain/ride"
)

// Status represents whether a driver may take rides.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// Driver is the aggregate root for a driver profile. Its ID is the driver's user ID.
type Driver struct {
	id           uuid.UUID
	name         string
	phone        string
	vehicleClass ride.VehicleClass
	vehiclePlate string
	vehicleModel string
	rating       float64
	ratingCount  int
	tripCount    int
	status       Status
	version      int64
	createdAt    time.Time
	updatedAt    time.Time
}

// NewDriver creates an active driver profile with validated fields.
func NewDriver(
	userID uuid.UUID,
	name, phone string,
	vehicleClass ride.VehicleClass,
	vehiclePlate, vehicleModel string,
) (*Driver, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user ID is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("driver name is required")
	}
	if strings.TrimSpace(phone) == "" {
		return nil, fmt.Errorf("phone number is required")
	}
	if !vehicleClass.IsValid() {
		return nil, fmt.Errorf("invalid vehicle class: %s", vehicleClass)
	}
	if strings.TrimSpace(vehiclePlate) == "" {
		return nil, fmt.Errorf("vehicle plate is required")
	}

	now := time.Now().UTC()
	return &Driver{
		id:           userID,
		name:         name,
		phone:        phone,
		vehicleClass: vehicleClass,
		vehiclePlate: strings.ToUpper(vehiclePlate),
		vehicleModel: vehicleModel,
		status:       StatusActive,
		version:      1,
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// Reconstruct rebuilds a Driver from persistence data (no validation).
func Reconstruct(
	id uuid.UUID,
	name, phone string,
	vehicleClass ride.VehicleClass,
	vehiclePlate, vehicleModel string,
	rating float64,
	ratingCount, tripCount int,
	status Status,
	version int64,
	createdAt, updatedAt time.Time,
) *Driver {
	return &Driver{
		id:           id,
		name:         name,
		phone:        phone,
		vehicleClass: vehicleClass,
		vehiclePlate: vehiclePlate,
		vehicleModel: vehicleModel,
		rating:       rating,
		ratingCount:  ratingCount,
		tripCount:    tripCount,
		status:       status,
		version:      version,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

// --- Getters ---

func (d *Driver) ID() uuid.UUID                   { return d.id }
func (d *Driver) Name() string                    { return d.name }
func (d *Driver) Phone() string                   { return d.phone }
func (d *Driver) VehicleClass() ride.VehicleClass { return d.vehicleClass }
func (d *Driver) VehiclePlate() string            { return d.vehiclePlate }
func (d *Driver) VehicleModel() string            { return d.vehicleModel }
func (d *Driver) Rating() float64                 { return d.rating }
func (d *Driver) RatingCount() int                { return d.ratingCount }
func (d *Driver) TripCount() int                  { return d.tripCount }
func (d *Driver) Status() Status                  { return d.status }
func (d *Driver) Version() int64                  { return d.version }
func (d *Driver) CreatedAt() time.Time            { return d.createdAt }
func (d *Driver) UpdatedAt() time.Time            { return d.updatedAt }

// --- Behavior ---

// Update applies partial updates to the profile.
func (d *Driver) Update(name, phone, vehiclePlate, vehicleModel string) {
	if name != "" {
		d.name = name
	}
	if phone != "" {
		d.phone = phone
	}
	if vehiclePlate != "" {
		d.vehiclePlate = strings.ToUpper(vehiclePlate)
	}
	if vehicleModel != "" {
		d.vehicleModel = vehicleModel
	}
	d.touch()
}

// CanServe reports whether the driver may accept a ride of the given class.
func (d *Driver) CanServe(class ride.VehicleClass) error {
	if d.status != StatusActive {
		return fmt.Errorf("driver is %s", d.status)
	}
	if d.vehicleClass != class {
		return fmt.Errorf("driver vehicle class %s cannot serve a %s ride", d.vehicleClass, class)
	}
	return nil
}

// RecordTrip counts a completed trip.
func (d *Driver) RecordTrip() {
	d.tripCount++
	d.touch()
}

// AddRating folds a new score into the running average.
func (d *Driver) AddRating(score int) {
	total := d.rating*float64(d.ratingCount) + float64(score)
	d.ratingCount++
	d.rating = math.Round(total/float64(d.ratingCount)*100) / 100
	d.touch()
}

// Suspend prevents the driver from accepting rides.
func (d *Driver) Suspend() {
	d.status = StatusSuspended
	d.touch()
}

// Reactivate lifts a suspension.
func (d *Driver) Reactivate() {
	d.status = StatusActive
	d.touch()
}

func (d *Driver) touch() {
	d.version++
	d.updatedAt = time.Now().UTC()
}
