package ride

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/domain"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/geo"
)

const bookingCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Booking is the aggregate root for one requested trip.
type Booking struct {
	id          uuid.UUID
	bookingCode string
	riderID     uuid.UUID
	driverID    *uuid.UUID
	status      RideStatus

	pickup       Place
	destination  Place
	vehicleClass VehicleClass
	distanceKm   float64
	fare         int64
	currency     string

	driverOrigin *geo.Coordinate

	acceptedAt   *time.Time
	arrivedAt    *time.Time
	startedAt    *time.Time
	completedAt  *time.Time
	cancelledAt  *time.Time
	cancelReason string

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// GenerateBookingCode creates a booking code in the format "RD-XXXXXX".
func GenerateBookingCode() (string, error) {
	result := make([]byte, 6)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(bookingCodeChars))))
		if err != nil {
			return "", fmt.Errorf("failed to generate booking code: %w", err)
		}
		result[i] = bookingCodeChars[n.Int64()]
	}
	return "RD-" + string(result), nil
}

// NewBooking creates a pending booking. Distance and fare are quoted by the
// caller and fixed for the life of the booking.
func NewBooking(
	riderID uuid.UUID,
	pickup Place,
	destination Place,
	vehicleClass VehicleClass,
	distanceKm float64,
	fare int64,
	currency string,
) (*Booking, error) {
	if riderID == uuid.Nil {
		return nil, domain.NewValidationError("rider ID is required")
	}
	if err := pickup.Validate("pickup"); err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	if err := destination.Validate("destination"); err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	if !vehicleClass.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid vehicle class: %s", vehicleClass))
	}
	if distanceKm < 0 {
		return nil, domain.NewValidationError("distance cannot be negative")
	}
	if fare <= 0 {
		return nil, domain.NewValidationError("fare must be positive")
	}

	code, err := GenerateBookingCode()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Booking{
		id:           uuid.New(),
		bookingCode:  code,
		riderID:      riderID,
		status:       StatusPending,
		pickup:       pickup,
		destination:  destination,
		vehicleClass: vehicleClass,
		distanceKm:   distanceKm,
		fare:         fare,
		currency:     currency,
		version:      1,
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// ReconstructBooking rebuilds a Booking from persistence data (no validation).
func ReconstructBooking(
	id uuid.UUID,
	bookingCode string,
	riderID uuid.UUID,
	driverID *uuid.UUID,
	status RideStatus,
	pickup Place,
	destination Place,
	vehicleClass VehicleClass,
	distanceKm float64,
	fare int64,
	currency string,
	driverOrigin *geo.Coordinate,
	acceptedAt *time.Time,
	arrivedAt *time.Time,
	startedAt *time.Time,
	completedAt *time.Time,
	cancelledAt *time.Time,
	cancelReason string,
	version int64,
	createdAt time.Time,
	updatedAt time.Time,
) *Booking {
	return &Booking{
		id:           id,
		bookingCode:  bookingCode,
		riderID:      riderID,
		driverID:     driverID,
		status:       status,
		pickup:       pickup,
		destination:  destination,
		vehicleClass: vehicleClass,
		distanceKm:   distanceKm,
		fare:         fare,
		currency:     currency,
		driverOrigin: driverOrigin,
		acceptedAt:   acceptedAt,
		arrivedAt:    arrivedAt,
		startedAt:    startedAt,
		completedAt:  completedAt,
		cancelledAt:  cancelledAt,
		cancelReason: cancelReason,
		version:      version,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

// --- Getters ---

// ID returns the booking's unique identifier.
func (b *Booking) ID() uuid.UUID { return b.id }

// BookingCode returns the human-readable booking code.
func (b *Booking) BookingCode() string { return b.bookingCode }

// RiderID returns the rider's user ID.
func (b *Booking) RiderID() uuid.UUID { return b.riderID }

// DriverID returns the assigned driver's user ID, or nil if unassigned.
func (b *Booking) DriverID() *uuid.UUID { return b.driverID }

// Status returns the current lifecycle status.
func (b *Booking) Status() RideStatus { return b.status }

func (b *Booking) Pickup() Place              { return b.pickup }
func (b *Booking) Destination() Place         { return b.destination }
func (b *Booking) VehicleClass() VehicleClass { return b.vehicleClass }

// DistanceKm returns the road distance quoted at booking time.
func (b *Booking) DistanceKm() float64 { return b.distanceKm }

// Fare returns the fare quoted at booking time.
func (b *Booking) Fare() int64 { return b.fare }

func (b *Booking) Currency() string { return b.currency }

// DriverOrigin returns where the driver was when accepting, if known.
func (b *Booking) DriverOrigin() *geo.Coordinate { return b.driverOrigin }

func (b *Booking) AcceptedAt() *time.Time  { return b.acceptedAt }
func (b *Booking) ArrivedAt() *time.Time   { return b.arrivedAt }
func (b *Booking) StartedAt() *time.Time   { return b.startedAt }
func (b *Booking) CompletedAt() *time.Time { return b.completedAt }
func (b *Booking) CancelledAt() *time.Time { return b.cancelledAt }

// CancelReason returns the cancellation reason; empty unless cancelled.
func (b *Booking) CancelReason() string { return b.cancelReason }

// Version returns the entity version for optimistic locking.
func (b *Booking) Version() int64 { return b.version }

// CreatedAt returns the creation timestamp.
func (b *Booking) CreatedAt() time.Time { return b.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (b *Booking) UpdatedAt() time.Time { return b.updatedAt }

// --- Behavior ---

// IsParty reports whether userID is the rider or the assigned driver.
func (b *Booking) IsParty(userID uuid.UUID) bool {
	if userID == b.riderID {
		return true
	}
	return b.driverID != nil && *b.driverID == userID
}

// RoleOf returns the role userID plays in this ride.
func (b *Booking) RoleOf(userID uuid.UUID) (Role, bool) {
	switch {
	case userID == b.riderID:
		return RoleRider, true
	case b.driverID != nil && *b.driverID == userID:
		return RoleDriver, true
	}
	return "", false
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
	b.updatedAt = time.Now().UTC()
}

// Clone returns an independent copy of the booking.
func (b *Booking) Clone() *Booking {
	c := *b
	c.driverID = clonePtr(b.driverID)
	c.driverOrigin = clonePtr(b.driverOrigin)
	c.acceptedAt = clonePtr(b.acceptedAt)
	c.arrivedAt = clonePtr(b.arrivedAt)
	c.startedAt = clonePtr(b.startedAt)
	c.completedAt = clonePtr(b.completedAt)
	c.cancelledAt = clonePtr(b.cancelledAt)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
