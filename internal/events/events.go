// Package events defines the Kafka contract of the ride service: topic
// names, CloudEvent types and their payloads.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Source is the CloudEvent source of everything this service publishes.
const Source = "service-ride"

// Topics.
const (
	TopicRideEvents      = "ride.events"
	TopicDriverLocations = "driver.locations"
)

// Ride event types published on TopicRideEvents.
const (
	RideRequested = "ride.requested"
	RideAccepted  = "ride.accepted"
	RideDeclined  = "ride.declined"
	RideArriving  = "ride.arriving"
	RideOnway     = "ride.onway"
	RideCompleted = "ride.completed"
	RideCancelled = "ride.cancelled"
	RideRated     = "ride.rated"
)

// DriverLocationUpdated is consumed from TopicDriverLocations.
const DriverLocationUpdated = "driver.location.updated"

// RideRequestedEvent is published when a rider books a ride.
type RideRequestedEvent struct {
	RideID       uuid.UUID `json:"ride_id"`
	BookingCode  string    `json:"booking_code"`
	RiderID      uuid.UUID `json:"rider_id"`
	VehicleClass string    `json:"vehicle_class"`
	PickupLat    float64   `json:"pickup_lat"`
	PickupLng    float64   `json:"pickup_lng"`
	DestLat      float64   `json:"dest_lat"`
	DestLng      float64   `json:"dest_lng"`
	DistanceKm   float64   `json:"distance_km"`
	Fare         int64     `json:"fare"`
	Currency     string    `json:"currency"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// RideTransitionedEvent is published for every applied lifecycle transition.
type RideTransitionedEvent struct {
	RideID       uuid.UUID  `json:"ride_id"`
	BookingCode  string     `json:"booking_code"`
	RiderID      uuid.UUID  `json:"rider_id"`
	DriverID     *uuid.UUID `json:"driver_id,omitempty"`
	From         string     `json:"from"`
	To           string     `json:"to"`
	Source       string     `json:"source"`
	Role         string     `json:"role"`
	Command      string     `json:"command,omitempty"`
	Signal       string     `json:"signal,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`
	Version      int64      `json:"version"`
	OccurredAt   time.Time  `json:"occurred_at"`
}

// RideDeclinedEvent is published when a driver dismisses a pending ride.
type RideDeclinedEvent struct {
	RideID      uuid.UUID `json:"ride_id"`
	BookingCode string    `json:"booking_code"`
	DriverID    uuid.UUID `json:"driver_id"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// RideRatedEvent is published when one party rates the other.
type RideRatedEvent struct {
	RideID     uuid.UUID `json:"ride_id"`
	RaterID    uuid.UUID `json:"rater_id"`
	RateeID    uuid.UUID `json:"ratee_id"`
	RaterRole  string    `json:"rater_role"`
	Score      int       `json:"score"`
	OccurredAt time.Time `json:"occurred_at"`
}

// DriverLocationEvent is a position report relayed by the driver gateway.
type DriverLocationEvent struct {
	DriverID   uuid.UUID `json:"driver_id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Heading    float64   `json:"heading"`
	SpeedKmh   float64   `json:"speed_kmh"`
	ReportedAt time.Time `json:"reported_at"`
}

// TransitionEventType returns the event type for a status reached by a transition.
func TransitionEventType(status string) string {
	return "ride." + status
}
