// Package notify sends fire-and-forget alerts to riders and drivers.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind is the type of alert.
type Kind string

const (
	KindRideAccepted  Kind = "ride_accepted"
	KindDriverArrived Kind = "driver_arrived"
	KindTripStarted   Kind = "trip_started"
	KindTripCompleted Kind = "trip_completed"
	KindRideCancelled Kind = "ride_cancelled"
)

// Notification is one alert for one recipient. CallPhone, when set, is the
// number the recipient's app offers to dial.
type Notification struct {
	ID          uuid.UUID `json:"id"`
	Kind        Kind      `json:"kind"`
	RecipientID uuid.UUID `json:"recipient_id"`
	Audience    string    `json:"audience"`
	RideID      uuid.UUID `json:"ride_id"`
	BookingCode string    `json:"booking_code"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	CallPhone   string    `json:"call_phone,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Notifier delivers notifications. Callers log failures and move on.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(context.Context, Notification) error { return nil }
