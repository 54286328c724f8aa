package application

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/domain/ride"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/notify"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/tracking"
)

// notificationsFor returns the alerts an applied transition sends.
func notificationsFor(b *ride.Booking, t ride.Transition, driver *tracking.DriverCard) []notify.Notification {
	base := func(kind notify.Kind, recipient uuid.UUID, audience ride.Role, title, body string) notify.Notification {
		return notify.Notification{
			ID:          uuid.New(),
			Kind:        kind,
			RecipientID: recipient,
			Audience:    string(audience),
			RideID:      b.ID(),
			BookingCode: b.BookingCode(),
			Title:       title,
			Body:        body,
			CreatedAt:   t.At,
		}
	}

	var driverName, driverPlate, driverPhone string
	if driver != nil {
		driverName, driverPlate, driverPhone = driver.Name, driver.VehiclePlate, driver.Phone
	}
	if driverName == "" {
		driverName = "Your driver"
	}

	switch t.To {
	case ride.StatusAccepted:
		n := base(notify.KindRideAccepted, b.RiderID(), ride.RoleRider,
			"Driver found",
			fmt.Sprintf("%s (%s) is coming to pick you up.", driverName, driverPlate))
		n.CallPhone = driverPhone
		return []notify.Notification{n}

	case ride.StatusArriving:
		n := base(notify.KindDriverArrived, b.RiderID(), ride.RoleRider,
			"Your driver has arrived",
			fmt.Sprintf("%s is waiting at %s.", driverName, b.Pickup().Address))
		n.CallPhone = driverPhone
		return []notify.Notification{n}

	case ride.StatusOnway:
		return []notify.Notification{base(notify.KindTripStarted, b.RiderID(), ride.RoleRider,
			"Trip started",
			fmt.Sprintf("Heading to %s.", b.Destination().Address))}

	case ride.StatusCompleted:
		body := fmt.Sprintf("Fare: %d %s.", b.Fare(), b.Currency())
		out := []notify.Notification{
			base(notify.KindTripCompleted, b.RiderID(), ride.RoleRider, "You have arrived", body),
		}
		if b.DriverID() != nil {
			out = append(out, base(notify.KindTripCompleted, *b.DriverID(), ride.RoleDriver, "Trip completed", body))
		}
		return out

	case ride.StatusCancelled:
		if b.DriverID() == nil {
			return nil
		}
		return []notify.Notification{base(notify.KindRideCancelled, *b.DriverID(), ride.RoleDriver,
			"Ride cancelled",
			fmt.Sprintf("Ride %s was cancelled: %s.", b.BookingCode(), b.CancelReason()))}
	}
	return nil
}
