package ride

import "fmt"

// RideStatus is the canonical lifecycle state of a ride booking.
type RideStatus string

const (
	StatusPending   RideStatus = "pending"
	StatusAccepted  RideStatus = "accepted"
	StatusArriving  RideStatus = "arriving"
	StatusOnway     RideStatus = "onway"
	StatusCompleted RideStatus = "completed"
	StatusCancelled RideStatus = "cancelled"
)

// validTransitions lists the edges of the lifecycle graph. Who may take an
// edge, and when, is decided by the guard table in lifecycle.go.
var validTransitions = map[RideStatus][]RideStatus{
	StatusPending:   {StatusAccepted, StatusCancelled},
	StatusAccepted:  {StatusArriving, StatusCancelled},
	StatusArriving:  {StatusOnway, StatusCancelled},
	StatusOnway:     {StatusCompleted},
	StatusCompleted: {},
	StatusCancelled: {},
}

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []RideStatus{
	StatusPending, StatusAccepted, StatusArriving, StatusOnway, StatusCompleted, StatusCancelled,
}

// IsValid returns true if the status is a recognized ride status.
func (s RideStatus) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if the graph has an edge from s to target.
func (s RideStatus) CanTransitionTo(target RideStatus) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible from this status.
func (s RideStatus) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

// HasDriver reports whether a booking in this status must carry a driver.
func (s RideStatus) HasDriver() bool {
	switch s {
	case StatusAccepted, StatusArriving, StatusOnway, StatusCompleted:
		return true
	}
	return false
}

func (s RideStatus) String() string {
	return string(s)
}

// ParseRideStatus converts a string to a RideStatus, returning an error if invalid.
func ParseRideStatus(s string) (RideStatus, error) {
	status := RideStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid ride status: %s", s)
	}
	return status, nil
}
