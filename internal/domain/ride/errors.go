package ride

import (
	"errors"
	"fmt"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/domain"
)

// Error codes surfaced to clients.
const (
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeCannotCancel      = "CANNOT_CANCEL"
)

var (
	// ErrInvalidTransition marks a command from the wrong role, the wrong
	// state, or a terminal state. The booking is never modified.
	ErrInvalidTransition = errors.New("invalid ride transition")

	// ErrCannotCancel marks a rider cancellation outside the cancellation window.
	ErrCannotCancel = errors.New("ride can no longer be cancelled")
)

// CancelBlockReason tells the UI why cancellation was refused.
type CancelBlockReason string

const (
	CancelBlockedDriverArrived CancelBlockReason = "driver_arrived"
	CancelBlockedTripStarted   CancelBlockReason = "trip_started"
)

// Message is the user-facing text for the reason.
func (r CancelBlockReason) Message() string {
	switch r {
	case CancelBlockedDriverArrived:
		return "the driver has already arrived at the pickup point"
	case CancelBlockedTripStarted:
		return "the trip has already started"
	}
	return "the ride can no longer be cancelled"
}

// CancelBlockedError is returned when a cancellation falls outside the window.
type CancelBlockedError struct {
	Reason CancelBlockReason
	Status RideStatus
}

func (e *CancelBlockedError) Error() string {
	return fmt.Sprintf("cannot cancel ride in status %s: %s", e.Status, e.Reason)
}

// Is lets errors.Is match ErrCannotCancel.
func (e *CancelBlockedError) Is(target error) bool { return target == ErrCannotCancel }

func newInvalidTransitionError(status RideStatus, in Input, reason string) *domain.AppError {
	msg := fmt.Sprintf("%s cannot %s a ride that is %s", in.Role, in.action(), status)
	if reason != "" {
		msg += ": " + reason
	}
	return domain.NewAppError(CodeInvalidTransition, msg, ErrInvalidTransition)
}

func newCannotCancelError(status RideStatus, reason CancelBlockReason) *domain.AppError {
	return domain.NewAppError(CodeCannotCancel, reason.Message(), &CancelBlockedError{Reason: reason, Status: status})
}

// CancelBlockReasonOf extracts the reason from a CannotCancel error.
func CancelBlockReasonOf(err error) (CancelBlockReason, bool) {
	var blocked *CancelBlockedError
	if errors.As(err, &blocked) {
		return blocked.Reason, true
	}
	return "", false
}
