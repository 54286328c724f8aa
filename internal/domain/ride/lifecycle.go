package ride

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/geo"
)

// Role is the party issuing a lifecycle command.
type Role string

const (
	RoleRider  Role = "rider"
	RoleDriver Role = "driver"
	// RoleSystem issues automatic signals only.
	RoleSystem Role = "system"
)

// IsValid reports whether r may issue role commands.
func (r Role) IsValid() bool {
	return r == RoleRider || r == RoleDriver
}

// Command is an explicit request from the rider or the driver.
type Command string

const (
	CommandAccept     Command = "accept"
	CommandDecline    Command = "decline"
	CommandArrive     Command = "arrive"
	CommandStartTrip  Command = "start_trip"
	CommandFinishTrip Command = "finish_trip"
	CommandCancel     Command = "cancel"
)

// ParseCommand converts a string to a Command.
func ParseCommand(s string) (Command, error) {
	c := Command(s)
	switch c {
	case CommandAccept, CommandDecline, CommandArrive, CommandStartTrip, CommandFinishTrip, CommandCancel:
		return c, nil
	}
	return "", fmt.Errorf("unknown ride command: %s", s)
}

// Signal is an automatic lifecycle input raised by position tracking.
type Signal string

const SignalArrived Signal = "arrived"

// InputSource separates explicit commands from automatic signals.
type InputSource string

const (
	SourceRoleCommand InputSource = "role_command"
	SourceAutoSignal  InputSource = "auto_signal"
)

// Input is one lifecycle input. Build it with NewRoleCommand or NewAutoSignal.
type Input struct {
	Source  InputSource
	Role    Role
	ActorID uuid.UUID
	Command Command
	Signal  Signal

	// Reason is the cancellation reason given by the rider.
	Reason string
	// Position is the driver's position when accepting, if known.
	Position *geo.Coordinate
}

// NewRoleCommand builds an explicit command input.
func NewRoleCommand(role Role, actorID uuid.UUID, cmd Command) Input {
	return Input{Source: SourceRoleCommand, Role: role, ActorID: actorID, Command: cmd}
}

// NewAutoSignal builds an automatic signal input.
func NewAutoSignal(sig Signal) Input {
	return Input{Source: SourceAutoSignal, Role: RoleSystem, Signal: sig}
}

// WithReason attaches a cancellation reason.
func (in Input) WithReason(reason string) Input {
	in.Reason = reason
	return in
}

// WithPosition attaches the actor's current position.
func (in Input) WithPosition(pos geo.Coordinate) Input {
	in.Position = &pos
	return in
}

func (in Input) action() string {
	if in.Source == SourceAutoSignal {
		return "signal " + string(in.Signal)
	}
	return string(in.Command)
}

func (in Input) isCancel() bool {
	return in.Source == SourceRoleCommand && in.Command == CommandCancel
}

// trigger identifies which input may take an edge.
type trigger struct {
	source  InputSource
	role    Role
	command Command
	signal  Signal
}

func byRole(role Role, cmd Command) trigger {
	return trigger{source: SourceRoleCommand, role: role, command: cmd}
}

func bySignal(sig Signal) trigger {
	return trigger{source: SourceAutoSignal, role: RoleSystem, signal: sig}
}

func (t trigger) matches(in Input) bool {
	return t.source == in.Source && t.role == in.Role && t.command == in.Command && t.signal == in.Signal
}

// guard is an extra precondition on an edge.
type guard func(b *Booking, in Input) error

type rule struct {
	from    RideStatus
	to      RideStatus
	trigger trigger
	guard   guard
}

// guardTable is the single source of truth for who may move a booking and when.
// A rule whose from and to are equal is legal but leaves the booking untouched.
var guardTable = []rule{
	{from: StatusPending, to: StatusAccepted, trigger: byRole(RoleDriver, CommandAccept), guard: noDriverYet},
	{from: StatusPending, to: StatusPending, trigger: byRole(RoleDriver, CommandDecline), guard: noDriverYet},
	{from: StatusPending, to: StatusCancelled, trigger: byRole(RoleRider, CommandCancel)},
	{from: StatusAccepted, to: StatusArriving, trigger: byRole(RoleDriver, CommandArrive)},
	{from: StatusAccepted, to: StatusArriving, trigger: bySignal(SignalArrived)},
	{from: StatusAccepted, to: StatusCancelled, trigger: byRole(RoleRider, CommandCancel)},
	{from: StatusArriving, to: StatusOnway, trigger: byRole(RoleDriver, CommandStartTrip)},
	{from: StatusArriving, to: StatusCancelled, trigger: byRole(RoleRider, CommandCancel), guard: beforeArrival},
	{from: StatusOnway, to: StatusCompleted, trigger: byRole(RoleDriver, CommandFinishTrip)},
}

func noDriverYet(b *Booking, in Input) error {
	if b.driverID != nil {
		return newInvalidTransitionError(b.status, in, "a driver is already assigned")
	}
	return nil
}

func beforeArrival(b *Booking, _ Input) error {
	if b.arrivedAt != nil {
		return newCannotCancelError(b.status, CancelBlockedDriverArrived)
	}
	return nil
}

// Transition describes the outcome of a lifecycle input.
type Transition struct {
	From  RideStatus
	To    RideStatus
	Input Input
	// Applied is false for inputs that are legal but change nothing:
	// a decline, or a repeated cancellation.
	Applied bool
	At      time.Time
}

// Decide evaluates in against the booking without mutating it.
func (b *Booking) Decide(in Input) (Transition, error) {
	if err := b.authorize(in); err != nil {
		return Transition{}, err
	}
	if in.isCancel() {
		if blocked, t, err := b.cancelOutsideWindow(in); blocked {
			return t, err
		}
	}
	if b.status.IsTerminal() {
		return Transition{}, newInvalidTransitionError(b.status, in, "the ride is already "+string(b.status))
	}
	for _, r := range guardTable {
		if r.from != b.status || !r.trigger.matches(in) {
			continue
		}
		if r.guard != nil {
			if err := r.guard(b, in); err != nil {
				return Transition{}, err
			}
		}
		return Transition{From: r.from, To: r.to, Input: in, Applied: r.from != r.to}, nil
	}
	return Transition{}, newInvalidTransitionError(b.status, in, "")
}

// DecideSuperseded re-evaluates an input that was decided against observed
// but lost its write to a concurrent transition. An input that would still
// change the ride is refused: the caller never saw the current state. A
// no-op outcome such as a repeated cancel stands.
func (b *Booking) DecideSuperseded(in Input, observed RideStatus) (Transition, error) {
	t, err := b.Decide(in)
	if err != nil {
		return Transition{}, err
	}
	if t.Applied && b.status != observed {
		return Transition{}, newInvalidTransitionError(b.status, in,
			fmt.Sprintf("the ride moved from %s while the request was in flight", observed))
	}
	return t, nil
}

// authorize checks that the input is well formed and comes from a party to this ride.
func (b *Booking) authorize(in Input) error {
	switch in.Source {
	case SourceAutoSignal:
		if in.Signal != SignalArrived {
			return newInvalidTransitionError(b.status, in, "unknown signal")
		}
		return nil
	case SourceRoleCommand:
	default:
		return newInvalidTransitionError(b.status, in, "unknown input source")
	}
	if _, err := ParseCommand(string(in.Command)); err != nil {
		return newInvalidTransitionError(b.status, in, err.Error())
	}
	switch in.Role {
	case RoleRider:
		if in.ActorID != b.riderID {
			return newInvalidTransitionError(b.status, in, "not the rider of this ride")
		}
	case RoleDriver:
		if in.ActorID == uuid.Nil {
			return newInvalidTransitionError(b.status, in, "driver id is required")
		}
		if b.driverID != nil && *b.driverID != in.ActorID {
			return newInvalidTransitionError(b.status, in, "not the assigned driver")
		}
	default:
		return newInvalidTransitionError(b.status, in, "unknown role")
	}
	return nil
}

// cancelOutsideWindow resolves a rider cancellation that the guard table
// alone cannot: repeats, completed rides and rides past the pickup point.
func (b *Booking) cancelOutsideWindow(in Input) (bool, Transition, error) {
	if in.Role != RoleRider {
		return true, Transition{}, newInvalidTransitionError(b.status, in, "only the rider may cancel")
	}
	switch {
	case b.status == StatusCancelled:
		return true, Transition{From: b.status, To: b.status, Input: in}, nil
	case b.status == StatusOnway:
		return true, Transition{}, newCannotCancelError(b.status, CancelBlockedTripStarted)
	case b.status == StatusArriving && b.arrivedAt != nil:
		return true, Transition{}, newCannotCancelError(b.status, CancelBlockedDriverArrived)
	}
	return false, Transition{}, nil
}

// Apply evaluates in and, if legal, mutates the booking. An error leaves the
// booking untouched.
func (b *Booking) Apply(in Input, now time.Time) (Transition, error) {
	t, err := b.Decide(in)
	if err != nil {
		return Transition{}, err
	}
	t.At = now.UTC()
	if !t.Applied {
		return t, nil
	}

	at := t.At
	switch t.To {
	case StatusAccepted:
		driverID := in.ActorID
		b.driverID = &driverID
		b.acceptedAt = &at
		if in.Position != nil && in.Position.IsValid() {
			origin := *in.Position
			b.driverOrigin = &origin
		}
	case StatusArriving:
		b.arrivedAt = &at
	case StatusOnway:
		b.startedAt = &at
	case StatusCompleted:
		b.completedAt = &at
	case StatusCancelled:
		b.cancelReason = in.Reason
		if b.cancelReason == "" {
			b.cancelReason = DefaultCancelReason
		}
		b.cancelledAt = &at
	}
	b.status = t.To
	b.updatedAt = at
	return t, nil
}

// DefaultCancelReason is recorded when the rider gives none.
const DefaultCancelReason = "cancelled by rider"

// AvailableCommands lists the commands role could issue right now.
func (b *Booking) AvailableCommands(role Role) []Command {
	var actor uuid.UUID
	switch role {
	case RoleRider:
		actor = b.riderID
	case RoleDriver:
		if b.driverID != nil {
			actor = *b.driverID
		} else {
			actor = uuid.New()
		}
	default:
		return nil
	}

	var out []Command
	for _, cmd := range []Command{CommandAccept, CommandDecline, CommandArrive, CommandStartTrip, CommandFinishTrip, CommandCancel} {
		t, err := b.Decide(NewRoleCommand(role, actor, cmd))
		if err != nil {
			continue
		}
		if t.Applied || cmd == CommandDecline {
			out = append(out, cmd)
		}
	}
	return out
}
