package tracking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/domain/ride"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/geo"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/routing"
)

// ErrSessionClosed is returned when subscribing to a session that has ended.
var ErrSessionClosed = errors.New("tracking session closed")

// RouteEstimator produces routes for a leg. It must not fail.
type RouteEstimator interface {
	Estimate(ctx context.Context, origin, dest geo.Coordinate) routing.Estimate
}

// SignalRaiser feeds automatic signals back into the ride lifecycle.
type SignalRaiser interface {
	RaiseSignal(ctx context.Context, rideID uuid.UUID, sig ride.Signal) error
}

// SignalRaiserFunc adapts a function to SignalRaiser.
type SignalRaiserFunc func(ctx context.Context, rideID uuid.UUID, sig ride.Signal) error

func (f SignalRaiserFunc) RaiseSignal(ctx context.Context, rideID uuid.UUID, sig ride.Signal) error {
	return f(ctx, rideID, sig)
}

// DriverCard is what the rider sees about the assigned driver.
type DriverCard struct {
	ID           uuid.UUID         `json:"id"`
	Name         string            `json:"name"`
	Phone        string            `json:"phone"`
	VehicleClass ride.VehicleClass `json:"vehicle_class"`
	VehiclePlate string            `json:"vehicle_plate"`
	VehicleModel string            `json:"vehicle_model,omitempty"`
	Rating       float64           `json:"rating"`
	TripCount    int               `json:"trip_count"`
}

// Frame is one tracking update for one role.
type Frame struct {
	RideID         uuid.UUID         `json:"ride_id"`
	BookingCode    string            `json:"booking_code"`
	Role           ride.Role         `json:"role"`
	Status         ride.RideStatus   `json:"status"`
	Stage          ride.Stage        `json:"stage,omitempty"`
	Leg            Leg               `json:"leg,omitempty"`
	DriverPosition *geo.Coordinate   `json:"driver_position,omitempty"`
	Fraction       float64           `json:"fraction_complete"`
	EtaSeconds     float64           `json:"eta_seconds"`
	RoutePoints    []geo.Coordinate  `json:"route_points,omitempty"`
	RouteSource    routing.Source    `json:"route_source,omitempty"`
	Commands       []ride.Command    `json:"commands"`
	Driver         *DriverCard       `json:"driver,omitempty"`
	Fare           int64             `json:"fare"`
	Currency       string            `json:"currency"`
	CancelReason   string            `json:"cancel_reason,omitempty"`
	Terminal       bool              `json:"terminal"`
	Seq            uint64            `json:"seq"`
	At             time.Time         `json:"at"`
}

// SessionConfig tunes tracking sessions.
type SessionConfig struct {
	TickInterval     time.Duration
	RouteTimeout     time.Duration
	FallbackSpeedKmh float64
	SubscriberBuffer int
	Tracker          TrackerConfig
}

// DefaultSessionConfig returns the production tuning.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		TickInterval:     time.Second,
		RouteTimeout:     5 * time.Second,
		FallbackSpeedKmh: geo.DefaultFallbackSpeedKmh,
		SubscriberBuffer: 8,
		Tracker:          DefaultTrackerConfig(),
	}
}

type subscriber struct {
	role ride.Role
	ch   chan Frame
}

func (s *subscriber) send(f Frame) {
	select {
	case s.ch <- f:
	default:
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- f:
		default:
		}
	}
}

type bookingMsg struct {
	booking *ride.Booking
	driver  *DriverCard
}

type routeMsg struct {
	legID    uint64
	estimate routing.Estimate
}

type subscribeMsg struct {
	role  ride.Role
	reply chan *subscriber
}

type unsubscribeMsg struct {
	sub *subscriber
}

// Session is the live feed for one ride, shared by its rider and driver.
// All state is owned by the goroutine started in run; other goroutines talk
// to it through the inbox.
type Session struct {
	rideID    uuid.UUID
	cfg       SessionConfig
	estimator RouteEstimator
	raiser    SignalRaiser
	hub       *Hub
	logger    *zap.Logger

	inbox chan any
	done  chan struct{}

	booking  *ride.Booking
	driver   *DriverCard
	tracker  *Tracker
	route    routing.Estimate
	progress Progress
	hasFix   bool
	subs     map[*subscriber]struct{}
	seq      uint64
}

func newSession(
	b *ride.Booking,
	driver *DriverCard,
	cfg SessionConfig,
	estimator RouteEstimator,
	raiser SignalRaiser,
	hub *Hub,
	clock func() time.Time,
	logger *zap.Logger,
) *Session {
	return &Session{
		rideID:    b.ID(),
		cfg:       cfg,
		estimator: estimator,
		raiser:    raiser,
		hub:       hub,
		logger:    logger.With(zap.String("ride_id", b.ID().String())),
		inbox:     make(chan any, 16),
		done:      make(chan struct{}),
		booking:   b,
		driver:    driver,
		tracker:   NewTracker(cfg.Tracker, clock),
		subs:      make(map[*subscriber]struct{}),
	}
}

// Done is closed when the session has ended.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) post(msg any) bool {
	select {
	case s.inbox <- msg:
		return true
	case <-s.done:
		return false
	}
}

// Update hands the session a newer snapshot of the booking.
func (s *Session) Update(b *ride.Booking, driver *DriverCard) {
	s.post(bookingMsg{booking: b, driver: driver})
}

// Subscribe attaches a role-scoped view. The channel is closed when the ride
// ends or cancel is called.
func (s *Session) Subscribe(ctx context.Context, role ride.Role) (<-chan Frame, func(), error) {
	reply := make(chan *subscriber, 1)
	if !s.post(subscribeMsg{role: role, reply: reply}) {
		return nil, nil, ErrSessionClosed
	}
	select {
	case sub := <-reply:
		if sub == nil {
			return nil, nil, ErrSessionClosed
		}
		cancel := func() { s.post(unsubscribeMsg{sub: sub}) }
		return sub.ch, cancel, nil
	case <-s.done:
		return nil, nil, ErrSessionClosed
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

func (s *Session) run(ctx context.Context) {
	defer s.shutdown()

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	s.syncLeg()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		case msg := <-s.inbox:
			if !s.handle(msg) {
				return
			}
		}
	}
}

// handle processes one inbox message and reports whether to keep running.
func (s *Session) handle(msg any) bool {
	switch m := msg.(type) {
	case bookingMsg:
		if m.booking.Version() < s.booking.Version() {
			return true
		}
		s.booking = m.booking
		if m.driver != nil {
			s.driver = m.driver
		}
		s.syncLeg()
		s.broadcast()
		if s.booking.Status().IsTerminal() {
			return false
		}
	case routeMsg:
		if _, legID := s.tracker.Leg(); m.legID != legID || !s.tracker.Active() {
			return true
		}
		s.route = m.estimate
		s.tracker.Reroute(m.estimate.Points, m.estimate.Duration())
	case subscribeMsg:
		sub := &subscriber{role: m.role, ch: make(chan Frame, s.cfg.SubscriberBuffer)}
		s.subs[sub] = struct{}{}
		if !s.hasFix {
			s.sample()
		}
		if f, ok := s.frame(m.role); ok {
			sub.send(f)
		}
		m.reply <- sub
		if s.booking.Status().IsTerminal() {
			return false
		}
	case unsubscribeMsg:
		if _, ok := s.subs[m.sub]; ok {
			delete(s.subs, m.sub)
			close(m.sub.ch)
		}
		if len(s.subs) == 0 {
			return false
		}
	}
	return true
}

// syncLeg makes the tracker follow the leg implied by the booking status.
func (s *Session) syncLeg() {
	b := s.booking
	leg, _ := s.tracker.Leg()
	switch b.Status() {
	case ride.StatusAccepted:
		if !s.tracker.Active() || leg != LegPickup {
			s.startLeg(LegPickup, s.driverOrigin(), b.Pickup().Coordinate(), b.AcceptedAt())
		}
	case ride.StatusArriving:
		if !s.tracker.Active() || leg != LegPickup {
			s.startLeg(LegPickup, s.driverOrigin(), b.Pickup().Coordinate(), b.AcceptedAt())
		}
		s.tracker.Disarm()
	case ride.StatusOnway:
		if !s.tracker.Active() || leg != LegDestination {
			s.startLeg(LegDestination, b.Pickup().Coordinate(), b.Destination().Coordinate(), b.StartedAt())
		}
	default:
		s.tracker.Stop()
		s.route = routing.Estimate{}
		s.hasFix = false
		return
	}
	if !s.hasFix {
		s.sample()
	}
}

func (s *Session) driverOrigin() geo.Coordinate {
	if o := s.booking.DriverOrigin(); o != nil {
		return *o
	}
	if id := s.booking.DriverID(); id != nil && s.hub != nil {
		if p, ok := s.hub.Latest(*id); ok {
			return p.Coordinate
		}
	}
	return s.booking.Pickup().Coordinate()
}

// startLeg switches to a new leg on a straight line at once and asks for
// the real route in the background.
func (s *Session) startLeg(leg Leg, origin, dest geo.Coordinate, startedAt *time.Time) {
	fallback := routing.StraightLine(origin, dest, s.cfg.FallbackSpeedKmh)

	var start time.Time
	if startedAt != nil {
		start = *startedAt
	}

	var legID uint64
	if id := s.booking.DriverID(); id != nil && s.hub != nil && s.hub.IsLive(*id) {
		legID = s.tracker.Start(leg, NewLiveFeed(s.hub.Subscribe(*id), origin, dest, s.cfg.FallbackSpeedKmh))
	} else {
		legID = s.tracker.StartSimulated(leg, fallback.Points, fallback.Duration(), start)
	}
	s.route = fallback
	s.hasFix = false
	s.logger.Debug("tracking leg started", zap.String("leg", string(leg)), zap.Uint64("leg_id", legID))

	go s.requestRoute(legID, origin, dest)
}

func (s *Session) requestRoute(legID uint64, origin, dest geo.Coordinate) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RouteTimeout)
	defer cancel()
	est := s.estimator.Estimate(ctx, origin, dest)
	s.post(routeMsg{legID: legID, estimate: est})
}

func (s *Session) tick() {
	s.sample()
	s.broadcast()
}

func (s *Session) sample() {
	p, ok := s.tracker.Tick()
	if !ok {
		return
	}
	s.progress, s.hasFix = p, true
	if p.Arrived && s.booking.Status() == ride.StatusAccepted {
		go s.raiseArrived()
	}
}

func (s *Session) raiseArrived() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.raiser.RaiseSignal(ctx, s.rideID, ride.SignalArrived); err != nil {
		if errors.Is(err, ride.ErrInvalidTransition) {
			s.logger.Debug("arrived signal superseded", zap.Error(err))
			return
		}
		s.logger.Warn("failed to raise arrived signal", zap.Error(err))
		return
	}
	s.logger.Info("driver reached pickup threshold")
}

func (s *Session) broadcast() {
	if len(s.subs) == 0 {
		return
	}
	s.seq++
	for sub := range s.subs {
		if f, ok := s.frame(sub.role); ok {
			sub.send(f)
		}
	}
}

// frame projects the shared state into role's view. Riders see nothing
// until a driver has accepted.
func (s *Session) frame(role ride.Role) (Frame, bool) {
	b := s.booking
	status := b.Status()
	if role == ride.RoleRider && status == ride.StatusPending {
		return Frame{}, false
	}
	stage, _ := ride.StageFor(role, status)

	f := Frame{
		RideID:       b.ID(),
		BookingCode:  b.BookingCode(),
		Role:         role,
		Status:       status,
		Stage:        stage,
		Commands:     b.AvailableCommands(role),
		Fare:         b.Fare(),
		Currency:     b.Currency(),
		CancelReason: b.CancelReason(),
		Terminal:     status.IsTerminal(),
		Seq:          s.seq,
		At:           s.tracker.Now().UTC(),
	}
	if f.Commands == nil {
		f.Commands = []ride.Command{}
	}
	if role == ride.RoleRider {
		f.Driver = s.driver
	}
	if s.tracker.Active() {
		leg, _ := s.tracker.Leg()
		f.Leg = leg
		f.RoutePoints = s.route.Points
		f.RouteSource = s.route.Source
		if s.hasFix {
			pos := s.progress.Position
			f.DriverPosition = &pos
			f.Fraction = s.progress.Fraction
			f.EtaSeconds = s.progress.Remaining.Seconds()
		}
	}
	return f, true
}

func (s *Session) shutdown() {
	s.tracker.Stop()
	close(s.done)
	for sub := range s.subs {
		close(sub.ch)
	}
	s.subs = nil
	// Wake any poster blocked before done was closed.
	for {
		select {
		case msg := <-s.inbox:
			if m, ok := msg.(subscribeMsg); ok {
				m.reply <- nil
			}
		default:
			return
		}
	}
}
