package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/domain"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/kafka"
	driverDomain "github.com/Kilat-Pet-Delivery/service-ride/internal/domain/driver"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/domain/ride"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/events"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/geo"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/notify"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/routing"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/tracking"
)

const (
	maxTransitionAttempts = 5
	maxCodeAttempts       = 3
)

// EventProducer publishes CloudEvents. *kafka.Producer satisfies it.
type EventProducer interface {
	PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error
}

// RouteEstimator quotes a route between two points and never fails.
type RouteEstimator interface {
	Estimate(ctx context.Context, origin, dest geo.Coordinate) routing.Estimate
}

// TrackingSessions is the live tracking side of a ride. *tracking.Manager satisfies it.
type TrackingSessions interface {
	Subscribe(ctx context.Context, b *ride.Booking, driver *tracking.DriverCard, role ride.Role) (<-chan tracking.Frame, func(), error)
	Update(b *ride.Booking, driver *tracking.DriverCard)
}

// PlaceDTO is a point on the map with an optional street address.
type PlaceDTO struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

func (p PlaceDTO) toPlace() ride.Place {
	return ride.Place{Lat: p.Lat, Lng: p.Lng, Address: p.Address}
}

func toPlaceDTO(p ride.Place) PlaceDTO {
	return PlaceDTO{Lat: p.Lat, Lng: p.Lng, Address: p.Address}
}

// FareQuoteRequest holds the data needed to quote a ride.
type FareQuoteRequest struct {
	Pickup       PlaceDTO `json:"pickup" binding:"required"`
	Destination  PlaceDTO `json:"destination" binding:"required"`
	VehicleClass string   `json:"vehicle_class" binding:"required"`
}

// CreateRideRequest holds the data needed to book a ride.
type CreateRideRequest = FareQuoteRequest

// FareQuoteDTO is a priced route.
type FareQuoteDTO struct {
	VehicleClass    string           `json:"vehicle_class"`
	DistanceKm      float64          `json:"distance_km"`
	DurationSeconds float64          `json:"duration_seconds"`
	Fare            int64            `json:"fare"`
	Currency        string           `json:"currency"`
	RouteSource     routing.Source   `json:"route_source"`
	RoutePoints     []geo.Coordinate `json:"route_points,omitempty"`
}

// TransitionRequest is a role command against a ride. Lat/Lng optionally
// carry the driver's position when accepting.
type TransitionRequest struct {
	Command string   `json:"command" binding:"required"`
	Reason  string   `json:"reason"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
}

// RideDTO is the response representation of a ride booking.
type RideDTO struct {
	ID           uuid.UUID       `json:"id"`
	BookingCode  string          `json:"booking_code"`
	RiderID      uuid.UUID       `json:"rider_id"`
	DriverID     *uuid.UUID      `json:"driver_id,omitempty"`
	Status       string          `json:"status"`
	Stage        string          `json:"stage,omitempty"`
	Commands     []ride.Command  `json:"commands,omitempty"`
	Pickup       PlaceDTO        `json:"pickup"`
	Destination  PlaceDTO        `json:"destination"`
	VehicleClass string          `json:"vehicle_class"`
	DistanceKm   float64         `json:"distance_km"`
	Fare         int64           `json:"fare"`
	Currency     string          `json:"currency"`
	DriverOrigin *geo.Coordinate `json:"driver_origin,omitempty"`
	AcceptedAt   *time.Time      `json:"accepted_at,omitempty"`
	ArrivedAt    *time.Time      `json:"arrived_at,omitempty"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	CancelledAt  *time.Time      `json:"cancelled_at,omitempty"`
	CancelReason string          `json:"cancel_reason,omitempty"`
	Version      int64           `json:"version"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// TransitionResultDTO reports the outcome of a lifecycle input.
type TransitionResultDTO struct {
	Ride    RideDTO `json:"ride"`
	From    string  `json:"from"`
	To      string  `json:"to"`
	Applied bool    `json:"applied"`
}

// RideStatsDTO holds ride statistics for the admin dashboard.
type RideStatsDTO struct {
	TotalRides int64            `json:"total_rides"`
	ByStatus   map[string]int64 `json:"by_status"`
}

// RideService is the application service orchestrating ride use cases.
type RideService struct {
	repo      ride.Repository
	drivers   driverDomain.Repository
	locator   driverDomain.Locator
	fares     ride.FareStrategy
	estimator RouteEstimator
	sessions  TrackingSessions
	producer  EventProducer
	notifier  notify.Notifier
	currency  string
	clock     func() time.Time
	logger    *zap.Logger
}

// NewRideService creates a new RideService. locator may be nil.
func NewRideService(
	repo ride.Repository,
	drivers driverDomain.Repository,
	locator driverDomain.Locator,
	fares ride.FareStrategy,
	estimator RouteEstimator,
	producer EventProducer,
	notifier notify.Notifier,
	logger *zap.Logger,
) *RideService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &RideService{
		repo:      repo,
		drivers:   drivers,
		locator:   locator,
		fares:     fares,
		estimator: estimator,
		producer:  producer,
		notifier:  notifier,
		currency:  domain.CurrencyVND,
		clock:     time.Now,
		logger:    logger,
	}
}

// WithSessions attaches the live tracking sessions. The manager needs the
// service as its signal raiser, so it is wired after construction.
func (s *RideService) WithSessions(sessions TrackingSessions) *RideService {
	s.sessions = sessions
	return s
}

// WithClock replaces the clock used to timestamp transitions.
func (s *RideService) WithClock(clock func() time.Time) *RideService {
	s.clock = clock
	return s
}

// GetFareQuote prices a ride without booking it.
func (s *RideService) GetFareQuote(ctx context.Context, req FareQuoteRequest) (*FareQuoteDTO, error) {
	pickup, dest := req.Pickup.toPlace(), req.Destination.toPlace()
	if !pickup.Coordinate().IsValid() {
		return nil, domain.NewValidationError("pickup coordinates are out of range")
	}
	if !dest.Coordinate().IsValid() {
		return nil, domain.NewValidationError("destination coordinates are out of range")
	}
	class := ride.VehicleClass(req.VehicleClass)
	if !class.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid vehicle class: %s", req.VehicleClass))
	}

	est := s.estimator.Estimate(ctx, pickup.Coordinate(), dest.Coordinate())
	fare, err := s.fares.Calculate(ride.FareParams{DistanceKm: est.DistanceKm(), VehicleClass: class})
	if err != nil {
		return nil, domain.NewValidationError(fmt.Sprintf("pricing error: %v", err))
	}

	return &FareQuoteDTO{
		VehicleClass:    string(class),
		DistanceKm:      est.DistanceKm(),
		DurationSeconds: est.DurationSeconds,
		Fare:            fare,
		Currency:        s.currency,
		RouteSource:     est.Source,
		RoutePoints:     est.Points,
	}, nil
}

// CreateRide books a ride for the rider. Distance and fare are quoted once here.
func (s *RideService) CreateRide(ctx context.Context, riderID uuid.UUID, req CreateRideRequest) (*RideDTO, error) {
	if err := req.Pickup.toPlace().Validate("pickup"); err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	if err := req.Destination.toPlace().Validate("destination"); err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	quote, err := s.GetFareQuote(ctx, req)
	if err != nil {
		return nil, err
	}

	var b *ride.Booking
	for attempt := 0; ; attempt++ {
		b, err = ride.NewBooking(
			riderID,
			req.Pickup.toPlace(),
			req.Destination.toPlace(),
			ride.VehicleClass(quote.VehicleClass),
			quote.DistanceKm,
			quote.Fare,
			quote.Currency,
		)
		if err != nil {
			return nil, err
		}
		err = s.repo.Save(ctx, b)
		if err == nil {
			break
		}
		if !domain.IsConflict(err) || attempt+1 >= maxCodeAttempts {
			return nil, fmt.Errorf("failed to save ride: %w", err)
		}
		s.logger.Warn("booking code collision, regenerating", zap.String("booking_code", b.BookingCode()))
	}

	s.logger.Info("ride requested",
		zap.String("ride_id", b.ID().String()),
		zap.String("booking_code", b.BookingCode()),
		zap.String("route_source", string(quote.RouteSource)),
	)

	evt := events.RideRequestedEvent{
		RideID:       b.ID(),
		BookingCode:  b.BookingCode(),
		RiderID:      b.RiderID(),
		VehicleClass: string(b.VehicleClass()),
		PickupLat:    b.Pickup().Lat,
		PickupLng:    b.Pickup().Lng,
		DestLat:      b.Destination().Lat,
		DestLng:      b.Destination().Lng,
		DistanceKm:   b.DistanceKm(),
		Fare:         b.Fare(),
		Currency:     b.Currency(),
		OccurredAt:   time.Now().UTC(),
	}
	s.publishEvent(ctx, events.TopicRideEvents, events.RideRequested, b.ID().String(), evt)

	result := toRideDTO(b, ride.RoleRider)
	return &result, nil
}

// SubmitTransition applies a role command issued by actorID.
func (s *RideService) SubmitTransition(ctx context.Context, rideID, actorID uuid.UUID, role ride.Role, req TransitionRequest) (*TransitionResultDTO, error) {
	in := ride.NewRoleCommand(role, actorID, ride.Command(req.Command)).WithReason(req.Reason)

	if in.Command == ride.CommandAccept && role == ride.RoleDriver {
		pos, err := s.acceptPosition(ctx, actorID, req)
		if err != nil {
			return nil, err
		}
		if pos != nil {
			in = in.WithPosition(*pos)
		}
	}

	b, t, err := s.apply(ctx, rideID, in)
	if err != nil {
		return nil, err
	}
	return &TransitionResultDTO{
		Ride:    toRideDTO(b, role),
		From:    string(t.From),
		To:      string(t.To),
		Applied: t.Applied,
	}, nil
}

// RaiseSignal feeds an automatic signal into the lifecycle. Tracking
// sessions call it when the driver reaches pickup.
func (s *RideService) RaiseSignal(ctx context.Context, rideID uuid.UUID, sig ride.Signal) error {
	_, _, err := s.apply(ctx, rideID, ride.NewAutoSignal(sig))
	return err
}

// acceptPosition resolves where the driver is accepting from: the request,
// then the locator. Unknown is fine.
func (s *RideService) acceptPosition(ctx context.Context, driverID uuid.UUID, req TransitionRequest) (*geo.Coordinate, error) {
	if req.Lat != nil && req.Lng != nil {
		pos := geo.Coordinate{Lat: *req.Lat, Lng: *req.Lng}
		if !pos.IsValid() {
			return nil, domain.NewValidationError("driver position is out of range")
		}
		return &pos, nil
	}
	if s.locator == nil {
		return nil, nil
	}
	pos, ok, err := s.locator.Position(ctx, driverID)
	if err != nil {
		s.logger.Warn("driver position lookup failed", zap.String("driver_id", driverID.String()), zap.Error(err))
		return nil, nil
	}
	if !ok {
		return nil, nil
	}
	return &pos, nil
}

// apply runs in against the stored booking with compare-and-swap on the
// version. A command that loses the race is refused if the winner moved the
// ride, so exactly one of two concurrent status changes succeeds.
func (s *RideService) apply(ctx context.Context, rideID uuid.UUID, in ride.Input) (*ride.Booking, ride.Transition, error) {
	var observed ride.RideStatus
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		b, err := s.repo.FindByID(ctx, rideID)
		if err != nil {
			return nil, ride.Transition{}, err
		}

		var t ride.Transition
		if attempt == 0 {
			observed = b.Status()
			if in.Command == ride.CommandAccept && in.Role == ride.RoleDriver && observed == ride.StatusPending {
				if err := s.checkDriverCanServe(ctx, in.ActorID, b.VehicleClass()); err != nil {
					return nil, ride.Transition{}, err
				}
			}
			t, err = b.Decide(in)
		} else {
			t, err = b.DecideSuperseded(in, observed)
		}
		if err != nil {
			return nil, ride.Transition{}, err
		}
		if !t.Applied {
			t.At = s.clock().UTC()
			if attempt == 0 {
				s.afterNoop(ctx, b, t)
			}
			return b, t, nil
		}

		t, err = b.Apply(in, s.clock())
		if err != nil {
			return nil, ride.Transition{}, err
		}
		b.IncrementVersion()
		if err := s.repo.Update(ctx, b); err != nil {
			if domain.IsConflict(err) {
				s.logger.Debug("transition lost a concurrent update",
					zap.String("ride_id", rideID.String()),
					zap.String("observed", string(observed)),
					zap.Int("attempt", attempt+1),
				)
				continue
			}
			return nil, ride.Transition{}, err
		}

		s.afterTransition(ctx, b, t)
		return b, t, nil
	}
	return nil, ride.Transition{}, domain.NewConflictError("ride is being modified concurrently, try again")
}

func (s *RideService) checkDriverCanServe(ctx context.Context, driverID uuid.UUID, class ride.VehicleClass) error {
	d, err := s.drivers.FindByID(ctx, driverID)
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.NewForbiddenError("a driver profile is required to accept rides")
		}
		return err
	}
	if err := d.CanServe(class); err != nil {
		return domain.NewForbiddenError(err.Error())
	}
	return nil
}

// afterNoop handles legal inputs that change nothing. Only a decline is
// worth an event; a repeated cancel is silent.
func (s *RideService) afterNoop(ctx context.Context, b *ride.Booking, t ride.Transition) {
	if t.Input.Command != ride.CommandDecline {
		return
	}
	evt := events.RideDeclinedEvent{
		RideID:      b.ID(),
		BookingCode: b.BookingCode(),
		DriverID:    t.Input.ActorID,
		OccurredAt:  t.At,
	}
	s.publishEvent(ctx, events.TopicRideEvents, events.RideDeclined, b.ID().String(), evt)
}

// afterTransition runs the side effects of an applied transition, once.
func (s *RideService) afterTransition(ctx context.Context, b *ride.Booking, t ride.Transition) {
	s.logger.Info("ride transitioned",
		zap.String("ride_id", b.ID().String()),
		zap.String("from", string(t.From)),
		zap.String("to", string(t.To)),
		zap.String("source", string(t.Input.Source)),
		zap.Int64("version", b.Version()),
	)

	evt := events.RideTransitionedEvent{
		RideID:       b.ID(),
		BookingCode:  b.BookingCode(),
		RiderID:      b.RiderID(),
		DriverID:     b.DriverID(),
		From:         string(t.From),
		To:           string(t.To),
		Source:       string(t.Input.Source),
		Role:         string(t.Input.Role),
		Command:      string(t.Input.Command),
		Signal:       string(t.Input.Signal),
		CancelReason: b.CancelReason(),
		Version:      b.Version(),
		OccurredAt:   t.At,
	}
	s.publishEvent(ctx, events.TopicRideEvents, events.TransitionEventType(string(t.To)), b.ID().String(), evt)

	card := s.driverCard(ctx, b)

	if t.To == ride.StatusCompleted && b.DriverID() != nil {
		s.recordTrip(ctx, *b.DriverID())
	}

	for _, n := range notificationsFor(b, t, card) {
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.logger.Warn("failed to send notification",
				zap.String("ride_id", b.ID().String()),
				zap.String("kind", string(n.Kind)),
				zap.Error(err),
			)
		}
	}

	if s.sessions != nil {
		s.sessions.Update(b.Clone(), card)
	}
}

func (s *RideService) recordTrip(ctx context.Context, driverID uuid.UUID) {
	err := retryOnConflict(func() error {
		d, err := s.drivers.FindByID(ctx, driverID)
		if err != nil {
			return err
		}
		d.RecordTrip()
		return s.drivers.Update(ctx, d)
	})
	if err != nil {
		s.logger.Error("failed to record driver trip", zap.String("driver_id", driverID.String()), zap.Error(err))
	}
}

// GetRide returns a ride visible to the caller. Drivers may look at any
// pending ride; everything else is limited to the two parties and admins.
func (s *RideService) GetRide(ctx context.Context, rideID, userID uuid.UUID, userRole string) (*RideDTO, error) {
	b, err := s.repo.FindByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	role, err := viewerRole(b, userID, userRole)
	if err != nil {
		return nil, err
	}
	result := toRideDTO(b, role)
	return &result, nil
}

// GetRideByCode looks a ride up by booking code with the same visibility as GetRide.
func (s *RideService) GetRideByCode(ctx context.Context, code string, userID uuid.UUID, userRole string) (*RideDTO, error) {
	b, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	role, err := viewerRole(b, userID, userRole)
	if err != nil {
		return nil, err
	}
	result := toRideDTO(b, role)
	return &result, nil
}

// GetRiderRides retrieves paginated rides booked by a rider.
func (s *RideService) GetRiderRides(ctx context.Context, riderID uuid.UUID, page, limit int) (*domain.PaginatedResult[RideDTO], error) {
	rides, total, err := s.repo.FindByRiderID(ctx, riderID, page, limit)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(toRideDTOs(rides, ride.RoleRider), total, page, limit)
	return &result, nil
}

// GetDriverRides retrieves paginated rides served by a driver.
func (s *RideService) GetDriverRides(ctx context.Context, driverID uuid.UUID, page, limit int) (*domain.PaginatedResult[RideDTO], error) {
	rides, total, err := s.repo.FindByDriverID(ctx, driverID, page, limit)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(toRideDTOs(rides, ride.RoleDriver), total, page, limit)
	return &result, nil
}

// ListPendingRides retrieves rides waiting for a driver.
func (s *RideService) ListPendingRides(ctx context.Context, page, limit int) (*domain.PaginatedResult[RideDTO], error) {
	rides, total, err := s.repo.ListPending(ctx, page, limit)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(toRideDTOs(rides, ride.RoleDriver), total, page, limit)
	return &result, nil
}

// SubscribeTracking attaches a party of the ride to its live tracking session.
func (s *RideService) SubscribeTracking(ctx context.Context, rideID, userID uuid.UUID) (<-chan tracking.Frame, func(), error) {
	if s.sessions == nil {
		return nil, nil, domain.NewAppError(domain.CodeInvalidState, "live tracking is disabled", nil)
	}
	b, err := s.repo.FindByID(ctx, rideID)
	if err != nil {
		return nil, nil, err
	}
	role, ok := b.RoleOf(userID)
	if !ok {
		return nil, nil, domain.NewForbiddenError("only the rider or the assigned driver may track this ride")
	}
	ch, cancel, err := s.sessions.Subscribe(ctx, b, s.driverCard(ctx, b), role)
	if err != nil {
		if errors.Is(err, tracking.ErrSessionClosed) {
			return nil, nil, domain.NewAppError(domain.CodeInvalidState, "tracking session is shutting down", err)
		}
		return nil, nil, err
	}
	return ch, cancel, nil
}

// --- Admin methods ---

// ListAllRides returns a paginated list of all rides (admin).
func (s *RideService) ListAllRides(ctx context.Context, page, limit int) ([]RideDTO, int64, error) {
	rides, total, err := s.repo.ListAll(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list rides: %w", err)
	}
	return toRideDTOs(rides, ""), total, nil
}

// GetRideStats returns aggregate ride statistics (admin).
func (s *RideService) GetRideStats(ctx context.Context) (*RideStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get ride stats: %w", err)
	}

	var total int64
	for _, c := range counts {
		total += c
	}
	return &RideStatsDTO{TotalRides: total, ByStatus: counts}, nil
}

// --- Helpers ---

// driverCard builds what the rider is shown about the assigned driver. A
// missing profile degrades to an id-only card.
func (s *RideService) driverCard(ctx context.Context, b *ride.Booking) *tracking.DriverCard {
	if b.DriverID() == nil {
		return nil
	}
	id := *b.DriverID()
	d, err := s.drivers.FindByID(ctx, id)
	if err != nil {
		s.logger.Warn("driver profile unavailable", zap.String("driver_id", id.String()), zap.Error(err))
		return &tracking.DriverCard{ID: id}
	}
	return toDriverCard(d)
}

func toDriverCard(d *driverDomain.Driver) *tracking.DriverCard {
	return &tracking.DriverCard{
		ID:           d.ID(),
		Name:         d.Name(),
		Phone:        d.Phone(),
		VehicleClass: d.VehicleClass(),
		VehiclePlate: d.VehiclePlate(),
		VehicleModel: d.VehicleModel(),
		Rating:       d.Rating(),
		TripCount:    d.TripCount(),
	}
}

func viewerRole(b *ride.Booking, userID uuid.UUID, userRole string) (ride.Role, error) {
	if role, ok := b.RoleOf(userID); ok {
		return role, nil
	}
	switch {
	case userRole == "admin":
		return "", nil
	case userRole == string(ride.RoleDriver) && b.Status() == ride.StatusPending:
		return ride.RoleDriver, nil
	}
	return "", domain.NewForbiddenError("ride does not belong to this user")
}

func toRideDTO(b *ride.Booking, role ride.Role) RideDTO {
	dto := RideDTO{
		ID:           b.ID(),
		BookingCode:  b.BookingCode(),
		RiderID:      b.RiderID(),
		DriverID:     b.DriverID(),
		Status:       string(b.Status()),
		Pickup:       toPlaceDTO(b.Pickup()),
		Destination:  toPlaceDTO(b.Destination()),
		VehicleClass: string(b.VehicleClass()),
		DistanceKm:   b.DistanceKm(),
		Fare:         b.Fare(),
		Currency:     b.Currency(),
		DriverOrigin: b.DriverOrigin(),
		AcceptedAt:   b.AcceptedAt(),
		ArrivedAt:    b.ArrivedAt(),
		StartedAt:    b.StartedAt(),
		CompletedAt:  b.CompletedAt(),
		CancelledAt:  b.CancelledAt(),
		CancelReason: b.CancelReason(),
		Version:      b.Version(),
		CreatedAt:    b.CreatedAt(),
		UpdatedAt:    b.UpdatedAt(),
	}
	if role != "" {
		if stage, ok := ride.StageFor(role, b.Status()); ok {
			dto.Stage = string(stage)
		}
		dto.Commands = b.AvailableCommands(role)
	}
	return dto
}

func toRideDTOs(rides []*ride.Booking, role ride.Role) []RideDTO {
	dtos := make([]RideDTO, len(rides))
	for i, b := range rides {
		dtos[i] = toRideDTO(b, role)
	}
	return dtos
}

func (s *RideService) publishEvent(ctx context.Context, topic, eventType, key string, data interface{}) {
	publishEvent(ctx, s.producer, s.logger, topic, eventType, key, data)
}

func publishEvent(ctx context.Context, producer EventProducer, logger *zap.Logger, topic, eventType, key string, data interface{}) {
	if producer == nil {
		return
	}
	cloudEvent, err := kafka.NewCloudEvent(events.Source, eventType, data)
	if err != nil {
		logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}
	cloudEvent.Subject = key

	if err := producer.PublishEvent(ctx, topic, cloudEvent); err != nil {
		logger.Error("failed to publish event",
			zap.String("topic", topic),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}

// retryOnConflict reruns a read-modify-write a few times while it loses
// optimistic-lock races.
func retryOnConflict(fn func() error) error {
	var err error
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		if err = fn(); !domain.IsConflict(err) {
			return err
		}
	}
	return err
}
