package application

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/domain"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/domain/ride"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/events"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/geo"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/notify"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/routing"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/tracking"
)

func TestGetFareQuote(t *testing.T) {
	f := newFixture(t)

	quote, err := f.service.GetFareQuote(context.Background(), FareQuoteRequest{
		Pickup: hoanKiem, Destination: westLake, VehicleClass: "MOTORCYCLE",
	})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, quote.DistanceKm, 1e-9)
	assert.Equal(t, int64(25000), quote.Fare)
	assert.Equal(t, domain.CurrencyVND, quote.Currency)
	assert.Equal(t, routing.SourceOSRM, quote.RouteSource)
	assert.Empty(t, f.producer.types(), "a quote has no side effects")
}

func TestGetFareQuote_Validation(t *testing.T) {
	f := newFixture(t)
	cases := map[string]FareQuoteRequest{
		"bad class":       {Pickup: hoanKiem, Destination: westLake, VehicleClass: "BUS"},
		"bad pickup":      {Pickup: PlaceDTO{Lat: 91, Lng: 0, Address: "x"}, Destination: westLake, VehicleClass: "CAR"},
		"bad destination": {Pickup: hoanKiem, Destination: PlaceDTO{Lat: 21, Lng: 181}, VehicleClass: "CAR"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.service.GetFareQuote(context.Background(), req)
			assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))
		})
	}
}

func TestGetFareQuote_CoordinatesOnly(t *testing.T) {
	f := newFixture(t)

	quote, err := f.service.GetFareQuote(context.Background(), FareQuoteRequest{
		Pickup:       PlaceDTO{Lat: hoanKiem.Lat, Lng: hoanKiem.Lng},
		Destination:  PlaceDTO{Lat: westLake.Lat, Lng: westLake.Lng},
		VehicleClass: "MOTORCYCLE",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(25000), quote.Fare)
}

func TestCreateRide_RequiresAddresses(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.CreateRide(context.Background(), f.riderID, CreateRideRequest{
		Pickup:       hoanKiem,
		Destination:  PlaceDTO{Lat: westLake.Lat, Lng: westLake.Lng},
		VehicleClass: "MOTORCYCLE",
	})
	assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))
	assert.Empty(t, f.producer.types())
}

func TestCreateRide(t *testing.T) {
	f := newFixture(t)
	dto := f.book(t)

	assert.Equal(t, "pending", dto.Status)
	assert.Empty(t, dto.Stage, "riders have no label before acceptance")
	assert.Equal(t, []ride.Command{ride.CommandCancel}, dto.Commands)
	assert.Equal(t, int64(25000), dto.Fare)
	assert.Regexp(t, `^RD-[A-Z0-9]{6}$`, dto.BookingCode)
	assert.Equal(t, []string{events.RideRequested}, f.producer.types())

	stored, err := f.rides.FindByID(context.Background(), dto.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version())
}

func TestRideLifecycle_HappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dto := f.book(t)

	accepted := f.driverCmd(t, dto.ID, ride.CommandAccept)
	assert.True(t, accepted.Applied)
	assert.Equal(t, "accepted", accepted.To)
	require.NotNil(t, accepted.Ride.DriverOrigin, "origin comes from the locator")
	assert.Equal(t, f.driverPos, *accepted.Ride.DriverOrigin)

	f.driverCmd(t, dto.ID, ride.CommandArrive)
	f.driverCmd(t, dto.ID, ride.CommandStartTrip)
	done := f.driverCmd(t, dto.ID, ride.CommandFinishTrip)
	assert.Equal(t, "completed", done.To)
	assert.Equal(t, "done", done.Ride.Stage)
	assert.Equal(t, int64(5), done.Ride.Version)

	assert.Equal(t, []string{
		events.RideRequested, events.RideAccepted, events.RideArriving, events.RideOnway, events.RideCompleted,
	}, f.producer.types())
	assert.Equal(t, []notify.Kind{
		notify.KindRideAccepted, notify.KindDriverArrived, notify.KindTripStarted,
		notify.KindTripCompleted, notify.KindTripCompleted,
	}, f.notifier.kinds())
	assert.Equal(t, "+84901234567", f.notifier.sent[0].CallPhone)
	assert.Equal(t, []ride.RideStatus{
		ride.StatusAccepted, ride.StatusArriving, ride.StatusOnway, ride.StatusCompleted,
	}, f.sessions.updates)
	require.NotNil(t, f.sessions.cards[0])
	assert.Equal(t, "29B1-12345", f.sessions.cards[0].VehiclePlate)

	d, err := f.drivers.FindByID(ctx, f.driverID)
	require.NoError(t, err)
	assert.Equal(t, 1, d.TripCount())
}

func TestRaiseSignal_ArrivalClosesCancelWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dto := f.book(t)
	f.driverCmd(t, dto.ID, ride.CommandAccept)

	require.NoError(t, f.service.RaiseSignal(ctx, dto.ID, ride.SignalArrived))

	_, err := f.service.SubmitTransition(ctx, dto.ID, f.riderID, ride.RoleRider, TransitionRequest{Command: "cancel"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ride.ErrCannotCancel))
	reason, ok := ride.CancelBlockReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, ride.CancelBlockedDriverArrived, reason)

	// A late manual arrive after the signal is rejected rather than re-applied.
	_, err = f.service.SubmitTransition(ctx, dto.ID, f.driverID, ride.RoleDriver, TransitionRequest{Command: "arrive"})
	assert.True(t, errors.Is(err, ride.ErrInvalidTransition))
	assert.Equal(t, 1, f.producer.count(events.RideArriving))
}

func TestCancel_TripStarted(t *testing.T) {
	f := newFixture(t)
	dto := f.book(t)
	f.driverCmd(t, dto.ID, ride.CommandAccept)
	f.driverCmd(t, dto.ID, ride.CommandArrive)
	f.driverCmd(t, dto.ID, ride.CommandStartTrip)

	_, err := f.service.SubmitTransition(context.Background(), dto.ID, f.riderID, ride.RoleRider, TransitionRequest{Command: "cancel"})
	reason, ok := ride.CancelBlockReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, ride.CancelBlockedTripStarted, reason)
	assert.Equal(t, ride.CodeCannotCancel, domain.CodeOf(err))
}

func TestCancel_IdempotentAndNotifiesDriverOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dto := f.book(t)
	f.driverCmd(t, dto.ID, ride.CommandAccept)

	first, err := f.service.SubmitTransition(ctx, dto.ID, f.riderID, ride.RoleRider, TransitionRequest{Command: "cancel", Reason: "changed plans"})
	require.NoError(t, err)
	assert.True(t, first.Applied)
	assert.Equal(t, "changed plans", first.Ride.CancelReason)

	second, err := f.service.SubmitTransition(ctx, dto.ID, f.riderID, ride.RoleRider, TransitionRequest{Command: "cancel"})
	require.NoError(t, err)
	assert.False(t, second.Applied)
	assert.Equal(t, first.Ride.Version, second.Ride.Version)

	assert.Equal(t, 1, f.producer.count(events.RideCancelled))
	cancels := 0
	for _, k := range f.notifier.kinds() {
		if k == notify.KindRideCancelled {
			cancels++
		}
	}
	assert.Equal(t, 1, cancels)
}

func TestDecline_LeavesRidePending(t *testing.T) {
	f := newFixture(t)
	dto := f.book(t)

	res := f.driverCmd(t, dto.ID, ride.CommandDecline)
	assert.False(t, res.Applied)
	assert.Equal(t, "pending", res.Ride.Status)
	assert.Nil(t, res.Ride.DriverID)
	assert.Equal(t, 1, f.producer.count(events.RideDeclined))
	assert.Empty(t, f.notifier.kinds())
	assert.Empty(t, f.sessions.updates)
}

func TestAccept_RequiresMatchingActiveProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dto := f.book(t)

	_, err := f.service.SubmitTransition(ctx, dto.ID, uuid.New(), ride.RoleDriver, TransitionRequest{Command: "accept"})
	assert.Equal(t, domain.CodeForbidden, domain.CodeOf(err), "no profile")

	carDriver := uuid.New()
	f.registerDriver(t, carDriver, ride.VehicleCar)
	_, err = f.service.SubmitTransition(ctx, dto.ID, carDriver, ride.RoleDriver, TransitionRequest{Command: "accept"})
	assert.Equal(t, domain.CodeForbidden, domain.CodeOf(err), "wrong vehicle class")

	lat, lng := 21.03, 105.85
	res, err := f.service.SubmitTransition(ctx, dto.ID, f.driverID, ride.RoleDriver, TransitionRequest{Command: "accept", Lat: &lat, Lng: &lng})
	require.NoError(t, err)
	assert.Equal(t, 21.03, res.Ride.DriverOrigin.Lat, "request position wins over the locator")
}

func TestSubmitTransition_WrongActor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dto := f.book(t)
	f.driverCmd(t, dto.ID, ride.CommandAccept)

	other := uuid.New()
	f.registerDriver(t, other, ride.VehicleMotorcycle)
	_, err := f.service.SubmitTransition(ctx, dto.ID, other, ride.RoleDriver, TransitionRequest{Command: "arrive"})
	assert.Equal(t, ride.CodeInvalidTransition, domain.CodeOf(err))

	_, err = f.service.SubmitTransition(ctx, dto.ID, uuid.New(), ride.RoleRider, TransitionRequest{Command: "cancel"})
	assert.Equal(t, ride.CodeInvalidTransition, domain.CodeOf(err))

	_, err = f.service.SubmitTransition(ctx, dto.ID, f.driverID, ride.RoleDriver, TransitionRequest{Command: "teleport"})
	assert.Equal(t, ride.CodeInvalidTransition, domain.CodeOf(err))
}

func TestConcurrentAccept_ExactlyOneDriverWins(t *testing.T) {
	f := newFixture(t)
	dto := f.book(t)

	const n = 8
	drivers := make([]uuid.UUID, n)
	for i := range drivers {
		drivers[i] = uuid.New()
		f.registerDriver(t, drivers[i], ride.VehicleMotorcycle)
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range drivers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.SubmitTransition(context.Background(), dto.ID, drivers[i], ride.RoleDriver, TransitionRequest{Command: "accept"})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, errors.Is(err, ride.ErrInvalidTransition), "losers see the accepted ride: %v", err)
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, f.producer.count(events.RideAccepted))

	stored, err := f.rides.FindByID(context.Background(), dto.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version())
}

func TestConcurrentCancel_OneEvent(t *testing.T) {
	f := newFixture(t)
	dto := f.book(t)

	const n = 6
	var wg sync.WaitGroup
	results := make([]*TransitionResultDTO, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.service.SubmitTransition(context.Background(), dto.ID, f.riderID, ride.RoleRider, TransitionRequest{Command: "cancel"})
		}(i)
	}
	wg.Wait()

	applied := 0
	for i := range results {
		require.NoError(t, errs[i])
		if results[i].Applied {
			applied++
		}
	}
	assert.Equal(t, 1, applied)
	assert.Equal(t, 1, f.producer.count(events.RideCancelled))
}

// reroutingEstimator quotes a short route once, then answers every later
// request with a longer provider route.
type reroutingEstimator struct {
	calls atomic.Int32
}

func (e *reroutingEstimator) Estimate(_ context.Context, origin, dest geo.Coordinate) routing.Estimate {
	if e.calls.Add(1) == 1 {
		return routing.Estimate{Points: []geo.Coordinate{origin, dest}, DistanceMeters: 5000, DurationSeconds: 900, Source: routing.SourceOSRM}
	}
	mid := geo.Interpolate(origin, dest, 0.5)
	mid.Lat += 0.01
	return routing.Estimate{Points: []geo.Coordinate{origin, mid, dest}, DistanceMeters: 12000, DurationSeconds: 1800, Source: routing.SourceGoogle}
}

func TestFare_UnchangedByLaterRoutes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	estimator := &reroutingEstimator{}
	f.service.estimator = estimator

	cfg := tracking.DefaultSessionConfig()
	cfg.TickInterval = 10 * time.Millisecond
	manager := tracking.NewManager(cfg, estimator, f.service, nil, zap.NewNop())
	t.Cleanup(manager.Close)
	f.service.WithSessions(manager)

	dto := f.book(t)
	require.Equal(t, int64(25000), dto.Fare)
	require.InDelta(t, 5.0, dto.DistanceKm, 1e-9)
	f.driverCmd(t, dto.ID, ride.CommandAccept)

	frames, stop, err := f.service.SubscribeTracking(ctx, dto.ID, f.riderID)
	require.NoError(t, err)
	defer stop()

	deadline := time.After(2 * time.Second)
	for rerouted := false; !rerouted; {
		select {
		case fr, ok := <-frames:
			require.True(t, ok, "session ended early")
			if fr.RouteSource == routing.SourceGoogle {
				rerouted = true
				assert.Equal(t, dto.Fare, fr.Fare)
			}
		case <-deadline:
			t.Fatal("provider route never reached the session")
		}
	}
	assert.GreaterOrEqual(t, estimator.calls.Load(), int32(2))

	stored, err := f.rides.FindByID(ctx, dto.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(25000), stored.Fare())
	assert.InDelta(t, 5.0, stored.DistanceKm(), 1e-9)
}

// staleRideRepository hands out a snapshot taken before a concurrent
// transition committed, once.
type staleRideRepository struct {
	ride.Repository
	mu       sync.Mutex
	snapshot *ride.Booking
}

func (r *staleRideRepository) FindByID(ctx context.Context, id uuid.UUID) (*ride.Booking, error) {
	r.mu.Lock()
	snap := r.snapshot
	r.snapshot = nil
	r.mu.Unlock()
	if snap != nil {
		return snap, nil
	}
	return r.Repository.FindByID(ctx, id)
}

func TestCancelLosingToAccept_IsRefused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dto := f.book(t)

	snapshot, err := f.rides.FindByID(ctx, dto.ID)
	require.NoError(t, err)
	f.driverCmd(t, dto.ID, ride.CommandAccept)

	racing := NewRideService(
		&staleRideRepository{Repository: f.rides, snapshot: snapshot},
		f.drivers,
		f.locator,
		ride.NewDefaultFareStrategy(),
		fixedEstimator{meters: 5000},
		f.producer,
		f.notifier,
		zap.NewNop(),
	)
	_, err = racing.SubmitTransition(ctx, dto.ID, f.riderID, ride.RoleRider, TransitionRequest{Command: "cancel"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ride.ErrInvalidTransition), "the rider learns the ride was accepted: %v", err)

	stored, err := f.rides.FindByID(ctx, dto.ID)
	require.NoError(t, err)
	assert.Equal(t, ride.StatusAccepted, stored.Status())
	assert.Equal(t, 0, f.producer.count(events.RideCancelled))
}

func TestAcceptLosingToCancel_IsRefused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dto := f.book(t)

	snapshot, err := f.rides.FindByID(ctx, dto.ID)
	require.NoError(t, err)
	_, err = f.service.SubmitTransition(ctx, dto.ID, f.riderID, ride.RoleRider, TransitionRequest{Command: "cancel"})
	require.NoError(t, err)

	racing := NewRideService(
		&staleRideRepository{Repository: f.rides, snapshot: snapshot},
		f.drivers,
		f.locator,
		ride.NewDefaultFareStrategy(),
		fixedEstimator{meters: 5000},
		f.producer,
		f.notifier,
		zap.NewNop(),
	)
	_, err = racing.SubmitTransition(ctx, dto.ID, f.driverID, ride.RoleDriver, TransitionRequest{Command: "accept"})
	assert.True(t, errors.Is(err, ride.ErrInvalidTransition), "got %v", err)
	assert.Equal(t, 0, f.producer.count(events.RideAccepted))
}

func TestGetRide_Visibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dto := f.book(t)

	_, err := f.service.GetRide(ctx, dto.ID, uuid.New(), "driver")
	assert.NoError(t, err, "any driver may look at a pending ride")

	f.driverCmd(t, dto.ID, ride.CommandAccept)

	_, err = f.service.GetRide(ctx, dto.ID, uuid.New(), "driver")
	assert.Equal(t, domain.CodeForbidden, domain.CodeOf(err))

	_, err = f.service.GetRide(ctx, dto.ID, uuid.New(), "admin")
	assert.NoError(t, err)

	asRider, err := f.service.GetRide(ctx, dto.ID, f.riderID, "rider")
	require.NoError(t, err)
	assert.Equal(t, "coming", asRider.Stage)

	byCode, err := f.service.GetRideByCode(ctx, dto.BookingCode, f.driverID, "driver")
	require.NoError(t, err)
	assert.Equal(t, dto.ID, byCode.ID)
	assert.Contains(t, byCode.Commands, ride.CommandArrive)
}

func TestHistoryAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.book(t)
	f.book(t)
	f.driverCmd(t, first.ID, ride.CommandAccept)

	riderRides, err := f.service.GetRiderRides(ctx, f.riderID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), riderRides.Total)

	driverRides, err := f.service.GetDriverRides(ctx, f.driverID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), driverRides.Total)

	pending, err := f.service.ListPendingRides(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.Total)

	stats, err := f.service.GetRideStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalRides)
	assert.Equal(t, int64(1), stats.ByStatus["accepted"])
}

func TestSubscribeTracking_PartiesOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dto := f.book(t)

	_, _, err := f.service.SubscribeTracking(ctx, dto.ID, uuid.New())
	assert.Equal(t, domain.CodeForbidden, domain.CodeOf(err))

	ch, cancel, err := f.service.SubscribeTracking(ctx, dto.ID, f.riderID)
	require.NoError(t, err)
	assert.NotNil(t, ch)
	cancel()
}
