package application

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/kafka"
	driverDomain "github.com/Kilat-Pet-Delivery/service-ride/internal/domain/driver"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/domain/ride"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/geo"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/notify"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/repository"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/routing"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/tracking"
)

var (
	hoanKiem = PlaceDTO{Lat: 21.0285, Lng: 105.8520, Address: "Hoan Kiem Lake"}
	westLake = PlaceDTO{Lat: 21.0583, Lng: 105.8192, Address: "West Lake"}
)

type fakeProducer struct {
	mu     sync.Mutex
	events []kafka.CloudEvent
}

func (p *fakeProducer) PublishEvent(_ context.Context, _ string, e kafka.CloudEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *fakeProducer) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func (p *fakeProducer) count(eventType string) int {
	n := 0
	for _, t := range p.types() {
		if t == eventType {
			n++
		}
	}
	return n
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (n *fakeNotifier) Notify(_ context.Context, msg notify.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *fakeNotifier) kinds() []notify.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.Kind, len(n.sent))
	for i, m := range n.sent {
		out[i] = m.Kind
	}
	return out
}

type fakeSessions struct {
	mu      sync.Mutex
	updates []ride.RideStatus
	cards   []*tracking.DriverCard
}

func (f *fakeSessions) Subscribe(context.Context, *ride.Booking, *tracking.DriverCard, ride.Role) (<-chan tracking.Frame, func(), error) {
	ch := make(chan tracking.Frame)
	return ch, func() {}, nil
}

func (f *fakeSessions) Update(b *ride.Booking, card *tracking.DriverCard) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, b.Status())
	f.cards = append(f.cards, card)
}

// fixedEstimator answers every route with the same 5 km provider route.
type fixedEstimator struct{ meters float64 }

func (e fixedEstimator) Estimate(_ context.Context, origin, dest geo.Coordinate) routing.Estimate {
	return routing.Estimate{
		Points:          []geo.Coordinate{origin, dest},
		DistanceMeters:  e.meters,
		DurationSeconds: 900,
		Source:          routing.SourceOSRM,
	}
}

type fixture struct {
	rides     *repository.MemoryRideRepository
	drivers   *repository.MemoryDriverRepository
	locator   *repository.MemoryLocator
	producer  *fakeProducer
	notifier  *fakeNotifier
	sessions  *fakeSessions
	service   *RideService
	riderID   uuid.UUID
	driverID  uuid.UUID
	driverPos geo.Coordinate
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		rides:     repository.NewMemoryRideRepository(),
		drivers:   repository.NewMemoryDriverRepository(),
		locator:   repository.NewMemoryLocator(),
		producer:  &fakeProducer{},
		notifier:  &fakeNotifier{},
		sessions:  &fakeSessions{},
		riderID:   uuid.New(),
		driverID:  uuid.New(),
		driverPos: geo.Coordinate{Lat: 21.0200, Lng: 105.8600},
	}
	f.service = NewRideService(
		f.rides,
		f.drivers,
		f.locator,
		ride.NewDefaultFareStrategy(),
		fixedEstimator{meters: 5000},
		f.producer,
		f.notifier,
		zap.NewNop(),
	).WithSessions(f.sessions)

	f.registerDriver(t, f.driverID, ride.VehicleMotorcycle)
	require.NoError(t, f.locator.UpdatePosition(context.Background(), f.driverID, f.driverPos))
	return f
}

func (f *fixture) registerDriver(t *testing.T, id uuid.UUID, class ride.VehicleClass) {
	d, err := driverDomain.NewDriver(id, "Minh", "+84901234567", class, "29b1-12345", "Honda Wave")
	require.NoError(t, err)
	require.NoError(t, f.drivers.Save(context.Background(), d))
}

func (f *fixture) book(t *testing.T) *RideDTO {
	dto, err := f.service.CreateRide(context.Background(), f.riderID, CreateRideRequest{
		Pickup:       hoanKiem,
		Destination:  westLake,
		VehicleClass: string(ride.VehicleMotorcycle),
	})
	require.NoError(t, err)
	return dto
}

func (f *fixture) driverCmd(t *testing.T, rideID uuid.UUID, cmd ride.Command) *TransitionResultDTO {
	res, err := f.service.SubmitTransition(context.Background(), rideID, f.driverID, ride.RoleDriver, TransitionRequest{Command: string(cmd)})
	require.NoError(t, err)
	return res
}
