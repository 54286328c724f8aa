package tracking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/geo"
)

type fakeClock struct{ now time.Time }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

var (
	a = geo.Coordinate{Lat: 21.0285, Lng: 105.8520}
	b = geo.Coordinate{Lat: 21.0365, Lng: 105.8345}
)

func countArrivals(t *testing.T, step, total time.Duration) int {
	t.Helper()
	clock := newFakeClock()
	tr := NewTracker(DefaultTrackerConfig(), clock.Now)
	tr.StartSimulated(LegPickup, []geo.Coordinate{a, b}, 5*time.Second, time.Time{})

	arrivals := 0
	for elapsed := time.Duration(0); elapsed <= total; elapsed += step {
		p, ok := tr.Tick()
		require.True(t, ok)
		if p.Arrived {
			arrivals++
			assert.GreaterOrEqual(t, p.Fraction, 0.88)
		}
		clock.Advance(step)
	}
	return arrivals
}

func TestTracker_ArrivedFiresOnceRegardlessOfGranularity(t *testing.T) {
	assert.Equal(t, 1, countArrivals(t, 10*time.Millisecond, 8*time.Second))
	assert.Equal(t, 1, countArrivals(t, 500*time.Millisecond, 8*time.Second))
	assert.Equal(t, 1, countArrivals(t, 3*time.Second, 9*time.Second))
}

func TestTracker_FixIsPureFunctionOfElapsedTime(t *testing.T) {
	clock := newFakeClock()
	tr := NewTracker(DefaultTrackerConfig(), clock.Now)
	tr.StartSimulated(LegDestination, []geo.Coordinate{a, b}, 10*time.Second, time.Time{})

	clock.Advance(5 * time.Second)
	p, ok := tr.Tick()
	require.True(t, ok)
	assert.InDelta(t, 0.5, p.Fraction, 1e-9)
	assert.Equal(t, 5*time.Second, p.Remaining)
	mid := geo.Interpolate(a, b, 0.5)
	assert.InDelta(t, mid.Lat, p.Position.Lat, 1e-9)

	// Missed ticks do not drift.
	clock.Advance(20 * time.Second)
	p, _ = tr.Tick()
	assert.Equal(t, 1.0, p.Fraction)
	assert.Equal(t, b, p.Position)
	assert.Zero(t, p.Remaining)
	assert.False(t, p.Arrived, "destination leg never raises arrived")
}

func TestTracker_ClampsNonPositiveDuration(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Minute} {
		clock := newFakeClock()
		tr := NewTracker(TrackerConfig{ArrivalThreshold: 0.88, MinLegDuration: 2 * time.Second}, clock.Now)
		tr.StartSimulated(LegPickup, []geo.Coordinate{a, b}, d, time.Time{})

		p, _ := tr.Tick()
		assert.Zero(t, p.Fraction)

		clock.Advance(time.Second)
		p, _ = tr.Tick()
		assert.InDelta(t, 0.5, p.Fraction, 1e-9)

		clock.Advance(time.Second)
		p, _ = tr.Tick()
		assert.Equal(t, 1.0, p.Fraction)
		assert.True(t, p.Arrived)
	}
}

func TestTracker_RerouteKeepsSignalState(t *testing.T) {
	clock := newFakeClock()
	tr := NewTracker(DefaultTrackerConfig(), clock.Now)
	id := tr.StartSimulated(LegPickup, []geo.Coordinate{a, b}, 10*time.Second, time.Time{})

	clock.Advance(9 * time.Second)
	p, _ := tr.Tick()
	require.True(t, p.Arrived)

	// A longer provider route pulls the fraction back below the threshold
	// and later crosses it again; the signal must not repeat.
	tr.Reroute([]geo.Coordinate{a, geo.Interpolate(a, b, 0.3), b}, 20*time.Second)
	_, gotID := tr.Leg()
	assert.Equal(t, id, gotID)

	p, _ = tr.Tick()
	assert.InDelta(t, 0.45, p.Fraction, 1e-9)
	for i := 0; i < 20; i++ {
		clock.Advance(time.Second)
		p, _ = tr.Tick()
		assert.False(t, p.Arrived)
	}
}

func TestTracker_NewLegRearms(t *testing.T) {
	clock := newFakeClock()
	tr := NewTracker(DefaultTrackerConfig(), clock.Now)
	first := tr.StartSimulated(LegPickup, []geo.Coordinate{a, b}, time.Second, time.Time{})
	clock.Advance(time.Second)
	p, _ := tr.Tick()
	assert.True(t, p.Arrived)

	second := tr.StartSimulated(LegPickup, []geo.Coordinate{b, a}, time.Second, time.Time{})
	assert.NotEqual(t, first, second)
	clock.Advance(time.Second)
	p, _ = tr.Tick()
	assert.True(t, p.Arrived)
}

func TestTracker_DisarmAndStop(t *testing.T) {
	clock := newFakeClock()
	tr := NewTracker(DefaultTrackerConfig(), clock.Now)
	tr.StartSimulated(LegPickup, []geo.Coordinate{a, b}, time.Second, time.Time{})
	tr.Disarm()
	clock.Advance(2 * time.Second)
	p, ok := tr.Tick()
	require.True(t, ok)
	assert.False(t, p.Arrived)

	tr.Stop()
	tr.Stop()
	assert.False(t, tr.Active())
	_, ok = tr.Tick()
	assert.False(t, ok)
}

func TestTracker_StartInThePast(t *testing.T) {
	clock := newFakeClock()
	tr := NewTracker(DefaultTrackerConfig(), clock.Now)
	tr.StartSimulated(LegPickup, []geo.Coordinate{a, b}, 10*time.Second, clock.Now().Add(-9*time.Second))

	p, _ := tr.Tick()
	assert.InDelta(t, 0.9, p.Fraction, 1e-9)
	assert.True(t, p.Arrived)
}
