package tracking

import (
	"math"
	"time"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/geo"
)

// Leg is one of the two route segments of a ride.
type Leg string

const (
	LegPickup      Leg = "pickup"
	LegDestination Leg = "destination"
)

// TrackerConfig tunes the PositionTracker.
type TrackerConfig struct {
	// ArrivalThreshold is the fraction of the pickup leg at which the
	// arrived signal fires.
	ArrivalThreshold float64
	// MinLegDuration replaces non-positive duration estimates.
	MinLegDuration time.Duration
}

// DefaultTrackerConfig returns the production tuning.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{ArrivalThreshold: 0.88, MinLegDuration: time.Second}
}

// Progress is the result of one tick.
type Progress struct {
	Leg   Leg
	LegID uint64
	Fix
	// Arrived is true on the single tick that crossed the arrival threshold.
	Arrived bool
}

// Tracker emits the driver's position along the active leg and raises the
// arrived signal at most once per leg. It is not safe for concurrent use;
// a TrackingSession owns exactly one.
type Tracker struct {
	cfg   TrackerConfig
	clock func() time.Time

	leg    Leg
	legID  uint64
	source PositionSource
	armed  bool
}

// NewTracker creates an idle tracker. clock defaults to time.Now.
func NewTracker(cfg TrackerConfig, clock func() time.Time) *Tracker {
	if cfg.MinLegDuration <= 0 {
		cfg.MinLegDuration = time.Second
	}
	if cfg.ArrivalThreshold <= 0 || cfg.ArrivalThreshold > 1 {
		cfg.ArrivalThreshold = DefaultTrackerConfig().ArrivalThreshold
	}
	if clock == nil {
		clock = time.Now
	}
	return &Tracker{cfg: cfg, clock: clock}
}

// ClampDuration turns a missing or negative estimate into a usable one.
func (t *Tracker) ClampDuration(d time.Duration) time.Duration {
	if d < t.cfg.MinLegDuration {
		return t.cfg.MinLegDuration
	}
	return d
}

// Start begins a new leg fed by src, replacing any active leg.
func (t *Tracker) Start(leg Leg, src PositionSource) uint64 {
	if t.source != nil {
		t.source.Close()
	}
	t.legID++
	t.leg = leg
	t.source = src
	t.armed = leg == LegPickup
	return t.legID
}

// StartSimulated begins a new leg walking points over duration, measured
// from start. A zero start means now.
func (t *Tracker) StartSimulated(leg Leg, points []geo.Coordinate, duration time.Duration, start time.Time) uint64 {
	if start.IsZero() {
		start = t.clock()
	}
	return t.Start(leg, NewSimulated(points, t.ClampDuration(duration), start))
}

// Now returns the tracker's clock reading.
func (t *Tracker) Now() time.Time { return t.clock() }

// Reroute replaces the path of the active simulated leg. The leg keeps its
// identity and start time, so a signal already raised is not raised again.
func (t *Tracker) Reroute(points []geo.Coordinate, duration time.Duration) {
	if sim, ok := t.source.(*Simulated); ok && len(points) > 0 {
		sim.reroute(points, t.ClampDuration(duration))
	}
}

// Disarm suppresses the arrived signal for the active leg.
func (t *Tracker) Disarm() {
	t.armed = false
}

// Active reports whether a leg is running.
func (t *Tracker) Active() bool { return t.source != nil }

// Leg returns the active leg and its id.
func (t *Tracker) Leg() (Leg, uint64) { return t.leg, t.legID }

// Tick samples the active leg. The second result is false when idle.
func (t *Tracker) Tick() (Progress, bool) {
	if t.source == nil {
		return Progress{}, false
	}
	fix := t.source.Fix(t.clock())
	if math.IsNaN(fix.Fraction) {
		fix.Fraction = 0
	}
	p := Progress{Leg: t.leg, LegID: t.legID, Fix: fix}
	if t.armed && fix.Fraction >= t.cfg.ArrivalThreshold {
		t.armed = false
		p.Arrived = true
	}
	return p, true
}

// Stop ends the active leg. Calling it again does nothing.
func (t *Tracker) Stop() {
	if t.source == nil {
		return
	}
	t.source.Close()
	t.source = nil
	t.armed = false
}
