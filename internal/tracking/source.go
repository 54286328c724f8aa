package tracking

import (
	"sync"
	"time"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/geo"
)

// Fix is one reading of the driver's progress along a leg.
type Fix struct {
	Position  geo.Coordinate
	Fraction  float64
	Remaining time.Duration
}

// PositionSource produces the driver's position along the active leg.
type PositionSource interface {
	Fix(now time.Time) Fix
	Close()
}

// Simulated walks a path at constant speed so that the end is reached after
// duration. Each fix depends only on elapsed time.
type Simulated struct {
	points   []geo.Coordinate
	start    time.Time
	duration time.Duration
}

// NewSimulated starts a simulated walk along points at start.
func NewSimulated(points []geo.Coordinate, duration time.Duration, start time.Time) *Simulated {
	return &Simulated{points: points, start: start, duration: duration}
}

func (s *Simulated) Fix(now time.Time) Fix {
	elapsed := now.Sub(s.start)
	f := geo.Clamp01(float64(elapsed) / float64(s.duration))
	remaining := s.duration - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return Fix{Position: geo.PointAlong(s.points, f), Fraction: f, Remaining: remaining}
}

// reroute swaps the path and duration but keeps the start time.
func (s *Simulated) reroute(points []geo.Coordinate, duration time.Duration) {
	s.points = points
	s.duration = duration
}

func (s *Simulated) Close() {}

// LiveFeed follows positions reported by the driver's device. Progress is
// measured as the share of the straight-line gap to the leg's end already
// closed.
type LiveFeed struct {
	origin   geo.Coordinate
	dest     geo.Coordinate
	speedKmh float64
	sub      *Subscription

	mu     sync.Mutex
	latest geo.Coordinate
	seen   bool
	done   chan struct{}
}

// NewLiveFeed follows sub between origin and dest. speedKmh is used for the ETA.
func NewLiveFeed(sub *Subscription, origin, dest geo.Coordinate, speedKmh float64) *LiveFeed {
	lf := &LiveFeed{
		origin:   origin,
		dest:     dest,
		speedKmh: speedKmh,
		sub:      sub,
		latest:   origin,
		done:     make(chan struct{}),
	}
	if p, ok := sub.Last(); ok {
		lf.latest, lf.seen = p.Coordinate, true
	}
	go lf.run()
	return lf
}

func (l *LiveFeed) run() {
	for {
		select {
		case p, ok := <-l.sub.C():
			if !ok {
				return
			}
			l.mu.Lock()
			l.latest, l.seen = p.Coordinate, true
			l.mu.Unlock()
		case <-l.done:
			return
		}
	}
}

func (l *LiveFeed) Fix(time.Time) Fix {
	l.mu.Lock()
	pos := l.latest
	l.mu.Unlock()

	total := geo.Haversine(l.origin, l.dest)
	left := geo.Haversine(pos, l.dest)
	f := 1.0
	if total > 0 {
		f = geo.Clamp01(1 - left/total)
	}
	return Fix{Position: pos, Fraction: f, Remaining: geo.EstimateDuration(left, l.speedKmh)}
}

// Seen reports whether any position has arrived yet.
func (l *LiveFeed) Seen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seen
}

func (l *LiveFeed) Close() {
	select {
	case <-l.done:
	default:
		close(l.done)
		l.sub.Close()
	}
}
