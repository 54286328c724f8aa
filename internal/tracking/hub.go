package tracking

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/geo"
)

// DriverPosition is one position report from a driver's device.
type DriverPosition struct {
	DriverID   uuid.UUID      `json:"driver_id"`
	Coordinate geo.Coordinate `json:"coordinate"`
	Heading    float64        `json:"heading,omitempty"`
	SpeedKmh   float64        `json:"speed_kmh,omitempty"`
	ReportedAt time.Time      `json:"reported_at"`
}

// Hub fans live driver positions out to the sessions following them.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]map[*Subscription]struct{}
	latest map[uuid.UUID]DriverPosition
	maxAge time.Duration
	now    func() time.Time
}

// NewHub creates a hub. Positions older than maxAge do not count as a live feed.
func NewHub(maxAge time.Duration) *Hub {
	return &Hub{
		subs:   make(map[uuid.UUID]map[*Subscription]struct{}),
		latest: make(map[uuid.UUID]DriverPosition),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Publish records p and delivers it to every subscriber of the driver.
// Slow subscribers lose older positions, never the newest.
func (h *Hub) Publish(p DriverPosition) {
	if p.ReportedAt.IsZero() {
		p.ReportedAt = h.now().UTC()
	}
	h.mu.Lock()
	if prev, ok := h.latest[p.DriverID]; ok && p.ReportedAt.Before(prev.ReportedAt) {
		h.mu.Unlock()
		return
	}
	h.latest[p.DriverID] = p
	subs := make([]*Subscription, 0, len(h.subs[p.DriverID]))
	for s := range h.subs[p.DriverID] {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.deliver(p)
	}
}

// Latest returns the newest position of a driver.
func (h *Hub) Latest(driverID uuid.UUID) (DriverPosition, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.latest[driverID]
	return p, ok
}

// IsLive reports whether the driver reported recently enough to follow.
func (h *Hub) IsLive(driverID uuid.UUID) bool {
	p, ok := h.Latest(driverID)
	return ok && h.now().Sub(p.ReportedAt) <= h.maxAge
}

// Subscribe follows one driver until the subscription is closed.
func (h *Hub) Subscribe(driverID uuid.UUID) *Subscription {
	s := &Subscription{hub: h, driverID: driverID, ch: make(chan DriverPosition, 1)}
	h.mu.Lock()
	if h.subs[driverID] == nil {
		h.subs[driverID] = make(map[*Subscription]struct{})
	}
	h.subs[driverID][s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *Hub) unsubscribe(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[s.driverID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, s.driverID)
		}
	}
}

// Subscription is one follower of a driver's positions.
type Subscription struct {
	hub      *Hub
	driverID uuid.UUID
	mu       sync.Mutex
	ch       chan DriverPosition
	closed   bool
}

// C delivers positions; it is closed by Close.
func (s *Subscription) C() <-chan DriverPosition { return s.ch }

// Last returns the hub's newest position for the driver.
func (s *Subscription) Last() (DriverPosition, bool) { return s.hub.Latest(s.driverID) }

func (s *Subscription) deliver(p DriverPosition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- p:
	default:
		select {
		case <-s.ch:
		default:
		}
		s.ch <- p
	}
}

// Close stops delivery. It is safe to call more than once.
func (s *Subscription) Close() {
	s.hub.unsubscribe(s)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
