package tracking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/domain/ride"
)

// Manager owns the live tracking sessions, at most one per ride.
type Manager struct {
	ctx       context.Context
	cancel    context.CancelFunc
	cfg       SessionConfig
	estimator RouteEstimator
	raiser    SignalRaiser
	hub       *Hub
	clock     func() time.Time
	logger    *zap.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	wg       sync.WaitGroup
}

// NewManager creates a session manager. hub may be nil when no live feed is configured.
func NewManager(
	cfg SessionConfig,
	estimator RouteEstimator,
	raiser SignalRaiser,
	hub *Hub,
	logger *zap.Logger,
) *Manager {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultSessionConfig().TickInterval
	}
	if cfg.RouteTimeout <= 0 {
		cfg.RouteTimeout = DefaultSessionConfig().RouteTimeout
	}
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = DefaultSessionConfig().SubscriberBuffer
	}
	if cfg.FallbackSpeedKmh <= 0 {
		cfg.FallbackSpeedKmh = DefaultSessionConfig().FallbackSpeedKmh
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		ctx:       ctx,
		cancel:    cancel,
		cfg:       cfg,
		estimator: estimator,
		raiser:    raiser,
		hub:       hub,
		clock:     time.Now,
		logger:    logger,
		sessions:  make(map[uuid.UUID]*Session),
	}
}

// WithClock replaces the clock used by new sessions.
func (m *Manager) WithClock(clock func() time.Time) *Manager {
	m.clock = clock
	return m
}

// Subscribe attaches role to the ride's session, starting one if needed.
func (m *Manager) Subscribe(ctx context.Context, b *ride.Booking, driver *DriverCard, role ride.Role) (<-chan Frame, func(), error) {
	for attempt := 0; attempt < 3; attempt++ {
		s := m.sessionFor(b, driver)
		if s == nil {
			return nil, nil, ErrSessionClosed
		}
		ch, cancel, err := s.Subscribe(ctx, role)
		if errors.Is(err, ErrSessionClosed) {
			// Lost a race with the previous session's teardown.
			<-s.Done()
			m.remove(b.ID(), s)
			continue
		}
		return ch, cancel, err
	}
	return nil, nil, ErrSessionClosed
}

func (m *Manager) sessionFor(b *ride.Booking, driver *DriverCard) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx.Err() != nil {
		return nil
	}
	if s, ok := m.sessions[b.ID()]; ok {
		s.Update(b, driver)
		return s
	}

	s := newSession(b, driver, m.cfg, m.estimator, m.raiser, m.hub, m.clock, m.logger)
	m.sessions[b.ID()] = s
	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		s.run(m.ctx)
	}()
	go func() {
		defer m.wg.Done()
		<-s.Done()
		m.remove(b.ID(), s)
	}()
	m.logger.Debug("tracking session started", zap.String("ride_id", b.ID().String()))
	return s
}

func (m *Manager) remove(id uuid.UUID, s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[id] == s {
		delete(m.sessions, id)
		m.logger.Debug("tracking session ended", zap.String("ride_id", id.String()))
	}
}

// Update pushes a booking change to its session, if one is running.
func (m *Manager) Update(b *ride.Booking, driver *DriverCard) {
	m.mu.Lock()
	s, ok := m.sessions[b.ID()]
	m.mu.Unlock()
	if ok {
		s.Update(b, driver)
	}
}

// Active returns the number of running sessions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close ends every session and waits for them to finish.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}
