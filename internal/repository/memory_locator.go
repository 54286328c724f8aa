package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/geo"
)

// MemoryLocator is an in-process driver.Locator.
type MemoryLocator struct {
	mu        sync.RWMutex
	positions map[uuid.UUID]geo.Coordinate
}

// NewMemoryLocator creates an empty MemoryLocator.
func NewMemoryLocator() *MemoryLocator {
	return &MemoryLocator{positions: make(map[uuid.UUID]geo.Coordinate)}
}

func (l *MemoryLocator) UpdatePosition(_ context.Context, driverID uuid.UUID, pos geo.Coordinate) error {
	l.mu.Lock()
	l.positions[driverID] = pos
	l.mu.Unlock()
	return nil
}

func (l *MemoryLocator) Position(_ context.Context, driverID uuid.UUID) (geo.Coordinate, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pos, ok := l.positions[driverID]
	return pos, ok, nil
}

func (l *MemoryLocator) Remove(_ context.Context, driverID uuid.UUID) error {
	l.mu.Lock()
	delete(l.positions, driverID)
	l.mu.Unlock()
	return nil
}

func (l *MemoryLocator) Nearby(_ context.Context, center geo.Coordinate, radiusKm float64, count int) ([]uuid.UUID, error) {
	type hit struct {
		id   uuid.UUID
		dist float64
	}
	l.mu.RLock()
	var hits []hit
	for id, pos := range l.positions {
		if d := geo.Haversine(center, pos); d <= radiusKm*1000 {
			hits = append(hits, hit{id, d})
		}
	}
	l.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })
	if count > 0 && len(hits) > count {
		hits = hits[:count]
	}
	ids := make([]uuid.UUID, len(hits))
	for i, h := range hits {
		ids[i] = h.id
	}
	return ids, nil
}
