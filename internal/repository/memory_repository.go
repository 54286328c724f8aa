package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/domain"
	driverDomain "github.com/Kilat-Pet-Delivery/service-ride/internal/domain/driver"
	ratingDomain "github.com/Kilat-Pet-Delivery/service-ride/internal/domain/rating"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/domain/ride"
)

// MemoryRideRepository keeps rides in process. It has the same
// compare-and-swap semantics as the postgres repository and backs the
// "memory" storage driver and the unit tests.
type MemoryRideRepository struct {
	mu    sync.RWMutex
	rides map[uuid.UUID]*ride.Booking
	codes map[string]uuid.UUID
}

// NewMemoryRideRepository creates an empty MemoryRideRepository.
func NewMemoryRideRepository() *MemoryRideRepository {
	return &MemoryRideRepository{
		rides: make(map[uuid.UUID]*ride.Booking),
		codes: make(map[string]uuid.UUID),
	}
}

func (r *MemoryRideRepository) FindByID(_ context.Context, id uuid.UUID) (*ride.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.rides[id]
	if !ok {
		return nil, domain.NewNotFoundError("Ride", id.String())
	}
	return b.Clone(), nil
}

func (r *MemoryRideRepository) FindByCode(_ context.Context, code string) (*ride.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.codes[code]
	if !ok {
		return nil, domain.NewNotFoundError("Ride", code)
	}
	return r.rides[id].Clone(), nil
}

func (r *MemoryRideRepository) FindByRiderID(_ context.Context, riderID uuid.UUID, page, limit int) ([]*ride.Booking, int64, error) {
	rides := r.filter(func(b *ride.Booking) bool { return b.RiderID() == riderID }, true)
	return paginate(rides, page, limit)
}

func (r *MemoryRideRepository) FindByDriverID(_ context.Context, driverID uuid.UUID, page, limit int) ([]*ride.Booking, int64, error) {
	rides := r.filter(func(b *ride.Booking) bool { return b.DriverID() != nil && *b.DriverID() == driverID }, true)
	return paginate(rides, page, limit)
}

func (r *MemoryRideRepository) ListPending(_ context.Context, page, limit int) ([]*ride.Booking, int64, error) {
	rides := r.filter(func(b *ride.Booking) bool { return b.Status() == ride.StatusPending }, false)
	return paginate(rides, page, limit)
}

func (r *MemoryRideRepository) ListAll(_ context.Context, page, limit int) ([]*ride.Booking, int64, error) {
	return paginate(r.filter(func(*ride.Booking) bool { return true }, true), page, limit)
}

func (r *MemoryRideRepository) CountByStatus(_ context.Context) (map[string]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[string]int64)
	for _, b := range r.rides {
		counts[string(b.Status())]++
	}
	return counts, nil
}

func (r *MemoryRideRepository) Save(_ context.Context, b *ride.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.codes[b.BookingCode()]; ok {
		return domain.NewConflictError("booking code already in use")
	}
	if _, ok := r.rides[b.ID()]; ok {
		return domain.NewConflictError("ride already exists")
	}
	r.rides[b.ID()] = b.Clone()
	r.codes[b.BookingCode()] = b.ID()
	return nil
}

func (r *MemoryRideRepository) Update(_ context.Context, b *ride.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rides[b.ID()]
	if !ok {
		return domain.NewNotFoundError("Ride", b.ID().String())
	}
	if cur.Version() != b.Version()-1 {
		return domain.NewConflictError("ride was modified by another transaction")
	}
	r.rides[b.ID()] = b.Clone()
	return nil
}

func (r *MemoryRideRepository) filter(keep func(*ride.Booking) bool, newestFirst bool) []*ride.Booking {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*ride.Booking
	for _, b := range r.rides {
		if keep(b) {
			out = append(out, b.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].CreatedAt().After(out[j].CreatedAt())
		}
		return out[i].CreatedAt().Before(out[j].CreatedAt())
	})
	return out
}

// MemoryDriverRepository keeps driver profiles in process.
type MemoryDriverRepository struct {
	mu      sync.RWMutex
	drivers map[uuid.UUID]*driverDomain.Driver
}

// NewMemoryDriverRepository creates an empty MemoryDriverRepository.
func NewMemoryDriverRepository() *MemoryDriverRepository {
	return &MemoryDriverRepository{drivers: make(map[uuid.UUID]*driverDomain.Driver)}
}

func (r *MemoryDriverRepository) FindByID(_ context.Context, id uuid.UUID) (*driverDomain.Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drivers[id]
	if !ok {
		return nil, domain.NewNotFoundError("Driver", id.String())
	}
	return copyDriver(d), nil
}

func (r *MemoryDriverRepository) List(_ context.Context, page, limit int) ([]*driverDomain.Driver, int64, error) {
	r.mu.RLock()
	out := make([]*driverDomain.Driver, 0, len(r.drivers))
	for _, d := range r.drivers {
		out = append(out, copyDriver(d))
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return paginate(out, page, limit)
}

func (r *MemoryDriverRepository) Save(_ context.Context, d *driverDomain.Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.drivers[d.ID()]; ok {
		return domain.NewConflictError("driver profile already exists")
	}
	r.drivers[d.ID()] = copyDriver(d)
	return nil
}

func (r *MemoryDriverRepository) Update(_ context.Context, d *driverDomain.Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.drivers[d.ID()]
	if !ok {
		return domain.NewNotFoundError("Driver", d.ID().String())
	}
	if cur.Version() != d.Version()-1 {
		return domain.NewConflictError("driver was modified by another transaction")
	}
	r.drivers[d.ID()] = copyDriver(d)
	return nil
}

func copyDriver(d *driverDomain.Driver) *driverDomain.Driver {
	return driverDomain.Reconstruct(
		d.ID(), d.Name(), d.Phone(), d.VehicleClass(), d.VehiclePlate(), d.VehicleModel(),
		d.Rating(), d.RatingCount(), d.TripCount(), d.Status(), d.Version(), d.CreatedAt(), d.UpdatedAt(),
	)
}

// MemoryRatingRepository keeps ratings in process. Ratings are immutable
// so they are stored as given.
type MemoryRatingRepository struct {
	mu      sync.RWMutex
	ratings []*ratingDomain.Rating
}

// NewMemoryRatingRepository creates an empty MemoryRatingRepository.
func NewMemoryRatingRepository() *MemoryRatingRepository {
	return &MemoryRatingRepository{}
}

func (r *MemoryRatingRepository) Save(_ context.Context, rating *ratingDomain.Rating) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.ratings {
		if existing.RideID() == rating.RideID() && existing.RaterID() == rating.RaterID() {
			return domain.NewConflictError("this ride has already been rated by this user")
		}
	}
	r.ratings = append(r.ratings, rating)
	return nil
}

func (r *MemoryRatingRepository) FindByRideID(_ context.Context, rideID uuid.UUID) ([]*ratingDomain.Rating, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*ratingDomain.Rating
	for _, rating := range r.ratings {
		if rating.RideID() == rideID {
			out = append(out, rating)
		}
	}
	return out, nil
}

func (r *MemoryRatingRepository) FindByRateeID(_ context.Context, rateeID uuid.UUID, page, limit int) ([]*ratingDomain.Rating, int64, error) {
	r.mu.RLock()
	var out []*ratingDomain.Rating
	for i := len(r.ratings) - 1; i >= 0; i-- {
		if r.ratings[i].RateeID() == rateeID {
			out = append(out, r.ratings[i])
		}
	}
	r.mu.RUnlock()
	return paginate(out, page, limit)
}

func paginate[T any](items []T, page, limit int) ([]T, int64, error) {
	total := int64(len(items))
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		return items, total, nil
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}, total, nil
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], total, nil
}
