package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/geo"
)

// driverLocationsKey is the GEO set holding the latest position of every driver.
const driverLocationsKey = "ride:driver:locations"

// RedisDriverLocator implements driver.Locator on a Redis GEO set.
type RedisDriverLocator struct {
	rdb *goredis.Client
}

// NewRedisClient connects to Redis, retrying while it starts up.
func NewRedisClient(ctx context.Context, addr string, attempts int, logger *zap.Logger) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	for i := 0; i < attempts; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			logger.Info("connected to redis", zap.String("addr", addr))
			return rdb, nil
		}
		logger.Warn("waiting for redis", zap.Int("attempt", i+1), zap.Error(err))
		select {
		case <-ctx.Done():
			_ = rdb.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	_ = rdb.Close()
	return nil, fmt.Errorf("redis: failed to connect after %d attempts", attempts)
}

// NewRedisDriverLocator creates a locator on rdb.
func NewRedisDriverLocator(rdb *goredis.Client) *RedisDriverLocator {
	return &RedisDriverLocator{rdb: rdb}
}

// UpdatePosition stores the driver's latest position.
func (l *RedisDriverLocator) UpdatePosition(ctx context.Context, driverID uuid.UUID, pos geo.Coordinate) error {
	err := l.rdb.GeoAdd(ctx, driverLocationsKey, &goredis.GeoLocation{
		Name:      driverID.String(),
		Longitude: pos.Lng,
		Latitude:  pos.Lat,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to store driver position: %w", err)
	}
	return nil
}

// Position returns the driver's latest position. Redis stores GEO members
// as 52-bit geohashes, so the result is accurate to well under a metre.
func (l *RedisDriverLocator) Position(ctx context.Context, driverID uuid.UUID) (geo.Coordinate, bool, error) {
	res, err := l.rdb.GeoPos(ctx, driverLocationsKey, driverID.String()).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return geo.Coordinate{}, false, nil
		}
		return geo.Coordinate{}, false, fmt.Errorf("failed to read driver position: %w", err)
	}
	if len(res) == 0 || res[0] == nil {
		return geo.Coordinate{}, false, nil
	}
	return geo.Coordinate{Lat: res[0].Latitude, Lng: res[0].Longitude}, true, nil
}

// Remove drops the driver from the set.
func (l *RedisDriverLocator) Remove(ctx context.Context, driverID uuid.UUID) error {
	if err := l.rdb.ZRem(ctx, driverLocationsKey, driverID.String()).Err(); err != nil {
		return fmt.Errorf("failed to remove driver position: %w", err)
	}
	return nil
}

// Nearby returns driver IDs around center, nearest first.
func (l *RedisDriverLocator) Nearby(ctx context.Context, center geo.Coordinate, radiusKm float64, count int) ([]uuid.UUID, error) {
	members, err := l.rdb.GeoSearch(ctx, driverLocationsKey, &goredis.GeoSearchQuery{
		Longitude:  center.Lng,
		Latitude:   center.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Count:      count,
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to search nearby drivers: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Name and Check make the client a readiness probe.
func (l *RedisDriverLocator) Name() string { return "redis" }

func (l *RedisDriverLocator) Check(ctx context.Context) error {
	return l.rdb.Ping(ctx).Err()
}
