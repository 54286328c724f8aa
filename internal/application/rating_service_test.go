package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/domain"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/domain/ride"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/events"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/repository"
)

func completedRide(t *testing.T, f *fixture) *RideDTO {
	t.Helper()
	dto := f.book(t)
	for _, cmd := range []ride.Command{ride.CommandAccept, ride.CommandArrive, ride.CommandStartTrip, ride.CommandFinishTrip} {
		f.driverCmd(t, dto.ID, cmd)
	}
	return dto
}

func TestRateRide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewRatingService(repository.NewMemoryRatingRepository(), f.rides, f.drivers, f.producer, zap.NewNop())
	dto := completedRide(t, f)

	byRider, err := svc.RateRide(ctx, dto.ID, f.riderID, RateRideRequest{Score: 4, Comment: "smooth ride"})
	require.NoError(t, err)
	assert.Equal(t, f.driverID, byRider.RateeID)
	assert.Equal(t, "rider", byRider.RaterRole)

	byDriver, err := svc.RateRide(ctx, dto.ID, f.driverID, RateRideRequest{Score: 5})
	require.NoError(t, err)
	assert.Equal(t, f.riderID, byDriver.RateeID)

	d, err := f.drivers.FindByID(ctx, f.driverID)
	require.NoError(t, err)
	assert.Equal(t, 4.0, d.Rating())
	assert.Equal(t, 1, d.RatingCount(), "only the rider's score counts toward the driver")

	_, err = svc.RateRide(ctx, dto.ID, f.riderID, RateRideRequest{Score: 1})
	assert.Equal(t, domain.CodeConflict, domain.CodeOf(err))

	ratings, err := svc.GetRideRatings(ctx, dto.ID, f.riderID, "rider")
	require.NoError(t, err)
	assert.Len(t, ratings, 2)

	page, err := svc.GetDriverRatings(ctx, f.driverID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 2, f.producer.count(events.RideRated))
}

func TestRateRide_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewRatingService(repository.NewMemoryRatingRepository(), f.rides, f.drivers, f.producer, zap.NewNop())
	dto := f.book(t)

	_, err := svc.RateRide(ctx, dto.ID, f.riderID, RateRideRequest{Score: 5})
	assert.Equal(t, domain.CodeValidation, domain.CodeOf(err), "ride not completed")

	_, err = svc.RateRide(ctx, dto.ID, f.driverID, RateRideRequest{Score: 5})
	assert.Equal(t, domain.CodeForbidden, domain.CodeOf(err), "not a party yet")
}
