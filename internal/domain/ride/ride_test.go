package ride

import (
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/domain"
)

func TestNewBooking_Validation(t *testing.T) {
	tests := []struct {
		name    string
		rider   uuid.UUID
		pickup  Place
		dest    Place
		class   VehicleClass
		dist    float64
		fare    int64
		wantErr bool
	}{
		{"valid", uuid.New(), hoanKiem, westLake, VehicleCar, 4.8, 60000, false},
		{"no rider", uuid.Nil, hoanKiem, westLake, VehicleCar, 4.8, 60000, true},
		{"bad pickup", uuid.New(), Place{Lat: 95, Lng: 0, Address: "x"}, westLake, VehicleCar, 4.8, 60000, true},
		{"no destination address", uuid.New(), hoanKiem, Place{Lat: 21, Lng: 105}, VehicleCar, 4.8, 60000, true},
		{"bad class", uuid.New(), hoanKiem, westLake, VehicleClass("BUS"), 4.8, 60000, true},
		{"negative distance", uuid.New(), hoanKiem, westLake, VehicleCar, -1, 60000, true},
		{"zero fare", uuid.New(), hoanKiem, westLake, VehicleCar, 4.8, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBooking(tt.rider, tt.pickup, tt.dest, tt.class, tt.dist, tt.fare, domain.CurrencyVND)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StatusPending, b.Status())
			assert.Nil(t, b.DriverID())
			assert.Empty(t, b.CancelReason())
			assert.Equal(t, int64(1), b.Version())
		})
	}
}

func TestGenerateBookingCode(t *testing.T) {
	pattern := regexp.MustCompile(`^RD-[A-HJ-NP-Z2-9]{6}$`)
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := GenerateBookingCode()
		require.NoError(t, err)
		assert.Regexp(t, pattern, code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 190)
}

func TestBooking_RoleOf(t *testing.T) {
	b := newPendingBooking(t)
	role, ok := b.RoleOf(b.RiderID())
	assert.True(t, ok)
	assert.Equal(t, RoleRider, role)

	driver := uuid.New()
	_, ok = b.RoleOf(driver)
	assert.False(t, ok)

	apply(t, b, NewRoleCommand(RoleDriver, driver, CommandAccept))
	role, ok = b.RoleOf(driver)
	assert.True(t, ok)
	assert.Equal(t, RoleDriver, role)
	assert.True(t, b.IsParty(driver))
	assert.False(t, b.IsParty(uuid.New()))
}

func TestBooking_CloneIsIndependent(t *testing.T) {
	b := newPendingBooking(t)
	c := b.Clone()
	apply(t, c, NewRoleCommand(RoleDriver, uuid.New(), CommandAccept))
	assert.Equal(t, StatusPending, b.Status())
	assert.Nil(t, b.DriverID())
}

func TestStageFor(t *testing.T) {
	tests := []struct {
		role   Role
		status RideStatus
		want   Stage
		ok     bool
	}{
		{RoleRider, StatusPending, "", false},
		{RoleRider, StatusAccepted, StageComing, true},
		{RoleRider, StatusArriving, StageArrived, true},
		{RoleRider, StatusOnway, StageOnway, true},
		{RoleRider, StatusCancelled, "", false},
		{RoleDriver, StatusPending, StagePending, true},
		{RoleDriver, StatusAccepted, StageAccepted, true},
		{RoleDriver, StatusArriving, StageArrived, true},
		{RoleDriver, StatusOnway, StageOnway, true},
		{RoleDriver, StatusCompleted, StageDone, true},
		{RoleSystem, StatusOnway, "", false},
	}
	for _, tt := range tests {
		got, ok := StageFor(tt.role, tt.status)
		assert.Equal(t, tt.ok, ok, "%s/%s", tt.role, tt.status)
		assert.Equal(t, tt.want, got, "%s/%s", tt.role, tt.status)
	}
}

func TestParseRideStatus(t *testing.T) {
	s, err := ParseRideStatus("onway")
	require.NoError(t, err)
	assert.Equal(t, StatusOnway, s)
	assert.True(t, StatusCompleted.IsTerminal())
	assert.False(t, StatusArriving.IsTerminal())

	_, err = ParseRideStatus("flying")
	assert.Error(t, err)
}
