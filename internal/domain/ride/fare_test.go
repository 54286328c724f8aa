package ride

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTariffFareStrategy_Calculate(t *testing.T) {
	s := NewDefaultFareStrategy()
	tests := []struct {
		name  string
		km    float64
		class VehicleClass
		want  int64
	}{
		{"motorcycle zero", 0, VehicleMotorcycle, 12000},
		{"motorcycle within base", 1.9, VehicleMotorcycle, 12000},
		{"motorcycle 5km", 5, VehicleMotorcycle, 25000},
		{"motorcycle rounds up", 2.1, VehicleMotorcycle, 13000},
		{"car 5km", 5, VehicleCar, 52000},
		{"car 10km", 10, VehicleCar, 97000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Calculate(FareParams{DistanceKm: tt.km, VehicleClass: tt.class})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTariffFareStrategy_Monotonic(t *testing.T) {
	s := NewDefaultFareStrategy()
	for _, class := range []VehicleClass{VehicleMotorcycle, VehicleCar} {
		prev := int64(0)
		for km := 0.0; km <= 40; km += 0.05 {
			fare, err := s.Calculate(FareParams{DistanceKm: km, VehicleClass: class})
			require.NoError(t, err)
			require.GreaterOrEqual(t, fare, prev, "%s at %.2f km", class, km)
			prev = fare
		}
	}
}

func TestTariffFareStrategy_Errors(t *testing.T) {
	s := NewDefaultFareStrategy()
	for _, p := range []FareParams{
		{DistanceKm: -1, VehicleClass: VehicleCar},
		{DistanceKm: math.NaN(), VehicleClass: VehicleCar},
		{DistanceKm: math.Inf(1), VehicleClass: VehicleCar},
		{DistanceKm: 3, VehicleClass: "BUS"},
	} {
		_, err := s.Calculate(p)
		assert.Error(t, err, "%+v", p)
	}
}
