package ride

import (
	"fmt"
	"math"
)

// VehicleClass is the kind of vehicle requested.
type VehicleClass string

const (
	VehicleMotorcycle VehicleClass = "MOTORCYCLE"
	VehicleCar        VehicleClass = "CAR"
)

// IsValid returns true if the vehicle class is recognized.
func (v VehicleClass) IsValid() bool {
	return v == VehicleMotorcycle || v == VehicleCar
}

// FareStrategy defines the interface for quoting a ride.
type FareStrategy interface {
	// Calculate returns the fare in whole currency units.
	Calculate(params FareParams) (int64, error)
}

// FareParams holds the inputs for fare calculation.
type FareParams struct {
	DistanceKm   float64
	VehicleClass VehicleClass
}

// Tariff is a fixed flag-fall plus per-kilometre rate.
type Tariff struct {
	BaseFare       int64
	BaseDistanceKm float64
	PerKm          int64
}

// TariffFareStrategy quotes fares in VND from a per-class tariff.
type TariffFareStrategy struct {
	tariffs map[VehicleClass]Tariff
	roundTo int64
}

// DefaultTariffs are the published city tariffs.
var DefaultTariffs = map[VehicleClass]Tariff{
	VehicleMotorcycle: {BaseFare: 12000, BaseDistanceKm: 2, PerKm: 4300},
	VehicleCar:        {BaseFare: 25000, BaseDistanceKm: 2, PerKm: 9000},
}

// NewTariffFareStrategy creates a strategy from tariffs, rounding up to roundTo.
func NewTariffFareStrategy(tariffs map[VehicleClass]Tariff, roundTo int64) *TariffFareStrategy {
	if roundTo <= 0 {
		roundTo = 1
	}
	return &TariffFareStrategy{tariffs: tariffs, roundTo: roundTo}
}

// NewDefaultFareStrategy uses DefaultTariffs rounded up to the nearest 1000 VND.
func NewDefaultFareStrategy() *TariffFareStrategy {
	return NewTariffFareStrategy(DefaultTariffs, 1000)
}

// Calculate computes the fare.
//
// Formula:
//   - Base fare covers the first BaseDistanceKm
//   - Each further kilometre (fractional) costs PerKm
//   - The total is rounded up to the strategy's rounding unit
//
// The result never decreases as distance grows.
func (s *TariffFareStrategy) Calculate(params FareParams) (int64, error) {
	if math.IsNaN(params.DistanceKm) || math.IsInf(params.DistanceKm, 0) {
		return 0, fmt.Errorf("distance must be a finite number")
	}
	if params.DistanceKm < 0 {
		return 0, fmt.Errorf("distance cannot be negative")
	}
	tariff, ok := s.tariffs[params.VehicleClass]
	if !ok {
		return 0, fmt.Errorf("unknown vehicle class for pricing: %s", params.VehicleClass)
	}

	total := float64(tariff.BaseFare)
	if extra := params.DistanceKm - tariff.BaseDistanceKm; extra > 0 {
		total += extra * float64(tariff.PerKm)
	}

	units := math.Ceil(total / float64(s.roundTo))
	return int64(units) * s.roundTo, nil
}
