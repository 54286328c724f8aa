package ride

import (
	"fmt"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/geo"
)

// Place is a pickup or destination point.
type Place struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

// Coordinate returns the place as a geo coordinate.
func (p Place) Coordinate() geo.Coordinate {
	return geo.Coordinate{Lat: p.Lat, Lng: p.Lng}
}

// Validate checks coordinates and address.
func (p Place) Validate(field string) error {
	if !p.Coordinate().IsValid() {
		return fmt.Errorf("%s coordinates are out of range", field)
	}
	if p.Address == "" {
		return fmt.Errorf("%s address is required", field)
	}
	return nil
}
