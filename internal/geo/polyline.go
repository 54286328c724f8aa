package geo

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const polylineScale = 1e5

// ErrMalformedRoute is returned when an encoded polyline cannot be decoded.
var ErrMalformedRoute = errors.New("malformed route polyline")

// DecodePolyline decodes Google's encoded polyline format: per coordinate a
// latitude delta then a longitude delta, each a zigzag-signed varint in
// 5-bit groups offset by 63 with 0x20 as the continuation bit, scaled by 1e5.
func DecodePolyline(encoded string) ([]Coordinate, error) {
	points := make([]Coordinate, 0, len(encoded)/4)

	var lat, lng int64
	for i := 0; i < len(encoded); {
		dLat, next, err := decodeValue(encoded, i)
		if err != nil {
			return nil, err
		}
		if next >= len(encoded) {
			return nil, fmt.Errorf("%w: latitude at offset %d has no longitude", ErrMalformedRoute, i)
		}
		dLng, next, err := decodeValue(encoded, next)
		if err != nil {
			return nil, err
		}
		i = next

		lat += dLat
		lng += dLng
		points = append(points, Coordinate{
			Lat: float64(lat) / polylineScale,
			Lng: float64(lng) / polylineScale,
		})
	}

	return points, nil
}

func decodeValue(s string, i int) (int64, int, error) {
	var result int64
	var shift uint
	for {
		if i >= len(s) {
			return 0, i, fmt.Errorf("%w: unterminated value at end of input", ErrMalformedRoute)
		}
		b := int64(s[i]) - 63
		if b < 0 || b > 0x3f {
			return 0, i, fmt.Errorf("%w: invalid character %q at offset %d", ErrMalformedRoute, s[i], i)
		}
		if shift > 30 {
			return 0, i, fmt.Errorf("%w: value overflow at offset %d", ErrMalformedRoute, i)
		}
		i++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	if result&1 != 0 {
		return ^(result >> 1), i, nil
	}
	return result >> 1, i, nil
}

// EncodePolyline encodes points at 1e-5 precision.
func EncodePolyline(points []Coordinate) string {
	var sb strings.Builder
	var prevLat, prevLng int64
	for _, p := range points {
		lat := int64(math.Round(p.Lat * polylineScale))
		lng := int64(math.Round(p.Lng * polylineScale))
		encodeValue(&sb, lat-prevLat)
		encodeValue(&sb, lng-prevLng)
		prevLat, prevLng = lat, lng
	}
	return sb.String()
}

func encodeValue(sb *strings.Builder, v int64) {
	u := v << 1
	if v < 0 {
		u = ^u
	}
	for u >= 0x20 {
		sb.WriteByte(byte((0x20 | (u & 0x1f)) + 63))
		u >>= 5
	}
	sb.WriteByte(byte(u + 63))
}
