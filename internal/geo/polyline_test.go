package geo

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePolyline_GoogleReference(t *testing.T) {
	points, err := DecodePolyline("_p~iF~ps|U_ulLnnqC_mqNvxq`@")
	require.NoError(t, err)
	require.Len(t, points, 3)

	want := []Coordinate{{38.5, -120.2}, {40.7, -120.95}, {43.252, -126.453}}
	for i := range want {
		assert.InDelta(t, want[i].Lat, points[i].Lat, 1e-9)
		assert.InDelta(t, want[i].Lng, points[i].Lng, 1e-9)
	}
}

func TestEncodePolyline_GoogleReference(t *testing.T) {
	encoded := EncodePolyline([]Coordinate{{38.5, -120.2}, {40.7, -120.95}, {43.252, -126.453}})
	assert.Equal(t, "_p~iF~ps|U_ulLnnqC_mqNvxq`@", encoded)
}

func TestPolyline_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for n := 0; n < 50; n++ {
		points := make([]Coordinate, rng.Intn(40))
		for i := range points {
			points[i] = Coordinate{
				Lat: rng.Float64()*180 - 90,
				Lng: rng.Float64()*360 - 180,
			}.Round5()
		}

		decoded, err := DecodePolyline(EncodePolyline(points))
		require.NoError(t, err)
		assert.Equal(t, points, decoded)
	}
}

func TestDecodePolyline_Empty(t *testing.T) {
	points, err := DecodePolyline("")
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestDecodePolyline_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
	}{
		{name: "latitude without longitude", encoded: "_p~iF"},
		{name: "unterminated value", encoded: "_p~iF~ps|"},
		{name: "continuation at end", encoded: "_"},
		{name: "character below range", encoded: "_p~iF ps|U"},
		{name: "character above range", encoded: "\x7f?"},
		{name: "overlong value", encoded: "~~~~~~~~~~?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePolyline(tt.encoded)
			assert.ErrorIs(t, err, ErrMalformedRoute)
		})
	}
}
