package tracking

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocationMessage(t *testing.T) {
	driver := uuid.New()
	p, err := ParseLocationMessage("rides/drivers/"+driver.String()+"/location",
		[]byte(`{"lat":21.03,"lng":105.85,"heading":90,"speed_kmh":32.5,"reported_at":"2024-05-01T08:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, driver, p.DriverID)
	assert.Equal(t, 21.03, p.Coordinate.Lat)
	assert.Equal(t, 32.5, p.SpeedKmh)
	assert.Equal(t, 2024, p.ReportedAt.Year())
}

func TestParseLocationMessage_Rejects(t *testing.T) {
	driver := uuid.New().String()
	tests := []struct {
		name    string
		topic   string
		payload string
	}{
		{"wrong prefix", "fleet/drivers/" + driver + "/location", `{"lat":1,"lng":1}`},
		{"bad driver id", "rides/drivers/nope/location", `{"lat":1,"lng":1}`},
		{"bad json", "rides/drivers/" + driver + "/location", `{lat`},
		{"out of range", "rides/drivers/" + driver + "/location", `{"lat":123,"lng":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLocationMessage(tt.topic, []byte(tt.payload))
			assert.Error(t, err)
		})
	}
}
