package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/auth"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/domain/ride"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/tracking"
)

func dialTrack(t *testing.T, srv *httptest.Server, rideID uuid.UUID, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/rides/" + rideID.String() + "/track?access_token=" + token
	return websocket.DefaultDialer.Dial(url, nil)
}

func TestTrackingStreamFollowsRide(t *testing.T) {
	api := newTestAPI(t)
	api.registerDriver(t)
	booked := api.book(t)

	code, _ := api.do(t, http.MethodPost, "/api/v1/rides/"+booked.ID.String()+"/accept", api.driver(t), nil)
	require.Equal(t, http.StatusOK, code)

	srv := httptest.NewServer(api.router)
	defer srv.Close()

	ws, _, err := dialTrack(t, srv, booked.ID, api.rider(t))
	require.NoError(t, err)
	defer ws.Close()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first tracking.Frame
	require.NoError(t, ws.ReadJSON(&first))
	assert.Equal(t, ride.StatusAccepted, first.Status)
	assert.Equal(t, ride.RoleRider, first.Role)
	require.NotNil(t, first.Driver)
	assert.Equal(t, "Minh", first.Driver.Name)

	code, _ = api.do(t, http.MethodPost, "/api/v1/rides/"+booked.ID.String()+"/cancel", api.rider(t), nil)
	require.Equal(t, http.StatusOK, code)

	var last tracking.Frame
	for {
		var f tracking.Frame
		err := ws.ReadJSON(&f)
		if err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
			break
		}
		last = f
	}
	assert.Equal(t, ride.StatusCancelled, last.Status)
	assert.True(t, last.Terminal)
}

func TestTrackingRejectsOutsiders(t *testing.T) {
	api := newTestAPI(t)
	booked := api.book(t)

	srv := httptest.NewServer(api.router)
	defer srv.Close()

	_, resp, err := dialTrack(t, srv, booked.ID, api.token(t, uuid.New(), auth.RoleRider))
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, resp, err = dialTrack(t, srv, booked.ID, "garbage")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
