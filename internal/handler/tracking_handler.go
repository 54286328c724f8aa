package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/application"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/auth"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/middleware"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/response"
)

const (
	wsWriteWait  = 5 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// TrackingHandler streams live tracking frames over websockets. Browsers
// cannot set headers on the upgrade request, so the token may also be
// passed as ?access_token=.
type TrackingHandler struct {
	rides  *application.RideService
	logger *zap.Logger
}

// NewTrackingHandler creates a new TrackingHandler.
func NewTrackingHandler(rides *application.RideService, logger *zap.Logger) *TrackingHandler {
	return &TrackingHandler{rides: rides, logger: logger}
}

// RegisterRoutes registers the tracking stream.
func (h *TrackingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	r.GET("/api/v1/rides/:id/track",
		middleware.AuthMiddleware(jwtManager),
		middleware.RequireRole(auth.RoleRider, auth.RoleDriver),
		h.Track,
	)
}

// Track handles GET /api/v1/rides/:id/track. Authorization and the
// subscription happen before the upgrade so failures are plain HTTP errors.
func (h *TrackingHandler) Track(c *gin.Context) {
	rideID, ok := pathID(c, "ride")
	if !ok {
		return
	}
	userID, _, ok := caller(c)
	if !ok {
		return
	}

	frames, unsubscribe, err := h.rides.SubscribeTracking(c.Request.Context(), rideID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer unsubscribe()

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("ride_id", rideID.String()), zap.Error(err))
		return
	}
	defer ws.Close()

	log := h.logger.With(zap.String("ride_id", rideID.String()), zap.String("user_id", userID.String()))
	log.Debug("tracking client connected")

	gone := make(chan struct{})
	go readUntilClosed(ws, gone)

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			log.Debug("tracking client disconnected")
			return
		case f, open := <-frames:
			_ = ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !open {
				_ = ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "ride ended"))
				return
			}
			if err := ws.WriteJSON(f); err != nil {
				log.Debug("tracking write failed", zap.Error(err))
				return
			}
		case <-ping.C:
			_ = ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readUntilClosed drains client messages so control frames are processed,
// and closes gone once the connection fails.
func readUntilClosed(ws *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)
	ws.SetReadLimit(512)
	_ = ws.SetReadDeadline(time.Now().Add(wsPongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}
