package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/application"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/auth"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/middleware"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/response"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/domain/ride"
)

// RideHandler handles HTTP requests for ride bookings.
type RideHandler struct {
	rides     *application.RideService
	locations *application.LocationService
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(rides *application.RideService, locations *application.LocationService) *RideHandler {
	return &RideHandler{rides: rides, locations: locations}
}

// RegisterRoutes registers all ride routes on the given router group.
func (h *RideHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	parties := middleware.RequireRole(auth.RoleRider, auth.RoleDriver)

	rides := r.Group("/api/v1/rides")
	rides.Use(authMW)
	{
		rides.POST("/quote", h.QuoteFare)
		rides.POST("", middleware.RequireRole(auth.RoleRider), h.CreateRide)
		rides.GET("", h.ListRides)
		rides.GET("/pending", middleware.RequireRole(auth.RoleDriver), h.ListPending)
		rides.GET("/code/:code", h.GetRideByCode)
		rides.GET("/:id", h.GetRide)
		rides.GET("/:id/trail", h.GetTrail)
		rides.POST("/:id/transitions", parties, h.SubmitTransition)
		rides.POST("/:id/accept", middleware.RequireRole(auth.RoleDriver), h.command(ride.CommandAccept))
		rides.POST("/:id/decline", middleware.RequireRole(auth.RoleDriver), h.command(ride.CommandDecline))
		rides.POST("/:id/arrive", middleware.RequireRole(auth.RoleDriver), h.command(ride.CommandArrive))
		rides.POST("/:id/start", middleware.RequireRole(auth.RoleDriver), h.command(ride.CommandStartTrip))
		rides.POST("/:id/finish", middleware.RequireRole(auth.RoleDriver), h.command(ride.CommandFinishTrip))
		rides.POST("/:id/cancel", parties, h.command(ride.CommandCancel))
	}
}

// QuoteFare handles POST /api/v1/rides/quote.
func (h *RideHandler) QuoteFare(c *gin.Context) {
	var req application.FareQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.rides.GetFareQuote(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CreateRide handles POST /api/v1/rides.
func (h *RideHandler) CreateRide(c *gin.Context) {
	userID, _, ok := caller(c)
	if !ok {
		return
	}

	var req application.CreateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.rides.CreateRide(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListRides handles GET /api/v1/rides. Riders see what they booked,
// drivers what they served, admins everything.
func (h *RideHandler) ListRides(c *gin.Context) {
	userID, role, ok := caller(c)
	if !ok {
		return
	}

	page, limit := parsePagination(c)
	ctx := c.Request.Context()

	switch role {
	case auth.RoleRider:
		result, err := h.rides.GetRiderRides(ctx, userID, page, limit)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)

	case auth.RoleDriver:
		result, err := h.rides.GetDriverRides(ctx, userID, page, limit)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)

	default:
		items, total, err := h.rides.ListAllRides(ctx, page, limit)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Paginated(c, items, total, page, limit)
	}
}

// ListPending handles GET /api/v1/rides/pending.
func (h *RideHandler) ListPending(c *gin.Context) {
	page, limit := parsePagination(c)

	result, err := h.rides.ListPendingRides(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// GetRide handles GET /api/v1/rides/:id.
func (h *RideHandler) GetRide(c *gin.Context) {
	rideID, ok := pathID(c, "ride")
	if !ok {
		return
	}
	userID, role, ok := caller(c)
	if !ok {
		return
	}

	result, err := h.rides.GetRide(c.Request.Context(), rideID, userID, role)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetRideByCode handles GET /api/v1/rides/code/:code.
func (h *RideHandler) GetRideByCode(c *gin.Context) {
	userID, role, ok := caller(c)
	if !ok {
		return
	}

	result, err := h.rides.GetRideByCode(c.Request.Context(), c.Param("code"), userID, role)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetTrail handles GET /api/v1/rides/:id/trail.
func (h *RideHandler) GetTrail(c *gin.Context) {
	rideID, ok := pathID(c, "ride")
	if !ok {
		return
	}
	userID, role, ok := caller(c)
	if !ok {
		return
	}

	trail, err := h.locations.RideTrail(c.Request.Context(), rideID, userID, role)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, trail)
}

// SubmitTransition handles POST /api/v1/rides/:id/transitions.
func (h *RideHandler) SubmitTransition(c *gin.Context) {
	var req application.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	h.transition(c, req)
}

// command returns a handler for a fixed command. The body is optional and
// may carry a reason or the driver's position.
func (h *RideHandler) command(cmd ride.Command) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body commandBody
		if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			response.BadRequest(c, err.Error())
			return
		}
		h.transition(c, application.TransitionRequest{
			Command: string(cmd),
			Reason:  body.Reason,
			Lat:     body.Lat,
			Lng:     body.Lng,
		})
	}
}

// commandBody is the optional payload of a fixed-command route.
type commandBody struct {
	Reason string   `json:"reason"`
	Lat    *float64 `json:"lat"`
	Lng    *float64 `json:"lng"`
}

func (h *RideHandler) transition(c *gin.Context, req application.TransitionRequest) {
	rideID, ok := pathID(c, "ride")
	if !ok {
		return
	}
	userID, role, ok := caller(c)
	if !ok {
		return
	}

	result, err := h.rides.SubmitTransition(c.Request.Context(), rideID, userID, ride.Role(role), req)
	if err != nil {
		transitionError(c, err)
		return
	}

	response.Success(c, result)
}

// transitionError adds the block reason to CannotCancel responses so the
// client can explain why the ride can no longer be cancelled.
func transitionError(c *gin.Context, err error) {
	reason, ok := ride.CancelBlockReasonOf(err)
	if !ok {
		response.Error(c, err)
		return
	}
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, response.Envelope{
		Data:  gin.H{"reason": reason},
		Error: &response.ErrorBody{Code: ride.CodeCannotCancel, Message: reason.Message()},
	})
}
