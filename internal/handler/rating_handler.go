package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/application"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/auth"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/middleware"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/response"
)

// RatingHandler handles HTTP requests for post-ride ratings.
type RatingHandler struct {
	service *application.RatingService
}

// NewRatingHandler creates a new RatingHandler.
func NewRatingHandler(service *application.RatingService) *RatingHandler {
	return &RatingHandler{service: service}
}

// RegisterRoutes registers rating routes under rides and drivers.
func (h *RatingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)

	rides := r.Group("/api/v1/rides")
	rides.Use(authMW)
	{
		rides.POST("/:id/ratings", middleware.RequireRole(auth.RoleRider, auth.RoleDriver), h.RateRide)
		rides.GET("/:id/ratings", h.GetRideRatings)
	}

	drivers := r.Group("/api/v1/drivers")
	drivers.Use(authMW)
	drivers.GET("/:id/ratings", h.GetDriverRatings)
}

// RateRide handles POST /api/v1/rides/:id/ratings.
func (h *RatingHandler) RateRide(c *gin.Context) {
	rideID, ok := pathID(c, "ride")
	if !ok {
		return
	}
	userID, _, ok := caller(c)
	if !ok {
		return
	}

	var req application.RateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.RateRide(c.Request.Context(), rideID, userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// GetRideRatings handles GET /api/v1/rides/:id/ratings.
func (h *RatingHandler) GetRideRatings(c *gin.Context) {
	rideID, ok := pathID(c, "ride")
	if !ok {
		return
	}
	userID, role, ok := caller(c)
	if !ok {
		return
	}

	result, err := h.service.GetRideRatings(c.Request.Context(), rideID, userID, role)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetDriverRatings handles GET /api/v1/drivers/:id/ratings.
func (h *RatingHandler) GetDriverRatings(c *gin.Context) {
	driverID, ok := pathID(c, "driver")
	if !ok {
		return
	}
	page, limit := parsePagination(c)

	result, err := h.service.GetDriverRatings(c.Request.Context(), driverID, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}
