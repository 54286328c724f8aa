package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/application"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/auth"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/middleware"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/response"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/domain/ride"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/geo"
)

const (
	defaultNearbyRadiusKm = 3.0
	defaultNearbyLimit    = 10
	maxNearbyLimit        = 50
)

// ReportLocationRequest is a driver's own position report.
type ReportLocationRequest struct {
	Lat      float64 `json:"lat" binding:"required"`
	Lng      float64 `json:"lng" binding:"required"`
	Heading  float64 `json:"heading"`
	SpeedKmh float64 `json:"speed_kmh"`
}

// DriverHandler handles HTTP requests for driver profiles and positions.
type DriverHandler struct {
	drivers   *application.DriverService
	locations *application.LocationService
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(drivers *application.DriverService, locations *application.LocationService) *DriverHandler {
	return &DriverHandler{drivers: drivers, locations: locations}
}

// RegisterRoutes registers all driver routes on the given router group.
func (h *DriverHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	driverOnly := middleware.RequireRole(auth.RoleDriver)

	drivers := r.Group("/api/v1/drivers")
	drivers.Use(authMW)
	{
		drivers.POST("", driverOnly, h.Register)
		drivers.GET("/me", driverOnly, h.GetMe)
		drivers.PUT("/me", driverOnly, h.UpdateMe)
		drivers.POST("/me/location", driverOnly, h.ReportLocation)
		drivers.GET("/nearby", middleware.RequireRole(auth.RoleRider, auth.RoleAdmin), h.Nearby)
		drivers.GET("/:id", h.GetCandidate)
	}
}

// Register handles POST /api/v1/drivers. The profile id is the caller's user id.
func (h *DriverHandler) Register(c *gin.Context) {
	userID, _, ok := caller(c)
	if !ok {
		return
	}

	var req application.RegisterDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.drivers.RegisterDriver(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// GetMe handles GET /api/v1/drivers/me.
func (h *DriverHandler) GetMe(c *gin.Context) {
	userID, _, ok := caller(c)
	if !ok {
		return
	}

	result, err := h.drivers.GetDriver(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// UpdateMe handles PUT /api/v1/drivers/me.
func (h *DriverHandler) UpdateMe(c *gin.Context) {
	userID, _, ok := caller(c)
	if !ok {
		return
	}

	var req application.UpdateDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.drivers.UpdateDriver(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ReportLocation handles POST /api/v1/drivers/me/location.
func (h *DriverHandler) ReportLocation(c *gin.Context) {
	userID, _, ok := caller(c)
	if !ok {
		return
	}

	var req ReportLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.locations.ReportPosition(c.Request.Context(), userID, req.Lat, req.Lng, req.Heading, req.SpeedKmh); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"accepted": true})
}

// Nearby handles GET /api/v1/drivers/nearby?lat=&lng=&vehicle_class=&radius_km=&limit=.
func (h *DriverHandler) Nearby(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		response.BadRequest(c, "lat and lng are required")
		return
	}

	radius := defaultNearbyRadiusKm
	if v := c.Query("radius_km"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			response.BadRequest(c, "invalid radius_km")
			return
		}
		radius = r
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultNearbyLimit)))
	if limit < 1 || limit > maxNearbyLimit {
		limit = defaultNearbyLimit
	}

	class := ride.VehicleClass(c.Query("vehicle_class"))
	if class != "" && !class.IsValid() {
		response.BadRequest(c, "invalid vehicle_class")
		return
	}

	result, err := h.drivers.NearbyDrivers(c.Request.Context(), geo.Coordinate{Lat: lat, Lng: lng}, class, radius, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetCandidate handles GET /api/v1/drivers/:id.
func (h *DriverHandler) GetCandidate(c *gin.Context) {
	driverID, ok := pathID(c, "driver")
	if !ok {
		return
	}

	result, err := h.drivers.GetDriverCandidate(c.Request.Context(), driverID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
