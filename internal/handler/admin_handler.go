package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/application"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/auth"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/middleware"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/response"
)

// AdminHandler handles admin HTTP requests for rides and drivers.
type AdminHandler struct {
	rides   *application.RideService
	drivers *application.DriverService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(rides *application.RideService, drivers *application.DriverService) *AdminHandler {
	return &AdminHandler{rides: rides, drivers: drivers}
}

// RegisterRoutes registers admin routes.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	adminRole := middleware.RequireRole(auth.RoleAdmin)

	admin := r.Group("/api/v1/admin")
	admin.Use(authMW, adminRole)
	{
		admin.GET("/rides", h.ListRides)
		admin.GET("/stats/rides", h.RideStats)
		admin.GET("/drivers", h.ListDrivers)
		admin.POST("/drivers/:id/suspend", h.setSuspended(true))
		admin.POST("/drivers/:id/reactivate", h.setSuspended(false))
	}
}

// ListRides handles GET /api/v1/admin/rides.
func (h *AdminHandler) ListRides(c *gin.Context) {
	page, limit := parsePagination(c)

	rides, total, err := h.rides.ListAllRides(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, rides, total, page, limit)
}

// RideStats handles GET /api/v1/admin/stats/rides.
func (h *AdminHandler) RideStats(c *gin.Context) {
	stats, err := h.rides.GetRideStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}

// ListDrivers handles GET /api/v1/admin/drivers.
func (h *AdminHandler) ListDrivers(c *gin.Context) {
	page, limit := parsePagination(c)

	result, err := h.drivers.ListDrivers(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

func (h *AdminHandler) setSuspended(suspended bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID, ok := pathID(c, "driver")
		if !ok {
			return
		}

		result, err := h.drivers.SetSuspended(c.Request.Context(), driverID, suspended)
		if err != nil {
			response.Error(c, err)
			return
		}

		response.Success(c, result)
	}
}
