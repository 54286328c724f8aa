package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/middleware"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/common/response"
	"github.com/Kilat-Pet-Delivery/service-ride/internal/domain/ride"
)

func init() {
	response.RegisterStatus(ride.CodeInvalidTransition, http.StatusConflict)
	response.RegisterStatus(ride.CodeCannotCancel, http.StatusUnprocessableEntity)
}

// caller returns the authenticated user and role, writing a 401 when absent.
func caller(c *gin.Context) (uuid.UUID, string, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return uuid.Nil, "", false
	}
	role, ok := middleware.GetUserRole(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return uuid.Nil, "", false
	}
	return userID, role, true
}

// pathID parses the :id path parameter, writing a 400 naming what when invalid.
func pathID(c *gin.Context, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid "+what+" ID")
		return uuid.Nil, false
	}
	return id, true
}

// parsePagination extracts page and limit query parameters with defaults.
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
