package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Checker reports whether a dependency is reachable.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// Handler serves liveness and readiness endpoints.
type Handler struct {
	db       *gorm.DB
	service  string
	checkers []Checker
}

// NewHandler creates a Handler. db may be nil when the service runs on
// in-memory storage.
func NewHandler(db *gorm.DB, service string, checkers ...Checker) *Handler {
	return &Handler{db: db, service: service, checkers: checkers}
}

// RegisterRoutes mounts /health and /ready.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Liveness)
	r.GET("/ready", h.Readiness)
}

// Liveness always succeeds while the process serves HTTP.
func (h *Handler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": h.service})
}

// Readiness pings the database and every registered checker.
func (h *Handler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	ready := true

	if h.db != nil {
		if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			checks["postgres"] = "down"
			ready = false
		} else {
			checks["postgres"] = "up"
		}
	}

	for _, chk := range h.checkers {
		if err := chk.Check(ctx); err != nil {
			checks[chk.Name()] = "down"
			ready = false
			continue
		}
		checks[chk.Name()] = "up"
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"service": h.service, "ready": ready, "checks": checks})
}
