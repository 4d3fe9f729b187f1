package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"partsagent/internal/services"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	sessionService *services.SessionService
	startTime      time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(sessionService *services.SessionService) *HealthHandler {
	return &HealthHandler{
		sessionService: sessionService,
		startTime:      time.Now(),
	}
}

// Handle returns service health status
// GET /health and GET /api/health
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	sessionCount, err := h.sessionService.Count()
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":  "unhealthy",
			"service": "parts-agent",
			"error":   "database unavailable",
		})
	}

	return c.JSON(fiber.Map{
		"status":          "healthy",
		"service":         "parts-agent",
		"active_sessions": sessionCount,
		"uptime_seconds":  int(time.Since(h.startTime).Seconds()),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}
