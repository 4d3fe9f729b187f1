package handlers

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"partsagent/internal/models"
	"partsagent/internal/services"
)

// FeedbackHandler handles answer rating requests
type FeedbackHandler struct {
	feedbackService *services.FeedbackService
}

// NewFeedbackHandler creates a new feedback handler
func NewFeedbackHandler(feedbackService *services.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedbackService: feedbackService}
}

// Record stores a thumbs up/down rating for an assistant answer
// POST /api/feedback
func (h *FeedbackHandler) Record(c *fiber.Ctx) error {
	var req models.FeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if strings.TrimSpace(req.SessionID) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Session ID is required",
		})
	}

	if err := h.feedbackService.Record(req.SessionID, req.MessageContent, req.Rating); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"recorded": true,
	})
}

// Stats returns aggregate feedback counts, optionally scoped to one session
// GET /api/feedback/stats?session_id=...
func (h *FeedbackHandler) Stats(c *fiber.Ctx) error {
	sessionID := c.Query("session_id")

	stats, err := h.feedbackService.Stats(sessionID)
	if err != nil {
		log.Printf("❌ [FEEDBACK] Failed to compute stats: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compute feedback stats",
		})
	}

	return c.JSON(stats)
}
