package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"partsagent/internal/services"
)

// SessionHandler handles conversation session management requests
type SessionHandler struct {
	sessionService *services.SessionService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessionService *services.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// Create starts a new conversation session
// POST /api/sessions/new
func (h *SessionHandler) Create(c *fiber.Ctx) error {
	sessionID, err := h.sessionService.Create()
	if err != nil {
		log.Printf("❌ [SESSION] Failed to create session: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create session",
		})
	}

	return c.JSON(fiber.Map{
		"session_id": sessionID,
	})
}

// List returns all sessions, most recently updated first
// GET /api/sessions
func (h *SessionHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)

	sessions, err := h.sessionService.List(limit)
	if err != nil {
		log.Printf("❌ [SESSION] Failed to list sessions: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list sessions",
		})
	}

	return c.JSON(fiber.Map{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// Get returns metadata for a single session
// GET /api/sessions/:id
func (h *SessionHandler) Get(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Session ID is required",
		})
	}

	session, err := h.sessionService.Get(sessionID)
	if err != nil {
		log.Printf("❌ [SESSION] Failed to get session %s: %v", sessionID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get session",
		})
	}
	if session == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Session not found",
		})
	}

	return c.JSON(session)
}

// History returns the full message history for a session
// GET /api/sessions/:id/history
func (h *SessionHandler) History(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Session ID is required",
		})
	}

	session, err := h.sessionService.Get(sessionID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get session",
		})
	}
	if session == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Session not found",
		})
	}

	messages, err := h.sessionService.History(sessionID)
	if err != nil {
		log.Printf("❌ [SESSION] Failed to load history for %s: %v", sessionID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load history",
		})
	}

	return c.JSON(fiber.Map{
		"session_id": sessionID,
		"title":      session.Title,
		"messages":   messages,
	})
}

// Clear removes all messages from a session but keeps the session itself
// POST /api/sessions/:id/clear
func (h *SessionHandler) Clear(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Session ID is required",
		})
	}

	if err := h.sessionService.Clear(sessionID); err != nil {
		log.Printf("❌ [SESSION] Failed to clear session %s: %v", sessionID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to clear session",
		})
	}

	return c.JSON(fiber.Map{
		"session_id": sessionID,
		"cleared":    true,
	})
}

// Delete removes a session and all its messages
// DELETE /api/sessions/:id
func (h *SessionHandler) Delete(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Session ID is required",
		})
	}

	if err := h.sessionService.Delete(sessionID); err != nil {
		log.Printf("❌ [SESSION] Failed to delete session %s: %v", sessionID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete session",
		})
	}

	return c.JSON(fiber.Map{
		"session_id": sessionID,
		"deleted":    true,
	})
}
