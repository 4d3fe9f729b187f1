package handlers

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"partsagent/internal/models"
	"partsagent/internal/services"
)

// ChatHandler handles conversational chat requests
type ChatHandler struct {
	chatService *services.ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService *services.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Handle processes a single chat turn
// POST /api/chat
func (h *ChatHandler) Handle(c *fiber.Ctx) error {
	var req models.ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if strings.TrimSpace(req.Message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Message is required",
		})
	}

	resp, err := h.chatService.Process(c.Context(), req.SessionID, req.Message)
	if err != nil {
		log.Printf("❌ [CHAT] Failed to process message: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process message",
		})
	}

	return c.JSON(resp)
}
