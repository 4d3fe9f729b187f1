package handlers

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"partsagent/internal/retrieval"
)

// ScrapeHandler exposes ad-hoc retrieval for warming the store and debugging
type ScrapeHandler struct {
	retrievalService *retrieval.Service
}

// NewScrapeHandler creates a new scrape handler
func NewScrapeHandler(retrievalService *retrieval.Service) *ScrapeHandler {
	return &ScrapeHandler{retrievalService: retrievalService}
}

type scrapeRequest struct {
	PartNumbers []string `json:"part_numbers"`
	URL         string   `json:"url"`
	MaxLength   int      `json:"max_length"`
}

// Handle scrapes the given part numbers, or extracts one arbitrary page
// POST /api/scrape
func (h *ScrapeHandler) Handle(c *fiber.Ctx) error {
	var req scrapeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if len(req.PartNumbers) > 0 {
		return h.scrapeParts(c, req.PartNumbers)
	}

	if strings.TrimSpace(req.URL) != "" {
		return h.scrapePage(c, req.URL, req.MaxLength)
	}

	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "Either part_numbers or url is required",
	})
}

func (h *ScrapeHandler) scrapeParts(c *fiber.Ctx, partNumbers []string) error {
	scraped := 0
	misses := []string{}
	for _, pn := range partNumbers {
		pn = strings.TrimSpace(pn)
		if pn == "" {
			continue
		}
		record, err := h.retrievalService.ScrapeProduct(c.Context(), c.IP(), pn)
		if err != nil {
			log.Printf("⚠️  [SCRAPE] Failed to scrape part %s: %v", pn, err)
			misses = append(misses, pn)
			continue
		}
		if record == nil {
			misses = append(misses, pn)
			continue
		}
		scraped++
	}

	return c.JSON(fiber.Map{
		"documents_scraped": scraped,
		"not_found":         misses,
	})
}

func (h *ScrapeHandler) scrapePage(c *fiber.Ctx, pageURL string, maxLength int) error {
	content, err := h.retrievalService.ScrapePage(c.Context(), pageURL, maxLength, c.IP())
	if err != nil {
		log.Printf("⚠️  [SCRAPE] Failed to scrape %s: %v", pageURL, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"url":     pageURL,
		"content": content,
	})
}
