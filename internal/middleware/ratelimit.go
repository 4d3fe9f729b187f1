package middleware

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	// Global limits (per IP) across all API endpoints
	GlobalAPIMax        int
	GlobalAPIExpiration time.Duration

	// Chat turn limits (per IP). Each turn can trigger several
	// headless-browser lookups, so this stays well below the global cap.
	ChatMax        int
	ChatExpiration time.Duration

	// Direct scrape endpoint limits (per IP)
	ScrapeMax        int
	ScrapeExpiration time.Duration
}

// DefaultRateLimitConfig returns production-safe defaults
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		// Global: 200/min is generous for normal interactive use
		GlobalAPIMax:        200,
		GlobalAPIExpiration: 1 * time.Minute,

		// Chat: 20/min. A turn takes seconds anyway.
		ChatMax:        20,
		ChatExpiration: 1 * time.Minute,

		// Scrape: 30/min (bandwidth and upstream courtesy)
		ScrapeMax:        30,
		ScrapeExpiration: 1 * time.Minute,
	}
}

// LoadRateLimitConfig loads config from environment variables with defaults
func LoadRateLimitConfig() *RateLimitConfig {
	config := DefaultRateLimitConfig()

	if v := os.Getenv("RATE_LIMIT_GLOBAL_API"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.GlobalAPIMax = n
		}
	}

	if v := os.Getenv("RATE_LIMIT_CHAT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.ChatMax = n
		}
	}

	if v := os.Getenv("RATE_LIMIT_SCRAPE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.ScrapeMax = n
		}
	}

	// Development mode: more lenient limits
	if os.Getenv("ENVIRONMENT") == "development" {
		config.GlobalAPIMax = 1000
		config.ChatMax = 200
		config.ScrapeMax = 200
		log.Println("⚠️  [RATE-LIMIT] Development mode: using relaxed rate limits")
	}

	return config
}

// GlobalAPIRateLimiter creates a rate limiter for all API requests
func GlobalAPIRateLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.GlobalAPIMax,
		Expiration: config.GlobalAPIExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "global:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("🚫 [RATE-LIMIT] Global limit reached for IP: %s", c.IP())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many requests. Please slow down.",
				"retry_after": int(config.GlobalAPIExpiration.Seconds()),
			})
		},
		SkipFailedRequests:     false,
		SkipSuccessfulRequests: false,
	})
}

// ChatRateLimiter throttles the chat turn endpoint
func ChatRateLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.ChatMax,
		Expiration: config.ChatExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "chat:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("⚠️  [RATE-LIMIT] Chat limit reached for IP: %s", c.IP())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many chat requests. Please wait before sending another message.",
				"retry_after": int(config.ChatExpiration.Seconds()),
			})
		},
	})
}

// ScrapeRateLimiter throttles the direct scrape endpoint
func ScrapeRateLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.ScrapeMax,
		Expiration: config.ScrapeExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "scrape:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("⚠️  [RATE-LIMIT] Scrape limit reached for IP: %s on %s", c.IP(), c.Path())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many scrape requests to this endpoint.",
				"retry_after": int(config.ScrapeExpiration.Seconds()),
			})
		},
	})
}
