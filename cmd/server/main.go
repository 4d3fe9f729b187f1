package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"partsagent/internal/config"
	"partsagent/internal/database"
	"partsagent/internal/handlers"
	"partsagent/internal/jobs"
	"partsagent/internal/logging"
	"partsagent/internal/middleware"
	"partsagent/internal/retrieval"
	"partsagent/internal/services"
	"partsagent/internal/tools"
)

func main() {
	logging.Init()

	// Load .env file if present
	if err := godotenv.Load(); err != nil {
		log.Println("ℹ️  No .env file found, using environment variables")
	}

	cfg := config.Load()

	// Database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("❌ Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		log.Fatalf("❌ Failed to initialize database schema: %v", err)
	}
	log.Printf("✅ Database ready at %s", cfg.DatabasePath)

	// Retrieval layer and tool registry
	retrievalService := retrieval.NewService(cfg.PartSelectBaseURL, cfg.ScrapeTimeout)

	registry := tools.NewRegistry()
	registry.Register(tools.NewProductTool(retrievalService))
	registry.Register(tools.NewModelTool(retrievalService))
	log.Printf("✅ Tool registry initialized with %d tools", registry.Count())

	// Reasoning model client
	if cfg.LLMAPIKey == "" {
		log.Println("⚠️  LLM_API_KEY not set, chat turns will fail")
	}
	llmClient := services.NewHTTPCompletionClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTimeout)

	// Services
	scopeClassifier := services.NewScopeClassifier(cfg.ScopeUseLLM, cfg.ScopeFailOpen, llmClient)
	sessionService := services.NewSessionService(db, cfg.ContextWindowSize)
	feedbackService := services.NewFeedbackService(db)
	chatService := services.NewChatService(sessionService, feedbackService, scopeClassifier,
		registry, llmClient, cfg.MaxToolRounds)

	// Background jobs
	jobScheduler := jobs.NewJobScheduler()
	if cfg.SessionRetentionDays > 0 {
		jobScheduler.Register("retention_cleanup",
			jobs.NewRetentionCleanupJob(sessionService, cfg.SessionRetentionDays))
		log.Printf("🕐 Background jobs: retention cleanup (daily 2 AM, %d day window)", cfg.SessionRetentionDays)
	}
	jobScheduler.Start()

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:        "PartsAgent v1.0",
		ReadTimeout:    300 * time.Second, // agent turns can chain several page lookups
		WriteTimeout:   300 * time.Second,
		IdleTimeout:    300 * time.Second,
		BodyLimit:      1 * 1024 * 1024, // 1MB is plenty for chat payloads
		ReadBufferSize: 16384,
		UnescapePath:   true,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prometheus := fiberprometheus.New("partsagent")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	// Rate limiting
	rateLimitConfig := middleware.LoadRateLimitConfig()
	log.Printf("🛡️  [RATE-LIMIT] Loaded config: Global=%d/min, Chat=%d/min, Scrape=%d/min",
		rateLimitConfig.GlobalAPIMax,
		rateLimitConfig.ChatMax,
		rateLimitConfig.ScrapeMax,
	)

	// CORS configuration with environment-based origins
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:5173,http://localhost:3000"
		log.Println("⚠️  ALLOWED_ORIGINS not set, using development defaults")
	}

	// Fiber's CORS middleware does not allow AllowCredentials with wildcard origins.
	allowCredentials := allowedOrigins != "*"

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: allowCredentials,
	}))
	log.Printf("🔒 [SECURITY] CORS allowed origins: %s", allowedOrigins)

	app.Use("/api", middleware.GlobalAPIRateLimiter(rateLimitConfig))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(sessionService)
	chatHandler := handlers.NewChatHandler(chatService)
	sessionHandler := handlers.NewSessionHandler(sessionService)
	feedbackHandler := handlers.NewFeedbackHandler(feedbackService)
	scrapeHandler := handlers.NewScrapeHandler(retrievalService)

	// Routes
	app.Get("/health", healthHandler.Handle)
	app.Get("/api/health", healthHandler.Handle)

	app.Post("/api/chat", middleware.ChatRateLimiter(rateLimitConfig), chatHandler.Handle)

	app.Post("/api/sessions/new", sessionHandler.Create)
	app.Get("/api/sessions", sessionHandler.List)
	app.Get("/api/sessions/:id", sessionHandler.Get)
	app.Get("/api/sessions/:id/history", sessionHandler.History)
	app.Post("/api/sessions/:id/clear", sessionHandler.Clear)
	app.Delete("/api/sessions/:id", sessionHandler.Delete)

	app.Post("/api/feedback", feedbackHandler.Record)
	app.Get("/api/feedback/stats", feedbackHandler.Stats)

	app.Post("/api/scrape", middleware.ScrapeRateLimiter(rateLimitConfig), scrapeHandler.Handle)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		jobScheduler.Stop()

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	log.Printf("🚀 PartsAgent listening on :%s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
