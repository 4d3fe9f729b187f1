package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port         string
	DatabasePath string

	// Reasoning model (OpenAI-compatible chat completion endpoint)
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string
	LLMTimeout time.Duration

	// PartSelect retrieval
	PartSelectBaseURL string
	ScrapeTimeout     time.Duration

	// Orchestration limits
	ContextWindowSize int // messages of history sent to the model per turn
	MaxToolRounds     int // retrieval rounds per user turn

	// Scope classification policy
	ScopeUseLLM   bool // classify via the model instead of keyword heuristics
	ScopeFailOpen bool // on classifier failure, treat the query as in-scope

	// Retention
	SessionRetentionDays int // 0 disables the cleanup job
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8000"),
		DatabasePath: getEnv("DATABASE_PATH", "data/conversations.db"),

		LLMBaseURL: getEnv("LLM_BASE_URL", "https://api.deepseek.com"),
		LLMAPIKey:  getEnv("LLM_API_KEY", ""),
		LLMModel:   getEnv("LLM_MODEL", "deepseek-chat"),
		LLMTimeout: getDurationEnv("LLM_TIMEOUT_SECONDS", 120*time.Second),

		PartSelectBaseURL: getEnv("PARTSELECT_BASE_URL", "https://www.partselect.com"),
		ScrapeTimeout:     getDurationEnv("SCRAPE_TIMEOUT_SECONDS", 90*time.Second),

		ContextWindowSize: getIntEnv("CONTEXT_WINDOW_SIZE", 5),
		MaxToolRounds:     getIntEnv("MAX_TOOL_ROUNDS", 3),

		ScopeUseLLM:   getBoolEnv("SCOPE_USE_LLM", false),
		ScopeFailOpen: getBoolEnv("SCOPE_FAIL_OPEN", true),

		SessionRetentionDays: getIntEnv("SESSION_RETENTION_DAYS", 0),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationEnv reads a duration expressed as whole seconds (e.g. "90").
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil && parsed > 0 {
			return time.Duration(parsed) * time.Second
		}
	}
	return defaultValue
}
