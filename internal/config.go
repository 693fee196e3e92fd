package internal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	Port     int
	LogLevel string

	// AI Provider Configuration
	AIProvider        string // "gemini", "anthropic" or "mock"
	GeminiAPIKey      string
	GeminiBaseURL     string
	AnthropicAPIKey   string
	AnthropicBaseURL  string
	AIModelCandidates []string // Overrides the provider's default candidate list
	AIRequestTimeout  time.Duration
	AIMaxOutputTokens int

	// Upload handling
	MaxUploadSize     int64 // Bytes
	MaxImageDimension int   // Longest edge in pixels after normalisation

	// In-memory sessions
	SessionTTL           time.Duration
	SessionSweepInterval time.Duration
	SecureCookies        bool // Set the Secure flag on session and CSRF cookies

	// Optional directory to load HTML templates from instead of the embedded set.
	// Useful in development to edit templates without rebuilding.
	TemplatesDir string

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		// AI provider defaults
		AIProvider:        strings.ToLower(getEnv("AI_PROVIDER", "gemini")),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiBaseURL:     getEnv("GEMINI_BASE_URL", ""),
		AnthropicAPIKey:   getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicBaseURL:  getEnv("ANTHROPIC_BASE_URL", ""),
		AIModelCandidates: getEnvList("AI_MODEL_CANDIDATES"),
		AIRequestTimeout:  getEnvDuration("AI_REQUEST_TIMEOUT", 60*time.Second),
		AIMaxOutputTokens: getEnvInt("AI_MAX_OUTPUT_TOKENS", 4096),

		MaxUploadSize:     int64(getEnvInt("MAX_UPLOAD_SIZE", 20*1024*1024)),
		MaxImageDimension: getEnvInt("MAX_IMAGE_DIMENSION", 2048),

		SessionTTL:           getEnvDuration("SESSION_TTL", 12*time.Hour),
		SessionSweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", 10*time.Minute),

		TemplatesDir: getEnv("TEMPLATES_DIR", ""),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	// Validate AI provider configuration. A missing API key is not fatal:
	// inspectors can enter one interactively per session.
	switch cfg.AIProvider {
	case "gemini", "anthropic", "mock":
	default:
		return nil, fmt.Errorf("AI_PROVIDER must be one of 'gemini', 'anthropic' or 'mock', got: %s", cfg.AIProvider)
	}

	cfg.SecureCookies = getEnvBool("SECURE_COOKIES", cfg.Env == "production")

	if cfg.AIRequestTimeout <= 0 {
		return nil, fmt.Errorf("AI_REQUEST_TIMEOUT must be positive, got: %s", cfg.AIRequestTimeout)
	}
	if cfg.MaxUploadSize <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_SIZE must be positive, got: %d", cfg.MaxUploadSize)
	}
	if cfg.MaxImageDimension < 64 {
		return nil, fmt.Errorf("MAX_IMAGE_DIMENSION must be at least 64, got: %d", cfg.MaxImageDimension)
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL must be positive, got: %s", cfg.SessionTTL)
	}
	if cfg.SessionSweepInterval <= 0 {
		return nil, fmt.Errorf("SESSION_SWEEP_INTERVAL must be positive, got: %s", cfg.SessionSweepInterval)
	}

	return cfg, nil
}

// APIKey returns the configured credential for the selected provider.
func (c *Config) APIKey() string {
	switch c.AIProvider {
	case "gemini":
		return c.GeminiAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	default:
		return ""
	}
}

// RequiresAPIKey reports whether the selected provider needs a credential.
func (c *Config) RequiresAPIKey() bool {
	return c.AIProvider != "mock"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList parses a comma-separated variable, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
