// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/psychodetective/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	// Server configuration
	Server ServerConfig

	// AI orchestration configuration
	AI AIConfig

	// Input processing configuration
	Processing ProcessingConfig

	// Result persistence configuration
	Storage StorageConfig

	// Result cache configuration
	Cache CacheConfig

	// Per-user request limits
	RateLimit RateLimitConfig

	// Profile holds per-kind budgets, prompts and fallbacks.
	Profile *Profile
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Port is the HTTP port to listen on.
	Port string

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeout time.Duration

	// Development enables console logging and gin debug mode.
	Development bool
}

// AIProvider represents an AI vendor adapter.
type AIProvider string

const (
	// AIProviderAnthropic uses the Anthropic Messages API.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderOpenAI uses an OpenAI-compatible API such as OpenRouter.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderGemini uses Google Gemini API.
	AIProviderGemini AIProvider = "gemini"

	// AIProviderNone disables the adapter slot.
	AIProviderNone AIProvider = ""
)

// ProviderConfig contains settings for one adapter.
type ProviderConfig struct {
	// Provider specifies which vendor to use.
	Provider AIProvider

	// APIKey is the authentication key for the vendor.
	APIKey string

	// BaseURL is the base URL for the API (optional, provider-specific defaults).
	BaseURL string

	// Model is the model identifier.
	Model string

	// Timeout bounds one call to this adapter.
	Timeout time.Duration

	// MaxResponseBytes caps the size of a response body.
	MaxResponseBytes int64
}

// Enabled reports whether the adapter slot is configured.
func (p ProviderConfig) Enabled() bool {
	return p.Provider != AIProviderNone
}

// AIConfig contains AI orchestration settings.
type AIConfig struct {
	// Primary is the adapter tried first, with retries.
	Primary ProviderConfig

	// Secondary is tried once after the primary is exhausted. Optional.
	Secondary ProviderConfig

	// RetryAttempts is the total number of primary attempts.
	RetryAttempts int

	// RetryBaseDelay is the delay before the first retry.
	RetryBaseDelay time.Duration

	// RetryMaxDelay caps a single backoff delay.
	RetryMaxDelay time.Duration

	// RateLimitMultiplier stretches backoff after a rate-limit response.
	RateLimitMultiplier float64

	// MaxConcurrentRequests is the admission capacity for provider calls.
	MaxConcurrentRequests int

	// InvocationDeadline applies when the caller sets no deadline.
	InvocationDeadline time.Duration

	// ResponseLanguage is the language free-text fields are written in.
	ResponseLanguage string

	// ProfileFile is an optional YAML file with per-kind settings.
	ProfileFile string

	// MockMode enables canned responses without API calls.
	MockMode bool
}

// ProcessingConfig contains input processing settings.
type ProcessingConfig struct {
	// MinTextLength is the minimum accepted text length in characters.
	MinTextLength int

	// MaxTextLength is the maximum accepted text length in characters.
	MaxTextLength int

	// EnableSafetyRules enables crisis keyword detection.
	EnableSafetyRules bool
}

// StorageConfig contains result persistence settings.
type StorageConfig struct {
	// DatabasePath is the SQLite file path. Empty disables persistence.
	DatabasePath string
}

// CacheConfig contains result cache settings.
type CacheConfig struct {
	// RedisAddr is the Redis address. Empty disables caching.
	RedisAddr string

	// RedisPassword is the Redis password.
	RedisPassword string

	// RedisDB is the Redis database number.
	RedisDB int

	// TTL is how long a result stays cached.
	TTL time.Duration
}

// RateLimitConfig contains per-user request limits.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained per-user rate. Zero disables limiting.
	RequestsPerSecond float64

	// Burst is the per-user burst size.
	Burst int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnvOrDefault("PORT", "8080"),
			ReadTimeout:  getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDurationOrDefault("SERVER_WRITE_TIMEOUT", 90*time.Second),
			Development:  getEnvOrDefault("APP_ENV", "development") == "development",
		},
		AI: AIConfig{
			Primary:               loadProvider("AI_PRIMARY", AIProviderAnthropic),
			Secondary:             loadProvider("AI_SECONDARY", AIProviderNone),
			RetryAttempts:         getIntOrDefault("AI_RETRY_ATTEMPTS", 3),
			RetryBaseDelay:        getDurationOrDefault("AI_RETRY_BASE_DELAY", time.Second),
			RetryMaxDelay:         getDurationOrDefault("AI_RETRY_MAX_DELAY", 10*time.Second),
			RateLimitMultiplier:   getFloatOrDefault("AI_RATE_LIMIT_MULTIPLIER", 2),
			MaxConcurrentRequests: getIntOrDefault("AI_MAX_CONCURRENT_REQUESTS", 10),
			InvocationDeadline:    getDurationOrDefault("AI_INVOCATION_DEADLINE", 60*time.Second),
			ResponseLanguage:      getEnvOrDefault("AI_RESPONSE_LANGUAGE", "Russian"),
			ProfileFile:           os.Getenv("AI_PROFILE_FILE"),
			MockMode:              getBoolOrDefault("AI_MOCK_MODE", false),
		},
		Processing: ProcessingConfig{
			MinTextLength:     getIntOrDefault("MIN_TEXT_LENGTH", 10),
			MaxTextLength:     getIntOrDefault("MAX_TEXT_LENGTH", 4000),
			EnableSafetyRules: getBoolOrDefault("ENABLE_SAFETY_RULES", true),
		},
		Storage: StorageConfig{
			DatabasePath: getEnvOrDefault("DATABASE_PATH", "data/analyses.db"),
		},
		Cache: CacheConfig{
			RedisAddr:     os.Getenv("REDIS_ADDR"),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
			RedisDB:       getIntOrDefault("REDIS_DB", 0),
			TTL:           getDurationOrDefault("ANALYSIS_CACHE_TTL", time.Hour),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getFloatOrDefault("USER_RATE_LIMIT_RPS", 0.5),
			Burst:             getIntOrDefault("USER_RATE_LIMIT_BURST", 3),
		},
	}

	profile := DefaultProfile()
	if cfg.AI.ProfileFile != "" {
		loaded, err := LoadProfile(cfg.AI.ProfileFile)
		if err != nil {
			return nil, err
		}
		profile = loaded
	}
	cfg.Profile = profile

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadProvider reads one adapter slot from variables sharing prefix.
func loadProvider(prefix string, defaultProvider AIProvider) ProviderConfig {
	provider := AIProvider(strings.ToLower(getEnvOrDefault(prefix+"_PROVIDER", string(defaultProvider))))
	if provider == "none" {
		provider = AIProviderNone
	}

	// Set provider-specific defaults
	var defaultBaseURL, defaultModel string
	switch provider {
	case AIProviderAnthropic:
		defaultBaseURL = "https://api.anthropic.com"
		defaultModel = "claude-sonnet-4-20250514"
	case AIProviderGemini:
		defaultBaseURL = "https://generativelanguage.googleapis.com"
		defaultModel = "gemini-2.0-flash"
	case AIProviderOpenAI:
		defaultBaseURL = "https://openrouter.ai/api/v1"
		defaultModel = "anthropic/claude-3.5-sonnet"
	}

	return ProviderConfig{
		Provider:         provider,
		APIKey:           os.Getenv(prefix + "_API_KEY"),
		BaseURL:          getEnvOrDefault(prefix+"_BASE_URL", defaultBaseURL),
		Model:            getEnvOrDefault(prefix+"_MODEL", defaultModel),
		Timeout:          getDurationOrDefault("AI_TIMEOUT", 30*time.Second),
		MaxResponseBytes: int64(getIntOrDefault("AI_MAX_RESPONSE_BYTES", 1<<20)),
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !c.AI.MockMode {
		if !c.AI.Primary.Enabled() {
			return fmt.Errorf("%w: AI_PRIMARY_PROVIDER is required when not in mock mode", domain.ErrInvalidConfig)
		}
		if err := c.AI.Primary.validate("AI_PRIMARY"); err != nil {
			return err
		}
		if c.AI.Secondary.Enabled() {
			if err := c.AI.Secondary.validate("AI_SECONDARY"); err != nil {
				return err
			}
		}
	}

	if c.AI.RetryAttempts < 1 {
		return fmt.Errorf("%w: AI_RETRY_ATTEMPTS must be at least 1", domain.ErrInvalidConfig)
	}

	if c.AI.RetryBaseDelay < 0 || c.AI.RetryMaxDelay < c.AI.RetryBaseDelay {
		return fmt.Errorf("%w: AI_RETRY_MAX_DELAY must not be below AI_RETRY_BASE_DELAY", domain.ErrInvalidConfig)
	}

	if c.AI.RateLimitMultiplier < 1 {
		return fmt.Errorf("%w: AI_RATE_LIMIT_MULTIPLIER must be at least 1", domain.ErrInvalidConfig)
	}

	if c.AI.MaxConcurrentRequests < 1 {
		return fmt.Errorf("%w: AI_MAX_CONCURRENT_REQUESTS must be at least 1", domain.ErrInvalidConfig)
	}

	if c.AI.InvocationDeadline < time.Second {
		return fmt.Errorf("%w: AI_INVOCATION_DEADLINE must be at least 1 second", domain.ErrInvalidConfig)
	}

	if c.Processing.MinTextLength < 1 || c.Processing.MaxTextLength < c.Processing.MinTextLength {
		return fmt.Errorf("%w: MAX_TEXT_LENGTH must not be below MIN_TEXT_LENGTH", domain.ErrInvalidConfig)
	}

	if c.Cache.RedisAddr != "" && c.Cache.TTL <= 0 {
		return fmt.Errorf("%w: ANALYSIS_CACHE_TTL must be positive", domain.ErrInvalidConfig)
	}

	if c.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: USER_RATE_LIMIT_RPS must not be negative", domain.ErrInvalidConfig)
	}

	if c.Profile != nil {
		if err := c.Profile.Validate(); err != nil {
			return err
		}
	}

	return nil
}

func (p ProviderConfig) validate(prefix string) error {
	switch p.Provider {
	case AIProviderAnthropic, AIProviderOpenAI, AIProviderGemini:
	default:
		return fmt.Errorf("%w: %s_PROVIDER %q is not supported", domain.ErrInvalidConfig, prefix, p.Provider)
	}

	if p.APIKey == "" {
		return fmt.Errorf("%w: %s_API_KEY is required when not in mock mode", domain.ErrInvalidConfig, prefix)
	}

	if p.Timeout < time.Second {
		return fmt.Errorf("%w: AI_TIMEOUT must be at least 1 second", domain.ErrInvalidConfig)
	}

	if p.MaxResponseBytes < 1024 {
		return fmt.Errorf("%w: AI_MAX_RESPONSE_BYTES must be at least 1024", domain.ErrInvalidConfig)
	}

	return nil
}

// Helper functions for reading environment variables

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getFloatOrDefault(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		// Try parsing as seconds first (e.g., "15")
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
		// Try parsing as duration string (e.g., "15s", "1m")
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
