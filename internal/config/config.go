// Package config loads the service configuration from environment variables.
// A .env file in the working directory is read first by the app package, so
// every variable below may also be placed there.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_FILE: Log file path (default: stdout)
//
// CRM Account:
//   - SUBDOMAIN: amoCRM account subdomain, used to build https://<SUBDOMAIN>.amocrm.ru
//   - AMOCRM_BASE_URL: Full base URL, overrides SUBDOMAIN
//   - CLIENT_ID, CLIENT_SECRET, REDIRECT_URI: OAuth2 integration credentials (required)
//   - AUTH_CODE: One-time authorization code for the first token exchange
//
// Token Persistence:
//   - TOKEN_STORAGE: "file" or "redis" (default: file)
//   - TOKEN_FILE: Credentials file path (default: ./tokens.json)
//
// Lookup Caches:
//   - CACHE_BACKEND: "local" or "redis" (default: local)
//
// Redis (required when TOKEN_STORAGE or CACHE_BACKEND is redis):
//   - REDIS_ADDRESS, REDIS_PASSWORD, REDIS_DB (0-15), REDIS_POOL_SIZE (default: 10)
//
// Outbound Calls:
//   - HTTP_TIMEOUT: Per-request timeout (default: 30s)
//   - AMOCRM_RATE_LIMIT: Requests per second, 0 disables (default: 7)
//   - AMOCRM_MAX_PAGES: Pages followed per list call (default: 10)
//
// Presentation:
//   - DISPLAY_TIMEZONE: IANA zone used for lead dates (default: UTC)
//   - CURRENCY_SYMBOL: Appended to prices (default: ₽)
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"amocrm-leads/internal/common/validation"
)

const (
	TokenStorageFile  = "file"
	TokenStorageRedis = "redis"

	CacheBackendLocal = "local"
	CacheBackendRedis = "redis"
)

// Config holds all configuration values for the service.
type Config struct {
	// Application settings
	Port     string
	LogLevel string
	LogFile  string

	// CRM account and OAuth2 integration
	Subdomain    string
	BaseURL      string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthCode     string

	// Token persistence
	TokenStorage string
	TokenFile    string

	// Lookup cache backend
	CacheBackend string

	// Redis configuration
	RedisAddress  string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int

	// Outbound calls
	HTTPTimeout time.Duration
	RateLimit   int
	MaxPages    int

	// Presentation
	DisplayTimezone string
	CurrencySymbol  string
}

// Load creates a new Config instance with values loaded from environment variables.
// It does not validate; call Validate on the result.
func Load() *Config {
	subdomain := getEnv("SUBDOMAIN", "")
	baseURL := getEnv("AMOCRM_BASE_URL", "")
	if baseURL == "" && subdomain != "" {
		baseURL = fmt.Sprintf("https://%s.amocrm.ru", subdomain)
	}

	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		Subdomain:    subdomain,
		BaseURL:      strings.TrimRight(baseURL, "/"),
		ClientID:     getEnv("CLIENT_ID", ""),
		ClientSecret: getEnv("CLIENT_SECRET", ""),
		RedirectURI:  getEnv("REDIRECT_URI", ""),
		AuthCode:     getEnv("AUTH_CODE", ""),

		TokenStorage: getEnv("TOKEN_STORAGE", TokenStorageFile),
		TokenFile:    getEnv("TOKEN_FILE", "./tokens.json"),

		CacheBackend: getEnv("CACHE_BACKEND", CacheBackendLocal),

		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		RedisPoolSize: getIntEnv("REDIS_POOL_SIZE", 10),

		HTTPTimeout: getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		RateLimit:   getIntEnv("AMOCRM_RATE_LIMIT", 7),
		MaxPages:    getIntEnv("AMOCRM_MAX_PAGES", 10),

		DisplayTimezone: getEnv("DISPLAY_TIMEZONE", "UTC"),
		CurrencySymbol:  getEnv("CURRENCY_SYMBOL", "₽"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv returns defaultValue when the variable is unset or not an integer
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// UsesRedis reports whether any component is configured to use Redis
func (c *Config) UsesRedis() bool {
	return c.TokenStorage == TokenStorageRedis || c.CacheBackend == CacheBackendRedis
}

// Location resolves DisplayTimezone
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.DisplayTimezone)
}

// Validate checks required fields and value ranges.
// All problems are reported together.
func (c *Config) Validate() error {
	v := validation.NewValidator()

	v.ValidateIf(c.BaseURL == "", func() error {
		return fmt.Errorf("SUBDOMAIN or AMOCRM_BASE_URL is required")
	})
	if c.BaseURL != "" {
		v.RequireURL(c.BaseURL, "AMOCRM_BASE_URL")
	}

	v.RequireString(c.ClientID, "CLIENT_ID").
		RequireString(c.ClientSecret, "CLIENT_SECRET").
		RequireString(c.RedirectURI, "REDIRECT_URI")

	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		v.Validate(func() error {
			return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
		})
	}

	v.RequireOneOf(c.TokenStorage, []string{TokenStorageFile, TokenStorageRedis}, "TOKEN_STORAGE").
		RequireOneOf(c.CacheBackend, []string{CacheBackendLocal, CacheBackendRedis}, "CACHE_BACKEND")

	v.ValidateIf(c.TokenStorage == TokenStorageFile && c.TokenFile == "", func() error {
		return fmt.Errorf("TOKEN_FILE is required when TOKEN_STORAGE is file")
	})

	if c.UsesRedis() {
		v.RequireString(c.RedisAddress, "REDIS_ADDRESS").
			RequireRange(c.RedisDB, 0, 15, "REDIS_DB").
			RequireRange(c.RedisPoolSize, 1, 1000, "REDIS_POOL_SIZE")
	}

	v.RequirePositiveDuration(c.HTTPTimeout, "HTTP_TIMEOUT").
		RequireNonNegative(c.RateLimit, "AMOCRM_RATE_LIMIT").
		RequireRange(c.MaxPages, 1, 1000, "AMOCRM_MAX_PAGES")

	v.Validate(func() error {
		if _, err := c.Location(); err != nil {
			return fmt.Errorf("DISPLAY_TIMEZONE is not a valid time zone: %w", err)
		}
		return nil
	})

	return v.Error()
}
