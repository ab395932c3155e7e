package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Remote API
	APIBaseURL  string
	HTTPTimeout time.Duration

	// Token persistence
	TokenPath string

	// Cache
	CacheBackend    string // "memory" or "sqlite"
	SQLiteCachePath string
	JanitorInterval time.Duration

	// Invalidation bus (optional)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Worker
	RefreshInterval time.Duration

	// Outbound throttle
	RateLimitPerMinute int

	// Google sign-in
	GoogleOAuthClientFile string
	GoogleOAuthClientJSON string
	OAuthRedirectPort     string
}

func Load() *Config {
	return &Config{
		APIBaseURL:  getEnv("API_BASE_URL", "http://localhost:8000"),
		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 15*time.Second),

		TokenPath: getEnv("TOKEN_PATH", defaultTokenPath()),

		CacheBackend:    getEnv("CACHE_BACKEND", "memory"),
		SQLiteCachePath: getEnv("SQLITE_CACHE_PATH", "./data/fintrack-cache.db"),
		JanitorInterval: getEnvDuration("CACHE_JANITOR_INTERVAL", 5*time.Minute),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fintrack"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "cache_invalidation"),

		RefreshInterval: getEnvDuration("REFRESH_INTERVAL", 5*time.Minute),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_RPM", 120),

		GoogleOAuthClientFile: getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthClientJSON: getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		OAuthRedirectPort:     getEnv("OAUTH_REDIRECT_PORT", "8085"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if parsed, err := url.Parse(c.APIBaseURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid API base URL '%s': %v", c.APIBaseURL, err))
	} else if parsed.Scheme != "http" && parsed.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid API base URL scheme '%s': must be 'http' or 'https'", parsed.Scheme))
	}

	if c.HTTPTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid HTTP timeout %v: must be positive", c.HTTPTimeout))
	}

	if c.TokenPath == "" {
		errors = append(errors, "token path cannot be empty")
	}

	validBackends := []string{"memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.CacheBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid cache backend '%s': must be one of %v", c.CacheBackend, validBackends))
	}

	if c.CacheBackend == "sqlite" {
		if c.SQLiteCachePath == "" {
			errors = append(errors, "SQLite cache path cannot be empty when using sqlite cache backend")
		} else {
			dir := filepath.Dir(c.SQLiteCachePath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite cache directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RefreshInterval <= 0 {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be positive", c.RefreshInterval))
	}

	if c.RateLimitPerMinute <= 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be positive", c.RateLimitPerMinute))
	}

	if c.OAuthRedirectPort != "" {
		if port, err := strconv.Atoi(c.OAuthRedirectPort); err != nil {
			errors = append(errors, fmt.Sprintf("invalid OAuth redirect port '%s': must be a number", c.OAuthRedirectPort))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("invalid OAuth redirect port %d: must be between 1 and 65535", port))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}
	return nil
}

// BusEnabled reports whether the invalidation bus is configured.
func (c *Config) BusEnabled() bool {
	return c.AMQPURL != ""
}

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./fintrack-token.json"
	}
	return filepath.Join(home, ".fintrack", "token.json")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
