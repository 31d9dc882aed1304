// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultAPIURL is the backend root used when API_URL is unset.
const DefaultAPIURL = "http://localhost:8000/api"

// Config holds all application configuration.
type Config struct {
	Port        string
	APIURL      string
	FrontendURL string
	LogLevel    slog.Level
	SessionTTL  time.Duration

	HistoryPageSize int
	Generate        GenerateConfig
	Health          HealthConfig
	MetricsEnabled  bool
}

// GenerateConfig bounds generation requests.
type GenerateConfig struct {
	RatePerMinute int
	Burst         int
	Timeout       time.Duration // 0 = no client-side timeout
}

// HealthConfig controls the backend health probe.
type HealthConfig struct {
	Timeout     time.Duration
	GRPCAddr    string
	GRPCService string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "3000"),
		APIURL:          getEnvTrimmed("API_URL", DefaultAPIURL),
		FrontendURL:     getEnv("FRONTEND_URL", ""),
		LogLevel:        getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		SessionTTL:      getEnvDuration("SESSION_TTL", 60*time.Minute),
		HistoryPageSize: getEnvInt("HISTORY_PAGE_SIZE", 20),
		Generate: GenerateConfig{
			RatePerMinute: getEnvInt("GENERATE_RATE_PER_MINUTE", 6),
			Burst:         getEnvInt("GENERATE_BURST", 3),
			Timeout:       getEnvDuration("GENERATE_TIMEOUT", 0),
		},
		Health: HealthConfig{
			Timeout:     getEnvDuration("HEALTH_TIMEOUT", 5*time.Second),
			GRPCAddr:    getEnv("HEALTH_GRPC_ADDR", ""),
			GRPCService: getEnv("HEALTH_GRPC_SERVICE", ""),
		},
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.APIURL == "" {
		return fmt.Errorf("API_URL cannot be empty")
	}
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("API_URL must be an absolute http(s) URL, got %q", c.APIURL)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.HistoryPageSize <= 0 {
		return fmt.Errorf("HISTORY_PAGE_SIZE must be > 0")
	}
	if c.Generate.RatePerMinute <= 0 {
		return fmt.Errorf("GENERATE_RATE_PER_MINUTE must be > 0")
	}
	if c.Generate.Burst <= 0 {
		return fmt.Errorf("GENERATE_BURST must be > 0")
	}
	if c.Generate.Timeout < 0 {
		return fmt.Errorf("GENERATE_TIMEOUT cannot be negative")
	}
	if c.Health.Timeout <= 0 {
		return fmt.Errorf("HEALTH_TIMEOUT must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins lists the origins the CORS middleware accepts.
func (c *Config) AllowedOrigins() []string {
	if c.FrontendURL == "" {
		return []string{"http://localhost:" + c.Port, "http://127.0.0.1:" + c.Port}
	}
	var out []string
	for _, o := range strings.Split(c.FrontendURL, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// getEnvTrimmed treats a set but blank variable as unset.
func getEnvTrimmed(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}
