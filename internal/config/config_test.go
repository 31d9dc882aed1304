package config

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"PORT", "API_URL", "FRONTEND_URL", "LOG_LEVEL", "SESSION_TTL", "HISTORY_PAGE_SIZE",
	"GENERATE_RATE_PER_MINUTE", "GENERATE_BURST", "GENERATE_TIMEOUT",
	"HEALTH_TIMEOUT", "HEALTH_GRPC_ADDR", "HEALTH_GRPC_SERVICE", "METRICS_ENABLED",
}

// clearEnv unsets every key; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
	for _, k := range allKeys {
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 60*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 20, cfg.HistoryPageSize)
	assert.Equal(t, 6, cfg.Generate.RatePerMinute)
	assert.Equal(t, 3, cfg.Generate.Burst)
	assert.Zero(t, cfg.Generate.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Health.Timeout)
	assert.Empty(t, cfg.Health.GRPCAddr)
	assert.True(t, cfg.MetricsEnabled)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("API_URL", " https://gen.example.com/api ")
	t.Setenv("FRONTEND_URL", "https://sitecraft.example.com, https://www.sitecraft.example.com")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SESSION_TTL", "15m")
	t.Setenv("GENERATE_TIMEOUT", "90")
	t.Setenv("HEALTH_GRPC_ADDR", "localhost:50051")
	t.Setenv("METRICS_ENABLED", "off")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "https://gen.example.com/api", cfg.APIURL)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 15*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 90*time.Second, cfg.Generate.Timeout)
	assert.Equal(t, "localhost:50051", cfg.Health.GRPCAddr)
	assert.False(t, cfg.MetricsEnabled)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, []string{"https://sitecraft.example.com", "https://www.sitecraft.example.com"}, cfg.AllowedOrigins())
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"PORT":                     "",
		"API_URL":                  "not a url",
		"HISTORY_PAGE_SIZE":        "0",
		"GENERATE_RATE_PER_MINUTE": "-1",
		"GENERATE_BURST":           "0",
		"GENERATE_TIMEOUT":         "-5s",
		"SESSION_TTL":              "0s",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestBlankAPIURLUsesDefault(t *testing.T) {
	for _, value := range []string{"", "   "} {
		clearEnv(t)
		t.Setenv("API_URL", value)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	}
}

func TestMalformedNumbersFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("HISTORY_PAGE_SIZE", "many")
	t.Setenv("HEALTH_TIMEOUT", "soon")
	t.Setenv("LOG_LEVEL", "chatty")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.HistoryPageSize)
	assert.Equal(t, 5*time.Second, cfg.Health.Timeout)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestAllowedOriginsDevelopment(t *testing.T) {
	cfg := &Config{Port: "3000"}
	assert.Equal(t, []string{"http://localhost:3000", "http://127.0.0.1:3000"}, cfg.AllowedOrigins())
}
