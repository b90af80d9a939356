package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestLoadDefaults verifies the configuration defaults when nothing is set
// in the environment.
func TestLoadDefaults(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.Port)
	require.Equal(t, int64(512), cfg.MaxMessageSize)
	require.Equal(t, 5, cfg.RateLimit.Burst)
	require.Equal(t, time.Second, cfg.RateLimit.RefillInterval)
	require.Equal(t, 30*time.Minute, cfg.AccessTokenTTL)
}

// TestLoadFromEnvironment verifies that environment variables override the
// defaults, including the seed-user map format.
func TestLoadFromEnvironment(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })

	t.Setenv("SERVER_PORT", ":9999")
	t.Setenv("MAX_MESSAGE_SIZE", "1024")
	t.Setenv("RATE_LIMIT_BURST", "20")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("ACCESS_TOKEN_TTL", "1h")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example,http://b.example")
	t.Setenv("SEED_USERS", "alice:wonderland,bob:builder")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, ":9999", cfg.Port)
	require.Equal(t, int64(1024), cfg.MaxMessageSize)
	require.Equal(t, 20, cfg.RateLimit.Burst)
	require.Equal(t, 2*time.Second, cfg.RateLimit.RefillInterval)
	require.Equal(t, "test-secret", cfg.JWTSecret)
	require.Equal(t, time.Hour, cfg.AccessTokenTTL)
	require.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.AllowedOrigins)
	require.Equal(t, map[string]string{"alice": "wonderland", "bob": "builder"}, cfg.SeedUsers)
}

// TestSetConfigSanitizesValues verifies that invalid values fall back to
// safe defaults instead of propagating.
func TestSetConfigSanitizesValues(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })

	SetConfig(&Config{
		Port:           "",
		MaxMessageSize: -1,
		RateLimit:      RateLimitConfig{Burst: 0, RefillInterval: 0},
	})

	cfg := currentConfig()
	require.Equal(t, ":8080", cfg.Port)
	require.Equal(t, int64(512), cfg.MaxMessageSize)
	require.Equal(t, 5, cfg.RateLimit.Burst)
	require.Equal(t, time.Second, cfg.RateLimit.RefillInterval)
	require.Equal(t, 30*time.Minute, cfg.AccessTokenTTL)
}
