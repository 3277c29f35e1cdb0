package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	t.Run("Success loading from env", func(t *testing.T) {
		// t.Setenv restores the previous value when the test ends.
		t.Setenv("APP_ENV", "test")
		t.Setenv("APP_PORT", "9090")
		t.Setenv("API_BASE_URL", "https://api.example.com/api")
		t.Setenv("API_TIMEOUT", "5s")
		t.Setenv("CART_DEBOUNCE", "250ms")
		t.Setenv("METADATA_CACHE_SIZE", "128")
		t.Setenv("TOKEN_REFRESH_MAX_ATTEMPTS", "3")
		t.Setenv("SESSION_IDLE_TTL", "10m")
		t.Setenv("CORS_ORIGIN", "http://localhost:3000")

		cfg := LoadConfig()

		assert.NotNil(t, cfg)
		assert.Equal(t, "test", cfg.AppEnv)
		assert.Equal(t, "9090", cfg.AppPort)
		assert.Equal(t, "https://api.example.com/api", cfg.APIBaseURL)
		assert.Equal(t, 5*time.Second, cfg.APITimeout)
		assert.Equal(t, 250*time.Millisecond, cfg.CartDebounce)
		assert.Equal(t, 128, cfg.MetadataCacheSize)
		assert.Equal(t, 3, cfg.TokenRefreshMaxAttempts)
		assert.Equal(t, 10*time.Minute, cfg.SessionIdleTTL)
		assert.Equal(t, "http://localhost:3000", cfg.CORSOrigin)
	})

	t.Run("Defaults", func(t *testing.T) {
		t.Setenv("API_BASE_URL", "https://api.example.com/api")
		t.Setenv("APP_PORT", "")
		t.Setenv("API_TIMEOUT", "")
		t.Setenv("CART_DEBOUNCE", "not-a-duration")
		t.Setenv("METADATA_CACHE_SIZE", "-4")
		t.Setenv("TOKEN_REFRESH_MAX_ATTEMPTS", "")
		t.Setenv("SESSION_IDLE_TTL", "")

		cfg := LoadConfig()

		assert.Equal(t, "8080", cfg.AppPort)
		assert.Equal(t, defaultAPITimeout, cfg.APITimeout)
		assert.Equal(t, defaultCartDebounce, cfg.CartDebounce)
		assert.Equal(t, defaultMetadataCacheSize, cfg.MetadataCacheSize)
		assert.Equal(t, defaultRefreshAttempts, cfg.TokenRefreshMaxAttempts)
		assert.Equal(t, defaultSessionIdleTTL, cfg.SessionIdleTTL)
	})
}
