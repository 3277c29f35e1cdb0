package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAPITimeout        = 15 * time.Second
	defaultCartDebounce      = 500 * time.Millisecond
	defaultMetadataCacheSize = 4096
	defaultRefreshAttempts   = 2
	defaultSessionIdleTTL    = 30 * time.Minute
)

type Config struct {
	AppEnv                  string
	AppPort                 string
	APIBaseURL              string
	APITimeout              time.Duration
	CartDebounce            time.Duration
	MetadataCacheSize       int
	TokenRefreshMaxAttempts int
	SessionIdleTTL          time.Duration
	CORSOrigin              string
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:                  os.Getenv("APP_ENV"),
		AppPort:                 envOr("APP_PORT", "8080"),
		APIBaseURL:              os.Getenv("API_BASE_URL"),
		APITimeout:              envDuration("API_TIMEOUT", defaultAPITimeout),
		CartDebounce:            envDuration("CART_DEBOUNCE", defaultCartDebounce),
		MetadataCacheSize:       envInt("METADATA_CACHE_SIZE", defaultMetadataCacheSize),
		TokenRefreshMaxAttempts: envInt("TOKEN_REFRESH_MAX_ATTEMPTS", defaultRefreshAttempts),
		SessionIdleTTL:          envDuration("SESSION_IDLE_TTL", defaultSessionIdleTTL),
		CORSOrigin:              os.Getenv("CORS_ORIGIN"),
	}

	if cfg.APIBaseURL == "" {
		log.Fatal("Environment variables not loaded properly: API_BASE_URL is required")
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}
