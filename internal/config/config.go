// Package config loads and validates application configuration from
// environment variables. A .env file in the working directory is read first
// when present, so local development does not need exported variables.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the bot server.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// BotToken is the Telegram Bot API token. Required.
	BotToken string

	// UpstreamBaseURL is the municipal transit service base URL.
	// Defaults to "https://ulasim.mersin.bel.tr".
	UpstreamBaseURL string

	// SelfBaseURL is the address the launcher uses to trigger worker
	// requests against this very service. Defaults to
	// "http://127.0.0.1:<Port>".
	SelfBaseURL string

	// WorkerSecret authenticates requests to the internal endpoints (the
	// worker trigger and the line-list refresh). Defaults to a digest of the
	// bot token so the check is on even without explicit configuration; set
	// WORKER_SECRET to override.
	WorkerSecret string

	// MetricsAddr is the listen address for the Prometheus /metrics server.
	// Empty disables the metrics server.
	MetricsAddr string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins for
	// the /api subtree. Defaults to ["http://localhost:5173"].
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// PollInterval is the pause between tracking loop iterations.
	// Defaults to 30s. Set POLL_INTERVAL to a Go duration to override.
	PollInterval time.Duration

	// MaxIterations caps the tracking loop length. Defaults to 40.
	MaxIterations int
}

// Load reads configuration from the environment (and an optional .env file)
// and returns a Config. Returns an error listing any required variables that
// are not set.
func Load() (Config, error) {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	cfg := Config{
		Port:            getEnv("PORT", "8080"),
		UpstreamBaseURL: getEnv("UPSTREAM_BASE_URL", "https://ulasim.mersin.bel.tr"),
		MetricsAddr:     os.Getenv("METRICS_ADDR"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		CORSOrigins:     splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
	}
	cfg.SelfBaseURL = getEnv("SELF_BASE_URL", "http://127.0.0.1:"+cfg.Port)

	var err error
	cfg.PollInterval, err = getDuration("POLL_INTERVAL", 30*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxIterations, err = getInt("MAX_ITERATIONS", 40)
	if err != nil {
		return Config{}, err
	}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	cfg.BotToken = os.Getenv("BOT_TOKEN")
	if cfg.BotToken == "" {
		missing = append(missing, "BOT_TOKEN")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	cfg.WorkerSecret = getEnv("WORKER_SECRET", deriveSecret(cfg.BotToken))

	return cfg, nil
}

// deriveSecret produces a stable secret from the bot token, so the internal
// endpoints are never served unauthenticated even when WORKER_SECRET is not
// set. The token itself never appears in URLs or logs.
func deriveSecret(botToken string) string {
	sum := sha256.Sum256([]byte("hattakip-worker:" + botToken))
	return hex.EncodeToString(sum[:16])
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getDuration parses the named variable as a Go duration, falling back when
// unset. A set-but-unparsable value is an error, not a silent default.
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// getInt parses the named variable as an integer, falling back when unset.
func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
