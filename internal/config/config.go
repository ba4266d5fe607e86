package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/resq-training/checklist-service/internal/cache"
)

// Config holds the runtime configuration, loaded from the environment
// with an optional .env file for local development.
type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	DatabaseURL string
	RedisURL    string

	// Comma-separated Kafka broker addresses. Empty disables integration
	// event publishing.
	KafkaBrokers []string
	KafkaTopic   string

	// How long a checklist item snapshot is served without refetching.
	SnapshotFreshness time.Duration
}

func LoadConfig() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		Environment:       getEnv("ENVIRONMENT", "development"),
		LogLevel:          parseLogLevel(getEnv("LOG_LEVEL", "info")),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		KafkaTopic:        getEnv("KAFKA_TOPIC", "checklist-events"),
		SnapshotFreshness: cache.DefaultFreshnessWindow,
	}

	if raw := os.Getenv("SNAPSHOT_FRESHNESS"); raw != "" {
		window, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid SNAPSHOT_FRESHNESS %q: %w", raw, err)
		}
		if window <= 0 {
			return nil, fmt.Errorf("SNAPSHOT_FRESHNESS must be positive, got %q", raw)
		}
		cfg.SnapshotFreshness = window
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
