// Package config loads server configuration from the environment, with an
// optional .env file for development.
package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	DBPath         string
	KafkaBrokers   []string // empty disables event publishing
	Env            string
	AllowedOrigins []string
}

// Load reads the .env file if present and returns the configuration.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using process environment")
	}

	return &Config{
		Port:           getEnv("PORT", "8080"),
		DBPath:         getEnv("DB_PATH", "skillswap.db"),
		KafkaBrokers:   splitList(getEnv("KAFKA_BROKERS", "")),
		Env:            getEnv("ENV", "development"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:8080")),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
