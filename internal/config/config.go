package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port                int
	DatabasePath        string
	LogLevel            string
	DevMode             bool
	QualityScanSchedule string // cron expression for the nightly ledger quality scan
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnvAsInt("PORT", 8080),
		DevMode:             getEnvAsBool("DEV_MODE", false),
		DatabasePath:        getEnv("DATABASE_PATH", "./data/fincast.db"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		QualityScanSchedule: getEnv("QUALITY_SCAN_SCHEDULE", "0 0 2 * * *"), // 02:00 daily
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be a valid TCP port, got %d", c.Port)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
