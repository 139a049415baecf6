package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port       string
	DBPath     string
	RedisAddr  string
	LogLevel   string
	RateLimit  int
	RateWindow time.Duration
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	rateLimit, err := strconv.Atoi(getEnv("RATE_LIMIT", "60"))
	if err != nil || rateLimit <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT must be a positive integer")
	}
	rateWindow, err := time.ParseDuration(getEnv("RATE_WINDOW", "1m"))
	if err != nil || rateWindow <= 0 {
		return nil, fmt.Errorf("RATE_WINDOW must be a positive duration")
	}

	cfg := &Config{
		Port:       getEnv("PORT", "8080"),
		DBPath:     getEnv("DB_PATH", "lendledger.db"),
		RedisAddr:  getEnv("REDIS_ADDR", ""),
		LogLevel:   getEnv("LOG_LEVEL", "INFO"),
		RateLimit:  rateLimit,
		RateWindow: rateWindow,
	}

	if cfg.DBPath == "" {
		return nil, fmt.Errorf("DB_PATH is required")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}
