package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Port            string
	DatabaseURL     string
	RedisURL        string
	NumWorkers      int
	DeliveryTimeout time.Duration
	MaxAttempts     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	port := getEnv("PORT", "8080")
	dbURL := getEnv("DATABASE_URL", "")
	redisURL := getEnv("REDIS_URL", "")
	numWorkers := getEnvInt("NUM_WORKERS", 50)
	timeoutSecs := getEnvInt("DELIVERY_TIMEOUT_SECONDS", 5)
	maxAttempts := getEnvInt("MAX_DELIVERY_ATTEMPTS", 5)

	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	if timeoutSecs < 1 || timeoutSecs > 9 {
		return nil, fmt.Errorf("DELIVERY_TIMEOUT_SECONDS must be between 1 and 9, got %d", timeoutSecs)
	}
	if maxAttempts < 1 {
		return nil, fmt.Errorf("MAX_DELIVERY_ATTEMPTS must be at least 1, got %d", maxAttempts)
	}

	return &Config{
		Port:            port,
		DatabaseURL:     dbURL,
		RedisURL:        redisURL,
		NumWorkers:      numWorkers,
		DeliveryTimeout: time.Duration(timeoutSecs) * time.Second,
		MaxAttempts:     maxAttempts,
	}, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}
