package config

import (
	"os"
	"time"
)

// Config holds the application configuration
type Config struct {
	// Database
	DatabaseURL string

	// Server
	ServerPort string

	// AWS
	AWSRegion        string
	SageMakerRoleARN string

	// Endpoint polling
	PollInterval time.Duration
	MaxWait      time.Duration
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		DatabaseURL:      getEnv("DATABASE_URL", "postgres://localhost/variant_orchestrator?sslmode=disable"),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		AWSRegion:        getEnv("AWS_REGION", "us-east-1"),
		SageMakerRoleARN: getEnv("SAGEMAKER_ROLE_ARN", ""),
		PollInterval:     getDuration("POLL_INTERVAL", 15*time.Second),
		MaxWait:          getDuration("MAX_WAIT", 20*time.Minute),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
