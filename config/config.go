package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server configuration
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Admission configuration
	PromoteBatchSize  int
	AdmissionInterval time.Duration

	// Booking token configuration
	BookingTokenTTL    time.Duration
	BookingTokenSecret string
	TokenSweepInterval time.Duration

	// Queue configuration
	QueuePositionUpdate time.Duration

	// Rate limiting
	RateLimitPerMinute int

	// Monitoring
	EnableMetrics bool
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Admission
		PromoteBatchSize:  getEnvAsInt("PROMOTE_BATCH_SIZE", 10),
		AdmissionInterval: getEnvAsDuration("ADMISSION_INTERVAL", "15s"),

		// Booking tokens
		BookingTokenTTL:    getEnvAsDuration("BOOKING_TOKEN_TTL", "10m"),
		BookingTokenSecret: getEnv("BOOKING_TOKEN_SECRET", "insecure-dev-secret"),
		TokenSweepInterval: getEnvAsDuration("TOKEN_SWEEP_INTERVAL", "1m"),

		// Queue
		QueuePositionUpdate: getEnvAsDuration("QUEUE_POSITION_UPDATE", "2s"),

		// Rate limiting
		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 30),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, fall back to the default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
