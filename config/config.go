package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string
	PublicURL   string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Paystack configuration
	PaystackSecretKey string
	PaystackBaseURL   string
	PaymentCurrency   string
	CallbackURL       string

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string
	PubNubUserID       string

	// Timeout configuration
	GatewayTimeout   time.Duration
	VerifyMaxRetries int
	VerifyBackoff    time.Duration

	// Fulfillment configuration
	FulfillmentMaxAttempts int
	FulfillmentRetryDelay  time.Duration

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),
		PublicURL:   getEnv("PUBLIC_URL", "http://localhost:8090"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// Paystack
		PaystackSecretKey: getEnv("PAYSTACK_SECRET_KEY", ""),
		PaystackBaseURL:   getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		PaymentCurrency:   getEnv("PAYMENT_CURRENCY", "ZAR"),
		CallbackURL:       getEnv("PAYMENT_CALLBACK_URL", "http://localhost:8090/payment/callback"),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),
		PubNubUserID:       getEnv("PUBNUB_USER_ID", "eventpass-server"),

		// Timeouts
		GatewayTimeout:   getEnvAsDuration("GATEWAY_TIMEOUT", "10s"),
		VerifyMaxRetries: getEnvAsInt("VERIFY_MAX_RETRIES", 3),
		VerifyBackoff:    getEnvAsDuration("VERIFY_BACKOFF", "1s"),

		// Fulfillment
		FulfillmentMaxAttempts: getEnvAsInt("FULFILLMENT_MAX_ATTEMPTS", 5),
		FulfillmentRetryDelay:  getEnvAsDuration("FULFILLMENT_RETRY_DELAY", "30s"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
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
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
