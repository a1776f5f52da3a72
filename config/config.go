package config

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string
	AppBaseURL  string

	// Redis configuration
	RedisURL string

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Store configuration
	DBDriver string
	DBDSN    string

	// Sales configuration
	HoldWindow     time.Duration
	TaxRate        decimal.Decimal
	Currency       string
	ReaperSchedule string
	QRSecret       string

	// Gateway configuration
	Gateway GatewayConfig

	// Security
	RateLimitPerMinute int

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

type GatewayConfig struct {
	Provider      string
	BaseURL       string
	AuthToken     string
	WebhookSecret string
	Timeout       time.Duration
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),
		AppBaseURL:  getEnv("APP_BASE_URL", "http://localhost:8090"),

		// Redis
		RedisURL: getEnv("REDIS_URL", "localhost:6379"),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Store
		DBDriver: getEnv("DB_DRIVER", "pocketbase"),
		DBDSN:    getEnv("DB_DSN", ""),

		// Sales
		HoldWindow:     getEnvAsDuration("HOLD_WINDOW", "10m"),
		TaxRate:        getEnvAsDecimal("TAX_RATE", "0.16"),
		Currency:       getEnv("CURRENCY", "MXN"),
		ReaperSchedule: getEnv("REAPER_SCHEDULE", "* * * * *"),
		QRSecret:       getEnv("QR_SECRET", "change-me"),

		// Gateway
		Gateway: GatewayConfig{
			Provider:      getEnv("GATEWAY_PROVIDER", "sandbox"),
			BaseURL:       getEnv("CLIP_BASE_URL", "https://api.payclip.com"),
			AuthToken:     getEnv("CLIP_AUTH_TOKEN", ""),
			WebhookSecret: getEnv("CLIP_WEBHOOK_SECRET", ""),
			Timeout:       getEnvAsDuration("GATEWAY_TIMEOUT", "15s"),
		},

		// Security
		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 30),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

// IsDevelopment gates test-only routes such as payment simulation.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
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
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

func getEnvAsDecimal(key string, defaultValue string) decimal.Decimal {
	valueStr := getEnv(key, defaultValue)
	if value, err := decimal.NewFromString(valueStr); err == nil {
		return value
	}
	return decimal.RequireFromString(defaultValue)
}
