package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Env      string
	LogLevel string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// TablePrefix is prepended to every document collection name to form the
	// DynamoDB table name, e.g. "telehealth_" -> "telehealth_appointments".
	TablePrefix string

	AppointmentEventsQueueURL string

	RedisAddr       string
	RedisPassword   string
	RedisTLS        bool
	ProfileCacheTTL time.Duration

	// MinCancelNotice is the window before an appointment's start inside which
	// a cancellation is still allowed but flagged on the record.
	MinCancelNotice     time.Duration
	NoShowSweepInterval time.Duration

	AuditArchiveBucket string

	// MetricsAddr is the listen address for the Prometheus scrape endpoint.
	// Empty disables it.
	MetricsAddr string

	NotifyFromEmail string
	NotifyFromName  string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		TablePrefix: getEnv("TABLE_PREFIX", "telehealth_"),

		AppointmentEventsQueueURL: getEnv("APPOINTMENT_EVENTS_QUEUE_URL", ""),

		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisTLS:        getEnvAsBool("REDIS_TLS", false),
		ProfileCacheTTL: getEnvAsDuration("PROFILE_CACHE_TTL", 5*time.Minute),

		MinCancelNotice:     getEnvAsDuration("MIN_CANCEL_NOTICE", 24*time.Hour),
		NoShowSweepInterval: getEnvAsDuration("NO_SHOW_SWEEP_INTERVAL", 15*time.Minute),

		AuditArchiveBucket: getEnv("AUDIT_ARCHIVE_BUCKET", ""),

		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),

		NotifyFromEmail: getEnv("NOTIFY_FROM_EMAIL", ""),
		NotifyFromName:  getEnv("NOTIFY_FROM_NAME", "CareBridge Telehealth"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
