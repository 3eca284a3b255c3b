package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	CORSAllowedOrigins []string

	// Data store. Driver is one of "supabase", "postgres", "memory".
	StoreDriver        string
	SupabaseURL        string
	SupabaseServiceKey string
	DatabaseURL        string

	// Directory cache (optional).
	RedisAddr         string
	RedisPassword     string
	RedisTLS          bool
	DirectoryCacheTTL time.Duration

	// Widget sessions.
	SessionTTL time.Duration

	// Staff reporting surface.
	AdminJWTSecret string

	// Clinic confirmation email. Provider is "sendgrid", "ses" or "stub".
	ClinicNotifyEnabled bool
	EmailProvider       string
	SendGridAPIKey      string
	SendGridFromEmail   string
	SendGridFromName    string
	AWSRegion           string
	SESFromEmail        string
	SESFromName         string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),

		StoreDriver:        strings.ToLower(strings.TrimSpace(getEnv("STORE_DRIVER", "supabase"))),
		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		DatabaseURL:        getEnv("DATABASE_URL", ""),

		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisTLS:          getEnvAsBool("REDIS_TLS", false),
		DirectoryCacheTTL: getEnvAsDuration("DIRECTORY_CACHE_TTL", 5*time.Minute),

		SessionTTL: getEnvAsDuration("SESSION_TTL", 30*time.Minute),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		ClinicNotifyEnabled: getEnvAsBool("CLINIC_NOTIFY_ENABLED", false),
		EmailProvider:       strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "stub"))),
		SendGridAPIKey:      getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail:   getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:    getEnv("SENDGRID_FROM_NAME", "Oak Dental"),
		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		SESFromEmail:        getEnv("SES_FROM_EMAIL", ""),
		SESFromName:         getEnv("SES_FROM_NAME", "Oak Dental"),
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

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
