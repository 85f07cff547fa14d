package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	AppOrigin     string
	LogLevel      string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	SessionJWTSecret string

	CORSAllowedOrigins []string

	// Domain validation
	DomainCheckTimeout time.Duration
	DomainCheckQuiet   time.Duration

	// Google OAuth (Business Profile linking)
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string
	GoogleOAuthTimeout time.Duration
	GBPAPIBaseURL      string

	// Billing checkout
	BillingSecretKey   string
	BillingPriceID     string
	BillingSuccessURL  string
	BillingCancelURL   string
	BillingWebhookKey  string
	AllowFakeCheckout  bool

	// Notifications
	NotificationsPollInterval time.Duration

	// Email (welcome / onboarding-complete)
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	SESFromEmail        string
	SESFromName         string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		AppOrigin:     getEnv("APP_ORIGIN", "http://localhost:3000"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		SessionJWTSecret: getEnv("SESSION_JWT_SECRET", ""),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),

		DomainCheckTimeout: getEnvAsDuration("DOMAIN_CHECK_TIMEOUT", 5*time.Second),
		DomainCheckQuiet:   getEnvAsDuration("DOMAIN_CHECK_QUIET_PERIOD", 800*time.Millisecond),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:  getEnv("GOOGLE_REDIRECT_URI", ""),
		GoogleOAuthTimeout: getEnvAsDuration("GOOGLE_OAUTH_TIMEOUT", 3*time.Minute),
		GBPAPIBaseURL:      getEnv("GBP_API_BASE_URL", "https://mybusinessbusinessinformation.googleapis.com"),

		BillingSecretKey:  getEnv("BILLING_SECRET_KEY", ""),
		BillingPriceID:    getEnv("BILLING_PRICE_ID", ""),
		BillingSuccessURL: getEnv("BILLING_SUCCESS_URL", ""),
		BillingCancelURL:  getEnv("BILLING_CANCEL_URL", ""),
		BillingWebhookKey: getEnv("BILLING_WEBHOOK_SIGNATURE_KEY", ""),
		AllowFakeCheckout: getEnvAsBool("ALLOW_FAKE_CHECKOUT", false),

		NotificationsPollInterval: getEnvAsDuration("NOTIFICATIONS_POLL_INTERVAL", 10*time.Second),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "sendgrid"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "OrthoPulse"),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		SESFromEmail:        getEnv("SES_FROM_EMAIL", ""),
		SESFromName:         getEnv("SES_FROM_NAME", "OrthoPulse"),
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

// getEnvAsList parses a comma-separated environment variable.
func getEnvAsList(key string, defaultValue []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	parts := strings.Split(raw, ",")
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
