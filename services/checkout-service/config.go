package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	awspkg "github.com/ahambrahmasmi/storefront/pkg/aws"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/database"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/ledger"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/providers"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/ratelimit"
)

const (
	StorePostgres = "postgres"
	StoreDynamoDB = "dynamodb"
)

// Config holds all environment variables for the checkout-service.
type Config struct {
	Port           string
	Env            string
	ServiceName    string
	AllowedOrigins string
	TrustedProxies string
	JWTSecret      string

	OrderStore   string
	Postgres     database.PostgresConfig
	OrdersTable  string
	IntentsTable string

	RedisURL        string
	RateLimitMax    int
	RateLimitWindow time.Duration

	Gateway               string
	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string
	StripeAPIKey          string
	StripeWebhookSecret   string
	Currency              string
	GatewayTimeout        time.Duration

	Sheets ledger.SheetsConfig

	LedgerRetryQueueURL string
	OrderEventsTopicARN string
	DesignUploadsBucket string

	CloudWatchEnabled  bool
	CloudWatchLogGroup string
	MetricsNamespace   string
}

// LoadConfig reads the environment. Only the port and store selection are
// required; missing gateway or ledger secrets disable the endpoints that
// need them. If AWS_USE_SECRETS=true secrets are read from Secrets Manager
// and fall back to env vars on failure.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8092"),
		Env:            getEnv("APP_ENV", "development"),
		ServiceName:    getEnv("SERVICE_NAME", "checkout-service"),
		AllowedOrigins: os.Getenv("ALLOWED_ORIGINS"),
		TrustedProxies: os.Getenv("TRUSTED_PROXIES"),
		JWTSecret:      os.Getenv("JWT_SECRET"),

		OrderStore: strings.ToLower(getEnv("ORDER_STORE", StorePostgres)),
		Postgres: database.PostgresConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DBName:   getEnv("POSTGRES_DB", "checkout"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			TimeZone: getEnv("POSTGRES_TIMEZONE", "Asia/Kolkata"),
		},
		OrdersTable:  getEnv("DYNAMODB_ORDERS_TABLE", "Orders"),
		IntentsTable: getEnv("DYNAMODB_INTENTS_TABLE", "CheckoutIntents"),

		RedisURL:        os.Getenv("REDIS_URL"),
		RateLimitMax:    getEnvInt("RATE_LIMIT_MAX", ratelimit.DefaultMax),
		RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", ratelimit.DefaultWindow),

		Gateway:               strings.ToLower(getEnv("PAYMENT_GATEWAY", providers.GatewayRazorpay)),
		RazorpayKeyID:         os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret:     os.Getenv("RAZORPAY_KEY_SECRET"),
		RazorpayWebhookSecret: os.Getenv("RAZORPAY_WEBHOOK_SECRET"),
		StripeAPIKey:          os.Getenv("STRIPE_API_KEY"),
		StripeWebhookSecret:   os.Getenv("STRIPE_WEBHOOK_SECRET"),
		Currency:              strings.ToUpper(getEnv("PAYMENT_CURRENCY", "INR")),
		GatewayTimeout:        getEnvDuration("GATEWAY_TIMEOUT", providers.DefaultTimeout),

		Sheets: ledger.SheetsConfig{
			ClientID:        os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret:    os.Getenv("GOOGLE_CLIENT_SECRET"),
			RefreshToken:    os.Getenv("GOOGLE_REFRESH_TOKEN"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_ID"),
			SheetName:       getEnv("GOOGLE_SHEET_NAME", "Sheet1"),
			WritesPerMinute: getEnvInt("LEDGER_WRITES_PER_MINUTE", 60),
		},

		LedgerRetryQueueURL: os.Getenv("LEDGER_RETRY_QUEUE_URL"),
		OrderEventsTopicARN: os.Getenv("ORDER_EVENTS_TOPIC_ARN"),
		DesignUploadsBucket: os.Getenv("DESIGN_UPLOADS_BUCKET"),

		CloudWatchEnabled:  os.Getenv("CLOUDWATCH_ENABLED") == "true",
		CloudWatchLogGroup: getEnv("CLOUDWATCH_LOG_GROUP", "/storefront/checkout-service"),
		MetricsNamespace:   getEnv("METRICS_NAMESPACE", "Storefront/Checkout"),
	}

	if os.Getenv("AWS_USE_SECRETS") == "true" {
		loadSecrets(cfg)
	}

	if cfg.Port == "" {
		return nil, fmt.Errorf("PORT is required")
	}
	switch cfg.OrderStore {
	case StorePostgres, StoreDynamoDB:
	default:
		return nil, fmt.Errorf("ORDER_STORE must be %q or %q, got %q", StorePostgres, StoreDynamoDB, cfg.OrderStore)
	}
	switch cfg.Gateway {
	case providers.GatewayRazorpay, providers.GatewayStripe:
	default:
		return nil, fmt.Errorf("PAYMENT_GATEWAY must be %q or %q, got %q", providers.GatewayRazorpay, providers.GatewayStripe, cfg.Gateway)
	}
	if cfg.RateLimitMax <= 0 || cfg.RateLimitWindow <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive")
	}

	return cfg, nil
}

// GatewayConfigured reports whether the selected gateway has its secrets.
// Stripe also needs STRIPE_WEBHOOK_SECRET because its webhook is the primary
// capture path.
func (c *Config) GatewayConfigured() bool {
	if c.Gateway == providers.GatewayStripe {
		return c.StripeAPIKey != "" && c.StripeWebhookSecret != ""
	}
	return c.RazorpayKeyID != "" && c.RazorpayKeySecret != ""
}

// secretTargets maps keys of the AWS_SECRET_ID JSON secret onto config fields.
func secretTargets(cfg *Config) map[string]*string {
	return map[string]*string{
		"POSTGRES_PASSWORD":       &cfg.Postgres.Password,
		"RAZORPAY_KEY_SECRET":     &cfg.RazorpayKeySecret,
		"RAZORPAY_WEBHOOK_SECRET": &cfg.RazorpayWebhookSecret,
		"STRIPE_API_KEY":          &cfg.StripeAPIKey,
		"STRIPE_WEBHOOK_SECRET":   &cfg.StripeWebhookSecret,
		"GOOGLE_CLIENT_SECRET":    &cfg.Sheets.ClientSecret,
		"GOOGLE_REFRESH_TOKEN":    &cfg.Sheets.RefreshToken,
		"JWT_SECRET":              &cfg.JWTSecret,
	}
}

// loadSecrets overrides env values with the secret bundle. Failures keep the env values.
func loadSecrets(cfg *Config) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	awsCfg, err := awspkg.LoadAWSConfig(ctx)
	if err != nil {
		return
	}
	values, err := awspkg.NewSecretsClient(awsCfg).GetSecretMap(ctx, getEnv("AWS_SECRET_ID", "storefront/checkout"))
	if err != nil {
		return
	}
	applySecrets(cfg, values)
}

func applySecrets(cfg *Config, values map[string]string) {
	for key, field := range secretTargets(cfg) {
		if v := values[key]; v != "" {
			*field = v
		}
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}
