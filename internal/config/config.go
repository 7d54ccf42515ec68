// Package config loads process configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/sketchcode/backend/internal/billing"
	"github.com/sketchcode/backend/internal/models"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Gemini    GeminiConfig
	Stripe    StripeConfig
	Midtrans  MidtransConfig
	RateLimit RateLimitConfig
}

type AppConfig struct {
	Port               string   `validate:"required,numeric"`
	FrontendURL        string   `validate:"required,url"`
	CorsAllowedOrigins []string `validate:"dive,url"`
	LogLevel           string   `validate:"oneof=debug info warn error"`
	LogFile            string
	RedisURL           string `validate:"omitempty,url"`
	NatsURL            string `validate:"omitempty,url"`
}

type DatabaseConfig struct {
	URL string `validate:"required"`
}

type AuthConfig struct {
	JWTSecret   string `validate:"required,min=16"`
	AdminEmails []string
}

type GeminiConfig struct {
	APIKey string `validate:"required"`
	Model  string `validate:"required"`
}

type StripeConfig struct {
	SecretKey          string
	WebhookSecret      string `validate:"required_with=SecretKey"`
	Currency           string `validate:"len=3"`
	OneOffAmount       int64  `validate:"gt=0"`
	SubscriptionAmount int64  `validate:"gt=0"`
}

type MidtransConfig struct {
	ServerKey          string
	Production         bool
	Currency           string `validate:"len=3"`
	OneOffAmount       int64  `validate:"gt=0"`
	SubscriptionAmount int64  `validate:"gt=0"`
}

type RateLimitConfig struct {
	Generate int           `validate:"gt=0"`
	Window   time.Duration `validate:"gt=0"`
}

// Load reads files (default .env) into the environment without overriding
// variables already set, then builds and validates the Config. A missing
// .env file is not an error.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Port:               getEnv("PORT", "8080"),
			FrontendURL:        strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
			CorsAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
			LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
			LogFile:            getEnv("LOG_FILE", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			NatsURL:            getEnv("NATS_URL", ""),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Auth: AuthConfig{
			JWTSecret:   getEnv("JWT_SECRET", ""),
			AdminEmails: getEnvAsList("ADMIN_EMAILS", ""),
		},
		Gemini: GeminiConfig{
			APIKey: getEnv("GEMINI_API_KEY", ""),
			Model:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		},
		Stripe: StripeConfig{
			SecretKey:          getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret:      getEnv("STRIPE_WEBHOOK_SECRET", ""),
			Currency:           strings.ToLower(getEnv("STRIPE_CURRENCY", "usd")),
			OneOffAmount:       getEnvAsInt64("STRIPE_ONE_OFF_AMOUNT", 199),
			SubscriptionAmount: getEnvAsInt64("STRIPE_SUBSCRIPTION_AMOUNT", 1999),
		},
		Midtrans: MidtransConfig{
			ServerKey:          getEnv("MIDTRANS_SERVER_KEY", ""),
			Production:         getEnvAsBool("MIDTRANS_IS_PRODUCTION", false),
			Currency:           strings.ToUpper(getEnv("MIDTRANS_CURRENCY", "IDR")),
			OneOffAmount:       getEnvAsInt64("MIDTRANS_ONE_OFF_AMOUNT", 30000),
			SubscriptionAmount: getEnvAsInt64("MIDTRANS_SUBSCRIPTION_AMOUNT", 300000),
		},
		RateLimit: RateLimitConfig{
			Generate: getEnvAsInt("GENERATE_RATE_LIMIT", 10),
			Window:   getEnvAsDuration("GENERATE_RATE_WINDOW", time.Minute),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Stripe.SecretKey == "" && c.Midtrans.ServerKey == "" {
		return errors.New("invalid config: set STRIPE_SECRET_KEY or MIDTRANS_SERVER_KEY")
	}
	return nil
}

// Prices returns the checkout price table for the configured providers.
func (c *Config) Prices() billing.Prices {
	p := billing.Prices{}
	if c.Stripe.SecretKey != "" {
		p[billing.ProviderStripe] = map[string]billing.Price{
			models.PurchaseOneOff:       {Amount: c.Stripe.OneOffAmount, Currency: c.Stripe.Currency},
			models.PurchaseSubscription: {Amount: c.Stripe.SubscriptionAmount, Currency: c.Stripe.Currency},
		}
	}
	if c.Midtrans.ServerKey != "" {
		p[billing.ProviderMidtrans] = map[string]billing.Price{
			models.PurchaseOneOff:       {Amount: c.Midtrans.OneOffAmount, Currency: c.Midtrans.Currency},
			models.PurchaseSubscription: {Amount: c.Midtrans.SubscriptionAmount, Currency: c.Midtrans.Currency},
		}
	}
	return p
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	if v, err := strconv.ParseInt(getEnv(key, ""), 10, 64); err == nil {
		return v
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvAsList(key, fallback string) []string {
	var out []string
	for _, s := range strings.Split(getEnv(key, fallback), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
