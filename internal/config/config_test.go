package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sketchcode/backend/internal/billing"
	"github.com/sketchcode/backend/internal/models"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/sketchcode")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_123")
}

// unset clears key for the test and restores it afterwards.
func unset(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func missing(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	unset(t, "PORT", "GENERATE_RATE_LIMIT", "GENERATE_RATE_WINDOW", "MIDTRANS_SERVER_KEY", "CORS_ALLOWED_ORIGINS", "LOG_LEVEL")

	cfg, err := Load(missing(t))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.App.CorsAllowedOrigins)
	assert.Equal(t, 10, cfg.RateLimit.Generate)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)

	prices := cfg.Prices()
	assert.Equal(t, billing.Price{Amount: 199, Currency: "usd"}, prices[billing.ProviderStripe][models.PurchaseOneOff])
	assert.NotContains(t, prices, billing.ProviderMidtrans)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("GENERATE_RATE_WINDOW", "90s")
	t.Setenv("MIDTRANS_SERVER_KEY", "SB-Mid-server-xyz")
	t.Setenv("MIDTRANS_IS_PRODUCTION", "true")
	t.Setenv("MIDTRANS_SUBSCRIPTION_AMOUNT", "250000")
	t.Setenv("ADMIN_EMAILS", "root@example.com")

	cfg, err := Load(missing(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.App.CorsAllowedOrigins)
	assert.Equal(t, 90*time.Second, cfg.RateLimit.Window)
	assert.True(t, cfg.Midtrans.Production)
	assert.Equal(t, []string{"root@example.com"}, cfg.Auth.AdminEmails)
	assert.Equal(t, billing.Price{Amount: 250000, Currency: "IDR"}, cfg.Prices()[billing.ProviderMidtrans][models.PurchaseSubscription])
}

func TestLoad_EnvFileDoesNotOverride(t *testing.T) {
	setRequired(t)
	unset(t, "GEMINI_MODEL")
	t.Setenv("PORT", "9000")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("GEMINI_MODEL=gemini-test\nPORT=7000\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("GEMINI_MODEL") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gemini-test", cfg.Gemini.Model)
	assert.Equal(t, "9000", cfg.App.Port)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]func(t *testing.T){
		"missing database":       func(t *testing.T) { unset(t, "DATABASE_URL") },
		"short jwt secret":       func(t *testing.T) { t.Setenv("JWT_SECRET", "short") },
		"no provider":            func(t *testing.T) { unset(t, "STRIPE_SECRET_KEY", "MIDTRANS_SERVER_KEY") },
		"stripe without webhook": func(t *testing.T) { unset(t, "STRIPE_WEBHOOK_SECRET") },
		"bad log level":          func(t *testing.T) { t.Setenv("LOG_LEVEL", "loud") },
		"bad origin":             func(t *testing.T) { t.Setenv("CORS_ALLOWED_ORIGINS", "not a url") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			setRequired(t)
			mutate(t)
			_, err := Load(missing(t))
			assert.Error(t, err)
		})
	}
}
