package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		for _, k := range []string{"SERVER_PORT", "API_KEY_HEADER", "VAPI_BASE_URL", "STORAGE_MAX_UPLOAD_MB", "PLAN_STARTER_NUMBERS", "CORS_ALLOWED_ORIGINS"} {
			t.Setenv(k, "")
		}

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "X-API-Key", cfg.Auth.APIKeyHeader)
		assert.Equal(t, "https://api.vapi.ai", cfg.Vapi.BaseURL)
		assert.Equal(t, int64(10<<20), cfg.Storage.MaxUploadBytes)
		assert.Equal(t, 1, cfg.Stripe.StarterNumbers)
		assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	})

	t.Run("reads overrides", func(t *testing.T) {
		t.Setenv("SERVER_PORT", "9000")
		t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
		t.Setenv("APP_PUBLIC_URL", "https://dash.example/")
		t.Setenv("PLAN_PRO_NUMBERS", "5")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
		assert.Equal(t, "https://dash.example", cfg.App.PublicURL)
		assert.Equal(t, 5, cfg.Stripe.ProNumbers)
	})

	t.Run("rejects non-numeric ints", func(t *testing.T) {
		t.Setenv("DB_MAX_CONNS", "lots")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DB_MAX_CONNS")
	})
}

func TestValidate(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SUPABASE_JWT_SECRET", "")
	t.Setenv("VAPI_API_KEY", "")
	t.Setenv("STRIPE_SECRET_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "SUPABASE_JWT_SECRET")

	cfg.Database.URL = "postgres://localhost/voice"
	cfg.Auth.JWTSecret = "secret"
	cfg.Vapi.APIKey = "vapi"
	assert.NoError(t, cfg.Validate())

	cfg.Stripe.SecretKey = "sk_test"
	assert.ErrorContains(t, cfg.Validate(), "STRIPE_WEBHOOK_SECRET")
}
