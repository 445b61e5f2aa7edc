package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Server   ServerConfig
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	LLM      LLMConfig
	Storage  StorageConfig
	Vapi     VapiConfig
	Twilio   TwilioConfig
	Stripe   StripeConfig
	Mail     MailConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
	RateLimitRPS   int
	RateLimitBurst int
}

type AppConfig struct {
	PublicURL string // dashboard base URL used in redirects and emails
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret    string
	APIKeyHeader string
}

type LLMConfig struct {
	OpenAIKey        string
	AnthropicKey     string
	DefaultProvider  string
	DefaultModel     string
	FallbackProvider string
	MaxRetries       int
}

type StorageConfig struct {
	SupabaseURL      string
	SupabaseKey      string
	Bucket           string
	SignedURLSeconds int
	MaxUploadBytes   int64
}

type VapiConfig struct {
	BaseURL       string
	APIKey        string
	ServerSecret  string // shared secret expected on inbound platform webhooks
	ServerURL     string // where the platform posts call events
	DefaultModel  string
	DefaultVoice  string
	VoiceProvider string
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	Country    string
}

type StripeConfig struct {
	SecretKey         string
	WebhookSecret     string
	ExtraNumberPrice  string
	StarterPrice      string
	ProPrice          string
	BusinessPrice     string
	StarterNumbers    int
	ProNumbers        int
	BusinessNumbers   int
	StarterMinutes    int
	ProMinutes        int
	BusinessMinutes   int
	EventDedupeTTLHrs int
}

type MailConfig struct {
	ResendKey string
	From      string
}

func Load() (*Config, error) {
	cfg := &Config{}

	intVars := []struct {
		key      string
		fallback int
		dst      *int
	}{
		{"SERVER_PORT", 8080, &cfg.Server.Port},
		{"RATE_LIMIT_RPS", 20, &cfg.Server.RateLimitRPS},
		{"RATE_LIMIT_BURST", 40, &cfg.Server.RateLimitBurst},
		{"DB_MAX_CONNS", 20, &cfg.Database.MaxConns},
		{"DB_MIN_CONNS", 2, &cfg.Database.MinConns},
		{"REDIS_DB", 0, &cfg.Redis.DB},
		{"LLM_MAX_RETRIES", 2, &cfg.LLM.MaxRetries},
		{"STORAGE_SIGNED_URL_SECONDS", 3600, &cfg.Storage.SignedURLSeconds},
		{"PLAN_STARTER_NUMBERS", 1, &cfg.Stripe.StarterNumbers},
		{"PLAN_PRO_NUMBERS", 3, &cfg.Stripe.ProNumbers},
		{"PLAN_BUSINESS_NUMBERS", 10, &cfg.Stripe.BusinessNumbers},
		{"PLAN_STARTER_MINUTES", 300, &cfg.Stripe.StarterMinutes},
		{"PLAN_PRO_MINUTES", 1500, &cfg.Stripe.ProMinutes},
		{"PLAN_BUSINESS_MINUTES", 6000, &cfg.Stripe.BusinessMinutes},
		{"STRIPE_EVENT_DEDUPE_TTL_HOURS", 72, &cfg.Stripe.EventDedupeTTLHrs},
	}
	for _, v := range intVars {
		n, err := getEnvInt(v.key, v.fallback)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", v.key, err)
		}
		*v.dst = n
	}

	maxUpload, err := getEnvInt("STORAGE_MAX_UPLOAD_MB", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid STORAGE_MAX_UPLOAD_MB: %w", err)
	}

	cfg.Server.Host = getEnv("SERVER_HOST", "0.0.0.0")
	cfg.Server.AllowedOrigins = splitList(getEnv("CORS_ALLOWED_ORIGINS", "*"))
	cfg.App = AppConfig{
		PublicURL: strings.TrimRight(getEnv("APP_PUBLIC_URL", "http://localhost:3000"), "/"),
	}
	cfg.Database.URL = getEnv("DATABASE_URL", "")
	cfg.Database.MigrationsPath = getEnv("MIGRATIONS_PATH", "migrations")
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Auth = AuthConfig{
		JWTSecret:    getEnv("SUPABASE_JWT_SECRET", ""),
		APIKeyHeader: getEnv("API_KEY_HEADER", "X-API-Key"),
	}
	cfg.LLM.OpenAIKey = getEnv("OPENAI_API_KEY", "")
	cfg.LLM.AnthropicKey = getEnv("ANTHROPIC_API_KEY", "")
	cfg.LLM.DefaultProvider = getEnv("LLM_DEFAULT_PROVIDER", "openai")
	cfg.LLM.DefaultModel = getEnv("LLM_DEFAULT_MODEL", "gpt-4o-mini")
	cfg.LLM.FallbackProvider = getEnv("LLM_FALLBACK_PROVIDER", "")
	cfg.Storage.SupabaseURL = getEnv("SUPABASE_URL", "")
	cfg.Storage.SupabaseKey = getEnv("SUPABASE_SERVICE_KEY", "")
	cfg.Storage.Bucket = getEnv("STORAGE_BUCKET", "agent-files")
	cfg.Storage.MaxUploadBytes = int64(maxUpload) << 20
	cfg.Vapi = VapiConfig{
		BaseURL:       strings.TrimRight(getEnv("VAPI_BASE_URL", "https://api.vapi.ai"), "/"),
		APIKey:        getEnv("VAPI_API_KEY", ""),
		ServerSecret:  getEnv("VAPI_SERVER_SECRET", ""),
		ServerURL:     getEnv("VAPI_SERVER_URL", ""),
		DefaultModel:  getEnv("VAPI_DEFAULT_MODEL", "gpt-4o"),
		DefaultVoice:  getEnv("VAPI_DEFAULT_VOICE", "Elliot"),
		VoiceProvider: getEnv("VAPI_VOICE_PROVIDER", "vapi"),
	}
	cfg.Twilio = TwilioConfig{
		AccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		AuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		Country:    getEnv("TWILIO_COUNTRY", "US"),
	}
	cfg.Stripe.SecretKey = getEnv("STRIPE_SECRET_KEY", "")
	cfg.Stripe.WebhookSecret = getEnv("STRIPE_WEBHOOK_SECRET", "")
	cfg.Stripe.ExtraNumberPrice = getEnv("STRIPE_PRICE_EXTRA_NUMBER", "")
	cfg.Stripe.StarterPrice = getEnv("STRIPE_PRICE_STARTER", "")
	cfg.Stripe.ProPrice = getEnv("STRIPE_PRICE_PRO", "")
	cfg.Stripe.BusinessPrice = getEnv("STRIPE_PRICE_BUSINESS", "")
	cfg.Mail = MailConfig{
		ResendKey: getEnv("RESEND_API_KEY", ""),
		From:      getEnv("MAIL_FROM", "Voice Agents <noreply@example.com>"),
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "SUPABASE_JWT_SECRET")
	}
	if c.Vapi.APIKey == "" {
		missing = append(missing, "VAPI_API_KEY")
	}
	if c.Stripe.SecretKey != "" && c.Stripe.WebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
