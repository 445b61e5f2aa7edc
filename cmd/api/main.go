package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/voiceagents/internal/agent"
	"github.com/nikhilbhutani/voiceagents/internal/api"
	"github.com/nikhilbhutani/voiceagents/internal/api/handlers"
	"github.com/nikhilbhutani/voiceagents/internal/api/middleware"
	"github.com/nikhilbhutani/voiceagents/internal/audit"
	"github.com/nikhilbhutani/voiceagents/internal/auth"
	"github.com/nikhilbhutani/voiceagents/internal/billing"
	"github.com/nikhilbhutani/voiceagents/internal/cache"
	"github.com/nikhilbhutani/voiceagents/internal/calls"
	"github.com/nikhilbhutani/voiceagents/internal/config"
	"github.com/nikhilbhutani/voiceagents/internal/database"
	"github.com/nikhilbhutani/voiceagents/internal/knowledgebase"
	"github.com/nikhilbhutani/voiceagents/internal/llm"
	"github.com/nikhilbhutani/voiceagents/internal/phonenumber"
	"github.com/nikhilbhutani/voiceagents/internal/queue"
	"github.com/nikhilbhutani/voiceagents/internal/storage"
	"github.com/nikhilbhutani/voiceagents/internal/team"
	"github.com/nikhilbhutani/voiceagents/internal/telephony"
	"github.com/nikhilbhutani/voiceagents/internal/tenant"
	"github.com/nikhilbhutani/voiceagents/internal/vapi"
	"github.com/nikhilbhutani/voiceagents/internal/webhook"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db, os.DirFS(cfg.Database.MigrationsPath)); err != nil {
		slog.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable, stripe dedupe and webhook delivery will fail", "error", err)
	}
	defer rdb.Close()
	rc := cache.NewCache(rdb)

	queueClient := queue.NewClient(cfg.Redis)
	defer queueClient.Close()

	tenants := tenant.NewService(db)
	agents := agent.NewPGStore(db)
	platform := vapi.NewClient(cfg.Vapi.BaseURL, cfg.Vapi.APIKey)
	files := storage.NewSupabaseStorage(cfg.Storage.SupabaseURL, cfg.Storage.SupabaseKey, cfg.Storage.Bucket)

	describer := knowledgebase.NewLLMDescriber(llm.NewGateway(cfg.LLM), cfg.LLM.DefaultModel)
	kb := knowledgebase.NewSynchronizer(agents, platform, describer, cfg.Vapi.DefaultModel)

	agentSvc := agent.NewService(agents, platform, files, kb, webhook.NewDispatcher(), agent.Config{
		DefaultModel:   cfg.Vapi.DefaultModel,
		VoiceProvider:  cfg.Vapi.VoiceProvider,
		DefaultVoice:   cfg.Vapi.DefaultVoice,
		ServerURL:      cfg.Vapi.ServerURL,
		ServerSecret:   cfg.Vapi.ServerSecret,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
		SignedURLTTL:   time.Duration(cfg.Storage.SignedURLSeconds) * time.Second,
	})

	// Billing stays nil without a Stripe key so dependants can tell.
	var (
		payments      billing.Payments
		numberBilling phonenumber.Billing
	)
	if cfg.Stripe.SecretKey != "" {
		sc := billing.NewStripeClient(cfg.Stripe.SecretKey)
		payments, numberBilling = sc, sc
	} else {
		slog.Warn("STRIPE_SECRET_KEY not set, billing disabled")
	}
	catalog := billing.NewCatalog(cfg.Stripe)
	billingSvc := billing.NewService(catalog, payments, cfg.App.PublicURL)
	stripeEvents := billing.NewWebhookProcessor(cfg.Stripe.WebhookSecret, catalog, tenants, rc,
		time.Duration(cfg.Stripe.EventDedupeTTLHrs)*time.Hour)

	tel := telephony.NewTwilioProvider(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken)
	numbers := phonenumber.NewService(phonenumber.NewPGStore(db), tel, platform, numberBilling, catalog, agents,
		phonenumber.Config{
			Country:          cfg.Twilio.Country,
			TwilioAccountSID: cfg.Twilio.AccountSID,
			TwilioAuthToken:  cfg.Twilio.AuthToken,
			ExtraNumberPrice: cfg.Stripe.ExtraNumberPrice,
		})

	var mailer team.Mailer
	if cfg.Mail.ResendKey != "" {
		mailer = team.NewResendMailer(cfg.Mail.ResendKey, cfg.Mail.From)
	} else {
		slog.Warn("RESEND_API_KEY not set, invitation emails disabled")
	}
	teamSvc := team.NewService(team.NewPGStore(db), mailer, cfg.App.PublicURL)

	keys := auth.NewKeyService(auth.NewPGKeyStore(db))
	callSvc := calls.NewService(cfg.Vapi.ServerSecret, agents, tenants, webhook.NewNotifier(queueClient))

	limiter := middleware.NewRateLimiter(float64(cfg.Server.RateLimitRPS), cfg.Server.RateLimitBurst)
	stopSweep := make(chan struct{})
	go limiter.Run(stopSweep)
	defer close(stopSweep)

	router := api.NewRouter(api.Services{
		Auth: auth.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.APIKeyHeader, tenants, keys),
		Health: map[string]handlers.Pinger{
			"database": db,
			"redis":    rc,
		},
		Audit:         audit.NewService(db),
		Agents:        agentSvc,
		PhoneNumbers:  numbers,
		NumberCounts:  numbers,
		Plans:         catalog,
		Billing:       billingSvc,
		StripeEvents:  stripeEvents,
		Keys:          keys,
		Team:          teamSvc,
		Calls:         callSvc,
		RateLimiter:   limiter,
		Origins:       cfg.Server.AllowedOrigins,
		MaxUploadSize: cfg.Storage.MaxUploadBytes,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}
