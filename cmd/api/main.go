package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/orthopulse/growth-platform/cmd/mainconfig"
	"github.com/orthopulse/growth-platform/internal/accounts"
	"github.com/orthopulse/growth-platform/internal/api/router"
	"github.com/orthopulse/growth-platform/internal/billing"
	appconfig "github.com/orthopulse/growth-platform/internal/config"
	"github.com/orthopulse/growth-platform/internal/domaincheck"
	"github.com/orthopulse/growth-platform/internal/gbp"
	"github.com/orthopulse/growth-platform/internal/notifications"
	"github.com/orthopulse/growth-platform/internal/notify"
	"github.com/orthopulse/growth-platform/internal/oauthbridge"
	"github.com/orthopulse/growth-platform/internal/observability/metrics"
	"github.com/orthopulse/growth-platform/internal/onboarding"
	"github.com/orthopulse/growth-platform/internal/organizations"
	"github.com/orthopulse/growth-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting growth-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Postgres. The pgx pool backs the account/org/selection repositories;
	// notifications use database/sql.
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	sqlDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open sql db", "error", err)
		os.Exit(1)
	}
	defer func() { _ = sqlDB.Close() }()

	// Redis holds the resumable onboarding flow state.
	redisOpts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()

	// Repositories.
	accountRepo := accounts.NewRepository(pool)
	orgRepo := organizations.NewRepository(pool)
	selectionRepo := gbp.NewRepository(pool)
	notificationRepo := notifications.NewRepository(sqlDB)

	// Google OAuth and Business Profile.
	oauthService := oauthbridge.NewGoogleOAuthService(oauthbridge.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURI:  cfg.GoogleRedirectURI,
	}, pool, logger)
	gbpClient := gbp.NewClient(cfg.GBPAPIBaseURL, oauthService, logger)
	oauthHandler := oauthbridge.NewHandler(oauthService, accountRepo, oauthbridge.NewRegistry(), cfg.AppOrigin, logger).
		WithAwaitTimeout(cfg.GoogleOAuthTimeout)

	// Billing.
	checkout := billing.NewCheckoutService(
		cfg.BillingSecretKey, cfg.BillingPriceID,
		cfg.BillingSuccessURL, cfg.BillingCancelURL,
		logger,
	).WithDryRun(cfg.AllowFakeCheckout)
	billingWebhook := billing.NewWebhookHandler(cfg.BillingWebhookKey, accountRepo, logger)

	// Milestone notifications: feed items always, email when configured.
	emailSender := buildEmailSender(ctx, cfg, logger)
	milestones := notify.NewService(emailSender, notificationRepo, cfg.AppOrigin, logger)

	// Onboarding orchestration.
	onboardingMetrics := metrics.NewOnboardingMetrics(nil)
	orchestrator := onboarding.NewOrchestrator(onboarding.Config{
		Store:      onboarding.NewStore(redisClient),
		Accounts:   accountRepo,
		Orgs:       organizations.NewService(orgRepo, accountRepo, logger),
		Locations:  gbpClient,
		Selections: selectionRepo,
		Checkout:   checkout,
		Milestones: milestones,
		Metrics:    onboardingMetrics,
		Logger:     logger,
	})

	// Notification stream: poll the feed and push whole snapshots to
	// connected sockets.
	hub := notifications.NewHub(streamOriginCheck(cfg.CORSAllowedOrigins), logger)
	defer hub.Close()
	poller := notifications.NewPoller(notificationRepo, hub, cfg.NotificationsPollInterval, logger)
	go poller.Run(ctx)

	checker := domaincheck.NewChecker(cfg.DomainCheckTimeout, orgRepo, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		SessionSecret:      cfg.SessionJWTSecret,
		DomainCheck: domaincheck.NewHandler(checker, logger).
			WithMetrics(onboardingMetrics).
			WithLiveChecks(cfg.DomainCheckQuiet),
		Onboarding:         onboarding.NewHandler(orchestrator, logger),
		GoogleOAuth:        oauthHandler,
		Accounts:           accounts.NewHandler(accountRepo, logger),
		Notifications:      notifications.NewHandler(notificationRepo, logger),
		NotificationsHub:   hub,
		BillingWebhook:     billingWebhook,
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		DomainCheckRate:    5,
		DomainCheckBurst:   10,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// buildEmailSender picks the transactional email transport. Without
// credentials the stub keeps milestone emails visible in logs.
func buildEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "ses":
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config, falling back to stub email", "error", err)
			return notify.NewStubEmailSender(logger)
		}
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger)
	case "sendgrid":
		if cfg.SendGridAPIKey != "" {
			return notify.NewSendGridSender(notify.SendGridConfig{
				APIKey:    cfg.SendGridAPIKey,
				FromEmail: cfg.SendGridFromEmail,
				FromName:  cfg.SendGridFromName,
			}, logger)
		}
	}
	return notify.NewStubEmailSender(logger)
}

// streamOriginCheck mirrors the CORS allowlist for websocket upgrades.
func streamOriginCheck(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	allow := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		allow[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allow[origin]
		return ok
	}
}
