package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fabricacollective/amplify/internal"
	"github.com/fabricacollective/amplify/internal/ai"
	"github.com/fabricacollective/amplify/internal/ai/anthropic"
	"github.com/fabricacollective/amplify/internal/ai/gemini"
	"github.com/fabricacollective/amplify/internal/ai/mock"
	"github.com/fabricacollective/amplify/internal/billing"
	"github.com/fabricacollective/amplify/internal/email"
	"github.com/fabricacollective/amplify/internal/handler"
	"github.com/fabricacollective/amplify/internal/metrics"
	"github.com/fabricacollective/amplify/internal/middleware"
	"github.com/fabricacollective/amplify/internal/origin"
	"github.com/fabricacollective/amplify/internal/ratelimit"
	"github.com/fabricacollective/amplify/internal/repository"
	"github.com/fabricacollective/amplify/internal/service"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// cleanupInterval controls how often expired sessions and reset tokens
// are swept from the database.
const cleanupInterval = 1 * time.Hour

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	// Initialize repository
	repo := repository.New(db)

	// Initialize AI provider
	provider, err := newAIProvider(cfg, logger)
	if err != nil {
		return fmt.Errorf("ai provider initialization failed: %w", err)
	}
	logger.Info("AI provider ready", "provider", provider.Name())

	// Initialize billing (optional; nil when Stripe is not configured)
	var billingService billing.Service
	prices := billing.PriceConfig{
		PremiumMonthlyPriceID: cfg.StripePremiumMonthlyPriceID,
		PremiumYearlyPriceID:  cfg.StripePremiumYearlyPriceID,
	}
	if cfg.StripeSecretKey != "" {
		billingService = billing.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret, prices)
		logger.Info("Stripe billing enabled")
	} else {
		logger.Warn("Stripe billing disabled; billing endpoints will reject requests")
	}

	// Initialize email (Mailhog by default in development)
	emailService := email.NewSMTPService(email.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}, cfg.SiteURL, logger)

	// Initialize services
	userService := service.NewUserService(repo, logger)
	usageService := service.NewUsageService(repo, logger)
	generationService := service.NewGenerationService(provider, usageService, repo, logger)
	contentService := service.NewContentService(repo, logger)

	// Initialize the request-gating layer
	originGuard := origin.NewGuard(cfg.SiteURL)
	limiter := ratelimit.New(logger)
	if cfg.RateLimitSweepEnabled {
		limiter.Start()
		defer limiter.Stop()
	}

	// Initialize middleware
	isSecure := cfg.Env != "development"
	originMw := middleware.NewOriginMiddleware(originGuard, logger)
	authMw := middleware.NewAuthMiddleware(userService, logger)
	rlMw := middleware.NewRateLimitMiddleware(limiter, logger)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	securityMw := middleware.NewSecurityHeadersMiddleware(isSecure)
	metricsAuthMw := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(userService, emailService, logger)
	generateHandler := handler.NewGenerateHandler(generationService, logger)
	libraryHandler := handler.NewLibraryHandler(contentService, logger)
	usageHandler := handler.NewUsageHandler(usageService, logger)
	billingHandler := handler.NewBillingHandler(billingService, userService, cfg.SiteURL, prices, logger)
	webhookHandler := handler.NewWebhookHandler(billingService, userService, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			logger.Error("health check failed", "error", err)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Metrics (basic auth; unprotected if no credentials are configured)
	mux.Handle("GET /metrics", metricsAuthMw.Handler(promhttp.Handler()))

	// Middleware stacks. Gating order is fixed: origin check, then session
	// resolution, then rate limiting, then the handler's own quota checks.
	requireUser := middleware.Stack(authMw.WithUser, authMw.RequireUser)

	// Auth routes. Login/signup/reset are rate limited by IP since there is
	// no session yet.
	mux.Handle("POST /api/auth/signup",
		rlMw.Limit(middleware.PolicySignup)(http.HandlerFunc(authHandler.HandleSignup)))
	mux.Handle("POST /api/auth/login",
		rlMw.Limit(middleware.PolicyLogin)(http.HandlerFunc(authHandler.HandleLogin)))
	mux.Handle("POST /api/auth/logout", http.HandlerFunc(authHandler.HandleLogout))
	mux.Handle("GET /api/auth/me", requireUser(http.HandlerFunc(authHandler.HandleMe)))
	mux.Handle("POST /api/auth/password", requireUser(http.HandlerFunc(authHandler.HandleChangePassword)))
	mux.Handle("POST /api/auth/password-reset",
		rlMw.Limit(middleware.PolicyPasswordReset)(http.HandlerFunc(authHandler.HandlePasswordResetRequest)))
	mux.Handle("POST /api/auth/password-reset/confirm",
		rlMw.Limit(middleware.PolicyPasswordReset)(http.HandlerFunc(authHandler.HandlePasswordResetConfirm)))

	// Generation routes. Anonymous requests are allowed at a lower rate
	// and are never metered against a monthly quota.
	mux.Handle("POST /api/generate",
		middleware.Stack(authMw.WithUser, rlMw.Limit(middleware.PolicyGenerate))(
			http.HandlerFunc(generateHandler.HandleGenerate)))
	mux.Handle("POST /api/remix",
		middleware.Stack(authMw.WithUser, rlMw.Limit(middleware.PolicyRemix))(
			http.HandlerFunc(generateHandler.HandleRemix)))
	mux.HandleFunc("GET /api/personas", generateHandler.HandlePersonas)
	mux.HandleFunc("GET /api/disciplines", generateHandler.HandleDisciplines)

	// Library routes (all require auth)
	mux.Handle("POST /api/library", requireUser(http.HandlerFunc(libraryHandler.HandleSave)))
	mux.Handle("GET /api/library", requireUser(http.HandlerFunc(libraryHandler.HandleList)))
	mux.Handle("GET /api/library/{id}", requireUser(http.HandlerFunc(libraryHandler.HandleGet)))
	mux.Handle("DELETE /api/library/{id}", requireUser(http.HandlerFunc(libraryHandler.HandleDelete)))

	// Usage
	mux.Handle("GET /api/usage", requireUser(http.HandlerFunc(usageHandler.HandleGetUsage)))

	// Billing (all require auth)
	mux.Handle("GET /api/billing", requireUser(http.HandlerFunc(billingHandler.HandleGetBilling)))
	mux.Handle("POST /api/billing/checkout", requireUser(http.HandlerFunc(billingHandler.HandleCreateCheckout)))
	mux.Handle("POST /api/billing/portal", requireUser(http.HandlerFunc(billingHandler.HandleOpenPortal)))
	mux.Handle("POST /api/billing/cancel", requireUser(http.HandlerFunc(billingHandler.HandleCancelSubscription)))
	mux.Handle("POST /api/billing/reactivate", requireUser(http.HandlerFunc(billingHandler.HandleReactivateSubscription)))

	// Stripe webhook (public; authenticated by signature)
	webhookHandler.RegisterRoutes(mux)

	// Outer middleware: origin gate wraps everything so state-changing
	// cross-origin requests are rejected before any handler runs.
	root := middleware.Stack(
		metrics.Middleware,
		loggingMw.Handler,
		securityMw.Handler,
		originMw.Handler,
	)(mux)

	// ==========================================================================
	// Background cleanup
	// ==========================================================================

	cleanupStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-cleanupStop:
				return
			case <-ticker.C:
				if err := userService.DeleteExpiredSessions(ctx); err != nil {
					logger.Error("session cleanup failed", "error", err)
				}
				if err := userService.DeleteExpiredPasswordResetTokens(ctx); err != nil {
					logger.Error("reset token cleanup failed", "error", err)
				}
			}
		}
	}()

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: root,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")
	close(cleanupStop)

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

// newAIProvider builds the configured content provider.
func newAIProvider(cfg *internal.Config, logger *slog.Logger) (ai.Provider, error) {
	common := ai.ProviderConfig{
		MaxRetries:     cfg.AIMaxRetries,
		RetryBaseDelay: cfg.AIRetryBaseDelay,
		RequestTimeout: cfg.AIRequestTimeout,
	}

	switch cfg.AIProvider {
	case "gemini":
		return gemini.New(gemini.Config{
			APIKey:         cfg.GeminiAPIKey,
			Model:          cfg.GeminiModel,
			ProviderConfig: common,
		}, logger)
	case "anthropic":
		return anthropic.New(anthropic.Config{
			APIKey:         cfg.AnthropicAPIKey,
			Model:          cfg.AnthropicModel,
			ProviderConfig: common,
		}, logger)
	default:
		return mock.New(logger), nil
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
