package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/evansbakery/api/internal/di"
	"github.com/evansbakery/api/internal/handlers"
	"github.com/evansbakery/api/internal/platform/auth"
	"github.com/evansbakery/api/internal/platform/config"
	"github.com/evansbakery/api/internal/platform/idempotency"
	"github.com/evansbakery/api/internal/platform/observability"
	"github.com/evansbakery/api/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")

	cfg, err := config.Load(ctx)
	if err != nil {
		var validation *config.ValidationError
		if errors.As(err, &validation) {
			logger.Fatal("configuration invalid", zap.Strings("fields", validation.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(startedAt)

	container, err := di.NewContainer(ctx, cfg, logger, buildInfo)
	if err != nil {
		logger.Fatal("failed to assemble dependencies", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("container close error", zap.Error(err))
		}
	}()

	authenticator := auth.NewAuthenticator(container.Tokens)

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(container.Services.System),
	)

	webhookOpts := []handlers.WebhookOption{
		handlers.WithWebhookLogger(observability.NewEventLogger(logger.Named("webhooks"))),
	}
	if container.Stripe != nil {
		webhookOpts = append(webhookOpts, handlers.WithStripeVerifier(container.Stripe))
	}
	if strings.TrimSpace(cfg.Webhooks.SigningSecret) != "" {
		validator, err := auth.NewHMACValidator(cfg.Webhooks.SigningSecret)
		if err != nil {
			logger.Fatal("failed to initialise webhook validator", zap.Error(err))
		}
		webhookOpts = append(webhookOpts, handlers.WithWebhookHMAC(validator))
	}

	replayStore := idempotency.NewMemoryStore()
	replayMiddleware := idempotency.Middleware(replayStore,
		idempotency.WithLogger(observability.NewEventLogger(logger.Named("idempotency"))),
	)

	router := handlers.NewRouter(
		handlers.WithRouterLogger(logger.Named("http")),
		handlers.WithIdempotency(replayMiddleware),
		handlers.WithRouterMetrics(container.Metrics),
		handlers.WithAuthenticator(authenticator),
		handlers.WithAllowedOrigins(cfg.HTTP.AllowedOrigins),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithOrderHandlers(handlers.NewOrderHandlers(container.Services.Checkout, container.Services.Orders)),
		handlers.WithPaymentHandlers(handlers.NewPaymentHandlers(container.Services.Checkout)),
		handlers.WithWebhookHandlers(handlers.NewWebhookHandlers(webhookOpts...)),
		handlers.WithAdminHandlers(handlers.NewAdminHandlers(container.Services.Admin, container.Services.Orders)),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("evans bakery api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildInfoFromEnv(started time.Time) services.BuildInfo {
	version := strings.TrimSpace(os.Getenv("API_BUILD_VERSION"))
	if version == "" {
		version = "dev"
	}
	environment := strings.TrimSpace(os.Getenv("API_ENVIRONMENT"))
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		Environment: environment,
		StartedAt:   started,
	}
}
