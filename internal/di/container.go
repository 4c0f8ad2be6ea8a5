package di

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/evansbakery/api/internal/domain"
	"github.com/evansbakery/api/internal/notify"
	"github.com/evansbakery/api/internal/payments"
	"github.com/evansbakery/api/internal/platform/auth"
	"github.com/evansbakery/api/internal/platform/config"
	pfirestore "github.com/evansbakery/api/internal/platform/firestore"
	"github.com/evansbakery/api/internal/platform/observability"
	"github.com/evansbakery/api/internal/repositories"
	firestoreRepo "github.com/evansbakery/api/internal/repositories/firestore"
	"github.com/evansbakery/api/internal/repositories/flatfile"
	"github.com/evansbakery/api/internal/services"
)

// Services bundles the service-layer contracts the HTTP handlers rely upon.
type Services struct {
	Checkout services.CheckoutService
	Orders   services.OrderService
	Admin    services.AdminService
	System   services.SystemService
}

// Container wires stores, payment providers, and services for runtime use.
type Container struct {
	Config   config.Config
	Store    *repositories.DualStore
	FlatFile *flatfile.Store
	Payments *payments.Manager
	Stripe   *payments.StripeProvider
	Tokens   *auth.TokenService
	Metrics  *observability.Metrics
	Notifier *notify.Notifier
	Services Services

	provider *pfirestore.Provider
}

// NewContainer assembles the runtime dependency graph from configuration.
func NewContainer(ctx context.Context, cfg config.Config, logger *zap.Logger, build services.BuildInfo) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Container{Config: cfg}

	flatStore, err := flatfile.New(cfg.Store.FlatFilePath)
	if err != nil {
		return nil, fmt.Errorf("open flat file store: %w", err)
	}
	c.FlatFile = flatStore

	var structured repositories.Backend
	if cfg.Store.StructuredEnabled() {
		c.provider = pfirestore.NewProvider(cfg.Store)
		backend, err := firestoreRepo.NewBackend(c.provider)
		if err != nil {
			return nil, fmt.Errorf("build structured backend: %w", err)
		}
		structured = backend
	}

	storeLogger := observability.NewEventLogger(logger.Named("store"))
	dual, err := repositories.NewDualStore(structured, flatStore, repositories.WithDualStoreLogger(storeLogger))
	if err != nil {
		return nil, fmt.Errorf("build order store: %w", err)
	}
	c.Store = dual

	if err := c.buildPayments(logger); err != nil {
		return nil, err
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("build metrics: %w", err)
	}
	c.Metrics = metrics

	tokens, err := auth.NewTokenService(cfg.Auth.SessionSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("build token service: %w", err)
	}
	c.Tokens = tokens

	c.Notifier = notify.New(cfg.Notify.WebhookURL,
		notify.WithLogger(notify.Logger(observability.NewEventLogger(logger.Named("notify")))),
	)

	if err := c.buildServices(logger, build); err != nil {
		return nil, err
	}

	if err := c.seedAdmin(ctx, logger); err != nil {
		return nil, err
	}

	return c, nil
}

// Close releases the structured backend client, if one was configured.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.provider == nil {
		return nil
	}
	return c.provider.Close(ctx)
}

func (c *Container) buildPayments(logger *zap.Logger) error {
	cfg := c.Config
	providers := make(map[string]payments.Provider, 3)
	paymentsLogger := observability.NewEventLogger(logger.Named("payments"))

	if strings.TrimSpace(cfg.PSP.StripeAPIKey) != "" {
		stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
			APIKey:        cfg.PSP.StripeAPIKey,
			WebhookSecret: cfg.PSP.StripeWebhookSecret,
			Logger:        payments.StripeLogger(paymentsLogger),
			Clock:         time.Now,
		})
		if err != nil {
			return fmt.Errorf("build stripe provider: %w", err)
		}
		c.Stripe = stripeProvider
		providers[payments.ProviderCard] = stripeProvider
	}

	if strings.TrimSpace(cfg.PSP.PayPalClientID) != "" && strings.TrimSpace(cfg.PSP.PayPalSecret) != "" {
		paypalProvider, err := payments.NewPayPalProvider(payments.PayPalProviderConfig{
			ClientID: cfg.PSP.PayPalClientID,
			Secret:   cfg.PSP.PayPalSecret,
			BaseURL:  cfg.PSP.PayPalBaseURL,
			Logger:   payments.PayPalLogger(paymentsLogger),
			Clock:    time.Now,
		})
		if err != nil {
			return fmt.Errorf("build paypal provider: %w", err)
		}
		providers[payments.ProviderPayPal] = paypalProvider
	}

	providers[payments.ProviderCOD] = payments.NewCODProvider()

	manager, err := payments.NewManager(providers)
	if err != nil {
		return fmt.Errorf("build payment manager: %w", err)
	}
	c.Payments = manager
	return nil
}

func (c *Container) buildServices(logger *zap.Logger, build services.BuildInfo) error {
	idGenerator := func() string { return ulid.Make().String() }

	checkoutSvc, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Orders:      c.Store.Orders(),
		Products:    c.Store.Products(),
		Payments:    c.Payments,
		Notifier:    c.Notifier,
		Metrics:     c.Metrics,
		Clock:       time.Now,
		IDGenerator: idGenerator,
		Logger:      observability.NewEventLogger(logger.Named("checkout")),
	})
	if err != nil {
		return fmt.Errorf("build checkout service: %w", err)
	}
	c.Services.Checkout = checkoutSvc

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders: c.Store.Orders(),
		Clock:  time.Now,
		Logger: observability.NewEventLogger(logger.Named("orders")),
	})
	if err != nil {
		return fmt.Errorf("build order service: %w", err)
	}
	c.Services.Orders = orderSvc

	adminSvc, err := services.NewAdminService(services.AdminServiceDeps{
		Orders:   c.Store.Orders(),
		Products: c.Store.Products(),
		Admins:   c.FlatFile,
		Tokens:   c.Tokens,
		Clock:    time.Now,
		Logger:   observability.NewEventLogger(logger.Named("admin")),
	})
	if err != nil {
		return fmt.Errorf("build admin service: %w", err)
	}
	c.Services.Admin = adminSvc

	healthRepo, err := repositories.NewDependencyHealthRepository(c.healthChecks())
	if err != nil {
		return fmt.Errorf("build health repository: %w", err)
	}
	systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: healthRepo,
		Clock:            time.Now,
		Build:            build,
	})
	if err != nil {
		return fmt.Errorf("build system service: %w", err)
	}
	c.Services.System = systemSvc

	return nil
}

func (c *Container) healthChecks() []repositories.DependencyCheck {
	checks := []repositories.DependencyCheck{
		{
			Name:    "flat-file",
			Timeout: time.Second,
			Check:   c.FlatFile.Ping,
		},
	}
	if c.provider != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name:    "structured-store",
			Timeout: 1500 * time.Millisecond,
			Check:   c.provider.Ping,
		})
	}
	return checks
}

// seedAdmin creates the default back-office account when the configured seed
// email is not on file yet. Existing accounts are left untouched.
func (c *Container) seedAdmin(ctx context.Context, logger *zap.Logger) error {
	cfg := c.Config.Auth
	email := strings.ToLower(strings.TrimSpace(cfg.SeedAdminEmail))
	if email == "" || strings.TrimSpace(cfg.SeedAdminPassword) == "" {
		return nil
	}

	_, err := c.FlatFile.FindAdminByEmail(ctx, email)
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
		return fmt.Errorf("look up seed admin: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.SeedAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash seed admin password: %w", err)
	}

	admin := domain.Admin{
		ID:           "adm_" + ulid.Make().String(),
		Name:         cfg.SeedAdminName,
		Email:        email,
		PasswordHash: string(hash),
		Role:         auth.RoleAdmin,
		CreatedAt:    time.Now().UTC(),
	}
	if err := c.FlatFile.UpsertAdmin(ctx, admin); err != nil {
		return fmt.Errorf("seed admin account: %w", err)
	}

	logger.Info("seeded default admin account", zap.String("email", email))
	return nil
}
