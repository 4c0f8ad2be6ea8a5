package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/evansbakery/api/internal/platform/auth"
	"github.com/evansbakery/api/internal/platform/httpx"
	"github.com/evansbakery/api/internal/platform/observability"
)

const (
	defaultAPIPrefix     = "/api"
	defaultRouterTimeout = 60 * time.Second
)

// Options carries the wiring for the HTTP router.
type Options struct {
	basePath string

	logger  *zap.Logger
	metrics *observability.Metrics

	authenticator  *auth.Authenticator
	allowedOrigins []string
	idempotency    func(http.Handler) http.Handler

	health   *HealthHandlers
	orders   *OrderHandlers
	payments *PaymentHandlers
	webhooks *WebhookHandlers
	admin    *AdminHandlers
}

// RouterOption customises router construction.
type RouterOption func(*Options)

// WithBasePath overrides the API route prefix.
func WithBasePath(prefix string) RouterOption {
	return func(o *Options) {
		if prefix != "" {
			o.basePath = prefix
		}
	}
}

// WithRouterLogger wires the base logger injected into request contexts.
func WithRouterLogger(logger *zap.Logger) RouterOption {
	return func(o *Options) {
		o.logger = logger
	}
}

// WithRouterMetrics wires request metrics collection.
func WithRouterMetrics(metrics *observability.Metrics) RouterOption {
	return func(o *Options) {
		o.metrics = metrics
	}
}

// WithAuthenticator wires bearer token verification for the admin surface.
func WithAuthenticator(authenticator *auth.Authenticator) RouterOption {
	return func(o *Options) {
		o.authenticator = authenticator
	}
}

// WithAllowedOrigins sets the CORS origin allow list. Empty allows any origin.
func WithAllowedOrigins(origins []string) RouterOption {
	return func(o *Options) {
		o.allowedOrigins = origins
	}
}

// WithIdempotency applies replay protection to the storefront POST endpoints.
func WithIdempotency(middleware func(http.Handler) http.Handler) RouterOption {
	return func(o *Options) {
		o.idempotency = middleware
	}
}

// WithHealthHandlers wires the liveness and readiness endpoints.
func WithHealthHandlers(h *HealthHandlers) RouterOption {
	return func(o *Options) {
		o.health = h
	}
}

// WithOrderHandlers wires the storefront order endpoints.
func WithOrderHandlers(h *OrderHandlers) RouterOption {
	return func(o *Options) {
		o.orders = h
	}
}

// WithPaymentHandlers wires the payment session endpoints.
func WithPaymentHandlers(h *PaymentHandlers) RouterOption {
	return func(o *Options) {
		o.payments = h
	}
}

// WithWebhookHandlers wires the provider webhook endpoint.
func WithWebhookHandlers(h *WebhookHandlers) RouterOption {
	return func(o *Options) {
		o.webhooks = h
	}
}

// WithAdminHandlers wires the back-office endpoints.
func WithAdminHandlers(h *AdminHandlers) RouterOption {
	return func(o *Options) {
		o.admin = h
	}
}

// NewRouter assembles the HTTP routing tree.
func NewRouter(opts ...RouterOption) http.Handler {
	options := &Options{
		basePath: defaultAPIPrefix,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if options.logger != nil {
		r.Use(observability.InjectLoggerMiddleware(options.logger))
		r.Use(observability.RecoveryMiddleware(options.logger))
	}
	if options.metrics != nil {
		r.Use(observability.RequestLoggerMiddleware(options.metrics))
	}
	r.Use(middleware.Timeout(defaultRouterTimeout))
	r.Use(CORSMiddleware(options.allowedOrigins))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("not_found", "route not found", http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", "method not allowed", http.StatusMethodNotAllowed))
	})

	if options.health != nil {
		r.Get("/healthz", options.health.Healthz)
		r.Get("/readyz", options.health.Readyz)
	}

	replayGuard := func(rt chi.Router) chi.Router {
		if options.idempotency != nil {
			return rt.With(options.idempotency)
		}
		return rt
	}

	r.Route(options.basePath, func(api chi.Router) {
		if options.orders != nil {
			api.Route("/orders", func(rt chi.Router) {
				replayGuard(rt).Post("/", options.orders.Create)
				rt.Get("/{orderID}", options.orders.Get)
			})
		}

		if options.payments != nil {
			api.Route("/payments", func(rt chi.Router) {
				rt.Post("/session", options.payments.CreateSession)
				replayGuard(rt).Post("/confirm", options.payments.Confirm)
			})
		}

		if options.webhooks != nil {
			api.Post("/webhooks/{provider}", options.webhooks.Receive)
		}

		if options.admin != nil {
			api.Route("/admin", func(rt chi.Router) {
				rt.Post("/login", options.admin.Login)

				rt.Group(func(protected chi.Router) {
					if options.authenticator != nil {
						protected.Use(options.authenticator.RequireAuth(auth.RoleAdmin))
					}
					protected.Get("/dashboard", options.admin.Dashboard)
					protected.Get("/orders", options.admin.ListOrders)
					protected.Get("/orders/export", options.admin.ExportOrders)
					protected.Get("/orders/{orderID}", options.admin.GetOrder)
					protected.Patch("/orders/{orderID}/status", options.admin.UpdateOrderStatus)
					protected.Delete("/orders/{orderID}", options.admin.DeleteOrder)
				})
			})
		}
	})

	return r
}
