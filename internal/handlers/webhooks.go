package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v78"

	"github.com/evansbakery/api/internal/payments"
	"github.com/evansbakery/api/internal/platform/auth"
	"github.com/evansbakery/api/internal/platform/httpx"
)

const webhookBodyLimit = 256 * 1024

const stripeSignatureHeader = "Stripe-Signature"

// StripeWebhookVerifier checks a Stripe payload against its signature header.
type StripeWebhookVerifier interface {
	VerifyWebhook(payload []byte, signatureHeader string) (stripe.Event, error)
}

// WebhookHandlers receives asynchronous provider notifications.
type WebhookHandlers struct {
	stripe StripeWebhookVerifier
	hmac   *auth.HMACValidator
	logger func(ctx context.Context, event string, fields map[string]any)
}

// WebhookOption customises WebhookHandlers construction.
type WebhookOption func(*WebhookHandlers)

// WithStripeVerifier wires the card provider's signature check.
func WithStripeVerifier(verifier StripeWebhookVerifier) WebhookOption {
	return func(h *WebhookHandlers) {
		h.stripe = verifier
	}
}

// WithWebhookHMAC wires the shared-secret validator for non-card providers.
func WithWebhookHMAC(validator *auth.HMACValidator) WebhookOption {
	return func(h *WebhookHandlers) {
		h.hmac = validator
	}
}

// WithWebhookLogger sets the structured event logger.
func WithWebhookLogger(logger func(ctx context.Context, event string, fields map[string]any)) WebhookOption {
	return func(h *WebhookHandlers) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewWebhookHandlers constructs WebhookHandlers.
func NewWebhookHandlers(opts ...WebhookOption) *WebhookHandlers {
	h := &WebhookHandlers{
		logger: func(context.Context, string, map[string]any) {},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

type webhookAck struct {
	Received bool   `json:"received"`
	Provider string `json:"provider"`
	Event    string `json:"event,omitempty"`
}

// Receive validates the notification signature and acknowledges it. Order
// state is driven by the confirm endpoint; webhooks are recorded for
// reconciliation only.
func (h *WebhookHandlers) Receive(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	body, err := readLimitedBody(r, webhookBodyLimit)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}

	switch provider {
	case payments.ProviderCard:
		if h.stripe == nil {
			httpx.WriteError(r.Context(), w, httpx.NewError("provider_unavailable", "card webhooks are not configured", http.StatusBadGateway))
			return
		}
		event, err := h.stripe.VerifyWebhook(body, r.Header.Get(stripeSignatureHeader))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		h.logger(r.Context(), "webhook.received", map[string]any{
			"provider": provider,
			"type":     string(event.Type),
			"eventId":  event.ID,
		})
		writeJSONResponse(w, http.StatusOK, webhookAck{Received: true, Provider: provider, Event: string(event.Type)})
	case payments.ProviderPayPal, payments.ProviderCOD:
		if h.hmac != nil {
			if err := h.hmac.VerifyBody(body, r.Header.Get("X-Signature")); err != nil {
				writeServiceError(w, r, payments.ErrInvalidSignature)
				return
			}
		}
		h.logger(r.Context(), "webhook.received", map[string]any{"provider": provider})
		writeJSONResponse(w, http.StatusOK, webhookAck{Received: true, Provider: provider})
	default:
		httpx.WriteError(r.Context(), w, httpx.NewError("not_found", "unknown webhook provider", http.StatusNotFound))
	}
}
