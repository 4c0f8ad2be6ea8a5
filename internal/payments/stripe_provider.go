package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
)

// StripeLogger defines the logging contract for Stripe provider operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripePaymentIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeProviderConfig configures the StripeProvider.
type StripeProviderConfig struct {
	APIKey        string
	WebhookSecret string
	Backends      *stripe.Backends
	Logger        StripeLogger
	Clock         func() time.Time
	Intents       stripePaymentIntentAPI
}

// StripeProvider implements the card flow on Stripe Payment Intents.
type StripeProvider struct {
	intents       stripePaymentIntentAPI
	webhookSecret string
	clock         func() time.Time
	logger        StripeLogger
}

// NewStripeProvider constructs the card provider from the given configuration.
func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Intents == nil {
		return nil, errors.New("stripe: api key is required")
	}

	intents := cfg.Intents
	if intents == nil {
		sc := client.New(apiKey, cfg.Backends)
		intents = sc.PaymentIntents
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeProvider{
		intents:       intents,
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// CreateSession opens a Payment Intent for the order total and returns its
// client secret for the storefront to complete.
func (p *StripeProvider) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	if p == nil {
		return Session{}, errors.New("stripe: provider is nil")
	}
	if req.Amount <= 0 {
		return Session{}, errors.New("stripe: session amount must be positive")
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if email := strings.TrimSpace(req.CustomerEmail); email != "" {
		params.ReceiptEmail = stripe.String(email)
	}
	if len(req.Metadata) > 0 {
		params.Metadata = make(map[string]string, len(req.Metadata))
		for k, v := range req.Metadata {
			params.Metadata[k] = v
		}
	}

	intent, err := p.intents.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("stripe: create payment intent: %w", err)
	}

	p.logger(ctx, "payments.stripe.intent.created", map[string]any{
		"paymentIntent": intent.ID,
		"amount":        intent.Amount,
		"currency":      intent.Currency,
	})

	return Session{
		ID:           intent.ID,
		Provider:     ProviderCard,
		ClientSecret: intent.ClientSecret,
		ExpiresAt:    p.clock().Add(30 * time.Minute),
		Raw:          stripeRaw(intent),
	}, nil
}

// Confirm fetches the Payment Intent and reports whether the charge landed.
func (p *StripeProvider) Confirm(ctx context.Context, req ConfirmRequest) (Confirmation, error) {
	if p == nil {
		return Confirmation{}, errors.New("stripe: provider is nil")
	}
	id := strings.TrimSpace(req.SessionID)
	if id == "" {
		return Confirmation{}, errors.New("stripe: payment intent id is required")
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	intent, err := p.intents.Get(id, params)
	if err != nil {
		return Confirmation{}, fmt.Errorf("stripe: retrieve payment intent: %w", err)
	}

	succeeded := intent.Status == stripe.PaymentIntentStatusSucceeded
	p.logger(ctx, "payments.stripe.intent.checked", map[string]any{
		"paymentIntent": intent.ID,
		"status":        intent.Status,
	})

	return Confirmation{
		Provider:      ProviderCard,
		TransactionID: intent.ID,
		Succeeded:     succeeded,
		Amount:        intent.Amount,
		Currency:      strings.ToUpper(string(intent.Currency)),
		Raw:           stripeRaw(intent),
	}, nil
}

// VerifyWebhook checks the Stripe-Signature header against the payload and
// returns the parsed event. A missing secret or a bad signature both surface
// as ErrInvalidSignature.
func (p *StripeProvider) VerifyWebhook(payload []byte, signatureHeader string) (stripe.Event, error) {
	if p == nil || p.webhookSecret == "" {
		return stripe.Event{}, fmt.Errorf("%w: webhook secret not configured", ErrInvalidSignature)
	}
	event, err := webhook.ConstructEvent(payload, signatureHeader, p.webhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return event, nil
}

func stripeRaw(intent *stripe.PaymentIntent) map[string]any {
	raw := map[string]any{}
	if intent == nil {
		return raw
	}
	if data, err := json.Marshal(intent); err == nil {
		_ = json.Unmarshal(data, &raw)
	} else {
		raw["payment_intent"] = intent
	}
	return raw
}
