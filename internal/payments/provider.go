package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Provider keys accepted from clients. "card" is the hosted card flow, "paypal"
// the redirect-then-capture flow, and "cod" cash on delivery.
const (
	ProviderCard   = "card"
	ProviderPayPal = "paypal"
	ProviderCOD    = "cod"
)

// ErrUnsupportedProvider is returned when the manager cannot locate a provider.
var ErrUnsupportedProvider = errors.New("payments: unsupported provider")

// ErrInvalidSignature is returned when a webhook payload fails verification.
var ErrInvalidSignature = errors.New("payments: invalid webhook signature")

// SessionLineItem describes one order line included in a checkout session.
type SessionLineItem struct {
	Name      string
	SKU       string
	Quantity  int64
	Amount    int64
	Currency  string
}

// SessionRequest captures the payload required to open a payment session.
type SessionRequest struct {
	Amount         int64
	Currency       string
	CustomerEmail  string
	SuccessURL     string
	CancelURL      string
	Metadata       map[string]string
	IdempotencyKey string
	Items          []SessionLineItem
}

// Session is the provider session handed back to the storefront client.
type Session struct {
	ID           string
	Provider     string
	ClientSecret string
	RedirectURL  string
	ExpiresAt    time.Time
	Raw          map[string]any
}

// ConfirmRequest identifies the provider session or intent to confirm.
type ConfirmRequest struct {
	SessionID string
	Metadata  map[string]string
}

// Confirmation is the normalised outcome of a confirmation attempt. Succeeded
// is true only when the provider reports the money as captured.
type Confirmation struct {
	Provider      string
	TransactionID string
	Succeeded     bool
	Amount        int64
	Currency      string
	Raw           map[string]any
}

// Provider defines the contract every payment adapter implements.
type Provider interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
	Confirm(ctx context.Context, req ConfirmRequest) (Confirmation, error)
}

// Manager coordinates provider selection behind a single entry point.
type Manager struct {
	providers       map[string]Provider
	defaultProvider string
}

// ManagerOption configures optional behaviour when building a Manager.
type ManagerOption func(*Manager)

// WithDefaultProvider overrides the provider used when none is requested.
func WithDefaultProvider(provider string) ManagerOption {
	return func(m *Manager) {
		m.defaultProvider = strings.TrimSpace(strings.ToLower(provider))
	}
}

// NewManager constructs a Manager over the supplied providers.
func NewManager(providers map[string]Provider, opts ...ManagerOption) (*Manager, error) {
	if len(providers) == 0 {
		return nil, errors.New("payments: at least one provider is required")
	}
	copyMap := make(map[string]Provider, len(providers))
	for k, v := range providers {
		key := strings.TrimSpace(strings.ToLower(k))
		if key == "" || v == nil {
			return nil, fmt.Errorf("payments: invalid provider registration for key %q", k)
		}
		copyMap[key] = v
	}
	m := &Manager{
		providers: copyMap,
	}
	if _, ok := copyMap[ProviderCard]; ok {
		m.defaultProvider = ProviderCard
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Providers lists the registered provider keys.
func (m *Manager) Providers() []string {
	keys := make([]string, 0, len(m.providers))
	for key := range m.providers {
		keys = append(keys, key)
	}
	return keys
}

func (m *Manager) resolve(name string) (string, Provider, error) {
	if m == nil || len(m.providers) == 0 {
		return "", nil, ErrUnsupportedProvider
	}
	if key := strings.TrimSpace(strings.ToLower(name)); key != "" {
		if p, ok := m.providers[key]; ok {
			return key, p, nil
		}
		return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, key)
	}
	if def := m.defaultProvider; def != "" {
		if p, ok := m.providers[def]; ok {
			return def, p, nil
		}
	}
	if len(m.providers) == 1 {
		for key, p := range m.providers {
			return key, p, nil
		}
	}
	return "", nil, ErrUnsupportedProvider
}

// CreateSession delegates to the named provider.
func (m *Manager) CreateSession(ctx context.Context, provider string, req SessionRequest) (Session, error) {
	key, p, err := m.resolve(provider)
	if err != nil {
		return Session{}, err
	}
	session, err := p.CreateSession(ctx, req)
	if err != nil {
		return Session{}, err
	}
	session.Provider = key
	return session, nil
}

// Confirm delegates to the named provider.
func (m *Manager) Confirm(ctx context.Context, provider string, req ConfirmRequest) (Confirmation, error) {
	key, p, err := m.resolve(provider)
	if err != nil {
		return Confirmation{}, err
	}
	confirmation, err := p.Confirm(ctx, req)
	if err != nil {
		return Confirmation{}, err
	}
	confirmation.Provider = key
	return confirmation, nil
}
