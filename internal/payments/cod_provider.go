package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CODProvider is the cash-on-delivery pseudo provider. No money moves at
// checkout, so every confirmation succeeds immediately with a locally minted
// transaction id.
type CODProvider struct {
	clock    func() time.Time
	sequence func() string
}

// CODOption customises the provider.
type CODOption func(*CODProvider)

// WithCODClock injects a fixed clock for tests.
func WithCODClock(clock func() time.Time) CODOption {
	return func(p *CODProvider) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithCODSequence overrides the transaction id generator.
func WithCODSequence(sequence func() string) CODOption {
	return func(p *CODProvider) {
		if sequence != nil {
			p.sequence = sequence
		}
	}
}

// NewCODProvider constructs the pseudo provider.
func NewCODProvider(opts ...CODOption) *CODProvider {
	p := &CODProvider{
		clock: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.sequence == nil {
		p.sequence = func() string {
			return fmt.Sprintf("cod_%d", p.clock().UTC().UnixNano())
		}
	}
	return p
}

// CreateSession hands back a synthetic session so the checkout flow stays
// uniform across providers.
func (p *CODProvider) CreateSession(_ context.Context, req SessionRequest) (Session, error) {
	if req.Amount <= 0 {
		return Session{}, errors.New("cod: session amount must be positive")
	}
	return Session{
		ID:        p.sequence(),
		Provider:  ProviderCOD,
		ExpiresAt: p.clock().UTC().Add(24 * time.Hour),
	}, nil
}

// Confirm always succeeds. The caller records the payment itself as pending
// until cash changes hands at the door.
func (p *CODProvider) Confirm(_ context.Context, req ConfirmRequest) (Confirmation, error) {
	transactionID := strings.TrimSpace(req.SessionID)
	if transactionID == "" {
		transactionID = p.sequence()
	}
	return Confirmation{
		Provider:      ProviderCOD,
		TransactionID: transactionID,
		Succeeded:     true,
	}, nil
}
