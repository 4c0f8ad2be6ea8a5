package payments

import (
	"context"
	"testing"
)

func TestCODProviderConfirmAlwaysSucceeds(t *testing.T) {
	provider := NewCODProvider(WithCODClock(fixedClock))

	confirmation, err := provider.Confirm(context.Background(), ConfirmRequest{SessionID: "cod_42"})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !confirmation.Succeeded {
		t.Fatalf("cash on delivery confirmation must succeed")
	}
	if confirmation.TransactionID != "cod_42" {
		t.Fatalf("transaction id = %q", confirmation.TransactionID)
	}
}

func TestCODProviderMintsTransactionID(t *testing.T) {
	provider := NewCODProvider(WithCODSequence(func() string { return "cod_fixed" }))

	confirmation, err := provider.Confirm(context.Background(), ConfirmRequest{})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmation.TransactionID != "cod_fixed" {
		t.Fatalf("transaction id = %q", confirmation.TransactionID)
	}
}

func TestCODProviderCreateSessionValidatesAmount(t *testing.T) {
	provider := NewCODProvider()
	if _, err := provider.CreateSession(context.Background(), SessionRequest{}); err == nil {
		t.Fatalf("expected error for zero amount")
	}
}
