package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	domain "github.com/evansbakery/api/internal/domain"
)

func confirmedOrder() domain.Order {
	return domain.Order{
		ID:          "ord_01",
		OrderNumber: "EB-20240310-A1B2C3",
		Customer:    domain.Customer{Name: "Farhana Rahman"},
		Items: []domain.OrderItem{
			{ProductID: "prod_brownie", Quantity: 2},
			{ProductID: "prod_cake", Quantity: 1},
		},
		Pricing: domain.PricingBreakdown{Total: 6789.20},
		Status:  domain.OrderStatusConfirmed,
	}
}

func TestNotifierDeliversOrderConfirmed(t *testing.T) {
	var received orderNotification
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode notification: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	notifier := New(server.URL)
	notifier.OrderConfirmed(context.Background(), confirmedOrder())

	if received.Event != "order.confirmed" {
		t.Fatalf("event = %q", received.Event)
	}
	if received.OrderNumber != "EB-20240310-A1B2C3" {
		t.Fatalf("order number = %q", received.OrderNumber)
	}
	if !strings.Contains(received.Summary, "3 item(s)") {
		t.Fatalf("summary = %q", received.Summary)
	}
	if !strings.Contains(received.Summary, "6,789.20") {
		t.Fatalf("summary should carry formatted total: %q", received.Summary)
	}
}

func TestNotifierSwallowsDeliveryFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	var events []string
	notifier := New(server.URL, WithLogger(func(_ context.Context, event string, _ map[string]any) {
		events = append(events, event)
	}))
	notifier.OrderConfirmed(context.Background(), confirmedOrder())

	if len(events) != 1 || events[0] != "notify.delivery_failed" {
		t.Fatalf("events = %v", events)
	}
}

func TestNotifierWithoutEndpointIsNoop(t *testing.T) {
	notifier := New("")
	notifier.OrderConfirmed(context.Background(), confirmedOrder())
}
