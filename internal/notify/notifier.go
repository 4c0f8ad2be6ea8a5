package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	domain "github.com/evansbakery/api/internal/domain"
)

// Logger mirrors the event logging contract used across services.
type Logger func(ctx context.Context, event string, fields map[string]any)

// Notifier delivers order confirmations to an outbound webhook. Delivery is
// best effort: failures are logged and never propagated to the checkout path.
type Notifier struct {
	endpoint string
	http     *http.Client
	logger   Logger
	printer  *message.Printer
}

// Option customises the Notifier.
type Option func(*Notifier)

// WithHTTPClient overrides the HTTP client used for deliveries.
func WithHTTPClient(client *http.Client) Option {
	return func(n *Notifier) {
		if client != nil {
			n.http = client
		}
	}
}

// WithLogger wires an event logger.
func WithLogger(logger Logger) Option {
	return func(n *Notifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// New builds a Notifier for the given webhook endpoint. An empty endpoint
// yields a notifier that silently drops every notification.
func New(endpoint string, opts ...Option) *Notifier {
	n := &Notifier{
		endpoint: strings.TrimSpace(endpoint),
		http:     &http.Client{Timeout: 10 * time.Second},
		logger:   func(context.Context, string, map[string]any) {},
		printer:  message.NewPrinter(language.English),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	return n
}

type orderNotification struct {
	Event       string  `json:"event"`
	OrderID     string  `json:"orderId"`
	OrderNumber string  `json:"orderNumber"`
	Customer    string  `json:"customer"`
	Total       float64 `json:"total"`
	Summary     string  `json:"summary"`
	Status      string  `json:"status"`
}

// OrderConfirmed announces a freshly confirmed order.
func (n *Notifier) OrderConfirmed(ctx context.Context, order domain.Order) {
	if n == nil || n.endpoint == "" {
		return
	}

	summary := n.printer.Sprintf("Order %s confirmed for %s, %d item(s), %s %.2f total",
		order.OrderNumber, order.Customer.Name, order.TotalQuantity(), domain.DefaultCurrency, order.Pricing.Total)

	payload := orderNotification{
		Event:       "order.confirmed",
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Customer:    order.Customer.Name,
		Total:       order.Pricing.Total,
		Summary:     summary,
		Status:      order.Status,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		n.logger(ctx, "notify.encode_failed", map[string]any{"orderId": order.ID, "error": err.Error()})
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		n.logger(ctx, "notify.request_failed", map[string]any{"orderId": order.ID, "error": err.Error()})
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		n.logger(ctx, "notify.delivery_failed", map[string]any{"orderId": order.ID, "error": err.Error()})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.logger(ctx, "notify.delivery_failed", map[string]any{
			"orderId": order.ID,
			"error":   fmt.Sprintf("webhook responded with status %d", resp.StatusCode),
		})
		return
	}
	n.logger(ctx, "notify.delivered", map[string]any{"orderId": order.ID})
}
