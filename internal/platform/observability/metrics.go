package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/evansbakery/api"

// Metrics bundles the counters recorded across the request and payment paths.
type Metrics struct {
	requests        metric.Int64Counter
	requestLatency  metric.Float64Histogram
	paymentOutcomes metric.Int64Counter
	ordersCreated   metric.Int64Counter
}

// NewMetrics registers the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	requests, err := meter.Int64Counter("http.server.requests",
		metric.WithDescription("Completed HTTP requests by route and status class"))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("http.server.duration",
		metric.WithDescription("Request latency in milliseconds"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	payments, err := meter.Int64Counter("payments.confirmations",
		metric.WithDescription("Payment confirmation attempts by provider and outcome"))
	if err != nil {
		return nil, err
	}
	orders, err := meter.Int64Counter("orders.created",
		metric.WithDescription("Orders persisted after successful payment confirmation"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		requests:        requests,
		requestLatency:  latency,
		paymentOutcomes: payments,
		ordersCreated:   orders,
	}, nil
}

// RecordRequest counts a completed HTTP request.
func (m *Metrics) RecordRequest(ctx context.Context, method, route string, status int, latency time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", SanitizeMethod(method)),
		attribute.String("route", SanitizeRoute(route)),
		attribute.Int("status", status),
	)
	m.requests.Add(ctx, 1, attrs)
	m.requestLatency.Record(ctx, float64(latency.Milliseconds()), attrs)
}

// RecordPayment counts a payment confirmation attempt.
func (m *Metrics) RecordPayment(ctx context.Context, provider string, succeeded bool) {
	if m == nil {
		return
	}
	m.paymentOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", sanitizeString(provider, 32)),
		attribute.Bool("succeeded", succeeded),
	))
}

// RecordOrderCreated counts a persisted order.
func (m *Metrics) RecordOrderCreated(ctx context.Context, provider string) {
	if m == nil {
		return
	}
	m.ordersCreated.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", sanitizeString(provider, 32)),
	))
}
