package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/evansbakery/api/internal/domain"
	"github.com/evansbakery/api/internal/payments"
	"github.com/evansbakery/api/internal/platform/textutil"
	"github.com/evansbakery/api/internal/repositories"
)

const (
	orderIDPrefix     = "ord_"
	orderNumberPrefix = "EB"

	customerFieldLimit = 120
	notesFieldLimit    = 500
)

var (
	// ErrCheckoutInvalidInput signals the caller supplied invalid checkout data.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrPaymentNotCompleted indicates the provider did not report the payment as captured.
	ErrPaymentNotCompleted = errors.New("checkout: payment not completed")
	// ErrProviderUnavailable indicates the payment provider rejected or could not serve the call.
	ErrProviderUnavailable = errors.New("checkout: payment provider unavailable")
	// ErrStoreUnavailable indicates no order store backend could serve the call.
	ErrStoreUnavailable = errors.New("checkout: order store unavailable")
)

// checkoutPaymentManager abstracts payments.Manager for easier testing.
type checkoutPaymentManager interface {
	CreateSession(ctx context.Context, provider string, req payments.SessionRequest) (payments.Session, error)
	Confirm(ctx context.Context, provider string, req payments.ConfirmRequest) (payments.Confirmation, error)
}

// checkoutMetrics records payment and order counters.
type checkoutMetrics interface {
	RecordPayment(ctx context.Context, provider string, succeeded bool)
	RecordOrderCreated(ctx context.Context, provider string)
}

// checkoutNotifier announces confirmed orders to downstream systems.
type checkoutNotifier interface {
	OrderConfirmed(ctx context.Context, order domain.Order)
}

type noopCheckoutMetrics struct{}

func (noopCheckoutMetrics) RecordPayment(context.Context, string, bool) {}
func (noopCheckoutMetrics) RecordOrderCreated(context.Context, string) {}

type noopCheckoutNotifier struct{}

func (noopCheckoutNotifier) OrderConfirmed(context.Context, domain.Order) {}

// CheckoutServiceDeps wires the dependencies required by the checkout service.
type CheckoutServiceDeps struct {
	Orders      repositories.OrderRepository
	Products    repositories.ProductRepository
	Payments    checkoutPaymentManager
	Notifier    checkoutNotifier
	Metrics     checkoutMetrics
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	orders   repositories.OrderRepository
	products repositories.ProductRepository
	payments checkoutPaymentManager
	notifier checkoutNotifier
	metrics  checkoutMetrics
	now      func() time.Time
	newID    func() string
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewCheckoutService constructs a CheckoutService validating required dependencies.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Orders == nil {
		return nil, errors.New("checkout service: order repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("checkout service: product repository is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("checkout service: payment manager is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = noopCheckoutNotifier{}
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopCheckoutMetrics{}
	}

	return &checkoutService{
		orders:   deps.Orders,
		products: deps.Products,
		payments: deps.Payments,
		notifier: notifier,
		metrics:  metrics,
		now: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// BeginCheckout prices the cart snapshot server side and opens a payment
// session with the requested provider.
func (s *checkoutService) BeginCheckout(ctx context.Context, cmd BeginCheckoutCommand) (CheckoutSession, error) {
	customer, shipping, items, err := normalizeCheckoutInput(cmd.Customer, cmd.Shipping, cmd.Items)
	if err != nil {
		return CheckoutSession{}, err
	}

	pricing, err := computeCheckoutPricing(items, shipping.Method)
	if err != nil {
		return CheckoutSession{}, err
	}

	session, err := s.payments.CreateSession(ctx, cmd.Provider, payments.SessionRequest{
		Amount:        domain.MinorUnits(pricing.Total),
		Currency:      domain.DefaultCurrency,
		CustomerEmail: customer.Email,
		Metadata: map[string]string{
			"customerEmail":  customer.Email,
			"shippingMethod": shipping.Method,
		},
		Items: buildSessionLineItems(items),
	})
	if err != nil {
		if errors.Is(err, payments.ErrUnsupportedProvider) {
			return CheckoutSession{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		s.logger(ctx, "checkout.session_failed", map[string]any{
			"provider": cmd.Provider,
			"error":    err.Error(),
		})
		return CheckoutSession{}, ErrProviderUnavailable
	}

	return CheckoutSession{
		Provider:     session.Provider,
		SessionID:    session.ID,
		ClientSecret: session.ClientSecret,
		RedirectURL:  session.RedirectURL,
		ExpiresAt:    session.ExpiresAt,
		Pricing:      pricing,
	}, nil
}

// CompleteCheckout confirms the payment with the provider, persists the order
// and decrements stock. Nothing is persisted unless the provider reports the
// payment as captured.
func (s *checkoutService) CompleteCheckout(ctx context.Context, cmd CompleteCheckoutCommand) (domain.Order, error) {
	customer, shipping, items, err := normalizeCheckoutInput(cmd.Customer, cmd.Shipping, cmd.Items)
	if err != nil {
		return domain.Order{}, err
	}
	sessionID := strings.TrimSpace(cmd.SessionID)
	provider := strings.TrimSpace(strings.ToLower(cmd.Provider))
	if provider != payments.ProviderCOD && sessionID == "" {
		return domain.Order{}, fmt.Errorf("%w: session id is required", ErrCheckoutInvalidInput)
	}

	pricing, err := computeCheckoutPricing(items, shipping.Method)
	if err != nil {
		return domain.Order{}, err
	}

	confirmation, err := s.payments.Confirm(ctx, cmd.Provider, payments.ConfirmRequest{SessionID: sessionID})
	if err != nil {
		if errors.Is(err, payments.ErrUnsupportedProvider) {
			return domain.Order{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		s.logger(ctx, "checkout.confirm_failed", map[string]any{
			"provider":  cmd.Provider,
			"sessionId": sessionID,
			"error":     err.Error(),
		})
		return domain.Order{}, ErrProviderUnavailable
	}

	s.metrics.RecordPayment(ctx, confirmation.Provider, confirmation.Succeeded)
	if !confirmation.Succeeded {
		return domain.Order{}, ErrPaymentNotCompleted
	}

	// Confirmations may be replayed by the client or a webhook. The provider
	// transaction id is the dedupe key.
	if existing, err := s.orders.FindByTransactionID(ctx, confirmation.TransactionID); err == nil {
		return existing, nil
	} else if unavailable(err) {
		return domain.Order{}, ErrStoreUnavailable
	}

	now := s.now()
	order := s.buildOrder(customer, shipping, items, pricing, confirmation, cmd.Notes, now)

	if err := s.orders.Insert(ctx, order); err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsConflict() {
			if existing, findErr := s.orders.FindByTransactionID(ctx, confirmation.TransactionID); findErr == nil {
				return existing, nil
			}
		}
		// The customer has been charged but the order is not on file. This
		// needs operator attention, not an automatic refund.
		s.logger(ctx, "checkout.paid_order_not_persisted", map[string]any{
			"orderId":       order.ID,
			"orderNumber":   order.OrderNumber,
			"provider":      confirmation.Provider,
			"transactionId": confirmation.TransactionID,
			"total":         order.Pricing.Total,
			"error":         err.Error(),
		})
		return domain.Order{}, ErrStoreUnavailable
	}

	s.metrics.RecordOrderCreated(ctx, confirmation.Provider)
	s.decrementStock(ctx, order)
	s.notifier.OrderConfirmed(ctx, order)

	return order, nil
}

func (s *checkoutService) buildOrder(customer CheckoutCustomer, shipping CheckoutShipping, items []CheckoutItem, pricing domain.PricingBreakdown, confirmation payments.Confirmation, notes string, now time.Time) domain.Order {
	id := s.newID()
	paymentStatus := domain.PaymentStatusCompleted
	if confirmation.Provider == payments.ProviderCOD {
		paymentStatus = domain.PaymentStatusPending
	}

	orderItems := make([]domain.OrderItem, len(items))
	for i, item := range items {
		orderItems[i] = domain.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		}
	}

	return domain.Order{
		ID:          orderIDPrefix + id,
		OrderNumber: formatOrderNumber(now, id),
		Customer: domain.Customer{
			Name:  customer.Name,
			Email: customer.Email,
			Phone: customer.Phone,
		},
		Shipping: domain.ShippingDetails{
			Method: shipping.Method,
			Address: domain.ShippingAddress{
				Line1:  shipping.Line1,
				City:   shipping.City,
				Postal: shipping.Postal,
			},
		},
		Items:   orderItems,
		Pricing: pricing,
		Status:  domain.OrderStatusConfirmed,
		Payment: domain.PaymentRecord{
			Provider:      confirmation.Provider,
			TransactionID: confirmation.TransactionID,
			Status:        paymentStatus,
		},
		Notes:     textutil.CleanTextLimit(notes, notesFieldLimit),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *checkoutService) decrementStock(ctx context.Context, order domain.Order) {
	for _, item := range order.Items {
		if err := s.products.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			s.logger(ctx, "checkout.stock_decrement_failed", map[string]any{
				"orderId":   order.ID,
				"productId": item.ProductID,
				"quantity":  item.Quantity,
				"error":     err.Error(),
			})
		}
	}
}

func normalizeCheckoutInput(customer CheckoutCustomer, shipping CheckoutShipping, items []CheckoutItem) (CheckoutCustomer, CheckoutShipping, []CheckoutItem, error) {
	customer.Name = textutil.CleanTextLimit(customer.Name, customerFieldLimit)
	customer.Email = strings.TrimSpace(customer.Email)
	customer.Phone = textutil.CleanTextLimit(customer.Phone, customerFieldLimit)

	if customer.Name == "" {
		return customer, shipping, nil, fmt.Errorf("%w: customer name is required", ErrCheckoutInvalidInput)
	}
	if customer.Email == "" || !strings.Contains(customer.Email, "@") {
		return customer, shipping, nil, fmt.Errorf("%w: valid customer email is required", ErrCheckoutInvalidInput)
	}

	shipping.Method = strings.ToLower(strings.TrimSpace(shipping.Method))
	shipping.Line1 = textutil.CleanTextLimit(shipping.Line1, customerFieldLimit)
	shipping.City = textutil.CleanTextLimit(shipping.City, customerFieldLimit)
	shipping.Postal = textutil.CleanTextLimit(shipping.Postal, customerFieldLimit)
	if _, err := domain.ShippingRate(shipping.Method); err != nil {
		return customer, shipping, nil, fmt.Errorf("%w: unknown shipping method %q", ErrCheckoutInvalidInput, shipping.Method)
	}
	if shipping.Line1 == "" {
		return customer, shipping, nil, fmt.Errorf("%w: shipping address is required", ErrCheckoutInvalidInput)
	}

	if len(items) == 0 {
		return customer, shipping, nil, fmt.Errorf("%w: at least one item is required", ErrCheckoutInvalidInput)
	}
	normalized := make([]CheckoutItem, 0, len(items))
	for _, item := range items {
		item.ProductID = strings.TrimSpace(item.ProductID)
		item.Name = textutil.CleanTextLimit(item.Name, customerFieldLimit)
		if item.ProductID == "" {
			return customer, shipping, nil, fmt.Errorf("%w: item product id is required", ErrCheckoutInvalidInput)
		}
		if item.Quantity <= 0 {
			return customer, shipping, nil, fmt.Errorf("%w: item quantity must be positive", ErrCheckoutInvalidInput)
		}
		// Zero is a valid unit price, promo items ship for free.
		if item.UnitPrice < 0 {
			return customer, shipping, nil, fmt.Errorf("%w: item unit price must not be negative", ErrCheckoutInvalidInput)
		}
		normalized = append(normalized, item)
	}

	return customer, shipping, normalized, nil
}

func computeCheckoutPricing(items []CheckoutItem, shippingMethod string) (domain.PricingBreakdown, error) {
	lines := make([]domain.OrderItem, len(items))
	for i, item := range items {
		lines[i] = domain.OrderItem{
			ProductID: item.ProductID,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		}
	}
	pricing, err := domain.ComputePricing(lines, shippingMethod)
	if err != nil {
		return domain.PricingBreakdown{}, fmt.Errorf("%w: %v", ErrCheckoutInvalidInput, err)
	}
	return pricing, nil
}

func buildSessionLineItems(items []CheckoutItem) []payments.SessionLineItem {
	lines := make([]payments.SessionLineItem, 0, len(items))
	for _, item := range items {
		lines = append(lines, payments.SessionLineItem{
			Name:     item.Name,
			SKU:      item.ProductID,
			Quantity: int64(item.Quantity),
			Amount:   domain.MinorUnits(item.UnitPrice),
			Currency: domain.DefaultCurrency,
		})
	}
	return lines
}

func formatOrderNumber(now time.Time, id string) string {
	suffix := strings.ToUpper(id)
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return fmt.Sprintf("%s-%s-%s", orderNumberPrefix, now.Format("20060102"), suffix)
}

func unavailable(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsUnavailable()
}
