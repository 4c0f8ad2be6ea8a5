package services

import (
	"context"
	"time"

	domain "github.com/evansbakery/api/internal/domain"
)

// CheckoutItem is one cart line as submitted by the storefront. Unit prices
// are looked at for pricing but never trusted as totals.
type CheckoutItem struct {
	ProductID string
	Name      string
	UnitPrice float64
	Quantity  int
}

// CheckoutCustomer identifies the buyer.
type CheckoutCustomer struct {
	Name  string
	Email string
	Phone string
}

// CheckoutShipping carries the delivery method and address.
type CheckoutShipping struct {
	Method string
	Line1  string
	City   string
	Postal string
}

// BeginCheckoutCommand opens a payment session for a cart snapshot.
type BeginCheckoutCommand struct {
	Provider string
	Customer CheckoutCustomer
	Shipping CheckoutShipping
	Items    []CheckoutItem
}

// CheckoutSession is handed back to the storefront so the customer can pay.
type CheckoutSession struct {
	Provider     string
	SessionID    string
	ClientSecret string
	RedirectURL  string
	ExpiresAt    time.Time
	Pricing      domain.PricingBreakdown
}

// CompleteCheckoutCommand finalises an order once the customer returns from
// the payment flow.
type CompleteCheckoutCommand struct {
	Provider  string
	SessionID string
	Customer  CheckoutCustomer
	Shipping  CheckoutShipping
	Items     []CheckoutItem
	Notes     string
}

// CheckoutService owns the order lifecycle from cart snapshot to confirmed order.
type CheckoutService interface {
	BeginCheckout(ctx context.Context, cmd BeginCheckoutCommand) (CheckoutSession, error)
	CompleteCheckout(ctx context.Context, cmd CompleteCheckoutCommand) (domain.Order, error)
}

// OrderListQuery filters order listings.
type OrderListQuery struct {
	Status string
	Limit  int
	Offset int
}

// OrderService exposes read access and status management for stored orders.
type OrderService interface {
	Get(ctx context.Context, id string) (domain.Order, error)
	List(ctx context.Context, query OrderListQuery) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id, status string) (domain.Order, error)
	Delete(ctx context.Context, id string) error
}

// AdminSession is an authenticated back-office session.
type AdminSession struct {
	Token     string
	ExpiresAt time.Time
	Name      string
	Email     string
	Role      string
}

// DashboardSummary aggregates the admin landing page counters.
type DashboardSummary struct {
	TotalOrders   int
	TotalSales    float64
	TotalProducts int
	RecentOrders  []domain.Order
}

// AdminService backs the admin surface: login, dashboard and exports.
type AdminService interface {
	Login(ctx context.Context, email, password string) (AdminSession, error)
	Dashboard(ctx context.Context) (DashboardSummary, error)
	ExportOrdersCSV(ctx context.Context) ([]byte, error)
}

// SystemService provides dependency health reports for readiness probes.
type SystemService interface {
	HealthReport(ctx context.Context) (domain.SystemHealthReport, error)
}
