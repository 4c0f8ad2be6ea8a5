package domain

import (
	"strings"
	"time"
)

// Order statuses as stored and exposed through the API.
const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Payment statuses tracked alongside the order status.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// Health status values shared by the monitoring endpoints.
const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
	HealthStatusError    = "error"
)

// Staff move confirmed orders straight to shipped or delivered; processing is
// an optional intermediate, not a required stop.
var orderStatusTransitions = map[string][]string{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

// CanTransitionOrderStatus reports whether an order may move between the two states.
func CanTransitionOrderStatus(from, to string) bool {
	from = strings.ToLower(strings.TrimSpace(from))
	to = strings.ToLower(strings.TrimSpace(to))
	if from == to {
		return true
	}
	for _, next := range orderStatusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderStatuses returns the known order status names in lifecycle order.
func OrderStatuses() []string {
	return []string{
		OrderStatusPending,
		OrderStatusConfirmed,
		OrderStatusProcessing,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusCancelled,
	}
}

// IsOrderStatus reports whether the value names a known order status.
func IsOrderStatus(value string) bool {
	_, ok := orderStatusTransitions[strings.ToLower(strings.TrimSpace(value))]
	return ok
}

// Customer identifies the person who placed an order.
type Customer struct {
	Name  string
	Email string
	Phone string
}

// ShippingAddress is the structured destination for an order.
type ShippingAddress struct {
	Line1  string
	City   string
	Postal string
}

// ShippingDetails carries the delivery method and destination.
type ShippingDetails struct {
	Method  string
	Address ShippingAddress
}

// OrderItem is a single priced line captured at checkout time.
type OrderItem struct {
	ProductID string
	Name      string
	UnitPrice float64
	Quantity  int
}

// PaymentRecord stores the provider outcome attached to a confirmed order.
type PaymentRecord struct {
	Provider      string
	TransactionID string
	Status        string
}

// Order is the aggregate persisted by the order store. Pricing is a snapshot
// computed at checkout time and never recomputed afterwards.
type Order struct {
	ID          string
	OrderNumber string
	Customer    Customer
	Shipping    ShippingDetails
	Items       []OrderItem
	Pricing     PricingBreakdown
	Status      string
	Payment     PaymentRecord
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Clone returns a deep copy so callers can mutate the result safely.
func (o Order) Clone() Order {
	out := o
	out.Items = make([]OrderItem, len(o.Items))
	copy(out.Items, o.Items)
	return out
}

// TotalQuantity sums line quantities across the order.
func (o Order) TotalQuantity() int {
	total := 0
	for _, item := range o.Items {
		total += item.Quantity
	}
	return total
}

// Admin is a back-office account allowed to use the admin surface.
type Admin struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// SystemHealthCheck describes a single dependency probe result.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Latency   time.Duration
	Error     string
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency probes for the readiness endpoint.
type SystemHealthReport struct {
	Status      string
	Version     string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
	Checks      map[string]SystemHealthCheck
}
