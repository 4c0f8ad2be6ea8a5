package handlers

import (
	"context"
	"time"

	"github.com/evansbakery/api/internal/domain"
	"github.com/evansbakery/api/internal/services"
)

func handlerClock() time.Time {
	return time.Date(2024, time.March, 10, 9, 30, 0, 0, time.UTC)
}

func sampleOrder() domain.Order {
	now := handlerClock()
	return domain.Order{
		ID:          "ord_01HTXW5E8GABCDEF",
		OrderNumber: "EB-20240310-ABCDEF",
		Customer: domain.Customer{
			Name:  "Farhana Rahman",
			Email: "farhana@example.com",
			Phone: "+8801712345678",
		},
		Shipping: domain.ShippingDetails{
			Method: domain.ShippingStandard,
			Address: domain.ShippingAddress{
				Line1:  "House 4, Road 9",
				City:   "Dhaka",
				Postal: "1209",
			},
		},
		Items: []domain.OrderItem{
			{ProductID: "prod_choc_pastry", Name: "Chocolate Pastry", UnitPrice: 649, Quantity: 2},
			{ProductID: "prod_vanilla_cake", Name: "Vanilla Celebration Cake", UnitPrice: 4549, Quantity: 1},
		},
		Pricing: domain.PricingBreakdown{
			Subtotal: 5847.00,
			Shipping: 325.00,
			Tax:      617.20,
			Total:    6789.20,
		},
		Status: domain.OrderStatusConfirmed,
		Payment: domain.PaymentRecord{
			Provider:      "card",
			TransactionID: "pi_3OqXYZ",
			Status:        domain.PaymentStatusCompleted,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

type stubCheckoutService struct {
	beginFn    func(ctx context.Context, cmd services.BeginCheckoutCommand) (services.CheckoutSession, error)
	completeFn func(ctx context.Context, cmd services.CompleteCheckoutCommand) (domain.Order, error)
}

func (s *stubCheckoutService) BeginCheckout(ctx context.Context, cmd services.BeginCheckoutCommand) (services.CheckoutSession, error) {
	if s.beginFn == nil {
		return services.CheckoutSession{}, nil
	}
	return s.beginFn(ctx, cmd)
}

func (s *stubCheckoutService) CompleteCheckout(ctx context.Context, cmd services.CompleteCheckoutCommand) (domain.Order, error) {
	if s.completeFn == nil {
		return domain.Order{}, nil
	}
	return s.completeFn(ctx, cmd)
}

type stubOrderService struct {
	getFn    func(ctx context.Context, id string) (domain.Order, error)
	listFn   func(ctx context.Context, query services.OrderListQuery) ([]domain.Order, error)
	updateFn func(ctx context.Context, id, status string) (domain.Order, error)
	deleteFn func(ctx context.Context, id string) error
}

func (s *stubOrderService) Get(ctx context.Context, id string) (domain.Order, error) {
	if s.getFn == nil {
		return domain.Order{}, services.ErrOrderNotFound
	}
	return s.getFn(ctx, id)
}

func (s *stubOrderService) List(ctx context.Context, query services.OrderListQuery) ([]domain.Order, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, query)
}

func (s *stubOrderService) UpdateStatus(ctx context.Context, id, status string) (domain.Order, error) {
	if s.updateFn == nil {
		return domain.Order{}, services.ErrOrderNotFound
	}
	return s.updateFn(ctx, id, status)
}

func (s *stubOrderService) Delete(ctx context.Context, id string) error {
	if s.deleteFn == nil {
		return services.ErrOrderNotFound
	}
	return s.deleteFn(ctx, id)
}

type stubAdminService struct {
	loginFn     func(ctx context.Context, email, password string) (services.AdminSession, error)
	dashboardFn func(ctx context.Context) (services.DashboardSummary, error)
	exportFn    func(ctx context.Context) ([]byte, error)
}

func (s *stubAdminService) Login(ctx context.Context, email, password string) (services.AdminSession, error) {
	if s.loginFn == nil {
		return services.AdminSession{}, services.ErrAdminInvalidCredentials
	}
	return s.loginFn(ctx, email, password)
}

func (s *stubAdminService) Dashboard(ctx context.Context) (services.DashboardSummary, error) {
	if s.dashboardFn == nil {
		return services.DashboardSummary{}, nil
	}
	return s.dashboardFn(ctx)
}

func (s *stubAdminService) ExportOrdersCSV(ctx context.Context) ([]byte, error) {
	if s.exportFn == nil {
		return nil, nil
	}
	return s.exportFn(ctx)
}

type stubSystemService struct {
	reportFn func(ctx context.Context) (domain.SystemHealthReport, error)
}

func (s *stubSystemService) HealthReport(ctx context.Context) (domain.SystemHealthReport, error) {
	if s.reportFn == nil {
		return domain.SystemHealthReport{}, nil
	}
	return s.reportFn(ctx)
}
