package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/evansbakery/api/internal/domain"
	"github.com/evansbakery/api/internal/repositories"
)

const defaultOrderListLimit = 50

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidTransition indicates the requested status change is not allowed.
	ErrOrderInvalidTransition = errors.New("order: invalid status transition")
	// ErrOrderUnavailable indicates the order store could not serve the call.
	ErrOrderUnavailable = errors.New("order: store unavailable")
)

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders repositories.OrderRepository
	Clock  func() time.Time
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders repositories.OrderRepository
	now    func() time.Time
	logger func(ctx context.Context, event string, fields map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders: deps.Orders,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Get fetches a single order by id.
func (s *orderService) Get(ctx context.Context, id string) (domain.Order, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return domain.Order{}, translateOrderError(err)
	}
	return order, nil
}

// List returns orders newest first, optionally filtered by status.
func (s *orderService) List(ctx context.Context, query OrderListQuery) ([]domain.Order, error) {
	status := strings.ToLower(strings.TrimSpace(query.Status))
	if status != "" && !domain.IsOrderStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, query.Status)
	}
	limit := query.Limit
	if limit <= 0 || limit > 500 {
		limit = defaultOrderListLimit
	}
	offset := query.Offset
	if offset < 0 {
		offset = 0
	}

	orders, err := s.orders.List(ctx, repositories.OrderListFilter{
		Status: status,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, translateOrderError(err)
	}
	return orders, nil
}

// UpdateStatus moves an order along its lifecycle. Only Status and UpdatedAt
// change; every other field is left untouched.
func (s *orderService) UpdateStatus(ctx context.Context, id, status string) (domain.Order, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	status = strings.ToLower(strings.TrimSpace(status))
	if !domain.IsOrderStatus(status) {
		return domain.Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, status)
	}

	current, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return domain.Order{}, translateOrderError(err)
	}
	if !domain.CanTransitionOrderStatus(current.Status, status) {
		return domain.Order{}, fmt.Errorf("%w: %s -> %s", ErrOrderInvalidTransition, current.Status, status)
	}

	updated, err := s.orders.UpdateStatus(ctx, id, status, s.now())
	if err != nil {
		return domain.Order{}, translateOrderError(err)
	}

	s.logger(ctx, "order.status_changed", map[string]any{
		"orderId": id,
		"from":    current.Status,
		"to":      status,
	})
	return updated, nil
}

// Delete removes an order permanently. Reserved for explicit admin action.
func (s *orderService) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	if err := s.orders.Delete(ctx, id); err != nil {
		return translateOrderError(err)
	}
	s.logger(ctx, "order.deleted", map[string]any{"orderId": id})
	return nil
}

func translateOrderError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrOrderNotFound
		case repoErr.IsUnavailable():
			return ErrOrderUnavailable
		}
	}
	return ErrOrderUnavailable
}
