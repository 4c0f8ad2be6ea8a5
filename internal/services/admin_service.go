package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	domain "github.com/evansbakery/api/internal/domain"
	"github.com/evansbakery/api/internal/repositories"
)

const dashboardRecentOrders = 5

var (
	// ErrAdminInvalidCredentials indicates the email or password did not match.
	ErrAdminInvalidCredentials = errors.New("admin: invalid credentials")
	// ErrAdminUnavailable indicates a backing store could not serve the call.
	ErrAdminUnavailable = errors.New("admin: store unavailable")
)

// AdminAccountFinder resolves back-office accounts by email.
type AdminAccountFinder interface {
	FindAdminByEmail(ctx context.Context, email string) (domain.Admin, error)
}

// adminTokenIssuer mints session tokens for authenticated admins.
type adminTokenIssuer interface {
	IssueToken(subject, email, role string) (string, time.Time, error)
}

// AdminServiceDeps bundles collaborators required to construct the admin service.
type AdminServiceDeps struct {
	Orders   repositories.OrderRepository
	Products repositories.ProductRepository
	Admins   AdminAccountFinder
	Tokens   adminTokenIssuer
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type adminService struct {
	orders   repositories.OrderRepository
	products repositories.ProductRepository
	admins   AdminAccountFinder
	tokens   adminTokenIssuer
	now      func() time.Time
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewAdminService wires dependencies into a concrete AdminService implementation.
func NewAdminService(deps AdminServiceDeps) (AdminService, error) {
	if deps.Orders == nil {
		return nil, errors.New("admin service: order repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("admin service: product repository is required")
	}
	if deps.Admins == nil {
		return nil, errors.New("admin service: admin account finder is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("admin service: token issuer is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &adminService{
		orders:   deps.Orders,
		products: deps.Products,
		admins:   deps.Admins,
		tokens:   deps.Tokens,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Login verifies credentials and mints a session token. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (s *adminService) Login(ctx context.Context, email, password string) (AdminSession, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return AdminSession{}, ErrAdminInvalidCredentials
	}

	admin, err := s.admins.FindAdminByEmail(ctx, email)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return AdminSession{}, ErrAdminInvalidCredentials
		}
		return AdminSession{}, ErrAdminUnavailable
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		s.logger(ctx, "admin.login_rejected", map[string]any{"email": email})
		return AdminSession{}, ErrAdminInvalidCredentials
	}

	token, expiresAt, err := s.tokens.IssueToken(admin.ID, admin.Email, admin.Role)
	if err != nil {
		return AdminSession{}, fmt.Errorf("admin: issue token: %w", err)
	}

	s.logger(ctx, "admin.login", map[string]any{"email": email})
	return AdminSession{
		Token:     token,
		ExpiresAt: expiresAt,
		Name:      admin.Name,
		Email:     admin.Email,
		Role:      admin.Role,
	}, nil
}

// Dashboard aggregates the landing page counters: order and product counts,
// total sales rounded to two decimals, and the five newest orders.
func (s *adminService) Dashboard(ctx context.Context) (DashboardSummary, error) {
	totalOrders, err := s.orders.Count(ctx)
	if err != nil {
		return DashboardSummary{}, translateAdminError(err)
	}
	totalSales, err := s.orders.SumTotals(ctx)
	if err != nil {
		return DashboardSummary{}, translateAdminError(err)
	}
	totalProducts, err := s.products.Count(ctx)
	if err != nil {
		return DashboardSummary{}, translateAdminError(err)
	}
	recent, err := s.orders.Recent(ctx, dashboardRecentOrders)
	if err != nil {
		return DashboardSummary{}, translateAdminError(err)
	}

	return DashboardSummary{
		TotalOrders:   totalOrders,
		TotalSales:    domain.Round2(totalSales),
		TotalProducts: totalProducts,
		RecentOrders:  recent,
	}, nil
}

// ExportOrdersCSV renders every order as a CSV document for download.
func (s *adminService) ExportOrdersCSV(ctx context.Context) ([]byte, error) {
	orders, err := s.orders.List(ctx, repositories.OrderListFilter{})
	if err != nil {
		return nil, translateAdminError(err)
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write([]string{"Order ID", "Customer", "Total", "Status", "Date"}); err != nil {
		return nil, fmt.Errorf("admin: write csv header: %w", err)
	}
	for _, order := range orders {
		record := []string{
			order.ID,
			order.Customer.Name,
			fmt.Sprintf("%.2f", order.Pricing.Total),
			order.Status,
			order.CreatedAt.UTC().Format("2006-01-02"),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("admin: write csv record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("admin: flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func translateAdminError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsUnavailable() {
		return ErrAdminUnavailable
	}
	return ErrAdminUnavailable
}
