package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	domain "github.com/evansbakery/api/internal/domain"
	"github.com/evansbakery/api/internal/repositories"
)

type stubAdminFinder struct {
	admin domain.Admin
	err   error
}

func (s *stubAdminFinder) FindAdminByEmail(context.Context, string) (domain.Admin, error) {
	if s.err != nil {
		return domain.Admin{}, s.err
	}
	return s.admin, nil
}

type stubTokenIssuer struct {
	token string
	err   error
}

func (s *stubTokenIssuer) IssueToken(subject, email, role string) (string, time.Time, error) {
	if s.err != nil {
		return "", time.Time{}, s.err
	}
	return s.token, time.Date(2024, time.March, 10, 21, 0, 0, 0, time.UTC), nil
}

type dashboardOrderRepo struct {
	stubOrderRepo
	count  int
	sum    float64
	recent []domain.Order
}

func (r *dashboardOrderRepo) Count(context.Context) (int, error)         { return r.count, nil }
func (r *dashboardOrderRepo) SumTotals(context.Context) (float64, error) { return r.sum, nil }
func (r *dashboardOrderRepo) Recent(context.Context, int) ([]domain.Order, error) {
	return r.recent, nil
}

type countingProductRepo struct {
	stubProductRepo
	count int
}

func (r *countingProductRepo) Count(context.Context) (int, error) { return r.count, nil }

func newTestAdminService(t *testing.T, deps AdminServiceDeps) AdminService {
	t.Helper()
	if deps.Orders == nil {
		deps.Orders = &stubOrderRepo{}
	}
	if deps.Products == nil {
		deps.Products = &stubProductRepo{}
	}
	if deps.Admins == nil {
		deps.Admins = &stubAdminFinder{err: repositories.NewNotFoundError("stub.admins", "not found", nil)}
	}
	if deps.Tokens == nil {
		deps.Tokens = &stubTokenIssuer{token: "jwt_token"}
	}
	svc, err := NewAdminService(deps)
	if err != nil {
		t.Fatalf("NewAdminService: %v", err)
	}
	return svc
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

func TestAdminLoginSuccess(t *testing.T) {
	admin := domain.Admin{
		ID:           "adm_1",
		Name:         "Evan",
		Email:        "admin@evansbakery.example",
		PasswordHash: hashPassword(t, "sugar-and-flour"),
		Role:         "admin",
	}
	svc := newTestAdminService(t, AdminServiceDeps{
		Admins: &stubAdminFinder{admin: admin},
		Tokens: &stubTokenIssuer{token: "jwt_token"},
	})

	session, err := svc.Login(context.Background(), "admin@evansbakery.example", "sugar-and-flour")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if session.Token != "jwt_token" {
		t.Fatalf("token = %q", session.Token)
	}
	if session.Role != "admin" || session.Email != admin.Email {
		t.Fatalf("session = %+v", session)
	}
}

func TestAdminLoginWrongPassword(t *testing.T) {
	admin := domain.Admin{
		Email:        "admin@evansbakery.example",
		PasswordHash: hashPassword(t, "sugar-and-flour"),
		Role:         "admin",
	}
	svc := newTestAdminService(t, AdminServiceDeps{
		Admins: &stubAdminFinder{admin: admin},
	})

	if _, err := svc.Login(context.Background(), "admin@evansbakery.example", "wrong"); !errors.Is(err, ErrAdminInvalidCredentials) {
		t.Fatalf("expected ErrAdminInvalidCredentials, got %v", err)
	}
}

func TestAdminLoginUnknownEmail(t *testing.T) {
	svc := newTestAdminService(t, AdminServiceDeps{})
	if _, err := svc.Login(context.Background(), "ghost@example.com", "whatever"); !errors.Is(err, ErrAdminInvalidCredentials) {
		t.Fatalf("expected ErrAdminInvalidCredentials, got %v", err)
	}
}

func TestAdminDashboardAggregates(t *testing.T) {
	recent := []domain.Order{
		{ID: "ord_b"}, {ID: "ord_a"},
	}
	svc := newTestAdminService(t, AdminServiceDeps{
		Orders:   &dashboardOrderRepo{count: 12, sum: 81470.399999, recent: recent},
		Products: &countingProductRepo{count: 7},
	})

	summary, err := svc.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if summary.TotalOrders != 12 {
		t.Fatalf("total orders = %d", summary.TotalOrders)
	}
	if summary.TotalSales != 81470.40 {
		t.Fatalf("total sales = %v, want rounded 81470.40", summary.TotalSales)
	}
	if summary.TotalProducts != 7 {
		t.Fatalf("total products = %d", summary.TotalProducts)
	}
	if len(summary.RecentOrders) != 2 || summary.RecentOrders[0].ID != "ord_b" {
		t.Fatalf("recent orders = %+v", summary.RecentOrders)
	}
}

func TestAdminExportOrdersCSV(t *testing.T) {
	orders := &stubOrderRepo{
		listFn: func(context.Context, repositories.OrderListFilter) ([]domain.Order, error) {
			return []domain.Order{
				{
					ID:        "ord_1",
					Customer:  domain.Customer{Name: "Farhana Rahman"},
					Pricing:   domain.PricingBreakdown{Total: 6789.2},
					Status:    domain.OrderStatusConfirmed,
					CreatedAt: time.Date(2024, time.March, 10, 9, 30, 0, 0, time.UTC),
				},
			}, nil
		},
	}
	svc := newTestAdminService(t, AdminServiceDeps{Orders: orders})

	data, err := svc.ExportOrdersCSV(context.Background())
	if err != nil {
		t.Fatalf("ExportOrdersCSV: %v", err)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	records, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header plus one row, got %d records", len(records))
	}

	wantHeader := []string{"Order ID", "Customer", "Total", "Status", "Date"}
	for i, col := range wantHeader {
		if records[0][i] != col {
			t.Fatalf("header = %v, want %v", records[0], wantHeader)
		}
	}
	row := records[1]
	if row[0] != "ord_1" || row[1] != "Farhana Rahman" || row[2] != "6789.20" || row[3] != "confirmed" || row[4] != "2024-03-10" {
		t.Fatalf("row = %v", row)
	}
}

func TestAdminDashboardStoreOutage(t *testing.T) {
	svc := newTestAdminService(t, AdminServiceDeps{
		Orders: &outageOrderRepo{},
	})
	if _, err := svc.Dashboard(context.Background()); !errors.Is(err, ErrAdminUnavailable) {
		t.Fatalf("expected ErrAdminUnavailable, got %v", err)
	}
}

type outageOrderRepo struct {
	stubOrderRepo
}

func (r *outageOrderRepo) Count(context.Context) (int, error) {
	return 0, repositories.NewUnavailableError("stub.orders", "down", nil)
}
