package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/evansbakery/api/internal/domain"
)

type stubOrders struct {
	insertFn func(ctx context.Context, order domain.Order) error
	findFn   func(ctx context.Context, id string) (domain.Order, error)
	inserted []string
}

func (s *stubOrders) Insert(ctx context.Context, order domain.Order) error {
	s.inserted = append(s.inserted, order.ID)
	if s.insertFn != nil {
		return s.insertFn(ctx, order)
	}
	return nil
}

func (s *stubOrders) FindByID(ctx context.Context, id string) (domain.Order, error) {
	if s.findFn != nil {
		return s.findFn(ctx, id)
	}
	return domain.Order{ID: id}, nil
}

func (s *stubOrders) FindByTransactionID(context.Context, string) (domain.Order, error) {
	return domain.Order{}, NewNotFoundError("stub.orders", "not found", nil)
}

func (s *stubOrders) List(context.Context, OrderListFilter) ([]domain.Order, error) {
	return nil, nil
}

func (s *stubOrders) UpdateStatus(_ context.Context, id, status string, at time.Time) (domain.Order, error) {
	return domain.Order{ID: id, Status: status, UpdatedAt: at}, nil
}

func (s *stubOrders) Delete(context.Context, string) error {
	return NewNotFoundError("stub.orders", "not found", nil)
}

func (s *stubOrders) Count(context.Context) (int, error)          { return len(s.inserted), nil }
func (s *stubOrders) SumTotals(context.Context) (float64, error)  { return 0, nil }
func (s *stubOrders) Recent(context.Context, int) ([]domain.Order, error) {
	return nil, nil
}

type stubProducts struct {
	decremented map[string]int
}

func (s *stubProducts) DecrementStock(_ context.Context, productID string, quantity int) error {
	if s.decremented == nil {
		s.decremented = map[string]int{}
	}
	s.decremented[productID] += quantity
	return nil
}

func (s *stubProducts) Count(context.Context) (int, error) { return 0, nil }

type stubBackend struct {
	pingErr  error
	orders   *stubOrders
	products *stubProducts
}

func newStubBackend(pingErr error) *stubBackend {
	return &stubBackend{
		pingErr:  pingErr,
		orders:   &stubOrders{},
		products: &stubProducts{},
	}
}

func (s *stubBackend) Orders() OrderRepository     { return s.orders }
func (s *stubBackend) Products() ProductRepository { return s.products }
func (s *stubBackend) Ping(context.Context) error  { return s.pingErr }

func TestDualStorePrefersStructuredBackend(t *testing.T) {
	structured := newStubBackend(nil)
	fallback := newStubBackend(nil)
	store, err := NewDualStore(structured, fallback)
	if err != nil {
		t.Fatalf("NewDualStore returned error: %v", err)
	}

	if err := store.Orders().Insert(context.Background(), domain.Order{ID: "ord_1"}); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	if len(structured.orders.inserted) != 1 {
		t.Fatalf("expected insert on structured backend, got %v", structured.orders.inserted)
	}
	if len(fallback.orders.inserted) != 0 {
		t.Fatalf("fallback should not receive writes while structured is healthy")
	}
}

func TestDualStoreFallsBackWhenStructuredDown(t *testing.T) {
	structured := newStubBackend(errors.New("connection refused"))
	fallback := newStubBackend(nil)
	store, err := NewDualStore(structured, fallback)
	if err != nil {
		t.Fatalf("NewDualStore returned error: %v", err)
	}

	if err := store.Orders().Insert(context.Background(), domain.Order{ID: "ord_2"}); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	if len(fallback.orders.inserted) != 1 {
		t.Fatalf("expected insert on fallback backend, got %v", fallback.orders.inserted)
	}
}

func TestDualStoreRecoversStructuredPerCall(t *testing.T) {
	structured := newStubBackend(errors.New("connection refused"))
	fallback := newStubBackend(nil)
	store, err := NewDualStore(structured, fallback)
	if err != nil {
		t.Fatalf("NewDualStore returned error: %v", err)
	}
	ctx := context.Background()

	if err := store.Orders().Insert(ctx, domain.Order{ID: "ord_down"}); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	structured.pingErr = nil
	if err := store.Orders().Insert(ctx, domain.Order{ID: "ord_up"}); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}

	if len(fallback.orders.inserted) != 1 || fallback.orders.inserted[0] != "ord_down" {
		t.Fatalf("fallback inserts = %v", fallback.orders.inserted)
	}
	if len(structured.orders.inserted) != 1 || structured.orders.inserted[0] != "ord_up" {
		t.Fatalf("structured inserts = %v", structured.orders.inserted)
	}
}

func TestDualStoreUnavailableWhenBothDown(t *testing.T) {
	structured := newStubBackend(errors.New("connection refused"))
	fallback := newStubBackend(errors.New("disk gone"))
	store, err := NewDualStore(structured, fallback)
	if err != nil {
		t.Fatalf("NewDualStore returned error: %v", err)
	}

	err = store.Orders().Insert(context.Background(), domain.Order{ID: "ord_3"})
	var repoErr RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsUnavailable() {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestDualStoreWithoutStructuredBackend(t *testing.T) {
	fallback := newStubBackend(nil)
	store, err := NewDualStore(nil, fallback)
	if err != nil {
		t.Fatalf("NewDualStore returned error: %v", err)
	}

	if err := store.Products().DecrementStock(context.Background(), "prod_1", 2); err != nil {
		t.Fatalf("DecrementStock returned error: %v", err)
	}
	if fallback.products.decremented["prod_1"] != 2 {
		t.Fatalf("decrements = %v", fallback.products.decremented)
	}
	if store.StructuredHealthy(context.Background()) {
		t.Fatalf("StructuredHealthy should be false without a structured backend")
	}
}
