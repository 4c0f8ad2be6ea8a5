package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/evansbakery/api/internal/domain"
	"github.com/evansbakery/api/internal/payments"
	"github.com/evansbakery/api/internal/repositories"
)

type stubOrderRepo struct {
	insertFn     func(ctx context.Context, order domain.Order) error
	findByTxFn   func(ctx context.Context, transactionID string) (domain.Order, error)
	findByIDFn   func(ctx context.Context, id string) (domain.Order, error)
	updateFn     func(ctx context.Context, id, status string, at time.Time) (domain.Order, error)
	listFn       func(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error)
	deleteFn     func(ctx context.Context, id string) error
	inserted     []domain.Order
}

func (s *stubOrderRepo) Insert(ctx context.Context, order domain.Order) error {
	s.inserted = append(s.inserted, order)
	if s.insertFn != nil {
		return s.insertFn(ctx, order)
	}
	return nil
}

func (s *stubOrderRepo) FindByID(ctx context.Context, id string) (domain.Order, error) {
	if s.findByIDFn != nil {
		return s.findByIDFn(ctx, id)
	}
	return domain.Order{}, repositories.NewNotFoundError("stub.orders", "not found", nil)
}

func (s *stubOrderRepo) FindByTransactionID(ctx context.Context, transactionID string) (domain.Order, error) {
	if s.findByTxFn != nil {
		return s.findByTxFn(ctx, transactionID)
	}
	return domain.Order{}, repositories.NewNotFoundError("stub.orders", "not found", nil)
}

func (s *stubOrderRepo) List(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return nil, nil
}

func (s *stubOrderRepo) UpdateStatus(ctx context.Context, id, status string, at time.Time) (domain.Order, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, id, status, at)
	}
	return domain.Order{}, repositories.NewNotFoundError("stub.orders", "not found", nil)
}

func (s *stubOrderRepo) Delete(ctx context.Context, id string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, id)
	}
	return repositories.NewNotFoundError("stub.orders", "not found", nil)
}

func (s *stubOrderRepo) Count(context.Context) (int, error)         { return len(s.inserted), nil }
func (s *stubOrderRepo) SumTotals(context.Context) (float64, error) { return 0, nil }
func (s *stubOrderRepo) Recent(context.Context, int) ([]domain.Order, error) {
	return nil, nil
}

type stubProductRepo struct {
	decrements map[string]int
	err        error
}

func (s *stubProductRepo) DecrementStock(_ context.Context, productID string, quantity int) error {
	if s.err != nil {
		return s.err
	}
	if s.decrements == nil {
		s.decrements = map[string]int{}
	}
	s.decrements[productID] += quantity
	return nil
}

func (s *stubProductRepo) Count(context.Context) (int, error) { return 0, nil }

type stubPaymentManager struct {
	createFn func(ctx context.Context, provider string, req payments.SessionRequest) (payments.Session, error)
	confirm  func(ctx context.Context, provider string, req payments.ConfirmRequest) (payments.Confirmation, error)
}

func (s *stubPaymentManager) CreateSession(ctx context.Context, provider string, req payments.SessionRequest) (payments.Session, error) {
	if s.createFn != nil {
		return s.createFn(ctx, provider, req)
	}
	return payments.Session{ID: "sess_1", Provider: provider}, nil
}

func (s *stubPaymentManager) Confirm(ctx context.Context, provider string, req payments.ConfirmRequest) (payments.Confirmation, error) {
	if s.confirm != nil {
		return s.confirm(ctx, provider, req)
	}
	return payments.Confirmation{Provider: provider, TransactionID: req.SessionID, Succeeded: true}, nil
}

type recordingNotifier struct {
	orders []domain.Order
}

func (r *recordingNotifier) OrderConfirmed(_ context.Context, order domain.Order) {
	r.orders = append(r.orders, order)
}

type eventLog struct {
	events []string
	fields []map[string]any
}

func (l *eventLog) log(_ context.Context, event string, fields map[string]any) {
	l.events = append(l.events, event)
	l.fields = append(l.fields, fields)
}

func (l *eventLog) has(event string) bool {
	for _, e := range l.events {
		if e == event {
			return true
		}
	}
	return false
}

func checkoutClock() time.Time {
	return time.Date(2024, time.March, 10, 9, 30, 0, 0, time.UTC)
}

func standardCheckoutCommand() CompleteCheckoutCommand {
	return CompleteCheckoutCommand{
		Provider:  payments.ProviderCard,
		SessionID: "pi_123",
		Customer: CheckoutCustomer{
			Name:  "Farhana Rahman",
			Email: "farhana@example.com",
		},
		Shipping: CheckoutShipping{
			Method: domain.ShippingStandard,
			Line1:  "12 Lake Road",
			City:   "Dhaka",
		},
		Items: []CheckoutItem{
			{ProductID: "prod_brownie", Name: "Fudge Brownie Box", UnitPrice: 649, Quantity: 2},
			{ProductID: "prod_cake", Name: "Chocolate Truffle Cake", UnitPrice: 4549, Quantity: 1},
		},
	}
}

func newTestCheckoutService(t *testing.T, deps CheckoutServiceDeps) CheckoutService {
	t.Helper()
	if deps.Orders == nil {
		deps.Orders = &stubOrderRepo{}
	}
	if deps.Products == nil {
		deps.Products = &stubProductRepo{}
	}
	if deps.Payments == nil {
		deps.Payments = &stubPaymentManager{}
	}
	if deps.Clock == nil {
		deps.Clock = checkoutClock
	}
	if deps.IDGenerator == nil {
		deps.IDGenerator = func() string { return "01HTXW5E8GABCDEF" }
	}
	svc, err := NewCheckoutService(deps)
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}
	return svc
}

func TestBeginCheckoutPricesServerSide(t *testing.T) {
	var sent payments.SessionRequest
	manager := &stubPaymentManager{
		createFn: func(_ context.Context, provider string, req payments.SessionRequest) (payments.Session, error) {
			sent = req
			return payments.Session{ID: "pi_123", Provider: provider, ClientSecret: "secret"}, nil
		},
	}
	svc := newTestCheckoutService(t, CheckoutServiceDeps{Payments: manager})

	cmd := standardCheckoutCommand()
	session, err := svc.BeginCheckout(context.Background(), BeginCheckoutCommand{
		Provider: cmd.Provider,
		Customer: cmd.Customer,
		Shipping: cmd.Shipping,
		Items:    cmd.Items,
	})
	if err != nil {
		t.Fatalf("BeginCheckout: %v", err)
	}

	if session.Pricing.Subtotal != 5847.00 {
		t.Fatalf("subtotal = %v, want 5847.00", session.Pricing.Subtotal)
	}
	if session.Pricing.Tax != 617.20 {
		t.Fatalf("tax = %v, want 617.20", session.Pricing.Tax)
	}
	if session.Pricing.Total != 6789.20 {
		t.Fatalf("total = %v, want 6789.20", session.Pricing.Total)
	}
	if sent.Amount != 678920 {
		t.Fatalf("session amount = %d, want 678920 minor units", sent.Amount)
	}
	if sent.Currency != domain.DefaultCurrency {
		t.Fatalf("currency = %q", sent.Currency)
	}
	if session.SessionID != "pi_123" || session.ClientSecret != "secret" {
		t.Fatalf("unexpected session: %+v", session)
	}
}

func TestBeginCheckoutRejectsUnknownShippingMethod(t *testing.T) {
	svc := newTestCheckoutService(t, CheckoutServiceDeps{})

	cmd := standardCheckoutCommand()
	cmd.Shipping.Method = "drone"
	_, err := svc.BeginCheckout(context.Background(), BeginCheckoutCommand{
		Provider: cmd.Provider,
		Customer: cmd.Customer,
		Shipping: cmd.Shipping,
		Items:    cmd.Items,
	})
	if !errors.Is(err, ErrCheckoutInvalidInput) {
		t.Fatalf("expected ErrCheckoutInvalidInput, got %v", err)
	}
}

func TestBeginCheckoutUnsupportedProvider(t *testing.T) {
	manager := &stubPaymentManager{
		createFn: func(context.Context, string, payments.SessionRequest) (payments.Session, error) {
			return payments.Session{}, payments.ErrUnsupportedProvider
		},
	}
	svc := newTestCheckoutService(t, CheckoutServiceDeps{Payments: manager})

	cmd := standardCheckoutCommand()
	_, err := svc.BeginCheckout(context.Background(), BeginCheckoutCommand{
		Provider: "bkash",
		Customer: cmd.Customer,
		Shipping: cmd.Shipping,
		Items:    cmd.Items,
	})
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestCompleteCheckoutPersistsConfirmedOrder(t *testing.T) {
	orders := &stubOrderRepo{}
	products := &stubProductRepo{}
	notifier := &recordingNotifier{}
	svc := newTestCheckoutService(t, CheckoutServiceDeps{
		Orders:   orders,
		Products: products,
		Notifier: notifier,
	})

	order, err := svc.CompleteCheckout(context.Background(), standardCheckoutCommand())
	if err != nil {
		t.Fatalf("CompleteCheckout: %v", err)
	}

	if order.Status != domain.OrderStatusConfirmed {
		t.Fatalf("status = %q, want confirmed", order.Status)
	}
	if order.Payment.Status != domain.PaymentStatusCompleted {
		t.Fatalf("payment status = %q, want completed", order.Payment.Status)
	}
	if order.Payment.TransactionID != "pi_123" {
		t.Fatalf("transaction id = %q", order.Payment.TransactionID)
	}
	if !strings.HasPrefix(order.ID, "ord_") {
		t.Fatalf("order id = %q", order.ID)
	}
	if order.OrderNumber != "EB-20240310-ABCDEF" {
		t.Fatalf("order number = %q", order.OrderNumber)
	}
	if order.Pricing.Total != 6789.20 {
		t.Fatalf("total = %v", order.Pricing.Total)
	}
	if len(orders.inserted) != 1 {
		t.Fatalf("expected one insert, got %d", len(orders.inserted))
	}
	if products.decrements["prod_brownie"] != 2 || products.decrements["prod_cake"] != 1 {
		t.Fatalf("stock decrements = %v", products.decrements)
	}
	if len(notifier.orders) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.orders))
	}
}

func TestCompleteCheckoutPaymentNotCompleted(t *testing.T) {
	orders := &stubOrderRepo{}
	products := &stubProductRepo{}
	manager := &stubPaymentManager{
		confirm: func(_ context.Context, provider string, req payments.ConfirmRequest) (payments.Confirmation, error) {
			return payments.Confirmation{Provider: provider, TransactionID: req.SessionID, Succeeded: false}, nil
		},
	}
	svc := newTestCheckoutService(t, CheckoutServiceDeps{
		Orders:   orders,
		Products: products,
		Payments: manager,
	})

	_, err := svc.CompleteCheckout(context.Background(), standardCheckoutCommand())
	if !errors.Is(err, ErrPaymentNotCompleted) {
		t.Fatalf("expected ErrPaymentNotCompleted, got %v", err)
	}
	if len(orders.inserted) != 0 {
		t.Fatalf("nothing may be persisted for an unpaid order")
	}
	if len(products.decrements) != 0 {
		t.Fatalf("stock must not move for an unpaid order")
	}
}

func TestCompleteCheckoutIdempotentByTransactionID(t *testing.T) {
	existing := domain.Order{ID: "ord_existing", Payment: domain.PaymentRecord{TransactionID: "pi_123"}}
	orders := &stubOrderRepo{
		findByTxFn: func(_ context.Context, transactionID string) (domain.Order, error) {
			if transactionID == "pi_123" {
				return existing, nil
			}
			return domain.Order{}, repositories.NewNotFoundError("stub.orders", "not found", nil)
		},
	}
	products := &stubProductRepo{}
	svc := newTestCheckoutService(t, CheckoutServiceDeps{Orders: orders, Products: products})

	order, err := svc.CompleteCheckout(context.Background(), standardCheckoutCommand())
	if err != nil {
		t.Fatalf("CompleteCheckout: %v", err)
	}
	if order.ID != "ord_existing" {
		t.Fatalf("expected existing order, got %q", order.ID)
	}
	if len(orders.inserted) != 0 {
		t.Fatalf("replayed confirmation must not insert a second order")
	}
	if len(products.decrements) != 0 {
		t.Fatalf("replayed confirmation must not decrement stock again")
	}
}

func TestCompleteCheckoutPaidButPersistFailed(t *testing.T) {
	log := &eventLog{}
	orders := &stubOrderRepo{
		insertFn: func(context.Context, domain.Order) error {
			return repositories.NewUnavailableError("stub.orders", "backend down", errors.New("disk gone"))
		},
	}
	products := &stubProductRepo{}
	svc := newTestCheckoutService(t, CheckoutServiceDeps{
		Orders:   orders,
		Products: products,
		Logger:   log.log,
	})

	_, err := svc.CompleteCheckout(context.Background(), standardCheckoutCommand())
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if !log.has("checkout.paid_order_not_persisted") {
		t.Fatalf("expected loud log for paid-but-unpersisted order, got %v", log.events)
	}
	if len(products.decrements) != 0 {
		t.Fatalf("stock must not move when the order was not persisted")
	}
}

func TestCompleteCheckoutCashOnDelivery(t *testing.T) {
	orders := &stubOrderRepo{}
	manager := &stubPaymentManager{
		confirm: func(_ context.Context, provider string, _ payments.ConfirmRequest) (payments.Confirmation, error) {
			return payments.Confirmation{Provider: payments.ProviderCOD, TransactionID: "cod_7", Succeeded: true}, nil
		},
	}
	svc := newTestCheckoutService(t, CheckoutServiceDeps{Orders: orders, Payments: manager})

	cmd := standardCheckoutCommand()
	cmd.Provider = payments.ProviderCOD
	cmd.SessionID = ""
	order, err := svc.CompleteCheckout(context.Background(), cmd)
	if err != nil {
		t.Fatalf("CompleteCheckout: %v", err)
	}
	if order.Status != domain.OrderStatusConfirmed {
		t.Fatalf("status = %q, want confirmed", order.Status)
	}
	if order.Payment.Status != domain.PaymentStatusPending {
		t.Fatalf("payment status = %q, want pending for cash on delivery", order.Payment.Status)
	}
}

func TestCompleteCheckoutStripsMarkupFromFreeText(t *testing.T) {
	orders := &stubOrderRepo{}
	svc := newTestCheckoutService(t, CheckoutServiceDeps{Orders: orders})

	cmd := standardCheckoutCommand()
	cmd.Customer.Name = "<script>alert(1)</script>Farhana"
	cmd.Notes = "<b>no candles</b> please"
	order, err := svc.CompleteCheckout(context.Background(), cmd)
	if err != nil {
		t.Fatalf("CompleteCheckout: %v", err)
	}
	if strings.Contains(order.Customer.Name, "<") {
		t.Fatalf("customer name not sanitised: %q", order.Customer.Name)
	}
	if strings.Contains(order.Notes, "<b>") {
		t.Fatalf("notes not sanitised: %q", order.Notes)
	}
}

func TestCompleteCheckoutAcceptsFreeItem(t *testing.T) {
	orders := &stubOrderRepo{}
	svc := newTestCheckoutService(t, CheckoutServiceDeps{Orders: orders})

	cmd := standardCheckoutCommand()
	cmd.Items = append(cmd.Items, CheckoutItem{
		ProductID: "prod_sampler",
		Name:      "Birthday Sampler",
		UnitPrice: 0,
		Quantity:  1,
	})

	order, err := svc.CompleteCheckout(context.Background(), cmd)
	if err != nil {
		t.Fatalf("CompleteCheckout: %v", err)
	}
	if len(order.Items) != 3 {
		t.Fatalf("expected the free item to survive, got %d items", len(order.Items))
	}
	if order.Pricing.Total != 6789.20 {
		t.Fatalf("total = %v, free item must not change pricing", order.Pricing.Total)
	}
}

func TestCompleteCheckoutValidation(t *testing.T) {
	svc := newTestCheckoutService(t, CheckoutServiceDeps{})
	base := standardCheckoutCommand()

	cases := map[string]func(cmd *CompleteCheckoutCommand){
		"missing name":      func(cmd *CompleteCheckoutCommand) { cmd.Customer.Name = "" },
		"bad email":         func(cmd *CompleteCheckoutCommand) { cmd.Customer.Email = "nope" },
		"no items":          func(cmd *CompleteCheckoutCommand) { cmd.Items = nil },
		"zero quantity":     func(cmd *CompleteCheckoutCommand) { cmd.Items[0].Quantity = 0 },
		"negative price":    func(cmd *CompleteCheckoutCommand) { cmd.Items[0].UnitPrice = -1 },
		"missing address":   func(cmd *CompleteCheckoutCommand) { cmd.Shipping.Line1 = "" },
		"empty session id":  func(cmd *CompleteCheckoutCommand) { cmd.SessionID = "" },
	}
	for name, mutate := range cases {
		cmd := base
		cmd.Items = append([]CheckoutItem(nil), base.Items...)
		mutate(&cmd)
		if _, err := svc.CompleteCheckout(context.Background(), cmd); !errors.Is(err, ErrCheckoutInvalidInput) {
			t.Fatalf("%s: expected ErrCheckoutInvalidInput, got %v", name, err)
		}
	}
}
