package repositories

import (
	"context"
	"errors"
	"time"

	domain "github.com/evansbakery/api/internal/domain"
)

// DualStore fronts two order store backends: a structured backend that is
// preferred whenever it answers a ping, and a flat-file fallback that keeps
// the shop selling when the structured store is down. The preference is
// re-evaluated on every call, so a recovered structured store is picked up
// without a restart.
type DualStore struct {
	structured Backend
	fallback   Backend
	logger     func(ctx context.Context, event string, fields map[string]any)
}

// DualStoreOption customises the DualStore.
type DualStoreOption func(*DualStore)

// WithDualStoreLogger wires an event logger for backend selection decisions.
func WithDualStoreLogger(logger func(ctx context.Context, event string, fields map[string]any)) DualStoreOption {
	return func(s *DualStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewDualStore builds the selector. structured may be nil when no connection
// string is configured, in which case every call lands on the fallback.
func NewDualStore(structured, fallback Backend, opts ...DualStoreOption) (*DualStore, error) {
	if fallback == nil {
		return nil, errors.New("repositories: fallback backend is required")
	}
	store := &DualStore{
		structured: structured,
		fallback:   fallback,
		logger:     func(context.Context, string, map[string]any) {},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

// Orders returns an order repository that routes each call to the currently
// healthy backend.
func (s *DualStore) Orders() OrderRepository {
	return &dualOrders{store: s}
}

// Products returns a stock ledger routed the same way as Orders.
func (s *DualStore) Products() ProductRepository {
	return &dualProducts{store: s}
}

// Ping succeeds when at least one backend is reachable.
func (s *DualStore) Ping(ctx context.Context) error {
	if _, err := s.pick(ctx); err != nil {
		return err
	}
	return nil
}

// StructuredHealthy reports whether the structured backend answers right now.
func (s *DualStore) StructuredHealthy(ctx context.Context) bool {
	return s.structured != nil && s.structured.Ping(ctx) == nil
}

func (s *DualStore) pick(ctx context.Context) (Backend, error) {
	if s.structured != nil {
		err := s.structured.Ping(ctx)
		if err == nil {
			return s.structured, nil
		}
		s.logger(ctx, "store.structured_unreachable", map[string]any{"error": err.Error()})
	}
	if err := s.fallback.Ping(ctx); err != nil {
		return nil, NewUnavailableError("store.pick", "no order store backend is reachable", err)
	}
	return s.fallback, nil
}

type dualOrders struct {
	store *DualStore
}

func (r *dualOrders) Insert(ctx context.Context, order domain.Order) error {
	backend, err := r.store.pick(ctx)
	if err != nil {
		return err
	}
	return backend.Orders().Insert(ctx, order)
}

func (r *dualOrders) FindByID(ctx context.Context, id string) (domain.Order, error) {
	backend, err := r.store.pick(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	return backend.Orders().FindByID(ctx, id)
}

func (r *dualOrders) FindByTransactionID(ctx context.Context, transactionID string) (domain.Order, error) {
	backend, err := r.store.pick(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	return backend.Orders().FindByTransactionID(ctx, transactionID)
}

func (r *dualOrders) List(ctx context.Context, filter OrderListFilter) ([]domain.Order, error) {
	backend, err := r.store.pick(ctx)
	if err != nil {
		return nil, err
	}
	return backend.Orders().List(ctx, filter)
}

func (r *dualOrders) UpdateStatus(ctx context.Context, id, status string, at time.Time) (domain.Order, error) {
	backend, err := r.store.pick(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	return backend.Orders().UpdateStatus(ctx, id, status, at)
}

func (r *dualOrders) Delete(ctx context.Context, id string) error {
	backend, err := r.store.pick(ctx)
	if err != nil {
		return err
	}
	return backend.Orders().Delete(ctx, id)
}

func (r *dualOrders) Count(ctx context.Context) (int, error) {
	backend, err := r.store.pick(ctx)
	if err != nil {
		return 0, err
	}
	return backend.Orders().Count(ctx)
}

func (r *dualOrders) SumTotals(ctx context.Context) (float64, error) {
	backend, err := r.store.pick(ctx)
	if err != nil {
		return 0, err
	}
	return backend.Orders().SumTotals(ctx)
}

func (r *dualOrders) Recent(ctx context.Context, limit int) ([]domain.Order, error) {
	backend, err := r.store.pick(ctx)
	if err != nil {
		return nil, err
	}
	return backend.Orders().Recent(ctx, limit)
}

type dualProducts struct {
	store *DualStore
}

func (r *dualProducts) DecrementStock(ctx context.Context, productID string, quantity int) error {
	backend, err := r.store.pick(ctx)
	if err != nil {
		return err
	}
	return backend.Products().DecrementStock(ctx, productID, quantity)
}

func (r *dualProducts) Count(ctx context.Context) (int, error) {
	backend, err := r.store.pick(ctx)
	if err != nil {
		return 0, err
	}
	return backend.Products().Count(ctx)
}
