package repositories

import (
	"context"
	"time"

	domain "github.com/evansbakery/api/internal/domain"
)

// RepositoryError classifies backend failures so services can translate them
// without inspecting driver-specific errors.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// OrderListFilter narrows List results on the admin surface.
type OrderListFilter struct {
	Status string
	Limit  int
	Offset int
}

// OrderRepository persists and queries order aggregates.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, id string) (domain.Order, error)
	FindByTransactionID(ctx context.Context, transactionID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id, status string, at time.Time) (domain.Order, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	SumTotals(ctx context.Context) (float64, error)
	Recent(ctx context.Context, limit int) ([]domain.Order, error)
}

// ProductRepository exposes the stock ledger over the product records.
type ProductRepository interface {
	// DecrementStock clamps at zero and silently ignores unknown products.
	DecrementStock(ctx context.Context, productID string, quantity int) error
	Count(ctx context.Context) (int, error)
}

// Backend bundles the repositories of one storage backend together with its
// reachability probe. The dual store prefers the structured backend per call.
type Backend interface {
	Orders() OrderRepository
	Products() ProductRepository
	Ping(ctx context.Context) error
}

// HealthRepository evaluates the state of external dependencies.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

type repoError struct {
	op          string
	message     string
	err         error
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *repoError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.message
	if msg == "" && e.err != nil {
		msg = e.err.Error()
	}
	if e.op != "" {
		return e.op + ": " + msg
	}
	return msg
}

func (e *repoError) Unwrap() error       { return e.err }
func (e *repoError) IsNotFound() bool    { return e != nil && e.notFound }
func (e *repoError) IsConflict() bool    { return e != nil && e.conflict }
func (e *repoError) IsUnavailable() bool { return e != nil && e.unavailable }

// NewNotFoundError builds a not-found repository error.
func NewNotFoundError(op, message string, err error) RepositoryError {
	return &repoError{op: op, message: message, err: err, notFound: true}
}

// NewConflictError builds a conflict repository error.
func NewConflictError(op, message string, err error) RepositoryError {
	return &repoError{op: op, message: message, err: err, conflict: true}
}

// NewUnavailableError builds an unavailable repository error.
func NewUnavailableError(op, message string, err error) RepositoryError {
	return &repoError{op: op, message: message, err: err, unavailable: true}
}
