package firestore

import (
	"context"
	"errors"

	"github.com/evansbakery/api/internal/repositories"
	pfirestore "github.com/evansbakery/api/internal/platform/firestore"
)

// Backend is the structured order store backed by Firestore. It is preferred
// over the flat-file fallback whenever the connection is healthy.
type Backend struct {
	provider *pfirestore.Provider
	orders   *OrderRepository
	products *ProductRepository
}

// NewBackend wires the Firestore repositories over a shared provider.
func NewBackend(provider *pfirestore.Provider) (*Backend, error) {
	if provider == nil {
		return nil, errors.New("firestore backend: provider is required")
	}
	return &Backend{
		provider: provider,
		orders:   NewOrderRepository(provider),
		products: NewProductRepository(provider),
	}, nil
}

// Orders returns the order repository.
func (b *Backend) Orders() repositories.OrderRepository {
	return b.orders
}

// Products returns the stock ledger repository.
func (b *Backend) Products() repositories.ProductRepository {
	return b.products
}

// Ping reports whether the Firestore connection is usable right now.
func (b *Backend) Ping(ctx context.Context) error {
	return b.provider.Ping(ctx)
}

// Close releases the underlying client.
func (b *Backend) Close() error {
	return b.provider.Close(context.Background())
}
