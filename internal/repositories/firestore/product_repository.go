package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/evansbakery/api/internal/platform/firestore"
)

const productsCollection = "products"

type productDoc struct {
	Name  string  `firestore:"name"`
	Price float64 `firestore:"price"`
	Stock int     `firestore:"stock"`
}

// ProductRepository maintains the stock ledger in the products collection.
type ProductRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[productDoc]
}

// NewProductRepository constructs the Firestore product repository.
func NewProductRepository(provider *pfirestore.Provider) *ProductRepository {
	return &ProductRepository{
		provider: provider,
		base:     pfirestore.NewBaseRepository[productDoc](provider, productsCollection, nil, nil),
	}
}

// DecrementStock reduces the stock level for a product, never below zero.
// Unknown products are skipped so confirmed orders are not blocked by stale
// catalogue lines.
func (r *ProductRepository) DecrementStock(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return nil
	}

	ref, err := r.base.DocumentRef(ctx, productID)
	if err != nil {
		return err
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	return pfirestore.RunTransaction(ctx, client, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return nil
		}
		if err != nil {
			return err
		}

		var doc productDoc
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		remaining := doc.Stock - quantity
		if remaining < 0 {
			remaining = 0
		}
		return tx.Update(ref, []firestore.Update{{Path: "stock", Value: remaining}})
	})
}

// Count returns the number of catalogue entries.
func (r *ProductRepository) Count(ctx context.Context) (int, error) {
	docs, err := r.base.Query(ctx, nil)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}
