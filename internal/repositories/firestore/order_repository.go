package firestore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/evansbakery/api/internal/domain"
	pfirestore "github.com/evansbakery/api/internal/platform/firestore"
	"github.com/evansbakery/api/internal/repositories"
)

const ordersCollection = "orders"

type orderDoc struct {
	OrderNumber string     `firestore:"orderNumber"`
	Customer    customer   `firestore:"customer"`
	Shipping    shipping   `firestore:"shipping"`
	Items       []item     `firestore:"items"`
	Pricing     pricing    `firestore:"pricing"`
	Status      string     `firestore:"status"`
	Payment     payment    `firestore:"payment"`
	Notes       string     `firestore:"notes,omitempty"`
	CreatedAt   time.Time  `firestore:"createdAt"`
	UpdatedAt   time.Time  `firestore:"updatedAt"`
}

type customer struct {
	Name  string `firestore:"name"`
	Email string `firestore:"email"`
	Phone string `firestore:"phone,omitempty"`
}

type shipping struct {
	Method string          `firestore:"method"`
	Line1  string          `firestore:"line1"`
	City   string          `firestore:"city,omitempty"`
	Postal string          `firestore:"postal,omitempty"`
}

type item struct {
	ProductID string  `firestore:"productId"`
	Name      string  `firestore:"name"`
	UnitPrice float64 `firestore:"unitPrice"`
	Quantity  int     `firestore:"quantity"`
}

type pricing struct {
	Subtotal float64 `firestore:"subtotal"`
	Shipping float64 `firestore:"shipping"`
	Tax      float64 `firestore:"tax"`
	Total    float64 `firestore:"total"`
}

type payment struct {
	Provider      string `firestore:"provider,omitempty"`
	TransactionID string `firestore:"transactionId,omitempty"`
	Status        string `firestore:"status"`
}

// OrderRepository persists orders in the orders collection.
type OrderRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[orderDoc]
}

// NewOrderRepository constructs the Firestore order repository.
func NewOrderRepository(provider *pfirestore.Provider) *OrderRepository {
	return &OrderRepository{
		provider: provider,
		base:     pfirestore.NewBaseRepository[orderDoc](provider, ordersCollection, nil, nil),
	}
}

// Insert creates the order document, failing with a conflict when the ID is
// already taken.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	ref, err := r.base.DocumentRef(ctx, order.ID)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, encodeOrder(order)); err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

// FindByID fetches a single order.
func (r *OrderRepository) FindByID(ctx context.Context, id string) (domain.Order, error) {
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrder(doc.ID, doc.Data), nil
}

// FindByTransactionID resolves an order by its provider transaction id.
func (r *OrderRepository) FindByTransactionID(ctx context.Context, transactionID string) (domain.Order, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return domain.Order{}, repositories.NewNotFoundError("orders.findByTransaction", "transaction id is required", nil)
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("payment.transactionId", "==", transactionID).Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, repositories.NewNotFoundError("orders.findByTransaction", fmt.Sprintf("transaction %s not found", transactionID), nil)
	}
	return decodeOrder(docs[0].ID, docs[0].Data), nil
}

// List returns orders newest first, optionally filtered by status.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		status := strings.ToLower(strings.TrimSpace(filter.Status))
		if status != "" {
			query = query.Where("status", "==", status)
		}
		query = query.OrderBy("createdAt", firestore.Desc)
		if filter.Offset > 0 {
			query = query.Offset(filter.Offset)
		}
		if filter.Limit > 0 {
			query = query.Limit(filter.Limit)
		}
		return query
	})
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, decodeOrder(doc.ID, doc.Data))
	}
	return orders, nil
}

// UpdateStatus rewrites only the status and updatedAt fields.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id, status string, at time.Time) (domain.Order, error) {
	updates := []firestore.Update{
		{Path: "status", Value: strings.ToLower(strings.TrimSpace(status))},
		{Path: "updatedAt", Value: at.UTC()},
	}
	if _, err := r.base.Update(ctx, id, updates, firestore.Exists); err != nil {
		return domain.Order{}, err
	}
	return r.FindByID(ctx, id)
}

// Delete removes the order document, failing with not-found when absent.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.base.Delete(ctx, id, firestore.Exists); err != nil {
		return err
	}
	return nil
}

// Count returns the number of stored orders.
func (r *OrderRepository) Count(ctx context.Context) (int, error) {
	docs, err := r.base.Query(ctx, nil)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

// SumTotals sums the grand totals of every stored order.
func (r *OrderRepository) SumTotals(ctx context.Context) (float64, error) {
	docs, err := r.base.Query(ctx, nil)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for _, doc := range docs {
		sum += doc.Data.Pricing.Total
	}
	return sum, nil
}

// Recent returns up to limit of the newest orders.
func (r *OrderRepository) Recent(ctx context.Context, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 5
	}
	return r.List(ctx, repositories.OrderListFilter{Limit: limit})
}

func encodeOrder(order domain.Order) orderDoc {
	items := make([]item, len(order.Items))
	for i, line := range order.Items {
		items[i] = item{
			ProductID: line.ProductID,
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
		}
	}
	return orderDoc{
		OrderNumber: order.OrderNumber,
		Customer: customer{
			Name:  order.Customer.Name,
			Email: order.Customer.Email,
			Phone: order.Customer.Phone,
		},
		Shipping: shipping{
			Method: order.Shipping.Method,
			Line1:  order.Shipping.Address.Line1,
			City:   order.Shipping.Address.City,
			Postal: order.Shipping.Address.Postal,
		},
		Items:   items,
		Pricing: pricing(order.Pricing),
		Status:  order.Status,
		Payment: payment{
			Provider:      order.Payment.Provider,
			TransactionID: order.Payment.TransactionID,
			Status:        order.Payment.Status,
		},
		Notes:     order.Notes,
		CreatedAt: order.CreatedAt.UTC(),
		UpdatedAt: order.UpdatedAt.UTC(),
	}
}

func decodeOrder(id string, doc orderDoc) domain.Order {
	items := make([]domain.OrderItem, len(doc.Items))
	for i, line := range doc.Items {
		items[i] = domain.OrderItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
		}
	}
	return domain.Order{
		ID:          id,
		OrderNumber: doc.OrderNumber,
		Customer: domain.Customer{
			Name:  doc.Customer.Name,
			Email: doc.Customer.Email,
			Phone: doc.Customer.Phone,
		},
		Shipping: domain.ShippingDetails{
			Method: doc.Shipping.Method,
			Address: domain.ShippingAddress{
				Line1:  doc.Shipping.Line1,
				City:   doc.Shipping.City,
				Postal: doc.Shipping.Postal,
			},
		},
		Items:   items,
		Pricing: domain.PricingBreakdown(doc.Pricing),
		Status:  doc.Status,
		Payment: domain.PaymentRecord{
			Provider:      doc.Payment.Provider,
			TransactionID: doc.Payment.TransactionID,
			Status:        doc.Payment.Status,
		},
		Notes:     doc.Notes,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}
