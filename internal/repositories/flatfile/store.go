package flatfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	domain "github.com/evansbakery/api/internal/domain"
	"github.com/evansbakery/api/internal/repositories"
)

// Store is the file-backed fallback order store. The whole database lives in
// one JSON document guarded by a mutex; writes go through a temp file rename
// so a crash never leaves a half-written database behind.
type Store struct {
	path  string
	mu    sync.Mutex
	clock func() time.Time
}

// Option customises the Store.
type Option func(*Store)

// WithClock injects a custom clock, primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New opens the store at path, creating an empty database file when absent.
func New(path string, opts ...Option) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("flatfile: database path is required")
	}

	store := &Store{
		path:  path,
		clock: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := store.save(newDatabase()); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("flatfile: stat %s: %w", path, err)
	}

	return store, nil
}

// Ping verifies the database file is readable.
func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.load(); err != nil {
		return err
	}
	return nil
}

// Orders returns the order repository view over the file.
func (s *Store) Orders() repositories.OrderRepository {
	return &orderRepository{store: s}
}

// Products returns the stock ledger view over the file.
func (s *Store) Products() repositories.ProductRepository {
	return &productRepository{store: s}
}

// FindAdminByEmail looks up a back-office account by email.
func (s *Store) FindAdminByEmail(_ context.Context, email string) (domain.Admin, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return domain.Admin{}, repositories.NewNotFoundError("flatfile.admins", "email is required", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.load()
	if err != nil {
		return domain.Admin{}, err
	}
	for _, record := range db.Admins {
		if strings.ToLower(strings.TrimSpace(record.Email)) == email {
			return record.toDomain(), nil
		}
	}
	return domain.Admin{}, repositories.NewNotFoundError("flatfile.admins", fmt.Sprintf("admin %s not found", email), nil)
}

// UpsertAdmin creates or replaces a back-office account keyed by email.
func (s *Store) UpsertAdmin(_ context.Context, admin domain.Admin) error {
	if strings.TrimSpace(admin.Email) == "" {
		return errors.New("flatfile: admin email is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.load()
	if err != nil {
		return err
	}
	record := newAdminRecord(admin)
	replaced := false
	for i, existing := range db.Admins {
		if strings.EqualFold(strings.TrimSpace(existing.Email), strings.TrimSpace(admin.Email)) {
			db.Admins[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		db.Admins = append(db.Admins, record)
	}
	return s.save(db)
}

// SeedProducts inserts product records that do not exist yet. Existing stock
// levels are left untouched.
func (s *Store) SeedProducts(_ context.Context, products []domain.OrderItem, stock map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.load()
	if err != nil {
		return err
	}
	known := make(map[string]struct{}, len(db.Products))
	for _, record := range db.Products {
		known[record.ID] = struct{}{}
	}
	for _, product := range products {
		if _, ok := known[product.ProductID]; ok {
			continue
		}
		db.Products = append(db.Products, productRecord{
			ID:    product.ProductID,
			Name:  product.Name,
			Price: product.UnitPrice,
			Stock: stock[product.ProductID],
		})
	}
	return s.save(db)
}

// --- order repository -------------------------------------------------------

type orderRepository struct {
	store *Store
}

func (r *orderRepository) Insert(_ context.Context, order domain.Order) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	db, err := r.store.load()
	if err != nil {
		return err
	}
	for _, existing := range db.Orders {
		if existing.ID == order.ID {
			return repositories.NewConflictError("flatfile.orders", fmt.Sprintf("order %s already exists", order.ID), nil)
		}
	}
	db.Orders = append(db.Orders, newOrderRecord(order))
	return r.store.save(db)
}

func (r *orderRepository) FindByID(_ context.Context, id string) (domain.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	db, err := r.store.load()
	if err != nil {
		return domain.Order{}, err
	}
	for _, record := range db.Orders {
		if record.ID == id {
			return record.toDomain(), nil
		}
	}
	return domain.Order{}, repositories.NewNotFoundError("flatfile.orders", fmt.Sprintf("order %s not found", id), nil)
}

func (r *orderRepository) FindByTransactionID(_ context.Context, transactionID string) (domain.Order, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return domain.Order{}, repositories.NewNotFoundError("flatfile.orders", "transaction id is required", nil)
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	db, err := r.store.load()
	if err != nil {
		return domain.Order{}, err
	}
	for _, record := range db.Orders {
		if record.TransactionID == transactionID {
			return record.toDomain(), nil
		}
	}
	return domain.Order{}, repositories.NewNotFoundError("flatfile.orders", fmt.Sprintf("transaction %s not found", transactionID), nil)
}

func (r *orderRepository) List(_ context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	db, err := r.store.load()
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(db.Orders))
	status := strings.ToLower(strings.TrimSpace(filter.Status))
	for _, record := range db.Orders {
		order := record.toDomain()
		if status != "" && order.Status != status {
			continue
		}
		orders = append(orders, order)
	}
	sortOrdersNewestFirst(orders)

	if filter.Offset > 0 {
		if filter.Offset >= len(orders) {
			return []domain.Order{}, nil
		}
		orders = orders[filter.Offset:]
	}
	if filter.Limit > 0 && len(orders) > filter.Limit {
		orders = orders[:filter.Limit]
	}
	return orders, nil
}

func (r *orderRepository) UpdateStatus(_ context.Context, id, status string, at time.Time) (domain.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	db, err := r.store.load()
	if err != nil {
		return domain.Order{}, err
	}
	for i, record := range db.Orders {
		if record.ID != id {
			continue
		}
		db.Orders[i].Status = strings.ToLower(strings.TrimSpace(status))
		db.Orders[i].UpdatedAt = at.UTC()
		if err := r.store.save(db); err != nil {
			return domain.Order{}, err
		}
		return db.Orders[i].toDomain(), nil
	}
	return domain.Order{}, repositories.NewNotFoundError("flatfile.orders", fmt.Sprintf("order %s not found", id), nil)
}

func (r *orderRepository) Delete(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	db, err := r.store.load()
	if err != nil {
		return err
	}
	for i, record := range db.Orders {
		if record.ID != id {
			continue
		}
		db.Orders = append(db.Orders[:i], db.Orders[i+1:]...)
		return r.store.save(db)
	}
	return repositories.NewNotFoundError("flatfile.orders", fmt.Sprintf("order %s not found", id), nil)
}

func (r *orderRepository) Count(_ context.Context) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	db, err := r.store.load()
	if err != nil {
		return 0, err
	}
	return len(db.Orders), nil
}

func (r *orderRepository) SumTotals(_ context.Context) (float64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	db, err := r.store.load()
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for _, record := range db.Orders {
		sum += record.Pricing.Total
	}
	return sum, nil
}

func (r *orderRepository) Recent(ctx context.Context, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 5
	}
	return r.List(ctx, repositories.OrderListFilter{Limit: limit})
}

// --- product repository -----------------------------------------------------

type productRepository struct {
	store *Store
}

func (r *productRepository) DecrementStock(_ context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return nil
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	db, err := r.store.load()
	if err != nil {
		return err
	}
	for i, record := range db.Products {
		if record.ID != productID {
			continue
		}
		remaining := record.Stock - quantity
		if remaining < 0 {
			remaining = 0
		}
		db.Products[i].Stock = remaining
		return r.store.save(db)
	}
	// Unknown products are skipped so an order never fails on a stale line.
	return nil
}

func (r *productRepository) Count(_ context.Context) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	db, err := r.store.load()
	if err != nil {
		return 0, err
	}
	return len(db.Products), nil
}

// --- persistence ------------------------------------------------------------

type databaseFile struct {
	Admins   []adminRecord   `json:"admins"`
	Products []productRecord `json:"products"`
	Orders   []orderRecord   `json:"orders"`
	Settings map[string]any  `json:"settings"`
}

func newDatabase() databaseFile {
	return databaseFile{
		Admins:   []adminRecord{},
		Products: []productRecord{},
		Orders:   []orderRecord{},
		Settings: map[string]any{},
	}
}

func (s *Store) load() (databaseFile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return databaseFile{}, repositories.NewUnavailableError("flatfile.load", fmt.Sprintf("read %s", s.path), err)
	}
	if len(data) == 0 {
		return newDatabase(), nil
	}
	var db databaseFile
	if err := json.Unmarshal(data, &db); err != nil {
		return databaseFile{}, repositories.NewUnavailableError("flatfile.load", fmt.Sprintf("decode %s", s.path), err)
	}
	return db, nil
}

func (s *Store) save(db databaseFile) error {
	data, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return fmt.Errorf("flatfile: encode database: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".database-*.json")
	if err != nil {
		return repositories.NewUnavailableError("flatfile.save", "create temp file", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return repositories.NewUnavailableError("flatfile.save", "write temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return repositories.NewUnavailableError("flatfile.save", "close temp file", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return repositories.NewUnavailableError("flatfile.save", "replace database file", err)
	}
	return nil
}

func sortOrdersNewestFirst(orders []domain.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}

// --- records ----------------------------------------------------------------

type adminRecord struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

func newAdminRecord(admin domain.Admin) adminRecord {
	return adminRecord{
		ID:           admin.ID,
		Name:         admin.Name,
		Email:        strings.TrimSpace(admin.Email),
		PasswordHash: admin.PasswordHash,
		Role:         strings.ToLower(strings.TrimSpace(admin.Role)),
		CreatedAt:    admin.CreatedAt.UTC(),
	}
}

func (a adminRecord) toDomain() domain.Admin {
	return domain.Admin{
		ID:           a.ID,
		Name:         a.Name,
		Email:        a.Email,
		PasswordHash: a.PasswordHash,
		Role:         a.Role,
		CreatedAt:    a.CreatedAt,
	}
}

type productRecord struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
}

type customerRecord struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type shippingAddressRecord struct {
	Line1  string `json:"line1"`
	City   string `json:"city,omitempty"`
	Postal string `json:"postal,omitempty"`
}

type shippingRecord struct {
	Method  string                `json:"method"`
	Address shippingAddressRecord `json:"address"`
}

type itemRecord struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
}

type pricingRecord struct {
	Subtotal float64 `json:"subtotal"`
	Shipping float64 `json:"shipping"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

type orderRecord struct {
	ID          string          `json:"id"`
	OrderNumber string          `json:"orderNumber"`
	Customer    customerRecord  `json:"customer"`
	Shipping    *shippingRecord `json:"shipping,omitempty"`
	// LegacyShippingAddress carries the pre-migration flat string shape. It is
	// normalised into Shipping at the read boundary.
	LegacyShippingAddress string        `json:"shippingAddress,omitempty"`
	Items                 []itemRecord  `json:"items"`
	Pricing               pricingRecord `json:"pricing"`
	Status                string        `json:"status"`
	PaymentStatus         string        `json:"paymentStatus"`
	PaymentProvider       string        `json:"paymentProvider,omitempty"`
	TransactionID         string        `json:"transactionId,omitempty"`
	Notes                 string        `json:"notes,omitempty"`
	CreatedAt             time.Time     `json:"createdAt"`
	UpdatedAt             time.Time     `json:"updatedAt"`
}

func newOrderRecord(order domain.Order) orderRecord {
	items := make([]itemRecord, len(order.Items))
	for i, item := range order.Items {
		items[i] = itemRecord{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		}
	}
	return orderRecord{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		Customer: customerRecord{
			Name:  order.Customer.Name,
			Email: order.Customer.Email,
			Phone: order.Customer.Phone,
		},
		Shipping: &shippingRecord{
			Method: order.Shipping.Method,
			Address: shippingAddressRecord{
				Line1:  order.Shipping.Address.Line1,
				City:   order.Shipping.Address.City,
				Postal: order.Shipping.Address.Postal,
			},
		},
		Items:           items,
		Pricing:         pricingRecord(order.Pricing),
		Status:          order.Status,
		PaymentStatus:   order.Payment.Status,
		PaymentProvider: order.Payment.Provider,
		TransactionID:   order.Payment.TransactionID,
		Notes:           order.Notes,
		CreatedAt:       order.CreatedAt.UTC(),
		UpdatedAt:       order.UpdatedAt.UTC(),
	}
}

func (r orderRecord) toDomain() domain.Order {
	items := make([]domain.OrderItem, len(r.Items))
	for i, item := range r.Items {
		items[i] = domain.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		}
	}
	order := domain.Order{
		ID:          r.ID,
		OrderNumber: r.OrderNumber,
		Customer: domain.Customer{
			Name:  r.Customer.Name,
			Email: r.Customer.Email,
			Phone: r.Customer.Phone,
		},
		Shipping: normalizeShipping(r.Shipping, r.LegacyShippingAddress),
		Items:    items,
		Pricing:  domain.PricingBreakdown(r.Pricing),
		Status:   r.Status,
		Payment: domain.PaymentRecord{
			Provider:      r.PaymentProvider,
			TransactionID: r.TransactionID,
			Status:        r.PaymentStatus,
		},
		Notes:     r.Notes,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	return order
}

// normalizeShipping lifts legacy flat address strings into the structured
// shape. Legacy records predate shipping method selection, so they default to
// standard delivery.
func normalizeShipping(shipping *shippingRecord, legacy string) domain.ShippingDetails {
	if shipping != nil && strings.TrimSpace(shipping.Method) != "" {
		return domain.ShippingDetails{
			Method: strings.ToLower(strings.TrimSpace(shipping.Method)),
			Address: domain.ShippingAddress{
				Line1:  shipping.Address.Line1,
				City:   shipping.Address.City,
				Postal: shipping.Address.Postal,
			},
		}
	}
	return domain.ShippingDetails{
		Method: domain.ShippingStandard,
		Address: domain.ShippingAddress{
			Line1: strings.TrimSpace(legacy),
		},
	}
}
