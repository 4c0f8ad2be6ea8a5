package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/evansbakery/api/internal/domain"
	"github.com/evansbakery/api/internal/platform/httpx"
	"github.com/evansbakery/api/internal/platform/pagination"
	"github.com/evansbakery/api/internal/services"
)

// AdminHandlers serves the back-office endpoints.
type AdminHandlers struct {
	admin  services.AdminService
	orders services.OrderService
	clock  func() time.Time
}

// AdminOption customises AdminHandlers construction.
type AdminOption func(*AdminHandlers)

// WithAdminClock overrides the time source used for export filenames.
func WithAdminClock(clock func() time.Time) AdminOption {
	return func(h *AdminHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewAdminHandlers constructs AdminHandlers.
func NewAdminHandlers(admin services.AdminService, orders services.OrderService, opts ...AdminOption) *AdminHandlers {
	h := &AdminHandlers{
		admin:  admin,
		orders: orders,
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

type adminLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type adminLoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

// Login exchanges admin credentials for a bearer token.
func (h *AdminHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := decodeJSONBody(r, defaultBodyLimit, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("validation_error", "email and password are required", http.StatusBadRequest))
		return
	}

	session, err := h.admin.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, adminLoginResponse{
		Token:     session.Token,
		ExpiresAt: formatTime(session.ExpiresAt),
		Name:      session.Name,
		Email:     session.Email,
		Role:      session.Role,
	})
}

type dashboardResponse struct {
	TotalOrders   int             `json:"totalOrders"`
	TotalSales    float64         `json:"totalSales"`
	TotalProducts int             `json:"totalProducts"`
	RecentOrders  []orderResponse `json:"recentOrders"`
}

// Dashboard returns the landing page counters and the most recent orders.
func (h *AdminHandlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := h.admin.Dashboard(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	recent := make([]orderResponse, 0, len(summary.RecentOrders))
	for _, order := range summary.RecentOrders {
		recent = append(recent, newOrderResponse(order))
	}

	writeJSONResponse(w, http.StatusOK, dashboardResponse{
		TotalOrders:   summary.TotalOrders,
		TotalSales:    summary.TotalSales,
		TotalProducts: summary.TotalProducts,
		RecentOrders:  recent,
	})
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
}

// ListOrders returns stored orders, optionally filtered by status.
func (h *AdminHandlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	params, err := pagination.Parse(r)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("validation_error", err.Error(), http.StatusBadRequest))
		return
	}

	orders, err := h.orders.List(r.Context(), services.OrderListQuery{
		Status: r.URL.Query().Get("status"),
		Limit:  params.Limit,
		Offset: params.Offset,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	payload := orderListResponse{Orders: make([]orderResponse, 0, len(orders))}
	for _, order := range orders {
		payload.Orders = append(payload.Orders, newOrderResponse(order))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

// GetOrder returns a single stored order for the back-office detail view.
func (h *AdminHandlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "orderID")
	if id == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("validation_error", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newOrderResponse(order))
}

type statusUpdateRequest struct {
	Status string `json:"status"`
}

// UpdateOrderStatus moves a stored order along its lifecycle.
func (h *AdminHandlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "orderID")
	if id == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("validation_error", "order id is required", http.StatusBadRequest))
		return
	}

	var req statusUpdateRequest
	if err := decodeJSONBody(r, defaultBodyLimit, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}
	if !domain.IsOrderStatus(req.Status) {
		httpx.WriteError(r.Context(), w, httpx.NewError("validation_error", "unknown order status", http.StatusBadRequest).
			WithDetails(map[string]any{"statuses": domain.OrderStatuses()}))
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, newOrderResponse(order))
}

// DeleteOrder removes a stored order permanently.
func (h *AdminHandlers) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "orderID")
	if id == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("validation_error", "order id is required", http.StatusBadRequest))
		return
	}

	if err := h.orders.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportOrders streams every stored order as a CSV download.
func (h *AdminHandlers) ExportOrders(w http.ResponseWriter, r *http.Request) {
	data, err := h.admin.ExportOrdersCSV(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	filename := "orders-" + h.clock().UTC().Format("20060102") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
