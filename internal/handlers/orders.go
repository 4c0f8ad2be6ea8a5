package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/evansbakery/api/internal/platform/httpx"
	"github.com/evansbakery/api/internal/services"
)

// OrderHandlers serves the storefront order endpoints.
type OrderHandlers struct {
	checkout services.CheckoutService
	orders   services.OrderService
}

// NewOrderHandlers constructs OrderHandlers.
func NewOrderHandlers(checkout services.CheckoutService, orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{checkout: checkout, orders: orders}
}

// Create finalises a checkout and persists the confirmed order.
func (h *OrderHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSONBody(r, defaultBodyLimit, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	order, err := h.checkout.CompleteCheckout(r.Context(), services.CompleteCheckoutCommand{
		Provider:  req.Provider,
		SessionID: req.SessionID,
		Customer:  req.customerCommand(),
		Shipping:  req.shippingCommand(),
		Items:     req.itemCommands(),
		Notes:     req.Notes,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, newOrderResponse(order))
}

// Get returns a single order by identifier.
func (h *OrderHandlers) Get(w http.ResponseWriter, r *http.Request) {
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
