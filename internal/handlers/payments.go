package handlers

import (
	"net/http"

	"github.com/evansbakery/api/internal/services"
)

// PaymentHandlers serves the payment session and confirmation endpoints.
type PaymentHandlers struct {
	checkout services.CheckoutService
}

// NewPaymentHandlers constructs PaymentHandlers.
func NewPaymentHandlers(checkout services.CheckoutService) *PaymentHandlers {
	return &PaymentHandlers{checkout: checkout}
}

type paymentSessionResponse struct {
	Provider     string          `json:"provider"`
	SessionID    string          `json:"sessionId"`
	ClientSecret string          `json:"clientSecret,omitempty"`
	RedirectURL  string          `json:"redirectUrl,omitempty"`
	ExpiresAt    string          `json:"expiresAt,omitempty"`
	Pricing      pricingResponse `json:"pricing"`
}

// CreateSession prices the cart server side and opens a provider session.
func (h *PaymentHandlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSONBody(r, defaultBodyLimit, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	session, err := h.checkout.BeginCheckout(r.Context(), services.BeginCheckoutCommand{
		Provider: req.Provider,
		Customer: req.customerCommand(),
		Shipping: req.shippingCommand(),
		Items:    req.itemCommands(),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, paymentSessionResponse{
		Provider:     session.Provider,
		SessionID:    session.SessionID,
		ClientSecret: session.ClientSecret,
		RedirectURL:  session.RedirectURL,
		ExpiresAt:    formatTime(session.ExpiresAt),
		Pricing:      newPricingResponse(session.Pricing),
	})
}

// Confirm verifies payment with the provider and persists the order.
func (h *PaymentHandlers) Confirm(w http.ResponseWriter, r *http.Request) {
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

	writeJSONResponse(w, http.StatusOK, newOrderResponse(order))
}
