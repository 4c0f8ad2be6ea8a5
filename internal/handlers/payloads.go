package handlers

import (
	"github.com/evansbakery/api/internal/domain"
	"github.com/evansbakery/api/internal/services"
)

const defaultBodyLimit = 64 * 1024

type customerPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type addressPayload struct {
	Line1  string `json:"line1"`
	City   string `json:"city,omitempty"`
	Postal string `json:"postal,omitempty"`
}

type shippingPayload struct {
	Method  string         `json:"method"`
	Address addressPayload `json:"address"`
}

type itemPayload struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
}

type checkoutRequest struct {
	Provider  string          `json:"provider"`
	SessionID string          `json:"sessionId,omitempty"`
	Customer  customerPayload `json:"customer"`
	Shipping  shippingPayload `json:"shipping"`
	Items     []itemPayload   `json:"items"`
	Notes     string          `json:"notes,omitempty"`
}

func (p checkoutRequest) customerCommand() services.CheckoutCustomer {
	return services.CheckoutCustomer{
		Name:  p.Customer.Name,
		Email: p.Customer.Email,
		Phone: p.Customer.Phone,
	}
}

func (p checkoutRequest) shippingCommand() services.CheckoutShipping {
	return services.CheckoutShipping{
		Method: p.Shipping.Method,
		Line1:  p.Shipping.Address.Line1,
		City:   p.Shipping.Address.City,
		Postal: p.Shipping.Address.Postal,
	}
}

func (p checkoutRequest) itemCommands() []services.CheckoutItem {
	items := make([]services.CheckoutItem, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, services.CheckoutItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}
	return items
}

type pricingResponse struct {
	Subtotal float64 `json:"subtotal"`
	Shipping float64 `json:"shipping"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
	Currency string  `json:"currency"`
}

func newPricingResponse(pricing domain.PricingBreakdown) pricingResponse {
	return pricingResponse{
		Subtotal: pricing.Subtotal,
		Shipping: pricing.Shipping,
		Tax:      pricing.Tax,
		Total:    pricing.Total,
		Currency: domain.DefaultCurrency,
	}
}

type paymentResponse struct {
	Provider      string `json:"provider"`
	TransactionID string `json:"transactionId,omitempty"`
	Status        string `json:"status"`
}

type orderResponse struct {
	ID          string          `json:"id"`
	OrderNumber string          `json:"orderNumber"`
	Customer    customerPayload `json:"customer"`
	Shipping    shippingPayload `json:"shipping"`
	Items       []itemPayload   `json:"items"`
	Pricing     pricingResponse `json:"pricing"`
	Status      string          `json:"status"`
	Payment     paymentResponse `json:"payment"`
	Notes       string          `json:"notes,omitempty"`
	CreatedAt   string          `json:"createdAt"`
	UpdatedAt   string          `json:"updatedAt,omitempty"`
}

func newOrderResponse(order domain.Order) orderResponse {
	items := make([]itemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, itemPayload{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}

	return orderResponse{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		Customer: customerPayload{
			Name:  order.Customer.Name,
			Email: order.Customer.Email,
			Phone: order.Customer.Phone,
		},
		Shipping: shippingPayload{
			Method: order.Shipping.Method,
			Address: addressPayload{
				Line1:  order.Shipping.Address.Line1,
				City:   order.Shipping.Address.City,
				Postal: order.Shipping.Address.Postal,
			},
		},
		Items:   items,
		Pricing: newPricingResponse(order.Pricing),
		Status:  order.Status,
		Payment: paymentResponse{
			Provider:      order.Payment.Provider,
			TransactionID: order.Payment.TransactionID,
			Status:        order.Payment.Status,
		},
		Notes:     order.Notes,
		CreatedAt: formatTime(order.CreatedAt),
		UpdatedAt: formatTime(order.UpdatedAt),
	}
}
