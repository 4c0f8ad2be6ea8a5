package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Shipping methods accepted at checkout with their flat rates in taka.
const (
	ShippingStandard  = "standard"
	ShippingExpress   = "express"
	ShippingOvernight = "overnight"
)

// TaxRate is applied to the sum of subtotal and shipping.
const TaxRate = 0.10

// DefaultCurrency is the only currency the storefront trades in.
const DefaultCurrency = "BDT"

var shippingRates = map[string]float64{
	ShippingStandard:  325,
	ShippingExpress:   975,
	ShippingOvernight: 1625,
}

// ErrUnknownShippingMethod is returned when the requested method has no rate.
var ErrUnknownShippingMethod = errors.New("pricing: unknown shipping method")

// PricingBreakdown is the priced snapshot stored on every order. All amounts
// are taka rounded to two decimal places.
type PricingBreakdown struct {
	Subtotal float64
	Shipping float64
	Tax      float64
	Total    float64
}

// ShippingRate returns the flat rate for the method.
func ShippingRate(method string) (float64, error) {
	rate, ok := shippingRates[strings.ToLower(strings.TrimSpace(method))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownShippingMethod, method)
	}
	return rate, nil
}

// ComputePricing recomputes the full breakdown from line items and the
// shipping method. Client-supplied totals are never trusted.
func ComputePricing(items []OrderItem, shippingMethod string) (PricingBreakdown, error) {
	shipping, err := ShippingRate(shippingMethod)
	if err != nil {
		return PricingBreakdown{}, err
	}

	subtotal := 0.0
	for _, item := range items {
		subtotal += item.UnitPrice * float64(item.Quantity)
	}
	subtotal = Round2(subtotal)

	tax := Round2((subtotal + shipping) * TaxRate)
	total := Round2(subtotal + shipping + tax)

	return PricingBreakdown{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Total:    total,
	}, nil
}

// Round2 rounds half away from zero to two decimal places.
func Round2(value float64) float64 {
	return math.Round(value*100) / 100
}

// MinorUnits converts a taka amount to an integer paisa amount for card
// providers that bill in minor units.
func MinorUnits(value float64) int64 {
	return int64(math.Round(value * 100))
}
