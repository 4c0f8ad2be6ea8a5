package handlers

import (
	"errors"
	"net/http"

	"github.com/evansbakery/api/internal/payments"
	"github.com/evansbakery/api/internal/platform/httpx"
	"github.com/evansbakery/api/internal/services"
)

func writeBodyError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(r.Context(), w, httpx.NewError("payload_too_large", "request body too large", http.StatusRequestEntityTooLarge))
	case errors.Is(err, errEmptyBody):
		httpx.WriteError(r.Context(), w, httpx.NewError("validation_error", "request body is required", http.StatusBadRequest))
	default:
		httpx.WriteError(r.Context(), w, httpx.NewError("validation_error", "request body is not valid JSON", http.StatusBadRequest))
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, services.ErrCheckoutInvalidInput),
		errors.Is(err, services.ErrOrderInvalidInput),
		errors.Is(err, services.ErrOrderInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("validation_error", err.Error(), http.StatusBadRequest))
	case errors.Is(err, payments.ErrInvalidSignature):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook signature verification failed", http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentNotCompleted):
		httpx.WriteError(ctx, w, httpx.NewError("payment_not_completed", "payment has not completed", http.StatusPaymentRequired))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrAdminInvalidCredentials):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_credentials", "email or password is incorrect", http.StatusUnauthorized))
	case errors.Is(err, services.ErrProviderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("provider_unavailable", "payment provider is unreachable", http.StatusBadGateway))
	case errors.Is(err, services.ErrStoreUnavailable),
		errors.Is(err, services.ErrOrderUnavailable),
		errors.Is(err, services.ErrAdminUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("store_unavailable", "order store is unreachable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected failure", http.StatusInternalServerError))
	}
}
