package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/billingkit/pkg/billing"
)

// envelope is the standard response shape: exactly one of Data or Error is
// set.
type envelope struct {
	Data  any          `json:"data,omitempty"`
	Error *errorDetail `json:"error,omitempty"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *API) respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Data: data}); err != nil {
		a.log.Error("encode response", slog.String("error", err.Error()))
	}
}

func (a *API) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		a.log.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	body := envelope{Error: &errorDetail{Code: code, Message: errorMessage(code)}}
	if encErr := json.NewEncoder(w).Encode(body); encErr != nil {
		a.log.Error("encode error response", slog.String("error", encErr.Error()))
	}
}

// errorStatus maps domain errors to HTTP status codes and stable error codes.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, errUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, billing.ErrInvalidSignature):
		return http.StatusBadRequest, "invalid_signature"
	case errors.Is(err, billing.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, billing.ErrPlanNotFound):
		return http.StatusNotFound, "plan_not_found"
	case errors.Is(err, billing.ErrPlanInactive):
		return http.StatusUnprocessableEntity, "plan_inactive"
	case errors.Is(err, billing.ErrCustomerNotFound):
		return http.StatusNotFound, "customer_not_found"
	case errors.Is(err, billing.ErrSubscriptionNotFound):
		return http.StatusNotFound, "subscription_not_found"
	case errors.Is(err, billing.ErrInvoiceNotFound):
		return http.StatusNotFound, "invoice_not_found"
	case errors.Is(err, billing.ErrSubscriptionExists):
		return http.StatusConflict, "subscription_exists"
	case errors.Is(err, billing.ErrSubscriptionTerminal):
		return http.StatusConflict, "subscription_terminal"
	case errors.Is(err, billing.ErrBillingNotConfigured):
		return http.StatusServiceUnavailable, "billing_not_configured"
	case errors.Is(err, billing.ErrPaymentProvider):
		return http.StatusBadGateway, "payment_provider_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// errorMessage returns a client-safe message per code. Provider and internal
// error details never leak to clients.
func errorMessage(code string) string {
	switch code {
	case "unauthenticated":
		return "authentication required"
	case "invalid_signature":
		return "webhook signature verification failed"
	case "invalid_input":
		return "invalid request"
	case "plan_not_found":
		return "plan not found"
	case "plan_inactive":
		return "plan is not available for purchase"
	case "customer_not_found":
		return "customer not found"
	case "subscription_not_found":
		return "subscription not found"
	case "invoice_not_found":
		return "invoice not found"
	case "subscription_exists":
		return "an open subscription already exists"
	case "subscription_terminal":
		return "subscription is already closed"
	case "billing_not_configured":
		return "billing is not configured"
	case "payment_provider_error":
		return "payment provider request failed"
	default:
		return "internal server error"
	}
}
