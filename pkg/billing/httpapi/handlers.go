package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/billing"
)

// maxWebhookBody caps webhook payload size. Stripe events are a few KB;
// anything near the limit is hostile.
const maxWebhookBody = 1 << 20

func (a *API) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		a.respondError(w, r, errors.Join(billing.ErrInvalidInput, err))
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if err := a.svc.HandleWebhook(r.Context(), payload, signature); err != nil {
		a.respondError(w, r, err)
		return
	}

	a.respond(w, http.StatusOK, map[string]bool{"received": true})
}

type createCheckoutRequest struct {
	PlanID     string `json:"plan_id"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

func (a *API) handleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	ident, err := a.identity(r)
	if err != nil {
		a.respondError(w, r, err)
		return
	}

	var req createCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.respondError(w, r, errors.Join(billing.ErrInvalidInput, err))
		return
	}
	planID, err := uuid.Parse(req.PlanID)
	if err != nil {
		a.respondError(w, r, errors.Join(billing.ErrInvalidInput, errors.New("invalid plan id")))
		return
	}

	result, err := a.svc.CreateCheckout(r.Context(), ident, planID, req.SuccessURL, req.CancelURL)
	if err != nil {
		a.respondError(w, r, err)
		return
	}

	a.respond(w, http.StatusCreated, toCheckoutResponse(result))
}

func (a *API) handleCheckoutStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		a.respondError(w, r, errors.Join(billing.ErrInvalidInput, errors.New("session id is required")))
		return
	}

	status, err := a.svc.GetCheckoutStatus(r.Context(), sessionID)
	if err != nil {
		a.respondError(w, r, err)
		return
	}

	a.respond(w, http.StatusOK, toCheckoutStatusResponse(status))
}

func (a *API) handleCurrentSubscription(w http.ResponseWriter, r *http.Request) {
	ident, err := a.identity(r)
	if err != nil {
		a.respondError(w, r, err)
		return
	}

	sub, err := a.svc.CurrentSubscription(r.Context(), ident.CompanyID)
	if err != nil {
		// No open subscription is a normal state, not an error.
		if errors.Is(err, billing.ErrSubscriptionNotFound) {
			a.respond(w, http.StatusOK, nil)
			return
		}
		a.respondError(w, r, err)
		return
	}

	a.respond(w, http.StatusOK, toSubscriptionResponse(sub))
}

type cancelRequest struct {
	AtPeriodEnd bool `json:"at_period_end"`
}

func (a *API) handleCancel(w http.ResponseWriter, r *http.Request) {
	ident, err := a.identity(r)
	if err != nil {
		a.respondError(w, r, err)
		return
	}

	var req cancelRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			a.respondError(w, r, errors.Join(billing.ErrInvalidInput, err))
			return
		}
	}

	sub, err := a.svc.Cancel(r.Context(), ident.CompanyID, req.AtPeriodEnd)
	if err != nil {
		a.respondError(w, r, err)
		return
	}

	a.respond(w, http.StatusOK, toSubscriptionResponse(sub))
}

func (a *API) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := a.svc.ListPlans(r.Context())
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.respond(w, http.StatusOK, toPlanResponses(plans))
}

func (a *API) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	ident, err := a.identity(r)
	if err != nil {
		a.respondError(w, r, err)
		return
	}

	invoices, err := a.svc.ListInvoices(r.Context(), ident.CompanyID)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.respond(w, http.StatusOK, toInvoiceResponses(invoices))
}
