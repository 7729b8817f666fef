// Package httpapi exposes the billing service over a JSON HTTP API built on
// chi. Responses use a data/error envelope; domain errors map to stable
// machine-readable codes so clients never parse error messages.
package httpapi

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/billingkit/pkg/billing"
)

// API wires the billing service into HTTP handlers.
type API struct {
	svc      *billing.Service
	log      *slog.Logger
	identity IdentityResolver
}

// Option configures the API.
type Option func(*API)

// WithLogger sets the structured logger for request failures.
func WithLogger(log *slog.Logger) Option {
	return func(a *API) {
		if log != nil {
			a.log = log
		}
	}
}

// WithIdentityResolver overrides how the authenticated company user is
// extracted from a request.
func WithIdentityResolver(resolver IdentityResolver) Option {
	return func(a *API) {
		if resolver != nil {
			a.identity = resolver
		}
	}
}

// New creates the API. Panics if svc is nil to fail fast during startup.
func New(svc *billing.Service, opts ...Option) *API {
	if svc == nil {
		panic("httpapi: billing service is required")
	}

	a := &API{
		svc:      svc,
		log:      slog.Default(),
		identity: HeaderIdentity,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Router returns the HTTP routes. The webhook endpoint sits outside the
// identity-guarded group: it authenticates by signature, not by user.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post("/webhooks/stripe", a.handleWebhook)

	r.Get("/plans", a.handleListPlans)

	r.Route("/subscriptions", func(r chi.Router) {
		r.Post("/checkout", a.handleCreateCheckout)
		r.Get("/checkout/{sessionID}", a.handleCheckoutStatus)
		r.Get("/current", a.handleCurrentSubscription)
		r.Post("/cancel", a.handleCancel)
	})

	r.Get("/invoices", a.handleListInvoices)

	return r
}
