// Package billing implements multi-tenant subscription billing on top of an
// external payment gateway.
//
// The package owns the subscription lifecycle: a checkout creates a PENDING
// subscription, gateway webhooks drive it through ACTIVE, PAST_DUE,
// PAYMENT_FAILED and the terminal CANCELED/EXPIRED states, and every billing
// outcome is recorded as an invoice. The local database is a projection of
// gateway truth; webhook events are the only source of paid-state
// transitions.
//
// # Architecture
//
// Service is the entry point. It depends on two ports:
//
//   - Store: persistence for subscriptions, plans, customers, invoices and
//     the webhook audit trail. PostgreSQL and in-memory implementations are
//     provided.
//   - Gateway: the payment provider. StripeGateway is the production
//     implementation; the gateway is optional, and money operations fail
//     with ErrBillingNotConfigured when it is absent.
//
// # Usage
//
// Construct a service and start a checkout:
//
//	gw, err := billing.NewStripeGateway(cfg.Stripe)
//	if err != nil {
//		// gateway not configured; free plans still work
//	}
//
//	svc := billing.NewService(store,
//		billing.WithGateway(gw),
//		billing.WithLogger(log),
//	)
//
//	result, err := svc.CreateCheckout(ctx, ident, planID, successURL, cancelURL)
//	if err != nil {
//		// handle billing.ErrSubscriptionExists, billing.ErrPlanNotFound, ...
//	}
//	// redirect the customer to result.RedirectURL
//
// Feed verified webhook deliveries into the reconciliation core:
//
//	if err := svc.HandleWebhook(ctx, payload, signature); err != nil {
//		// billing.ErrInvalidSignature: reject with 400
//		// anything else: respond 5xx so the gateway redelivers
//	}
//
// # Consistency Rules
//
// All state transitions run inside Store.WithinTx with the subscription row
// locked, are idempotent under webhook redelivery, and never move a terminal
// subscription. Period boundaries only advance forward; deliveries carrying
// an older period end than the stored one are dropped.
package billing
