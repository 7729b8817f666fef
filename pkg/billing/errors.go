package billing

import "errors"

var (
	// Caller input and lookup failures.
	ErrInvalidInput         = errors.New("invalid input")
	ErrPlanNotFound         = errors.New("plan not found")
	ErrPlanInactive         = errors.New("plan is no longer available")
	ErrCustomerNotFound     = errors.New("customer not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrInvoiceNotFound      = errors.New("invoice not found")

	// ErrSubscriptionExists is returned when a company already has a
	// subscription in an open state (ACTIVE, TRIALING, PAST_DUE, PENDING).
	ErrSubscriptionExists = errors.New("company already has an open subscription")

	// ErrSubscriptionTerminal is returned when an operator targets a
	// CANCELED or EXPIRED subscription with a non-terminal operation.
	ErrSubscriptionTerminal = errors.New("subscription is in a terminal state")

	// ErrBillingNotConfigured is returned before any side effect when no
	// payment gateway credentials are present. The billing path never
	// silently degrades to a no-op.
	ErrBillingNotConfigured = errors.New("payment gateway is not configured")

	// ErrPaymentProvider wraps gateway call failures after retries.
	ErrPaymentProvider = errors.New("payment provider request failed")

	// ErrInvalidSignature is returned when a webhook payload does not match
	// the configured signing secret. Nothing is recorded for such payloads.
	ErrInvalidSignature = errors.New("webhook signature verification failed")
)
