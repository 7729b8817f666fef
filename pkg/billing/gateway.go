package billing

import (
	"context"
	"time"
)

// Gateway abstracts the external payment provider. Implementations wrap the
// provider SDK, carry bounded timeouts, and retry only transient network
// failures; application-level rejections surface immediately.
type Gateway interface {
	// CreateCustomer registers the end customer with the provider and
	// returns the provider-assigned customer id.
	CreateCustomer(ctx context.Context, email, name string, metadata map[string]string) (string, error)

	// CreateProduct creates a catalog product and returns its id.
	CreateProduct(ctx context.Context, name, description string, metadata map[string]string) (string, error)

	// CreatePrice creates a recurring price for the product using the
	// gateway interval vocabulary and returns its id.
	CreatePrice(ctx context.Context, productID string, price Money, interval Interval, metadata map[string]string) (string, error)

	// CreateCheckoutSession opens a hosted, time-limited checkout flow in
	// subscription mode. Metadata travels to the provider so webhook
	// handlers can recover context even when local lookups fail.
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error)

	// GetCheckoutSession retrieves the current provider-side state of a
	// checkout session for status polling.
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)

	// CancelSubscription cancels the provider subscription, either at the
	// period end or immediately.
	CancelSubscription(ctx context.Context, externalSubscriptionID string, atPeriodEnd bool) error

	// VerifyAndParseWebhook checks the payload signature against the shared
	// webhook secret and decodes the payload into a typed Event. Returns
	// ErrInvalidSignature when the signature does not match; such payloads
	// must not be trusted even for audit.
	VerifyAndParseWebhook(payload []byte, signature string) (Event, error)
}

// CheckoutSessionRequest carries everything the provider needs to open a
// hosted checkout.
type CheckoutSessionRequest struct {
	CustomerID string // provider customer id
	PriceID    string // provider price id
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string // attached to both the session and the resulting subscription
}

// CheckoutSession is the provider-side view of a hosted checkout flow.
type CheckoutSession struct {
	ID             string
	URL            string
	ExpiresAt      time.Time
	Status         string // provider vocabulary: open, complete, expired
	PaymentStatus  string
	SubscriptionID string // set once the checkout completes
	AmountTotal    int64
	Currency       string
	CustomerEmail  string
}

// Event is the verified, decoded form of an inbound webhook delivery.
// Type and ID are the provider's own identifiers; Data is a tagged union with
// one variant per handled event and UnknownEvent as the forward-compatible
// catch-all.
type Event struct {
	Type string
	ID   string
	Data EventData
}

// EventData is implemented by all event payload variants.
type EventData interface {
	isEventData()
}

// CheckoutCompleted signals that a customer finished the hosted checkout.
type CheckoutCompleted struct {
	SessionID      string
	SubscriptionID string
	InvoiceID      string
	AmountTotal    int64
	Currency       string
}

// CheckoutExpired signals that a checkout session lapsed unused.
type CheckoutExpired struct {
	SessionID string
}

// InvoicePaidEvent signals a successful charge for a billing cycle.
type InvoicePaidEvent struct {
	SubscriptionID string
	InvoiceID      string
	AmountPaid     int64
	Currency       string
	DueDate        *time.Time
	PaidAt         *time.Time
}

// InvoiceFailedEvent signals a failed charge attempt.
type InvoiceFailedEvent struct {
	SubscriptionID string
	InvoiceID      string
	AmountDue      int64
	Currency       string
	DueDate        *time.Time
}

// InvoiceActionRequired signals a charge awaiting customer action, such as a
// 3-D Secure confirmation.
type InvoiceActionRequired struct {
	SubscriptionID string
	InvoiceID      string
}

// SubscriptionUpdated carries the provider's authoritative subscription state.
type SubscriptionUpdated struct {
	SubscriptionID    string
	Status            string // provider vocabulary, mapped via MapGatewayStatus
	PeriodStart       *time.Time
	PeriodEnd         *time.Time
	CancelAtPeriodEnd bool
}

// SubscriptionDeleted signals a finalized provider-side cancellation.
type SubscriptionDeleted struct {
	SubscriptionID string
}

// UnknownEvent preserves deliveries of types this system does not handle.
// Providers add event types over time; these are acknowledged, not errors.
type UnknownEvent struct{}

func (CheckoutCompleted) isEventData()     {}
func (CheckoutExpired) isEventData()       {}
func (InvoicePaidEvent) isEventData()      {}
func (InvoiceFailedEvent) isEventData()    {}
func (InvoiceActionRequired) isEventData() {}
func (SubscriptionUpdated) isEventData()   {}
func (SubscriptionDeleted) isEventData()   {}
func (UnknownEvent) isEventData()          {}
