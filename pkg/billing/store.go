package billing

import (
	"context"

	"github.com/google/uuid"
)

// Store is the persistence port for the billing core. Implementations must
// guarantee that WithinTx serializes conflicting writes to the same
// subscription row; the core holds no in-process locks beyond that boundary.
type Store interface {
	Subscriptions() SubscriptionStore
	Plans() PlanStore
	Customers() CustomerStore
	Invoices() InvoiceStore
	WebhookEvents() WebhookEventStore

	// WithinTx runs fn against a transactional view of the store. Lookups of
	// subscription rows inside the transaction lock the row until commit, so
	// check-precondition-then-write sequences are atomic per subscription.
	// Cross-subscription work must not share a transaction.
	WithinTx(ctx context.Context, fn func(Store) error) error
}

// SubscriptionStore persists Subscription aggregates.
// Lookup methods return ErrSubscriptionNotFound when no row matches.
type SubscriptionStore interface {
	Create(ctx context.Context, sub *Subscription) error
	Update(ctx context.Context, sub *Subscription) error
	ByID(ctx context.Context, id uuid.UUID) (*Subscription, error)
	ByExternalID(ctx context.Context, externalSubscriptionID string) (*Subscription, error)
	ByCheckoutSessionID(ctx context.Context, checkoutSessionID string) (*Subscription, error)
	// OpenByCompany returns the company's newest subscription in an open
	// state (ACTIVE, TRIALING, PAST_DUE, PENDING).
	OpenByCompany(ctx context.Context, companyID uuid.UUID) (*Subscription, error)
}

// PlanStore reads the plan catalog and persists lazily provisioned gateway ids.
type PlanStore interface {
	Create(ctx context.Context, plan *Plan) error
	ByID(ctx context.Context, id uuid.UUID) (*Plan, error)
	ListActive(ctx context.Context) ([]Plan, error)
	// SetExternalIDs stores the gateway product/price pair created on first
	// checkout so subsequent checkouts reuse them.
	SetExternalIDs(ctx context.Context, planID uuid.UUID, productID, priceID string) error
}

// CustomerStore persists end customers, unique per (company, email).
type CustomerStore interface {
	Create(ctx context.Context, customer *Customer) error
	ByEmail(ctx context.Context, companyID uuid.UUID, email string) (*Customer, error)
	ByID(ctx context.Context, id uuid.UUID) (*Customer, error)
	// SetExternalID persists the gateway customer id immediately after
	// creation so a crash between gateway call and checkout is resumable.
	SetExternalID(ctx context.Context, customerID uuid.UUID, externalID string) error
}

// InvoiceStore persists invoice records. ByExternalID returns
// ErrInvoiceNotFound when no row matches.
type InvoiceStore interface {
	Create(ctx context.Context, inv *Invoice) error
	Update(ctx context.Context, inv *Invoice) error
	ByExternalID(ctx context.Context, externalInvoiceID string) (*Invoice, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]Invoice, error)
	ListBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]Invoice, error)
}

// WebhookEventStore persists the audit trail of inbound gateway events.
type WebhookEventStore interface {
	Create(ctx context.Context, event *WebhookEvent) error
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, processingError string) error
	ListUnprocessed(ctx context.Context, limit int) ([]WebhookEvent, error)
}
