package billing

import (
	"time"

	"github.com/google/uuid"
)

// Invoice is an immutable record of a billing event outcome. Invoices with a
// gateway id are upserted by that id, so at most one row exists per
// ExternalInvoiceID.
type Invoice struct {
	ID                uuid.UUID
	SubscriptionID    uuid.UUID
	CompanyID         uuid.UUID
	Amount            int64 // minor currency units
	Currency          string
	Status            InvoiceStatus
	DueDate           *time.Time
	PaidAt            *time.Time
	ExternalInvoiceID string // empty for locally synthesized invoices
	CreatedAt         time.Time
}

// WebhookEvent is the audit record of a webhook delivery. It is written after
// signature verification and before business dispatch, so a crash mid-way
// leaves a retryable trail. Rows are never deleted except by explicit admin
// action.
type WebhookEvent struct {
	ID              uuid.UUID
	Type            string
	Payload         []byte // exact raw bytes as delivered
	Processed       bool
	ProcessingError string // set when dispatch fails
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
