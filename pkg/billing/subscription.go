package billing

import (
	"time"

	"github.com/google/uuid"
)

// Subscription is the aggregate root of billing state for a company.
// It is created PENDING at checkout time and transitions exclusively through
// webhook events or explicit cancel calls.
type Subscription struct {
	ID                     uuid.UUID
	CompanyID              uuid.UUID
	PlanID                 uuid.UUID
	CustomerID             uuid.UUID
	Status                 Status
	CurrentPeriodStart     *time.Time // nil until activated
	CurrentPeriodEnd       *time.Time // nil until activated; only moves forward once set
	CancelAtPeriodEnd      bool
	ExternalSubscriptionID string // set once the gateway confirms the subscription
	ExternalCustomerID     string
	ExternalPriceID        string
	CheckoutSessionID      string // cleared once the checkout resolves
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// IsActive reports whether the subscription is in the paid ACTIVE state.
func (s *Subscription) IsActive() bool {
	return s.Status == StatusActive
}

// IsOpen reports whether the subscription counts as the company's current one.
func (s *Subscription) IsOpen() bool {
	return s.Status.Open()
}

// IsTerminal reports whether no further transitions may be applied.
func (s *Subscription) IsTerminal() bool {
	return s.Status.Terminal()
}
