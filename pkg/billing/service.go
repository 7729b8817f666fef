package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Service implements the billing core: checkout orchestration, the
// subscription state machine, and webhook event processing. All state lives
// behind the Store port; the service itself is stateless and safe for
// concurrent use across tenants.
type Service struct {
	store      Store
	gateway    Gateway // nil when no provider credentials are configured
	log        *slog.Logger
	now        func() time.Time
	successURL string
	cancelURL  string
}

// NewService creates the billing service. Panics if store is nil to fail fast
// during initialization. A nil gateway is allowed: free plans still activate,
// and every paid-checkout path fails with ErrBillingNotConfigured before any
// side effect.
func NewService(store Store, opts ...ServiceOption) *Service {
	if store == nil {
		panic("billing: Store is required")
	}

	s := &Service{
		store: store,
		log:   slog.New(noopHandler{}),
		now:   func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Identity describes the authenticated company user on whose behalf an
// operation runs. It is resolved by the upstream auth layer.
type Identity struct {
	CompanyID uuid.UUID
	Email     string
	Name      string
}

// CurrentSubscription returns the company's newest open subscription.
// Returns ErrSubscriptionNotFound when the company has none.
func (s *Service) CurrentSubscription(ctx context.Context, companyID uuid.UUID) (*Subscription, error) {
	if companyID == uuid.Nil {
		return nil, errors.Join(ErrInvalidInput, errors.New("company id is required"))
	}
	return s.store.Subscriptions().OpenByCompany(ctx, companyID)
}

// ListPlans returns the active plan catalog.
func (s *Service) ListPlans(ctx context.Context) ([]Plan, error) {
	return s.store.Plans().ListActive(ctx)
}

// ListInvoices returns the company's invoices, newest first.
func (s *Service) ListInvoices(ctx context.Context, companyID uuid.UUID) ([]Invoice, error) {
	if companyID == uuid.Nil {
		return nil, errors.Join(ErrInvalidInput, errors.New("company id is required"))
	}
	return s.store.Invoices().ListByCompany(ctx, companyID)
}

// noopHandler discards all log records; used when no logger is configured.
type noopHandler struct{}

func (noopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (noopHandler) Handle(context.Context, slog.Record) error { return nil }
func (noopHandler) WithAttrs([]slog.Attr) slog.Handler        { return noopHandler{} }
func (noopHandler) WithGroup(string) slog.Handler             { return noopHandler{} }
