package billing

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and local development. All
// reads return copies, so callers can mutate results freely. WithinTx
// serializes transactions with a dedicated mutex, which satisfies the
// row-locking contract; it does not roll back on error.
type MemoryStore struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	subscriptions map[uuid.UUID]Subscription
	plans         map[uuid.UUID]Plan
	customers     map[uuid.UUID]Customer
	invoices      map[uuid.UUID]Invoice
	events        map[uuid.UUID]WebhookEvent

	now func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subscriptions: make(map[uuid.UUID]Subscription),
		plans:         make(map[uuid.UUID]Plan),
		customers:     make(map[uuid.UUID]Customer),
		invoices:      make(map[uuid.UUID]Invoice),
		events:        make(map[uuid.UUID]WebhookEvent),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) Subscriptions() SubscriptionStore { return memorySubscriptions{m} }
func (m *MemoryStore) Plans() PlanStore                 { return memoryPlans{m} }
func (m *MemoryStore) Customers() CustomerStore         { return memoryCustomers{m} }
func (m *MemoryStore) Invoices() InvoiceStore           { return memoryInvoices{m} }
func (m *MemoryStore) WebhookEvents() WebhookEventStore { return memoryEvents{m} }

func (m *MemoryStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(m)
}

type memorySubscriptions struct{ m *MemoryStore }

func (s memorySubscriptions) Create(ctx context.Context, sub *Subscription) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	now := s.m.now()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	s.m.subscriptions[sub.ID] = cloneSubscription(*sub)
	return nil
}

func (s memorySubscriptions) Update(ctx context.Context, sub *Subscription) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	if _, ok := s.m.subscriptions[sub.ID]; !ok {
		return ErrSubscriptionNotFound
	}
	sub.UpdatedAt = s.m.now()
	s.m.subscriptions[sub.ID] = cloneSubscription(*sub)
	return nil
}

func (s memorySubscriptions) ByID(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	sub, ok := s.m.subscriptions[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	out := cloneSubscription(sub)
	return &out, nil
}

func (s memorySubscriptions) ByExternalID(ctx context.Context, externalSubscriptionID string) (*Subscription, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	for _, sub := range s.m.subscriptions {
		if sub.ExternalSubscriptionID != "" && sub.ExternalSubscriptionID == externalSubscriptionID {
			out := cloneSubscription(sub)
			return &out, nil
		}
	}
	return nil, ErrSubscriptionNotFound
}

func (s memorySubscriptions) ByCheckoutSessionID(ctx context.Context, checkoutSessionID string) (*Subscription, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	for _, sub := range s.m.subscriptions {
		if sub.CheckoutSessionID != "" && sub.CheckoutSessionID == checkoutSessionID {
			out := cloneSubscription(sub)
			return &out, nil
		}
	}
	return nil, ErrSubscriptionNotFound
}

func (s memorySubscriptions) OpenByCompany(ctx context.Context, companyID uuid.UUID) (*Subscription, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	var newest *Subscription
	for _, sub := range s.m.subscriptions {
		if sub.CompanyID != companyID || !sub.Status.Open() {
			continue
		}
		if newest == nil || sub.CreatedAt.After(newest.CreatedAt) {
			out := cloneSubscription(sub)
			newest = &out
		}
	}
	if newest == nil {
		return nil, ErrSubscriptionNotFound
	}
	return newest, nil
}

type memoryPlans struct{ m *MemoryStore }

func (s memoryPlans) Create(ctx context.Context, plan *Plan) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	now := s.m.now()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	plan.UpdatedAt = now
	s.m.plans[plan.ID] = *plan
	return nil
}

func (s memoryPlans) ByID(ctx context.Context, id uuid.UUID) (*Plan, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	plan, ok := s.m.plans[id]
	if !ok {
		return nil, ErrPlanNotFound
	}
	out := plan
	return &out, nil
}

func (s memoryPlans) ListActive(ctx context.Context) ([]Plan, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	out := make([]Plan, 0, len(s.m.plans))
	for _, plan := range s.m.plans {
		if plan.Active {
			out = append(out, plan)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price.Amount < out[j].Price.Amount })
	return out, nil
}

func (s memoryPlans) SetExternalIDs(ctx context.Context, planID uuid.UUID, productID, priceID string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	plan, ok := s.m.plans[planID]
	if !ok {
		return ErrPlanNotFound
	}
	plan.ExternalProductID = productID
	plan.ExternalPriceID = priceID
	plan.UpdatedAt = s.m.now()
	s.m.plans[planID] = plan
	return nil
}

type memoryCustomers struct{ m *MemoryStore }

func (s memoryCustomers) Create(ctx context.Context, customer *Customer) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	if customer.ID == uuid.Nil {
		customer.ID = uuid.New()
	}
	now := s.m.now()
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = now
	}
	customer.UpdatedAt = now
	s.m.customers[customer.ID] = *customer
	return nil
}

func (s memoryCustomers) ByEmail(ctx context.Context, companyID uuid.UUID, email string) (*Customer, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	for _, c := range s.m.customers {
		if c.CompanyID == companyID && strings.EqualFold(c.Email, email) {
			out := c
			return &out, nil
		}
	}
	return nil, ErrCustomerNotFound
}

func (s memoryCustomers) ByID(ctx context.Context, id uuid.UUID) (*Customer, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	c, ok := s.m.customers[id]
	if !ok {
		return nil, ErrCustomerNotFound
	}
	out := c
	return &out, nil
}

func (s memoryCustomers) SetExternalID(ctx context.Context, customerID uuid.UUID, externalID string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	c, ok := s.m.customers[customerID]
	if !ok {
		return ErrCustomerNotFound
	}
	c.ExternalID = externalID
	c.UpdatedAt = s.m.now()
	s.m.customers[customerID] = c
	return nil
}

type memoryInvoices struct{ m *MemoryStore }

func (s memoryInvoices) Create(ctx context.Context, inv *Invoice) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = s.m.now()
	}
	s.m.invoices[inv.ID] = cloneInvoice(*inv)
	return nil
}

func (s memoryInvoices) Update(ctx context.Context, inv *Invoice) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	if _, ok := s.m.invoices[inv.ID]; !ok {
		return ErrInvoiceNotFound
	}
	s.m.invoices[inv.ID] = cloneInvoice(*inv)
	return nil
}

func (s memoryInvoices) ByExternalID(ctx context.Context, externalInvoiceID string) (*Invoice, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	for _, inv := range s.m.invoices {
		if inv.ExternalInvoiceID != "" && inv.ExternalInvoiceID == externalInvoiceID {
			out := cloneInvoice(inv)
			return &out, nil
		}
	}
	return nil, ErrInvoiceNotFound
}

func (s memoryInvoices) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]Invoice, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	var out []Invoice
	for _, inv := range s.m.invoices {
		if inv.CompanyID == companyID {
			out = append(out, cloneInvoice(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s memoryInvoices) ListBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]Invoice, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	var out []Invoice
	for _, inv := range s.m.invoices {
		if inv.SubscriptionID == subscriptionID {
			out = append(out, cloneInvoice(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type memoryEvents struct{ m *MemoryStore }

func (s memoryEvents) Create(ctx context.Context, event *WebhookEvent) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	now := s.m.now()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	s.m.events[event.ID] = cloneEvent(*event)
	return nil
}

func (s memoryEvents) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return s.update(id, func(ev *WebhookEvent) {
		ev.Processed = true
		ev.ProcessingError = ""
	})
}

func (s memoryEvents) MarkFailed(ctx context.Context, id uuid.UUID, processingError string) error {
	return s.update(id, func(ev *WebhookEvent) {
		ev.Processed = false
		ev.ProcessingError = processingError
	})
}

func (s memoryEvents) update(id uuid.UUID, apply func(*WebhookEvent)) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	ev, ok := s.m.events[id]
	if !ok {
		return ErrInvalidInput
	}
	apply(&ev)
	ev.UpdatedAt = s.m.now()
	s.m.events[id] = ev
	return nil
}

func (s memoryEvents) ListUnprocessed(ctx context.Context, limit int) ([]WebhookEvent, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	var out []WebhookEvent
	for _, ev := range s.m.events {
		if !ev.Processed {
			out = append(out, cloneEvent(ev))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneSubscription(sub Subscription) Subscription {
	sub.CurrentPeriodStart = cloneTime(sub.CurrentPeriodStart)
	sub.CurrentPeriodEnd = cloneTime(sub.CurrentPeriodEnd)
	return sub
}

func cloneInvoice(inv Invoice) Invoice {
	inv.DueDate = cloneTime(inv.DueDate)
	inv.PaidAt = cloneTime(inv.PaidAt)
	return inv
}

func cloneEvent(ev WebhookEvent) WebhookEvent {
	if ev.Payload != nil {
		payload := make([]byte, len(ev.Payload))
		copy(payload, ev.Payload)
		ev.Payload = payload
	}
	return ev
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	clone := *t
	return &clone
}
