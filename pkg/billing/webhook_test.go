package billing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/billing"
)

// failingTxStore simulates a database outage during business dispatch while
// still allowing the audit row to be written.
type failingTxStore struct {
	billing.Store
}

func (f failingTxStore) WithinTx(ctx context.Context, fn func(billing.Store) error) error {
	return errors.New("tx unavailable")
}

func TestHandleWebhook(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)

	t.Run("requires gateway", func(t *testing.T) {
		t.Parallel()
		svc := billing.NewService(billing.NewMemoryStore())
		err := svc.HandleWebhook(ctx, payload, "sig")
		assert.ErrorIs(t, err, billing.ErrBillingNotConfigured)
	})

	t.Run("invalid signature leaves no trace", func(t *testing.T) {
		t.Parallel()
		store := billing.NewMemoryStore()
		gw := &fakeGateway{verifyErr: errors.Join(billing.ErrInvalidSignature, errors.New("bad mac"))}
		svc := billing.NewService(store, billing.WithGateway(gw))

		err := svc.HandleWebhook(ctx, payload, "t=1,v1=bogus")
		assert.ErrorIs(t, err, billing.ErrInvalidSignature)

		events, err := store.WebhookEvents().ListUnprocessed(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("unknown event type is acknowledged and audited", func(t *testing.T) {
		t.Parallel()
		store := billing.NewMemoryStore()
		gw := &fakeGateway{event: billing.Event{Type: "product.created", ID: "evt_1", Data: billing.UnknownEvent{}}}
		svc := billing.NewService(store, billing.WithGateway(gw))

		require.NoError(t, svc.HandleWebhook(ctx, payload, "sig"))

		// Processed, so nothing remains in the unprocessed backlog.
		events, err := store.WebhookEvents().ListUnprocessed(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("dispatch failure records the error and re-raises", func(t *testing.T) {
		t.Parallel()
		store := billing.NewMemoryStore()
		gw := &fakeGateway{event: billing.Event{
			Type: "checkout.session.completed",
			ID:   "evt_1",
			Data: billing.CheckoutCompleted{SessionID: "cs_001", SubscriptionID: "sub_ext_1"},
		}}
		svc := billing.NewService(failingTxStore{store}, billing.WithGateway(gw))

		err := svc.HandleWebhook(ctx, payload, "sig")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "checkout.session.completed")

		events, listErr := store.WebhookEvents().ListUnprocessed(ctx, 10)
		require.NoError(t, listErr)
		require.Len(t, events, 1)
		assert.False(t, events[0].Processed)
		assert.Contains(t, events[0].ProcessingError, "tx unavailable")
		assert.Equal(t, payload, events[0].Payload)
	})

	t.Run("checkout lifecycle end to end", func(t *testing.T) {
		t.Parallel()
		store := billing.NewMemoryStore()
		gw := &fakeGateway{}
		svc := billing.NewService(store, billing.WithGateway(gw))

		plan := newPlan(t, store, 4900, billing.IntervalMonthly)
		ident := billing.Identity{CompanyID: uuid.New(), Email: "buyer@b.co"}
		result, err := svc.CreateCheckout(ctx, ident, plan.ID, "", "")
		require.NoError(t, err)

		deliver := func(eventType string, data billing.EventData) {
			gw.mu.Lock()
			gw.event = billing.Event{Type: eventType, ID: "evt_" + eventType, Data: data}
			gw.mu.Unlock()
			require.NoError(t, svc.HandleWebhook(ctx, payload, "sig"))
		}

		deliver("checkout.session.completed", billing.CheckoutCompleted{
			SessionID:      result.CheckoutSessionID,
			SubscriptionID: "sub_ext_1",
			InvoiceID:      "in_001",
			AmountTotal:    4900,
			Currency:       "BRL",
		})

		sub, err := store.Subscriptions().OpenByCompany(ctx, ident.CompanyID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusActive, sub.Status)

		deliver("invoice.payment_action_required", billing.InvoiceActionRequired{SubscriptionID: "sub_ext_1"})

		sub, err = store.Subscriptions().ByID(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusPastDue, sub.Status)

		deliver("customer.subscription.deleted", billing.SubscriptionDeleted{SubscriptionID: "sub_ext_1"})

		sub, err = store.Subscriptions().ByID(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusCanceled, sub.Status)

		invoices, err := store.Invoices().ListByCompany(ctx, ident.CompanyID)
		require.NoError(t, err)
		require.Len(t, invoices, 1)
		assert.Equal(t, billing.InvoicePaid, invoices[0].Status)
	})
}
