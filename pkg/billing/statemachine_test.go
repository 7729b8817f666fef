package billing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/billing"
)

type fixture struct {
	store *billing.MemoryStore
	gw    *fakeGateway
	svc   *billing.Service
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := billing.NewMemoryStore()
	gw := &fakeGateway{}
	now := time.Date(2024, time.January, 31, 12, 0, 0, 0, time.UTC)
	svc := billing.NewService(store,
		billing.WithGateway(gw),
		billing.WithClock(func() time.Time { return now }),
	)
	return &fixture{store: store, gw: gw, svc: svc, now: now}
}

func (f *fixture) pendingSubscription(t *testing.T, sessionID string) *billing.Subscription {
	t.Helper()
	plan := newPlan(t, f.store, 4900, billing.IntervalMonthly)
	sub := &billing.Subscription{
		ID:                uuid.New(),
		CompanyID:         uuid.New(),
		PlanID:            plan.ID,
		CustomerID:        uuid.New(),
		Status:            billing.StatusPending,
		CheckoutSessionID: sessionID,
	}
	require.NoError(t, f.store.Subscriptions().Create(context.Background(), sub))
	return sub
}

func (f *fixture) activeSubscription(t *testing.T, externalID string) *billing.Subscription {
	t.Helper()
	plan := newPlan(t, f.store, 4900, billing.IntervalMonthly)
	start := f.now.AddDate(0, 0, -10)
	end := f.now.AddDate(0, 0, 20)
	sub := &billing.Subscription{
		ID:                     uuid.New(),
		CompanyID:              uuid.New(),
		PlanID:                 plan.ID,
		CustomerID:             uuid.New(),
		Status:                 billing.StatusActive,
		ExternalSubscriptionID: externalID,
		CurrentPeriodStart:     &start,
		CurrentPeriodEnd:       &end,
	}
	require.NoError(t, f.store.Subscriptions().Create(context.Background(), sub))
	return sub
}

func TestActivateFromCheckout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("activates pending subscription and records invoice", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		sub := f.pendingSubscription(t, "cs_001")

		err := f.svc.ActivateFromCheckout(ctx, "cs_001", "sub_ext_1", "in_001", 4900, "BRL")
		require.NoError(t, err)

		got, err := f.store.Subscriptions().ByID(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusActive, got.Status)
		assert.Equal(t, "sub_ext_1", got.ExternalSubscriptionID)
		assert.Empty(t, got.CheckoutSessionID)
		require.NotNil(t, got.CurrentPeriodStart)
		require.NotNil(t, got.CurrentPeriodEnd)
		assert.Equal(t, f.now, *got.CurrentPeriodStart)
		assert.Equal(t, time.Date(2024, time.February, 29, 12, 0, 0, 0, time.UTC), *got.CurrentPeriodEnd)

		invoices, err := f.store.Invoices().ListBySubscription(ctx, sub.ID)
		require.NoError(t, err)
		require.Len(t, invoices, 1)
		assert.Equal(t, billing.InvoicePaid, invoices[0].Status)
		assert.Equal(t, int64(4900), invoices[0].Amount)
		assert.Equal(t, "BRL", invoices[0].Currency)
	})

	t.Run("redelivery creates exactly one invoice", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		sub := f.pendingSubscription(t, "cs_001")

		for range 3 {
			require.NoError(t, f.svc.ActivateFromCheckout(ctx, "cs_001", "sub_ext_1", "in_001", 4900, "BRL"))
		}

		invoices, err := f.store.Invoices().ListBySubscription(ctx, sub.ID)
		require.NoError(t, err)
		assert.Len(t, invoices, 1)
	})

	t.Run("unknown session is acknowledged", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		assert.NoError(t, f.svc.ActivateFromCheckout(ctx, "cs_missing", "sub_missing", "in_001", 100, "BRL"))
	})

	t.Run("terminal subscription stays closed", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		sub := f.pendingSubscription(t, "cs_001")
		sub.Status = billing.StatusExpired
		require.NoError(t, f.store.Subscriptions().Update(ctx, sub))

		require.NoError(t, f.svc.ActivateFromCheckout(ctx, "cs_001", "sub_ext_1", "in_001", 4900, "BRL"))

		got, err := f.store.Subscriptions().ByID(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusExpired, got.Status)
	})

	t.Run("defaults missing currency", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		sub := f.pendingSubscription(t, "cs_001")

		require.NoError(t, f.svc.ActivateFromCheckout(ctx, "cs_001", "sub_ext_1", "in_001", 4900, ""))

		invoices, err := f.store.Invoices().ListBySubscription(ctx, sub.ID)
		require.NoError(t, err)
		require.Len(t, invoices, 1)
		assert.Equal(t, "BRL", invoices[0].Currency)
	})
}

func TestExpireCheckout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("expires pending subscription", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		sub := f.pendingSubscription(t, "cs_001")

		require.NoError(t, f.svc.ExpireCheckout(ctx, "cs_001"))

		got, err := f.store.Subscriptions().ByID(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusExpired, got.Status)
	})

	t.Run("only pending transitions", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		sub := f.pendingSubscription(t, "cs_001")
		require.NoError(t, f.svc.ActivateFromCheckout(ctx, "cs_001", "sub_ext_1", "in_001", 4900, "BRL"))

		// A late expiry delivery after activation must not touch the row.
		require.NoError(t, f.svc.ExpireCheckout(ctx, "cs_001"))

		got, err := f.store.Subscriptions().ByID(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusActive, got.Status)
	})
}

func TestRecordInvoicePaid(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("promotes pending and upserts invoice once", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		sub := f.pendingSubscription(t, "cs_001")
		sub.ExternalSubscriptionID = "sub_ext_1"
		require.NoError(t, f.store.Subscriptions().Update(ctx, sub))

		for range 2 {
			require.NoError(t, f.svc.RecordInvoicePaid(ctx, "sub_ext_1", "in_002", 4900, "BRL", nil, nil))
		}

		got, err := f.store.Subscriptions().ByID(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusActive, got.Status)

		invoices, err := f.store.Invoices().ListBySubscription(ctx, sub.ID)
		require.NoError(t, err)
		require.Len(t, invoices, 1)
		assert.Equal(t, billing.InvoicePaid, invoices[0].Status)
		require.NotNil(t, invoices[0].PaidAt)
	})

	t.Run("does not regress advanced statuses", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		sub := f.activeSubscription(t, "sub_ext_1")
		sub.Status = billing.StatusPastDue
		require.NoError(t, f.store.Subscriptions().Update(ctx, sub))

		paidAt := f.now
		require.NoError(t, f.svc.RecordInvoicePaid(ctx, "sub_ext_1", "in_003", 4900, "BRL", nil, &paidAt))

		got, err := f.store.Subscriptions().ByID(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusPastDue, got.Status)
	})

	t.Run("unknown subscription is acknowledged", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		assert.NoError(t, f.svc.RecordInvoicePaid(ctx, "sub_missing", "in_004", 100, "BRL", nil, nil))
	})
}

func TestRecordInvoiceFailed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("marks payment failed and records uncollectible invoice", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		sub := f.activeSubscription(t, "sub_ext_1")

		require.NoError(t, f.svc.RecordInvoiceFailed(ctx, "sub_ext_1", "in_005", 4900, "BRL", nil))

		got, err := f.store.Subscriptions().ByID(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusPaymentFailed, got.Status)

		invoices, err := f.store.Invoices().ListBySubscription(ctx, sub.ID)
		require.NoError(t, err)
		require.Len(t, invoices, 1)
		assert.Equal(t, billing.InvoiceUncollectible, invoices[0].Status)
	})

	t.Run("terminal status is kept but invoice still recorded", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		sub := f.activeSubscription(t, "sub_ext_1")
		sub.Status = billing.StatusCanceled
		require.NoError(t, f.store.Subscriptions().Update(ctx, sub))

		require.NoError(t, f.svc.RecordInvoiceFailed(ctx, "sub_ext_1", "in_006", 4900, "BRL", nil))

		got, err := f.store.Subscriptions().ByID(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusCanceled, got.Status)

		invoices, err := f.store.Invoices().ListBySubscription(ctx, sub.ID)
		require.NoError(t, err)
		assert.Len(t, invoices, 1)
	})
}

func TestApplyExternalUpdate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("applies provider state", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		sub := f.activeSubscription(t, "sub_ext_1")

		start := f.now.AddDate(0, 1, 0)
		end := f.now.AddDate(0, 2, 0)
		require.NoError(t, f.svc.ApplyExternalUpdate(ctx, "sub_ext_1", "past_due", &start, &end, true))

		got, err := f.store.Subscriptions().ByID(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusPastDue, got.Status)
		assert.True(t, got.CancelAtPeriodEnd)
		assert.Equal(t, end, *got.CurrentPeriodEnd)
	})

	t.Run("drops stale update", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		sub := f.activeSubscription(t, "sub_ext_1")
		storedEnd := *sub.CurrentPeriodEnd

		staleEnd := storedEnd.AddDate(0, -1, 0)
		require.NoError(t, f.svc.ApplyExternalUpdate(ctx, "sub_ext_1", "past_due", nil, &staleEnd, true))

		got, err := f.store.Subscriptions().ByID(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusActive, got.Status)
		assert.False(t, got.CancelAtPeriodEnd)
		assert.Equal(t, storedEnd, *got.CurrentPeriodEnd)
	})

	t.Run("never revives terminal subscription", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		sub := f.activeSubscription(t, "sub_ext_1")
		sub.Status = billing.StatusCanceled
		require.NoError(t, f.store.Subscriptions().Update(ctx, sub))

		end := f.now.AddDate(0, 3, 0)
		require.NoError(t, f.svc.ApplyExternalUpdate(ctx, "sub_ext_1", "active", nil, &end, false))

		got, err := f.store.Subscriptions().ByID(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusCanceled, got.Status)
	})

	t.Run("unknown provider status maps to pending", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		sub := f.activeSubscription(t, "sub_ext_1")

		end := f.now.AddDate(0, 3, 0)
		require.NoError(t, f.svc.ApplyExternalUpdate(ctx, "sub_ext_1", "totally_new", nil, &end, false))

		got, err := f.store.Subscriptions().ByID(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusPending, got.Status)
	})
}

func TestMarkCanceled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t)
	sub := f.activeSubscription(t, "sub_ext_1")

	for range 2 {
		require.NoError(t, f.svc.MarkCanceled(ctx, "sub_ext_1"))
	}

	got, err := f.store.Subscriptions().ByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusCanceled, got.Status)
	assert.False(t, got.CancelAtPeriodEnd)
	require.NotNil(t, got.CurrentPeriodEnd)
	assert.Equal(t, f.now, *got.CurrentPeriodEnd)
}

func TestCancel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("at period end keeps subscription open", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		sub := f.activeSubscription(t, "sub_ext_1")

		got, err := f.svc.Cancel(ctx, sub.CompanyID, true)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusActive, got.Status)
		assert.True(t, got.CancelAtPeriodEnd)

		require.Len(t, f.gw.canceled, 1)
		assert.Equal(t, cancelCall{"sub_ext_1", true}, f.gw.canceled[0])
	})

	t.Run("immediate cancel closes the period now", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		sub := f.activeSubscription(t, "sub_ext_1")

		got, err := f.svc.Cancel(ctx, sub.CompanyID, false)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusCanceled, got.Status)
		assert.False(t, got.CancelAtPeriodEnd)
		assert.Equal(t, f.now, *got.CurrentPeriodEnd)

		require.Len(t, f.gw.canceled, 1)
		assert.Equal(t, cancelCall{"sub_ext_1", false}, f.gw.canceled[0])
	})

	t.Run("no open subscription", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.svc.Cancel(ctx, uuid.New(), false)
		assert.ErrorIs(t, err, billing.ErrSubscriptionNotFound)
	})

	t.Run("gateway failure leaves local state untouched", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.gw.cancelErr = errors.Join(billing.ErrPaymentProvider, errors.New("boom"))
		sub := f.activeSubscription(t, "sub_ext_1")

		_, err := f.svc.Cancel(ctx, sub.CompanyID, false)
		assert.ErrorIs(t, err, billing.ErrPaymentProvider)

		got, err := f.store.Subscriptions().ByID(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusActive, got.Status)
	})
}
