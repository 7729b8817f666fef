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

func testClock() func() time.Time {
	fixed := time.Date(2024, time.January, 31, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return fixed }
}

func newPlan(t *testing.T, store billing.Store, amount int64, interval billing.Interval) *billing.Plan {
	t.Helper()
	plan := &billing.Plan{
		ID:        uuid.New(),
		CompanyID: uuid.New(),
		Name:      "Pro",
		Price:     billing.Money{Amount: amount, Currency: "BRL"},
		Interval:  interval,
		Active:    true,
	}
	require.NoError(t, store.Plans().Create(context.Background(), plan))
	return plan
}

func TestCreateCheckout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("validates input", func(t *testing.T) {
		t.Parallel()
		svc := billing.NewService(billing.NewMemoryStore())

		_, err := svc.CreateCheckout(ctx, billing.Identity{}, uuid.New(), "", "")
		assert.ErrorIs(t, err, billing.ErrInvalidInput)

		ident := billing.Identity{CompanyID: uuid.New(), Email: "a@b.co"}
		_, err = svc.CreateCheckout(ctx, ident, uuid.Nil, "", "")
		assert.ErrorIs(t, err, billing.ErrInvalidInput)
	})

	t.Run("unknown plan", func(t *testing.T) {
		t.Parallel()
		svc := billing.NewService(billing.NewMemoryStore())
		ident := billing.Identity{CompanyID: uuid.New(), Email: "a@b.co"}

		_, err := svc.CreateCheckout(ctx, ident, uuid.New(), "", "")
		assert.ErrorIs(t, err, billing.ErrPlanNotFound)
	})

	t.Run("inactive plan", func(t *testing.T) {
		t.Parallel()
		store := billing.NewMemoryStore()
		plan := newPlan(t, store, 4900, billing.IntervalMonthly)
		plan.Active = false
		require.NoError(t, store.Plans().Create(ctx, plan))

		svc := billing.NewService(store)
		ident := billing.Identity{CompanyID: uuid.New(), Email: "a@b.co"}
		_, err := svc.CreateCheckout(ctx, ident, plan.ID, "", "")
		assert.ErrorIs(t, err, billing.ErrPlanInactive)
	})

	t.Run("paid plan without gateway fails before side effects", func(t *testing.T) {
		t.Parallel()
		store := billing.NewMemoryStore()
		plan := newPlan(t, store, 4900, billing.IntervalMonthly)
		svc := billing.NewService(store)
		ident := billing.Identity{CompanyID: uuid.New(), Email: "a@b.co"}

		_, err := svc.CreateCheckout(ctx, ident, plan.ID, "", "")
		assert.ErrorIs(t, err, billing.ErrBillingNotConfigured)

		_, err = store.Subscriptions().OpenByCompany(ctx, ident.CompanyID)
		assert.ErrorIs(t, err, billing.ErrSubscriptionNotFound)
	})

	t.Run("free plan activates without gateway", func(t *testing.T) {
		t.Parallel()
		store := billing.NewMemoryStore()
		plan := newPlan(t, store, 0, billing.IntervalMonthly)
		svc := billing.NewService(store, billing.WithClock(testClock()))
		ident := billing.Identity{CompanyID: uuid.New(), Email: "free@b.co"}

		result, err := svc.CreateCheckout(ctx, ident, plan.ID, "https://app.test/done", "")
		require.NoError(t, err)
		assert.Equal(t, "https://app.test/done", result.RedirectURL)
		assert.Empty(t, result.CheckoutSessionID)

		sub, err := store.Subscriptions().OpenByCompany(ctx, ident.CompanyID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusActive, sub.Status)
		require.NotNil(t, sub.CurrentPeriodEnd)
		// Jan 31 + 1 month clamps to Feb 29 in a leap year.
		assert.Equal(t, time.Date(2024, time.February, 29, 12, 0, 0, 0, time.UTC), *sub.CurrentPeriodEnd)
	})

	t.Run("paid checkout provisions lazily and records pending subscription", func(t *testing.T) {
		t.Parallel()
		store := billing.NewMemoryStore()
		gw := &fakeGateway{}
		plan := newPlan(t, store, 4900, billing.IntervalMonthly)
		svc := billing.NewService(store, billing.WithGateway(gw))
		ident := billing.Identity{CompanyID: uuid.New(), Email: "buyer@b.co", Name: "Buyer"}

		result, err := svc.CreateCheckout(ctx, ident, plan.ID, "https://app.test/ok", "https://app.test/no")
		require.NoError(t, err)
		assert.Equal(t, "cs_001", result.CheckoutSessionID)
		assert.Equal(t, "https://checkout.test/cs_001", result.RedirectURL)

		// Gateway ids are persisted so the next checkout reuses them.
		storedPlan, err := store.Plans().ByID(ctx, plan.ID)
		require.NoError(t, err)
		assert.Equal(t, "prod_001", storedPlan.ExternalProductID)
		assert.Equal(t, "price_001", storedPlan.ExternalPriceID)

		customer, err := store.Customers().ByEmail(ctx, ident.CompanyID, ident.Email)
		require.NoError(t, err)
		assert.Equal(t, "cus_001", customer.ExternalID)

		sub, err := store.Subscriptions().ByCheckoutSessionID(ctx, "cs_001")
		require.NoError(t, err)
		assert.Equal(t, billing.StatusPending, sub.Status)
		assert.Nil(t, sub.CurrentPeriodEnd)
		assert.Empty(t, sub.ExternalSubscriptionID)
	})

	t.Run("reuses provisioned gateway objects", func(t *testing.T) {
		t.Parallel()
		store := billing.NewMemoryStore()
		gw := &fakeGateway{}
		plan := newPlan(t, store, 4900, billing.IntervalMonthly)
		require.NoError(t, store.Plans().SetExternalIDs(ctx, plan.ID, "prod_existing", "price_existing"))

		companyID := uuid.New()
		customer := &billing.Customer{ID: uuid.New(), CompanyID: companyID, Email: "buyer@b.co", ExternalID: "cus_existing"}
		require.NoError(t, store.Customers().Create(ctx, customer))

		svc := billing.NewService(store, billing.WithGateway(gw))
		_, err := svc.CreateCheckout(ctx, billing.Identity{CompanyID: companyID, Email: "buyer@b.co"}, plan.ID, "", "")
		require.NoError(t, err)

		assert.Zero(t, gw.customers)
		assert.Zero(t, gw.products)
		assert.Zero(t, gw.prices)
		assert.Equal(t, 1, gw.sessions)
	})

	t.Run("rejects second open subscription", func(t *testing.T) {
		t.Parallel()
		store := billing.NewMemoryStore()
		gw := &fakeGateway{}
		plan := newPlan(t, store, 4900, billing.IntervalMonthly)
		svc := billing.NewService(store, billing.WithGateway(gw))
		ident := billing.Identity{CompanyID: uuid.New(), Email: "buyer@b.co"}

		_, err := svc.CreateCheckout(ctx, ident, plan.ID, "", "")
		require.NoError(t, err)

		_, err = svc.CreateCheckout(ctx, ident, plan.ID, "", "")
		assert.ErrorIs(t, err, billing.ErrSubscriptionExists)
		assert.Equal(t, 1, gw.sessions)
	})

	t.Run("gateway session failure leaves no subscription", func(t *testing.T) {
		t.Parallel()
		store := billing.NewMemoryStore()
		gw := &fakeGateway{createSessionErr: errors.Join(billing.ErrPaymentProvider, errors.New("rate limited"))}
		plan := newPlan(t, store, 4900, billing.IntervalMonthly)
		svc := billing.NewService(store, billing.WithGateway(gw))
		ident := billing.Identity{CompanyID: uuid.New(), Email: "buyer@b.co"}

		_, err := svc.CreateCheckout(ctx, ident, plan.ID, "", "")
		assert.ErrorIs(t, err, billing.ErrPaymentProvider)

		_, err = store.Subscriptions().OpenByCompany(ctx, ident.CompanyID)
		assert.ErrorIs(t, err, billing.ErrSubscriptionNotFound)
	})
}

func TestGetCheckoutStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("requires gateway", func(t *testing.T) {
		t.Parallel()
		svc := billing.NewService(billing.NewMemoryStore())
		_, err := svc.GetCheckoutStatus(ctx, "cs_001")
		assert.ErrorIs(t, err, billing.ErrBillingNotConfigured)
	})

	t.Run("resolves local subscription by external id after completion", func(t *testing.T) {
		t.Parallel()
		store := billing.NewMemoryStore()
		sub := &billing.Subscription{
			ID:                     uuid.New(),
			CompanyID:              uuid.New(),
			PlanID:                 uuid.New(),
			CustomerID:             uuid.New(),
			Status:                 billing.StatusActive,
			ExternalSubscriptionID: "sub_ext_1",
		}
		require.NoError(t, store.Subscriptions().Create(ctx, sub))

		gw := &fakeGateway{checkoutSession: &billing.CheckoutSession{
			ID:             "cs_done",
			Status:         "complete",
			PaymentStatus:  "paid",
			SubscriptionID: "sub_ext_1",
			AmountTotal:    4900,
			Currency:       "BRL",
		}}
		svc := billing.NewService(store, billing.WithGateway(gw))

		status, err := svc.GetCheckoutStatus(ctx, "cs_done")
		require.NoError(t, err)
		assert.Equal(t, "complete", status.Status)
		require.NotNil(t, status.Subscription)
		assert.Equal(t, sub.ID, status.Subscription.ID)
	})
}
