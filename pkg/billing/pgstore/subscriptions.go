package pgstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/billing"
	"github.com/dmitrymomot/billingkit/pkg/pg"
)

type subscriptions struct {
	store *Store
}

const subscriptionColumns = `id, company_id, plan_id, customer_id, status,
	current_period_start, current_period_end, cancel_at_period_end,
	external_subscription_id, external_customer_id, external_price_id,
	checkout_session_id, created_at, updated_at`

func (s *subscriptions) Create(ctx context.Context, sub *billing.Subscription) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}

	err := s.store.db.QueryRow(ctx, `
		INSERT INTO subscriptions (
			id, company_id, plan_id, customer_id, status,
			current_period_start, current_period_end, cancel_at_period_end,
			external_subscription_id, external_customer_id, external_price_id,
			checkout_session_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`,
		sub.ID, sub.CompanyID, sub.PlanID, sub.CustomerID, sub.Status,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.CancelAtPeriodEnd,
		sub.ExternalSubscriptionID, sub.ExternalCustomerID, sub.ExternalPriceID,
		sub.CheckoutSessionID,
	).Scan(&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return billing.ErrSubscriptionExists
		}
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func (s *subscriptions) Update(ctx context.Context, sub *billing.Subscription) error {
	tag, err := s.store.db.Exec(ctx, `
		UPDATE subscriptions SET
			status = $2,
			current_period_start = $3,
			current_period_end = $4,
			cancel_at_period_end = $5,
			external_subscription_id = $6,
			external_customer_id = $7,
			external_price_id = $8,
			checkout_session_id = $9,
			updated_at = now()
		WHERE id = $1`,
		sub.ID, sub.Status, sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd, sub.ExternalSubscriptionID, sub.ExternalCustomerID,
		sub.ExternalPriceID, sub.CheckoutSessionID,
	)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrSubscriptionNotFound
	}
	return nil
}

func (s *subscriptions) ByID(ctx context.Context, id uuid.UUID) (*billing.Subscription, error) {
	return s.one(ctx, `WHERE id = $1`, id)
}

func (s *subscriptions) ByExternalID(ctx context.Context, externalSubscriptionID string) (*billing.Subscription, error) {
	return s.one(ctx, `WHERE external_subscription_id = $1 AND external_subscription_id <> ''`, externalSubscriptionID)
}

func (s *subscriptions) ByCheckoutSessionID(ctx context.Context, checkoutSessionID string) (*billing.Subscription, error) {
	return s.one(ctx, `WHERE checkout_session_id = $1 AND checkout_session_id <> ''`, checkoutSessionID)
}

func (s *subscriptions) OpenByCompany(ctx context.Context, companyID uuid.UUID) (*billing.Subscription, error) {
	return s.one(ctx, `WHERE company_id = $1 AND status = ANY($2) ORDER BY created_at DESC LIMIT 1`,
		companyID, statusStrings(billing.OpenStatuses))
}

func (s *subscriptions) one(ctx context.Context, where string, args ...any) (*billing.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions ` + where + s.store.lockClause()

	var sub billing.Subscription
	err := s.store.db.QueryRow(ctx, query, args...).Scan(
		&sub.ID, &sub.CompanyID, &sub.PlanID, &sub.CustomerID, &sub.Status,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.CancelAtPeriodEnd,
		&sub.ExternalSubscriptionID, &sub.ExternalCustomerID, &sub.ExternalPriceID,
		&sub.CheckoutSessionID, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, billing.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("select subscription: %w", err)
	}
	return &sub, nil
}

func statusStrings(statuses []billing.Status) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}
