package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// The operations in this file own every subscription status transition.
// Each one runs inside a store transaction that locks the target row, checks
// the current state, and only then writes, so reapplying the same gateway
// event (providers deliver at least once, in no particular order) converges
// on the same end state. Idempotency keys are business identifiers: checkout
// session id, gateway subscription id, gateway invoice id.

// ActivateFromCheckout handles a completed checkout: the subscription becomes
// ACTIVE, the gateway subscription id is recorded, the first billing period
// starts now, and a PAID invoice is appended. Re-delivery short-circuits once
// the subscription already carries the gateway id, so exactly one invoice is
// created per checkout.
func (s *Service) ActivateFromCheckout(ctx context.Context, checkoutSessionID, externalSubscriptionID, externalInvoiceID string, amountPaid int64, currency string) error {
	if currency == "" {
		currency = "BRL"
	}

	return s.store.WithinTx(ctx, func(tx Store) error {
		sub, err := s.findByCheckoutOrExternalID(ctx, tx, checkoutSessionID, externalSubscriptionID)
		if err != nil {
			return err
		}
		if sub == nil {
			s.log.WarnContext(ctx, "checkout completed for unknown subscription",
				"checkout_session_id", checkoutSessionID,
				"external_subscription_id", externalSubscriptionID)
			return nil
		}
		if sub.IsTerminal() {
			s.log.WarnContext(ctx, "ignoring checkout completion for terminal subscription",
				"subscription_id", sub.ID, "status", sub.Status)
			return nil
		}
		if sub.Status == StatusActive && sub.ExternalSubscriptionID == externalSubscriptionID {
			// Already applied; re-delivery.
			return nil
		}

		interval := IntervalMonthly
		if plan, err := tx.Plans().ByID(ctx, sub.PlanID); err == nil {
			interval = plan.Interval
		}

		now := s.now()
		periodEnd := PeriodEnd(interval, now)

		sub.Status = StatusActive
		sub.ExternalSubscriptionID = externalSubscriptionID
		sub.CurrentPeriodStart = &now
		sub.CurrentPeriodEnd = &periodEnd
		sub.CheckoutSessionID = ""
		sub.UpdatedAt = now
		if err := tx.Subscriptions().Update(ctx, sub); err != nil {
			return err
		}

		inv := &Invoice{
			ID:                uuid.New(),
			SubscriptionID:    sub.ID,
			CompanyID:         sub.CompanyID,
			Amount:            amountPaid,
			Currency:          currency,
			Status:            InvoicePaid,
			DueDate:           &periodEnd,
			PaidAt:            &now,
			ExternalInvoiceID: externalInvoiceID,
			CreatedAt:         now,
		}
		if err := s.upsertInvoice(ctx, tx, inv); err != nil {
			return err
		}

		s.log.InfoContext(ctx, "subscription activated from checkout",
			"subscription_id", sub.ID,
			"external_subscription_id", externalSubscriptionID)
		return nil
	})
}

// ExpireCheckout marks an abandoned checkout EXPIRED. Only PENDING
// subscriptions transition; anything that already left PENDING is untouched.
func (s *Service) ExpireCheckout(ctx context.Context, checkoutSessionID string) error {
	return s.store.WithinTx(ctx, func(tx Store) error {
		sub, err := tx.Subscriptions().ByCheckoutSessionID(ctx, checkoutSessionID)
		if errors.Is(err, ErrSubscriptionNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if sub.Status != StatusPending {
			return nil
		}

		sub.Status = StatusExpired
		sub.UpdatedAt = s.now()
		return tx.Subscriptions().Update(ctx, sub)
	})
}

// RecordInvoicePaid upserts the invoice by its gateway id and promotes a
// PENDING subscription to ACTIVE. It never regresses an already-advanced
// status, which keeps out-of-order delivery safe.
func (s *Service) RecordInvoicePaid(ctx context.Context, externalSubscriptionID, externalInvoiceID string, amount int64, currency string, dueDate, paidAt *time.Time) error {
	return s.store.WithinTx(ctx, func(tx Store) error {
		sub, err := tx.Subscriptions().ByExternalID(ctx, externalSubscriptionID)
		if errors.Is(err, ErrSubscriptionNotFound) {
			s.log.WarnContext(ctx, "invoice paid for unknown subscription",
				"external_subscription_id", externalSubscriptionID)
			return nil
		}
		if err != nil {
			return err
		}

		if paidAt == nil {
			now := s.now()
			paidAt = &now
		}

		record := &Invoice{
			ID:                uuid.New(),
			SubscriptionID:    sub.ID,
			CompanyID:         sub.CompanyID,
			Amount:            amount,
			Currency:          currency,
			Status:            InvoicePaid,
			DueDate:           dueDate,
			PaidAt:            paidAt,
			ExternalInvoiceID: externalInvoiceID,
			CreatedAt:         s.now(),
		}
		if err := s.upsertInvoice(ctx, tx, record); err != nil {
			return err
		}

		if sub.Status == StatusPending {
			sub.Status = StatusActive
			sub.UpdatedAt = s.now()
			return tx.Subscriptions().Update(ctx, sub)
		}
		return nil
	})
}

// RecordInvoiceFailed marks the subscription PAYMENT_FAILED and upserts an
// UNCOLLECTIBLE invoice. Terminal subscriptions keep their status; the
// invoice is still recorded since the charge attempt happened.
func (s *Service) RecordInvoiceFailed(ctx context.Context, externalSubscriptionID, externalInvoiceID string, amountDue int64, currency string, dueDate *time.Time) error {
	return s.store.WithinTx(ctx, func(tx Store) error {
		sub, err := tx.Subscriptions().ByExternalID(ctx, externalSubscriptionID)
		if errors.Is(err, ErrSubscriptionNotFound) {
			s.log.WarnContext(ctx, "invoice failed for unknown subscription",
				"external_subscription_id", externalSubscriptionID)
			return nil
		}
		if err != nil {
			return err
		}

		record := &Invoice{
			ID:                uuid.New(),
			SubscriptionID:    sub.ID,
			CompanyID:         sub.CompanyID,
			Amount:            amountDue,
			Currency:          currency,
			Status:            InvoiceUncollectible,
			DueDate:           dueDate,
			ExternalInvoiceID: externalInvoiceID,
			CreatedAt:         s.now(),
		}
		if err := s.upsertInvoice(ctx, tx, record); err != nil {
			return err
		}

		if sub.IsTerminal() {
			return nil
		}
		sub.Status = StatusPaymentFailed
		sub.UpdatedAt = s.now()
		return tx.Subscriptions().Update(ctx, sub)
	})
}

// RecordInvoiceActionRequired parks the subscription in PAST_DUE while the
// customer completes an extra payment step (3-D Secure and similar).
func (s *Service) RecordInvoiceActionRequired(ctx context.Context, externalSubscriptionID string) error {
	return s.store.WithinTx(ctx, func(tx Store) error {
		sub, err := tx.Subscriptions().ByExternalID(ctx, externalSubscriptionID)
		if errors.Is(err, ErrSubscriptionNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if sub.IsTerminal() {
			return nil
		}

		sub.Status = StatusPastDue
		sub.UpdatedAt = s.now()
		return tx.Subscriptions().Update(ctx, sub)
	})
}

// ApplyExternalUpdate reconciles the local row with the gateway's
// authoritative subscription state. Terminal subscriptions are never revived,
// unknown provider statuses map to PENDING with a warning, and an update
// whose period end precedes the stored one is treated as stale out-of-order
// delivery and dropped.
func (s *Service) ApplyExternalUpdate(ctx context.Context, externalSubscriptionID, externalStatus string, periodStart, periodEnd *time.Time, cancelAtPeriodEnd bool) error {
	return s.store.WithinTx(ctx, func(tx Store) error {
		sub, err := tx.Subscriptions().ByExternalID(ctx, externalSubscriptionID)
		if errors.Is(err, ErrSubscriptionNotFound) {
			s.log.WarnContext(ctx, "update for unknown subscription",
				"external_subscription_id", externalSubscriptionID)
			return nil
		}
		if err != nil {
			return err
		}
		if sub.IsTerminal() {
			s.log.InfoContext(ctx, "ignoring update for terminal subscription",
				"subscription_id", sub.ID, "status", sub.Status)
			return nil
		}
		if periodEnd != nil && sub.CurrentPeriodEnd != nil && periodEnd.Before(*sub.CurrentPeriodEnd) {
			s.log.WarnContext(ctx, "dropping stale subscription update",
				"subscription_id", sub.ID,
				"stored_period_end", sub.CurrentPeriodEnd,
				"event_period_end", periodEnd)
			return nil
		}

		status, known := MapGatewayStatus(externalStatus)
		if !known {
			s.log.WarnContext(ctx, "unknown gateway subscription status",
				"subscription_id", sub.ID, "external_status", externalStatus)
		}

		sub.Status = status
		sub.CancelAtPeriodEnd = cancelAtPeriodEnd
		if periodStart != nil {
			sub.CurrentPeriodStart = periodStart
		}
		if periodEnd != nil {
			sub.CurrentPeriodEnd = periodEnd
		}
		sub.UpdatedAt = s.now()
		return tx.Subscriptions().Update(ctx, sub)
	})
}

// MarkCanceled finalizes a gateway-side cancellation: status CANCELED, the
// cancel-at-period-end flag cleared, and the period closed now.
func (s *Service) MarkCanceled(ctx context.Context, externalSubscriptionID string) error {
	return s.store.WithinTx(ctx, func(tx Store) error {
		sub, err := tx.Subscriptions().ByExternalID(ctx, externalSubscriptionID)
		if errors.Is(err, ErrSubscriptionNotFound) {
			s.log.WarnContext(ctx, "cancellation for unknown subscription",
				"external_subscription_id", externalSubscriptionID)
			return nil
		}
		if err != nil {
			return err
		}
		if sub.IsTerminal() {
			return nil
		}

		now := s.now()
		sub.Status = StatusCanceled
		sub.CancelAtPeriodEnd = false
		sub.CurrentPeriodEnd = &now
		sub.UpdatedAt = now
		return tx.Subscriptions().Update(ctx, sub)
	})
}

// Cancel is the operator-initiated cancellation for the company's current
// subscription. With atPeriodEnd the gateway keeps charging until the period
// closes and a later subscription.deleted event finalizes the local state;
// otherwise the gateway subscription is canceled immediately and the local
// row closed right away.
func (s *Service) Cancel(ctx context.Context, companyID uuid.UUID, atPeriodEnd bool) (*Subscription, error) {
	if companyID == uuid.Nil {
		return nil, errors.Join(ErrInvalidInput, errors.New("company id is required"))
	}

	sub, err := s.store.Subscriptions().OpenByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	// The gateway call happens outside the store transaction; it is safe to
	// repeat if the local write below fails and the operator retries.
	if sub.ExternalSubscriptionID != "" && s.gateway != nil {
		if err := s.gateway.CancelSubscription(ctx, sub.ExternalSubscriptionID, atPeriodEnd); err != nil {
			return nil, err
		}
	}

	err = s.store.WithinTx(ctx, func(tx Store) error {
		current, err := tx.Subscriptions().ByID(ctx, sub.ID)
		if err != nil {
			return err
		}
		now := s.now()
		if atPeriodEnd {
			current.CancelAtPeriodEnd = true
		} else {
			current.Status = StatusCanceled
			current.CancelAtPeriodEnd = false
			current.CurrentPeriodEnd = &now
		}
		current.UpdatedAt = now
		if err := tx.Subscriptions().Update(ctx, current); err != nil {
			return err
		}
		sub = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "subscription canceled",
		"subscription_id", sub.ID,
		"at_period_end", atPeriodEnd)
	return sub, nil
}

// findByCheckoutOrExternalID resolves the subscription a checkout event
// targets: first by session id, then by gateway subscription id since
// activation clears the session id.
func (s *Service) findByCheckoutOrExternalID(ctx context.Context, tx Store, checkoutSessionID, externalSubscriptionID string) (*Subscription, error) {
	sub, err := tx.Subscriptions().ByCheckoutSessionID(ctx, checkoutSessionID)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, ErrSubscriptionNotFound) {
		return nil, err
	}
	if externalSubscriptionID == "" {
		return nil, nil
	}
	sub, err = tx.Subscriptions().ByExternalID(ctx, externalSubscriptionID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// upsertInvoice creates the invoice or, when a row already exists for the
// gateway invoice id, updates its status and payment timestamps in place.
func (s *Service) upsertInvoice(ctx context.Context, tx Store, inv *Invoice) error {
	if inv.ExternalInvoiceID == "" {
		return tx.Invoices().Create(ctx, inv)
	}

	existing, err := tx.Invoices().ByExternalID(ctx, inv.ExternalInvoiceID)
	if errors.Is(err, ErrInvoiceNotFound) {
		return tx.Invoices().Create(ctx, inv)
	}
	if err != nil {
		return err
	}

	existing.Status = inv.Status
	if inv.PaidAt != nil {
		existing.PaidAt = inv.PaidAt
	}
	if inv.DueDate != nil {
		existing.DueDate = inv.DueDate
	}
	return tx.Invoices().Update(ctx, existing)
}
