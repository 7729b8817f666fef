package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// HandleWebhook processes one inbound gateway delivery. The payload must be
// the exact bytes received; signature verification is byte-sensitive.
//
// Order matters: verification happens first, and an unverified payload is
// rejected without leaving any trace, since it cannot be trusted even for
// audit. A verified event is persisted before dispatch so a crash mid-way
// leaves an unprocessed row to inspect and retry. Dispatch failures are
// stored on the row and re-raised so the HTTP boundary returns non-2xx and
// the gateway redelivers.
//
// Correctness under redelivery comes from the state machine operations being
// idempotent by business key, not from deduplicating event ids; the audit row
// is visibility, not a gate.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.gateway == nil {
		return ErrBillingNotConfigured
	}

	event, err := s.gateway.VerifyAndParseWebhook(payload, signature)
	if err != nil {
		return err
	}

	record := &WebhookEvent{
		ID:        uuid.New(),
		Type:      event.Type,
		Payload:   payload,
		CreatedAt: s.now(),
		UpdatedAt: s.now(),
	}
	if err := s.store.WebhookEvents().Create(ctx, record); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "processing gateway event",
		"event_type", event.Type, "event_id", event.ID)

	if err := s.dispatch(ctx, event); err != nil {
		if markErr := s.store.WebhookEvents().MarkFailed(ctx, record.ID, err.Error()); markErr != nil {
			s.log.ErrorContext(ctx, "failed to record webhook processing error",
				"webhook_event_id", record.ID, "error", markErr)
		}
		return fmt.Errorf("processing %s: %w", event.Type, err)
	}

	return s.store.WebhookEvents().MarkProcessed(ctx, record.ID)
}

// dispatch routes a verified event to the matching state machine operation.
// Unknown event types are acknowledged, not failed: providers introduce new
// types over time and reconciliation must stay forward-compatible.
func (s *Service) dispatch(ctx context.Context, event Event) error {
	switch data := event.Data.(type) {
	case CheckoutCompleted:
		return s.ActivateFromCheckout(ctx, data.SessionID, data.SubscriptionID, data.InvoiceID, data.AmountTotal, data.Currency)
	case CheckoutExpired:
		return s.ExpireCheckout(ctx, data.SessionID)
	case InvoicePaidEvent:
		if data.SubscriptionID == "" {
			s.log.WarnContext(ctx, "invoice event without subscription", "event_type", event.Type)
			return nil
		}
		return s.RecordInvoicePaid(ctx, data.SubscriptionID, data.InvoiceID, data.AmountPaid, data.Currency, data.DueDate, data.PaidAt)
	case InvoiceFailedEvent:
		if data.SubscriptionID == "" {
			s.log.WarnContext(ctx, "invoice event without subscription", "event_type", event.Type)
			return nil
		}
		return s.RecordInvoiceFailed(ctx, data.SubscriptionID, data.InvoiceID, data.AmountDue, data.Currency, data.DueDate)
	case InvoiceActionRequired:
		if data.SubscriptionID == "" {
			return nil
		}
		return s.RecordInvoiceActionRequired(ctx, data.SubscriptionID)
	case SubscriptionUpdated:
		return s.ApplyExternalUpdate(ctx, data.SubscriptionID, data.Status, data.PeriodStart, data.PeriodEnd, data.CancelAtPeriodEnd)
	case SubscriptionDeleted:
		return s.MarkCanceled(ctx, data.SubscriptionID)
	default:
		s.log.InfoContext(ctx, "unhandled gateway event type", "event_type", event.Type)
		return nil
	}
}
