package pgstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/billing"
)

type webhookEvents struct {
	store *Store
}

func (s *webhookEvents) Create(ctx context.Context, event *billing.WebhookEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	err := s.store.db.QueryRow(ctx, `
		INSERT INTO webhook_events (id, type, payload, processed, processing_error)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		event.ID, event.Type, event.Payload, event.Processed, event.ProcessingError,
	).Scan(&event.CreatedAt, &event.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert webhook event: %w", err)
	}
	return nil
}

func (s *webhookEvents) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	_, err := s.store.db.Exec(ctx, `
		UPDATE webhook_events SET processed = true, processing_error = '', updated_at = now()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark webhook event processed: %w", err)
	}
	return nil
}

func (s *webhookEvents) MarkFailed(ctx context.Context, id uuid.UUID, processingError string) error {
	_, err := s.store.db.Exec(ctx, `
		UPDATE webhook_events SET processed = false, processing_error = $2, updated_at = now()
		WHERE id = $1`, id, processingError)
	if err != nil {
		return fmt.Errorf("mark webhook event failed: %w", err)
	}
	return nil
}

func (s *webhookEvents) ListUnprocessed(ctx context.Context, limit int) ([]billing.WebhookEvent, error) {
	rows, err := s.store.db.Query(ctx, `
		SELECT id, type, payload, processed, processing_error, created_at, updated_at
		FROM webhook_events
		WHERE NOT processed
		ORDER BY created_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("select webhook events: %w", err)
	}
	defer rows.Close()

	var out []billing.WebhookEvent
	for rows.Next() {
		var ev billing.WebhookEvent
		if err := rows.Scan(
			&ev.ID, &ev.Type, &ev.Payload, &ev.Processed, &ev.ProcessingError,
			&ev.CreatedAt, &ev.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan webhook event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
