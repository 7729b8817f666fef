package pgstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/billingkit/pkg/billing"
	"github.com/dmitrymomot/billingkit/pkg/pg"
)

type invoices struct {
	store *Store
}

const invoiceColumns = `id, subscription_id, company_id, amount, currency,
	status, due_date, paid_at, external_invoice_id, created_at`

func (s *invoices) Create(ctx context.Context, inv *billing.Invoice) error {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}

	err := s.store.db.QueryRow(ctx, `
		INSERT INTO invoices (
			id, subscription_id, company_id, amount, currency,
			status, due_date, paid_at, external_invoice_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`,
		inv.ID, inv.SubscriptionID, inv.CompanyID, inv.Amount, inv.Currency,
		inv.Status, inv.DueDate, inv.PaidAt, inv.ExternalInvoiceID,
	).Scan(&inv.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

func (s *invoices) Update(ctx context.Context, inv *billing.Invoice) error {
	tag, err := s.store.db.Exec(ctx, `
		UPDATE invoices SET
			amount = $2,
			currency = $3,
			status = $4,
			due_date = $5,
			paid_at = $6
		WHERE id = $1`,
		inv.ID, inv.Amount, inv.Currency, inv.Status, inv.DueDate, inv.PaidAt,
	)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrInvoiceNotFound
	}
	return nil
}

func (s *invoices) ByExternalID(ctx context.Context, externalInvoiceID string) (*billing.Invoice, error) {
	var inv billing.Invoice
	err := s.store.db.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices
		 WHERE external_invoice_id = $1 AND external_invoice_id <> ''`,
		externalInvoiceID,
	).Scan(
		&inv.ID, &inv.SubscriptionID, &inv.CompanyID, &inv.Amount, &inv.Currency,
		&inv.Status, &inv.DueDate, &inv.PaidAt, &inv.ExternalInvoiceID, &inv.CreatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, billing.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("select invoice: %w", err)
	}
	return &inv, nil
}

func (s *invoices) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]billing.Invoice, error) {
	rows, err := s.store.db.Query(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE company_id = $1 ORDER BY created_at DESC`,
		companyID,
	)
	if err != nil {
		return nil, fmt.Errorf("select invoices: %w", err)
	}
	return scanInvoices(rows)
}

func (s *invoices) ListBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]billing.Invoice, error) {
	rows, err := s.store.db.Query(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE subscription_id = $1 ORDER BY created_at DESC`,
		subscriptionID,
	)
	if err != nil {
		return nil, fmt.Errorf("select invoices: %w", err)
	}
	return scanInvoices(rows)
}

func scanInvoices(rows pgx.Rows) ([]billing.Invoice, error) {
	defer rows.Close()

	var out []billing.Invoice
	for rows.Next() {
		var inv billing.Invoice
		if err := rows.Scan(
			&inv.ID, &inv.SubscriptionID, &inv.CompanyID, &inv.Amount, &inv.Currency,
			&inv.Status, &inv.DueDate, &inv.PaidAt, &inv.ExternalInvoiceID, &inv.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}
