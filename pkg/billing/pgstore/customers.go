package pgstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/billing"
	"github.com/dmitrymomot/billingkit/pkg/pg"
)

type customers struct {
	store *Store
}

const customerColumns = `id, company_id, email, name, external_id, created_at, updated_at`

func (s *customers) Create(ctx context.Context, customer *billing.Customer) error {
	if customer.ID == uuid.Nil {
		customer.ID = uuid.New()
	}

	err := s.store.db.QueryRow(ctx, `
		INSERT INTO customers (id, company_id, email, name, external_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		customer.ID, customer.CompanyID, customer.Email, customer.Name, customer.ExternalID,
	).Scan(&customer.CreatedAt, &customer.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

func (s *customers) ByEmail(ctx context.Context, companyID uuid.UUID, email string) (*billing.Customer, error) {
	return s.one(ctx, `WHERE company_id = $1 AND lower(email) = lower($2)`, companyID, email)
}

func (s *customers) ByID(ctx context.Context, id uuid.UUID) (*billing.Customer, error) {
	return s.one(ctx, `WHERE id = $1`, id)
}

func (s *customers) SetExternalID(ctx context.Context, customerID uuid.UUID, externalID string) error {
	tag, err := s.store.db.Exec(ctx, `
		UPDATE customers SET external_id = $2, updated_at = now() WHERE id = $1`,
		customerID, externalID,
	)
	if err != nil {
		return fmt.Errorf("update customer external id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrCustomerNotFound
	}
	return nil
}

func (s *customers) one(ctx context.Context, where string, args ...any) (*billing.Customer, error) {
	var customer billing.Customer
	err := s.store.db.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers `+where, args...,
	).Scan(
		&customer.ID, &customer.CompanyID, &customer.Email, &customer.Name,
		&customer.ExternalID, &customer.CreatedAt, &customer.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, billing.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("select customer: %w", err)
	}
	return &customer, nil
}
