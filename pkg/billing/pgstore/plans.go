package pgstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/billing"
	"github.com/dmitrymomot/billingkit/pkg/pg"
)

type plans struct {
	store *Store
}

const planColumns = `id, company_id, name, description, price_amount, currency,
	billing_interval, external_product_id, external_price_id, active,
	created_at, updated_at`

func (s *plans) Create(ctx context.Context, plan *billing.Plan) error {
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}

	err := s.store.db.QueryRow(ctx, `
		INSERT INTO plans (
			id, company_id, name, description, price_amount, currency,
			billing_interval, external_product_id, external_price_id, active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		plan.ID, plan.CompanyID, plan.Name, plan.Description,
		plan.Price.Amount, plan.Price.Currency, plan.Interval,
		plan.ExternalProductID, plan.ExternalPriceID, plan.Active,
	).Scan(&plan.CreatedAt, &plan.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}
	return nil
}

func (s *plans) ByID(ctx context.Context, id uuid.UUID) (*billing.Plan, error) {
	var plan billing.Plan
	err := s.store.db.QueryRow(ctx,
		`SELECT `+planColumns+` FROM plans WHERE id = $1`, id,
	).Scan(
		&plan.ID, &plan.CompanyID, &plan.Name, &plan.Description,
		&plan.Price.Amount, &plan.Price.Currency, &plan.Interval,
		&plan.ExternalProductID, &plan.ExternalPriceID, &plan.Active,
		&plan.CreatedAt, &plan.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, billing.ErrPlanNotFound
		}
		return nil, fmt.Errorf("select plan: %w", err)
	}
	return &plan, nil
}

func (s *plans) ListActive(ctx context.Context) ([]billing.Plan, error) {
	rows, err := s.store.db.Query(ctx,
		`SELECT `+planColumns+` FROM plans WHERE active ORDER BY price_amount ASC`)
	if err != nil {
		return nil, fmt.Errorf("select plans: %w", err)
	}
	defer rows.Close()

	var out []billing.Plan
	for rows.Next() {
		var plan billing.Plan
		if err := rows.Scan(
			&plan.ID, &plan.CompanyID, &plan.Name, &plan.Description,
			&plan.Price.Amount, &plan.Price.Currency, &plan.Interval,
			&plan.ExternalProductID, &plan.ExternalPriceID, &plan.Active,
			&plan.CreatedAt, &plan.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		out = append(out, plan)
	}
	return out, rows.Err()
}

func (s *plans) SetExternalIDs(ctx context.Context, planID uuid.UUID, productID, priceID string) error {
	tag, err := s.store.db.Exec(ctx, `
		UPDATE plans SET
			external_product_id = $2,
			external_price_id = $3,
			updated_at = now()
		WHERE id = $1`,
		planID, productID, priceID,
	)
	if err != nil {
		return fmt.Errorf("update plan external ids: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrPlanNotFound
	}
	return nil
}
