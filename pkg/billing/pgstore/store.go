package pgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/billingkit/pkg/billing"
)

// querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx, so the
// same query code serves both transactional and pool-backed stores.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the PostgreSQL implementation of billing.Store. Subscription
// lookups inside WithinTx lock the matched row with FOR UPDATE, so
// precondition checks and the following write are atomic per subscription.
type Store struct {
	pool *pgxpool.Pool
	db   querier
	tx   pgx.Tx // nil outside a transaction
}

var _ billing.Store = (*Store)(nil)

// New returns a Store backed by the connection pool.
// Panics when pool is nil: this is a programmer error, not a runtime state.
func New(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("pgstore: pool is required")
	}
	return &Store{pool: pool, db: pool}
}

func (s *Store) Subscriptions() billing.SubscriptionStore { return &subscriptions{s} }
func (s *Store) Plans() billing.PlanStore                 { return &plans{s} }
func (s *Store) Customers() billing.CustomerStore         { return &customers{s} }
func (s *Store) Invoices() billing.InvoiceStore           { return &invoices{s} }
func (s *Store) WebhookEvents() billing.WebhookEventStore { return &webhookEvents{s} }

// WithinTx runs fn inside a database transaction. Nested calls reuse the
// outer transaction instead of opening a second one.
func (s *Store) WithinTx(ctx context.Context, fn func(billing.Store) error) error {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := fn(&Store{pool: s.pool, db: tx, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// lockClause appends FOR UPDATE to subscription lookups when running inside
// a transaction.
func (s *Store) lockClause() string {
	if s.tx != nil {
		return " FOR UPDATE"
	}
	return ""
}
