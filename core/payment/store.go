package payment

import (
	"context"
	"fmt"

	"github.com/irsalhamdi/e-commerce-cart/database"
	"github.com/jmoiron/sqlx"
)

type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, m Method) error {
	const q = `
	INSERT INTO payment_methods
		(payment_method_id, account_id, processor, stripe_payment_method_id, paypal_vault_id, created_at)
	VALUES
		(:payment_method_id, :account_id, :processor, :stripe_payment_method_id, :paypal_vault_id, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, s.db, q, m); err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting payment method: %w", err)
	}
	return nil
}

// Find returns the oldest method of the account for processor. A non nil
// ref must match the processor's own id as well.
func (s *Store) Find(ctx context.Context, accountID string, processor string, ref *string) (Method, error) {
	const q = `
	SELECT *
	FROM payment_methods
	WHERE account_id = $1
		AND processor = $2
		AND ($3::TEXT IS NULL OR COALESCE(stripe_payment_method_id, paypal_vault_id) = $3)
	ORDER BY created_at
	LIMIT 1`

	var m Method
	if err := sqlx.GetContext(ctx, s.db, &m, q, accountID, processor, ref); err != nil {
		if database.IsNoRows(err) {
			return Method{}, ErrNotFound
		}
		return Method{}, fmt.Errorf("selecting payment method: %w", err)
	}
	return m, nil
}

func (s *Store) QueryByAccount(ctx context.Context, accountID string) ([]Method, error) {
	const q = `
	SELECT *
	FROM payment_methods
	WHERE account_id = $1
	ORDER BY created_at`

	ms := []Method{}
	if err := sqlx.SelectContext(ctx, s.db, &ms, q, accountID); err != nil {
		return nil, fmt.Errorf("selecting payment methods of account[%s]: %w", accountID, err)
	}
	return ms, nil
}
