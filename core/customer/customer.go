// Package customer maps authenticated accounts to the customer records that
// own carts.
package customer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/irsalhamdi/e-commerce-cart/database"
	"github.com/irsalhamdi/e-commerce-cart/validate"
	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("customer not found")

type Customer struct {
	ID        string    `json:"id" db:"customer_id"`
	AccountID string    `json:"accountId" db:"account_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Ensure returns the customer of the account, creating it the first time
// the account is seen. Concurrent calls settle on a single record.
func (s *Store) Ensure(ctx context.Context, accountID string) (Customer, error) {
	const q = `
	INSERT INTO customers
		(customer_id, account_id, created_at)
	VALUES
		($1, $2, $3)
	ON CONFLICT (account_id) DO NOTHING`

	if _, err := s.db.ExecContext(ctx, q, validate.GenerateID(), accountID, time.Now().UTC()); err != nil {
		return Customer{}, fmt.Errorf("provisioning customer for account[%s]: %w", accountID, err)
	}
	return s.FetchByAccount(ctx, accountID)
}

func (s *Store) FetchByAccount(ctx context.Context, accountID string) (Customer, error) {
	const q = `
	SELECT *
	FROM customers
	WHERE account_id = $1`

	var c Customer
	if err := sqlx.GetContext(ctx, s.db, &c, q, accountID); err != nil {
		if database.IsNoRows(err) {
			return Customer{}, fmt.Errorf("account[%s]: %w", accountID, ErrNotFound)
		}
		return Customer{}, fmt.Errorf("selecting customer of account[%s]: %w", accountID, err)
	}
	return c, nil
}
